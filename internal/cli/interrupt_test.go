package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer provides thread-safe access to a bytes.Buffer.
type syncBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (s *syncBuffer) Write(p []byte) (n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestNewInterruptHandler(t *testing.T) {
	tests := []struct {
		writer io.Writer
		name   string
	}{
		{
			name:   "with custom writer",
			writer: &bytes.Buffer{},
		},
		{
			name:   "with nil writer",
			writer: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewInterruptHandler(tt.writer)
			assert.NotNil(t, handler)
			assert.NotNil(t, handler.writer)
			assert.False(t, handler.interrupted)
		})
	}
}

func TestHandleInterrupts(t *testing.T) {
	output := &syncBuffer{}
	handler := NewInterruptHandler(output)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = handler.HandleInterrupts(ctx, true)

	select {
	case <-ctx.Done():
		t.Fatal("Context should not be canceled initially")
	default:
	}

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGINT))

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("Context should be canceled after the signal")
	}

	assert.True(t, handler.WasInterrupted())
	outputStr := output.String()
	assert.Contains(t, outputStr, "Import interrupted!")
	assert.Contains(t, outputStr, "Committed rows are saved")
}

func TestHandleInterrupts_NotMidImport(t *testing.T) {
	output := &syncBuffer{}
	handler := NewInterruptHandler(output)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = handler.HandleInterrupts(ctx, false)

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGINT))

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("Context should be canceled after the signal")
	}

	assert.True(t, handler.WasInterrupted())
	outputStr := output.String()
	assert.Contains(t, outputStr, "Import interrupted!")
	assert.NotContains(t, outputStr, "Committed rows are saved")
}

func TestHandleInterrupts_ParentCancelStaysSilent(t *testing.T) {
	output := &syncBuffer{}
	handler := NewInterruptHandler(output)

	ctx, cancel := context.WithCancel(context.Background())
	child := handler.HandleInterrupts(ctx, true)

	// A normal shutdown cancels the parent context; that is not an
	// interrupt and must not print anything.
	cancel()

	select {
	case <-child.Done():
	case <-time.After(time.Second):
		t.Fatal("Child context should follow parent cancellation")
	}
	time.Sleep(50 * time.Millisecond)

	assert.False(t, handler.WasInterrupted())
	assert.Empty(t, output.String())
}

func TestMultipleInterrupts(t *testing.T) {
	output := &syncBuffer{}
	handler := NewInterruptHandler(output)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = handler.HandleInterrupts(ctx, true)

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGINT))
	<-ctx.Done()
	time.Sleep(50 * time.Millisecond)

	// Message should only be shown once
	outputStr := output.String()
	count := strings.Count(outputStr, "Import interrupted!")
	assert.Equal(t, 1, count, "Interrupt message should only be shown once")
}

func TestShowInterruptMessage(t *testing.T) {
	tests := []struct {
		name        string
		expected    []string
		notExpected []string
		midImport   bool
	}{
		{
			name:      "mid import",
			midImport: true,
			expected: []string{
				"Import interrupted!",
				"Committed rows are saved",
				"See you later!",
			},
			notExpected: []string{},
		},
		{
			name:      "outside import",
			midImport: false,
			expected: []string{
				"Import interrupted!",
				"See you later!",
			},
			notExpected: []string{
				"Committed rows are saved",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var output bytes.Buffer
			handler := &InterruptHandler{
				writer:    &output,
				midImport: tt.midImport,
			}

			handler.showInterruptMessage()

			outputStr := output.String()
			for _, expected := range tt.expected {
				assert.Contains(t, outputStr, expected)
			}
			for _, notExpected := range tt.notExpected {
				assert.NotContains(t, outputStr, notExpected)
			}
		})
	}
}
