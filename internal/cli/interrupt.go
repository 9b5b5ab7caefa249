package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// InterruptHandler manages graceful shutdown with friendly messages.
type InterruptHandler struct {
	writer      io.Writer
	cancelFunc  context.CancelFunc
	interrupted bool
	midImport   bool
	mu          sync.Mutex
}

// NewInterruptHandler creates a new interrupt handler.
func NewInterruptHandler(writer io.Writer) *InterruptHandler {
	if writer == nil {
		writer = os.Stdout
	}
	return &InterruptHandler{
		writer: writer,
	}
}

// HandleInterrupts sets up signal handling and returns a context that will be
// canceled on interrupt. midImport controls whether the shutdown message
// explains that committed rows stand. The message is shown only for an actual
// signal; a parent cancellation after a normal run stays silent.
func (h *InterruptHandler) HandleInterrupts(ctx context.Context, midImport bool) context.Context {
	child, cancel := context.WithCancel(ctx)
	h.cancelFunc = cancel
	h.midImport = midImport

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)

		select {
		case <-sigChan:
			h.interrupt()
			cancel()
		case <-ctx.Done():
			// The root command cancels this context on SIGINT too, so a
			// signal may already be pending here.
			select {
			case <-sigChan:
				h.interrupt()
			default:
			}
		}
	}()

	return child
}

func (h *InterruptHandler) interrupt() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.interrupted {
		h.interrupted = true
		h.showInterruptMessage()
	}
}

// showInterruptMessage displays a friendly interrupt message.
func (h *InterruptHandler) showInterruptMessage() {
	msg := "\n\n" + FormatWarning("Import interrupted!")

	if h.midImport {
		msg += "\n" + FormatInfo("Committed rows are saved. Re-run the import; duplicates are skipped.")
	}

	msg += "\n" + FormatInfo("See you later! 📒") + "\n"

	if _, err := fmt.Fprint(h.writer, msg); err != nil {
		// Best effort - we're shutting down anyway
		fmt.Fprintf(os.Stderr, "Failed to write interrupt message: %v\n", err)
	}
}

// WasInterrupted returns true if the process was interrupted.
func (h *InterruptHandler) WasInterrupted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interrupted
}
