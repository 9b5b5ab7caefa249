package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	t.Setenv("TALLY_TEST_DIR", "/var/data")

	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{name: "empty", path: "", expected: ""},
		{name: "absolute untouched", path: "/tmp/tally.db", expected: "/tmp/tally.db"},
		{name: "tilde prefix", path: "~/ledger/tally.db", expected: filepath.Join(home, "ledger/tally.db")},
		{name: "bare tilde", path: "~", expected: home},
		{name: "env var", path: "$TALLY_TEST_DIR/tally.db", expected: "/var/data/tally.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExpandPath(tt.path))
		})
	}
}

func TestDefaultPaths(t *testing.T) {
	assert.True(t, filepath.IsAbs(DefaultDatabasePath()))
	assert.Contains(t, DefaultDatabasePath(), "tally")
	assert.True(t, filepath.IsAbs(DefaultConfigDir()))
}
