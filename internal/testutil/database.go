// Package testutil provides test helpers for packages that need a real
// storage layer behind the service interfaces.
package testutil

import (
	"context"
	"testing"

	"github.com/clubledger/tally/internal/service"
	"github.com/clubledger/tally/internal/storage"
)

// TestDB represents a migrated in-memory test database.
type TestDB struct {
	Storage service.Storage
	t       *testing.T
}

// SetupTestDB creates a new in-memory SQLite database with all migrations
// applied. Cleanup is registered automatically.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{
		Storage: store,
		t:       t,
	}
}
