package main

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/clubledger/tally/internal/common"
	"github.com/clubledger/tally/internal/config"
	"github.com/clubledger/tally/internal/service"
	"github.com/clubledger/tally/internal/storage"
)

// initStorage initializes the storage service with proper path expansion.
func initStorage(ctx context.Context) (service.Storage, error) {
	// Get database path from config
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = config.DefaultDatabasePath()
	}

	// Expand tilde and environment variables
	dbPath = config.ExpandPath(dbPath)

	// Initialize storage
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, common.NewUserError(fmt.Sprintf("could not open the ledger database at %s", dbPath), err)
	}

	// Run migrations
	if err := store.Migrate(ctx); err != nil {
		return nil, common.NewUserError("failed to run database migrations", err)
	}

	return store, nil
}
