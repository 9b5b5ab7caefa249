package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial transactions schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					fingerprint TEXT,
					sequence_ref TEXT NOT NULL DEFAULT '',
					execution_date DATETIME,
					value_date DATETIME,
					amount TEXT NOT NULL,
					currency TEXT NOT NULL DEFAULT 'EUR',
					account_id TEXT NOT NULL,
					counterparty_iban TEXT NOT NULL DEFAULT '',
					counterparty_name TEXT NOT NULL DEFAULT '',
					communication TEXT NOT NULL DEFAULT '',
					acceptance TEXT NOT NULL DEFAULT 'pending',
					verification TEXT NOT NULL DEFAULT 'unverified',
					is_parent INTEGER NOT NULL DEFAULT 0,
					parent_transaction_id TEXT,
					child_index INTEGER NOT NULL DEFAULT 0,
					child_count INTEGER NOT NULL DEFAULT 0,
					batch_id TEXT NOT NULL DEFAULT '',
					account_code TEXT NOT NULL DEFAULT '',
					category TEXT NOT NULL DEFAULT '',
					notes TEXT NOT NULL DEFAULT '',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_transactions_account ON transactions(account_id)`,
				`CREATE UNIQUE INDEX idx_transactions_fingerprint
						ON transactions(account_id, fingerprint) WHERE fingerprint IS NOT NULL`,
				`CREATE INDEX idx_transactions_parent ON transactions(parent_transaction_id)`,
				`CREATE INDEX idx_transactions_date ON transactions(execution_date)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Matched entities",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS matched_entities (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					transaction_id TEXT NOT NULL,
					entity_type TEXT NOT NULL,
					entity_id TEXT NOT NULL,
					name TEXT NOT NULL DEFAULT '',
					confidence INTEGER NOT NULL DEFAULT 0,
					matched_at DATETIME,
					matched_by TEXT NOT NULL DEFAULT 'auto',
					notes TEXT NOT NULL DEFAULT '',
					UNIQUE(transaction_id, entity_type, entity_id),
					FOREIGN KEY (transaction_id) REFERENCES transactions(id)
				)`,
				`CREATE INDEX idx_matched_entities_transaction ON matched_entities(transaction_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Import batch provenance",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS import_batches (
					id TEXT PRIMARY KEY,
					account_id TEXT NOT NULL,
					imported INTEGER NOT NULL DEFAULT 0,
					duplicates_skipped INTEGER NOT NULL DEFAULT 0,
					upgraded INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`)
			if err != nil {
				return fmt.Errorf("failed to create import_batches: %w", err)
			}
			return nil
		},
	},
}

// Migrate applies all pending migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		slog.Info("Applying migration",
			"version", migration.Version,
			"description", migration.Description)

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration transaction: %w", err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to set schema version %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
