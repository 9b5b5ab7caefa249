// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/clubledger/tally/internal/model"
)

// TransactionFilter defines filtering options for transaction queries.
type TransactionFilter struct {
	StartDate    *time.Time
	EndDate      *time.Time
	AccountID    string
	BatchID      string
	Verification model.VerificationStatus
	Acceptance   model.AcceptanceStatus
	Limit        int
	Offset       int
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Transaction operations
	SaveTransactions(ctx context.Context, transactions []model.Transaction) error
	GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error)
	GetTransactionsByAccount(ctx context.Context, accountID string) ([]model.Transaction, error)
	GetTransactionsByBatch(ctx context.Context, batchID string) ([]model.Transaction, error)
	GetTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	FindByFingerprint(ctx context.Context, accountID, fp string) (*model.Transaction, error)
	UpdateSequenceRef(ctx context.Context, id, seqRef string) error
	AssignAccountCode(ctx context.Context, id, code string) error
	GetHistorySample(ctx context.Context, accountID string, limit int) ([]model.Transaction, error)

	// Allocation operations
	ReplaceAllocations(ctx context.Context, parent model.Transaction, children []model.Transaction) error
	GetAllocations(ctx context.Context, parentID string) ([]model.Transaction, error)

	// Matched-entity operations
	SaveMatchedEntities(ctx context.Context, transactionID string, matches []model.MatchedEntity) error
	GetMatchedEntities(ctx context.Context, transactionID string) ([]model.MatchedEntity, error)

	// Status transitions
	UpdateVerificationStatus(ctx context.Context, id string, status model.VerificationStatus) error
	UpdateAcceptanceStatus(ctx context.Context, id string, status model.AcceptanceStatus) error

	// Import provenance
	SaveImportBatch(ctx context.Context, batch model.ImportBatch) error
	GetImportBatch(ctx context.Context, id string) (*model.ImportBatch, error)

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
