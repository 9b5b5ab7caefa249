package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/clubledger/tally/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrEmptySlice         = errors.New("slice cannot be empty")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidMatch       = errors.New("invalid matched entity")
	ErrInvalidRole        = errors.New("transaction cannot be parent and child at once")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTransactions validates a slice of transactions.
func validateTransactions(transactions []model.Transaction) error {
	if transactions == nil {
		return fmt.Errorf("%w: transactions", ErrNilParameter)
	}
	if len(transactions) == 0 {
		return fmt.Errorf("%w: transactions", ErrEmptySlice)
	}

	for i, txn := range transactions {
		if err := validateTransaction(&txn); err != nil {
			return fmt.Errorf("transaction at index %d: %w", i, err)
		}
	}
	return nil
}

// validateTransaction validates a single transaction.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidTransaction)
	}
	if txn.AccountID == "" {
		return fmt.Errorf("%w: missing account ID", ErrInvalidTransaction)
	}
	if txn.IsParent && txn.ParentID != "" {
		return fmt.Errorf("%w: %s", ErrInvalidRole, txn.ID)
	}
	return nil
}

// validateMatches validates matched-entity links.
func validateMatches(matches []model.MatchedEntity) error {
	for i, m := range matches {
		if m.EntityType == "" || m.EntityID == "" {
			return fmt.Errorf("%w: match at index %d missing entity type or id", ErrInvalidMatch, i)
		}
		if m.Confidence < 0 || m.Confidence > 100 {
			return fmt.Errorf("%w: match at index %d confidence out of range", ErrInvalidMatch, i)
		}
	}
	return nil
}
