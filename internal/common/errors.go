// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Reconciliation invariant violations. These are caller contract
	// violations, never silently ignored.
	ErrAlreadyReconciled  = errors.New("transaction already reconciled")
	ErrRefusedTransaction = errors.New("transaction was refused by the bank")
	ErrInvalidTransition  = errors.New("illegal status transition")
	ErrFingerprintFrozen  = errors.New("fingerprint is computed once at ingestion")

	// Import errors.
	ErrNoRows        = errors.New("no statement rows to import")
	ErrInvalidImport = errors.New("invalid import file")

	// Configuration errors.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry. Invariant
// violations and bad input never are; unknown errors are treated as
// transient.
func IsRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return false
	}

	if errors.Is(err, ErrAlreadyReconciled) ||
		errors.Is(err, ErrRefusedTransaction) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrFingerprintFrozen) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrDuplicateEntry) ||
		errors.Is(err, ErrNoRows) ||
		errors.Is(err, ErrInvalidImport) ||
		errors.Is(err, ErrInvalidConfig) {
		return false
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return true
}
