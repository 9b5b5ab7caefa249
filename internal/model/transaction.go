// Package model defines the domain types shared across the application.
package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/clubledger/tally/internal/fingerprint"
)

// AcceptanceStatus tracks whether the bank accepted a movement.
type AcceptanceStatus string

// Acceptance statuses.
const (
	AcceptancePending  AcceptanceStatus = "pending"
	AcceptanceAccepted AcceptanceStatus = "accepted"
	AcceptanceRefused  AcceptanceStatus = "refused"
)

// VerificationStatus tracks reconciliation progress for a transaction.
type VerificationStatus string

// Verification statuses. Reconciled is terminal; not_found may return to
// unverified when new evidence arrives.
const (
	VerificationUnverified VerificationStatus = "unverified"
	VerificationNotFound   VerificationStatus = "not_found"
	VerificationReconciled VerificationStatus = "reconciled"
)

// Role describes a transaction's position in an allocation.
type Role string

// Transaction roles. A transaction is exactly one of these.
const (
	RolePlain  Role = "plain"
	RoleParent Role = "parent"
	RoleChild  Role = "child"
)

// Transaction represents a single bank-statement movement, or one allocation
// line of a split movement (a child row referencing its parent).
type Transaction struct {
	ExecutionDate    time.Time
	ValueDate        time.Time
	ID               string
	SequenceRef      string // bank sequence reference, possibly incomplete ("2025-")
	Currency         string
	AccountID        string
	CounterpartyIBAN string
	CounterpartyName string
	Communication    string // free-text communication from the statement
	Fingerprint      string // computed once at ingestion, never mutated
	BatchID          string
	ParentID         string
	AccountCode      string
	Category         string
	Notes            string
	Acceptance       AcceptanceStatus
	Verification     VerificationStatus
	MatchedEntities  []MatchedEntity
	Amount           decimal.Decimal // signed, minor-unit precision
	ChildIndex       int             // 1..ChildCount on children, 0 otherwise
	ChildCount       int             // number of children on parents, 0 otherwise
	IsParent         bool
}

// Role reports whether the transaction is plain, a split parent, or a child
// allocation line.
func (t *Transaction) Role() Role {
	switch {
	case t.IsParent:
		return RoleParent
	case t.ParentID != "":
		return RoleChild
	default:
		return RolePlain
	}
}

// IsReconciled reports whether the transaction reached the terminal
// verification state.
func (t *Transaction) IsReconciled() bool {
	return t.Verification == VerificationReconciled
}

// ComputeFingerprint derives the deduplication fingerprint from the five
// identity fields. Callers must trim the fields first.
func (t *Transaction) ComputeFingerprint() string {
	return fingerprint.Fingerprint(
		t.SequenceRef,
		t.ExecutionDate,
		t.Amount,
		t.CounterpartyName,
		t.Communication,
	)
}
