package model

import "github.com/shopspring/decimal"

// AllocationLine is one accounting line of a split, as entered by the caller.
// Amounts are magnitudes; CommitAllocationSet normalizes signs to match the
// parent movement.
type AllocationLine struct {
	Description    string          `json:"description"`
	Category       string          `json:"category,omitempty"`
	AccountCode    string          `json:"account_code,omitempty"`
	MemberID       string          `json:"member_id,omitempty"`
	EventID        string          `json:"event_id,omitempty"`
	ExpenseClaimID string          `json:"expense_claim_id,omitempty"`
	RegistrationID string          `json:"registration_id,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Reconciled     bool            `json:"reconciled,omitempty"`
}
