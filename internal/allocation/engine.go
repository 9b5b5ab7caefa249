// Package allocation splits one bank movement into typed accounting lines
// under a sum-conservation invariant.
package allocation

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clubledger/tally/internal/common"
	"github.com/clubledger/tally/internal/model"
	"github.com/clubledger/tally/internal/service"
)

// Field limits for allocation lines.
const (
	MaxDescriptionLen = 200
	MaxNotesLen       = 500
)

// sumTolerance absorbs rounding: one minor unit of the currency.
var sumTolerance = decimal.New(1, -2) // 0.01

// ViolationCode identifies a validation failure kind.
type ViolationCode string

// Validation violation codes.
const (
	TooFewLines        ViolationCode = "too_few_lines"
	EmptyDescription   ViolationCode = "empty_description"
	DescriptionTooLong ViolationCode = "description_too_long"
	NonPositiveAmount  ViolationCode = "non_positive_amount"
	NotesTooLong       ViolationCode = "notes_too_long"
	SumMismatch        ViolationCode = "sum_mismatch"
)

// Violation describes one validation failure. Line is 1-based; zero means
// the violation concerns the whole set. Difference carries the signed
// unallocated amount for SumMismatch violations.
type Violation struct {
	Code       ViolationCode
	Message    string
	Difference decimal.Decimal
	Line       int
}

// Result holds every violation of an allocation set at once, so a caller can
// present them together instead of fixing one at a time.
type Result struct {
	Violations []Violation
}

// Valid reports whether the set passed validation.
func (r Result) Valid() bool {
	return len(r.Violations) == 0
}

// Err converts a failed result into an error, or nil when valid.
func (r Result) Err() error {
	if r.Valid() {
		return nil
	}
	msgs := make([]string, len(r.Violations))
	for i, v := range r.Violations {
		msgs[i] = v.Message
	}
	return fmt.Errorf("invalid allocation set: %s", strings.Join(msgs, "; "))
}

// ValidateAllocationSet checks an allocation set against a parent amount and
// returns the full list of violations, never failing fast.
func ValidateAllocationSet(parentAmount decimal.Decimal, lines []model.AllocationLine) Result {
	var violations []Violation

	if len(lines) < 2 {
		violations = append(violations, Violation{
			Code:    TooFewLines,
			Message: "an allocation requires at least two lines",
		})
	}

	for i, line := range lines {
		lineNo := i + 1
		desc := strings.TrimSpace(line.Description)

		switch {
		case desc == "":
			violations = append(violations, Violation{
				Code:    EmptyDescription,
				Line:    lineNo,
				Message: fmt.Sprintf("line %d: description is required", lineNo),
			})
		case utf8.RuneCountInString(desc) > MaxDescriptionLen:
			violations = append(violations, Violation{
				Code:    DescriptionTooLong,
				Line:    lineNo,
				Message: fmt.Sprintf("line %d: description exceeds %d characters", lineNo, MaxDescriptionLen),
			})
		}

		if line.Amount.Sign() <= 0 {
			violations = append(violations, Violation{
				Code:    NonPositiveAmount,
				Line:    lineNo,
				Message: fmt.Sprintf("line %d: amount must be strictly positive", lineNo),
			})
		}

		if utf8.RuneCountInString(line.Notes) > MaxNotesLen {
			violations = append(violations, Violation{
				Code:    NotesTooLong,
				Line:    lineNo,
				Message: fmt.Sprintf("line %d: notes exceed %d characters", lineNo, MaxNotesLen),
			})
		}
	}

	if diff := RemainingAmount(parentAmount, lines); diff.Abs().GreaterThan(sumTolerance) {
		violations = append(violations, Violation{
			Code:       SumMismatch,
			Difference: diff,
			Message: fmt.Sprintf("line amounts differ from the parent amount by %s (unallocated: %s)",
				diff.StringFixed(2), diff.StringFixed(2)),
		})
	}

	return Result{Violations: violations}
}

// RemainingAmount returns |parentAmount| minus the sum of line magnitudes,
// usable for incremental entry before validation. Positive means amount is
// still unallocated; negative means the lines over-allocate.
func RemainingAmount(parentAmount decimal.Decimal, lines []model.AllocationLine) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(line.Amount.Abs())
	}
	return parentAmount.Abs().Sub(sum)
}

// CanSplit reports whether a transaction may be split. Reconciled and
// refused transactions may not; an already-split transaction may always be
// re-split, superseding the previous allocation set.
func CanSplit(txn model.Transaction) bool {
	return txn.Verification != model.VerificationReconciled &&
		txn.Acceptance != model.AcceptanceRefused
}

// CommitAllocationSet validates the set, sign-normalizes every line to match
// the parent's sign regardless of how the caller entered magnitudes, and
// atomically replaces the parent's allocation: old children are superseded
// wholesale, never individually patched.
//
// Committing against a reconciled parent is an invariant violation and fails
// loudly with common.ErrAlreadyReconciled.
func CommitAllocationSet(ctx context.Context, store service.Storage, parent model.Transaction, lines []model.AllocationLine) ([]model.Transaction, error) {
	if parent.IsReconciled() {
		return nil, fmt.Errorf("%w: cannot re-allocate transaction %s", common.ErrAlreadyReconciled, parent.ID)
	}
	if parent.Acceptance == model.AcceptanceRefused {
		return nil, fmt.Errorf("%w: cannot allocate transaction %s", common.ErrRefusedTransaction, parent.ID)
	}

	if res := ValidateAllocationSet(parent.Amount, lines); !res.Valid() {
		return nil, res.Err()
	}

	negative := parent.Amount.Sign() < 0
	children := make([]model.Transaction, 0, len(lines))
	for i, line := range lines {
		amount := line.Amount.Abs()
		if negative {
			amount = amount.Neg()
		}

		child := model.Transaction{
			ID:               uuid.NewString(),
			ParentID:         parent.ID,
			ChildIndex:       i + 1,
			SequenceRef:      parent.SequenceRef,
			ExecutionDate:    parent.ExecutionDate,
			ValueDate:        parent.ValueDate,
			Amount:           amount,
			Currency:         parent.Currency,
			AccountID:        parent.AccountID,
			CounterpartyIBAN: parent.CounterpartyIBAN,
			CounterpartyName: parent.CounterpartyName,
			Communication:    strings.TrimSpace(line.Description),
			Category:         line.Category,
			AccountCode:      line.AccountCode,
			Notes:            line.Notes,
			BatchID:          parent.BatchID,
			Acceptance:       parent.Acceptance,
			Verification:     model.VerificationUnverified,
			MatchedEntities:  lineLinks(line),
		}
		if line.Reconciled {
			child.Verification = model.VerificationReconciled
		}
		children = append(children, child)
	}

	parent.IsParent = true
	parent.ChildCount = len(children)
	parent.ParentID = ""
	parent.ChildIndex = 0

	if err := store.ReplaceAllocations(ctx, parent, children); err != nil {
		return nil, fmt.Errorf("failed to commit allocation set: %w", err)
	}

	return children, nil
}

// lineLinks converts the entity references of an allocation line into manual
// matched-entity links at full confidence.
func lineLinks(line model.AllocationLine) []model.MatchedEntity {
	refs := []struct {
		entityType model.EntityType
		id         string
	}{
		{model.EntityMember, line.MemberID},
		{model.EntityEvent, line.EventID},
		{model.EntityExpense, line.ExpenseClaimID},
		{model.EntityInscription, line.RegistrationID},
	}

	var links []model.MatchedEntity
	for _, ref := range refs {
		if ref.id == "" {
			continue
		}
		links = append(links, model.MatchedEntity{
			EntityType: ref.entityType,
			EntityID:   ref.id,
			Confidence: 100,
			MatchedBy:  model.MatchManual,
		})
	}
	return links
}
