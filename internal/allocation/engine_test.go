package allocation

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubledger/tally/internal/model"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func lines(amounts ...string) []model.AllocationLine {
	out := make([]model.AllocationLine, 0, len(amounts))
	for i, a := range amounts {
		out = append(out, model.AllocationLine{
			Description: "line " + string(rune('A'+i)),
			Amount:      dec(a),
		})
	}
	return out
}

func violationCodes(r Result) []ViolationCode {
	codes := make([]ViolationCode, 0, len(r.Violations))
	for _, v := range r.Violations {
		codes = append(codes, v.Code)
	}
	return codes
}

func TestValidateAllocationSet(t *testing.T) {
	tests := []struct {
		name      string
		parent    string
		lines     []model.AllocationLine
		wantCodes []ViolationCode
	}{
		{
			name:   "valid two-line split",
			parent: "-120.00",
			lines:  lines("100.00", "20.00"),
		},
		{
			name:      "single line is not a split",
			parent:    "-120.00",
			lines:     lines("120.00"),
			wantCodes: []ViolationCode{TooFewLines},
		},
		{
			name:      "zero lines",
			parent:    "-120.00",
			lines:     nil,
			wantCodes: []ViolationCode{TooFewLines, SumMismatch},
		},
		{
			name:   "sum within rounding tolerance passes",
			parent: "-120.00",
			lines:  lines("100.00", "19.991"),
		},
		{
			name:   "sum short by 0.009 passes",
			parent: "100.00",
			lines:  lines("50.00", "49.991"),
		},
		{
			name:      "sum off by 0.02 fails",
			parent:    "-120.00",
			lines:     lines("100.00", "19.98"),
			wantCodes: []ViolationCode{SumMismatch},
		},
		{
			name:      "zero amount line",
			parent:    "-120.00",
			lines:     append(lines("120.00"), model.AllocationLine{Description: "free", Amount: decimal.Zero}),
			wantCodes: []ViolationCode{NonPositiveAmount},
		},
		{
			name:   "negative amount line",
			parent: "-120.00",
			lines: []model.AllocationLine{
				{Description: "a", Amount: dec("110.00")},
				{Description: "b", Amount: dec("-10.00")},
			},
			wantCodes: []ViolationCode{NonPositiveAmount},
		},
		{
			name:   "empty description",
			parent: "-120.00",
			lines: []model.AllocationLine{
				{Description: "  ", Amount: dec("60.00")},
				{Description: "b", Amount: dec("60.00")},
			},
			wantCodes: []ViolationCode{EmptyDescription},
		},
		{
			name:   "description too long",
			parent: "-120.00",
			lines: []model.AllocationLine{
				{Description: strings.Repeat("x", 201), Amount: dec("60.00")},
				{Description: "b", Amount: dec("60.00")},
			},
			wantCodes: []ViolationCode{DescriptionTooLong},
		},
		{
			name:   "notes too long",
			parent: "-120.00",
			lines: []model.AllocationLine{
				{Description: "a", Amount: dec("60.00"), Notes: strings.Repeat("n", 501)},
				{Description: "b", Amount: dec("60.00")},
			},
			wantCodes: []ViolationCode{NotesTooLong},
		},
		{
			name:   "all violations reported at once",
			parent: "-120.00",
			lines: []model.AllocationLine{
				{Description: "", Amount: dec("-5.00")},
			},
			wantCodes: []ViolationCode{TooFewLines, EmptyDescription, NonPositiveAmount, SumMismatch},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidateAllocationSet(dec(tt.parent), tt.lines)
			if len(tt.wantCodes) == 0 {
				assert.True(t, res.Valid(), "violations: %v", res.Violations)
				assert.NoError(t, res.Err())
				return
			}
			assert.False(t, res.Valid())
			assert.ElementsMatch(t, tt.wantCodes, violationCodes(res))
			assert.Error(t, res.Err())
		})
	}
}

func TestValidateAllocationSet_SumMismatchDifference(t *testing.T) {
	// Parent 120 against 119 allocated: 1.00 left unallocated.
	res := ValidateAllocationSet(dec("-120.00"), lines("100.00", "19.00"))
	require.Len(t, res.Violations, 1)

	v := res.Violations[0]
	assert.Equal(t, SumMismatch, v.Code)
	assert.True(t, v.Difference.Equal(dec("1.00")), "difference was %s", v.Difference)

	// Over-allocation reports a negative difference.
	res = ValidateAllocationSet(dec("-120.00"), lines("100.00", "22.00"))
	require.Len(t, res.Violations, 1)
	assert.True(t, res.Violations[0].Difference.Equal(dec("-2.00")))

	// Exactly one sum error, even when the gap is large.
	res = ValidateAllocationSet(dec("500.00"), lines("10.00", "10.00"))
	require.Len(t, res.Violations, 1)
	assert.Equal(t, SumMismatch, res.Violations[0].Code)
}

func TestRemainingAmount(t *testing.T) {
	tests := []struct {
		name   string
		parent string
		lines  []model.AllocationLine
		want   string
	}{
		{"no lines", "-120.00", nil, "120.00"},
		{"partial entry", "-120.00", lines("45.50"), "74.50"},
		{"fully allocated", "-120.00", lines("100.00", "20.00"), "0.00"},
		{"over-allocated", "80.00", lines("50.00", "40.00"), "-10.00"},
		{"sign of parent irrelevant", "120.00", lines("45.50"), "74.50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RemainingAmount(dec(tt.parent), tt.lines)
			assert.True(t, got.Equal(dec(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestCanSplit(t *testing.T) {
	tests := []struct {
		name string
		txn  model.Transaction
		want bool
	}{
		{
			name: "plain unverified transaction",
			txn:  model.Transaction{Verification: model.VerificationUnverified, Acceptance: model.AcceptanceAccepted},
			want: true,
		},
		{
			name: "reconciled transaction",
			txn:  model.Transaction{Verification: model.VerificationReconciled, Acceptance: model.AcceptanceAccepted},
			want: false,
		},
		{
			name: "refused transaction",
			txn:  model.Transaction{Verification: model.VerificationUnverified, Acceptance: model.AcceptanceRefused},
			want: false,
		},
		{
			name: "already split may be re-split",
			txn: model.Transaction{
				Verification: model.VerificationUnverified,
				Acceptance:   model.AcceptanceAccepted,
				IsParent:     true,
				ChildCount:   3,
			},
			want: true,
		},
		{
			name: "not-found transaction",
			txn:  model.Transaction{Verification: model.VerificationNotFound, Acceptance: model.AcceptancePending},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanSplit(tt.txn))
		})
	}
}
