package resolver

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/clubledger/tally/internal/model"
)

func TestIsIncomplete(t *testing.T) {
	tests := []struct {
		seqRef string
		want   bool
	}{
		{"2025-", true},
		{"2025/", true},
		{"2025-00928", false},
		{"2025", false},
		{"202-", false},
		{"20255-", false},
		{"", false},
		{"abcd-", false},
		{" 2025-", false},
	}

	for _, tt := range tests {
		t.Run(tt.seqRef, func(t *testing.T) {
			assert.Equal(t, tt.want, IsIncomplete(tt.seqRef))
		})
	}
}

func incompleteFixture() model.Transaction {
	return model.Transaction{
		ID:               "existing-1",
		SequenceRef:      "2025-",
		ExecutionDate:    time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Amount:           decimal.RequireFromString("-45.00"),
		CounterpartyName: "ACME",
		Communication:    "invoice 12",
	}
}

func completeFixture() model.Transaction {
	txn := incompleteFixture()
	txn.ID = "incoming"
	txn.SequenceRef = "2025-00928"
	return txn
}

func TestFindIncompleteMatch(t *testing.T) {
	existing := []model.Transaction{incompleteFixture()}

	id, ok := FindIncompleteMatch(completeFixture(), existing)
	assert.True(t, ok)
	assert.Equal(t, "existing-1", id)
}

func TestFindIncompleteMatch_Precision(t *testing.T) {
	existing := []model.Transaction{incompleteFixture()}

	tests := []struct {
		mutate func(*model.Transaction)
		name   string
	}{
		{
			name:   "different amount",
			mutate: func(txn *model.Transaction) { txn.Amount = decimal.RequireFromString("-45.01") },
		},
		{
			name:   "different counterparty",
			mutate: func(txn *model.Transaction) { txn.CounterpartyName = "ACME SA" },
		},
		{
			name:   "different communication",
			mutate: func(txn *model.Transaction) { txn.Communication = "invoice 13" },
		},
		{
			name:   "different date",
			mutate: func(txn *model.Transaction) { txn.ExecutionDate = txn.ExecutionDate.AddDate(0, 0, 1) },
		},
		{
			name:   "opposite sign",
			mutate: func(txn *model.Transaction) { txn.Amount = txn.Amount.Neg() },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := completeFixture()
			tt.mutate(&txn)
			_, ok := FindIncompleteMatch(txn, existing)
			assert.False(t, ok)
		})
	}
}

func TestFindIncompleteMatch_SkipsCompleteRecords(t *testing.T) {
	complete := completeFixture()
	complete.ID = "existing-complete"
	existing := []model.Transaction{complete}

	_, ok := FindIncompleteMatch(completeFixture(), existing)
	assert.False(t, ok)
}

func TestFindIncompleteMatch_IncompleteNewRecordNeverMatches(t *testing.T) {
	existing := []model.Transaction{incompleteFixture()}

	_, ok := FindIncompleteMatch(incompleteFixture(), existing)
	assert.False(t, ok)
}

func TestFindIncompleteMatch_UnknownDateSkipsCriterion(t *testing.T) {
	ex := incompleteFixture()
	ex.ExecutionDate = time.Time{}
	existing := []model.Transaction{ex}

	id, ok := FindIncompleteMatch(completeFixture(), existing)
	assert.True(t, ok)
	assert.Equal(t, "existing-1", id)
}

func TestFindIncompleteMatch_TimeOfDayIgnored(t *testing.T) {
	existing := []model.Transaction{incompleteFixture()}

	txn := completeFixture()
	txn.ExecutionDate = time.Date(2025, 3, 1, 23, 15, 0, 0, time.UTC)

	_, ok := FindIncompleteMatch(txn, existing)
	assert.True(t, ok)
}

func TestFindIncompleteMatches_SurfacesAmbiguity(t *testing.T) {
	first := incompleteFixture()
	second := incompleteFixture()
	second.ID = "existing-2"
	existing := []model.Transaction{first, second}

	ids := FindIncompleteMatches(completeFixture(), existing)
	assert.Equal(t, []string{"existing-1", "existing-2"}, ids)

	// First in iteration order still wins for the single-result form.
	id, ok := FindIncompleteMatch(completeFixture(), existing)
	assert.True(t, ok)
	assert.Equal(t, "existing-1", id)
}
