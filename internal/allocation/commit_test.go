package allocation_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubledger/tally/internal/allocation"
	"github.com/clubledger/tally/internal/common"
	"github.com/clubledger/tally/internal/model"
	"github.com/clubledger/tally/internal/testutil"
)

func savedParent(t *testing.T, db *testutil.TestDB, amount string) model.Transaction {
	t.Helper()

	parent := model.Transaction{
		ID:               "parent-1",
		SequenceRef:      "2025-00928",
		ExecutionDate:    time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Amount:           decimal.RequireFromString(amount),
		Currency:         "EUR",
		AccountID:        "BE68539007547034",
		CounterpartyName: "Brasserie du Parc",
		Communication:    "soirée annuelle",
		Acceptance:       model.AcceptanceAccepted,
		Verification:     model.VerificationUnverified,
	}
	parent.Fingerprint = parent.ComputeFingerprint()
	require.NoError(t, db.Storage.SaveTransactions(context.Background(), []model.Transaction{parent}))
	return parent
}

func TestCommitAllocationSet_SignNormalization(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	parent := savedParent(t, db, "-120.00")

	// Lines entered as positive magnitudes against an expense parent.
	lines := []model.AllocationLine{
		{Description: "catering", Amount: decimal.RequireFromString("100.00")},
		{Description: "drinks", Amount: decimal.RequireFromString("20.00")},
	}

	children, err := allocation.CommitAllocationSet(ctx, db.Storage, parent, lines)
	require.NoError(t, err)
	require.Len(t, children, 2)

	sum := decimal.Zero
	for _, child := range children {
		assert.True(t, child.Amount.IsNegative(), "child amount %s should be negative", child.Amount)
		sum = sum.Add(child.Amount)
	}
	assert.True(t, sum.Equal(decimal.RequireFromString("-120.00")), "children sum to %s", sum)

	stored, err := db.Storage.GetAllocations(ctx, parent.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, 1, stored[0].ChildIndex)
	assert.Equal(t, "catering", stored[0].Communication)
}

func TestCommitAllocationSet_RevenueParentKeepsPositiveLines(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	parent := savedParent(t, db, "300.00")

	children, err := allocation.CommitAllocationSet(ctx, db.Storage, parent, []model.AllocationLine{
		{Description: "fees", Amount: decimal.RequireFromString("200.00")},
		{Description: "donations", Amount: decimal.RequireFromString("100.00")},
	})
	require.NoError(t, err)

	for _, child := range children {
		assert.True(t, child.Amount.IsPositive())
	}
}

func TestCommitAllocationSet_ResplitIdempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	parent := savedParent(t, db, "-120.00")

	lines := []model.AllocationLine{
		{Description: "catering", Amount: decimal.RequireFromString("100.00")},
		{Description: "drinks", Amount: decimal.RequireFromString("20.00")},
	}

	_, err := allocation.CommitAllocationSet(ctx, db.Storage, parent, lines)
	require.NoError(t, err)
	_, err = allocation.CommitAllocationSet(ctx, db.Storage, parent, lines)
	require.NoError(t, err)

	children, err := db.Storage.GetAllocations(ctx, parent.ID)
	require.NoError(t, err)
	assert.Len(t, children, 2)

	storedParent, err := db.Storage.GetTransactionByID(ctx, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, storedParent.ChildCount)
}

func TestCommitAllocationSet_ReconciledParentRejected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	parent := savedParent(t, db, "-120.00")
	parent.Verification = model.VerificationReconciled

	_, err := allocation.CommitAllocationSet(ctx, db.Storage, parent, []model.AllocationLine{
		{Description: "a", Amount: decimal.RequireFromString("60.00")},
		{Description: "b", Amount: decimal.RequireFromString("60.00")},
	})
	assert.ErrorIs(t, err, common.ErrAlreadyReconciled)
}

func TestCommitAllocationSet_InvalidSetRejected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	parent := savedParent(t, db, "-120.00")

	_, err := allocation.CommitAllocationSet(ctx, db.Storage, parent, []model.AllocationLine{
		{Description: "only line", Amount: decimal.RequireFromString("120.00")},
	})
	assert.Error(t, err)

	children, getErr := db.Storage.GetAllocations(ctx, parent.ID)
	require.NoError(t, getErr)
	assert.Empty(t, children)
}

func TestCommitAllocationSet_EntityLinksBecomeManualMatches(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	parent := savedParent(t, db, "-120.00")

	children, err := allocation.CommitAllocationSet(ctx, db.Storage, parent, []model.AllocationLine{
		{Description: "member share", Amount: decimal.RequireFromString("60.00"), MemberID: "m-1"},
		{Description: "event share", Amount: decimal.RequireFromString("60.00"), EventID: "e-1"},
	})
	require.NoError(t, err)

	links, err := db.Storage.GetMatchedEntities(ctx, children[0].ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, model.EntityMember, links[0].EntityType)
	assert.Equal(t, 100, links[0].Confidence)
	assert.Equal(t, model.MatchManual, links[0].MatchedBy)
}
