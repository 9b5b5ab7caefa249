package storage

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubledger/tally/internal/model"
)

func childRow(parent model.Transaction, index int, amount, description string) model.Transaction {
	return model.Transaction{
		ID:            parent.ID + "-c" + description,
		ParentID:      parent.ID,
		ChildIndex:    index,
		SequenceRef:   parent.SequenceRef,
		ExecutionDate: parent.ExecutionDate,
		Amount:        decimal.RequireFromString(amount),
		Currency:      parent.Currency,
		AccountID:     parent.AccountID,
		Communication: description,
		Acceptance:    parent.Acceptance,
		Verification:  model.VerificationUnverified,
	}
}

func TestReplaceAllocations(t *testing.T) {
	store := setupStorage(t)
	ctx := context.Background()

	parent := statementRow("parent-1", "2025-00928")
	parent.Amount = decimal.RequireFromString("-120.00")
	parent.Fingerprint = parent.ComputeFingerprint()
	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{parent}))

	first := []model.Transaction{
		childRow(parent, 1, "-100.00", "catering"),
		childRow(parent, 2, "-20.00", "drinks"),
	}
	require.NoError(t, store.ReplaceAllocations(ctx, parent, first))

	got, err := store.GetAllocations(ctx, parent.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].ChildIndex)
	assert.Equal(t, 2, got[1].ChildIndex)
	assert.Equal(t, model.RoleChild, got[0].Role())

	storedParent, err := store.GetTransactionByID(ctx, parent.ID)
	require.NoError(t, err)
	assert.True(t, storedParent.IsParent)
	assert.Equal(t, 2, storedParent.ChildCount)
	assert.Equal(t, model.RoleParent, storedParent.Role())

	// Re-splitting supersedes the old set wholesale.
	second := []model.Transaction{
		childRow(parent, 1, "-60.00", "room"),
		childRow(parent, 2, "-30.00", "food"),
		childRow(parent, 3, "-30.00", "bar"),
	}
	require.NoError(t, store.ReplaceAllocations(ctx, parent, second))

	got, err = store.GetAllocations(ctx, parent.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, child := range got {
		assert.Equal(t, i+1, child.ChildIndex)
	}

	storedParent, err = store.GetTransactionByID(ctx, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, storedParent.ChildCount)
}

func TestReplaceAllocations_ChildMustReferenceParent(t *testing.T) {
	store := setupStorage(t)
	ctx := context.Background()

	parent := statementRow("parent-1", "2025-00928")
	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{parent}))

	stray := childRow(parent, 1, "-45.00", "stray")
	stray.ParentID = "someone-else"

	err := store.ReplaceAllocations(ctx, parent, []model.Transaction{stray})
	assert.ErrorIs(t, err, ErrInvalidTransaction)
}

func TestReplaceAllocations_PersistsChildLinks(t *testing.T) {
	store := setupStorage(t)
	ctx := context.Background()

	parent := statementRow("parent-1", "2025-00928")
	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{parent}))

	child := childRow(parent, 1, "-45.00", "fee share")
	child.MatchedEntities = []model.MatchedEntity{
		{EntityType: model.EntityMember, EntityID: "m-1", Confidence: 100, MatchedBy: model.MatchManual},
	}
	other := childRow(parent, 2, "-0.00", "rest")
	other.Amount = decimal.RequireFromString("-0.01")

	require.NoError(t, store.ReplaceAllocations(ctx, parent, []model.Transaction{child, other}))

	links, err := store.GetMatchedEntities(ctx, child.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, model.EntityMember, links[0].EntityType)
	assert.Equal(t, model.MatchManual, links[0].MatchedBy)
}
