package storage

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubledger/tally/internal/common"
	"github.com/clubledger/tally/internal/model"
	"github.com/clubledger/tally/internal/service"
)

func setupStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))

	t.Cleanup(func() { _ = store.Close() })
	return store
}

func statementRow(id, seqRef string) model.Transaction {
	txn := model.Transaction{
		ID:               id,
		SequenceRef:      seqRef,
		ExecutionDate:    time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		ValueDate:        time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
		Amount:           decimal.RequireFromString("-45.00"),
		Currency:         "EUR",
		AccountID:        "BE68539007547034",
		CounterpartyName: "ACME",
		Communication:    "invoice 12",
		Acceptance:       model.AcceptanceAccepted,
		Verification:     model.VerificationUnverified,
	}
	txn.Fingerprint = txn.ComputeFingerprint()
	return txn
}

func TestSaveAndGetTransaction(t *testing.T) {
	store := setupStorage(t)
	ctx := context.Background()

	want := statementRow("txn-1", "2025-00928")
	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{want}))

	got, err := store.GetTransactionByID(ctx, "txn-1")
	require.NoError(t, err)

	assert.Equal(t, want.SequenceRef, got.SequenceRef)
	assert.Equal(t, want.Fingerprint, got.Fingerprint)
	assert.True(t, want.Amount.Equal(got.Amount), "amount %s != %s", want.Amount, got.Amount)
	assert.Equal(t, want.CounterpartyName, got.CounterpartyName)
	assert.Equal(t, want.Acceptance, got.Acceptance)
	assert.Equal(t, want.Verification, got.Verification)
	assert.True(t, want.ExecutionDate.Equal(got.ExecutionDate))
	assert.Equal(t, model.RolePlain, got.Role())
}

func TestGetTransactionByID_NotFound(t *testing.T) {
	store := setupStorage(t)

	_, err := store.GetTransactionByID(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSaveTransactions_FingerprintIdempotent(t *testing.T) {
	store := setupStorage(t)
	ctx := context.Background()

	row := statementRow("txn-1", "2025-00928")
	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{row}))

	// A re-run of the same import carries the same fingerprint under a new
	// id; the insert is ignored.
	rerun := row
	rerun.ID = "txn-1-rerun"
	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{rerun}))

	all, err := store.GetTransactionsByAccount(ctx, row.AccountID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, "txn-1", all[0].ID)
}

func TestFindByFingerprint(t *testing.T) {
	store := setupStorage(t)
	ctx := context.Background()

	row := statementRow("txn-1", "2025-00928")
	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{row}))

	got, err := store.FindByFingerprint(ctx, row.AccountID, row.Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, "txn-1", got.ID)

	_, err = store.FindByFingerprint(ctx, row.AccountID, "no-such-fingerprint")
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = store.FindByFingerprint(ctx, "BE71096123456769", row.Fingerprint)
	assert.ErrorIs(t, err, common.ErrNotFound, "fingerprints are scoped per account")
}

func TestUpdateSequenceRef(t *testing.T) {
	store := setupStorage(t)
	ctx := context.Background()

	row := statementRow("txn-1", "2025-")
	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{row}))

	require.NoError(t, store.UpdateSequenceRef(ctx, "txn-1", "2025-00928"))

	got, err := store.GetTransactionByID(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, "2025-00928", got.SequenceRef)
	// The fingerprint was computed at ingestion and stays put.
	assert.Equal(t, row.Fingerprint, got.Fingerprint)

	assert.ErrorIs(t, store.UpdateSequenceRef(ctx, "missing", "2025-1"), common.ErrNotFound)
}

func TestStatusTransitions(t *testing.T) {
	store := setupStorage(t)
	ctx := context.Background()

	row := statementRow("txn-1", "2025-00928")
	row.Acceptance = model.AcceptancePending
	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{row}))

	require.NoError(t, store.UpdateVerificationStatus(ctx, "txn-1", model.VerificationNotFound))
	require.NoError(t, store.UpdateVerificationStatus(ctx, "txn-1", model.VerificationUnverified))
	require.NoError(t, store.UpdateVerificationStatus(ctx, "txn-1", model.VerificationReconciled))

	// Reconciled is terminal.
	err := store.UpdateVerificationStatus(ctx, "txn-1", model.VerificationUnverified)
	assert.ErrorIs(t, err, common.ErrInvalidTransition)

	require.NoError(t, store.UpdateAcceptanceStatus(ctx, "txn-1", model.AcceptanceAccepted))
	err = store.UpdateAcceptanceStatus(ctx, "txn-1", model.AcceptanceRefused)
	assert.ErrorIs(t, err, common.ErrInvalidTransition)
}

func TestAssignAccountCodeAndHistorySample(t *testing.T) {
	store := setupStorage(t)
	ctx := context.Background()

	coded := statementRow("txn-1", "2025-00901")
	uncoded := statementRow("txn-2", "2025-00902")
	uncoded.Communication = "different movement"
	uncoded.Fingerprint = uncoded.ComputeFingerprint()
	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{coded, uncoded}))

	require.NoError(t, store.AssignAccountCode(ctx, "txn-1", "604000"))

	sample, err := store.GetHistorySample(ctx, coded.AccountID, 10)
	require.NoError(t, err)
	require.Len(t, sample, 1)
	assert.Equal(t, "txn-1", sample[0].ID)
	assert.Equal(t, "604000", sample[0].AccountCode)
}

func TestGetTransactions_Filter(t *testing.T) {
	store := setupStorage(t)
	ctx := context.Background()

	first := statementRow("txn-1", "2025-00901")
	second := statementRow("txn-2", "2025-00902")
	second.Communication = "later movement"
	second.ExecutionDate = first.ExecutionDate.AddDate(0, 1, 0)
	second.Fingerprint = second.ComputeFingerprint()
	second.Verification = model.VerificationReconciled
	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{first, second}))

	reconciled, err := store.GetTransactions(ctx, service.TransactionFilter{
		AccountID:    first.AccountID,
		Verification: model.VerificationReconciled,
	})
	require.NoError(t, err)
	require.Len(t, reconciled, 1)
	assert.Equal(t, "txn-2", reconciled[0].ID)

	cutoff := first.ExecutionDate.AddDate(0, 0, 7)
	older, err := store.GetTransactions(ctx, service.TransactionFilter{EndDate: &cutoff})
	require.NoError(t, err)
	require.Len(t, older, 1)
	assert.Equal(t, "txn-1", older[0].ID)
}

func TestImportBatchRoundTrip(t *testing.T) {
	store := setupStorage(t)
	ctx := context.Background()

	batch := model.ImportBatch{
		ID:                "batch-1",
		AccountID:         "BE68539007547034",
		Imported:          2,
		DuplicatesSkipped: 1,
		Upgraded:          1,
	}
	require.NoError(t, store.SaveImportBatch(ctx, batch))

	got, err := store.GetImportBatch(ctx, "batch-1")
	require.NoError(t, err)
	assert.Equal(t, batch.Imported, got.Imported)
	assert.Equal(t, batch.DuplicatesSkipped, got.DuplicatesSkipped)
	assert.Equal(t, batch.Upgraded, got.Upgraded)

	_, err = store.GetImportBatch(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)

	// Batch ids are unique; re-recording one is a caller bug.
	err = store.SaveImportBatch(ctx, batch)
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)
}
