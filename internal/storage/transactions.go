package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/clubledger/tally/internal/common"
	"github.com/clubledger/tally/internal/model"
	"github.com/clubledger/tally/internal/reconcile"
	"github.com/clubledger/tally/internal/service"
)

// transactionColumns is the canonical column list for transaction scans.
const transactionColumns = `id, fingerprint, sequence_ref, execution_date, value_date, amount,
	currency, account_id, counterparty_iban, counterparty_name, communication,
	acceptance, verification, is_parent, parent_transaction_id, child_index,
	child_count, batch_id, account_code, category, notes`

const insertTransactionSQL = `
	INSERT OR IGNORE INTO transactions (
		id, fingerprint, sequence_ref, execution_date, value_date, amount,
		currency, account_id, counterparty_iban, counterparty_name, communication,
		acceptance, verification, is_parent, parent_transaction_id, child_index,
		child_count, batch_id, account_code, category, notes
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// SaveTransactions saves multiple transactions to the database. Rows whose
// fingerprint already exists are ignored, which keeps re-running an import
// batch idempotent.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransactions(transactions); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := saveTransactionsTx(ctx, tx, transactions); err != nil {
		return err
	}

	return tx.Commit()
}

func saveTransactionsTx(ctx context.Context, tx *sql.Tx, transactions []model.Transaction) error {
	stmt, err := tx.PrepareContext(ctx, insertTransactionSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, txn := range transactions {
		if _, err := stmt.ExecContext(ctx, insertArgs(txn)...); err != nil {
			return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
		}
	}
	return nil
}

func insertArgs(txn model.Transaction) []any {
	return []any{
		txn.ID,
		nullString(txn.Fingerprint),
		txn.SequenceRef,
		nullTime(txn.ExecutionDate),
		nullTime(txn.ValueDate),
		txn.Amount.String(),
		txn.Currency,
		txn.AccountID,
		txn.CounterpartyIBAN,
		txn.CounterpartyName,
		txn.Communication,
		string(txn.Acceptance),
		string(txn.Verification),
		txn.IsParent,
		nullString(txn.ParentID),
		txn.ChildIndex,
		txn.ChildCount,
		txn.BatchID,
		txn.AccountCode,
		txn.Category,
		txn.Notes,
	}
}

// GetTransactionByID retrieves a transaction with its matched entities.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM transactions WHERE id = ?", transactionColumns), id)

	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	matches, err := s.GetMatchedEntities(ctx, id)
	if err != nil {
		return nil, err
	}
	txn.MatchedEntities = matches

	return txn, nil
}

// GetTransactionsByAccount returns every transaction of one source account,
// oldest first. This is the snapshot the importer resolves against.
func (s *SQLiteStorage) GetTransactionsByAccount(ctx context.Context, accountID string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(accountID, "accountID"); err != nil {
		return nil, err
	}

	return s.queryTransactions(ctx,
		fmt.Sprintf("SELECT %s FROM transactions WHERE account_id = ? ORDER BY execution_date, created_at, id", transactionColumns),
		accountID)
}

// GetTransactionsByBatch returns every transaction imported under a batch id.
func (s *SQLiteStorage) GetTransactionsByBatch(ctx context.Context, batchID string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(batchID, "batchID"); err != nil {
		return nil, err
	}

	return s.queryTransactions(ctx,
		fmt.Sprintf("SELECT %s FROM transactions WHERE batch_id = ? ORDER BY execution_date, id", transactionColumns),
		batchID)
}

// GetTransactions returns transactions matching the filter.
func (s *SQLiteStorage) GetTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM transactions WHERE 1=1", transactionColumns)
	var args []any

	if filter.AccountID != "" {
		query += " AND account_id = ?"
		args = append(args, filter.AccountID)
	}
	if filter.BatchID != "" {
		query += " AND batch_id = ?"
		args = append(args, filter.BatchID)
	}
	if filter.Verification != "" {
		query += " AND verification = ?"
		args = append(args, string(filter.Verification))
	}
	if filter.Acceptance != "" {
		query += " AND acceptance = ?"
		args = append(args, string(filter.Acceptance))
	}
	if filter.StartDate != nil {
		query += " AND execution_date >= ?"
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		query += " AND execution_date <= ?"
		args = append(args, *filter.EndDate)
	}

	query += " ORDER BY execution_date DESC, id"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	return s.queryTransactions(ctx, query, args...)
}

// FindByFingerprint returns the transaction carrying a fingerprint, or
// common.ErrNotFound.
func (s *SQLiteStorage) FindByFingerprint(ctx context.Context, accountID, fp string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(accountID, "account id"); err != nil {
		return nil, err
	}
	if err := validateString(fp, "fingerprint"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM transactions WHERE account_id = ? AND fingerprint = ?", transactionColumns),
		accountID, fp)

	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: fingerprint %s", common.ErrNotFound, fp)
	}
	return txn, err
}

// UpdateSequenceRef upgrades an incomplete reference in place. The stored
// fingerprint stays as computed at ingestion.
func (s *SQLiteStorage) UpdateSequenceRef(ctx context.Context, id, seqRef string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	if err := validateString(seqRef, "seqRef"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE transactions SET sequence_ref = ? WHERE id = ?", seqRef, id)
	if err != nil {
		return fmt.Errorf("failed to update sequence reference: %w", err)
	}
	return requireOneRow(result, id)
}

// AssignAccountCode writes a confirmed account code onto a transaction.
func (s *SQLiteStorage) AssignAccountCode(ctx context.Context, id, code string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE transactions SET account_code = ? WHERE id = ?", code, id)
	if err != nil {
		return fmt.Errorf("failed to assign account code: %w", err)
	}
	return requireOneRow(result, id)
}

// UpdateVerificationStatus applies a verification transition, rejecting
// illegal ones with common.ErrInvalidTransition.
func (s *SQLiteStorage) UpdateVerificationStatus(ctx context.Context, id string, status model.VerificationStatus) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	current, err := s.GetTransactionByID(ctx, id)
	if err != nil {
		return err
	}
	if !reconcile.CanTransitionVerification(current.Verification, status) {
		return fmt.Errorf("%w: verification %s -> %s", common.ErrInvalidTransition, current.Verification, status)
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE transactions SET verification = ? WHERE id = ?", string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update verification status: %w", err)
	}
	return requireOneRow(result, id)
}

// UpdateAcceptanceStatus applies an acceptance transition, rejecting illegal
// ones with common.ErrInvalidTransition.
func (s *SQLiteStorage) UpdateAcceptanceStatus(ctx context.Context, id string, status model.AcceptanceStatus) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	current, err := s.GetTransactionByID(ctx, id)
	if err != nil {
		return err
	}
	if !reconcile.CanTransitionAcceptance(current.Acceptance, status) {
		return fmt.Errorf("%w: acceptance %s -> %s", common.ErrInvalidTransition, current.Acceptance, status)
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE transactions SET acceptance = ? WHERE id = ?", string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update acceptance status: %w", err)
	}
	return requireOneRow(result, id)
}

// GetHistorySample returns the most recently coded transactions of an
// account, for the suggestion engine's history evidence.
func (s *SQLiteStorage) GetHistorySample(ctx context.Context, accountID string, limit int) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(accountID, "accountID"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 200
	}

	return s.queryTransactions(ctx,
		fmt.Sprintf(`SELECT %s FROM transactions
			WHERE account_id = ? AND account_code != ''
			ORDER BY execution_date DESC, id LIMIT ?`, transactionColumns),
		accountID, limit)
}

// SaveImportBatch records the provenance of one import run.
func (s *SQLiteStorage) SaveImportBatch(ctx context.Context, batch model.ImportBatch) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(batch.ID, "batch.ID"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO import_batches (id, account_id, imported, duplicates_skipped, upgraded)
		VALUES (?, ?, ?, ?, ?)`,
		batch.ID, batch.AccountID, batch.Imported, batch.DuplicatesSkipped, batch.Upgraded)
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: import batch %s", common.ErrDuplicateEntry, batch.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to save import batch: %w", err)
	}
	return nil
}

// GetImportBatch retrieves one import batch record.
func (s *SQLiteStorage) GetImportBatch(ctx context.Context, id string) (*model.ImportBatch, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var batch model.ImportBatch
	var createdAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, account_id, imported, duplicates_skipped, upgraded, created_at
		FROM import_batches WHERE id = ?`, id).
		Scan(&batch.ID, &batch.AccountID, &batch.Imported, &batch.DuplicatesSkipped, &batch.Upgraded, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: import batch %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import batch: %w", err)
	}
	batch.CreatedAt = createdAt.Time

	return &batch, nil
}

func (s *SQLiteStorage) queryTransactions(ctx context.Context, query string, args ...any) ([]model.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}

	return transactions, nil
}

// scanner abstracts sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (*model.Transaction, error) {
	var (
		txn           model.Transaction
		fingerprint   sql.NullString
		executionDate sql.NullTime
		valueDate     sql.NullTime
		parentID      sql.NullString
		amount        string
		acceptance    string
		verification  string
	)

	err := row.Scan(
		&txn.ID,
		&fingerprint,
		&txn.SequenceRef,
		&executionDate,
		&valueDate,
		&amount,
		&txn.Currency,
		&txn.AccountID,
		&txn.CounterpartyIBAN,
		&txn.CounterpartyName,
		&txn.Communication,
		&acceptance,
		&verification,
		&txn.IsParent,
		&parentID,
		&txn.ChildIndex,
		&txn.ChildCount,
		&txn.BatchID,
		&txn.AccountCode,
		&txn.Category,
		&txn.Notes,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	txn.Fingerprint = fingerprint.String
	txn.ExecutionDate = executionDate.Time
	txn.ValueDate = valueDate.Time
	txn.ParentID = parentID.String
	txn.Acceptance = model.AcceptanceStatus(acceptance)
	txn.Verification = model.VerificationStatus(verification)

	txn.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored amount %q: %w", amount, err)
	}

	return &txn, nil
}

func requireOneRow(result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: transaction %s", common.ErrNotFound, id)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
