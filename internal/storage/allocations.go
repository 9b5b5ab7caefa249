package storage

import (
	"context"
	"fmt"

	"github.com/clubledger/tally/internal/model"
)

// ReplaceAllocations atomically supersedes a parent's allocation set: the
// old children are deleted, the new ones inserted, and the parent's split
// flags updated, all in one database transaction. Children are never
// individually patched.
func (s *SQLiteStorage) ReplaceAllocations(ctx context.Context, parent model.Transaction, children []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(&parent); err != nil {
		return err
	}
	if err := validateTransactions(children); err != nil {
		return err
	}
	for i, child := range children {
		if child.ParentID != parent.ID {
			return fmt.Errorf("%w: child %d does not reference parent %s", ErrInvalidTransaction, i+1, parent.ID)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM matched_entities WHERE transaction_id IN (SELECT id FROM transactions WHERE parent_transaction_id = ?)",
		parent.ID); err != nil {
		return fmt.Errorf("failed to delete superseded child matches: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM transactions WHERE parent_transaction_id = ?", parent.ID); err != nil {
		return fmt.Errorf("failed to delete superseded children: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		"UPDATE transactions SET is_parent = 1, child_count = ? WHERE id = ?",
		len(children), parent.ID)
	if err != nil {
		return fmt.Errorf("failed to update parent flags: %w", err)
	}
	if err := requireOneRow(result, parent.ID); err != nil {
		return err
	}

	if err := saveTransactionsTx(ctx, tx, children); err != nil {
		return err
	}

	for _, child := range children {
		if len(child.MatchedEntities) == 0 {
			continue
		}
		if err := saveMatchedEntitiesTx(ctx, tx, child.ID, child.MatchedEntities); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetAllocations returns a parent's children ordered by child index.
func (s *SQLiteStorage) GetAllocations(ctx context.Context, parentID string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(parentID, "parentID"); err != nil {
		return nil, err
	}

	return s.queryTransactions(ctx,
		fmt.Sprintf("SELECT %s FROM transactions WHERE parent_transaction_id = ? ORDER BY child_index", transactionColumns),
		parentID)
}
