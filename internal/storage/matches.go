package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/clubledger/tally/internal/model"
)

// SaveMatchedEntities replaces the matched-entity set of a transaction.
// Callers merge first (match.MergeMatches); this layer only persists the
// resulting set.
func (s *SQLiteStorage) SaveMatchedEntities(ctx context.Context, transactionID string, matches []model.MatchedEntity) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(transactionID, "transactionID"); err != nil {
		return err
	}
	if err := validateMatches(matches); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM matched_entities WHERE transaction_id = ?", transactionID); err != nil {
		return fmt.Errorf("failed to delete previous matches: %w", err)
	}

	if err := saveMatchedEntitiesTx(ctx, tx, transactionID, matches); err != nil {
		return err
	}

	return tx.Commit()
}

func saveMatchedEntitiesTx(ctx context.Context, tx *sql.Tx, transactionID string, matches []model.MatchedEntity) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO matched_entities (transaction_id, entity_type, entity_id, name, confidence, matched_at, matched_by, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, m := range matches {
		if _, err := stmt.ExecContext(ctx,
			transactionID,
			string(m.EntityType),
			m.EntityID,
			m.Name,
			m.Confidence,
			nullTime(m.MatchedAt),
			string(m.MatchedBy),
			m.Notes,
		); err != nil {
			return fmt.Errorf("failed to insert match %s/%s: %w", m.EntityType, m.EntityID, err)
		}
	}
	return nil
}

// GetMatchedEntities returns a transaction's links, confidence descending.
func (s *SQLiteStorage) GetMatchedEntities(ctx context.Context, transactionID string) ([]model.MatchedEntity, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(transactionID, "transactionID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_type, entity_id, name, confidence, matched_at, matched_by, notes
		FROM matched_entities WHERE transaction_id = ?
		ORDER BY confidence DESC, entity_type, entity_id`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var matches []model.MatchedEntity
	for rows.Next() {
		var (
			m          model.MatchedEntity
			entityType string
			matchedAt  sql.NullTime
			matchedBy  string
		)
		if err := rows.Scan(&entityType, &m.EntityID, &m.Name, &m.Confidence, &matchedAt, &matchedBy, &m.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		m.EntityType = model.EntityType(entityType)
		m.MatchedAt = matchedAt.Time
		m.MatchedBy = model.MatchSource(matchedBy)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate matches: %w", err)
	}

	return matches, nil
}
