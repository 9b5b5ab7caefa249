package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/clubledger/tally/internal/common"
	"github.com/clubledger/tally/internal/model"
	"github.com/clubledger/tally/internal/resolver"
	"github.com/clubledger/tally/internal/service"
)

// Importer ingests pre-parsed statement rows for one club. Imports against
// the same account are serialized (single writer per account id) so two
// concurrent batches can never both claim the same incomplete-reference
// match.
type Importer struct {
	store    service.Storage
	progress func()
	accounts map[string]*sync.Mutex
	mu       sync.Mutex
}

// NewImporter creates an importer on top of the given storage.
func NewImporter(store service.Storage) *Importer {
	return &Importer{
		store:    store,
		accounts: make(map[string]*sync.Mutex),
	}
}

// SetProgressFunc registers a callback invoked after each processed row,
// for progress reporting. Must be set before ImportBatch runs.
func (im *Importer) SetProgressFunc(fn func()) {
	im.progress = fn
}

// ImportResult summarizes one batch run.
type ImportResult struct {
	BatchID           string
	Imported          int
	DuplicatesSkipped int
	Upgraded          int
}

// ImportBatch processes a bounded set of raw rows against a single
// consistent snapshot of the account's existing records. Per row it trims
// the identity fields, fingerprints, skips exact duplicates, upgrades an
// incomplete-reference match in place, and inserts the rest under a fresh
// batch id.
//
// Cancellation is batch-level: on ctx cancellation the remaining rows are
// abandoned and already-committed rows stand.
func (im *Importer) ImportBatch(ctx context.Context, accountID string, rows []model.Transaction) (*ImportResult, error) {
	if len(rows) == 0 {
		return nil, common.ErrNoRows
	}
	for _, row := range rows {
		// Raw statement rows are unfingerprinted; a row that already
		// carries one is a stored record being re-fed.
		if row.Fingerprint != "" {
			return nil, fmt.Errorf("%w: row %s", common.ErrFingerprintFrozen, row.SequenceRef)
		}
	}

	lock := im.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := im.store.GetTransactionsByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing transactions: %w", err)
	}

	seen := make(map[string]bool, len(existing))
	for _, ex := range existing {
		seen[ex.Fingerprint] = true
	}

	result := &ImportResult{BatchID: uuid.NewString()}

	for _, row := range rows {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		trimIdentityFields(&row)
		row.AccountID = accountID
		fp := row.ComputeFingerprint()

		if seen[fp] {
			result.DuplicatesSkipped++
			im.step()
			continue
		}

		if !resolver.IsIncomplete(row.SequenceRef) {
			if ids := resolver.FindIncompleteMatches(row, existing); len(ids) > 0 {
				if len(ids) > 1 {
					slog.Warn("ambiguous incomplete-reference candidates, upgrading the first",
						"account_id", accountID,
						"sequence_ref", row.SequenceRef,
						"candidates", ids)
				}
				if err := im.store.UpdateSequenceRef(ctx, ids[0], row.SequenceRef); err != nil {
					return result, fmt.Errorf("failed to upgrade incomplete reference: %w", err)
				}
				for i := range existing {
					if existing[i].ID == ids[0] {
						existing[i].SequenceRef = row.SequenceRef
						break
					}
				}
				seen[fp] = true
				result.Upgraded++
				im.step()
				continue
			}
		}

		if row.ID == "" {
			row.ID = uuid.NewString()
		}
		row.Fingerprint = fp
		row.BatchID = result.BatchID
		if row.Acceptance == "" {
			row.Acceptance = model.AcceptancePending
		}
		if row.Verification == "" {
			row.Verification = model.VerificationUnverified
		}

		if err := im.store.SaveTransactions(ctx, []model.Transaction{row}); err != nil {
			return result, fmt.Errorf("failed to save transaction %s: %w", row.ID, err)
		}

		seen[fp] = true
		existing = append(existing, row)
		result.Imported++
		im.step()
	}

	if err := im.store.SaveImportBatch(ctx, model.ImportBatch{
		ID:                result.BatchID,
		AccountID:         accountID,
		Imported:          result.Imported,
		DuplicatesSkipped: result.DuplicatesSkipped,
		Upgraded:          result.Upgraded,
	}); err != nil {
		return result, fmt.Errorf("failed to record import batch: %w", err)
	}

	slog.Info("import batch complete",
		"account_id", accountID,
		"batch_id", result.BatchID,
		"imported", result.Imported,
		"duplicates_skipped", result.DuplicatesSkipped,
		"upgraded", result.Upgraded)

	return result, nil
}

func (im *Importer) step() {
	if im.progress != nil {
		im.progress()
	}
}

// accountLock returns the mutex serializing writes for one account.
func (im *Importer) accountLock(accountID string) *sync.Mutex {
	im.mu.Lock()
	defer im.mu.Unlock()

	lock, ok := im.accounts[accountID]
	if !ok {
		lock = &sync.Mutex{}
		im.accounts[accountID] = lock
	}
	return lock
}

// trimIdentityFields strips stray whitespace from the fields that feed the
// fingerprint, so whitespace-only Excel re-exports hash identically.
func trimIdentityFields(txn *model.Transaction) {
	txn.SequenceRef = strings.TrimSpace(txn.SequenceRef)
	txn.CounterpartyIBAN = strings.TrimSpace(txn.CounterpartyIBAN)
	txn.CounterpartyName = strings.TrimSpace(txn.CounterpartyName)
	txn.Communication = strings.TrimSpace(txn.Communication)
}
