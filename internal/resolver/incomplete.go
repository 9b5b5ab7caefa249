// Package resolver merges partially-known sequence references with later
// complete arrivals of the same movement.
//
// Some statement exports deliver a reference as a bare year stub ("2025-")
// before a later export carries the fully-numbered reference ("2025-00928")
// for the same movement. Importing both naively creates a duplicate. Because
// the stub carries no reliable unique key, matching uses an exact conjunction
// of four independent fields as a surrogate key: a near-miss stays unmerged
// rather than risk merging two distinct movements.
package resolver

import (
	"regexp"
	"time"

	"github.com/clubledger/tally/internal/model"
)

// incompleteRef matches exactly a 4-digit year followed by a separator and
// nothing else.
var incompleteRef = regexp.MustCompile(`^\d{4}[-/]$`)

// IsIncomplete reports whether a sequence reference is a year-only stub.
func IsIncomplete(seqRef string) bool {
	return incompleteRef.MatchString(seqRef)
}

// FindIncompleteMatch scans existing records for the incomplete record that
// the new, complete record upgrades. It returns the existing record's id and
// true on a match. Only meaningful when newTxn carries a complete reference;
// an incomplete newTxn never matches.
//
// When several existing records satisfy all criteria the first in iteration
// order wins; callers wanting to surface the ambiguity should use
// FindIncompleteMatches.
func FindIncompleteMatch(newTxn model.Transaction, existing []model.Transaction) (string, bool) {
	ids := FindIncompleteMatches(newTxn, existing)
	if len(ids) == 0 {
		return "", false
	}
	return ids[0], true
}

// FindIncompleteMatches returns the ids of every incomplete existing record
// matching the new record on execution date (date-only; the criterion is
// skipped if either date is unknown), exact signed amount, exact counterparty
// name and exact communication text. More than one id is a data-quality
// problem for the caller to surface, not an error.
func FindIncompleteMatches(newTxn model.Transaction, existing []model.Transaction) []string {
	if IsIncomplete(newTxn.SequenceRef) {
		return nil
	}

	var ids []string
	for _, ex := range existing {
		if !IsIncomplete(ex.SequenceRef) {
			continue
		}
		if !sameDay(newTxn.ExecutionDate, ex.ExecutionDate) {
			continue
		}
		if !newTxn.Amount.Equal(ex.Amount) {
			continue
		}
		if newTxn.CounterpartyName != ex.CounterpartyName {
			continue
		}
		if newTxn.Communication != ex.Communication {
			continue
		}
		ids = append(ids, ex.ID)
	}
	return ids
}

// sameDay compares dates ignoring time-of-day. An unknown date on either
// side skips the criterion rather than failing the match.
func sameDay(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return true
	}
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
