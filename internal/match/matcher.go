// Package match attaches confidence-scored links from transactions to
// business entities supplied by the caller.
package match

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clubledger/tally/internal/model"
)

// Signal weights. Signals are independent, combine additively, and the total
// is clamped to 100.
const (
	amountWeight        = 40
	nameExactWeight     = 30
	nameContainsWeight  = 20
	nameTokenWeight     = 10
	communicationWeight = 20
	proximityWeight     = 10
)

// DefaultMinConfidence filters out noise matches.
const DefaultMinConfidence = 30

// DefaultDateWindow bounds the temporal-proximity signal.
const DefaultDateWindow = 14 * 24 * time.Hour

// Candidate is one entity the caller considers a possible counterpart for a
// transaction. The pool is already filtered by date/amount window; the
// matcher never queries storage itself.
type Candidate struct {
	Date       *time.Time
	Amount     *decimal.Decimal
	Fields     model.CustomFields
	EntityType model.EntityType
	EntityID   string
	Name       string
	Keywords   []string
}

// Options tunes the matcher. The zero value picks the defaults.
type Options struct {
	Now           time.Time
	MinConfidence int
	DateWindow    time.Duration
}

func (o Options) withDefaults() Options {
	if o.MinConfidence == 0 {
		o.MinConfidence = DefaultMinConfidence
	}
	if o.DateWindow == 0 {
		o.DateWindow = DefaultDateWindow
	}
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	return o
}

// MatchEntities scores every candidate against the transaction and returns
// all matches at or above the confidence floor, confidence-descending.
// Multiple entity types may match the same transaction; acceptance
// thresholds are the caller's decision.
//
// Matching is idempotent: the same transaction and pool always produce the
// same set with the same confidences.
func MatchEntities(txn model.Transaction, pool []Candidate, opts Options) []model.MatchedEntity {
	opts = opts.withDefaults()

	var matches []model.MatchedEntity
	for _, cand := range pool {
		confidence := score(txn, cand, opts)
		if confidence < opts.MinConfidence {
			continue
		}
		matches = append(matches, model.MatchedEntity{
			EntityType: cand.EntityType,
			EntityID:   cand.EntityID,
			Name:       cand.Name,
			Confidence: confidence,
			MatchedAt:  opts.Now,
			MatchedBy:  model.MatchAuto,
		})
	}

	sortMatches(matches)
	return matches
}

// MergeMatches folds newly computed matches into an existing list, deduping
// by (entity type, entity id). The higher confidence wins, and a manual
// link is never downgraded or replaced by a later automatic pass.
func MergeMatches(existing, incoming []model.MatchedEntity) []model.MatchedEntity {
	byKey := make(map[string]model.MatchedEntity, len(existing))
	order := make([]string, 0, len(existing)+len(incoming))

	for _, m := range existing {
		key := m.Key()
		if _, seen := byKey[key]; !seen {
			order = append(order, key)
		}
		byKey[key] = m
	}

	for _, inc := range incoming {
		key := inc.Key()
		prior, seen := byKey[key]
		if !seen {
			byKey[key] = inc
			order = append(order, key)
			continue
		}

		switch {
		case prior.MatchedBy == model.MatchManual && inc.MatchedBy != model.MatchManual:
			// Manual override stands.
		case inc.MatchedBy == model.MatchManual && prior.MatchedBy != model.MatchManual:
			byKey[key] = inc
		case inc.Confidence > prior.Confidence:
			byKey[key] = inc
		case inc.Confidence == prior.Confidence && inc.MatchedAt.After(prior.MatchedAt):
			byKey[key] = inc
		}
	}

	merged := make([]model.MatchedEntity, 0, len(order))
	for _, key := range order {
		merged = append(merged, byKey[key])
	}
	sortMatches(merged)
	return merged
}

// score combines the independent signals for one candidate.
func score(txn model.Transaction, cand Candidate, opts Options) int {
	total := 0

	if cand.Amount != nil && cand.Amount.Abs().Equal(txn.Amount.Abs()) {
		total += amountWeight
	}

	total += nameScore(txn.CounterpartyName, cand.Name)

	needles := append([]string{cand.Name}, cand.Keywords...)
	needles = append(needles, fieldValues(cand.Fields)...)
	if containsAny(txn.Communication, needles) {
		total += communicationWeight
	}

	if cand.Date != nil && !txn.ExecutionDate.IsZero() {
		gap := txn.ExecutionDate.Sub(*cand.Date)
		if gap < 0 {
			gap = -gap
		}
		if gap <= opts.DateWindow {
			total += proximityWeight
		}
	}

	if total > 100 {
		total = 100
	}
	return total
}

// nameScore grades counterparty-name similarity: exact normalized equality,
// containment, then shared-token overlap.
func nameScore(counterparty, candidate string) int {
	a := normalize(counterparty)
	b := normalize(candidate)
	if a == "" || b == "" {
		return 0
	}

	if a == b {
		return nameExactWeight
	}
	if len(b) >= 3 && strings.Contains(a, b) || len(a) >= 3 && strings.Contains(b, a) {
		return nameContainsWeight
	}

	tokens := make(map[string]bool)
	for _, tok := range strings.Fields(a) {
		if len(tok) >= 3 {
			tokens[tok] = true
		}
	}
	for _, tok := range strings.Fields(b) {
		if tokens[tok] {
			return nameTokenWeight
		}
	}
	return 0
}

// fieldValues flattens a candidate's custom fields into containment needles:
// a member number or registration answer quoted in the statement
// communication is strong evidence. Numbers are skipped, they collide with
// amounts and dates too easily.
func fieldValues(fields model.CustomFields) []string {
	var values []string
	for _, f := range fields.Fields {
		switch f.Kind {
		case model.FieldText:
			values = append(values, f.Text)
		case model.FieldSelect:
			values = append(values, f.Selected)
		case model.FieldMultiSelect:
			values = append(values, f.Multi...)
		case model.FieldNumber:
		}
	}
	for _, v := range fields.Extensions {
		values = append(values, v)
	}
	return values
}

// containsAny reports whether any needle appears in the haystack after
// normalization. Needles shorter than 3 runes are ignored as too noisy.
func containsAny(haystack string, needles []string) bool {
	h := normalize(haystack)
	if h == "" {
		return false
	}
	for _, needle := range needles {
		n := normalize(needle)
		if len(n) >= 3 && strings.Contains(h, n) {
			return true
		}
	}
	return false
}

// normalize lower-cases and collapses whitespace.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// sortMatches orders by confidence descending, then entity type and id for a
// stable, documented ordering.
func sortMatches(matches []model.MatchedEntity) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		if matches[i].EntityType != matches[j].EntityType {
			return matches[i].EntityType < matches[j].EntityType
		}
		return matches[i].EntityID < matches[j].EntityID
	})
}
