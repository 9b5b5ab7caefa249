// Package suggest ranks accounting-code candidates from a priority cascade
// of evidence sources.
//
// The engine never decides: it returns every candidate with its evidence
// spelled out, because financial suggestions must be auditable. Only a human
// confirmation (or an external auto-accept policy) writes a code onto a
// transaction.
package suggest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/clubledger/tally/internal/model"
)

// Confidence bands per evidence source.
const (
	linkedEntityConfidence = 95
	historyBaseConfidence  = 50
	historyStepConfidence  = 10
	historyMaxConfidence   = 90
	counterpartyConfidence = 60
	keywordConfidence      = 50
	amountConfidence       = 30
)

// sourcePriority orders the evidence cascade. Ties between sources are
// broken by this order, not by confidence magnitude alone.
var sourcePriority = map[model.SuggestionSource]int{
	model.SourceLinkedEntity: 5,
	model.SourceHistory:      4,
	model.SourceCounterparty: 3,
	model.SourceKeyword:      2,
	model.SourceAmount:       1,
}

// CodedTransaction is one historically-coded transaction from the sample the
// caller supplies.
type CodedTransaction struct {
	Counterparty string
	AccountCode  string
	Label        string
	Amount       decimal.Decimal
}

// KeywordRule maps a keyword to an account code. The table is caller-owned;
// this engine only consults it.
type KeywordRule struct {
	Keyword string
	Code    string
	Label   string
}

// AmountRule proposes a code for a recurring known amount, such as a fixed
// membership fee.
type AmountRule struct {
	Code   string
	Label  string
	Amount decimal.Decimal
}

// LinkedEntity is an event or expense claim already linked to the
// transaction that itself carries a canonical account code.
type LinkedEntity struct {
	Type        model.EntityType
	Name        string
	AccountCode string
	Label       string
}

// Context bundles everything the engine may consult. All reads are supplied
// by the caller up front; the engine performs no storage queries.
type Context struct {
	Linked           *LinkedEntity
	Counterparty     string
	Communication    string
	History          []CodedTransaction
	Keywords         []KeywordRule
	RecurringAmounts []AmountRule
	Amount           decimal.Decimal
}

// SuggestAccountCodes evaluates the evidence cascade and returns a ranked
// list of suggestions, strongest evidence first. A code backed by several
// sources keeps the suggestion of its strongest source and accumulates the
// weaker reasons.
func SuggestAccountCodes(c Context) []model.AccountCodeSuggestion {
	var all []model.AccountCodeSuggestion

	all = append(all, fromLinkedEntity(c)...)
	all = append(all, fromHistory(c)...)
	all = append(all, fromCounterparty(c)...)
	all = append(all, fromKeywords(c)...)
	all = append(all, fromAmount(c)...)

	merged := mergeByCode(all)
	sort.SliceStable(merged, func(i, j int) bool {
		pi, pj := sourcePriority[merged[i].Source], sourcePriority[merged[j].Source]
		if pi != pj {
			return pi > pj
		}
		if merged[i].Confidence != merged[j].Confidence {
			return merged[i].Confidence > merged[j].Confidence
		}
		return merged[i].Code < merged[j].Code
	})
	return merged
}

func fromLinkedEntity(c Context) []model.AccountCodeSuggestion {
	if c.Linked == nil || c.Linked.AccountCode == "" {
		return nil
	}
	return []model.AccountCodeSuggestion{{
		Code:       c.Linked.AccountCode,
		Label:      c.Linked.Label,
		Confidence: linkedEntityConfidence,
		Source:     model.SourceLinkedEntity,
		Reasons: []string{fmt.Sprintf("transaction is linked to %s %q which carries account code %s",
			c.Linked.Type, c.Linked.Name, c.Linked.AccountCode)},
	}}
}

func fromHistory(c Context) []model.AccountCodeSuggestion {
	counterparty := normalize(c.Counterparty)
	if counterparty == "" {
		return nil
	}

	type tally struct {
		label string
		count int
	}
	counts := make(map[string]*tally)
	var codes []string

	for _, prior := range c.History {
		if normalize(prior.Counterparty) != counterparty || prior.AccountCode == "" {
			continue
		}
		entry, seen := counts[prior.AccountCode]
		if !seen {
			entry = &tally{label: prior.Label}
			counts[prior.AccountCode] = entry
			codes = append(codes, prior.AccountCode)
		}
		entry.count++
	}

	suggestions := make([]model.AccountCodeSuggestion, 0, len(codes))
	for _, code := range codes {
		entry := counts[code]
		confidence := historyBaseConfidence + historyStepConfidence*entry.count
		if confidence > historyMaxConfidence {
			confidence = historyMaxConfidence
		}
		suggestions = append(suggestions, model.AccountCodeSuggestion{
			Code:       code,
			Label:      entry.label,
			Confidence: confidence,
			Source:     model.SourceHistory,
			Reasons: []string{fmt.Sprintf("%d earlier transaction(s) from %q were coded %s",
				entry.count, c.Counterparty, code)},
		})
	}
	return suggestions
}

func fromCounterparty(c Context) []model.AccountCodeSuggestion {
	return keywordHits(c.Keywords, c.Counterparty, model.SourceCounterparty, counterpartyConfidence,
		"counterparty name contains %q")
}

func fromKeywords(c Context) []model.AccountCodeSuggestion {
	return keywordHits(c.Keywords, c.Communication, model.SourceKeyword, keywordConfidence,
		"communication contains %q")
}

func keywordHits(rules []KeywordRule, text string, source model.SuggestionSource, confidence int, reasonFormat string) []model.AccountCodeSuggestion {
	normalized := normalize(text)
	if normalized == "" {
		return nil
	}

	var suggestions []model.AccountCodeSuggestion
	for _, rule := range rules {
		keyword := normalize(rule.Keyword)
		if keyword == "" || !strings.Contains(normalized, keyword) {
			continue
		}
		suggestions = append(suggestions, model.AccountCodeSuggestion{
			Code:       rule.Code,
			Label:      rule.Label,
			Confidence: confidence,
			Source:     source,
			Reasons:    []string{fmt.Sprintf(reasonFormat, rule.Keyword)},
		})
	}
	return suggestions
}

func fromAmount(c Context) []model.AccountCodeSuggestion {
	var suggestions []model.AccountCodeSuggestion
	for _, rule := range c.RecurringAmounts {
		if !rule.Amount.Abs().Equal(c.Amount.Abs()) {
			continue
		}
		suggestions = append(suggestions, model.AccountCodeSuggestion{
			Code:       rule.Code,
			Label:      rule.Label,
			Confidence: amountConfidence,
			Source:     model.SourceAmount,
			Reasons: []string{fmt.Sprintf("amount %s matches the recurring amount for %s",
				c.Amount.Abs().StringFixed(2), rule.Code)},
		})
	}
	return suggestions
}

// mergeByCode collapses duplicate codes, keeping the strongest source and
// appending weaker reasons so the caller still sees the full evidence.
func mergeByCode(suggestions []model.AccountCodeSuggestion) []model.AccountCodeSuggestion {
	byCode := make(map[string]int)
	var merged []model.AccountCodeSuggestion

	for _, s := range suggestions {
		idx, seen := byCode[s.Code]
		if !seen {
			byCode[s.Code] = len(merged)
			merged = append(merged, s)
			continue
		}

		kept := &merged[idx]
		if sourcePriority[s.Source] > sourcePriority[kept.Source] ||
			(sourcePriority[s.Source] == sourcePriority[kept.Source] && s.Confidence > kept.Confidence) {
			reasons := append([]string{}, s.Reasons...)
			reasons = append(reasons, kept.Reasons...)
			s.Reasons = reasons
			*kept = s
		} else {
			kept.Reasons = append(kept.Reasons, s.Reasons...)
		}
	}
	return merged
}

// normalize lower-cases and collapses whitespace for case/whitespace
// insensitive comparisons.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
