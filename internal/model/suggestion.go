package model

// SuggestionSource names the evidence behind an account-code suggestion.
type SuggestionSource string

// Evidence sources, strongest first.
const (
	SourceLinkedEntity SuggestionSource = "linked_entity"
	SourceHistory      SuggestionSource = "history"
	SourceCounterparty SuggestionSource = "counterparty"
	SourceKeyword      SuggestionSource = "keyword"
	SourceAmount       SuggestionSource = "amount"
)

// AccountCodeSuggestion is a ranked accounting-code candidate. Suggestions
// are ephemeral: only a human confirmation (or an external auto-accept
// policy) writes the code onto a transaction.
type AccountCodeSuggestion struct {
	Code       string
	Label      string
	Source     SuggestionSource
	Reasons    []string // ordered, human-readable
	Confidence int      // 0-100
}
