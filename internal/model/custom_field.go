package model

import "github.com/shopspring/decimal"

// FieldKind enumerates the custom-field value kinds carried by entity
// candidates (member forms, event registrations).
type FieldKind string

// Custom-field kinds.
const (
	FieldText        FieldKind = "text"
	FieldNumber      FieldKind = "number"
	FieldSelect      FieldKind = "select"
	FieldMultiSelect FieldKind = "multiselect"
)

// CustomField is a tagged union over the known field kinds. Exactly one of
// the value fields is meaningful, selected by Kind.
type CustomField struct {
	Kind     FieldKind
	Text     string
	Selected string
	Multi    []string
	Number   decimal.Decimal
}

// CustomFields carries the typed fields of an entity plus an opaque
// extension map for values this engine does not interpret.
type CustomFields struct {
	Fields     map[string]CustomField
	Extensions map[string]string
}
