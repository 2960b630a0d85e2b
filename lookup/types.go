/*
types.go - Core types for record lookup

PURPOSE:
  Defines the shapes that flow through the lookup engine: loosely typed
  backend rows, the canonical Record shown to users, and the declarative
  TableConfig that tells the resolver which fields to try.

DESIGN PRINCIPLES:
  1. Rows are opaque: map[string]any straight from the backend driver.
     Only the normalizer interprets values.
  2. Records are immutable: created once by the resolver, replaced (never
     edited) in history.
  3. Tables are data: field names live in TableConfig, not in code.

KEY TYPES:
  Row:          Raw backend row
  Record:       Normalized display record
  Attribute:    string | number value kept for unmapped columns
  TableConfig:  Which table, which identifier fields, how to map columns
  Result:       Outcome of a single resolve call

SEE ALSO:
  - normalize.go: Row -> Record conversion
  - resolver.go:  Cascade over TableConfig fields
  - history.go:   Bounded recent-search list
*/
package lookup

import (
	"encoding/json"
	"strconv"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ROW - Raw backend data
// =============================================================================

// Row is a single backend row keyed by column name.
// Values are whatever the driver produced: nil, string, []byte, bool,
// int64, float64, json.Number, time.Time, or nested map[string]any.
type Row map[string]any

// =============================================================================
// RECORD - Canonical display entity
// =============================================================================

// UnknownID is assigned when a row has no usable identifier.
// A Record carrying it is never a real match.
const UnknownID = "unknown-id"

// Record is the normalized, display-ready form of a backend row.
type Record struct {
	ID             string               `json:"id"`
	Title          string               `json:"title"`
	GroupLabel     string               `json:"group_label,omitempty"`
	LocationOrDate string               `json:"location_or_date,omitempty"`
	Quantity       decimal.Decimal      `json:"quantity"`
	LastUpdated    string               `json:"last_updated"`
	Attributes     map[string]Attribute `json:"attributes,omitempty"`
	Table          string               `json:"table,omitempty"`
}

// Valid reports whether normalization produced a real identifier.
func (r Record) Valid() bool {
	return r.ID != "" && r.ID != UnknownID
}

// Attribute holds a string or a number.
type Attribute struct {
	text    string
	number  float64
	numeric bool
}

// TextAttribute returns a string attribute.
func TextAttribute(s string) Attribute { return Attribute{text: s} }

// NumberAttribute returns a numeric attribute.
func NumberAttribute(f float64) Attribute { return Attribute{number: f, numeric: true} }

func (a Attribute) IsNumber() bool  { return a.numeric }
func (a Attribute) Number() float64 { return a.number }

// String renders the attribute for display. Numbers are printed without
// exponent or trailing zeros.
func (a Attribute) String() string {
	if a.numeric {
		return strconv.FormatFloat(a.number, 'f', -1, 64)
	}
	return a.text
}

func (a Attribute) MarshalJSON() ([]byte, error) {
	if a.numeric {
		return json.Marshal(a.number)
	}
	return json.Marshal(a.text)
}

func (a *Attribute) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = TextAttribute(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*a = NumberAttribute(f)
	return nil
}

// =============================================================================
// TABLE CONFIG - Declarative per-table lookup settings
// =============================================================================

// TableConfig describes one backend table: the identifier fields the
// resolver cascades over and how columns map onto a Record.
type TableConfig struct {
	Name           string
	PrimaryField   string
	SecondaryField string   // optional alternate code
	NumericField   string   // optional, tried only for numeric queries
	PartialFields  []string // extra fields, tried after primary + secondary
	Mapping        FieldMapping
}

// FieldMapping maps backend columns onto Record fields.
// Empty field names are ignored.
type FieldMapping struct {
	IDField        string // defaults to TableConfig.PrimaryField
	TitleField     string
	TitleDefault   string
	GroupField     string
	GroupFormat    string // fmt verb %s receives the raw group value
	LocationFields []string
	QuantityField  string
	UpdatedField   string
	FlattenFields  []string // nested objects whose keys become attributes
}

// Validate checks that the config names a table and a primary field.
func (c TableConfig) Validate() error {
	if c.Name == "" {
		return &ConfigError{Table: c.Name, Reason: "table name is required"}
	}
	if c.PrimaryField == "" {
		return &ConfigError{Table: c.Name, Reason: "primary field is required"}
	}
	return nil
}

func (c TableConfig) idField() string {
	if c.Mapping.IDField != "" {
		return c.Mapping.IDField
	}
	return c.PrimaryField
}

// partialFields is primary, then secondary, then any extra fields.
// Callers deduplicate.
func (c TableConfig) partialFields() []string {
	fields := []string{c.PrimaryField, c.SecondaryField}
	return append(fields, c.PartialFields...)
}

// =============================================================================
// RESULT - Outcome of a resolve call
// =============================================================================

// Outcome classifies a resolve call.
type Outcome string

const (
	OutcomeIgnored  Outcome = "ignored"   // blank query, nothing sent
	OutcomeFound    Outcome = "found"     // Record is set
	OutcomeNotFound Outcome = "not_found" // cascade exhausted
	OutcomeFailed   Outcome = "failed"    // backend error, Err is set
)

// Result is what Resolve returns. Expected negatives (ignored, not found)
// are carried here rather than as errors.
type Result struct {
	Outcome  Outcome
	Query    string
	Record   *Record
	Strategy string // name of the strategy that matched or failed
	Message  string
	Err      error
}
