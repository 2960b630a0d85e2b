/*
normalize.go - Row to Record conversion

PURPOSE:
  The single chokepoint between loosely typed backend rows and the
  canonical Record. Every missing, null, or oddly typed column is handled
  here so nothing downstream has to.

RULES:
  id:               Mapping.IDField (default PrimaryField), else UnknownID
  title:            Mapping.TitleField, else Mapping.TitleDefault
  group label:      Mapping.GroupField through Mapping.GroupFormat
  location or date: first non-empty of Mapping.LocationFields
  quantity:         Mapping.QuantityField as decimal; negative/absent -> 0
  last updated:     Mapping.UpdatedField date part, else resolution date
  attributes:       every other non-null column, key verbatim

  Columns consumed by the rules above never appear in attributes.
  FlattenFields hold nested objects (JSON maps or JSON text) whose keys
  are lifted into attributes; top-level columns win on key collisions.

PURITY:
  No I/O. The resolution time is passed in so tests are deterministic.

SEE ALSO:
  - types.go:          Record, FieldMapping
  - factory/tables.go: Built-in mappings for cell, degas, pallet, products
*/
package lookup

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used for Record.LastUpdated.
const DateLayout = "2006-01-02"

// Normalize converts a backend row into a Record using cfg's mapping.
func Normalize(row Row, cfg TableConfig, now time.Time) Record {
	m := cfg.Mapping
	consumed := make(map[string]bool)
	take := func(field string) (string, bool) {
		if field == "" {
			return "", false
		}
		consumed[field] = true
		s, ok := FormatValue(row[field])
		if !ok || strings.TrimSpace(s) == "" {
			return "", false
		}
		return s, true
	}

	rec := Record{
		ID:       UnknownID,
		Title:    m.TitleDefault,
		Quantity: decimal.Zero,
		Table:    cfg.Name,
	}

	if id, ok := take(cfg.idField()); ok {
		rec.ID = strings.TrimSpace(id)
	}
	if title, ok := take(m.TitleField); ok {
		rec.Title = title
	}
	if group, ok := take(m.GroupField); ok {
		rec.GroupLabel = formatGroup(m.GroupFormat, group)
	}
	for _, f := range m.LocationFields {
		if loc, ok := take(f); ok && rec.LocationOrDate == "" {
			rec.LocationOrDate = loc
		}
	}
	if m.QuantityField != "" {
		consumed[m.QuantityField] = true
		rec.Quantity = parseQuantity(row[m.QuantityField])
	}

	rec.LastUpdated = now.Format(DateLayout)
	if updated, ok := take(m.UpdatedField); ok {
		date, _, _ := strings.Cut(updated, "T")
		rec.LastUpdated = date
	}

	flatten := make(map[string]bool, len(m.FlattenFields))
	for _, f := range m.FlattenFields {
		flatten[f] = true
	}

	attrs := make(map[string]Attribute)
	for k, v := range row {
		if consumed[k] || flatten[k] || v == nil {
			continue
		}
		attrs[k] = toAttribute(v)
	}
	for _, f := range m.FlattenFields {
		obj := nestedObject(row[f])
		if obj == nil {
			if v := row[f]; v != nil {
				attrs[f] = toAttribute(v)
			}
			continue
		}
		for k, v := range obj {
			if v == nil || consumed[k] {
				continue
			}
			if _, exists := attrs[k]; exists {
				continue
			}
			attrs[k] = toAttribute(v)
		}
	}
	if len(attrs) > 0 {
		rec.Attributes = attrs
	}
	return rec
}

// FormatValue renders a scalar backend value as a string. Numbers are
// printed without exponent. It returns false for nil and for values that
// are not scalars (maps, slices).
func FormatValue(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case []byte:
		return string(x), true
	case bool:
		return strconv.FormatBool(x), true
	case int:
		return strconv.Itoa(x), true
	case int32:
		return strconv.FormatInt(int64(x), 10), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case uint:
		return strconv.FormatUint(uint64(x), 10), true
	case uint32:
		return strconv.FormatUint(uint64(x), 10), true
	case uint64:
		return strconv.FormatUint(x, 10), true
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case json.Number:
		return x.String(), true
	case decimal.Decimal:
		return x.String(), true
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(DateLayout), true
		}
		return x.Format(time.RFC3339), true
	default:
		return "", false
	}
}

func formatGroup(format, value string) string {
	if format == "" {
		return value
	}
	if strings.Contains(format, "%s") {
		return strings.Replace(format, "%s", value, 1)
	}
	return format + value
}

func parseQuantity(v any) decimal.Decimal {
	s, ok := FormatValue(v)
	if !ok {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func toAttribute(v any) Attribute {
	switch x := v.(type) {
	case int, int32, int64, uint, uint32, uint64:
		s, _ := FormatValue(x)
		f, _ := strconv.ParseFloat(s, 64)
		return NumberAttribute(f)
	case float32:
		return NumberAttribute(float64(x))
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return TextAttribute(strconv.FormatFloat(x, 'f', -1, 64))
		}
		return NumberAttribute(x)
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return NumberAttribute(f)
		}
		return TextAttribute(x.String())
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return TextAttribute(fmt.Sprint(x))
		}
		return TextAttribute(string(b))
	}
	if s, ok := FormatValue(v); ok {
		return TextAttribute(s)
	}
	return TextAttribute(fmt.Sprint(v))
}

// nestedObject returns v as a map when it is one, or when it is JSON
// object text (SQLite stores nested objects as TEXT).
func nestedObject(v any) map[string]any {
	switch x := v.(type) {
	case map[string]any:
		return x
	case string, []byte:
		s, _ := FormatValue(x)
		s = strings.TrimSpace(s)
		if !strings.HasPrefix(s, "{") {
			return nil
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(s), &obj); err != nil {
			return nil
		}
		return obj
	}
	return nil
}
