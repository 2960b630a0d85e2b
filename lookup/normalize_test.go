package lookup_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/property-finder/lookup"
)

var resolvedAt = time.Date(2025, time.March, 10, 14, 30, 0, 0, time.UTC)

func cellConfig() lookup.TableConfig {
	return lookup.TableConfig{
		Name:         "cell",
		PrimaryField: "id",
		Mapping: lookup.FieldMapping{
			TitleField:     "defect type",
			TitleDefault:   "Unknown Defect",
			GroupField:     "#",
			GroupFormat:    "Row #: %s",
			LocationFields: []string{"date"},
			QuantityField:  "value",
		},
	}
}

// =============================================================================
// MAPPED FIELDS
// =============================================================================

func TestNormalize_CellRow(t *testing.T) {
	row := lookup.Row{
		"id":          "PTQF31083",
		"defect type": "Scratch",
		"#":           int64(12),
		"date":        "2025-02-01",
		"value":       float64(3.5),
		"line":        "L2",
		"operator":    nil,
	}

	rec := lookup.Normalize(row, cellConfig(), resolvedAt)

	assert.Equal(t, "PTQF31083", rec.ID)
	assert.Equal(t, "Scratch", rec.Title)
	assert.Equal(t, "Row #: 12", rec.GroupLabel)
	assert.Equal(t, "2025-02-01", rec.LocationOrDate)
	assert.True(t, decimal.RequireFromString("3.5").Equal(rec.Quantity))
	assert.Equal(t, "2025-03-10", rec.LastUpdated, "no updated field: resolution date")
	assert.Equal(t, "cell", rec.Table)
	assert.Equal(t, map[string]lookup.Attribute{"line": lookup.TextAttribute("L2")}, rec.Attributes,
		"mapped and null columns are excluded")
}

func TestNormalize_MissingFieldsUseDefaults(t *testing.T) {
	rec := lookup.Normalize(lookup.Row{"id": "A1"}, cellConfig(), resolvedAt)

	assert.Equal(t, "A1", rec.ID)
	assert.Equal(t, "Unknown Defect", rec.Title)
	assert.Empty(t, rec.GroupLabel)
	assert.Empty(t, rec.LocationOrDate)
	assert.True(t, rec.Quantity.IsZero())
	assert.Nil(t, rec.Attributes)
}

func TestNormalize_MissingIDYieldsSentinel(t *testing.T) {
	for name, row := range map[string]lookup.Row{
		"absent": {"defect type": "Dent"},
		"null":   {"id": nil},
		"blank":  {"id": "   "},
		"object": {"id": map[string]any{"x": 1}},
	} {
		t.Run(name, func(t *testing.T) {
			rec := lookup.Normalize(row, cellConfig(), resolvedAt)
			assert.Equal(t, lookup.UnknownID, rec.ID)
			assert.False(t, rec.Valid())
		})
	}
}

func TestNormalize_NumericIDFormattedWithoutExponent(t *testing.T) {
	rec := lookup.Normalize(lookup.Row{"id": float64(31083)}, cellConfig(), resolvedAt)
	assert.Equal(t, "31083", rec.ID)

	rec = lookup.Normalize(lookup.Row{"id": json.Number("1234567890123")}, cellConfig(), resolvedAt)
	assert.Equal(t, "1234567890123", rec.ID)
}

func TestNormalize_Quantity(t *testing.T) {
	cases := map[string]struct {
		value any
		want  string
	}{
		"int":         {int64(42), "42"},
		"float":       {float64(0.25), "0.25"},
		"string":      {" 17 ", "17"},
		"json number": {json.Number("8"), "8"},
		"negative":    {int64(-3), "0"},
		"garbage":     {"lots", "0"},
		"bool":        {true, "0"},
		"null":        {nil, "0"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := lookup.Normalize(lookup.Row{"id": "X", "value": tc.value}, cellConfig(), resolvedAt)
			assert.True(t, decimal.RequireFromString(tc.want).Equal(rec.Quantity), "got %s", rec.Quantity)
		})
	}
}

func TestNormalize_UpdatedFieldTakesDatePart(t *testing.T) {
	cfg := lookup.TableConfig{
		Name:         "products",
		PrimaryField: "id",
		Mapping:      lookup.FieldMapping{UpdatedField: "last_updated"},
	}

	rec := lookup.Normalize(lookup.Row{"id": "P1", "last_updated": "2023-10-15T08:00:00Z"}, cfg, resolvedAt)
	assert.Equal(t, "2023-10-15", rec.LastUpdated)

	rec = lookup.Normalize(lookup.Row{"id": "P1", "last_updated": time.Date(2023, 9, 30, 0, 0, 0, 0, time.UTC)}, cfg, resolvedAt)
	assert.Equal(t, "2023-09-30", rec.LastUpdated)
}

func TestNormalize_FirstNonEmptyLocation(t *testing.T) {
	cfg := lookup.TableConfig{
		Name:         "pallet",
		PrimaryField: "id",
		Mapping:      lookup.FieldMapping{LocationFields: []string{"location", "date"}},
	}

	rec := lookup.Normalize(lookup.Row{"id": "P", "location": "", "date": "2025-01-02"}, cfg, resolvedAt)

	assert.Equal(t, "2025-01-02", rec.LocationOrDate)
	assert.Nil(t, rec.Attributes, "all location candidates are consumed")
}

// =============================================================================
// ATTRIBUTES
// =============================================================================

func TestNormalize_AttributesKeepEverythingButID(t *testing.T) {
	// GIVEN: A table whose mapping only knows the identifier
	cfg := lookup.TableConfig{Name: "cell", PrimaryField: "id", SecondaryField: "code"}
	row := lookup.Row{"id": "PTQF31083", "code": "C-9", "Defect Type": "Crack", "value": float64(2)}

	// WHEN: Normalizing
	rec := lookup.Normalize(row, cfg, resolvedAt)

	// THEN: Every column except id survives, keys verbatim
	assert.Equal(t, map[string]lookup.Attribute{
		"code":        lookup.TextAttribute("C-9"),
		"Defect Type": lookup.TextAttribute("Crack"),
		"value":       lookup.NumberAttribute(2),
	}, rec.Attributes)
}

func TestNormalize_FlattenNestedObject(t *testing.T) {
	cfg := lookup.TableConfig{
		Name:         "products",
		PrimaryField: "id",
		Mapping:      lookup.FieldMapping{TitleField: "name", FlattenFields: []string{"specifications"}},
	}

	t.Run("map", func(t *testing.T) {
		row := lookup.Row{
			"id":             "P1001",
			"name":           "Hydraulic Pump",
			"status":         "in-stock",
			"specifications": map[string]any{"pressure": "200 bar", "weight": 5.2, "name": "shadowed"},
		}
		rec := lookup.Normalize(row, cfg, resolvedAt)
		assert.Equal(t, map[string]lookup.Attribute{
			"status":   lookup.TextAttribute("in-stock"),
			"pressure": lookup.TextAttribute("200 bar"),
			"weight":   lookup.NumberAttribute(5.2),
		}, rec.Attributes)
	})

	t.Run("json text", func(t *testing.T) {
		row := lookup.Row{"id": "P1002", "specifications": `{"rpm": 1450, "voltage": "220V"}`}
		rec := lookup.Normalize(row, cfg, resolvedAt)
		assert.Equal(t, map[string]lookup.Attribute{
			"rpm":     lookup.NumberAttribute(1450),
			"voltage": lookup.TextAttribute("220V"),
		}, rec.Attributes)
	})

	t.Run("not an object", func(t *testing.T) {
		row := lookup.Row{"id": "P1003", "specifications": "n/a"}
		rec := lookup.Normalize(row, cfg, resolvedAt)
		assert.Equal(t, map[string]lookup.Attribute{"specifications": lookup.TextAttribute("n/a")}, rec.Attributes)
	})
}

func TestAttribute_JSON(t *testing.T) {
	data, err := json.Marshal(map[string]lookup.Attribute{
		"a": lookup.TextAttribute("x"),
		"b": lookup.NumberAttribute(1.5),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"x","b":1.5}`, string(data))

	var back map[string]lookup.Attribute
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "x", back["a"].String())
	assert.True(t, back["b"].IsNumber())
	assert.Equal(t, "1.5", back["b"].String())
}
