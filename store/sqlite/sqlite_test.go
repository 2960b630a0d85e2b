package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/property-finder/lookup"
	"github.com/warp/property-finder/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var cellColumns = []sqlite.Column{
	{Name: "id", Type: "TEXT"},
	{Name: "#", Type: "INTEGER"},
	{Name: "defect type", Type: "TEXT"},
	{Name: "value", Type: "REAL"},
	{Name: "date", Type: "TEXT"},
}

func newCellStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.CreateTable(ctx, "cell", cellColumns))
	require.NoError(t, store.InsertRows(ctx, "cell", []lookup.Row{
		{"id": "PTQF31083", "#": int64(3), "defect type": "Scratch", "value": 2.5, "date": "2025-01-15"},
		{"id": "PTQF31084", "#": int64(4), "defect type": "Dent", "value": 1.0, "date": "2025-01-16"},
		{"id": "AB-7", "#": int64(7), "defect type": "Crack", "value": 0.0, "date": "2025-01-17"},
	}))
	return store
}

func rowIDs(rows []lookup.Row) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r["id"]
	}
	return out
}

// =============================================================================
// BACKEND TESTS
// =============================================================================

func TestSelectAll_InsertionOrder(t *testing.T) {
	store := newCellStore(t)

	rows, err := store.SelectAll(context.Background(), "cell")

	require.NoError(t, err)
	assert.Equal(t, []any{"PTQF31083", "PTQF31084", "AB-7"}, rowIDs(rows))
	assert.Equal(t, "Scratch", rows[0]["defect type"])
	assert.Equal(t, int64(3), rows[0]["#"])
	assert.Equal(t, 2.5, rows[0]["value"])
}

func TestSelectWhereEquals(t *testing.T) {
	store := newCellStore(t)
	ctx := context.Background()

	rows, err := store.SelectWhereEquals(ctx, "cell", "id", "AB-7")
	require.NoError(t, err)
	assert.Equal(t, []any{"AB-7"}, rowIDs(rows))

	rows, err = store.SelectWhereEquals(ctx, "cell", "#", int64(4))
	require.NoError(t, err)
	assert.Equal(t, []any{"PTQF31084"}, rowIDs(rows))

	rows, err = store.SelectWhereEquals(ctx, "cell", "id", "ab-7")
	require.NoError(t, err)
	assert.Empty(t, rows, "exact match is case-sensitive")
}

func TestSelectWherePartialMatch(t *testing.T) {
	store := newCellStore(t)
	ctx := context.Background()

	// GIVEN: Two ids containing "3108"
	// WHEN: Matching with different case
	rows, err := store.SelectWherePartialMatch(ctx, "cell", "id", "%qf3108%")

	// THEN: Both come back, in insertion order
	require.NoError(t, err)
	assert.Equal(t, []any{"PTQF31083", "PTQF31084"}, rowIDs(rows))

	rows, err = store.SelectWherePartialMatch(ctx, "cell", "#", "%7%")
	require.NoError(t, err)
	assert.Equal(t, []any{"AB-7"}, rowIDs(rows), "numeric columns are matched as text")
}

func TestSelectWherePartialMatch_EscapedWildcards(t *testing.T) {
	store := newCellStore(t)
	ctx := context.Background()

	rows, err := store.SelectWherePartialMatch(ctx, "cell", "id", `%PT\_F%`)
	require.NoError(t, err)
	assert.Empty(t, rows, "escaped _ is not a wildcard")

	rows, err = store.SelectWherePartialMatch(ctx, "cell", "id", `%\%%`)
	require.NoError(t, err)
	assert.Empty(t, rows, "escaped % is not a wildcard")

	rows, err = store.SelectWherePartialMatch(ctx, "cell", "id", "%PT_F%")
	require.NoError(t, err)
	assert.Len(t, rows, 2, "unescaped _ still matches one character")
}

func TestSelect_UnknownTable(t *testing.T) {
	store := newCellStore(t)

	_, err := store.SelectAll(context.Background(), "missing")

	assert.ErrorIs(t, err, lookup.ErrUnknownTable)
}

func TestSelect_IdentifierInjectionIsQuoted(t *testing.T) {
	store := newCellStore(t)

	_, err := store.SelectWhereEquals(context.Background(), "cell", `id" = "id" OR "1`, "x")

	assert.Error(t, err, "column name is treated as one identifier")
}

func TestResolver_AgainstSQLite(t *testing.T) {
	// GIVEN: The cell table and the built-in style mapping
	store := newCellStore(t)
	cfg := lookup.TableConfig{
		Name:         "cell",
		PrimaryField: "id",
		Mapping: lookup.FieldMapping{
			TitleField:     "defect type",
			GroupField:     "#",
			GroupFormat:    "Row #: %s",
			LocationFields: []string{"date"},
			QuantityField:  "value",
		},
	}
	history := lookup.NewHistory(store)
	resolver := lookup.NewResolver(store, lookup.WithHistory(history))

	// WHEN: Resolving a partial id
	res := resolver.Resolve(context.Background(), "31083", cfg)

	// THEN: The record is normalized and persisted through the same store
	require.Equal(t, lookup.OutcomeFound, res.Outcome)
	assert.Equal(t, "PTQF31083", res.Record.ID)
	assert.Equal(t, "Scratch", res.Record.Title)
	assert.Equal(t, "Row #: 3", res.Record.GroupLabel)
	assert.Equal(t, "2025-01-15", res.Record.LocationOrDate)
	assert.Equal(t, "2.5", res.Record.Quantity.String())

	raw, ok, err := store.Get(context.Background(), lookup.DefaultListKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, raw, "PTQF31083")
}

// =============================================================================
// KV STORE TESTS
// =============================================================================

func TestKV_SetGetRemove(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "k", "v1"))
	require.NoError(t, store.Set(ctx, "k", "v2"))

	got, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", got)

	require.NoError(t, store.Remove(ctx, "k"))
	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHistory_SurvivesReopen(t *testing.T) {
	// GIVEN: A file database with a persisted history
	path := t.TempDir() + "/finder.db"
	ctx := context.Background()

	first, err := sqlite.New(path)
	require.NoError(t, err)
	h := lookup.NewHistory(first)
	require.NoError(t, h.Resize(ctx, 3))
	h.Record(lookup.Record{ID: "A", LastUpdated: time.Now().Format(lookup.DateLayout)})
	h.Persist(ctx)
	require.NoError(t, first.Close())

	// WHEN: Reopening
	second, err := sqlite.New(path)
	require.NoError(t, err)
	defer second.Close()
	restored := lookup.NewHistory(second)
	restored.Restore(ctx)

	// THEN: Capacity and entries come back
	assert.Equal(t, 3, restored.Capacity())
	require.Len(t, restored.List(), 1)
	assert.Equal(t, "A", restored.List()[0].ID)
}

// =============================================================================
// FIXTURE TESTS
// =============================================================================

func TestInsertRows_NestedValuesStoredAsJSON(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.CreateTable(ctx, "products", []sqlite.Column{
		{Name: "id", Type: "TEXT"},
		{Name: "specifications", Type: "TEXT"},
	}))
	require.NoError(t, store.InsertRows(ctx, "products", []lookup.Row{
		{"id": "P1", "specifications": map[string]any{"weight": "5kg"}},
	}))

	rows, err := store.SelectAll(ctx, "products")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.JSONEq(t, `{"weight":"5kg"}`, rows[0]["specifications"].(string))
}

func TestInsertRows_FailureRollsBack(t *testing.T) {
	store := newCellStore(t)
	ctx := context.Background()

	err := store.InsertRows(ctx, "cell", []lookup.Row{
		{"id": "NEW-1"},
		{"no_such_column": "x"},
	})
	require.Error(t, err)

	rows, err := store.SelectWhereEquals(ctx, "cell", "id", "NEW-1")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCreateTable_RequiresColumns(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	defer store.Close()

	assert.Error(t, store.CreateTable(context.Background(), "empty", nil))
}

func TestReset(t *testing.T) {
	store := newCellStore(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, lookup.DefaultListKey, "[]"))

	tables, err := store.Tables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"cell"}, tables)

	require.NoError(t, store.Reset(ctx))

	tables, err = store.Tables(ctx)
	require.NoError(t, err)
	assert.Empty(t, tables)
	_, err = store.SelectAll(ctx, "cell")
	assert.ErrorIs(t, err, lookup.ErrUnknownTable)
	_, ok, _ := store.Get(ctx, lookup.DefaultListKey)
	assert.False(t, ok)
}
