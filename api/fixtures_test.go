/*
fixtures_test.go - Tests for demo data loading

Each fixture is loaded into an in-memory SQLite store and the built-in
table configs are resolved against it end to end.
*/
package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/property-finder/factory"
	"github.com/warp/property-finder/logging"
	"github.com/warp/property-finder/lookup"
	"github.com/warp/property-finder/lookup/store"
	"github.com/warp/property-finder/store/sqlite"
)

func newSQLiteServer(t *testing.T) (http.Handler, *sqlite.Store, *lookup.History) {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	history := lookup.NewHistory(db, lookup.WithHistoryLogger(logging.Discard()))
	resolver := lookup.NewResolver(db, lookup.WithHistory(history), lookup.WithLogger(logging.Discard()))
	h := NewHandler(resolver, factory.Builtins(), "cell")
	h.Fixtures = db
	h.Logger = logging.Discard()
	return NewRouter(h), db, history
}

func TestListFixtures(t *testing.T) {
	srv, _, _ := newSQLiteServer(t)

	rec := do(t, srv, http.MethodGet, "/api/fixtures", "")

	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]FixtureDTO](t, rec)
	assert.Len(t, list, len(fixtures))
	for _, f := range list {
		assert.True(t, KnownFixture(f.ID))
	}
}

func TestLoadFixture_FactoryFloor(t *testing.T) {
	// GIVEN: An empty database
	srv, db, _ := newSQLiteServer(t)

	// WHEN: Loading the factory floor fixture
	rec := do(t, srv, http.MethodPost, "/api/fixtures/load", `{"fixture_id": "factory-floor"}`)

	// THEN: Tables exist and the built-in configs resolve against them
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tables, err := db.Tables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"cell", "degas", "pallet"}, tables)

	current := decode[FixtureDTO](t, do(t, srv, http.MethodGet, "/api/fixtures/current", ""))
	assert.Equal(t, "factory-floor", current.ID)

	cases := []struct {
		query, table, id, title, strategy string
	}{
		{"31083", "cell", "PTQF31083", "Scratch", "partial:id"},
		{"PTQG00412", "cell", "PTQG00412", "Unknown Defect", "exact:id"},
		{"SN-88345", "degas", "DG-0003", "Pressure Drop", "exact:serial"},
		{"102", "degas", "DG-0002", "Leak", "numeric:#"},
		{"pt-b7", "pallet", "PAL-0017", "Unlabeled Pallet", "partial:code"},
	}
	for _, tc := range cases {
		rec := do(t, srv, http.MethodGet, "/api/lookup?q="+tc.query+"&table="+tc.table, "")
		require.Equal(t, http.StatusOK, rec.Code, tc.query)
		resp := decode[LookupResponse](t, rec)
		require.Equal(t, lookup.OutcomeFound, resp.Outcome, tc.query)
		assert.Equal(t, tc.id, resp.Record.ID, tc.query)
		assert.Equal(t, tc.title, resp.Record.Title, tc.query)
		assert.Equal(t, tc.strategy, resp.Strategy, tc.query)
	}
}

func TestLoadFixture_Products(t *testing.T) {
	srv, _, _ := newSQLiteServer(t)
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/fixtures/load", `{"fixture_id": "products"}`).Code)

	rec := do(t, srv, http.MethodGet, "/api/lookup?q=p1002&table=products", "")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[LookupResponse](t, rec)
	require.Equal(t, lookup.OutcomeFound, resp.Outcome)
	r := resp.Record
	assert.Equal(t, "P1002", r.ID)
	assert.Equal(t, "Electric Motor", r.Title)
	assert.Equal(t, "Electric Components", r.GroupLabel)
	assert.Equal(t, "Warehouse B, Shelf 7", r.LocationOrDate)
	assert.Equal(t, "7", r.Quantity.String())
	assert.Equal(t, "2023-11-01", r.LastUpdated)
	assert.Equal(t, "220V", r.Attributes["voltage"].String())
	assert.True(t, r.Attributes["rpm"].IsNumber())
	assert.Equal(t, "low-stock", r.Attributes["status"].String())
	assert.NotContains(t, r.Attributes, "specifications")

	rows := decode[RowsResponse](t, do(t, srv, http.MethodGet, "/api/tables/products/rows", ""))
	assert.Equal(t, 10, rows.Count)
}

func TestLoadFixture_ResetsHistory(t *testing.T) {
	srv, db, history := newSQLiteServer(t)
	do(t, srv, http.MethodPost, "/api/fixtures/load", `{"fixture_id": "all"}`)
	do(t, srv, http.MethodGet, "/api/lookup?q=P1001&table=products", "")
	require.Len(t, history.List(), 1)

	rec := do(t, srv, http.MethodPost, "/api/fixtures/load", `{"fixture_id": "products"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, history.List())
	_, ok, err := db.Get(context.Background(), lookup.DefaultListKey)
	require.NoError(t, err)
	assert.False(t, ok)
	tables, _ := db.Tables(context.Background())
	assert.Equal(t, []string{"products"}, tables)
}

func TestLoadFixture_Errors(t *testing.T) {
	srv, _, _ := newSQLiteServer(t)

	rec := do(t, srv, http.MethodPost, "/api/fixtures/load", `{"fixture_id": "nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/fixtures/load", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResetFixtures(t *testing.T) {
	srv, db, _ := newSQLiteServer(t)
	do(t, srv, http.MethodPost, "/api/fixtures/load", `{"fixture_id": "factory-floor"}`)

	rec := do(t, srv, http.MethodPost, "/api/fixtures/reset", "")

	require.Equal(t, http.StatusOK, rec.Code)
	tables, err := db.Tables(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tables)
	assert.Equal(t, "null\n", do(t, srv, http.MethodGet, "/api/fixtures/current", "").Body.String())
}

func TestFixtures_RequireSQLite(t *testing.T) {
	resolver := lookup.NewResolver(store.NewMemory())
	srv := NewRouter(NewHandler(resolver, factory.Builtins(), "cell"))

	rec := do(t, srv, http.MethodPost, "/api/fixtures/load", `{"fixture_id": "products"}`)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/fixtures/reset", "")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}
