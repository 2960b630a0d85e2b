/*
fixtures.go - Demo data loaders for testing and demonstrations

PURPOSE:

	Provides pre-built data sets that populate the local SQLite backend
	with tables shaped like the ones the scanner has been pointed at over
	time, so every built-in table config can be tried without a hosted
	database.

AVAILABLE FIXTURES:

	products:       Warehouse catalog with nested specifications
	factory-floor:  cell, degas and pallet tables keyed by production IDs
	all:            Both of the above

HOW FIXTURES WORK:
 1. Reset database (drop demo tables, clear kv_store)
 2. Clear in-memory history so it matches the store
 3. Create tables with typed columns
 4. Insert rows in a single transaction per table

USAGE VIA API:

	POST /api/fixtures/load
	{"fixture_id": "factory-floor"}

ADDING NEW FIXTURES:
 1. Add to 'fixtures' slice with ID, name, description, tables
 2. Create loader function: loadXxx(ctx, store)
 3. Add case to Seed

NOTE:

	Fixtures reset the database, search history included. Only use in
	development/demo environments.

SEE ALSO:
  - handlers.go: Handler and error helpers
  - factory/tables.go: Table configs matching these tables
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/warp/property-finder/lookup"
	"github.com/warp/property-finder/store/sqlite"
)

// =============================================================================
// FIXTURE DEFINITIONS
// =============================================================================

var fixtures = []FixtureDTO{
	{
		ID:          "products",
		Name:        "Warehouse Products",
		Description: "Ten catalog items with category, shelf location and specifications",
		Tables:      []string{"products"},
	},
	{
		ID:          "factory-floor",
		Name:        "Factory Floor",
		Description: "Cell defects, degas serials and pallets keyed by production IDs",
		Tables:      []string{"cell", "degas", "pallet"},
	},
	{
		ID:          "all",
		Name:        "Everything",
		Description: "Products and factory floor tables together",
		Tables:      []string{"cell", "degas", "pallet", "products"},
	},
}

// Fixtures returns the available fixtures.
func Fixtures() []FixtureDTO {
	out := make([]FixtureDTO, len(fixtures))
	copy(out, fixtures)
	return out
}

// ListFixtures returns all available fixtures.
func (h *Handler) ListFixtures(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, fixtures)
}

// GetCurrentFixture returns the currently loaded fixture, if any.
func (h *Handler) GetCurrentFixture(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	current := h.currentFixture
	h.mu.RUnlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, f := range fixtures {
		if f.ID == current {
			writeJSON(w, http.StatusOK, f)
			return
		}
	}
	writeJSON(w, http.StatusOK, FixtureDTO{ID: current, Name: current})
}

// LoadFixture resets the database and loads a predefined fixture.
func (h *Handler) LoadFixture(w http.ResponseWriter, r *http.Request) {
	if h.Fixtures == nil {
		writeError(w, http.StatusNotImplemented, "Fixtures need the sqlite backend", nil)
		return
	}

	var req LoadFixtureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if !KnownFixture(req.FixtureID) {
		writeError(w, http.StatusBadRequest, "Unknown fixture", nil)
		return
	}

	ctx := r.Context()
	if err := h.reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	if err := Seed(ctx, h.Fixtures, req.FixtureID); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load fixture: %v", err), err)
		return
	}

	h.mu.Lock()
	h.currentFixture = req.FixtureID
	h.mu.Unlock()
	h.Logger.Info("fixture loaded", "fixture", req.FixtureID)

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "fixture": req.FixtureID})
}

// ResetFixtures drops demo tables and clears history.
func (h *Handler) ResetFixtures(w http.ResponseWriter, r *http.Request) {
	if h.Fixtures == nil {
		writeError(w, http.StatusNotImplemented, "Fixtures need the sqlite backend", nil)
		return
	}
	if err := h.reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) reset(ctx context.Context) error {
	if err := h.Fixtures.Reset(ctx); err != nil {
		return err
	}
	if h.History != nil {
		h.History.Clear(ctx)
	}
	h.mu.Lock()
	h.currentFixture = ""
	h.mu.Unlock()
	return nil
}

// KnownFixture reports whether id names a fixture.
func KnownFixture(id string) bool {
	for _, f := range fixtures {
		if f.ID == id {
			return true
		}
	}
	return false
}

// Seed populates store with the named fixture. The store is expected to
// be empty; call Reset first.
func Seed(ctx context.Context, store *sqlite.Store, id string) error {
	switch id {
	case "products":
		return loadProducts(ctx, store)
	case "factory-floor":
		return loadFactoryFloor(ctx, store)
	case "all":
		if err := loadFactoryFloor(ctx, store); err != nil {
			return err
		}
		return loadProducts(ctx, store)
	default:
		return fmt.Errorf("unknown fixture: %s", id)
	}
}

// =============================================================================
// PRODUCTS
// =============================================================================

var productColumns = []sqlite.Column{
	{Name: "id", Type: "TEXT PRIMARY KEY"},
	{Name: "name", Type: "TEXT"},
	{Name: "category", Type: "TEXT"},
	{Name: "location", Type: "TEXT"},
	{Name: "status", Type: "TEXT"},
	{Name: "quantity", Type: "INTEGER"},
	{Name: "last_updated", Type: "TEXT"},
	{Name: "specifications", Type: "TEXT"},
}

func product(id, name, category, location, status string, qty int64, updated string, specs map[string]any) lookup.Row {
	return lookup.Row{
		"id":             id,
		"name":           name,
		"category":       category,
		"location":       location,
		"status":         status,
		"quantity":       qty,
		"last_updated":   updated,
		"specifications": specs,
	}
}

func productRows() []lookup.Row {
	return []lookup.Row{
		product("P1001", "Hydraulic Pump", "Hydraulics", "Warehouse A, Shelf 3", "in-stock", 42, "2023-10-15",
			map[string]any{"pressure": "200 bar", "flow-rate": "15 L/min", "weight": 5.2, "material": "Stainless Steel", "power": "1.5 kW"}),
		product("P1002", "Electric Motor", "Electric Components", "Warehouse B, Shelf 7", "low-stock", 7, "2023-11-01",
			map[string]any{"voltage": "220V", "power": "2.2 kW", "rpm": 1450, "weight": 12.7, "ip-rating": "IP54"}),
		product("P1003", "Control Valve", "Hydraulics", "Warehouse A, Shelf 9", "in-stock", 26, "2023-10-22",
			map[string]any{"pressure": "350 bar", "ports": 4, "material": "Carbon Steel", "weight": 3.8, "operating-temp": "-20°C to 80°C"}),
		product("P1004", "Pressure Sensor", "Sensors", "Warehouse C, Shelf 2", "out-of-stock", 0, "2023-09-30",
			map[string]any{"range": "0-500 bar", "output": "4-20 mA", "accuracy": "±0.5%", "weight": 0.25, "connection": "G1/4"}),
		product("P1005", "PLC Controller", "Automation", "Warehouse B, Shelf 10", "in-stock", 15, "2023-11-05",
			map[string]any{"inputs": 16, "outputs": 12, "voltage": "24V DC", "communication": "EtherNet/IP", "mounting": "DIN Rail"}),
		product("P1006", "Pneumatic Cylinder", "Pneumatics", "Warehouse A, Shelf 5", "in-stock", 38, "2023-10-28",
			map[string]any{"bore": "63 mm", "stroke": "200 mm", "pressure": "10 bar", "material": "Aluminum", "mounting": "Flange"}),
		product("P1007", "Gear Pump", "Hydraulics", "Warehouse A, Shelf 4", "low-stock", 5, "2023-10-20",
			map[string]any{"displacement": "22 cc/rev", "max-pressure": "250 bar", "speed": "1800 rpm", "weight": 7.3, "inlet-size": "1 inch"}),
		product("P1008", "Temperature Sensor", "Sensors", "Warehouse C, Shelf 3", "in-stock", 24, "2023-11-02",
			map[string]any{"range": "-50°C to 150°C", "output": "PT100", "accuracy": "±0.3°C", "length": "100 mm", "connection": "M12"}),
		product("P1009", "Servo Drive", "Electric Components", "Warehouse B, Shelf 8", "in-stock", 12, "2023-10-25",
			map[string]any{"voltage": "400V", "power": "5 kW", "current": "10A", "protection": "Short circuit, overvoltage", "communication": "EtherCAT"}),
		product("P1010", "Filter Element", "Hydraulics", "Warehouse A, Shelf 2", "out-of-stock", 0, "2023-09-15",
			map[string]any{"filtration": "10 micron", "material": "Cellulose", "flow-rate": "60 L/min", "pressure-drop": "0.5 bar", "length": "250 mm"}),
	}
}

func loadProducts(ctx context.Context, store *sqlite.Store) error {
	if err := store.CreateTable(ctx, "products", productColumns); err != nil {
		return err
	}
	return store.InsertRows(ctx, "products", productRows())
}

// =============================================================================
// FACTORY FLOOR
// =============================================================================

var (
	cellColumns = []sqlite.Column{
		{Name: "id", Type: "TEXT"},
		{Name: "#", Type: "INTEGER"},
		{Name: "defect type", Type: "TEXT"},
		{Name: "date", Type: "TEXT"},
		{Name: "value", Type: "REAL"},
		{Name: "line", Type: "TEXT"},
	}
	degasColumns = []sqlite.Column{
		{Name: "id", Type: "TEXT"},
		{Name: "serial", Type: "TEXT"},
		{Name: "#", Type: "INTEGER"},
		{Name: "defect type", Type: "TEXT"},
		{Name: "date", Type: "TEXT"},
		{Name: "value", Type: "REAL"},
	}
	palletColumns = []sqlite.Column{
		{Name: "id", Type: "TEXT"},
		{Name: "code", Type: "TEXT"},
		{Name: "number", Type: "INTEGER"},
		{Name: "label", Type: "TEXT"},
		{Name: "location", Type: "TEXT"},
		{Name: "quantity", Type: "INTEGER"},
	}
)

func cellRows() []lookup.Row {
	return []lookup.Row{
		{"id": "PTQF31083", "#": int64(1), "defect type": "Scratch", "date": "2025-01-15", "value": 2.5, "line": "L1"},
		{"id": "PTQF31084", "#": int64(2), "defect type": "Dent", "date": "2025-01-15", "value": 1.0, "line": "L1"},
		{"id": "PTQF31190", "#": int64(3), "defect type": "Contamination", "date": "2025-01-16", "value": 0.4, "line": "L2"},
		{"id": "PTQG00412", "#": int64(4), "defect type": nil, "date": "2025-01-17", "value": 3.0, "line": "L2"},
	}
}

func degasRows() []lookup.Row {
	return []lookup.Row{
		{"id": "DG-0001", "serial": "SN-88120", "#": int64(101), "defect type": "Bubble", "date": "2025-02-03", "value": 0.8},
		{"id": "DG-0002", "serial": "SN-88121", "#": int64(102), "defect type": "Leak", "date": "2025-02-03", "value": 1.6},
		{"id": "DG-0003", "serial": "SN-88345", "#": int64(103), "defect type": "Pressure Drop", "date": "2025-02-04", "value": 2.1},
	}
}

func palletRows() []lookup.Row {
	return []lookup.Row{
		{"id": "PAL-0001", "code": "PT-A1", "number": int64(1), "label": "Inbound Raw Cells", "location": "Dock 1", "quantity": int64(240)},
		{"id": "PAL-0002", "code": "PT-A2", "number": int64(2), "label": "Degassed Modules", "location": "Dock 2", "quantity": int64(96)},
		{"id": "PAL-0017", "code": "PT-B7", "number": int64(17), "label": nil, "location": "Quarantine", "quantity": int64(12)},
	}
}

func loadFactoryFloor(ctx context.Context, store *sqlite.Store) error {
	tables := []struct {
		name    string
		columns []sqlite.Column
		rows    []lookup.Row
	}{
		{"cell", cellColumns, cellRows()},
		{"degas", degasColumns, degasRows()},
		{"pallet", palletColumns, palletRows()},
	}
	for _, t := range tables {
		if err := store.CreateTable(ctx, t.name, t.columns); err != nil {
			return err
		}
		if err := store.InsertRows(ctx, t.name, t.rows); err != nil {
			return err
		}
	}
	return nil
}
