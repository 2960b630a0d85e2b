/*
handlers.go - HTTP API handlers for the property finder

PURPOSE:
  Exposes the lookup resolver and the search history via REST API.
  Handles HTTP request/response and JSON serialization, and delegates to
  the lookup package.

ENDPOINTS:
  Lookup:
    GET    /api/lookup?q=&table=        Resolve a typed or scanned query
    GET    /api/tables                  List configured tables
    GET    /api/tables/{name}/rows      All records of a table

  History:
    GET    /api/history                 Recent searches + capacity
    GET    /api/history/{id}            One entry, no backend call
    DELETE /api/history                 Clear
    PUT    /api/history/capacity        Change capacity

  Fixtures:
    GET    /api/fixtures                List demo data sets
    GET    /api/fixtures/current        Currently loaded data set
    POST   /api/fixtures/load           Load a data set (SQLite only)
    POST   /api/fixtures/reset          Drop demo tables and history

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Resolver: runs the cascade, records found records in History
  - History:  shared recent-search list
  - Tables:   table configs by name, plus the default table
  - Fixtures: SQLite store for demo data, nil for remote backends

LOOKUP OUTCOMES:
  found       200 {outcome, record}
  not_found   200 {outcome, message}   visible, not silent
  ignored     204                      blank query
  failed      502 ErrorResponse        backend error

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, unknown table in query
  - 404: Unknown table in path, history entry not found
  - 501: Operation not supported by the configured backend
  - 502: Backend failure during lookup
  - 500: Internal errors

SECURITY NOTE:
  No authentication. The remote backend is queried with the anon key.

SEE ALSO:
  - dto.go: Request/response data structures
  - fixtures.go: Demo data loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/warp/property-finder/factory"
	"github.com/warp/property-finder/lookup"
	"github.com/warp/property-finder/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Resolver     *lookup.Resolver
	History      *lookup.History
	Tables       map[string]lookup.TableConfig
	DefaultTable string

	// Fixtures is set when the backend is the local SQLite store.
	Fixtures *sqlite.Store
	Logger   *slog.Logger

	// Guards Tables and currentFixture
	mu             sync.RWMutex
	currentFixture string
}

// NewHandler creates a handler. History is taken from the resolver.
func NewHandler(resolver *lookup.Resolver, tables map[string]lookup.TableConfig, defaultTable string) *Handler {
	return &Handler{
		Resolver:     resolver,
		History:      resolver.History(),
		Tables:       tables,
		DefaultTable: defaultTable,
		Logger:       slog.Default(),
	}
}

// SetTables replaces the table configs. Used when the definitions file
// changes while serving.
func (h *Handler) SetTables(tables map[string]lookup.TableConfig) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Tables = tables
}

func (h *Handler) tables() map[string]lookup.TableConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.Tables
}

// table returns the config for name, or the default table when name is empty.
func (h *Handler) table(name string) (lookup.TableConfig, bool) {
	if name == "" {
		name = h.DefaultTable
	}
	cfg, ok := h.tables()[name]
	return cfg, ok
}

// =============================================================================
// LOOKUP HANDLERS
// =============================================================================

// Lookup resolves the q parameter against the requested table.
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	tableName := strings.TrimSpace(r.URL.Query().Get("table"))
	cfg, ok := h.table(tableName)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown table", lookup.ErrTableNotConfigured)
		return
	}

	res := h.Resolver.Resolve(r.Context(), r.URL.Query().Get("q"), cfg)

	switch res.Outcome {
	case lookup.OutcomeIgnored:
		w.WriteHeader(http.StatusNoContent)
	case lookup.OutcomeFailed:
		writeJSON(w, errorStatus(res.Err), ErrorResponse{
			Error:   "Lookup failed",
			Code:    string(res.Outcome),
			Details: res.Message,
		})
	default:
		writeJSON(w, http.StatusOK, LookupResponse{
			Outcome:  res.Outcome,
			Query:    res.Query,
			Table:    cfg.Name,
			Strategy: res.Strategy,
			Record:   res.Record,
			Message:  res.Message,
		})
	}
}

// ListTables returns the configured tables in name order.
func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	tables := h.tables()
	names := factory.Names(tables)
	dtos := make([]TableDTO, len(names))
	for i, name := range names {
		dtos[i] = toTableDTO(tables[name], h.DefaultTable)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListRows returns every record of a table.
func (h *Handler) ListRows(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	cfg, ok := h.tables()[name]
	if !ok {
		writeError(w, http.StatusNotFound, "Table not found", nil)
		return
	}

	records, err := h.Resolver.All(r.Context(), cfg)
	if err != nil {
		writeError(w, errorStatus(err), "Failed to list records", err)
		return
	}
	writeJSON(w, http.StatusOK, RowsResponse{Table: name, Count: len(records), Records: records})
}

// =============================================================================
// HISTORY HANDLERS
// =============================================================================

// GetHistory returns recent searches, most recent first.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	if !h.requireHistory(w) {
		return
	}
	writeJSON(w, http.StatusOK, toHistoryDTO(h.History))
}

// GetHistoryEntry returns one entry for redisplay.
func (h *Handler) GetHistoryEntry(w http.ResponseWriter, r *http.Request) {
	if !h.requireHistory(w) {
		return
	}
	rec, ok := h.History.Select(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Not in history", nil)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ClearHistory empties the history and its persisted copy.
func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	if !h.requireHistory(w) {
		return
	}
	h.History.Clear(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// SetHistoryCapacity changes the maximum number of entries.
func (h *Handler) SetHistoryCapacity(w http.ResponseWriter, r *http.Request) {
	if !h.requireHistory(w) {
		return
	}
	var req CapacityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.History.Resize(r.Context(), req.Capacity); err != nil {
		writeError(w, errorStatus(err), "Invalid capacity", err)
		return
	}
	writeJSON(w, http.StatusOK, toHistoryDTO(h.History))
}

func (h *Handler) requireHistory(w http.ResponseWriter) bool {
	if h.History == nil {
		writeError(w, http.StatusNotImplemented, "History is not enabled", nil)
		return false
	}
	return true
}

// =============================================================================
// HELPERS
// =============================================================================

// errorStatus maps lookup errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case lookup.IsClientError(err):
		return http.StatusBadRequest
	case lookup.IsRemoteFailure(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
