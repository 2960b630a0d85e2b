/*
dto.go - Data Transfer Objects for the HTTP API

PURPOSE:
  Defines the JSON shapes of requests and responses. Records are served
  as lookup.Record directly; its JSON tags are the wire format, and the
  same shape is what History persists.

NAMING CONVENTION:
  - *DTO:       Response objects
  - *Request:   Request bodies
  - *Response:  Response wrappers

SEE ALSO:
  - handlers.go: Uses these DTOs
  - lookup/types.go: Record and its JSON tags
*/
package api

import "github.com/warp/property-finder/lookup"

// =============================================================================
// LOOKUP DTOs
// =============================================================================

// LookupResponse is the body of GET /api/lookup for found and not-found
// outcomes. Ignored queries get 204 and failures an ErrorResponse.
type LookupResponse struct {
	Outcome  lookup.Outcome `json:"outcome"`
	Query    string         `json:"query"`
	Table    string         `json:"table"`
	Strategy string         `json:"strategy,omitempty"`
	Record   *lookup.Record `json:"record,omitempty"`
	Message  string         `json:"message,omitempty"`
}

// TableDTO describes a configured lookup table.
type TableDTO struct {
	Name      string   `json:"name"`
	Primary   string   `json:"primary"`
	Secondary string   `json:"secondary,omitempty"`
	Numeric   string   `json:"numeric,omitempty"`
	Partial   []string `json:"partial,omitempty"`
	Default   bool     `json:"default"`
}

// RowsResponse is the body of GET /api/tables/{name}/rows.
type RowsResponse struct {
	Table   string          `json:"table"`
	Count   int             `json:"count"`
	Records []lookup.Record `json:"records"`
}

// =============================================================================
// HISTORY DTOs
// =============================================================================

// HistoryDTO is the current search history.
type HistoryDTO struct {
	Capacity int             `json:"capacity"`
	Entries  []lookup.Record `json:"entries"`
}

// CapacityRequest is the body of PUT /api/history/capacity.
type CapacityRequest struct {
	Capacity int `json:"capacity"`
}

// =============================================================================
// FIXTURE DTOs
// =============================================================================

// FixtureDTO describes a demo data set.
type FixtureDTO struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tables      []string `json:"tables"`
}

// LoadFixtureRequest is the body of POST /api/fixtures/load.
type LoadFixtureRequest struct {
	FixtureID string `json:"fixture_id"`
}

// =============================================================================
// ERROR RESPONSE
// =============================================================================

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toTableDTO(cfg lookup.TableConfig, defaultTable string) TableDTO {
	return TableDTO{
		Name:      cfg.Name,
		Primary:   cfg.PrimaryField,
		Secondary: cfg.SecondaryField,
		Numeric:   cfg.NumericField,
		Partial:   cfg.PartialFields,
		Default:   cfg.Name == defaultTable,
	}
}

func toHistoryDTO(h *lookup.History) HistoryDTO {
	return HistoryDTO{Capacity: h.Capacity(), Entries: h.List()}
}
