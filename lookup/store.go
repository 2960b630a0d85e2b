/*
store.go - Interfaces to the two external collaborators

PURPOSE:
  The lookup engine talks to exactly two things it does not own:
  - a remote relational backend that answers per-table queries
  - a small durable key-value store that keeps history across restarts

  Both are interfaces so the engine runs unchanged against SQLite, a
  hosted PostgREST endpoint, or in-memory fakes.

IMPLEMENTATIONS:
  Backend:
    - store/sqlite/sqlite.go:       Local SQLite tables
    - store/postgrest/client.go:    Hosted backend over HTTP
    - lookup/store/memory.go:       In-memory tables for tests/dev
  KVStore:
    - store/sqlite/sqlite.go:       kv_store table
    - lookup/store/memory.go:       map-backed

TIMEOUTS:
  The engine never sets deadlines. Backends own their timeouts; ctx is
  passed through for cancellation by the caller.

SEE ALSO:
  - resolver.go: Consumes Backend
  - history.go:  Consumes KVStore
*/
package lookup

import (
	"context"
	"strings"
)

// =============================================================================
// BACKEND - Remote table client
// =============================================================================

// Backend queries named tables. Table and field names are configuration
// data supplied by the caller. Rows come back in backend order.
type Backend interface {
	// SelectAll returns every row of the table.
	SelectAll(ctx context.Context, table string) ([]Row, error)

	// SelectWhereEquals returns rows whose field equals value.
	SelectWhereEquals(ctx context.Context, table, field string, value any) ([]Row, error)

	// SelectWherePartialMatch returns rows whose field matches pattern
	// case-insensitively. Pattern uses SQL LIKE wildcards (% and _); a
	// backslash makes the next character literal.
	SelectWherePartialMatch(ctx context.Context, table, field, pattern string) ([]Row, error)
}

// EscapeLike makes s match itself inside a LIKE pattern.
func EscapeLike(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '\\' || r == '%' || r == '_' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// =============================================================================
// KV STORE - Durable string storage
// =============================================================================

// KVStore is durable storage for short string values.
type KVStore interface {
	// Get returns the value and true, or "" and false when the key is absent.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes the key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}
