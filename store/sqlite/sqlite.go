/*
Package sqlite provides a SQLite-backed implementation of the lookup interfaces.

PURPOSE:
  Implements both external collaborators of the lookup engine on one
  SQLite file: the Backend (queries over arbitrary tables) and the
  KVStore (durable history). Used for local development, demos, and
  deployments that keep the lookup tables next to the server.

INTERFACES IMPLEMENTED:
  lookup.Backend:  SelectAll / SelectWhereEquals / SelectWherePartialMatch
  lookup.KVStore:  Get / Set / Remove on kv_store

GENERIC ROWS:
  Lookup tables are not known at compile time. Queries use SELECT * and
  scan every column into a lookup.Row keyed by column name. Identifiers
  are double-quoted, so columns like "defect type" and "#" work.
  Values are always bound as parameters, never interpolated.

PARTIAL MATCH:
  LOWER(CAST(col AS TEXT)) LIKE LOWER(?) ESCAPE '\', so numeric columns
  match too and backslash-escaped wildcards stay literal.

ORDER:
  Rows come back in rowid order, which is insertion order. The resolver
  takes the first row, so this makes tie-breaks deterministic.

KEY TABLES:
  kv_store:        Persistent key-value pairs (history)
  fixture_tables:  Tables created through CreateTable, dropped by Reset

WAL MODE:
  Opened with WAL so the HTTP server can read while history is written.

USAGE:
  store, err := sqlite.New("./data/finder.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  history := lookup.NewHistory(store)
  resolver := lookup.NewResolver(store, lookup.WithHistory(history))

SEE ALSO:
  - lookup/store.go:         Interface definitions
  - lookup/store/memory.go:  In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/property-finder/lookup"
)

// Store implements lookup.Backend and lookup.KVStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ lookup.Backend = (*Store)(nil)
	_ lookup.KVStore = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open database", goerr.V("path", dbPath))
	}
	// Each :memory: connection is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, goerr.Wrap(err, "failed to migrate database", goerr.V("path", dbPath))
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Durable key-value pairs (search history, capacity)
	CREATE TABLE IF NOT EXISTS kv_store (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Lookup tables created by fixtures, so Reset knows what to drop
	CREATE TABLE IF NOT EXISTS fixture_tables (
		name TEXT PRIMARY KEY,
		created_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// BACKEND (lookup.Backend interface)
// =============================================================================

// SelectAll returns every row of table in insertion order.
func (s *Store) SelectAll(ctx context.Context, table string) ([]lookup.Row, error) {
	query := fmt.Sprintf("SELECT * FROM %s ORDER BY rowid", quoteIdent(table))
	return s.queryRows(ctx, table, query)
}

// SelectWhereEquals returns rows where field = value.
func (s *Store) SelectWhereEquals(ctx context.Context, table, field string, value any) ([]lookup.Row, error) {
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = ? ORDER BY rowid", quoteIdent(table), quoteIdent(field))
	return s.queryRows(ctx, table, query, value)
}

// SelectWherePartialMatch returns rows where field matches pattern, ignoring case.
func (s *Store) SelectWherePartialMatch(ctx context.Context, table, field, pattern string) ([]lookup.Row, error) {
	query := fmt.Sprintf("SELECT * FROM %s WHERE LOWER(CAST(%s AS TEXT)) LIKE LOWER(?) ESCAPE '\\' ORDER BY rowid",
		quoteIdent(table), quoteIdent(field))
	return s.queryRows(ctx, table, query, pattern)
}

func (s *Store) queryRows(ctx context.Context, table, query string, args ...any) ([]lookup.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		if isNoSuchTableError(err) {
			return nil, goerr.Wrap(lookup.ErrUnknownTable, err.Error(), goerr.V("table", table))
		}
		return nil, goerr.Wrap(err, "failed to query table", goerr.V("table", table))
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read columns", goerr.V("table", table))
	}

	var result []lookup.Row
	for rows.Next() {
		row, err := scanRow(rows, columns)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan row", goerr.V("table", table))
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate rows", goerr.V("table", table))
	}
	return result, nil
}

func scanRow(rows *sql.Rows, columns []string) (lookup.Row, error) {
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	row := make(lookup.Row, len(columns))
	for i, col := range columns {
		if b, ok := values[i].([]byte); ok {
			row[col] = string(b)
			continue
		}
		row[col] = values[i]
	}
	return row, nil
}

// =============================================================================
// KV STORE (lookup.KVStore interface)
// =============================================================================

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv_store WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, goerr.Wrap(err, "failed to read key", goerr.V("key", key))
	}
	return value, true, nil
}

// Set stores value under key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query, key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return goerr.Wrap(err, "failed to write key", goerr.V("key", key))
	}
	return nil
}

// Remove deletes key.
func (s *Store) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM kv_store WHERE key = ?", key); err != nil {
		return goerr.Wrap(err, "failed to remove key", goerr.V("key", key))
	}
	return nil
}

// =============================================================================
// FIXTURE TABLES - For demos and tests
// =============================================================================

// Column declares a fixture table column. Type is a SQLite type name
// (TEXT, INTEGER, REAL); empty means no declared affinity.
type Column struct {
	Name string
	Type string
}

// CreateTable creates a lookup table if it does not exist.
func (s *Store) CreateTable(ctx context.Context, name string, columns []Column) error {
	if len(columns) == 0 {
		return goerr.New("table needs at least one column", goerr.V("table", name))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = strings.TrimSpace(quoteIdent(c.Name) + " " + c.Type)
	}
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(name), strings.Join(defs, ", "))

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return goerr.Wrap(err, "failed to create table", goerr.V("table", name))
		}
		_, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO fixture_tables (name, created_at) VALUES (?, ?)",
			name, time.Now().UTC().Format(time.RFC3339))
		if err != nil {
			return goerr.Wrap(err, "failed to register table", goerr.V("table", name))
		}
		return nil
	})
}

// InsertRows inserts rows atomically. Nested maps and slices are stored
// as JSON text.
func (s *Store) InsertRows(ctx context.Context, table string, rows []lookup.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		for i, row := range rows {
			columns := make([]string, 0, len(row))
			for col := range row {
				columns = append(columns, col)
			}
			sort.Strings(columns)

			quoted := make([]string, len(columns))
			marks := make([]string, len(columns))
			args := make([]any, len(columns))
			for j, col := range columns {
				quoted[j] = quoteIdent(col)
				marks[j] = "?"
				v, err := bindValue(row[col])
				if err != nil {
					return goerr.Wrap(err, "failed to encode value", goerr.V("table", table), goerr.V("column", col))
				}
				args[j] = v
			}

			query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
				quoteIdent(table), strings.Join(quoted, ", "), strings.Join(marks, ", "))
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return goerr.Wrap(err, "failed to insert row", goerr.V("table", table), goerr.V("index", i))
			}
		}
		return nil
	})
}

// Tables returns the fixture tables that exist, sorted by name.
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT name FROM fixture_tables ORDER BY name")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list tables")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, goerr.Wrap(err, "failed to scan table name")
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Reset drops all fixture tables and clears kv_store.
func (s *Store) Reset(ctx context.Context) error {
	names, err := s.Tables(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, name := range names {
			if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(name)); err != nil {
				return goerr.Wrap(err, "failed to drop table", goerr.V("table", name))
			}
		}
		for _, stmt := range []string{"DELETE FROM fixture_tables", "DELETE FROM kv_store"} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return goerr.Wrap(err, "failed to reset")
			}
		}
		return nil
	})
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to begin transaction")
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return goerr.Wrap(err, "failed to commit transaction")
	}
	return nil
}

// Helper functions

// quoteIdent quotes a SQL identifier, doubling embedded quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func bindValue(v any) (any, error) {
	switch x := v.(type) {
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case json.Number:
		return x.String(), nil
	default:
		return v, nil
	}
}

func isNoSuchTableError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}
