// Package store provides in-memory Backend and KVStore implementations.
package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/warp/property-finder/lookup"
)

// =============================================================================
// MEMORY BACKEND - In-memory tables (for testing/dev)
// =============================================================================

// Call records one backend operation, for asserting cascade order in tests.
type Call struct {
	Op    string // all, equals, partial
	Table string
	Field string
	Value any
}

type Memory struct {
	mu       sync.RWMutex
	tables   map[string][]lookup.Row
	failures map[string]error
	calls    []Call
}

func NewMemory() *Memory {
	return &Memory{
		tables:   make(map[string][]lookup.Row),
		failures: make(map[string]error),
	}
}

// Put appends rows to table, creating it if needed. Order is preserved.
func (m *Memory) Put(table string, rows ...lookup.Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[table] = append(m.tables[table], rows...)
}

// FailWith makes every query on table return err. nil clears it.
func (m *Memory) FailWith(table string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, table)
		return
	}
	m.failures[table] = err
}

// Calls returns the operations seen so far.
func (m *Memory) Calls() []Call {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *Memory) SelectAll(_ context.Context, table string) ([]lookup.Row, error) {
	return m.filter(Call{Op: "all", Table: table}, func(lookup.Row) bool { return true })
}

// SelectWhereEquals compares string forms, so 31083 matches "31083".
func (m *Memory) SelectWhereEquals(_ context.Context, table, field string, value any) ([]lookup.Row, error) {
	want, ok := lookup.FormatValue(value)
	return m.filter(Call{Op: "equals", Table: table, Field: field, Value: value}, func(row lookup.Row) bool {
		got, has := lookup.FormatValue(row[field])
		return ok && has && got == want
	})
}

func (m *Memory) SelectWherePartialMatch(_ context.Context, table, field, pattern string) ([]lookup.Row, error) {
	re := likeRegexp(pattern)
	return m.filter(Call{Op: "partial", Table: table, Field: field, Value: pattern}, func(row lookup.Row) bool {
		got, has := lookup.FormatValue(row[field])
		return has && re.MatchString(got)
	})
}

func (m *Memory) filter(call Call, keep func(lookup.Row) bool) ([]lookup.Row, error) {
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.failures[call.Table]; err != nil {
		return nil, err
	}
	rows, ok := m.tables[call.Table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", lookup.ErrUnknownTable, call.Table)
	}
	var result []lookup.Row
	for _, row := range rows {
		if keep(row) {
			result = append(result, copyRow(row))
		}
	}
	return result, nil
}

func copyRow(row lookup.Row) lookup.Row {
	out := make(lookup.Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

// likeRegexp translates a LIKE pattern into a case-insensitive regexp.
func likeRegexp(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("(?is)^")
	escaped := false
	for _, r := range pattern {
		if escaped {
			b.WriteString(regexp.QuoteMeta(string(r)))
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}

// =============================================================================
// MEMORY KV STORE
// =============================================================================

type MemoryKV struct {
	mu       sync.RWMutex
	data     map[string]string
	writeErr error
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

// FailWrites makes Set and Remove return err. nil clears it.
func (kv *MemoryKV) FailWrites(err error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.writeErr = err
}

func (kv *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	v, ok := kv.data[key]
	return v, ok, nil
}

func (kv *MemoryKV) Set(_ context.Context, key, value string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if kv.writeErr != nil {
		return kv.writeErr
	}
	kv.data[key] = value
	return nil
}

func (kv *MemoryKV) Remove(_ context.Context, key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if kv.writeErr != nil {
		return kv.writeErr
	}
	delete(kv.data, key)
	return nil
}
