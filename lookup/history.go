/*
history.go - Bounded, persisted recent-search list

PURPOSE:
  Keeps the records a user recently resolved, most recent first, unique
  by ID, never longer than a runtime-adjustable capacity, and mirrors
  that list into a KVStore so it survives restarts.

OPERATIONS:
  Record(r):     drop any entry with r.ID, prepend r, truncate (in-memory only)
  Clear():       empty the list and remove the persisted list key
  Resize(n):     change capacity, truncate now, persist list + capacity
  Persist():     write list and capacity; failures are logged, not returned
  Restore():     read capacity, then list; anything malformed counts as absent

PERSISTED FORMAT:
  <listKey>:      JSON array of Record
  <capacityKey>:  decimal integer

  Clear removes <listKey> entirely so "never saved" and "saved empty" stay
  distinguishable. The capacity key is a user preference and is kept.

INVARIANT:
  len(List()) <= Capacity() and IDs are unique after every operation.

CONCURRENCY:
  One History is shared by all HTTP requests in the server, so state is
  guarded by a mutex. KV writes happen outside the lock on a snapshot.

SEE ALSO:
  - resolver.go: Records and persists found records
  - store.go:    KVStore interface
*/
package lookup

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"sync"
)

const (
	// DefaultCapacity is the history size when nothing else is configured.
	DefaultCapacity = 10

	DefaultListKey     = "productSearchHistory"
	DefaultCapacityKey = "productSearchHistoryMaxItems"
)

// History is the recent-search cache.
type History struct {
	mu          sync.RWMutex
	entries     []Record
	capacity    int
	kv          KVStore
	listKey     string
	capacityKey string
	logger      *slog.Logger
}

// HistoryOption configures a History.
type HistoryOption func(*History)

// WithCapacity sets the initial capacity. Values < 1 are ignored.
func WithCapacity(n int) HistoryOption {
	return func(h *History) {
		if n > 0 {
			h.capacity = n
		}
	}
}

// WithKeys overrides the KV keys used for the list and the capacity.
func WithKeys(listKey, capacityKey string) HistoryOption {
	return func(h *History) {
		if listKey != "" {
			h.listKey = listKey
		}
		if capacityKey != "" {
			h.capacityKey = capacityKey
		}
	}
}

// WithHistoryLogger sets the logger used for swallowed persistence errors.
func WithHistoryLogger(l *slog.Logger) HistoryOption {
	return func(h *History) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHistory creates an empty history. kv may be nil for a purely
// in-memory history.
func NewHistory(kv KVStore, opts ...HistoryOption) *History {
	h := &History{
		capacity:    DefaultCapacity,
		kv:          kv,
		listKey:     DefaultListKey,
		capacityKey: DefaultCapacityKey,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// =============================================================================
// READS
// =============================================================================

// List returns a copy of the entries, most recent first.
func (h *History) List() []Record {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Record, len(h.entries))
	copy(out, h.entries)
	return out
}

// Capacity returns the current maximum length.
func (h *History) Capacity() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.capacity
}

// Select returns the entry with id, for redisplay without a backend call.
func (h *History) Select(id string) (Record, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, r := range h.entries {
		if r.ID == id {
			return r, true
		}
	}
	return Record{}, false
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Record moves r to the front, replacing any entry with the same ID.
// It does not persist.
func (h *History) Record(r Record) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = prepend(h.entries, r, h.capacity)
}

// Clear empties the list and removes the persisted list key.
func (h *History) Clear(ctx context.Context) {
	h.mu.Lock()
	h.entries = nil
	h.mu.Unlock()

	if h.kv == nil {
		return
	}
	if err := h.kv.Remove(ctx, h.listKey); err != nil {
		h.logger.Warn("failed to remove persisted history", "key", h.listKey, "error", err)
	}
}

// Resize sets a new capacity, truncates, and persists.
func (h *History) Resize(ctx context.Context, n int) error {
	if n < 1 {
		return ErrInvalidCapacity
	}
	h.mu.Lock()
	h.capacity = n
	if len(h.entries) > n {
		h.entries = h.entries[:n]
	}
	h.mu.Unlock()

	h.Persist(ctx)
	return nil
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// Persist writes the list and capacity to the KVStore. Errors are logged;
// losing history is not fatal.
func (h *History) Persist(ctx context.Context) {
	if h.kv == nil {
		return
	}
	h.mu.RLock()
	entries := make([]Record, len(h.entries))
	copy(entries, h.entries)
	capacity := h.capacity
	h.mu.RUnlock()

	data, err := json.Marshal(entries)
	if err != nil {
		h.logger.Error("failed to encode history", "error", err)
		return
	}
	if err := h.kv.Set(ctx, h.listKey, string(data)); err != nil {
		h.logger.Error("failed to persist history", "key", h.listKey, "error", err)
	}
	if err := h.kv.Set(ctx, h.capacityKey, strconv.Itoa(capacity)); err != nil {
		h.logger.Error("failed to persist history capacity", "key", h.capacityKey, "error", err)
	}
}

// Restore loads capacity and list from the KVStore. Missing or malformed
// values fall back to defaults: current capacity and an empty list.
func (h *History) Restore(ctx context.Context) {
	if h.kv == nil {
		return
	}

	capacity := h.Capacity()
	if raw, ok := h.get(ctx, h.capacityKey); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && n > 0 {
			capacity = n
		} else {
			h.logger.Warn("ignoring malformed history capacity", "value", raw)
		}
	}

	var entries []Record
	if raw, ok := h.get(ctx, h.listKey); ok {
		decoded, err := decodeEntries(raw)
		if err != nil {
			h.logger.Warn("ignoring malformed history", "error", err)
			if err := h.kv.Remove(ctx, h.listKey); err != nil {
				h.logger.Warn("failed to remove malformed history", "error", err)
			}
		}
		for _, r := range decoded {
			if r.Valid() {
				entries = appendUnique(entries, r)
			}
		}
		if len(entries) > capacity {
			entries = entries[:capacity]
		}
	}

	h.mu.Lock()
	h.capacity = capacity
	h.entries = entries
	h.mu.Unlock()
}

func (h *History) get(ctx context.Context, key string) (string, bool) {
	raw, ok, err := h.kv.Get(ctx, key)
	if err != nil {
		h.logger.Warn("failed to read persisted history", "key", key, "error", err)
		return "", false
	}
	return raw, ok
}

type notArrayError struct{}

func (notArrayError) Error() string { return "persisted history is not a JSON array" }

func decodeEntries(raw string) ([]Record, error) {
	if !strings.HasPrefix(strings.TrimSpace(raw), "[") {
		return nil, notArrayError{}
	}
	var entries []Record
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func prepend(entries []Record, r Record, capacity int) []Record {
	out := make([]Record, 0, len(entries)+1)
	out = append(out, r)
	for _, e := range entries {
		if e.ID != r.ID {
			out = append(out, e)
		}
	}
	if len(out) > capacity {
		out = out[:capacity]
	}
	return out
}

func appendUnique(entries []Record, r Record) []Record {
	for _, e := range entries {
		if e.ID == r.ID {
			return entries
		}
	}
	return append(entries, r)
}
