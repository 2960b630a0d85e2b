/*
resolver.go - Multi-strategy record lookup

PURPOSE:
  Maps a free-text query (typed or scanned) to exactly one Record, or to a
  definitive "not found", by trying an ordered cascade of backend queries
  against one configured table.

CASCADE (per TableConfig, steps without a configured field are skipped):
  1. exact     PrimaryField   = query
  2. exact     SecondaryField = query
  3. partial   PrimaryField   ILIKE %query% (query wildcards escaped)
  4. partial   SecondaryField ILIKE %query%
     (extra PartialFields follow here)
  5. numeric   NumericField   = number(query), only if query is numeric

  The first step returning rows wins. Later steps never run.

OUTCOMES:
  Ignored:   blank query, no backend call
  Found:     first row of the winning step, normalized
  NotFound:  cascade exhausted, or the winning row had no identifier
  Failed:    a backend error aborted the cascade (no retry, no skip)

TIE-BREAK:
  Multiple rows from one step: the first in backend order is used and the
  rest are dropped. Known limitation, kept on purpose.

CONCURRENCY:
  Resolve holds no state between calls. Overlapping calls may both
  complete and both land in history; callers wanting single-flight
  must serialize submissions themselves (see scan.Session).

SEE ALSO:
  - normalize.go: Row -> Record
  - history.go:   Where found records go
*/
package lookup

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// STRATEGIES
// =============================================================================

// MatchKind selects the backend operation for a strategy.
type MatchKind int

const (
	MatchExact MatchKind = iota
	MatchPartial
)

// Strategy is one step of the cascade.
type Strategy struct {
	Name  string
	Field string
	Kind  MatchKind
	Value any // exact: compared value; partial: LIKE pattern
}

// Cascade returns the ordered strategies for query against cfg.
// Query is expected to be trimmed and non-empty.
func Cascade(cfg TableConfig, query string) []Strategy {
	var steps []Strategy
	exact := func(field string) {
		if field != "" {
			steps = append(steps, Strategy{Name: "exact:" + field, Field: field, Kind: MatchExact, Value: query})
		}
	}
	exact(cfg.PrimaryField)
	exact(cfg.SecondaryField)

	pattern := "%" + EscapeLike(query) + "%"
	seen := make(map[string]bool)
	for _, field := range cfg.partialFields() {
		if field == "" || seen[field] {
			continue
		}
		seen[field] = true
		steps = append(steps, Strategy{Name: "partial:" + field, Field: field, Kind: MatchPartial, Value: pattern})
	}

	if cfg.NumericField != "" {
		if n, ok := parseNumber(query); ok {
			steps = append(steps, Strategy{Name: "numeric:" + cfg.NumericField, Field: cfg.NumericField, Kind: MatchExact, Value: n})
		}
	}
	return steps
}

func parseNumber(s string) (any, bool) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	return f, true
}

// =============================================================================
// RESOLVER
// =============================================================================

// Resolver runs the lookup cascade against a Backend.
type Resolver struct {
	backend Backend
	history *History
	logger  *slog.Logger
	now     func() time.Time
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithHistory makes found records land in h, which is persisted afterwards.
func WithHistory(h *History) ResolverOption {
	return func(r *Resolver) { r.history = h }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides the time source used for default LastUpdated dates.
func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) { r.now = now }
}

// NewResolver creates a resolver over backend.
func NewResolver(backend Backend, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		backend: backend,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// History returns the attached history, or nil.
func (r *Resolver) History() *History {
	return r.history
}

// Resolve looks up query in cfg's table.
func (r *Resolver) Resolve(ctx context.Context, query string, cfg TableConfig) Result {
	q := strings.TrimSpace(query)
	if q == "" {
		return Result{Outcome: OutcomeIgnored}
	}
	if err := cfg.Validate(); err != nil {
		return Result{Outcome: OutcomeFailed, Query: q, Message: err.Error(), Err: err}
	}

	log := r.logger.With("lookup_id", uuid.NewString(), "table", cfg.Name, "query", q)
	log.Debug("lookup started")

	for _, step := range Cascade(cfg, q) {
		rows, err := r.run(ctx, cfg.Name, step)
		if err != nil {
			rerr := &RemoteError{Table: cfg.Name, Field: step.Field, Strategy: step.Name, Err: err}
			log.Error("lookup failed", "strategy", step.Name, "error", err)
			return Result{
				Outcome:  OutcomeFailed,
				Query:    q,
				Strategy: step.Name,
				Message:  rerr.Error(),
				Err:      rerr,
			}
		}
		if len(rows) == 0 {
			log.Debug("no match", "strategy", step.Name)
			continue
		}
		if len(rows) > 1 {
			log.Debug("multiple matches, using first", "strategy", step.Name, "count", len(rows))
		}

		rec := Normalize(rows[0], cfg, r.now())
		if !rec.Valid() {
			log.Warn("matched row has no identifier", "strategy", step.Name, "id_field", cfg.idField())
			return notFound(q, step.Name)
		}

		if r.history != nil {
			r.history.Record(rec)
			r.history.Persist(ctx)
		}
		log.Debug("lookup matched", "strategy", step.Name, "id", rec.ID)
		return Result{Outcome: OutcomeFound, Query: q, Record: &rec, Strategy: step.Name}
	}

	log.Debug("lookup exhausted cascade")
	return notFound(q, "")
}

// All returns every row of cfg's table, normalized. Rows without an
// identifier are skipped.
func (r *Resolver) All(ctx context.Context, cfg TableConfig) ([]Record, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rows, err := r.backend.SelectAll(ctx, cfg.Name)
	if err != nil {
		return nil, &RemoteError{Table: cfg.Name, Strategy: "all", Err: err}
	}
	now := r.now()
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec := Normalize(row, cfg, now)
		if !rec.Valid() {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *Resolver) run(ctx context.Context, table string, step Strategy) ([]Row, error) {
	switch step.Kind {
	case MatchPartial:
		return r.backend.SelectWherePartialMatch(ctx, table, step.Field, fmt.Sprint(step.Value))
	default:
		return r.backend.SelectWhereEquals(ctx, table, step.Field, step.Value)
	}
}

func notFound(query, strategy string) Result {
	return Result{
		Outcome:  OutcomeNotFound,
		Query:    query,
		Strategy: strategy,
		Message:  fmt.Sprintf("No product found with ID: %s", query),
	}
}
