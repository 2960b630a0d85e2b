/*
session.go - Line-oriented scanner terminal

PURPOSE:
  Drives lookups from a keyboard-wedge barcode scanner or a typist on a
  terminal. Each input line replaces the current input; what happens next
  depends on the mode.

MODES:
  typed (default):  every line is submitted immediately
  scan:             lines are debounced; the latest is submitted once the
                    input has been quiet for the window. An empty line
                    submits the current input at once.

SINGLE-FLIGHT:
  While a lookup is in flight further submissions are dropped, not queued.
  The resolver itself allows overlap; this session does not.

CLEARING:
  After a successful lookup the input is cleared when in scan mode or when
  ClearOnSuccess is set. Failed and not-found lookups leave it in place.

COMMANDS:
  :history     list recent searches
  :show ID     redisplay an entry from history, no backend call
  :clear       clear history
  :max N       set history capacity
  :scan        toggle scan mode
*/
package scan

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/warp/property-finder/lookup"
)

// Config configures a Session.
type Config struct {
	Table          lookup.TableConfig
	ScanMode       bool
	ClearOnSuccess bool
	Window         time.Duration
	Logger         *slog.Logger
}

// Session reads input, resolves it, and prints results.
type Session struct {
	resolver       *lookup.Resolver
	history        *lookup.History
	table          lookup.TableConfig
	clearOnSuccess bool
	logger         *slog.Logger

	scanMode  atomic.Bool
	busy      atomic.Bool
	debouncer *Debouncer

	mu    sync.Mutex
	input string

	outMu sync.Mutex
	out   io.Writer
}

// NewSession creates a session writing to out. History commands use the
// resolver's history; they report an error when it has none.
func NewSession(resolver *lookup.Resolver, out io.Writer, cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		resolver:       resolver,
		history:        resolver.History(),
		table:          cfg.Table,
		clearOnSuccess: cfg.ClearOnSuccess,
		logger:         logger,
		out:            out,
	}
	s.scanMode.Store(cfg.ScanMode)
	s.debouncer = NewDebouncer(cfg.Window, func(string) {
		s.Submit(context.Background())
	})
	return s
}

// Close stops the debouncer, dropping any pending input.
func (s *Session) Close() {
	s.debouncer.Stop()
}

// Input returns the current input.
func (s *Session) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// ScanMode reports whether scan mode is on.
func (s *Session) ScanMode() bool {
	return s.scanMode.Load()
}

// SetInput replaces the current input. In scan mode it restarts the
// debounce window.
func (s *Session) SetInput(text string) {
	s.mu.Lock()
	s.input = text
	s.mu.Unlock()

	if s.scanMode.Load() && strings.TrimSpace(text) != "" {
		s.debouncer.Trigger(text)
	}
}

// Submit resolves the current input. It returns the result, or false when
// there was nothing to do or a lookup was already in flight.
func (s *Session) Submit(ctx context.Context) (lookup.Result, bool) {
	query := strings.TrimSpace(s.Input())
	if query == "" {
		return lookup.Result{}, false
	}
	if !s.busy.CompareAndSwap(false, true) {
		s.logger.Debug("lookup in flight, dropping submission", "query", query)
		return lookup.Result{}, false
	}
	defer s.busy.Store(false)

	res := s.resolver.Resolve(ctx, query, s.table)
	s.printResult(res)

	if res.Outcome == lookup.OutcomeFound && (s.scanMode.Load() || s.clearOnSuccess) {
		// Input replaced during the lookup belongs to the next submission.
		s.mu.Lock()
		if strings.TrimSpace(s.input) == query {
			s.input = ""
		}
		s.mu.Unlock()
	}
	return res, true
}

// Run processes lines from r until EOF or ctx is done. Pending scan input
// is flushed at EOF.
func (s *Session) Run(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.HasPrefix(strings.TrimSpace(line), ":") {
			s.command(ctx, strings.TrimSpace(line))
			continue
		}

		if s.scanMode.Load() {
			if strings.TrimSpace(line) == "" {
				if !s.debouncer.Flush() {
					s.Submit(ctx)
				}
				continue
			}
			s.SetInput(line)
			continue
		}
		s.SetInput(line)
		s.Submit(ctx)
	}
	s.debouncer.Flush()
	return scanner.Err()
}

// =============================================================================
// COMMANDS
// =============================================================================

func (s *Session) command(ctx context.Context, line string) {
	name, arg, _ := strings.Cut(strings.TrimPrefix(line, ":"), " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "scan":
		on := !s.scanMode.Load()
		s.scanMode.Store(on)
		if on {
			s.printf("Scan mode on. Input clears after a successful scan.\n")
		} else {
			s.debouncer.Flush()
			s.printf("Scan mode off.\n")
		}
		return
	}

	if s.history == nil {
		s.printf("History is not enabled.\n")
		return
	}

	switch name {
	case "history":
		s.printHistory()
	case "show":
		rec, ok := s.history.Select(arg)
		if !ok {
			s.printf("Not in history: %s\n", arg)
			return
		}
		s.printRecord(rec)
	case "clear":
		s.history.Clear(ctx)
		s.printf("History cleared.\n")
	case "max":
		n, err := strconv.Atoi(arg)
		if err != nil {
			n = 0
		}
		if err := s.history.Resize(ctx, n); err != nil {
			s.printf("Invalid max %q: %v\n", arg, err)
			return
		}
		s.printf("History keeps up to %d searches.\n", n)
	default:
		s.printf("Unknown command :%s (try :history, :show ID, :clear, :max N, :scan)\n", name)
	}
}

// =============================================================================
// OUTPUT
// =============================================================================

func (s *Session) printf(format string, args ...any) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

func (s *Session) printResult(res lookup.Result) {
	switch res.Outcome {
	case lookup.OutcomeFound:
		s.printRecord(*res.Record)
	case lookup.OutcomeNotFound:
		s.printf("%s\n", res.Message)
	case lookup.OutcomeFailed:
		s.printf("Lookup failed: %s\n", res.Message)
	}
}

func (s *Session) printRecord(r lookup.Record) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	WriteRecord(s.out, r)
}

// WriteRecord prints r as an ID/title line followed by indented fields.
// Attributes are printed in key order.
func WriteRecord(w io.Writer, r lookup.Record) {
	fmt.Fprintf(w, "%s  %s\n", r.ID, r.Title)
	if r.GroupLabel != "" {
		fmt.Fprintf(w, "  group:     %s\n", r.GroupLabel)
	}
	if r.LocationOrDate != "" {
		fmt.Fprintf(w, "  location:  %s\n", r.LocationOrDate)
	}
	fmt.Fprintf(w, "  quantity:  %s\n", r.Quantity.String())
	fmt.Fprintf(w, "  updated:   %s\n", r.LastUpdated)

	keys := make([]string, 0, len(r.Attributes))
	for k := range r.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %s\n", k, r.Attributes[k].String())
	}
}

func (s *Session) printHistory() {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	WriteHistory(s.out, s.history.List(), s.history.Capacity())
}

// WriteHistory prints a numbered history listing, most recent first.
func WriteHistory(w io.Writer, entries []lookup.Record, capacity int) {
	if len(entries) == 0 {
		fmt.Fprintf(w, "No recent searches.\n")
		return
	}
	fmt.Fprintf(w, "Recent searches (max %d):\n", capacity)
	for i, r := range entries {
		fmt.Fprintf(w, "%2d. %s  %s  (%s)\n", i+1, r.ID, r.Title, r.LastUpdated)
	}
}
