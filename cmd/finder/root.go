package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/warp/property-finder/factory"
	"github.com/warp/property-finder/logging"
	"github.com/warp/property-finder/lookup"
	"github.com/warp/property-finder/store/postgrest"
	"github.com/warp/property-finder/store/sqlite"
)

const (
	backendSQLite    = "sqlite"
	backendPostgREST = "postgrest"
)

// options holds values bound to persistent flags.
type options struct {
	dbPath     string
	backend    string
	url        string
	key        string
	tablesPath string
	table      string
	maxHistory int
	verbose    bool
	logFormat  string
}

var opts options

var rootCmd = &cobra.Command{
	Use:   "finder",
	Short: "Look up records by scanned or typed ID",
	Long: `Resolves a scanned or typed identifier to one record in a configured
table, trying exact, partial and numeric matches in order, and keeps a
bounded history of recent finds.`,
	SilenceUsage: true,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&opts.dbPath, "db", envOr("FINDER_DB", "finder.db"), "SQLite database path (\":memory:\" for in-memory)")
	f.StringVar(&opts.backend, "backend", envOr("FINDER_BACKEND", backendSQLite), "lookup backend: sqlite or postgrest")
	f.StringVar(&opts.url, "url", os.Getenv("SUPABASE_URL"), "PostgREST base URL")
	f.StringVar(&opts.key, "key", os.Getenv("SUPABASE_ANON_KEY"), "PostgREST anon key")
	f.StringVar(&opts.tablesPath, "tables", os.Getenv("FINDER_TABLES"), "TOML file with table definitions")
	f.StringVar(&opts.table, "table", envOr("FINDER_TABLE", "cell"), "table to search")
	f.IntVar(&opts.maxHistory, "max-history", lookup.DefaultCapacity, "history capacity (overrides the persisted value when set)")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	f.StringVar(&opts.logFormat, "log-format", "text", "log format: text or json")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// =============================================================================
// DEPENDENCY WIRING
// =============================================================================

// app is the wired dependency graph shared by all commands.
type app struct {
	logger   *slog.Logger
	tables   map[string]lookup.TableConfig
	store    *sqlite.Store
	backend  lookup.Backend
	history  *lookup.History
	resolver *lookup.Resolver
}

// newApp opens the database, picks the backend and restores history.
func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	logger := logging.New(cmd.ErrOrStderr(), logging.ParseFormat(opts.logFormat), opts.verbose)

	tables, err := factory.LoadFile(opts.tablesPath)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.New(opts.dbPath)
	if err != nil {
		return nil, err
	}

	var backend lookup.Backend = store
	switch opts.backend {
	case backendSQLite:
	case backendPostgREST:
		client := postgrest.New(opts.url, opts.key)
		if !client.Connected() {
			logger.Warn("no PostgREST credentials, every lookup will fail", "url_set", opts.url != "", "key_set", opts.key != "")
		}
		backend = client
	default:
		store.Close()
		return nil, fmt.Errorf("unknown backend %q (want %s or %s)", opts.backend, backendSQLite, backendPostgREST)
	}

	history := lookup.NewHistory(store, lookup.WithHistoryLogger(logger))
	history.Restore(ctx)
	if cmd.Flags().Changed("max-history") {
		if err := history.Resize(ctx, opts.maxHistory); err != nil {
			store.Close()
			return nil, err
		}
	}

	return &app{
		logger:   logger,
		tables:   tables,
		store:    store,
		backend:  backend,
		history:  history,
		resolver: lookup.NewResolver(backend, lookup.WithHistory(history), lookup.WithLogger(logger)),
	}, nil
}

// table returns the selected table config.
func (a *app) table() (lookup.TableConfig, error) {
	cfg, ok := a.tables[opts.table]
	if !ok {
		return lookup.TableConfig{}, fmt.Errorf("%w: %s (have %v)", lookup.ErrTableNotConfigured, opts.table, factory.Names(a.tables))
	}
	return cfg, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
