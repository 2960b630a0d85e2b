/*
main.go - Application entry point

PURPOSE:
  Command-line entry for the property finder: an HTTP server, one-shot
  lookups, a scanner terminal, history management and demo data.

COMMANDS:
  serve      HTTP API (see api/server.go)
  lookup     Resolve one query and print the record
  scan       Read scanner or keyboard input from stdin
  history    list | show | clear | resize
  tables     Print configured tables, or dump them as TOML
  seed       Load a demo fixture into the SQLite database

CONFIGURATION (flag, then environment, then default):
  --db           FINDER_DB           finder.db
  --backend      FINDER_BACKEND      sqlite      (sqlite | postgrest)
  --url          SUPABASE_URL
  --key          SUPABASE_ANON_KEY
  --tables       FINDER_TABLES       TOML table definitions, optional
  --table        FINDER_TABLE        cell
  --max-history                      persisted value, else 10
  --verbose, --log-format

  The SQLite database always holds the search history, even when lookups
  go to the PostgREST backend.

EXAMPLES:
  # Demo data, then a lookup
  finder seed factory-floor
  finder lookup 31083

  # Scanner on the hosted products table
  SUPABASE_URL=... SUPABASE_ANON_KEY=... finder --backend postgrest --table products scan

SEE ALSO:
  - root.go: Flags and dependency wiring
*/
package main

import "os"

func main() {
	// cmd.Print* defaults to stderr; results belong on stdout.
	rootCmd.SetOut(os.Stdout)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
