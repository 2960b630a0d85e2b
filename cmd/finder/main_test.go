package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/property-finder/lookup"
)

// resetFlags restores every flag to its default so runs don't leak state
// through the package-level command tree.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "finder.db")
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "lookup", "scan", "history", "tables", "seed"} {
		assert.True(t, names[want], want)
	}
}

func TestSeedLookupHistory(t *testing.T) {
	// GIVEN: A fresh database seeded with the factory floor fixture
	db := tempDB(t)
	out, err := execute(t, "", "seed", "factory-floor", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, `Loaded fixture "factory-floor"`)

	// WHEN: Looking up a partial cell ID and a pallet code
	out, err = execute(t, "", "lookup", "31083", "--db", db, "--table", "cell")
	require.NoError(t, err)
	assert.Contains(t, out, "PTQF31083  Scratch")

	out, err = execute(t, "", "lookup", "pt-b7", "--db", db, "--table", "pallet")
	require.NoError(t, err)
	assert.Contains(t, out, "PAL-0017  Unlabeled Pallet")

	// THEN: Both finds are in history, most recent first, across processes
	out, err = execute(t, "", "history", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Recent searches (max 10):")
	assert.Less(t, strings.Index(out, "PAL-0017"), strings.Index(out, "PTQF31083"))

	out, err = execute(t, "", "history", "show", "PTQF31083", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "PTQF31083  Scratch")
}

func TestLookup_NotFound(t *testing.T) {
	db := tempDB(t)
	_, err := execute(t, "", "seed", "factory-floor", "--db", db)
	require.NoError(t, err)

	out, err := execute(t, "", "lookup", "ZZZ", "--db", db)

	require.NoError(t, err)
	assert.Contains(t, out, "No product found with ID: ZZZ")

	out, err = execute(t, "", "history", "list", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No recent searches.")
}

func TestLookup_JSON(t *testing.T) {
	db := tempDB(t)
	_, err := execute(t, "", "seed", "products", "--db", db)
	require.NoError(t, err)

	out, err := execute(t, "", "lookup", "P1002", "--db", db, "--table", "products", "--json")

	require.NoError(t, err)
	var rec lookup.Record
	require.NoError(t, json.Unmarshal([]byte(out), &rec), out)
	assert.Equal(t, "P1002", rec.ID)
	assert.Equal(t, "Electric Motor", rec.Title)
}

func TestLookup_MissingTableFails(t *testing.T) {
	// Nothing seeded, so the backend has no cell table.
	db := tempDB(t)

	_, err := execute(t, "", "lookup", "31083", "--db", db)

	require.Error(t, err)
	assert.ErrorIs(t, err, lookup.ErrResolutionFailed)
}

func TestLookup_UnconfiguredTable(t *testing.T) {
	_, err := execute(t, "", "lookup", "x", "--db", tempDB(t), "--table", "nope")

	assert.ErrorIs(t, err, lookup.ErrTableNotConfigured)
}

func TestHistory_ResizeAndClear(t *testing.T) {
	db := tempDB(t)
	_, err := execute(t, "", "seed", "factory-floor", "--db", db)
	require.NoError(t, err)
	for _, q := range []string{"PTQF31083", "PTQG00412"} {
		_, err := execute(t, "", "lookup", q, "--db", db)
		require.NoError(t, err)
	}

	out, err := execute(t, "", "history", "resize", "1", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "History now keeps 1 entries.")

	out, err = execute(t, "", "history", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Recent searches (max 1):")
	assert.Contains(t, out, "PTQG00412")
	assert.NotContains(t, out, "PTQF31083")

	_, err = execute(t, "", "history", "resize", "0", "--db", db)
	assert.ErrorIs(t, err, lookup.ErrInvalidCapacity)
	_, err = execute(t, "", "history", "resize", "ten", "--db", db)
	assert.Error(t, err)

	out, err = execute(t, "", "history", "clear", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "History cleared.")

	// Clearing keeps the configured capacity.
	_, err = execute(t, "", "lookup", "PTQF31083", "--db", db)
	require.NoError(t, err)
	out, err = execute(t, "", "history", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Recent searches (max 1):")
}

func TestMaxHistoryFlagOverridesPersisted(t *testing.T) {
	db := tempDB(t)
	_, err := execute(t, "", "history", "resize", "2", "--db", db)
	require.NoError(t, err)

	out, err := execute(t, "", "history", "--db", db, "--max-history", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "No recent searches.")

	_, err = execute(t, "", "seed", "factory-floor", "--db", db)
	require.NoError(t, err)
	_, err = execute(t, "", "lookup", "PTQF31083", "--db", db)
	require.NoError(t, err)
	out, err = execute(t, "", "history", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Recent searches (max 5):")
}

func TestHistoryShow_Unknown(t *testing.T) {
	_, err := execute(t, "", "history", "show", "nope", "--db", tempDB(t))

	assert.Error(t, err)
}

func TestScan_TypedMode(t *testing.T) {
	db := tempDB(t)
	_, err := execute(t, "", "seed", "factory-floor", "--db", db)
	require.NoError(t, err)

	out, err := execute(t, "SN-88345\nZZZ\n:history\n", "scan", "--mode", "typed", "--db", db, "--table", "degas")

	require.NoError(t, err)
	assert.Contains(t, out, "DG-0003  Pressure Drop")
	assert.Contains(t, out, "No product found with ID: ZZZ")
	assert.Contains(t, out, "Recent searches (max 10):")
}

func TestScan_ScanModeFlushesAtEOF(t *testing.T) {
	db := tempDB(t)
	_, err := execute(t, "", "seed", "factory-floor", "--db", db)
	require.NoError(t, err)

	out, err := execute(t, "PTQF31083\n", "scan", "--db", db, "--debounce", "1h")

	require.NoError(t, err)
	assert.Contains(t, out, "PTQF31083  Scratch")
}

func TestScan_BadMode(t *testing.T) {
	_, err := execute(t, "", "scan", "--mode", "wand", "--db", tempDB(t))

	assert.Error(t, err)
}

func TestTables(t *testing.T) {
	out, err := execute(t, "", "tables", "--table", "pallet")
	require.NoError(t, err)
	assert.Contains(t, out, "* pallet")
	assert.Contains(t, out, "  cell")
	assert.Contains(t, out, "secondary=code")

	out, err = execute(t, "", "tables", "--dump")
	require.NoError(t, err)
	assert.Contains(t, out, "[[table]]")
	assert.Contains(t, out, "degas")
}

func TestSeed_Errors(t *testing.T) {
	db := tempDB(t)

	_, err := execute(t, "", "seed", "--db", db)
	assert.Error(t, err)

	_, err = execute(t, "", "seed", "nope", "--db", db)
	assert.Error(t, err)

	_, err = execute(t, "", "seed", "products", "--db", db, "--backend", "postgrest")
	assert.Error(t, err)

	out, err := execute(t, "", "seed", "--list")
	require.NoError(t, err)
	assert.Contains(t, out, "factory-floor")
}

func TestUnknownBackend(t *testing.T) {
	_, err := execute(t, "", "history", "--db", tempDB(t), "--backend", "mongo")

	assert.Error(t, err)
}
