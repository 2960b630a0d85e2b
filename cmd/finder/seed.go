package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/warp/property-finder/api"
)

var seedList bool

var seedCmd = &cobra.Command{
	Use:   "seed [fixture]",
	Short: "Load a demo fixture into the SQLite database",
	Long: `Drops previously loaded demo tables, clears history, and loads the named
fixture. Only available with the sqlite backend.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().BoolVar(&seedList, "list", false, "list available fixtures")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	if seedList {
		for _, f := range api.Fixtures() {
			cmd.Printf("%-14s %s\n", f.ID, f.Description)
		}
		return nil
	}
	if len(args) == 0 {
		return fmt.Errorf("fixture name required (see --list)")
	}
	if opts.backend != backendSQLite {
		return fmt.Errorf("seed requires the sqlite backend")
	}
	if !api.KnownFixture(args[0]) {
		return fmt.Errorf("unknown fixture %q (see --list)", args[0])
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.Reset(ctx); err != nil {
		return err
	}
	a.history.Clear(ctx)
	if err := api.Seed(ctx, a.store, args[0]); err != nil {
		return err
	}
	a.logger.Info("fixture loaded", "fixture", args[0], "db", opts.dbPath)
	cmd.Printf("Loaded fixture %q.\n", args[0])
	return nil
}
