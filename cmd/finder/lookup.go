package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/warp/property-finder/lookup"
	"github.com/warp/property-finder/scan"
)

var lookupJSON bool

var lookupCmd = &cobra.Command{
	Use:   "lookup [query]",
	Short: "Resolve one query and print the record",
	Long: `Tries exact, partial and numeric matches against --table and prints
the first record found. A found record is added to history.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLookup,
}

func init() {
	lookupCmd.Flags().BoolVar(&lookupJSON, "json", false, "output result as JSON")
	rootCmd.AddCommand(lookupCmd)
}

func runLookup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg, err := a.table()
	if err != nil {
		return err
	}

	res := a.resolver.Resolve(ctx, strings.Join(args, " "), cfg)
	if res.Outcome == lookup.OutcomeFailed {
		return res.Err
	}

	if lookupJSON {
		data, err := json.MarshalIndent(res.Record, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	switch res.Outcome {
	case lookup.OutcomeFound:
		scan.WriteRecord(cmd.OutOrStdout(), *res.Record)
	case lookup.OutcomeNotFound:
		cmd.Println(res.Message)
	case lookup.OutcomeIgnored:
		cmd.Println("Empty query.")
	}
	return nil
}
