package main

import (
	"github.com/spf13/cobra"

	"github.com/warp/property-finder/factory"
)

var tablesDump bool

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "Print configured tables",
	Long: `Prints the configured tables with their field mappings. With --dump the
definitions are written as TOML, suitable as a starting point for --tables.`,
	Args: cobra.NoArgs,
	RunE: runTables,
}

func init() {
	tablesCmd.Flags().BoolVar(&tablesDump, "dump", false, "print definitions as TOML")
	rootCmd.AddCommand(tablesCmd)
}

func runTables(cmd *cobra.Command, args []string) error {
	tables, err := factory.LoadFile(opts.tablesPath)
	if err != nil {
		return err
	}

	if tablesDump {
		data, err := factory.Encode(tables)
		if err != nil {
			return err
		}
		cmd.Print(string(data))
		return nil
	}

	for _, name := range factory.Names(tables) {
		cfg := tables[name]
		marker := " "
		if name == opts.table {
			marker = "*"
		}
		cmd.Printf("%s %-10s primary=%s", marker, name, cfg.PrimaryField)
		if cfg.SecondaryField != "" {
			cmd.Printf(" secondary=%s", cfg.SecondaryField)
		}
		if cfg.NumericField != "" {
			cmd.Printf(" numeric=%s", cfg.NumericField)
		}
		cmd.Println()
	}
	return nil
}
