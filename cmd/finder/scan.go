package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/warp/property-finder/scan"
)

var (
	scanMode           string
	scanClearOnSuccess bool
	scanDebounce       time.Duration
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Read scanner or keyboard input from stdin",
	Long: `Reads lines from stdin and resolves each one against --table.

In scan mode a lookup fires once input has been quiet for --debounce, and
an empty line submits immediately. In typed mode every line is submitted.
Lines starting with ':' are commands: :scan, :history, :show ID, :clear,
:max N.`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanMode, "mode", "scan", "input mode: scan or typed")
	scanCmd.Flags().BoolVar(&scanClearOnSuccess, "clear-on-success", true, "clear input after a record is found")
	scanCmd.Flags().DurationVar(&scanDebounce, "debounce", scan.DefaultWindow, "scan mode quiet period")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	if scanMode != "scan" && scanMode != "typed" {
		return fmt.Errorf("unknown mode %q (want scan or typed)", scanMode)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg, err := a.table()
	if err != nil {
		return err
	}

	session := scan.NewSession(a.resolver, cmd.OutOrStdout(), scan.Config{
		Table:          cfg,
		ScanMode:       scanMode == "scan",
		ClearOnSuccess: scanClearOnSuccess,
		Window:         scanDebounce,
		Logger:         a.logger,
	})
	defer session.Close()

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		cmd.Printf("Scanning %s in %s mode. Commands: :scan :history :show ID :clear :max N. Ctrl-D quits.\n", cfg.Name, scanMode)
	}
	a.logger.Debug("scanner ready", "table", cfg.Name, "mode", scanMode)
	return session.Run(ctx, in)
}
