package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/warp/property-finder/scan"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage recent searches",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent searches, most recent first",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Print a record from history without querying the backend",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all recent searches",
	Args:  cobra.NoArgs,
	RunE:  runHistoryClear,
}

var historyResizeCmd = &cobra.Command{
	Use:   "resize [n]",
	Short: "Change how many recent searches are kept",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryResize,
}

func init() {
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyClearCmd)
	historyCmd.AddCommand(historyResizeCmd)
	rootCmd.AddCommand(historyCmd)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	scan.WriteHistory(cmd.OutOrStdout(), a.history.List(), a.history.Capacity())
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	r, ok := a.history.Select(args[0])
	if !ok {
		return fmt.Errorf("no recent search with ID %q", args[0])
	}
	scan.WriteRecord(cmd.OutOrStdout(), r)
	return nil
}

func runHistoryClear(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	a.history.Clear(cmd.Context())
	cmd.Println("History cleared.")
	return nil
}

func runHistoryResize(cmd *cobra.Command, args []string) error {
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("capacity must be a number: %q", args[0])
	}

	a, err := newApp(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.history.Resize(cmd.Context(), n); err != nil {
		return err
	}
	cmd.Printf("History now keeps %d entries.\n", a.history.Capacity())
	return nil
}
