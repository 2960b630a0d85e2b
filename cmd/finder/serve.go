package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/warp/property-finder/api"
	"github.com/warp/property-finder/factory"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Starts the HTTP API on --port. When --tables names a file, edits to it
are picked up without a restart.

On SIGINT/SIGTERM the server stops accepting connections, waits up to 30s
for active requests, then closes the database.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "HTTP server port")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.table(); err != nil {
		return err
	}

	handler := api.NewHandler(a.resolver, a.tables, opts.table)
	handler.Logger = a.logger
	if opts.backend == backendSQLite {
		handler.Fixtures = a.store
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", servePort),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("server starting", "addr", "http://localhost"+server.Addr, "backend", opts.backend, "table", opts.table)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		a.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if opts.tablesPath != "" {
		g.Go(func() error {
			if err := factory.Watch(ctx, opts.tablesPath, a.logger, handler.SetTables); err != nil {
				a.logger.Warn("table definitions will not reload", "path", opts.tablesPath, "error", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	a.logger.Info("server stopped")
	return nil
}
