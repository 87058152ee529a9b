package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/allureops/uploadoor/pkg/config"
	"github.com/allureops/uploadoor/pkg/ingest"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local ingest server",
	Long: `Start a small report ingest endpoint that accepts run uploads,
stores archives on disk, and records runs in a database. Intended for local
development and end-to-end testing, not as a production report service.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if cfgFile == "" {
		return fmt.Errorf("config file is required (use --config)")
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.ValidateServer(); err != nil {
		return fmt.Errorf("validating server config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	srv := ingest.NewServer(log, cfg.Server)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting ingest server: %w", err)
	}

	sig := <-sigCh
	log.WithField("signal", sig).Info("Shutting down ingest server")
	cancel()

	if err := srv.Stop(); err != nil {
		return fmt.Errorf("stopping ingest server: %w", err)
	}

	return nil
}
