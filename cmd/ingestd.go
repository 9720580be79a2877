package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/playwise/playwise/internal/app"
	"github.com/playwise/playwise/internal/config"
)

var flagIngestAddr string

var ingestdCmd = &cobra.Command{
	Use:   "ingestd",
	Short: "Start the ingestion service",
	Long: `Start the ingestion service. It accepts POST /scrape requests from
the chat service, crawls the requested sites in the background, and stores
filtered, embedded content chunks in the knowledge base.`,
	RunE: func(*cobra.Command, []string) error {
		return runIngestd()
	},
}

func init() {
	ingestdCmd.Flags().StringVar(&flagIngestAddr, "addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(ingestdCmd)
}

func runIngestd() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger()
	logger.Info("starting ingestion service", "version", AppVersion)

	a, err := app.SetupIngest(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	addr := flagIngestAddr
	if addr == "" {
		addr = cfg.IngestAddr
	}
	return a.Service.Run(ctx, addr)
}
