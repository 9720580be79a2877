// Package cmd implements the playwise command line interface.
package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/playwise/playwise/internal/log"
)

var (
	flagJSONLogs bool
	flagVerbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "playwise",
	Short: "PlayStation knowledge chat service",
	Long: `Playwise answers questions about PlayStation hardware, games and
services by grounding a language model in a pgvector knowledge base, and
acquires fresh knowledge on demand by searching the web and crawling the
discovered pages.

Run "playwise serve" for the chat API or "playwise ingestd" for the
ingestion service.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(*cobra.Command, []string) {
		// A missing .env file is fine; real deployments set the
		// environment directly.
		_ = godotenv.Load()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagJSONLogs, "json-logs", false, "emit logs as JSON")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
}

// newLogger builds the process logger from the persistent flags.
func newLogger() log.Logger {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	return log.NewWithWriter(os.Stderr, log.Config{Level: level, JSON: flagJSONLogs})
}
