// Package cmd implements the raggate command line interface.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/raggate/raggate/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "raggate",
	Short: "Multi-tenant gateway for a RAG engine",
	Long: `raggate sits in front of a retrieval-augmented-generation engine and
multiplexes it across isolated workspaces. Callers authenticate with a JWT or
a static API key, are resolved to a workspace, and get their own lazily
initialized engine instance.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// initLogger initializes the structured logger. Debug level is enabled when
// the DEBUG environment variable is set.
func initLogger() *slog.Logger {
	cfg := log.Config{Level: slog.LevelInfo}
	if os.Getenv("DEBUG") != "" {
		cfg.Level = slog.LevelDebug
		cfg.AddSource = true
	}
	return log.New(cfg)
}
