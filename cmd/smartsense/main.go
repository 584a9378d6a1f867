// Package main is the entry point for the smartsense CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/smartsense/smartsense"
	"github.com/smartsense/smartsense/internal/config"
	"github.com/smartsense/smartsense/internal/log"
)

// Version information set via ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "smartsense",
		Short: "SmartSense property ingestion pipeline",
		Long: `SmartSense ingests property listings into a relational store and a vector
search collection, parsing each listing's floorplan and certificate documents.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(ingestCmd())
	cmd.AddCommand(parseFloorplanCmd())
	cmd.AddCommand(serveCmd())
	cmd.AddCommand(stdioCmd())
	cmd.AddCommand(versionCmd())

	return cmd
}

// loadConfig loads configuration from .env file and environment variables.
func loadConfig(envFile string) (config.AppConfig, error) {
	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openClient sets up logging for cfg and creates a client.
func openClient(cfg config.AppConfig) (*smartsense.Client, *slog.Logger, error) {
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, nil, fmt.Errorf("create data directory: %w", err)
	}

	slogger := log.NewLogger(cfg).Slog()
	attrs := append([]slog.Attr{slog.String("version", version)}, cfg.LogAttrs()...)
	slogger.LogAttrs(context.Background(), slog.LevelInfo, "starting smartsense", attrs...)

	client, err := smartsense.New(
		smartsense.WithConfig(cfg),
		smartsense.WithLogger(slogger),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create smartsense client: %w", err)
	}
	return client, slogger, nil
}

func closeClient(client *smartsense.Client, logger *slog.Logger) {
	if err := client.Close(); err != nil {
		logger.Error("failed to close smartsense client", slog.Any("error", err))
	}
}
