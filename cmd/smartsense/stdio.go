package main

import (
	"github.com/spf13/cobra"

	"github.com/smartsense/smartsense/internal/mcp"
)

func stdioCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "stdio",
		Short: "Start MCP server on stdio",
		Long: `Start the MCP (Model Context Protocol) server on stdio.

This lets AI assistants parse floorplans, run ingestion and search listings.
Configuration is loaded from environment variables and .env file. Logs go
to stderr; stdout carries the protocol stream.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(envFile)
			if err != nil {
				return err
			}

			client, logger, err := openClient(cfg)
			if err != nil {
				return err
			}
			defer closeClient(client, logger)

			server := mcp.NewServer(client.Floorplan, client.Runs, client.Search, client.Properties, version, logger)
			return server.ServeStdio()
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")

	return cmd
}
