package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/smartsense/smartsense/application/service"
	"github.com/smartsense/smartsense/domain/property"
	"github.com/smartsense/smartsense/internal/config"
)

// ingestFlags are the command line overrides of the ingest command.
type ingestFlags struct {
	envFile      string
	source       string
	images       string
	certificates string
	workers      int
}

func ingestCmd() *cobra.Command {
	var flags ingestFlags

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run one ingestion and print the batch report",
		Long: `Run one ingestion of the listings workbook into the relational store and
the vector collection, then print the batch report as JSON.

The command exits non-zero when the run aborts at startup (missing inputs,
unreachable store) or when either store fails to finalize. Failing rows do
not change the exit status; they are listed in the report.

Environment variables:
  ROW_SOURCE                   Listings workbook (.xlsx, .xlsm or .csv)
  IMAGE_DIR                    Floorplan image directory
  CERTIFICATE_DIR              Certificate document directory
  DB_URL                       Relational database URL
  QDRANT_HOST, QDRANT_PORT     Qdrant gRPC endpoint
  QDRANT_COLLECTION            Collection rebuilt by every run
  EMBEDDING_MODEL_DIR          Local embedding model directory
  EMBEDDING_ENDPOINT_*         Remote embedding endpoint
  DETECTOR_MODEL_PATH          YOLO floorplan model (.onnx)
  WORKER_COUNT                 Rows processed concurrently (default: 1)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags.envFile)
			if err != nil {
				return err
			}
			cfg = applyIngestOverrides(cfg, flags)

			client, logger, err := openClient(cfg)
			if err != nil {
				return err
			}
			defer closeClient(client, logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runIngest(ctx, cmd.OutOrStdout(), client.RunETL)
		},
	}

	cmd.Flags().StringVar(&flags.envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().StringVar(&flags.source, "source", "", "Listings workbook to ingest")
	cmd.Flags().StringVar(&flags.images, "images", "", "Floorplan image directory")
	cmd.Flags().StringVar(&flags.certificates, "certificates", "", "Certificate document directory")
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "Rows processed concurrently")

	return cmd
}

// applyIngestOverrides applies command line flag overrides to the config.
func applyIngestOverrides(cfg config.AppConfig, flags ingestFlags) config.AppConfig {
	assets := cfg.Assets()
	if flags.source != "" {
		assets = assets.WithRowSource(flags.source)
	}
	if flags.images != "" {
		assets = assets.WithImageDir(flags.images)
	}
	if flags.certificates != "" {
		assets = assets.WithCertificateDir(flags.certificates)
	}

	opts := []config.AppConfigOption{config.WithAssets(assets)}
	if flags.workers > 0 {
		opts = append(opts, config.WithWorkerCount(flags.workers))
	}
	return cfg.Apply(opts...)
}

// runIngest runs once and writes the report to out. The report is written
// for every run that reached finalization.
func runIngest(ctx context.Context, out io.Writer, run func(context.Context) (property.BatchReport, error)) error {
	report, err := run(ctx)
	if err != nil && !errors.Is(err, service.ErrFinalization) {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(report); encErr != nil {
		return errors.Join(err, fmt.Errorf("write report: %w", encErr))
	}

	if err != nil {
		return err
	}
	if !report.Succeeded() {
		return fmt.Errorf("%w: relational=%t vector=%t", service.ErrFinalization,
			report.Relational.Finalized, report.Vector.Finalized)
	}
	return nil
}
