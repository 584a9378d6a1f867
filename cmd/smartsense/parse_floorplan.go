package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/smartsense/smartsense/application/service"
	"github.com/smartsense/smartsense/domain/floorplan"
	"github.com/smartsense/smartsense/infrastructure/detection"
	"github.com/smartsense/smartsense/internal/log"
)

func parseFloorplanCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "parse-floorplan <image>",
		Short: "Detect rooms and objects in one floorplan image",
		Long: `Run the floorplan detector on one image and print the result as JSON.

A successful detection prints per-class counts, for example {"room": 3, "door": 4}.
A failed one prints {"error": "image_not_found" | "model_load_error" | "inference_error"}
and still exits zero: the failure is part of the result.

Only the detector is loaded; no store is contacted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(envFile)
			if err != nil {
				return err
			}
			logger := log.NewLogger(cfg).Slog()

			var detector floorplan.Detector = floorplan.Unavailable{}
			if cfg.Detector().IsConfigured() {
				onnx := detection.NewONNXDetector(cfg.Detector(), detection.WithLogger(logger))
				defer func() {
					if err := onnx.Close(); err != nil {
						logger.Error("failed to close detector", slog.Any("error", err))
					}
				}()
				detector = onnx
			}

			result := service.NewFloorplan(detector, logger).Parse(cmd.Context(), args[0])
			b, err := json.Marshal(result)
			if err != nil {
				return fmt.Errorf("encode detection: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return err
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")

	return cmd
}
