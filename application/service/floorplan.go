package service

import (
	"context"
	"log/slog"

	"github.com/smartsense/smartsense/domain/floorplan"
)

// Floorplan parses a single floorplan image outside an ingestion run.
type Floorplan struct {
	detector floorplan.Detector
	logger   *slog.Logger
}

// NewFloorplan creates a Floorplan service. A nil detector reports
// model_load_error for every image.
func NewFloorplan(detector floorplan.Detector, logger *slog.Logger) *Floorplan {
	if detector == nil {
		detector = floorplan.Unavailable{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Floorplan{detector: detector, logger: logger}
}

// Parse runs detection on imagePath. It never fails; problems are
// reported in the returned Detection.
func (s *Floorplan) Parse(ctx context.Context, imagePath string) floorplan.Detection {
	d := s.detector.Detect(ctx, imagePath)
	if d.OK() {
		s.logger.InfoContext(ctx, "parsed floorplan",
			slog.String("image", imagePath),
			slog.Int("objects", d.Total()),
		)
	} else {
		s.logger.WarnContext(ctx, "floorplan detection failed",
			slog.String("image", imagePath),
			slog.String("reason", string(d.Reason())),
			slog.String("message", d.Message()),
		)
	}
	return d
}
