// Package detection runs YOLO floorplan object detection on ONNX Runtime.
package detection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/smartsense/smartsense/domain/floorplan"
	"github.com/smartsense/smartsense/internal/config"
)

// ONNXDetector implements floorplan.Detector. The model is loaded on first
// use and kept for the detector's lifetime; a failed load is remembered so
// every later call reports the same model_load_error.
type ONNXDetector struct {
	cfg    config.DetectorConfig
	logger *slog.Logger
	load   loader

	mu      sync.Mutex
	loaded  bool
	sess    session
	names   []string
	loadErr error
}

// Option configures an ONNXDetector.
type Option func(*ONNXDetector)

// WithLogger sets the detector logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *ONNXDetector) {
		if l != nil {
			d.logger = l
		}
	}
}

func withLoader(l loader) Option {
	return func(d *ONNXDetector) { d.load = l }
}

// NewONNXDetector creates a detector for cfg. Nothing is loaded until the
// first Detect call.
func NewONNXDetector(cfg config.DetectorConfig, opts ...Option) *ONNXDetector {
	d := &ONNXDetector{
		cfg:    cfg,
		logger: slog.Default(),
		load:   openORT(cfg.ORTLibrary()),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect counts the floorplan objects found in the image at imagePath.
func (d *ONNXDetector) Detect(ctx context.Context, imagePath string) floorplan.Detection {
	if _, err := os.Stat(imagePath); err != nil {
		return floorplan.ImageNotFound()
	}

	sess, names, err := d.model()
	if err != nil {
		return floorplan.Failed(floorplan.ReasonModelLoadError, err.Error())
	}
	if err := ctx.Err(); err != nil {
		return floorplan.Failed(floorplan.ReasonInferenceError, err.Error())
	}

	labels, err := d.infer(sess, names, imagePath)
	if err != nil {
		d.logger.WarnContext(ctx, "floorplan inference failed",
			slog.String("image", imagePath),
			slog.String("error", err.Error()),
		)
		return floorplan.Failed(floorplan.ReasonInferenceError, err.Error())
	}
	return floorplan.CountLabels(labels)
}

func (d *ONNXDetector) infer(sess session, names []string, imagePath string) (labels []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			labels, err = nil, fmt.Errorf("inference panic: %v", r)
		}
	}()

	img, err := DecodeImage(imagePath)
	if err != nil {
		return nil, err
	}
	data, shape, err := sess.Run(Letterbox(img, d.cfg.InputSize()))
	if err != nil {
		return nil, fmt.Errorf("run model: %w", err)
	}
	boxes, err := DecodeOutput(data, shape, len(names), d.cfg.Confidence())
	if err != nil {
		return nil, err
	}
	return Labels(NMS(boxes, d.cfg.IoU()), names), nil
}

func (d *ONNXDetector) model() (session, []string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.loaded {
		return d.sess, d.names, d.loadErr
	}
	d.loaded = true
	d.sess, d.names, d.loadErr = d.open()
	if d.loadErr != nil {
		d.logger.Error("failed to load floorplan model",
			slog.String("model", d.cfg.ModelPath()),
			slog.String("error", d.loadErr.Error()),
		)
	} else {
		d.logger.Info("loaded floorplan model",
			slog.String("model", d.cfg.ModelPath()),
			slog.Int("classes", len(d.names)),
		)
	}
	return d.sess, d.names, d.loadErr
}

func (d *ONNXDetector) open() (session, []string, error) {
	path := d.cfg.ModelPath()
	if path == "" {
		return nil, nil, floorplan.ErrNoModel
	}
	if _, err := os.Stat(path); err != nil {
		return nil, nil, fmt.Errorf("model file: %w", err)
	}

	var fileNames []string
	if cp := d.cfg.ClassesPath(); cp != "" {
		names, err := LoadClasses(cp)
		if err != nil {
			return nil, nil, err
		}
		fileNames = names
	}

	sess, metaNames, err := d.load(path, d.cfg.InputSize())
	if err != nil {
		return nil, nil, err
	}
	names := fileNames
	if len(names) == 0 {
		names = metaNames
	}
	if len(names) == 0 {
		_ = sess.Close()
		return nil, nil, fmt.Errorf("%w: set a classes file for %s", ErrNoClasses, path)
	}
	return sess, names, nil
}

// Close releases the loaded model, if any.
func (d *ONNXDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.sess == nil {
		return nil
	}
	err := d.sess.Close()
	d.sess = nil
	d.loaded = false
	d.loadErr = nil
	if err != nil && !errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("close floorplan model: %w", err)
	}
	return nil
}
