package v1

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/smartsense/smartsense/domain/floorplan"
	"github.com/smartsense/smartsense/infrastructure/api/middleware"
	"github.com/smartsense/smartsense/infrastructure/api/v1/dto"
)

// FloorplanParser runs detection on one image file.
type FloorplanParser interface {
	Parse(ctx context.Context, imagePath string) floorplan.Detection
}

// FloorplanRouter runs ad-hoc floorplan detection on uploaded images.
type FloorplanRouter struct {
	parser   FloorplanParser
	tempDir  string
	maxBytes int64
	logger   *slog.Logger
}

// NewFloorplanRouter creates a FloorplanRouter. Uploads are staged in
// tempDir, or the system temp directory when empty.
func NewFloorplanRouter(parser FloorplanParser, tempDir string, logger *slog.Logger) *FloorplanRouter {
	if logger == nil {
		logger = slog.Default()
	}
	return &FloorplanRouter{
		parser:   parser,
		tempDir:  tempDir,
		maxBytes: DefaultMaxUploadBytes,
		logger:   logger,
	}
}

// Routes returns the chi router for floorplan endpoints.
func (r *FloorplanRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/", r.Parse)

	return router
}

// Parse handles POST /parse-floorplan. The staged image is removed whatever
// the outcome; detection failures are returned inside json_output.
func (r *FloorplanRouter) Parse(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	file, name, err := openUpload(w, req, r.maxBytes)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	defer func() { _ = file.Close() }()

	path, err := r.stage(file, filepath.Ext(name))
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	defer func() { _ = os.Remove(path) }()

	detection := r.parser.Parse(ctx, path)
	middleware.WriteJSON(w, http.StatusOK, dto.FloorplanResponse{JSONOutput: detection})
}

func (r *FloorplanRouter) stage(src io.Reader, ext string) (string, error) {
	tmp, err := os.CreateTemp(r.tempDir, "floorplan-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp image: %w", err)
	}
	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write temp image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write temp image: %w", err)
	}
	return tmp.Name(), nil
}
