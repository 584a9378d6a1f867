package v1

import (
	"context"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/smartsense/smartsense/application/service"
	"github.com/smartsense/smartsense/infrastructure/api/middleware"
	"github.com/smartsense/smartsense/infrastructure/api/v1/dto"
)

// RunController starts and reports ingestion runs.
type RunController interface {
	StartAfter(ctx context.Context, prepare func() error) (string, error)
	Get(id string) (service.Run, error)
}

// IngestRouter accepts row source uploads and reports run progress.
type IngestRouter struct {
	runs       RunController
	sourcePath string
	maxBytes   int64
	logger     *slog.Logger
}

// NewIngestRouter creates an IngestRouter that saves uploads to sourcePath.
func NewIngestRouter(runs RunController, sourcePath string, logger *slog.Logger) *IngestRouter {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestRouter{
		runs:       runs,
		sourcePath: sourcePath,
		maxBytes:   DefaultMaxUploadBytes,
		logger:     logger,
	}
}

// Routes returns the chi router for ingestion endpoints.
func (r *IngestRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/", r.Upload)
	router.Get("/runs/{id}", r.GetRun)

	return router
}

// Upload handles POST /ingest. The uploaded workbook replaces the row
// source and a background run starts; 409 is returned while a run is
// active, leaving the current source untouched.
func (r *IngestRouter) Upload(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	file, name, err := openUpload(w, req, r.maxBytes)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	defer func() { _ = file.Close() }()

	want := strings.ToLower(filepath.Ext(r.sourcePath))
	if got := strings.ToLower(filepath.Ext(name)); got != want {
		middleware.WriteError(w, req, middleware.BadRequest("upload must be a "+want+" file", nil), r.logger)
		return
	}

	id, err := r.runs.StartAfter(ctx, func() error {
		return writeAtomic(r.sourcePath, file)
	})
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	r.logger.InfoContext(ctx, "row source uploaded",
		slog.String("file", name),
		slog.String("run_id", id),
	)
	middleware.WriteJSON(w, http.StatusAccepted, dto.IngestResponse{
		Message: "File upload successful. Ingestion started in the background.",
		RunID:   id,
	})
}

// GetRun handles GET /ingest/runs/{id}.
func (r *IngestRouter) GetRun(w http.ResponseWriter, req *http.Request) {
	run, err := r.runs.Get(chi.URLParam(req, "id"))
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, run)
}
