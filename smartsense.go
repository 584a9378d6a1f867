// Package smartsense ingests property listings into a relational store and a
// vector search collection.
//
// Each run reads a listings workbook, parses every listing's floorplan image,
// extracts its certificate documents, upserts one record per property and
// rebuilds the vector collection from the description and certificate
// chunks. Failing rows are reported and skipped; the rest of the batch is
// kept.
//
// Basic usage:
//
//	cfg, err := config.LoadConfig(".env")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client, err := smartsense.New(smartsense.WithConfig(cfg))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	report, err := client.RunETL(ctx)
//
//	detection := client.ParseFloorplan(ctx, "plans/A-101.png")
package smartsense

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smartsense/smartsense/application/service"
	"github.com/smartsense/smartsense/domain/document"
	"github.com/smartsense/smartsense/domain/floorplan"
	"github.com/smartsense/smartsense/domain/property"
	"github.com/smartsense/smartsense/domain/search"
	"github.com/smartsense/smartsense/domain/task"
	"github.com/smartsense/smartsense/infrastructure/detection"
	"github.com/smartsense/smartsense/infrastructure/extraction"
	"github.com/smartsense/smartsense/infrastructure/persistence"
	"github.com/smartsense/smartsense/infrastructure/provider"
	"github.com/smartsense/smartsense/infrastructure/source"
	"github.com/smartsense/smartsense/infrastructure/tracking"
	"github.com/smartsense/smartsense/infrastructure/vectorstore"
	"github.com/smartsense/smartsense/internal/config"
	"github.com/smartsense/smartsense/internal/database"
)

// ErrClientClosed is returned by operations on a closed Client.
var ErrClientClosed = errors.New("smartsense: client is closed")

// pingTimeout bounds the vector store health check in New.
const pingTimeout = 10 * time.Second

// Client owns the stores, the embedder and the detector of one process and
// exposes the services built on them.
//
// Access services via struct fields:
//
//	client.Runs.Start(ctx)
//	client.Search.Properties(ctx, "quiet flat near the park")
//	client.Properties.Find(ctx, "P-1001")
type Client struct {
	Ingest     *service.Ingest
	Runs       *service.Runs
	Search     *service.Search
	Floorplan  *service.Floorplan
	Properties persistence.PropertyStore

	db       database.Database
	periodic *service.PeriodicIngest
	closers  []io.Closer

	cfg    config.AppConfig
	logger *slog.Logger
	closed atomic.Bool
	mu     sync.Mutex
}

// New creates a Client. Everything acquired before a failure is released
// again before New returns.
func New(opts ...Option) (*Client, error) {
	cfg := newClientConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	logger := cfg.logger
	if logger == nil {
		logger = config.DefaultLogger()
	}
	app := cfg.app

	if _, err := config.PrepareDataDir(app.DataDir()); err != nil {
		return nil, err
	}

	ctx := context.Background()

	// Released in reverse order of acquisition.
	var acquired []io.Closer
	fail := func(err error) (*Client, error) {
		return nil, errors.Join(err, closeAll(acquired, logger))
	}

	db, err := database.NewDatabase(ctx, app.DBURL())
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %w", service.ErrConnection, err)
	}
	acquired = append(acquired, db)

	if err := persistence.AutoMigrate(ctx, db); err != nil {
		return fail(fmt.Errorf("auto migrate: %w", err))
	}
	if err := persistence.ValidateSchema(ctx, db); err != nil {
		return fail(fmt.Errorf("validate schema: %w", err))
	}
	store := persistence.NewPropertyStore(db)

	index := cfg.vectorStore
	if index == nil {
		built, err := buildVectorStore(ctx, app.VectorStore(), logger)
		if err != nil {
			return fail(err)
		}
		index = built
		acquired = append(acquired, built)
	}

	var embedder search.Embedder
	if cfg.embedder != nil {
		embedder = provider.NewChecked(cfg.embedder, app.EmbeddingDimension())
	} else {
		built, err := buildEmbedder(app, logger)
		if err != nil {
			return fail(err)
		}
		checked := provider.NewChecked(provider.NewBatched(built), app.EmbeddingDimension())
		embedder = checked
		acquired = append(acquired, checked)
	}

	detector := cfg.detector
	if detector == nil {
		if app.Detector().IsConfigured() {
			onnx := detection.NewONNXDetector(app.Detector(), detection.WithLogger(logger))
			detector = onnx
			acquired = append(acquired, onnx)
			logger.Info("floorplan detector enabled", slog.String("model", app.Detector().ModelPath()))
		} else {
			detector = floorplan.Unavailable{}
			logger.Warn("no floorplan model configured, detections will report model_load_error")
		}
	}

	extractor := cfg.extractor
	if extractor == nil {
		extractor = extraction.NewExtractor(extraction.WithLogger(logger))
	}
	loader := cfg.loader
	if loader == nil {
		loader = source.NewLoader()
	}

	// Rate-limit progress logging to once per second per step.
	logCooldown := tracking.NewCooldown(tracking.NewLoggingReporter(logger), time.Second)
	acquired = append(acquired, logCooldown)
	reporters := append([]task.Reporter{logCooldown}, cfg.reporters...)

	ingest := service.NewIngest(
		service.IngestDeps{
			Loader:    loader,
			Records:   store,
			Index:     index,
			Detector:  detector,
			Extractor: extractor,
			Embedder:  embedder,
		},
		service.WithDimension(app.EmbeddingDimension()),
		service.WithWorkers(app.WorkerCount()),
		service.WithIngestLogger(logger),
		service.WithReporters(reporters...),
	)

	client := &Client{
		Ingest:     ingest,
		Search:     service.NewSearch(embedder, index, store, app.SearchLimit(), logger),
		Floorplan:  service.NewFloorplan(detector, logger),
		Properties: store,
		db:         db,
		closers:    append(slices.Clone(acquired[1:]), cfg.closers...),
		cfg:        app,
		logger:     logger,
	}
	client.Runs = service.NewRuns(ingest, client.paths, logger)
	client.periodic = service.NewPeriodicIngest(client.Runs, app.IngestInterval(), logger)

	return client, nil
}

func buildVectorStore(ctx context.Context, cfg config.VectorStoreConfig, logger *slog.Logger) (VectorStore, error) {
	if cfg.Kind() == config.VectorStoreMemory {
		logger.Warn("using in-memory vector store, the collection is lost on exit")
		return vectorstore.NewMemory(), nil
	}

	q, err := vectorstore.NewQdrant(vectorstore.QdrantOptions{
		Addr:       cfg.Addr(),
		Collection: cfg.Collection(),
		APIKey:     cfg.APIKey(),
		UseTLS:     cfg.UseTLS(),
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connect qdrant: %w", service.ErrConnection, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := q.Ping(pingCtx); err != nil {
		return nil, errors.Join(
			fmt.Errorf("%w: qdrant at %s: %w", service.ErrConnection, cfg.Addr(), err),
			q.Close(),
		)
	}
	logger.Info("connected to qdrant", slog.String("addr", cfg.Addr()), slog.String("collection", cfg.Collection()))
	return q, nil
}

func buildEmbedder(cfg config.AppConfig, logger *slog.Logger) (provider.Embedder, error) {
	if ep := cfg.EmbeddingEndpoint(); ep != nil && ep.IsConfigured() {
		logger.Info("remote embedding provider enabled",
			slog.String("base_url", ep.BaseURL()),
			slog.String("model", ep.Model()),
		)
		return provider.NewOpenAIProvider(provider.OpenAIConfig{
			APIKey:        ep.APIKey(),
			BaseURL:       ep.BaseURL(),
			Model:         ep.Model(),
			Timeout:       ep.Timeout(),
			MaxRetries:    ep.MaxRetries(),
			InitialDelay:  ep.InitialDelay(),
			BackoffFactor: ep.BackoffFactor(),
		}), nil
	}

	hugot := provider.NewHugotEmbedding(cfg.EmbeddingModelDir())
	if !hugot.Available() {
		return nil, fmt.Errorf("%w: no embedding model found in %s, run download-model or set EMBEDDING_ENDPOINT_BASE_URL",
			service.ErrFatalConfig, cfg.EmbeddingModelDir())
	}
	logger.Info("built-in embedding provider enabled", slog.String("model_dir", cfg.EmbeddingModelDir()))
	return hugot, nil
}

func (c *Client) paths() service.IngestPaths {
	assets := c.cfg.Assets()
	return service.IngestPaths{
		RowSource:      assets.RowSource(),
		ImageDir:       assets.ImageDir(),
		CertificateDir: assets.CertificateDir(),
	}
}

// RunETL runs one ingestion to completion. A fatal error means nothing was
// written; a finalization error comes with the full report.
func (c *Client) RunETL(ctx context.Context) (property.BatchReport, error) {
	if c.closed.Load() {
		return property.BatchReport{}, ErrClientClosed
	}
	return c.Runs.RunSync(ctx)
}

// ParseFloorplan runs detection on one image. Failures are returned as
// data inside the Detection.
func (c *Client) ParseFloorplan(ctx context.Context, imagePath string) floorplan.Detection {
	if c.closed.Load() {
		return floorplan.Failed(floorplan.ReasonModelLoadError, ErrClientClosed.Error())
	}
	return c.Floorplan.Parse(ctx, imagePath)
}

// StartPeriodicIngest starts timed runs when an ingest interval is
// configured. Close stops them.
func (c *Client) StartPeriodicIngest(ctx context.Context) {
	c.periodic.Start(ctx)
}

// Close stops background runs and releases every resource.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClientClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.periodic.Stop()
	errs := []error{c.Runs.Close(), closeAll(c.closers, c.logger)}

	if err := c.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}

	c.logger.Info("smartsense client closed")
	return errors.Join(errs...)
}

// Config returns the configuration the client was built with.
func (c *Client) Config() config.AppConfig {
	return c.cfg
}

// Logger returns the client's logger.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// RunETL opens a client for cfg, runs one ingestion and closes the client
// on every exit path.
func RunETL(ctx context.Context, cfg config.AppConfig, opts ...Option) (report property.BatchReport, err error) {
	client, err := New(append([]Option{WithConfig(cfg)}, opts...)...)
	if err != nil {
		return property.BatchReport{}, err
	}
	defer func() {
		err = errors.Join(err, client.Close())
	}()
	return client.RunETL(ctx)
}

func closeAll(closers []io.Closer, logger *slog.Logger) error {
	var errs []error
	for _, closer := range slices.Backward(closers) {
		if err := closer.Close(); err != nil {
			logger.Error("failed to close resource", slog.Any("error", err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ document.Extractor   = (*extraction.Extractor)(nil)
	_ property.RowLoader   = source.Loader{}
	_ floorplan.Detector   = (*detection.ONNXDetector)(nil)
	_ VectorStore          = (*vectorstore.Qdrant)(nil)
	_ VectorStore          = (*vectorstore.Memory)(nil)
	_ property.RecordStore = persistence.PropertyStore{}
)
