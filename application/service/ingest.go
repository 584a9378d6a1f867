package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/smartsense/smartsense/domain/document"
	"github.com/smartsense/smartsense/domain/floorplan"
	"github.com/smartsense/smartsense/domain/property"
	"github.com/smartsense/smartsense/domain/search"
	"github.com/smartsense/smartsense/domain/task"
	"github.com/smartsense/smartsense/infrastructure/tracking"
	"github.com/smartsense/smartsense/internal/log"
)

// IngestPaths locates the inputs of one run.
type IngestPaths struct {
	RowSource      string
	ImageDir       string
	CertificateDir string
}

// IngestDeps are the collaborators of the ingestion pipeline. The
// orchestrator borrows them; whoever built them closes them.
type IngestDeps struct {
	Loader    property.RowLoader
	Records   property.RecordStore
	Index     property.VectorIndex
	Detector  floorplan.Detector
	Extractor document.Extractor
	Embedder  search.Embedder
}

// Ingest drives the dual-store ingestion pipeline: rows go to the
// relational store one by one, and their chunk vectors are buffered and
// uploaded to a freshly reset collection at the end of the run.
type Ingest struct {
	deps      IngestDeps
	dimension int
	workers   int
	logger    *slog.Logger
	reporters []task.Reporter
	newID     func() string
	now       func() time.Time
}

// IngestOption configures an Ingest.
type IngestOption func(*Ingest)

// WithDimension sets the embedding dimension of the collection.
func WithDimension(n int) IngestOption {
	return func(i *Ingest) {
		if n > 0 {
			i.dimension = n
		}
	}
}

// WithWorkers sets how many rows are processed concurrently. One worker
// uses a single transaction with a savepoint per row; more workers give
// every row its own transaction.
func WithWorkers(n int) IngestOption {
	return func(i *Ingest) {
		if n > 0 {
			i.workers = n
		}
	}
}

// WithIngestLogger sets the logger.
func WithIngestLogger(l *slog.Logger) IngestOption {
	return func(i *Ingest) {
		if l != nil {
			i.logger = l
		}
	}
}

// WithReporters subscribes progress reporters to every run.
func WithReporters(reporters ...task.Reporter) IngestOption {
	return func(i *Ingest) {
		i.reporters = append(i.reporters, reporters...)
	}
}

// WithIDGenerator replaces the point and run ID generator.
func WithIDGenerator(fn func() string) IngestOption {
	return func(i *Ingest) {
		if fn != nil {
			i.newID = fn
		}
	}
}

// NewIngest creates an Ingest.
func NewIngest(deps IngestDeps, opts ...IngestOption) *Ingest {
	i := &Ingest{
		deps:      deps,
		dimension: 384,
		workers:   1,
		logger:    slog.Default(),
		newID:     uuid.NewString,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.deps.Detector == nil {
		i.deps.Detector = floorplan.Unavailable{}
	}
	return i
}

// Subscribe adds a progress reporter to every later run. It must not be
// called while a run is executing.
func (i *Ingest) Subscribe(r task.Reporter) {
	i.reporters = append(i.reporters, r)
}

// rowResult is the outcome of one row.
type rowResult struct {
	propertyID string
	err        error
	cancelled  bool
}

// Run executes one ingestion run with a fresh run ID.
func (i *Ingest) Run(ctx context.Context, paths IngestPaths) (property.BatchReport, error) {
	return i.RunWithID(ctx, i.newID(), paths)
}

// RunWithID executes one ingestion run. Startup problems return an error
// wrapping ErrFatalConfig or ErrConnection before anything is written.
// Otherwise the report is always returned; finalization problems are
// recorded in it and also returned wrapped in ErrFinalization.
func (i *Ingest) RunWithID(ctx context.Context, runID string, paths IngestPaths) (property.BatchReport, error) {
	ctx = log.WithRunID(ctx, runID)
	report := property.BatchReport{RunID: runID, StartedAt: i.now(), Failures: []property.RowFailure{}}

	tracker := tracking.TrackerForRun(runID, task.OperationIngest, i.logger)
	for _, r := range i.reporters {
		tracker.Subscribe(r)
	}
	tracker.SetCurrent(ctx, 0, "starting ingestion")

	fail := func(err error) (property.BatchReport, error) {
		tracker.Fail(ctx, err.Error())
		report.FinishedAt = i.now()
		return report, err
	}

	if err := validatePaths(paths); err != nil {
		return fail(err)
	}
	if err := i.deps.Records.EnsureSchema(ctx); err != nil {
		return fail(fmt.Errorf("%w: ensure schema: %w", ErrConnection, err))
	}

	load := tracker.Child(task.OperationLoadRows)
	raw, err := i.deps.Loader.Load(ctx, paths.RowSource)
	if err != nil {
		load.Fail(ctx, err.Error())
		return fail(fmt.Errorf("%w: load rows: %w", ErrFatalConfig, err))
	}
	rows := property.Clean(raw)
	report.RowsTotal = len(rows)
	load.SetTotal(ctx, len(rows))
	load.Complete(ctx)

	reset := tracker.Child(task.OperationResetIndex)
	if err := i.deps.Index.Reset(ctx, i.dimension, property.DistanceCosine); err != nil {
		reset.Fail(ctx, err.Error())
		return fail(fmt.Errorf("%w: reset vector collection: %w", ErrConnection, err))
	}
	reset.Complete(ctx)

	mode := property.SessionBatch
	if i.workers > 1 {
		mode = property.SessionPerRow
	}
	session, err := i.deps.Records.Begin(ctx, mode)
	if err != nil {
		return fail(fmt.Errorf("%w: begin session: %w", ErrConnection, err))
	}

	i.logger.InfoContext(ctx, "ingesting rows",
		slog.Int("rows", len(rows)),
		slog.Int("workers", i.workers),
		slog.String("source", paths.RowSource),
	)

	buffer := NewPointBuffer()
	results := i.processRows(ctx, tracker.Child(task.OperationProcessRows), session, paths, rows, buffer)

	for idx, res := range results {
		switch {
		case res.cancelled:
		case res.err != nil:
			report.RowsFailed++
			report.Failures = append(report.Failures, property.RowFailure{
				Row:        rows[idx].Index(),
				PropertyID: res.propertyID,
				Reason:     res.err.Error(),
			})
		default:
			report.RowsProcessed++
		}
	}

	if err := ctx.Err(); err != nil {
		if rbErr := session.Rollback(); rbErr != nil {
			i.logger.ErrorContext(ctx, "rollback after cancellation failed", slog.String("error", rbErr.Error()))
		}
		report.Relational = property.SinkResult{Error: err.Error()}
		report.Vector = property.SinkResult{Error: err.Error()}
		return fail(fmt.Errorf("ingestion cancelled: %w", err))
	}

	points := buffer.Points()
	report.Chunks = len(points)
	finalErr := i.finalize(ctx, tracker, session, points, &report)

	report.FinishedAt = i.now()
	i.logger.InfoContext(ctx, "ingestion finished",
		slog.Int("rows_processed", report.RowsProcessed),
		slog.Int("rows_failed", report.RowsFailed),
		slog.Int("chunks", report.Chunks),
		slog.Bool("relational_finalized", report.Relational.Finalized),
		slog.Bool("vector_finalized", report.Vector.Finalized),
	)
	if finalErr != nil {
		tracker.Fail(ctx, finalErr.Error())
		return report, finalErr
	}
	tracker.Complete(ctx)
	return report, nil
}

func (i *Ingest) processRows(
	ctx context.Context,
	tracker *tracking.Tracker,
	session property.Session,
	paths IngestPaths,
	rows []property.Row,
	buffer *PointBuffer,
) []rowResult {
	tracker.SetTotal(ctx, len(rows))
	results := make([]rowResult, len(rows))

	var g errgroup.Group
	g.SetLimit(i.workers)
	for idx, row := range rows {
		if ctx.Err() != nil {
			results[idx] = rowResult{cancelled: true}
			continue
		}
		g.Go(func() error {
			res := i.isolateRow(ctx, session, paths, row, buffer)
			results[idx] = res
			if res.err != nil && !res.cancelled {
				i.logger.WarnContext(ctx, "row failed",
					slog.Int("row", row.Index()),
					slog.String("property_id", res.propertyID),
					slog.String("error", res.err.Error()),
				)
			}
			tracker.Advance(ctx, fmt.Sprintf("row %d", row.Index()))
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		tracker.Fail(ctx, ctx.Err().Error())
	} else {
		tracker.Complete(ctx)
	}
	return results
}

// isolateRow processes one row and turns any error or panic into a
// failure of that row alone.
func (i *Ingest) isolateRow(
	ctx context.Context,
	session property.Session,
	paths IngestPaths,
	row property.Row,
	buffer *PointBuffer,
) (res rowResult) {
	res.propertyID = row.Get(property.ColumnPropertyID)
	defer func() {
		if r := recover(); r != nil {
			res.err = fmt.Errorf("%w: panic: %v", ErrRowProcessing, r)
		}
	}()

	points, err := i.processRow(ctx, session, paths, row)
	if err != nil {
		if ctx.Err() != nil {
			res.cancelled = true
		}
		res.err = fmt.Errorf("%w: %w", ErrRowProcessing, err)
		return res
	}
	buffer.Add(row.Index(), points)
	return res
}

func (i *Ingest) processRow(
	ctx context.Context,
	session property.Session,
	paths IngestPaths,
	row property.Row,
) ([]property.Point, error) {
	listing, err := property.ParseListing(row)
	if err != nil {
		return nil, err
	}

	detection := i.detect(ctx, paths.ImageDir, listing.ImageFile())

	var certTexts []string
	for _, name := range listing.CertificateFiles() {
		path := filepath.Join(paths.CertificateDir, name)
		if !isFile(path) {
			continue
		}
		text, err := i.deps.Extractor.Extract(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", name, err)
		}
		certTexts = append(certTexts, text)
	}

	chunks := property.BuildChunks(listing, certTexts)
	vectors, err := i.deps.Embedder.Embed(ctx, property.Texts(chunks))
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vectors), len(chunks))
	}
	for n, v := range vectors {
		if len(v) != i.dimension {
			return nil, fmt.Errorf("embed chunks: vector %d has dimension %d, want %d", n, len(v), i.dimension)
		}
	}

	record := property.NewRecord(listing, detection)
	err = session.Row(ctx, listing.PropertyID(), func(w property.RecordWriter) error {
		return w.Upsert(ctx, record)
	})
	if err != nil {
		return nil, fmt.Errorf("upsert record: %w", err)
	}

	points := make([]property.Point, len(chunks))
	for n, c := range chunks {
		points[n] = property.NewPoint(i.newID(), vectors[n], c)
	}
	return points, nil
}

// detect skips the detector when the image is absent.
func (i *Ingest) detect(ctx context.Context, imageDir, imageFile string) floorplan.Detection {
	if imageFile == "" {
		return floorplan.ImageNotFound()
	}
	path := filepath.Join(imageDir, imageFile)
	if !isFile(path) {
		return floorplan.ImageNotFound()
	}
	return i.deps.Detector.Detect(ctx, path)
}

// finalize commits the relational session and uploads the buffered
// points. Both are always attempted.
func (i *Ingest) finalize(
	ctx context.Context,
	tracker *tracking.Tracker,
	session property.Session,
	points []property.Point,
	report *property.BatchReport,
) error {
	var errs []error

	commit := tracker.Child(task.OperationCommitRecords)
	report.Relational.Attempted = true
	if err := session.Commit(); err != nil {
		if rbErr := session.Rollback(); rbErr != nil {
			err = errors.Join(err, rbErr)
		}
		report.Relational.Error = err.Error()
		commit.Fail(ctx, err.Error())
		errs = append(errs, fmt.Errorf("%w: commit records: %w", ErrFinalization, err))
	} else {
		report.Relational.Finalized = true
		commit.Complete(ctx)
	}

	upload := tracker.Child(task.OperationUploadPoints)
	if len(points) == 0 {
		report.Vector.Finalized = true
		upload.Skip(ctx, "no points to upload")
		return errors.Join(errs...)
	}
	report.Vector.Attempted = true
	upload.SetTotal(ctx, len(points))
	if err := i.deps.Index.Upload(ctx, points); err != nil {
		report.Vector.Error = err.Error()
		upload.Fail(ctx, err.Error())
		errs = append(errs, fmt.Errorf("%w: upload points: %w", ErrFinalization, err))
	} else {
		report.Vector.Finalized = true
		upload.SetCurrent(ctx, len(points), "uploaded")
		upload.Complete(ctx)
	}
	return errors.Join(errs...)
}

func validatePaths(paths IngestPaths) error {
	if paths.RowSource == "" {
		return fmt.Errorf("%w: no row source configured", ErrFatalConfig)
	}
	if !isFile(paths.RowSource) {
		return fmt.Errorf("%w: row source %s not found", ErrFatalConfig, paths.RowSource)
	}
	dirs := []struct{ name, path string }{
		{"image", paths.ImageDir},
		{"certificate", paths.CertificateDir},
	}
	for _, d := range dirs {
		info, err := os.Stat(d.path)
		if err != nil || !info.IsDir() {
			return fmt.Errorf("%w: %s directory %q not found", ErrFatalConfig, d.name, d.path)
		}
	}
	return nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
