package service

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smartsense/smartsense/domain/property"
	"github.com/smartsense/smartsense/domain/task"
)

// RunState is the lifecycle state of a tracked ingestion run.
type RunState string

// RunState values.
const (
	RunRunning   RunState = "running"
	RunSucceeded RunState = "succeeded"
	RunFailed    RunState = "failed"
)

// StepProgress is the latest progress of one pipeline stage.
type StepProgress struct {
	Operation task.Operation      `json:"operation"`
	State     task.ReportingState `json:"state"`
	Current   int                 `json:"current"`
	Total     int                 `json:"total"`
	Message   string              `json:"message,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// Run is a snapshot of one tracked ingestion run.
type Run struct {
	ID         string                `json:"id"`
	State      RunState              `json:"state"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt *time.Time            `json:"finished_at,omitempty"`
	Error      string                `json:"error,omitempty"`
	Steps      []StepProgress        `json:"steps"`
	Report     *property.BatchReport `json:"report,omitempty"`
}

type runEntry struct {
	run   Run
	steps map[task.Operation]StepProgress
}

// Runs serialises ingestion runs and keeps the most recent ones for
// status queries. At most one run executes at a time; starting another
// while one is active fails with ErrBusy.
type Runs struct {
	ingest *Ingest
	paths  func() IngestPaths
	logger *slog.Logger
	keep   int

	mu      sync.Mutex
	active  string
	entries map[string]*runEntry
	order   []string

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// DefaultKeptRuns is how many finished runs Runs remembers.
const DefaultKeptRuns = 20

// NewRuns creates a Runs registry over ingest. paths is evaluated at the
// start of every run.
func NewRuns(ingest *Ingest, paths func() IngestPaths, logger *slog.Logger) *Runs {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runs{
		ingest:  ingest,
		paths:   paths,
		logger:  logger,
		keep:    DefaultKeptRuns,
		entries: make(map[string]*runEntry),
		baseCtx: ctx,
		cancel:  cancel,
	}
	ingest.Subscribe(r)
	return r
}

func (r *Runs) begin() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != "" {
		return "", ErrBusy
	}
	if r.baseCtx.Err() != nil {
		return "", ErrClosed
	}
	id := uuid.NewString()
	r.active = id
	r.entries[id] = &runEntry{
		run:   Run{ID: id, State: RunRunning, StartedAt: time.Now().UTC()},
		steps: make(map[task.Operation]StepProgress),
	}
	r.order = append(r.order, id)
	r.prune()
	return id, nil
}

// prune drops the oldest finished runs beyond the retention limit.
func (r *Runs) prune() {
	for len(r.order) > r.keep {
		oldest := r.order[0]
		if oldest == r.active {
			return
		}
		delete(r.entries, oldest)
		r.order = r.order[1:]
	}
}

func (r *Runs) finish(id string, report property.BatchReport, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active == id {
		r.active = ""
	}
	e, ok := r.entries[id]
	if !ok {
		return
	}
	now := time.Now().UTC()
	e.run.FinishedAt = &now
	e.run.Report = &report
	e.run.State = RunSucceeded
	if err != nil {
		e.run.State = RunFailed
		e.run.Error = err.Error()
	}
}

// Start begins a run in the background and returns its ID. The run is
// not tied to ctx's cancellation; Close cancels it.
func (r *Runs) Start(ctx context.Context) (string, error) {
	return r.StartAfter(ctx, nil)
}

// StartAfter reserves a run, calls prepare while no other run can begin,
// then starts the run in the background. When prepare fails the run is
// discarded and its error returned.
func (r *Runs) StartAfter(ctx context.Context, prepare func() error) (string, error) {
	id, err := r.begin()
	if err != nil {
		return "", err
	}
	if prepare != nil {
		if err := prepare(); err != nil {
			r.discard(id)
			return "", err
		}
	}
	runCtx, cancel := context.WithCancel(r.baseCtx)
	r.wg.Go(func() {
		defer cancel()
		r.execute(runCtx, id)
	})
	r.logger.InfoContext(ctx, "ingestion run started", slog.String("run_id", id))
	return id, nil
}

func (r *Runs) discard(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active == id {
		r.active = ""
	}
	delete(r.entries, id)
	r.order = slices.DeleteFunc(r.order, func(o string) bool { return o == id })
}

// RunSync executes a run in the caller's goroutine, subject to the same
// one-at-a-time rule as Start.
func (r *Runs) RunSync(ctx context.Context) (property.BatchReport, error) {
	id, err := r.begin()
	if err != nil {
		return property.BatchReport{}, err
	}
	return r.execute(ctx, id)
}

func (r *Runs) execute(ctx context.Context, id string) (property.BatchReport, error) {
	report, err := r.ingest.RunWithID(ctx, id, r.paths())
	r.finish(id, report, err)
	if err != nil {
		r.logger.ErrorContext(ctx, "ingestion run failed",
			slog.String("run_id", id),
			slog.String("error", err.Error()),
		)
	}
	return report, err
}

// Get returns a snapshot of a run.
func (r *Runs) Get(id string) (Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return Run{}, ErrRunNotFound
	}
	run := e.run
	run.Steps = make([]StepProgress, 0, len(e.steps))
	for _, op := range append([]task.Operation{task.OperationIngest}, task.Steps()...) {
		if s, ok := e.steps[op]; ok {
			run.Steps = append(run.Steps, s)
		}
	}
	return run, nil
}

// Active returns the ID of the running run, if any.
func (r *Runs) Active() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active, r.active != ""
}

// OnChange records step progress reported by the ingestion tracker.
func (r *Runs) OnChange(_ context.Context, status task.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[status.RunID()]
	if !ok {
		return nil
	}
	e.steps[status.Operation()] = StepProgress{
		Operation: status.Operation(),
		State:     status.State(),
		Current:   status.Current(),
		Total:     status.Total(),
		Message:   status.Message(),
		Error:     status.Error(),
	}
	return nil
}

// Close cancels any background run and waits for it to stop.
func (r *Runs) Close() error {
	r.cancel()
	r.wg.Wait()
	return nil
}
