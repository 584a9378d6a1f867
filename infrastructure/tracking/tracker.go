// Package tracking reports the progress of ingestion runs.
package tracking

import (
	"context"
	"log/slog"
	"sync"

	"github.com/smartsense/smartsense/domain/task"
)

// Tracker provides progress tracking with automatic notification to
// subscribers. It is safe for concurrent use by row workers.
type Tracker struct {
	status      task.Status
	subscribers []task.Reporter
	logger      *slog.Logger
	mu          sync.RWMutex
}

// NewTracker creates a new progress tracker wrapping the given Status.
func NewTracker(status task.Status, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		status: status,
		logger: logger,
	}
}

// TrackerForRun creates a root Tracker for one run.
func TrackerForRun(runID string, operation task.Operation, logger *slog.Logger) *Tracker {
	return NewTracker(task.NewStatus(operation, nil, runID), logger)
}

// Status returns a copy of the current Status.
func (t *Tracker) Status() task.Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Subscribe adds a reporter to receive status change notifications.
func (t *Tracker) Subscribe(reporter task.Reporter) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subscribers = append(t.subscribers, reporter)
}

// SetTotal sets the total count for progress tracking.
func (t *Tracker) SetTotal(ctx context.Context, total int) {
	t.update(ctx, func(s task.Status) task.Status { return s.SetTotal(total) })
}

// SetCurrent updates the current progress count and optionally a message.
func (t *Tracker) SetCurrent(ctx context.Context, current int, message string) {
	t.update(ctx, func(s task.Status) task.Status { return s.SetCurrent(current, message) })
}

// Advance adds one to the current count. Workers finishing in any order
// produce a monotonically increasing count.
func (t *Tracker) Advance(ctx context.Context, message string) {
	t.update(ctx, func(s task.Status) task.Status { return s.SetCurrent(s.Current()+1, message) })
}

// Skip marks the task as skipped with a reason.
func (t *Tracker) Skip(ctx context.Context, reason string) {
	t.update(ctx, func(s task.Status) task.Status { return s.Skip(reason) })
}

// Fail marks the task as failed with an error message.
func (t *Tracker) Fail(ctx context.Context, errMsg string) {
	t.update(ctx, func(s task.Status) task.Status { return s.Fail(errMsg) })
}

// Complete marks the task as completed.
func (t *Tracker) Complete(ctx context.Context) {
	t.update(ctx, func(s task.Status) task.Status { return s.Complete() })
}

// Child creates a tracker for a stage of this operation. The child
// inherits the parent's subscribers and run.
func (t *Tracker) Child(operation task.Operation) *Tracker {
	t.mu.RLock()
	parent := t.status
	subscribers := make([]task.Reporter, len(t.subscribers))
	copy(subscribers, t.subscribers)
	t.mu.RUnlock()

	return &Tracker{
		status:      task.NewStatus(operation, &parent, parent.RunID()),
		subscribers: subscribers,
		logger:      t.logger,
	}
}

// Notify explicitly notifies all subscribers of the current status.
func (t *Tracker) Notify(ctx context.Context) {
	t.notifySubscribers(ctx, t.Status())
}

// update applies fn and notifies under the lock so subscribers observe
// changes in the order they were made.
func (t *Tracker) update(ctx context.Context, fn func(task.Status) task.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = fn(t.status)
	status := t.status
	for _, subscriber := range t.subscribers {
		if err := subscriber.OnChange(ctx, status); err != nil {
			t.logger.Error("failed to notify subscriber",
				slog.String("error", err.Error()),
				slog.String("operation", status.Operation().String()),
			)
		}
	}
}

func (t *Tracker) notifySubscribers(ctx context.Context, status task.Status) {
	t.mu.RLock()
	subscribers := make([]task.Reporter, len(t.subscribers))
	copy(subscribers, t.subscribers)
	t.mu.RUnlock()

	for _, subscriber := range subscribers {
		if err := subscriber.OnChange(ctx, status); err != nil {
			t.logger.Error("failed to notify subscriber",
				slog.String("error", err.Error()),
				slog.String("operation", status.Operation().String()),
			)
		}
	}
}
