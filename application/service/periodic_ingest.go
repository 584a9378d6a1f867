package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// PeriodicIngest starts an ingestion run on a timer.
type PeriodicIngest struct {
	runs     *Runs
	logger   *slog.Logger
	interval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewPeriodicIngest creates a PeriodicIngest. An interval of zero or less
// disables it.
func NewPeriodicIngest(runs *Runs, interval time.Duration, logger *slog.Logger) *PeriodicIngest {
	if logger == nil {
		logger = slog.Default()
	}
	return &PeriodicIngest{
		runs:     runs,
		logger:   logger,
		interval: interval,
	}
}

// Start begins periodic ingestion in a background goroutine.
// If disabled, this is a no-op.
func (p *PeriodicIngest) Start(ctx context.Context) {
	if p.interval <= 0 {
		p.logger.Info("periodic ingestion disabled")
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Go(func() {
		p.run(ctx)
	})

	p.logger.Info("periodic ingestion started", slog.Duration("interval", p.interval))
}

// Stop cancels the background goroutine and waits for it to finish.
func (p *PeriodicIngest) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}

func (p *PeriodicIngest) run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.trigger(ctx)
		}
	}
}

func (p *PeriodicIngest) trigger(ctx context.Context) {
	id, err := p.runs.Start(ctx)
	switch {
	case errors.Is(err, ErrBusy):
		p.logger.Debug("periodic ingestion skipped, a run is in progress")
	case err != nil:
		p.logger.Warn("periodic ingestion failed to start", slog.String("error", err.Error()))
	default:
		p.logger.Debug("periodic ingestion triggered", slog.String("run_id", id))
	}
}
