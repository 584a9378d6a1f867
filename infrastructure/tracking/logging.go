package tracking

import (
	"context"
	"log/slog"

	"github.com/smartsense/smartsense/domain/task"
)

// LoggingReporter logs every status change it receives.
type LoggingReporter struct {
	logger *slog.Logger
}

// NewLoggingReporter creates a new LoggingReporter.
func NewLoggingReporter(logger *slog.Logger) *LoggingReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingReporter{logger: logger}
}

// OnChange logs the status at Error for failures, Info for terminal
// states and Debug for progress ticks.
func (r *LoggingReporter) OnChange(ctx context.Context, status task.Status) error {
	attrs := []any{
		slog.String("run_id", status.RunID()),
		slog.String("state", string(status.State())),
		slog.Int("current", status.Current()),
		slog.Int("total", status.Total()),
		slog.Float64("completion_percent", status.CompletionPercent()),
	}
	if status.Message() != "" {
		attrs = append(attrs, slog.String("message", status.Message()))
	}

	switch status.State() {
	case task.ReportingStateFailed:
		r.logger.ErrorContext(ctx, status.Operation().String(), append(attrs, slog.String("error", status.Error()))...)
	case task.ReportingStateCompleted, task.ReportingStateSkipped, task.ReportingStateStarted:
		r.logger.InfoContext(ctx, status.Operation().String(), attrs...)
	default:
		r.logger.DebugContext(ctx, status.Operation().String(), attrs...)
	}
	return nil
}
