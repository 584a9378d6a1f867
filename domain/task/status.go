// Package task models the progress of long-running operations such as an
// ingestion run and its stages.
package task

import (
	"context"
	"time"
)

// ReportingState represents the state of task reporting.
type ReportingState string

// ReportingState values.
const (
	ReportingStateStarted    ReportingState = "started"
	ReportingStateInProgress ReportingState = "in_progress"
	ReportingStateCompleted  ReportingState = "completed"
	ReportingStateFailed     ReportingState = "failed"
	ReportingStateSkipped    ReportingState = "skipped"
)

// IsTerminal returns true if the state represents a terminal (final) state.
func (s ReportingState) IsTerminal() bool {
	return s == ReportingStateCompleted ||
		s == ReportingStateFailed ||
		s == ReportingStateSkipped
}

// Status is an immutable progress snapshot. Mutators return a copy.
type Status struct {
	id           string
	runID        string
	state        ReportingState
	operation    Operation
	message      string
	createdAt    time.Time
	updatedAt    time.Time
	total        int
	current      int
	errorMessage string
	parent       *Status
}

// NewStatus creates a Status for operation within run runID.
func NewStatus(operation Operation, parent *Status, runID string) Status {
	now := time.Now().UTC()
	return Status{
		id:        statusID(runID, operation),
		runID:     runID,
		operation: operation,
		parent:    parent,
		state:     ReportingStateStarted,
		createdAt: now,
		updatedAt: now,
	}
}

// ID returns the status ID, "{run_id}/{operation}".
func (s Status) ID() string { return s.id }

// RunID returns the run the status belongs to.
func (s Status) RunID() string { return s.runID }

// State returns the current state.
func (s Status) State() ReportingState { return s.state }

// Operation returns the tracked operation.
func (s Status) Operation() Operation { return s.operation }

// Message returns the latest progress message.
func (s Status) Message() string { return s.message }

// CreatedAt returns when tracking started.
func (s Status) CreatedAt() time.Time { return s.createdAt }

// UpdatedAt returns the time of the last change.
func (s Status) UpdatedAt() time.Time { return s.updatedAt }

// Total returns the expected number of units.
func (s Status) Total() int { return s.total }

// Current returns the completed number of units.
func (s Status) Current() int { return s.current }

// Error returns the failure message.
func (s Status) Error() string { return s.errorMessage }

// Parent returns the enclosing operation's status, if any.
func (s Status) Parent() *Status { return s.parent }

// CompletionPercent calculates the completion percentage.
func (s Status) CompletionPercent() float64 {
	if s.total == 0 {
		return 0.0
	}
	percent := float64(s.current) / float64(s.total) * 100.0
	if percent < 0 {
		return 0.0
	}
	if percent > 100 {
		return 100.0
	}
	return percent
}

// Skip marks the task as skipped with the given message.
func (s Status) Skip(message string) Status {
	s.state = ReportingStateSkipped
	s.message = message
	s.updatedAt = time.Now().UTC()
	return s
}

// Fail marks the task as failed with the given error message.
func (s Status) Fail(errorMsg string) Status {
	s.state = ReportingStateFailed
	s.errorMessage = errorMsg
	s.updatedAt = time.Now().UTC()
	return s
}

// SetTotal sets the total count for progress tracking.
func (s Status) SetTotal(total int) Status {
	s.total = total
	s.updatedAt = time.Now().UTC()
	return s
}

// SetCurrent sets the current progress and optionally updates the message.
func (s Status) SetCurrent(current int, message string) Status {
	s.state = ReportingStateInProgress
	s.current = current
	if message != "" {
		s.message = message
	}
	s.updatedAt = time.Now().UTC()
	return s
}

// Complete marks the task as completed.
// If already in a terminal state, no change is made.
func (s Status) Complete() Status {
	if s.state.IsTerminal() {
		return s
	}
	s.state = ReportingStateCompleted
	s.current = s.total
	s.updatedAt = time.Now().UTC()
	return s
}

// Reporter receives status changes.
type Reporter interface {
	OnChange(ctx context.Context, status Status) error
}

func statusID(runID string, operation Operation) string {
	if runID == "" {
		return string(operation)
	}
	return runID + "/" + string(operation)
}
