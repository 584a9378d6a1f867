package service

import "errors"

// Error taxonomy of an ingestion run.
var (
	// ErrFatalConfig aborts a run before any row is processed: the row
	// source or a required directory is missing or unreadable.
	ErrFatalConfig = errors.New("fatal configuration error")

	// ErrConnection aborts a run at startup: a store cannot be reached.
	ErrConnection = errors.New("store connection error")

	// ErrRowProcessing marks one row as failed. It never escapes the row
	// loop; it only appears in the BatchReport.
	ErrRowProcessing = errors.New("row processing error")

	// ErrFinalization reports a failed commit or bulk upload. The other
	// store's finalization is still attempted.
	ErrFinalization = errors.New("finalization error")

	// ErrBusy indicates another ingestion run is in progress.
	ErrBusy = errors.New("an ingestion run is already in progress")

	// ErrRunNotFound indicates an unknown run ID.
	ErrRunNotFound = errors.New("run not found")

	// ErrClosed indicates the run registry no longer accepts runs.
	ErrClosed = errors.New("run registry closed")
)
