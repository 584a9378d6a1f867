package property

import "time"

// RowFailure records one row that was skipped.
type RowFailure struct {
	Row        int    `json:"row"`
	PropertyID string `json:"property_id,omitempty"`
	Reason     string `json:"reason"`
}

// SinkResult records how one store finalized.
type SinkResult struct {
	Attempted bool   `json:"attempted"`
	Finalized bool   `json:"finalized"`
	Error     string `json:"error,omitempty"`
}

// BatchReport summarises one ingestion run.
type BatchReport struct {
	RunID         string       `json:"run_id,omitempty"`
	RowsTotal     int          `json:"rows_total"`
	RowsProcessed int          `json:"rows_processed"`
	RowsFailed    int          `json:"rows_failed"`
	Failures      []RowFailure `json:"failures"`
	Chunks        int          `json:"chunks"`
	Relational    SinkResult   `json:"relational"`
	Vector        SinkResult   `json:"vector"`
	StartedAt     time.Time    `json:"started_at"`
	FinishedAt    time.Time    `json:"finished_at"`
}

// FailedIDs returns the property IDs of failed rows, in row order.
func (r BatchReport) FailedIDs() []string {
	ids := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		ids = append(ids, f.PropertyID)
	}
	return ids
}

// Succeeded reports whether both stores finalized.
func (r BatchReport) Succeeded() bool {
	return r.Relational.Finalized && r.Vector.Finalized
}
