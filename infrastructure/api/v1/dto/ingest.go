package dto

import "github.com/smartsense/smartsense/domain/floorplan"

// IngestResponse is returned when an upload starts a run.
type IngestResponse struct {
	Message string `json:"message"`
	RunID   string `json:"run_id"`
}

// FloorplanResponse wraps a detection result.
type FloorplanResponse struct {
	JSONOutput floorplan.Detection `json:"json_output"`
}

// StatusResponse is the body of GET / and GET /healthz.
type StatusResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version,omitempty"`
	ActiveRun string `json:"active_run,omitempty"`
}
