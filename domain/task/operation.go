package task

import "strings"

// Operation identifies a step of an ingestion run.
type Operation string

// Operation values, one per pipeline stage.
const (
	OperationIngest         Operation = "smartsense.ingest"
	OperationLoadRows       Operation = "smartsense.ingest.load_rows"
	OperationResetIndex     Operation = "smartsense.ingest.reset_index"
	OperationProcessRows    Operation = "smartsense.ingest.process_rows"
	OperationCommitRecords  Operation = "smartsense.ingest.commit_records"
	OperationUploadPoints   Operation = "smartsense.ingest.upload_points"
	OperationParseFloorplan Operation = "smartsense.floorplan.parse"
)

// String returns the string representation of the operation.
func (o Operation) String() string {
	return string(o)
}

// IsIngestStep reports whether o is a stage inside an ingestion run.
func (o Operation) IsIngestStep() bool {
	return strings.HasPrefix(string(o), string(OperationIngest)+".")
}

// Steps returns the ingestion stages in execution order.
func Steps() []Operation {
	return []Operation{
		OperationLoadRows,
		OperationResetIndex,
		OperationProcessRows,
		OperationCommitRecords,
		OperationUploadPoints,
	}
}
