package domain

import "time"

// ImportResult is the aggregate outcome of one import run.
type ImportResult struct {
	SuccessCount int      `json:"successCount"`
	ErrorCount   int      `json:"errorCount"`
	Errors       []string `json:"errors"`
}

// NewImportResult returns an empty result whose Errors encode as [].
func NewImportResult() *ImportResult {
	return &ImportResult{Errors: []string{}}
}

// Fail records one failed row.
func (r *ImportResult) Fail(msg string) {
	r.ErrorCount++
	r.Errors = append(r.Errors, msg)
}

// ImportStatus is the lifecycle state of an upload job.
type ImportStatus string

const (
	ImportPending    ImportStatus = "pending"
	ImportProcessing ImportStatus = "processing"
	ImportCompleted  ImportStatus = "completed"
	ImportFailed     ImportStatus = "failed"
)

// ImportJob tracks an upload as it moves through parse, mapping and import.
type ImportJob struct {
	ID            string            `json:"id"`
	UserID        string            `json:"user_id"`
	SourceType    string            `json:"source_type"`
	FileName      string            `json:"file_name"`
	Status        ImportStatus      `json:"status"`
	DryRun        bool              `json:"dry_run"`
	TotalRows     int               `json:"total_rows"`
	ProcessedRows int               `json:"processed_rows"`
	Mapping       map[string]string `json:"mapping,omitempty"`
	Result        *ImportResult     `json:"result,omitempty"`
	StartedAt     time.Time         `json:"started_at"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
}
