package model

import "time"

// RunStatus is the terminal state of one ingestion run.
type RunStatus string

const (
	// RunStatusRunning marks a run that has started and not yet finished.
	RunStatusRunning RunStatus = "running"
	// RunStatusDone means pagination completed: the catalog returned no
	// further "next" link.
	RunStatusDone RunStatus = "done"
	// RunStatusStopped means the catalog answered with a non-200 status; the
	// run stopped with partial output and a resumable cursor.
	RunStatusStopped RunStatus = "stopped"
	// RunStatusAborted means an unexpected error interrupted the loop;
	// accumulated records were still committed.
	RunStatusAborted RunStatus = "aborted"
)

// IngestRun is the run-log entry recorded for each ingestion invocation.
type IngestRun struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Status      RunStatus `json:"status"`
	Pages       int       `json:"pages"`
	RecordsKept int       `json:"records_kept"`
	LastCursor  string    `json:"last_cursor,omitempty"`
	Error       string    `json:"error,omitempty"`
}
