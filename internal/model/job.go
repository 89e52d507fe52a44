package model

import "time"

const (
	StatusProcessing  = "processing"
	StatusCompleted   = "completed"
	StatusCancelled   = "cancelled"
	StatusFailed      = "failed"
	StatusInterrupted = "interrupted"
)

// Job represents one processed upload. Only file names and lifecycle
// timestamps are stored.
type Job struct {
	ID         string     `json:"id"`
	InputPath  string     `json:"input_path"`
	OutputName string     `json:"output_name"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Finished reports whether the job reached a terminal status.
func (j *Job) Finished() bool {
	return j.Status != StatusProcessing
}
