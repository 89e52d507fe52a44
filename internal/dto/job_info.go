package dto

import (
	"encoding/json"
	"time"

	"peoplecounter/internal/model"
)

// JobInfo is a job history entry as listed by the API.
type JobInfo struct {
	ID        string        `json:"id"`
	Output    string        `json:"output"`
	Status    string        `json:"status"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// NewJobInfo summarizes a stored job.
func NewJobInfo(job model.Job) JobInfo {
	info := JobInfo{
		ID:        job.ID,
		Output:    job.OutputName,
		Status:    job.Status,
		Error:     job.Error,
		StartedAt: job.StartedAt,
	}
	if job.FinishedAt != nil {
		info.Duration = job.FinishedAt.Sub(job.StartedAt)
	}
	return info
}

// MarshalJSON formats the start time and duration for display.
func (j JobInfo) MarshalJSON() ([]byte, error) {
	type Alias JobInfo
	return json.Marshal(&struct {
		StartedAt string `json:"started_at"`
		Duration  string `json:"duration"`
		Alias
	}{
		StartedAt: j.StartedAt.Format("02-01-2006 15:04:05"),
		Duration:  j.Duration.Round(time.Second).String(),
		Alias:     (Alias)(j),
	})
}

// JobList is one page of job history.
type JobList struct {
	Jobs        []JobInfo `json:"jobs"`
	Length      int       `json:"length"`
	TotalPages  int       `json:"totalPages"`
	CurrentPage int       `json:"currentPage"`
	Limit       int       `json:"limit"`
}
