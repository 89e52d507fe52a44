package repository

import (
	"errors"
	"time"

	"peoplecounter/internal/dto"
	"peoplecounter/internal/model"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// JobRepository defines the interface for job history operations.
type JobRepository interface {
	// Create operations
	Insert(job *model.Job) error

	// Update operations
	Finish(id, status, errMsg string, finishedAt time.Time) error
	MarkInterrupted(at time.Time) (int64, error)

	// Read operations
	GetByID(id string) (*model.Job, error)
	GetAll(filter *dto.JobFilter) ([]model.Job, error)
	GetTotalCount(filter *dto.JobFilter) (int, error)

	// Delete operations
	Delete(id string) error
}
