package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"peoplecounter/internal/dto"
	"peoplecounter/internal/model"
	"peoplecounter/internal/repository"
)

var _ repository.JobRepository = (*JobRepository)(nil)

// JobRepository implements repository.JobRepository for SQLite.
type JobRepository struct {
	db *DB
}

// NewJobRepository creates a new SQLite job repository.
func NewJobRepository(db *DB) *JobRepository {
	return &JobRepository{db: db}
}

// Insert adds a new job record to the database.
func (r *JobRepository) Insert(job *model.Job) error {
	r.db.Lock()
	defer r.db.Unlock()

	_, err := r.db.Conn().Exec(`
		INSERT INTO jobs (id, input_path, output_name, status, error, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, job.ID, job.InputPath, job.OutputName, job.Status, job.Error, job.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

// Finish records the terminal status of a job.
func (r *JobRepository) Finish(id, status, errMsg string, finishedAt time.Time) error {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		UPDATE jobs SET status = ?, error = ?, finished_at = ? WHERE id = ?
	`, status, errMsg, finishedAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// MarkInterrupted closes jobs left processing by a previous run of the server.
func (r *JobRepository) MarkInterrupted(at time.Time) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		UPDATE jobs SET status = ?, finished_at = ? WHERE status = ?
	`, model.StatusInterrupted, at.UTC(), model.StatusProcessing)
	if err != nil {
		return 0, fmt.Errorf("failed to mark interrupted jobs: %w", err)
	}
	return result.RowsAffected()
}

// GetByID retrieves a job by its ID.
func (r *JobRepository) GetByID(id string) (*model.Job, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	job, err := scanJob(r.db.Conn().QueryRow(`
		SELECT id, input_path, output_name, status, error, started_at, finished_at
		FROM jobs WHERE id = ?
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// GetAll retrieves jobs, newest first, based on filter criteria.
func (r *JobRepository) GetAll(filter *dto.JobFilter) ([]model.Job, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `
		SELECT id, input_path, output_name, status, error, started_at, finished_at
		FROM jobs
		WHERE 1=1
	`
	args := []interface{}{}

	if filter != nil && filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}

	query += " ORDER BY started_at DESC"

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)

		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// GetTotalCount returns the number of jobs matching the filter.
func (r *JobRepository) GetTotalCount(filter *dto.JobFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `SELECT COUNT(*) FROM jobs WHERE 1=1`
	args := []interface{}{}

	if filter != nil && filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}

	var count int
	if err := r.db.Conn().QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return count, nil
}

// Delete removes a job by its ID.
func (r *JobRepository) Delete(id string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM jobs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*model.Job, error) {
	var job model.Job
	var finishedAt sql.NullTime
	if err := row.Scan(&job.ID, &job.InputPath, &job.OutputName, &job.Status, &job.Error, &job.StartedAt, &finishedAt); err != nil {
		return nil, err
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		job.FinishedAt = &t
	}
	return &job, nil
}
