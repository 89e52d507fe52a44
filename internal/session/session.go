// Package session holds the progress state of one video job. The worker
// writes it while a separate reader polls it; every field is individually
// atomic and readers accept snapshots that mix fields from adjacent frames.
package session

import (
	"sync/atomic"
	"time"
)

// Snapshot is the read-only view served to pollers.
type Snapshot struct {
	JobID      string `json:"job_id,omitempty"`
	Progress   int    `json:"progress"`
	Processing bool   `json:"processing"`
	Completed  bool   `json:"completed"`
	EntryCount int    `json:"entry_count"`
	TotalCount int    `json:"total_count"`
}

// Session is the state of one job. Once processing is false the session is
// frozen: progress and count updates are ignored.
type Session struct {
	id        string
	startedAt time.Time

	processing atomic.Bool
	completed  atomic.Bool
	progress   atomic.Int32
	entryCount atomic.Int64
	totalCount atomic.Int64
}

// New returns an idle session for job id.
func New(id string) *Session {
	return &Session{id: id}
}

// ID is the job identifier.
func (s *Session) ID() string {
	return s.id
}

// StartedAt is when Start was last called.
func (s *Session) StartedAt() time.Time {
	return s.startedAt
}

// Reset zeroes every field and leaves the session idle.
func (s *Session) Reset() {
	s.processing.Store(false)
	s.completed.Store(false)
	s.progress.Store(0)
	s.entryCount.Store(0)
	s.totalCount.Store(0)
}

// Start resets the session and marks it processing. It must be called
// before the worker starts writing.
func (s *Session) Start() {
	s.Reset()
	s.startedAt = time.Now()
	s.processing.Store(true)
}

// Cancel clears the processing flag. It reports whether the job was running.
func (s *Session) Cancel() bool {
	return s.processing.CompareAndSwap(true, false)
}

// Processing reports whether the job is still running.
func (s *Session) Processing() bool {
	return s.processing.Load()
}

// Completed reports whether the job ran to the end of its input.
func (s *Session) Completed() bool {
	return s.completed.Load()
}

// Complete marks a job that consumed its whole input. It has no effect on a
// job that was already stopped.
func (s *Session) Complete() {
	if !s.processing.Load() {
		return
	}
	s.completed.Store(true)
	s.processing.Store(false)
}

// Stop ends the job without marking it completed.
func (s *Session) Stop() {
	s.processing.Store(false)
}

// SetProgress records done of total frames as a 0-100 percentage.
func (s *Session) SetProgress(done, total int) {
	if !s.processing.Load() {
		return
	}
	s.progress.Store(int32(Percent(done, total)))
}

// SetCounts records the entry-zone occupancy and the number of tracked people.
func (s *Session) SetCounts(entry, total int) {
	if !s.processing.Load() {
		return
	}
	s.entryCount.Store(int64(entry))
	s.totalCount.Store(int64(total))
}

// Snapshot reads every field once.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		JobID:      s.id,
		Progress:   int(s.progress.Load()),
		Processing: s.processing.Load(),
		Completed:  s.completed.Load(),
		EntryCount: int(s.entryCount.Load()),
		TotalCount: int(s.totalCount.Load()),
	}
}

// Percent converts done/total to an integer percentage in [0, 100]. An
// unknown total yields 0.
func Percent(done, total int) int {
	if total <= 0 || done <= 0 {
		return 0
	}
	p := done * 100 / total
	if p > 100 {
		return 100
	}
	return p
}
