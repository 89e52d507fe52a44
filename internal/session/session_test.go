package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSession_Lifecycle(t *testing.T) {
	s := New("job-1")
	assert.Equal(t, Snapshot{JobID: "job-1"}, s.Snapshot())

	s.Start()
	s.SetProgress(25, 100)
	s.SetCounts(2, 5)

	assert.Equal(t, Snapshot{JobID: "job-1", Progress: 25, Processing: true, EntryCount: 2, TotalCount: 5}, s.Snapshot())

	s.Complete()
	snap := s.Snapshot()
	assert.False(t, snap.Processing)
	assert.True(t, snap.Completed)
}

func TestSession_CancelFreezesState(t *testing.T) {
	s := New("job-2")
	s.Start()
	s.SetProgress(10, 100)

	assert.True(t, s.Cancel())
	assert.False(t, s.Cancel())

	s.SetProgress(90, 100)
	s.SetCounts(4, 4)
	s.Complete()

	snap := s.Snapshot()
	assert.Equal(t, 10, snap.Progress)
	assert.Equal(t, 0, snap.EntryCount)
	assert.False(t, snap.Processing)
	assert.False(t, snap.Completed)
}

func TestSession_StopLeavesCompletedUnset(t *testing.T) {
	s := New("job-3")
	s.Start()

	s.Stop()

	assert.False(t, s.Processing())
	assert.False(t, s.Completed())
}

func TestSession_StartResets(t *testing.T) {
	s := New("job-4")
	s.Start()
	s.SetProgress(100, 100)
	s.SetCounts(3, 3)
	s.Complete()

	s.Start()

	assert.Equal(t, Snapshot{JobID: "job-4", Processing: true}, s.Snapshot())
	assert.False(t, s.StartedAt().IsZero())
}

func TestPercent(t *testing.T) {
	tests := []struct {
		done, total, want int
	}{
		{0, 100, 0},
		{1, 3, 33},
		{50, 200, 25},
		{100, 100, 100},
		{120, 100, 100},
		{10, 0, 0},
		{10, -1, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Percent(tt.done, tt.total), "Percent(%d, %d)", tt.done, tt.total)
	}
}

func TestSession_ConcurrentReaders(t *testing.T) {
	s := New("job-5")
	s.Start()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 1000; i++ {
			s.SetProgress(i, 1000)
			s.SetCounts(i%3, 3)
		}
		s.Complete()
	}()

	for i := 0; i < 1000; i++ {
		snap := s.Snapshot()
		assert.GreaterOrEqual(t, snap.Progress, 0)
		assert.LessOrEqual(t, snap.Progress, 100)
	}
	wg.Wait()

	assert.Equal(t, 100, s.Snapshot().Progress)
	assert.True(t, s.Completed())
}
