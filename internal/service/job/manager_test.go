package job

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peoplecounter/internal/config"
	"peoplecounter/internal/counting"
	"peoplecounter/internal/dto"
	"peoplecounter/internal/logger"
	"peoplecounter/internal/metrics"
	"peoplecounter/internal/model"
	"peoplecounter/internal/pipeline"
	"peoplecounter/internal/repository"
	"peoplecounter/internal/session"
)

type frame struct{}

func (frame) Size() image.Point                                           { return image.Pt(320, 240) }
func (frame) Line(image.Point, image.Point, color.RGBA, int) error        { return nil }
func (frame) Rectangle(image.Rectangle, color.RGBA, int) error            { return nil }
func (frame) PutText(string, image.Point, float64, color.RGBA, int) error { return nil }
func (frame) Close() error                                                { return nil }

type source struct {
	frames  int
	read    int
	gate    chan struct{}
	failAt  int
	closed  bool
	closeMu sync.Mutex
}

func (s *source) Info() pipeline.StreamInfo {
	return pipeline.StreamInfo{FPS: 25, FrameCount: s.frames, Width: 320, Height: 240}
}

func (s *source) Read() (pipeline.Frame, error) {
	if s.gate != nil {
		<-s.gate
	}
	if s.read >= s.frames {
		return nil, io.EOF
	}
	s.read++
	if s.read == s.failAt {
		return nil, errors.New("truncated stream")
	}
	return frame{}, nil
}

func (s *source) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	s.closed = true
	return nil
}

type sink struct {
	fps    float64
	closed bool
}

func (s *sink) Write(pipeline.Frame) error { return nil }
func (s *sink) Close() error {
	s.closed = true
	return nil
}

type detector struct{}

func (detector) Detect(pipeline.Frame) counting.Detection {
	return counting.Detection{{ID: 1, Box: counting.Box{X1: 200, Y1: 10, X2: 260, Y2: 100}}}
}

type media struct {
	src     *source
	sink    *sink
	openErr error
}

func (m *media) OpenSource(string) (Source, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	return m.src, nil
}

func (m *media) CreateSink(_ string, fps float64, _, _ int) (Sink, error) {
	m.sink.fps = fps
	return m.sink, nil
}

func (m *media) NewDetector() pipeline.Detector     { return detector{} }
func (m *media) NewPreview(string) pipeline.Preview { return nil }

type memRepo struct {
	mu   sync.Mutex
	jobs map[string]model.Job
}

func newMemRepo() *memRepo { return &memRepo{jobs: map[string]model.Job{}} }

func (r *memRepo) Insert(job *model.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = *job
	return nil
}

func (r *memRepo) Finish(id, status, errMsg string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return repository.ErrNotFound
	}
	job.Status, job.Error, job.FinishedAt = status, errMsg, &at
	r.jobs[id] = job
	return nil
}

func (r *memRepo) MarkInterrupted(time.Time) (int64, error) { return 0, nil }

func (r *memRepo) GetByID(id string) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &job, nil
}

func (r *memRepo) GetAll(*dto.JobFilter) ([]model.Job, error) { return nil, nil }
func (r *memRepo) GetTotalCount(*dto.JobFilter) (int, error)  { return len(r.jobs), nil }
func (r *memRepo) Delete(string) error                        { return nil }

type hub struct {
	mu       sync.Mutex
	messages [][]byte
}

func (h *hub) Broadcast(message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, message)
}

func (h *hub) last(t *testing.T) session.Snapshot {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	require.NotEmpty(t, h.messages)
	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(h.messages[len(h.messages)-1], &snap))
	return snap
}

func testConfig() *config.Config {
	return &config.Config{
		SkipFrames:      3,
		EntryLineRatio:  0.3,
		MetersPerPixel:  0.026,
		NominalFPS:      30,
		PreviewInterval: time.Second,
		DeleteInput:     true,
	}
}

func tempInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.mp4")
	require.NoError(t, os.WriteFile(path, []byte("video"), 0644))
	return path
}

func TestManager_RunsJobToCompletion(t *testing.T) {
	md := &media{src: &source{frames: 12}, sink: &sink{}}
	repo := newMemRepo()
	h := &hub{}
	m := metrics.New()
	mgr := NewManager(md, repo, h, testConfig(), logger.Discard(), m)
	input := tempInput(t)

	sess, err := mgr.Start(input, "/out/processed_input.mp4")
	require.NoError(t, err)
	mgr.Wait()

	snap := mgr.Snapshot()
	assert.Equal(t, sess.ID(), snap.JobID)
	assert.Equal(t, 100, snap.Progress)
	assert.True(t, snap.Completed)
	assert.False(t, snap.Processing)
	assert.Equal(t, 1, snap.EntryCount)
	assert.Equal(t, 1, snap.TotalCount)

	assert.True(t, md.src.closed)
	assert.True(t, md.sink.closed)
	assert.Equal(t, 25.0, md.sink.fps)
	assert.NoFileExists(t, input)

	job, err := repo.GetByID(sess.ID())
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, job.Status)
	assert.Equal(t, "processed_input.mp4", job.OutputName)
	assert.NotNil(t, job.FinishedAt)

	assert.True(t, h.last(t).Completed)
	assert.Equal(t, uint64(1), m.JobsStarted.Load())
	assert.Equal(t, uint64(1), m.JobsCompleted.Load())
	assert.False(t, mgr.Active())
}

func TestManager_RejectsSecondJobWhileActive(t *testing.T) {
	gate := make(chan struct{})
	md := &media{src: &source{frames: 100, gate: gate}, sink: &sink{}}
	mgr := NewManager(md, nil, nil, testConfig(), logger.Discard(), nil)

	first, err := mgr.Start(tempInput(t), "out.mp4")
	require.NoError(t, err)
	assert.True(t, mgr.Active())

	_, err = mgr.Start(tempInput(t), "out2.mp4")
	assert.ErrorIs(t, err, ErrJobActive)
	assert.Equal(t, first.ID(), mgr.Snapshot().JobID)

	assert.True(t, mgr.Cancel())
	close(gate)
	mgr.Wait()

	snap := mgr.Snapshot()
	assert.False(t, snap.Processing)
	assert.False(t, snap.Completed)
	assert.False(t, mgr.Cancel())
}

func TestManager_NewJobSupersedesPrevious(t *testing.T) {
	md := &media{src: &source{frames: 4}, sink: &sink{}}
	mgr := NewManager(md, nil, nil, testConfig(), logger.Discard(), nil)

	first, err := mgr.Start(tempInput(t), "a.mp4")
	require.NoError(t, err)
	mgr.Wait()
	require.True(t, first.Completed())

	md.src = &source{frames: 100, gate: make(chan struct{})}
	second, err := mgr.Start(tempInput(t), "b.mp4")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID(), second.ID())
	snap := mgr.Snapshot()
	assert.Equal(t, second.ID(), snap.JobID)
	assert.True(t, snap.Processing)
	assert.False(t, snap.Completed)
	assert.Equal(t, 0, snap.Progress)

	mgr.Cancel()
	close(md.src.gate)
	mgr.Wait()
}

func TestManager_OpenFailure(t *testing.T) {
	md := &media{openErr: errors.New("unsupported container"), sink: &sink{}}
	mgr := NewManager(md, nil, nil, testConfig(), logger.Discard(), nil)

	_, err := mgr.Start("bad.mkv", "out.mp4")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported container")
	assert.False(t, mgr.Active())
	assert.Equal(t, session.Snapshot{}, mgr.Snapshot())
}

func TestManager_ReadFailureIsRecorded(t *testing.T) {
	md := &media{src: &source{frames: 10, failAt: 5}, sink: &sink{}}
	repo := newMemRepo()
	m := metrics.New()
	mgr := NewManager(md, repo, nil, testConfig(), logger.Discard(), m)

	sess, err := mgr.Start(tempInput(t), "out.mp4")
	require.NoError(t, err)
	mgr.Wait()

	assert.False(t, sess.Completed())
	assert.False(t, sess.Processing())

	job, err := repo.GetByID(sess.ID())
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, job.Status)
	assert.Contains(t, job.Error, "truncated stream")
	assert.Equal(t, uint64(1), m.JobsFailed.Load())
}

func TestManager_KeepsInputWhenConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.DeleteInput = false
	md := &media{src: &source{frames: 2}, sink: &sink{}}
	mgr := NewManager(md, nil, nil, cfg, logger.Discard(), nil)
	input := tempInput(t)

	_, err := mgr.Start(input, "out.mp4")
	require.NoError(t, err)
	mgr.Wait()

	assert.FileExists(t, input)
}

func TestManager_ShutdownCancelsRunningJob(t *testing.T) {
	gate := make(chan struct{})
	md := &media{src: &source{frames: 1000, gate: gate}, sink: &sink{}}
	mgr := NewManager(md, nil, nil, testConfig(), logger.Discard(), nil)

	sess, err := mgr.Start(tempInput(t), "out.mp4")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- mgr.Shutdown(ctx) }()

	<-mgr.ctx.Done()
	close(gate)
	require.NoError(t, <-errc)

	assert.False(t, sess.Processing())
	assert.False(t, sess.Completed())

	_, err = mgr.Start(tempInput(t), "again.mp4")
	assert.Error(t, err)
}

func TestPipelineOptions(t *testing.T) {
	cfg := testConfig()
	cfg.SkipFrames = 0
	cfg.MetersPerPixel = 0.05

	opts := PipelineOptions(cfg)

	assert.Equal(t, 0, opts.SkipFrames)
	assert.Equal(t, 0.05, opts.Motion.MetersPerPixel)
	assert.Equal(t, 30.0, opts.Motion.NominalFPS)
	assert.Equal(t, time.Second, opts.PreviewInterval)
}
