// Package job runs one video job at a time in a background worker and
// exposes start, cancel and progress queries to the HTTP layer.
package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"peoplecounter/internal/config"
	"peoplecounter/internal/logger"
	"peoplecounter/internal/metrics"
	"peoplecounter/internal/model"
	"peoplecounter/internal/pipeline"
	"peoplecounter/internal/repository"
	"peoplecounter/internal/session"
)

// ErrJobActive is returned by Start while a previous job is still running.
var ErrJobActive = errors.New("a job is already processing")

// BroadcastInterval is how often progress is pushed to live viewers.
const BroadcastInterval = 500 * time.Millisecond

// Source is a pipeline source that holds an open file.
type Source interface {
	pipeline.Source
	Close() error
}

// Sink is a pipeline sink that must be finalized.
type Sink interface {
	pipeline.Sink
	Close() error
}

// Media builds the per-job collaborators of the pipeline.
type Media interface {
	OpenSource(path string) (Source, error)
	CreateSink(path string, fps float64, width, height int) (Sink, error)
	NewDetector() pipeline.Detector
	NewPreview(jobID string) pipeline.Preview
}

// Broadcaster fans a message out to live viewers.
type Broadcaster interface {
	Broadcast(message []byte)
}

// Manager owns the active job. Only one job processes at a time; a new job
// replaces the previous session once the previous worker has exited.
type Manager struct {
	media   Media
	repo    repository.JobRepository
	hub     Broadcaster
	logger  *logger.Logger
	metrics *metrics.Metrics

	opts        pipeline.Options
	nominalFPS  float64
	deleteInput bool
	interval    time.Duration

	current atomic.Pointer[session.Session]

	mu     sync.Mutex
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a manager. repo, hub and m may be nil.
func NewManager(media Media, repo repository.JobRepository, hub Broadcaster, config *config.Config, logger *logger.Logger, m *metrics.Metrics) *Manager {
	if m == nil {
		m = metrics.New()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		media:       media,
		repo:        repo,
		hub:         hub,
		logger:      logger,
		metrics:     m,
		opts:        PipelineOptions(config),
		nominalFPS:  config.NominalFPS,
		deleteInput: config.DeleteInput,
		interval:    BroadcastInterval,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// PipelineOptions maps configuration onto pipeline options.
func PipelineOptions(cfg *config.Config) pipeline.Options {
	opts := pipeline.DefaultOptions()
	opts.SkipFrames = cfg.SkipFrames
	opts.EntryLineRatio = cfg.EntryLineRatio
	opts.Motion.MetersPerPixel = cfg.MetersPerPixel
	opts.Motion.NominalFPS = cfg.NominalFPS
	opts.PreviewInterval = cfg.PreviewInterval
	return opts
}

// Start opens inputPath, prepares outputPath and launches the worker. The
// returned session is already processing.
func (m *Manager) Start(inputPath, outputPath string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.busy() {
		return nil, ErrJobActive
	}
	if m.ctx.Err() != nil {
		return nil, fmt.Errorf("manager is shut down")
	}

	src, err := m.media.OpenSource(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}

	info := src.Info()
	fps := info.FPS
	if fps <= 0 {
		fps = m.nominalFPS
	}
	sink, err := m.media.CreateSink(outputPath, fps, info.Width, info.Height)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("failed to create output: %w", err)
	}

	sess := session.New(uuid.NewString())
	sess.Start()
	m.current.Store(sess)

	job := &model.Job{
		ID:         sess.ID(),
		InputPath:  inputPath,
		OutputName: filepath.Base(outputPath),
		Status:     model.StatusProcessing,
		StartedAt:  sess.StartedAt(),
	}
	if m.repo != nil {
		if err := m.repo.Insert(job); err != nil {
			m.logger.Warning("Failed to record job %s: %v", job.ID, err)
		}
	}

	done := make(chan struct{})
	m.done = done
	m.metrics.JobsStarted.Add(1)
	m.logger.Info("Job %s started: %s -> %s (%d frames, %.2f fps, %dx%d)",
		job.ID, inputPath, job.OutputName, info.FrameCount, fps, info.Width, info.Height)

	m.wg.Add(1)
	go m.run(sess, job, src, sink, done)

	return sess, nil
}

func (m *Manager) busy() bool {
	if m.done == nil {
		return false
	}
	select {
	case <-m.done:
		return false
	default:
		return true
	}
}

// Active reports whether a worker is running.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.busy()
}

func (m *Manager) run(sess *session.Session, job *model.Job, src Source, sink Sink, done chan struct{}) {
	defer m.wg.Done()
	defer close(done)

	stopBroadcast := m.startBroadcast(sess)

	res := m.process(sess, src, sink)

	if err := sink.Close(); err != nil {
		m.metrics.WriteErrors.Add(1)
		m.logger.Error("Job %s: failed to finalize output: %v", job.ID, err)
	}
	if err := src.Close(); err != nil {
		m.logger.Warning("Job %s: failed to close input: %v", job.ID, err)
	}

	stopBroadcast()
	m.finish(job, res)

	if m.deleteInput {
		if err := os.Remove(job.InputPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			m.logger.Warning("Job %s: failed to delete input %s: %v", job.ID, job.InputPath, err)
		}
	}
}

// process runs the pipeline. A panic outside the detector stops the job.
func (m *Manager) process(sess *session.Session, src Source, sink Sink) (res pipeline.Result) {
	defer func() {
		if r := recover(); r != nil {
			sess.Stop()
			res = pipeline.Result{Outcome: pipeline.Failed, Err: fmt.Errorf("worker panic: %v", r)}
			m.logger.Error("Job %s: worker panic: %v", sess.ID(), r)
		}
	}()

	p := pipeline.New(m.media.NewDetector(), sess, m.opts, m.metrics, m.logger)
	return p.Run(m.ctx, src, sink, m.media.NewPreview(sess.ID()))
}

func (m *Manager) finish(job *model.Job, res pipeline.Result) {
	status := model.StatusCompleted
	errMsg := ""
	switch res.Outcome {
	case pipeline.Completed:
		m.metrics.JobsCompleted.Add(1)
	case pipeline.Cancelled:
		status = model.StatusCancelled
		m.metrics.JobsCancelled.Add(1)
	case pipeline.Failed:
		status = model.StatusFailed
		m.metrics.JobsFailed.Add(1)
		if res.Err != nil {
			errMsg = res.Err.Error()
		}
	}
	m.logger.Info("Job %s %s after %d frames", job.ID, status, res.Frames)

	if m.repo != nil {
		if err := m.repo.Finish(job.ID, status, errMsg, time.Now()); err != nil {
			m.logger.Warning("Failed to update job %s: %v", job.ID, err)
		}
	}
}

// startBroadcast pushes snapshots of sess until the returned func is called,
// which also sends the final state.
func (m *Manager) startBroadcast(sess *session.Session) func() {
	if m.hub == nil {
		return func() {}
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.publish(sess.Snapshot())
			case <-stop:
				return
			}
		}
	}()

	return func() {
		close(stop)
		wg.Wait()
		m.publish(sess.Snapshot())
	}
}

func (m *Manager) publish(snap session.Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		m.logger.Error("Failed to encode progress: %v", err)
		return
	}
	m.hub.Broadcast(data)
}

// Cancel stops the active job at the next frame boundary. It reports
// whether a job was running.
func (m *Manager) Cancel() bool {
	sess := m.current.Load()
	if sess == nil {
		return false
	}
	if sess.Cancel() {
		m.logger.Info("Job %s cancellation requested", sess.ID())
		return true
	}
	return false
}

// Snapshot reads the latest job's state. Before the first job it is all zero.
func (m *Manager) Snapshot() session.Snapshot {
	if sess := m.current.Load(); sess != nil {
		return sess.Snapshot()
	}
	return session.Snapshot{}
}

// Wait blocks until the running worker, if any, has exited.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Shutdown cancels the running job and waits for its worker, or until ctx
// is done.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cancel()

	finished := make(chan struct{})
	go func() {
		m.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		m.logger.Info("Job manager stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
