// Package pipeline drives frames through sampling, detection, tracking
// update and rendering for one job.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"peoplecounter/internal/counting"
	"peoplecounter/internal/logger"
	"peoplecounter/internal/metrics"
	"peoplecounter/internal/render"
	"peoplecounter/internal/session"
)

// Frame is one decoded video frame that can be drawn on.
type Frame interface {
	render.Canvas
	Close() error
}

// StreamInfo describes a source before iteration begins.
type StreamInfo struct {
	FPS        float64
	FrameCount int
	Width      int
	Height     int
}

// Source yields frames in order and returns io.EOF after the last one.
type Source interface {
	Info() StreamInfo
	Read() (Frame, error)
}

// Sink accepts annotated frames in order.
type Sink interface {
	Write(f Frame) error
}

// Preview accepts the latest annotated frame for live viewing.
type Preview interface {
	Publish(f Frame) error
}

// Detector is the person detection and tracking capability. It never fails:
// problems are reported as an empty Detection.
type Detector interface {
	Detect(f Frame) counting.Detection
}

// Options configures a Pipeline.
type Options struct {
	SkipFrames      int
	EntryLineRatio  float64
	Motion          counting.MotionEstimator
	PreviewInterval time.Duration
	LogEvery        int
	Now             func() time.Time
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		SkipFrames:      counting.DefaultSkipFrames,
		EntryLineRatio:  counting.DefaultEntryLineRatio,
		Motion:          counting.DefaultMotionEstimator(),
		PreviewInterval: time.Second,
		LogEvery:        10,
		Now:             time.Now,
	}
}

// Outcome is how a Run ended.
type Outcome int

const (
	Completed Outcome = iota
	Cancelled
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Result summarizes a Run.
type Result struct {
	Outcome Outcome
	Frames  int
	Err     error
}

// Pipeline owns the tracking state of one job. It is not safe for
// concurrent use; frames are processed strictly in order.
type Pipeline struct {
	detector Detector
	session  *session.Session
	metrics  *metrics.Metrics
	logger   *logger.Logger
	opts     Options

	sampler *counting.Sampler
	store   *counting.Store
	zone    *counting.ZoneCounter

	lastPreview time.Time
}

// New builds a pipeline writing its progress into sess.
func New(detector Detector, sess *session.Session, opts Options, m *metrics.Metrics, l *logger.Logger) *Pipeline {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.LogEvery <= 0 {
		opts.LogEvery = 10
	}
	if m == nil {
		m = metrics.New()
	}
	if l == nil {
		l = logger.Discard()
	}
	return &Pipeline{
		detector: detector,
		session:  sess,
		metrics:  m,
		logger:   l,
		opts:     opts,
		sampler:  counting.NewSampler(opts.SkipFrames),
		store:    counting.NewStore(opts.Motion),
		zone:     counting.NewZoneCounter(opts.EntryLineRatio),
	}
}

// SetVideoProperties fixes the entry line from the stream size.
func (p *Pipeline) SetVideoProperties(width, height int) {
	if width > 0 && height > 0 {
		p.zone.Establish(width, height)
	}
}

// ProcessFrame advances the sampler, updates tracking state on full-process
// frames and draws the current state onto f.
func (p *Pipeline) ProcessFrame(f Frame) (counting.Mode, error) {
	size := f.Size()
	p.zone.Establish(size.X, size.Y)

	mode := p.sampler.Next()
	switch mode {
	case counting.FullProcess:
		p.metrics.FramesDetected.Add(1)
		d := p.detect(f)
		p.store.Update(d)
		p.zone.Update(p.store.Boxes())
		p.metrics.TrackedPeople.Store(int64(p.store.Len()))
		p.metrics.EntryCount.Store(int64(p.zone.Count()))
	case counting.ReuseLast:
		p.metrics.FramesReused.Add(1)
	}

	return mode, render.Annotate(f, p.Scene())
}

func (p *Pipeline) detect(f Frame) (d counting.Detection) {
	start := p.opts.Now()
	defer func() {
		if r := recover(); r != nil {
			p.metrics.DetectionErrors.Add(1)
			p.logger.Error("Detector panic on frame %d: %v", p.sampler.Frames(), r)
			d = nil
		}
		p.metrics.ObserveDetection(p.opts.Now().Sub(start))
	}()
	return p.detector.Detect(f)
}

// Scene is the state the next frame will be drawn with.
func (p *Pipeline) Scene() render.Scene {
	line, ok := p.zone.Line()
	return render.Scene{
		Line:       line,
		HasLine:    ok,
		Tracks:     p.store.Records(),
		TotalCount: p.TrackedCount(),
		EntryCount: p.EntryCount(),
	}
}

// EntryCount is the entry-zone occupancy from the last full-process frame.
func (p *Pipeline) EntryCount() int {
	return p.zone.Count()
}

// TrackedCount is the number of identifiers currently tracked.
func (p *Pipeline) TrackedCount() int {
	return p.store.Len()
}

// Run processes src until it is exhausted, the session is cancelled, ctx is
// done, or a read or write fails. Errors never escape as panics; they are
// logged and reported in the Result. The session is left stopped in every
// case and marked completed only on natural end.
func (p *Pipeline) Run(ctx context.Context, src Source, sink Sink, preview Preview) Result {
	info := src.Info()
	p.SetVideoProperties(info.Width, info.Height)

	frames := 0
	for {
		if ctx.Err() != nil || !p.session.Processing() {
			p.session.Stop()
			p.logger.Info("Job %s cancelled after %d frames", p.session.ID(), frames)
			return Result{Outcome: Cancelled, Frames: frames}
		}

		f, err := src.Read()
		if errors.Is(err, io.EOF) {
			p.session.SetProgress(frames, info.FrameCount)
			p.session.Complete()
			p.logger.Info("Job %s finished: %d frames", p.session.ID(), frames)
			return Result{Outcome: Completed, Frames: frames}
		}
		if err != nil {
			p.metrics.ReadErrors.Add(1)
			return p.fail(frames, fmt.Errorf("read frame %d: %w", frames+1, err))
		}
		p.metrics.FramesRead.Add(1)

		if err := p.step(f, sink, preview); err != nil {
			f.Close()
			return p.fail(frames, err)
		}
		f.Close()

		frames++
		p.session.SetProgress(frames, info.FrameCount)
		p.session.SetCounts(p.EntryCount(), p.TrackedCount())

		if frames%p.opts.LogEvery == 0 {
			p.logger.Info("Processed %d/%d frames (%d%%)", frames, info.FrameCount, session.Percent(frames, info.FrameCount))
		}
	}
}

func (p *Pipeline) step(f Frame, sink Sink, preview Preview) error {
	if _, err := p.ProcessFrame(f); err != nil {
		p.logger.Warning("Annotating frame %d: %v", p.sampler.Frames(), err)
	}

	if err := sink.Write(f); err != nil {
		p.metrics.WriteErrors.Add(1)
		return fmt.Errorf("write frame %d: %w", p.sampler.Frames(), err)
	}

	if preview != nil {
		now := p.opts.Now()
		if p.lastPreview.IsZero() || now.Sub(p.lastPreview) > p.opts.PreviewInterval {
			if err := preview.Publish(f); err != nil {
				p.logger.Warning("Publishing preview: %v", err)
			} else {
				p.metrics.PreviewsWritten.Add(1)
			}
			p.lastPreview = now
		}
	}
	return nil
}

func (p *Pipeline) fail(frames int, err error) Result {
	p.session.Stop()
	p.logger.Error("Job %s stopped after %d frames: %v", p.session.ID(), frames, err)
	return Result{Outcome: Failed, Frames: frames, Err: err}
}
