package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	// Frame counters
	FramesRead      atomic.Uint64
	FramesDetected  atomic.Uint64 // full-process frames
	FramesReused    atomic.Uint64
	DetectionErrors atomic.Uint64
	ReadErrors      atomic.Uint64
	WriteErrors     atomic.Uint64
	PreviewsWritten atomic.Uint64

	// Job counters
	JobsStarted   atomic.Uint64
	JobsCompleted atomic.Uint64
	JobsCancelled atomic.Uint64
	JobsFailed    atomic.Uint64

	// Current job
	TrackedPeople atomic.Int64
	EntryCount    atomic.Int64

	detectionLatency prometheus.Histogram
	registry         *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		detectionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "peoplecounter_detection_seconds",
			Help:    "Time spent in the detector per full-process frame",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
	}

	m.registerPrometheusMetrics()

	return m
}

func (m *Metrics) counter(name, help string, v *atomic.Uint64) prometheus.Collector {
	return prometheus.NewCounterFunc(
		prometheus.CounterOpts{Name: name, Help: help},
		func() float64 { return float64(v.Load()) },
	)
}

func (m *Metrics) gauge(name, help string, v *atomic.Int64) prometheus.Collector {
	return prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Name: name, Help: help},
		func() float64 { return float64(v.Load()) },
	)
}

// registerPrometheusMetrics registers all metrics with Prometheus
func (m *Metrics) registerPrometheusMetrics() {
	m.registry.MustRegister(
		m.counter("peoplecounter_frames_read_total", "Frames read from the video source", &m.FramesRead),
		m.counter("peoplecounter_frames_detected_total", "Frames on which detection ran", &m.FramesDetected),
		m.counter("peoplecounter_frames_reused_total", "Frames drawn from stored state", &m.FramesReused),
		m.counter("peoplecounter_detection_errors_total", "Detector failures treated as empty detections", &m.DetectionErrors),
		m.counter("peoplecounter_read_errors_total", "Video source read failures", &m.ReadErrors),
		m.counter("peoplecounter_write_errors_total", "Video sink write failures", &m.WriteErrors),
		m.counter("peoplecounter_previews_written_total", "Preview snapshots published", &m.PreviewsWritten),

		m.counter("peoplecounter_jobs_started_total", "Jobs started", &m.JobsStarted),
		m.counter("peoplecounter_jobs_completed_total", "Jobs that consumed their whole input", &m.JobsCompleted),
		m.counter("peoplecounter_jobs_cancelled_total", "Jobs cancelled by a client", &m.JobsCancelled),
		m.counter("peoplecounter_jobs_failed_total", "Jobs stopped by an error", &m.JobsFailed),

		m.gauge("peoplecounter_tracked_people", "People tracked on the last full-process frame", &m.TrackedPeople),
		m.gauge("peoplecounter_entry_zone_people", "People inside the entry zone on the last full-process frame", &m.EntryCount),

		m.detectionLatency,
	)
}

// ObserveDetection records the duration of one detector call.
func (m *Metrics) ObserveDetection(d time.Duration) {
	m.detectionLatency.Observe(d.Seconds())
}

// RegisterGaugeFunc adds a gauge read from fn at scrape time.
func (m *Metrics) RegisterGaugeFunc(name, help string, fn func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, fn))
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
