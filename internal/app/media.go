package app

import (
	"peoplecounter/internal/config"
	"peoplecounter/internal/identity"
	"peoplecounter/internal/logger"
	"peoplecounter/internal/metrics"
	"peoplecounter/internal/pipeline"
	"peoplecounter/internal/service/ai"
	"peoplecounter/internal/service/job"
	"peoplecounter/internal/video"
)

// videoMedia builds OpenCV backed sources, sinks and detectors for jobs.
type videoMedia struct {
	config   *config.Config
	detector ai.PeopleDetector
	previews video.JPEGStore
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

var _ job.Media = (*videoMedia)(nil)

func (m *videoMedia) OpenSource(path string) (job.Source, error) {
	src, err := video.OpenFile(path)
	if err != nil {
		return nil, err
	}
	return src, nil
}

func (m *videoMedia) CreateSink(path string, fps float64, width, height int) (job.Sink, error) {
	sink, err := video.CreateFile(path, m.config.OutputCodec, fps, width, height)
	if err != nil {
		return nil, err
	}
	return sink, nil
}

// NewDetector shares the loaded network but starts every job with a fresh tracker.
func (m *videoMedia) NewDetector() pipeline.Detector {
	tracker := identity.NewTracker(m.config.IOUThreshold, m.config.MaxLost)
	return ai.NewAdapter(m.detector, tracker, m.config.ProcessScale, m.logger, m.metrics)
}

func (m *videoMedia) NewPreview(jobID string) pipeline.Preview {
	return video.NewPreview(m.previews, jobID)
}
