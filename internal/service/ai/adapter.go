package ai

import (
	"image"

	"gocv.io/x/gocv"

	"peoplecounter/internal/counting"
	"peoplecounter/internal/identity"
	"peoplecounter/internal/logger"
	"peoplecounter/internal/metrics"
	"peoplecounter/internal/pipeline"
)

// PeopleDetector finds people in a BGR image.
type PeopleDetector interface {
	DetectPeople(img gocv.Mat) ([]image.Rectangle, error)
}

// Adapter turns raw person boxes into tracked identities in full-frame
// coordinates. One Adapter serves one job so identifiers restart per job.
type Adapter struct {
	detector PeopleDetector
	tracker  *identity.Tracker
	scale    float64
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

// NewAdapter runs detector on frames downscaled by scale.
func NewAdapter(detector PeopleDetector, tracker *identity.Tracker, scale float64, logger *logger.Logger, m *metrics.Metrics) *Adapter {
	if scale <= 0 || scale > 1 {
		scale = 1
	}
	return &Adapter{
		detector: detector,
		tracker:  tracker,
		scale:    scale,
		logger:   logger,
		metrics:  m,
	}
}

// Detect never fails: errors are logged and yield an empty detection.
func (a *Adapter) Detect(f pipeline.Frame) counting.Detection {
	mf, ok := f.(interface{ Mat() gocv.Mat })
	if !ok {
		a.fail("frame is not backed by a gocv.Mat")
		return nil
	}

	img := mf.Mat()
	if a.scale != 1 {
		small := gocv.NewMat()
		defer small.Close()
		if err := gocv.Resize(img, &small, image.Point{}, a.scale, a.scale, gocv.InterpolationLinear); err != nil {
			a.fail("failed to resize frame: %v", err)
			return nil
		}
		img = small
	}

	rects, err := a.detector.DetectPeople(img)
	if err != nil {
		a.fail("detection failed: %v", err)
		rects = nil
	}

	ids := a.tracker.Update(rects)
	detection := make(counting.Detection, 0, len(rects))
	for i, r := range rects {
		detection = append(detection, counting.Tracked{
			ID:  ids[i],
			Box: counting.BoxFromRect(a.upscale(r)),
		})
	}
	return detection
}

func (a *Adapter) upscale(r image.Rectangle) image.Rectangle {
	if a.scale == 1 {
		return r
	}
	return image.Rect(
		int(float64(r.Min.X)/a.scale),
		int(float64(r.Min.Y)/a.scale),
		int(float64(r.Max.X)/a.scale),
		int(float64(r.Max.Y)/a.scale),
	)
}

func (a *Adapter) fail(format string, args ...interface{}) {
	if a.metrics != nil {
		a.metrics.DetectionErrors.Add(1)
	}
	a.logger.Warning(format, args...)
}
