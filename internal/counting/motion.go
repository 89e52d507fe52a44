package counting

import (
	"image"
	"math"
)

const msToKmh = 3.6

// MotionEstimator turns the displacement of a box center between two
// full-process frames into a speed in km/h.
//
// The time between the two samples is always taken as one frame at
// NominalFPS, even when the sampler skipped frames in between. The result is
// a rough approximation and is kept that way on purpose.
type MotionEstimator struct {
	MetersPerPixel float64
	NominalFPS     float64
}

// NewMotionEstimator returns an estimator with the given calibration.
func NewMotionEstimator(metersPerPixel, nominalFPS float64) MotionEstimator {
	return MotionEstimator{MetersPerPixel: metersPerPixel, NominalFPS: nominalFPS}
}

// DefaultMotionEstimator uses 0.026 m/px at 30 fps.
func DefaultMotionEstimator() MotionEstimator {
	return NewMotionEstimator(DefaultMetersPerPixel, DefaultNominalFPS)
}

// Speed returns the speed in km/h rounded to two decimals.
func (m MotionEstimator) Speed(prev, curr image.Point) float64 {
	dx := float64(curr.X - prev.X)
	dy := float64(curr.Y - prev.Y)
	distance := math.Sqrt(dx*dx + dy*dy)

	meters := distance * m.MetersPerPixel
	mps := meters * m.NominalFPS
	return round2(mps * msToKmh)
}

func round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}
