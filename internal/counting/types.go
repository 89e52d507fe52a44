// Package counting holds the per-job tracking state: track records, speed
// estimation, entry-zone occupancy and the frame sampling policy.
package counting

import (
	"image"
	"sort"
)

const (
	// DefaultEntryLineRatio places the entry line at 30% of the frame width.
	DefaultEntryLineRatio = 0.3
	// DefaultMetersPerPixel is the fixed pixel-to-meter calibration.
	DefaultMetersPerPixel = 0.026
	// DefaultNominalFPS is the frame rate assumed by the speed estimate.
	DefaultNominalFPS = 30.0
	// DefaultSkipFrames runs detection on every 4th frame.
	DefaultSkipFrames = 3
)

// Box is an axis-aligned bounding box in frame pixel coordinates.
type Box struct {
	X1, Y1, X2, Y2 int
}

// Center returns the box center using floor division.
func (b Box) Center() image.Point {
	return image.Pt(floorDiv(b.X1+b.X2, 2), floorDiv(b.Y1+b.Y2, 2))
}

// Rect converts the box to an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

// BoxFromRect converts an image.Rectangle to a Box.
func BoxFromRect(r image.Rectangle) Box {
	return Box{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}
}

// Tracked is one (identifier, box) pair produced by the detector.
type Tracked struct {
	ID  int
	Box Box
}

// Detection is the result of one detector pass. An empty Detection is a
// valid outcome and means nobody is visible.
type Detection []Tracked

// IDs returns the identifiers present in the detection.
func (d Detection) IDs() map[int]struct{} {
	ids := make(map[int]struct{}, len(d))
	for _, t := range d {
		ids[t.ID] = struct{}{}
	}
	return ids
}

// Boxes returns the detection keyed by identifier. Later duplicates win.
func (d Detection) Boxes() map[int]Box {
	boxes := make(map[int]Box, len(d))
	for _, t := range d {
		boxes[t.ID] = t.Box
	}
	return boxes
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
