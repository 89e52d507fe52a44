// Package render draws the tracking state onto a frame.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"

	"peoplecounter/internal/counting"
)

var (
	Red   = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	Green = color.RGBA{R: 0, G: 255, B: 0, A: 0}
)

const (
	lineThickness  = 2
	textThickness  = 2
	headerScale    = 0.7
	trackTextScale = 0.5
)

// Canvas is the drawing surface of one frame. Implementations draw in place.
type Canvas interface {
	Size() image.Point
	Line(pt1, pt2 image.Point, c color.RGBA, thickness int) error
	Rectangle(r image.Rectangle, c color.RGBA, thickness int) error
	PutText(text string, org image.Point, scale float64, c color.RGBA, thickness int) error
}

// Scene is everything drawn onto a frame.
type Scene struct {
	Line       counting.EntryLine
	HasLine    bool
	Tracks     []counting.TrackRecord
	TotalCount int
	EntryCount int
}

// Annotate draws the entry line, one box and label per track, and the two
// counters. It reads scene only; drawing the same scene twice yields the
// same calls in the same order.
func Annotate(c Canvas, s Scene) error {
	var errs []error
	if s.HasLine {
		errs = append(errs,
			c.Line(s.Line.Start, s.Line.End, Red, lineThickness),
			c.PutText("Entry", image.Pt(s.Line.X+10, 30), headerScale, Red, textThickness),
		)
	}

	for _, tr := range s.Tracks {
		errs = append(errs,
			c.Rectangle(tr.Box.Rect(), Green, lineThickness),
			c.PutText(TrackLabel(tr), image.Pt(tr.Box.X1, tr.Box.Y1-10), trackTextScale, Green, textThickness),
		)
	}

	errs = append(errs,
		c.PutText(fmt.Sprintf("Total People: %d", s.TotalCount), image.Pt(10, 30), headerScale, Green, textThickness),
		c.PutText(fmt.Sprintf("Entry Count: %d", s.EntryCount), image.Pt(10, 60), headerScale, Red, textThickness),
	)

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to annotate frame: %w", err)
	}
	return nil
}

// TrackLabel is the text drawn above a track's box. An identifier without a
// measured speed shows "0"; a measured speed always carries a decimal point,
// so a standstill reads "0.0" and 5 km/h reads "5.0".
func TrackLabel(tr counting.TrackRecord) string {
	return fmt.Sprintf("ID: %d, Speed: %s km/h", tr.ID, formatSpeed(tr))
}

func formatSpeed(tr counting.TrackRecord) string {
	if !tr.Measured {
		return "0"
	}
	s := strconv.FormatFloat(tr.Speed, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
