// Package video reads, writes and previews frames with OpenCV.
package video

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"peoplecounter/internal/pipeline"
)

var errNotMatFrame = errors.New("frame is not backed by a gocv.Mat")

// MatFrame is a decoded BGR frame. It owns its Mat.
type MatFrame struct {
	mat gocv.Mat
}

// NewMatFrame wraps mat. The frame takes ownership.
func NewMatFrame(mat gocv.Mat) *MatFrame {
	return &MatFrame{mat: mat}
}

// Mat exposes the underlying matrix for detectors and encoders.
func (f *MatFrame) Mat() gocv.Mat {
	return f.mat
}

func (f *MatFrame) Size() image.Point {
	return image.Pt(f.mat.Cols(), f.mat.Rows())
}

func (f *MatFrame) Line(pt1, pt2 image.Point, c color.RGBA, thickness int) error {
	if err := gocv.Line(&f.mat, pt1, pt2, c, thickness); err != nil {
		return fmt.Errorf("failed to draw line: %v", err)
	}
	return nil
}

func (f *MatFrame) Rectangle(r image.Rectangle, c color.RGBA, thickness int) error {
	if err := gocv.Rectangle(&f.mat, r, c, thickness); err != nil {
		return fmt.Errorf("failed to draw rectangle: %v", err)
	}
	return nil
}

func (f *MatFrame) PutText(text string, org image.Point, scale float64, c color.RGBA, thickness int) error {
	if err := gocv.PutText(&f.mat, text, org, gocv.FontHersheySimplex, scale, c, thickness); err != nil {
		return fmt.Errorf("failed to draw text: %v", err)
	}
	return nil
}

func (f *MatFrame) Close() error {
	return f.mat.Close()
}

// asMat extracts the Mat behind a pipeline frame.
func asMat(f pipeline.Frame) (gocv.Mat, error) {
	mf, ok := f.(interface{ Mat() gocv.Mat })
	if !ok {
		return gocv.Mat{}, errNotMatFrame
	}
	return mf.Mat(), nil
}
