package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peoplecounter/internal/counting"
)

type op struct {
	kind  string
	a, b  image.Point
	text  string
	color color.RGBA
}

type recordingCanvas struct {
	size image.Point
	ops  []op
	fail error
}

func (c *recordingCanvas) Size() image.Point { return c.size }

func (c *recordingCanvas) Line(pt1, pt2 image.Point, col color.RGBA, thickness int) error {
	c.ops = append(c.ops, op{kind: "line", a: pt1, b: pt2, color: col})
	return c.fail
}

func (c *recordingCanvas) Rectangle(r image.Rectangle, col color.RGBA, thickness int) error {
	c.ops = append(c.ops, op{kind: "rect", a: r.Min, b: r.Max, color: col})
	return c.fail
}

func (c *recordingCanvas) PutText(text string, org image.Point, scale float64, col color.RGBA, thickness int) error {
	c.ops = append(c.ops, op{kind: "text", a: org, text: text, color: col})
	return c.fail
}

func testScene() Scene {
	return Scene{
		Line:    counting.EntryLineAt(192, 480),
		HasLine: true,
		Tracks: []counting.TrackRecord{
			{ID: 1, Box: counting.Box{X1: 10, Y1: 40, X2: 60, Y2: 140}, Speed: 28.08, Measured: true},
			{ID: 2, Box: counting.Box{X1: 300, Y1: 50, X2: 350, Y2: 160}},
		},
		TotalCount: 2,
		EntryCount: 1,
	}
}

func TestAnnotate_DrawsEverything(t *testing.T) {
	c := &recordingCanvas{size: image.Pt(640, 480)}

	require.NoError(t, Annotate(c, testScene()))

	require.Len(t, c.ops, 8)
	assert.Equal(t, op{kind: "line", a: image.Pt(192, 0), b: image.Pt(192, 480), color: Red}, c.ops[0])
	assert.Equal(t, "Entry", c.ops[1].text)
	assert.Equal(t, image.Pt(202, 30), c.ops[1].a)

	assert.Equal(t, "rect", c.ops[2].kind)
	assert.Equal(t, "ID: 1, Speed: 28.08 km/h", c.ops[3].text)
	assert.Equal(t, image.Pt(10, 30), c.ops[3].a)
	assert.Equal(t, "ID: 2, Speed: 0 km/h", c.ops[5].text)

	assert.Equal(t, "Total People: 2", c.ops[6].text)
	assert.Equal(t, image.Pt(10, 30), c.ops[6].a)
	assert.Equal(t, "Entry Count: 1", c.ops[7].text)
	assert.Equal(t, image.Pt(10, 60), c.ops[7].a)
}

func TestAnnotate_Idempotent(t *testing.T) {
	scene := testScene()
	first := &recordingCanvas{}
	second := &recordingCanvas{}

	require.NoError(t, Annotate(first, scene))
	require.NoError(t, Annotate(second, scene))

	assert.Equal(t, first.ops, second.ops)
	assert.Equal(t, testScene(), scene)
}

func TestAnnotate_NoLineYet(t *testing.T) {
	c := &recordingCanvas{}

	require.NoError(t, Annotate(c, Scene{}))

	require.Len(t, c.ops, 2)
	assert.Equal(t, "Total People: 0", c.ops[0].text)
	assert.Equal(t, "Entry Count: 0", c.ops[1].text)
}

func TestAnnotate_ReportsCanvasErrors(t *testing.T) {
	c := &recordingCanvas{fail: errors.New("closed mat")}

	err := Annotate(c, testScene())

	require.Error(t, err)
	assert.ErrorContains(t, err, "closed mat")
	// a failing primitive does not stop the rest of the drawing
	assert.Len(t, c.ops, 8)
}

func TestTrackLabel(t *testing.T) {
	tests := []struct {
		speed    float64
		measured bool
		want     string
	}{
		{0, false, "0"},
		{0, true, "0.0"},
		{5, true, "5.0"},
		{140, true, "140.0"},
		{12.5, true, "12.5"},
		{28.08, true, "28.08"},
	}
	for _, tt := range tests {
		label := TrackLabel(counting.TrackRecord{ID: 3, Speed: tt.speed, Measured: tt.measured})
		assert.Equal(t, fmt.Sprintf("ID: 3, Speed: %s km/h", tt.want), label)
	}
}
