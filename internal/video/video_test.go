package video

import (
	"image"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"peoplecounter/internal/render"
)

type memoryStore struct {
	saved map[string][]byte
}

func (m *memoryStore) Save(jobID string, jpeg []byte) error {
	m.saved[jobID] = jpeg
	return nil
}

func blankFrame(w, h int) *MatFrame {
	return NewMatFrame(gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), h, w, gocv.MatTypeCV8UC3))
}

func TestMatFrame_Annotate(t *testing.T) {
	f := blankFrame(320, 240)
	defer f.Close()

	assert.Equal(t, image.Pt(320, 240), f.Size())

	err := render.Annotate(f, render.Scene{HasLine: true, TotalCount: 1})
	require.NoError(t, err)
	assert.NotZero(t, gocv.CountNonZero(grey(t, f.Mat())))
}

func grey(t *testing.T, m gocv.Mat) gocv.Mat {
	t.Helper()
	g := gocv.NewMat()
	t.Cleanup(func() { g.Close() })
	require.NoError(t, gocv.CvtColor(m, &g, gocv.ColorBGRToGray))
	return g
}

func TestPlaceholderJPEG(t *testing.T) {
	data, err := PlaceholderJPEG()
	require.NoError(t, err)

	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	require.NoError(t, err)
	defer img.Close()

	assert.Equal(t, PlaceholderSize, img.Cols())
	assert.Equal(t, PlaceholderSize, img.Rows())
}

func TestPreview_Publish(t *testing.T) {
	store := &memoryStore{saved: map[string][]byte{}}
	f := blankFrame(64, 48)
	defer f.Close()

	require.NoError(t, NewPreview(store, "job-9").Publish(f))

	require.Contains(t, store.saved, "job-9")
	assert.NotEmpty(t, store.saved["job-9"])
}

func TestSinkAndSource_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.avi")
	sink, err := CreateFile(path, "MJPG", 10, 64, 48)
	if err != nil {
		t.Skipf("video encoder unavailable: %v", err)
	}
	for i := 0; i < 5; i++ {
		f := blankFrame(64, 48)
		require.NoError(t, sink.Write(f))
		f.Close()
	}
	require.NoError(t, sink.Close())

	src, err := OpenFile(path)
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, 64, src.Info().Width)
	assert.Equal(t, 48, src.Info().Height)

	read := 0
	for {
		f, err := src.Read()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		f.Close()
		read++
	}
	assert.GreaterOrEqual(t, read, 4)
}

func TestOpenFile_Missing(t *testing.T) {
	_, err := OpenFile(filepath.Join(t.TempDir(), "missing.mp4"))

	assert.Error(t, err)
}
