package video

import (
	"errors"
	"fmt"
	"io"

	"gocv.io/x/gocv"

	"peoplecounter/internal/pipeline"
)

// ErrReadFailed is returned when a frame cannot be decoded before the end of
// the stream.
var ErrReadFailed = errors.New("failed to read frame")

// FileSource reads frames from a video file.
type FileSource struct {
	capture *gocv.VideoCapture
	info    pipeline.StreamInfo
	read    int
}

// OpenFile opens path for reading and reads its properties.
func OpenFile(path string) (*FileSource, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open video %s: %v", path, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("video %s could not be opened", path)
	}

	return &FileSource{
		capture: capture,
		info: pipeline.StreamInfo{
			FPS:        capture.Get(gocv.VideoCaptureFPS),
			FrameCount: int(capture.Get(gocv.VideoCaptureFrameCount)),
			Width:      int(capture.Get(gocv.VideoCaptureFrameWidth)),
			Height:     int(capture.Get(gocv.VideoCaptureFrameHeight)),
		},
	}, nil
}

func (s *FileSource) Info() pipeline.StreamInfo {
	return s.info
}

// Read returns the next frame, io.EOF at the end of the stream, or an error
// wrapping ErrReadFailed when decoding fails earlier than the reported frame
// count.
func (s *FileSource) Read() (pipeline.Frame, error) {
	mat := gocv.NewMat()
	if ok := s.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		if s.exhausted() {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: frame %d of %d", ErrReadFailed, s.read+1, s.info.FrameCount)
	}
	s.read++
	return NewMatFrame(mat), nil
}

// exhausted treats the container frame count as approximate; the last frame
// is often missing.
func (s *FileSource) exhausted() bool {
	return s.info.FrameCount <= 0 || s.read >= s.info.FrameCount-1
}

func (s *FileSource) Close() error {
	return s.capture.Close()
}
