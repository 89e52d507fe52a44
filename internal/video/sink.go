package video

import (
	"fmt"

	"gocv.io/x/gocv"

	"peoplecounter/internal/pipeline"
)

// FileSink encodes frames into a video file.
type FileSink struct {
	writer *gocv.VideoWriter
	path   string
}

// CreateFile opens path for writing with the given fourcc codec.
func CreateFile(path, codec string, fps float64, width, height int) (*FileSink, error) {
	writer, err := gocv.VideoWriterFile(path, codec, fps, width, height, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create video writer %s: %v", path, err)
	}
	if !writer.IsOpened() {
		writer.Close()
		return nil, fmt.Errorf("video writer %s could not be opened (codec %s)", path, codec)
	}
	return &FileSink{writer: writer, path: path}, nil
}

func (s *FileSink) Write(f pipeline.Frame) error {
	mat, err := asMat(f)
	if err != nil {
		return err
	}
	if err := s.writer.Write(mat); err != nil {
		return fmt.Errorf("failed to write frame to %s: %v", s.path, err)
	}
	return nil
}

// Close finalizes the container. The output is not playable before Close.
func (s *FileSink) Close() error {
	return s.writer.Close()
}
