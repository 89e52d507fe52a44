package storage

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/hybridgroup/mjpeg"

	"peoplecounter/internal/config"
	"peoplecounter/internal/logger"
)

// ErrNoPreview is returned when a job has not published a preview yet.
var ErrNoPreview = errors.New("no preview available")

// PreviewBuffer keeps the latest annotated preview of each job on disk and
// fans the newest one out to MJPEG viewers.
type PreviewBuffer struct {
	dir    string
	stream *mjpeg.Stream
	latest []byte
	mu     sync.RWMutex
	logger *logger.Logger
}

// NewPreviewBuffer creates a buffer writing into the configured preview directory.
func NewPreviewBuffer(config *config.Config, logger *logger.Logger) (*PreviewBuffer, error) {
	if err := os.MkdirAll(config.PreviewDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create preview directory: %w", err)
	}
	return &PreviewBuffer{
		dir:    config.PreviewDir,
		stream: mjpeg.NewStream(),
		logger: logger,
	}, nil
}

// Path is the preview file of jobID.
func (s *PreviewBuffer) Path(jobID string) string {
	return filepath.Join(s.dir, fmt.Sprintf("preview_%s.jpg", filepath.Base(jobID)))
}

// Save replaces the preview of jobID. The file is swapped atomically so
// readers never see a partial image.
func (s *PreviewBuffer) Save(jobID string, jpeg []byte) error {
	path := s.Path(jobID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, jpeg, 0644); err != nil {
		return fmt.Errorf("failed to write preview: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace preview: %w", err)
	}

	s.mu.Lock()
	s.latest = jpeg
	s.mu.Unlock()

	s.stream.UpdateJPEG(jpeg)
	return nil
}

// Load returns the stored preview of jobID or ErrNoPreview.
func (s *PreviewBuffer) Load(jobID string) ([]byte, error) {
	data, err := os.ReadFile(s.Path(jobID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoPreview
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read preview: %w", err)
	}
	return data, nil
}

// Latest is the most recently saved preview of any job.
func (s *PreviewBuffer) Latest() ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.latest != nil
}

// Remove deletes the preview of jobID. A missing file is not an error.
func (s *PreviewBuffer) Remove(jobID string) error {
	err := os.Remove(s.Path(jobID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warning("Error removing preview for job %s: %v", jobID, err)
		return err
	}
	return nil
}

// Stream serves the live MJPEG stream.
func (s *PreviewBuffer) Stream() http.Handler {
	return s.stream
}
