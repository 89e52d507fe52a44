package handler

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"peoplecounter/internal/config"
	"peoplecounter/internal/logger"
	"peoplecounter/internal/service/storage"
)

// PreviewLoader reads the stored preview of a job.
type PreviewLoader interface {
	Load(jobID string) ([]byte, error)
}

// PreviewHandler serves the latest preview of a job, or placeholder when
// the job has not produced one yet.
func PreviewHandler(previews PreviewLoader, placeholder []byte, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := previews.Load(r.PathValue("job"))
		if err != nil {
			if !errors.Is(err, storage.ErrNoPreview) {
				logger.Warning("Error reading preview: %v", err)
			}
			data = placeholder
		}

		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(data)
	}
}

// LatestPreviewHandler serves the newest preview of any job, or placeholder.
func LatestPreviewHandler(previews interface{ Latest() ([]byte, bool) }, placeholder []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, ok := previews.Latest()
		if !ok {
			data = placeholder
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(data)
	}
}

// DownloadHandler serves a processed video as an attachment.
func DownloadHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Base(r.PathValue("filename"))
		if name == "." || name == "/" || name == ".." {
			writeError(w, http.StatusNotFound, "File not found")
			return
		}

		path := filepath.Join(cfg.OutputDir, name)
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			writeError(w, http.StatusNotFound, "File not found")
			return
		}

		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
		http.ServeFile(w, r, path)
	}
}
