package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"peoplecounter/internal/config"
	"peoplecounter/internal/dto"
	"peoplecounter/internal/logger"
	"peoplecounter/internal/service/job"
	"peoplecounter/internal/session"
)

// JobController is the job control and session query surface.
type JobController interface {
	Start(inputPath, outputPath string) (*session.Session, error)
	Active() bool
	Cancel() bool
	Snapshot() session.Snapshot
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeFilename reduces name to a safe base name. It returns "" when
// nothing usable is left.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.TrimLeft(name, "._")
	if name == "" || name == "/" {
		return ""
	}
	return name
}

// UploadHandler stores the uploaded video and starts a job on it.
func UploadHandler(jobs JobController, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		if jobs.Active() {
			writeError(w, http.StatusConflict, job.ErrJobActive.Error())
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadMB<<20)
		file, header, err := r.FormFile("file")
		if errors.Is(err, http.ErrMissingFile) {
			writeError(w, http.StatusBadRequest, "No file uploaded")
			return
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid upload: %v", err))
			return
		}
		defer file.Close()

		filename := SanitizeFilename(header.Filename)
		if filename == "" {
			writeError(w, http.StatusBadRequest, "No selected file")
			return
		}

		timestamp := time.Now().Unix()
		inputPath := filepath.Join(cfg.UploadDir, fmt.Sprintf("%d_%s", timestamp, filename))
		outputName := "processed_" + filename
		outputPath := filepath.Join(cfg.OutputDir, outputName)

		if err := saveUpload(file, inputPath); err != nil {
			logger.Error("Failed to save upload %s: %v", filename, err)
			writeError(w, http.StatusInternalServerError, "failed to save upload")
			return
		}

		sess, err := jobs.Start(inputPath, outputPath)
		if err != nil {
			os.Remove(inputPath)
			if errors.Is(err, job.ErrJobActive) {
				writeError(w, http.StatusConflict, err.Error())
				return
			}
			logger.Error("Failed to start job for %s: %v", filename, err)
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, dto.UploadResponse{
			Status:    "processing",
			Output:    outputName,
			JobID:     sess.ID(),
			Timestamp: timestamp,
		})
	}
}

func saveUpload(src io.Reader, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return err
	}
	return dst.Close()
}

// ProgressHandler serves the current session snapshot.
func ProgressHandler(jobs JobController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		writeJSON(w, http.StatusOK, jobs.Snapshot())
	}
}

// CancelHandler stops the active job at the next frame boundary.
func CancelHandler(jobs JobController, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		cancelled := jobs.Cancel()
		if cancelled {
			logger.Info("Job cancelled by client %s", r.RemoteAddr)
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"cancelled": cancelled,
			"progress":  jobs.Snapshot(),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, dto.ErrorResponse{Error: msg})
}
