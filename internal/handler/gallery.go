package handler

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"peoplecounter/internal/config"
	"peoplecounter/internal/dto"
	"peoplecounter/internal/logger"
	"peoplecounter/internal/model"
	"peoplecounter/internal/repository"
)

// PreviewRemover deletes stored previews.
type PreviewRemover interface {
	Remove(jobID string) error
}

// JobsHandler returns a page of job history, newest first.
func JobsHandler(repo repository.JobRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), 24)

		filter := &dto.JobFilter{
			Status: q.Get("status"),
			Limit:  limit,
			Offset: (page - 1) * limit,
		}

		jobs, err := repo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying jobs from database: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		totalCount, err := repo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting jobs: %v", err)
			totalCount = len(jobs)
		}

		infos := make([]dto.JobInfo, 0, len(jobs))
		for _, j := range jobs {
			infos = append(infos, dto.NewJobInfo(j))
		}

		writeJSON(w, http.StatusOK, dto.JobList{
			Jobs:        infos,
			Length:      totalCount,
			TotalPages:  (totalCount + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		})
	}
}

// JobHandler returns one job by id.
func JobHandler(repo repository.JobRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := repo.GetByID(r.PathValue("id"))
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Job not found")
			return
		}
		if err != nil {
			logger.Error("Error getting job: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		writeJSON(w, http.StatusOK, dto.NewJobInfo(*job))
	}
}

// DeleteJobHandler removes a finished job with its output video and preview.
func DeleteJobHandler(repo repository.JobRepository, previews PreviewRemover, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		job, err := repo.GetByID(id)
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Job not found")
			return
		}
		if err != nil {
			logger.Error("Error getting job: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		if job.Status == model.StatusProcessing {
			writeError(w, http.StatusConflict, "Job is still processing")
			return
		}

		outputPath := filepath.Join(cfg.OutputDir, filepath.Base(job.OutputName))
		if err := os.Remove(outputPath); err != nil && !os.IsNotExist(err) {
			logger.Error("Error deleting output %s: %v", outputPath, err)
			writeError(w, http.StatusInternalServerError, "Error deleting output")
			return
		}
		if previews != nil {
			previews.Remove(id)
		}
		if err := repo.Delete(id); err != nil {
			logger.Error("Error deleting job %s from database: %v", id, err)
			writeError(w, http.StatusInternalServerError, "Error deleting job")
			return
		}

		logger.Info("Deleted job %s (%s)", id, job.OutputName)
		w.WriteHeader(http.StatusNoContent)
	}
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}
