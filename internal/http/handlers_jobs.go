// Package httpx provides the HTTP surface for the crawld job system: job
// submission and status polling plus the secret-gated admin endpoints.
package httpx

import (
	"errors"
	"net/http"

	apperrors "github.com/target/crawld/internal/errors"

	"github.com/target/crawld/internal/data"
	"github.com/target/crawld/internal/domain/model"
	"github.com/target/crawld/internal/service"
)

// JobHandlers provides HTTP handlers for job submission and status polling.
type JobHandlers struct {
	Svc *service.JobService
}

// CreateJob handles HTTP requests to submit a new crawl job.
func (h *JobHandlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req model.EnqueueRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	job, err := h.Svc.Enqueue(r.Context(), &req)
	if err != nil {
		if apperrors.IsConflict(err) {
			WriteError(w, http.StatusConflict, "duplicate_job", err)
			return
		}
		WriteError(w, http.StatusBadRequest, "enqueue_failed", err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"jobId": job.ID})
}

// JobStatus handles HTTP requests to poll a job's state, progress, and result.
func (h *JobHandlers) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "invalid_path", errors.New("job id is required"))
		return
	}

	status, err := h.Svc.GetStatus(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, data.ErrJobNotFound) || apperrors.IsNotFound(err) {
			WriteError(w, http.StatusNotFound, "not_found", err)
			return
		}
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, status)
}
