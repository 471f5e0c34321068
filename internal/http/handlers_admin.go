package httpx

import (
	"net/http"

	"github.com/target/crawld/internal/service"
)

// AdminHandlers provides the operator-facing queue management endpoints.
// The health checks deliberately report "busy" with a 500 status: external
// monitors treat any in-flight or queued work as unhealthy. Callers depend on
// these exact semantics.
type AdminHandlers struct {
	Jobs         *service.JobService
	Recovery     *service.RecoveryService
	Monitor      *service.MonitorService
	Cleaner      *service.CleanerService
	IsProduction bool
}

// Queues reports the active-job count, 200 only when it is zero.
func (h *AdminHandlers) Queues(w http.ResponseWriter, r *http.Request) {
	active, err := h.Monitor.ActiveCount(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "count_failed", err)
		return
	}

	code := http.StatusOK
	status := "ok"
	if active > 0 {
		code = http.StatusInternalServerError
		status = "busy"
	}
	WriteJSON(w, code, map[string]any{"status": status, "active": active})
}

// Shutdown pauses job dispatch without touching in-flight jobs.
func (h *AdminHandlers) Shutdown(w http.ResponseWriter, r *http.Request) {
	if err := h.Jobs.Pause(r.Context()); err != nil {
		WriteError(w, http.StatusInternalServerError, "pause_failed", err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"paused": true})
}

// Unpause reclaims and requeues whatever was active at pause time, then
// resumes dispatch.
func (h *AdminHandlers) Unpause(w http.ResponseWriter, r *http.Request) {
	requeued, err := h.Recovery.ReclaimAndRequeue(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "reclaim_failed", err)
		return
	}
	if err := h.Jobs.Resume(r.Context()); err != nil {
		WriteError(w, http.StatusInternalServerError, "resume_failed", err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"resumed": true, "requeued": requeued})
}

// ServerHealthCheck reports the waiting-job count, 200 only when it is zero.
func (h *AdminHandlers) ServerHealthCheck(w http.ResponseWriter, r *http.Request) {
	waiting, err := h.Monitor.WaitingCount(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "count_failed", err)
		return
	}

	code := http.StatusOK
	status := "ok"
	if waiting > 0 {
		code = http.StatusInternalServerError
		status = "busy"
	}
	WriteJSON(w, code, map[string]any{"status": status, "waiting": waiting})
}

// ServerHealthCheckNotify arms the deferred one-shot backlog check and
// responds immediately, without blocking on the re-check.
func (h *AdminHandlers) ServerHealthCheckNotify(w http.ResponseWriter, r *http.Request) {
	armed, err := h.Monitor.ArmDeferredCheck(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "notify_failed", err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"checkInitiated": true, "armed": armed})
}

// CheckQueues runs the backlog rule evaluation on demand.
func (h *AdminHandlers) CheckQueues(w http.ResponseWriter, r *http.Request) {
	report, err := h.Monitor.CheckQueues(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "check_failed", err)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

// CleanOldJobs deletes completed jobs older than the retention window and
// reports how many were removed.
func (h *AdminHandlers) CleanOldJobs(w http.ResponseWriter, r *http.Request) {
	removed, err := h.Cleaner.CleanCompleted(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "clean_failed", err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

// IsProductionFlag reports the process-wide production flag set at startup.
func (h *AdminHandlers) IsProductionFlag(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"isProduction": h.IsProduction})
}
