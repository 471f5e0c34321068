package httpx

import (
	"crypto/subtle"
	"io"
	"log/slog"
	"net/http"

	"github.com/target/crawld/internal/service"
)

// RouterServices holds the services and configuration the router needs.
type RouterServices struct {
	Jobs     *service.JobService
	Recovery *service.RecoveryService
	Monitor  *service.MonitorService
	Cleaner  *service.CleanerService

	// AdminKey is the shared secret path segment gating the admin surface.
	AdminKey     string
	IsProduction bool
	Logger       *slog.Logger // optional
}

// NewRouter creates and configures the HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	jobHandlers := &JobHandlers{Svc: services.Jobs}
	adminHandlers := &AdminHandlers{
		Jobs:         services.Jobs,
		Recovery:     services.Recovery,
		Monitor:      services.Monitor,
		Cleaner:      services.Cleaner,
		IsProduction: services.IsProduction,
	}

	mux.Handle("POST /v0/jobs", http.HandlerFunc(jobHandlers.CreateJob))
	mux.Handle("GET /v0/jobs/{id}", http.HandlerFunc(jobHandlers.JobStatus))

	registerAdminRoutes(mux, adminHandlers, services.AdminKey)

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	var handler http.Handler = mux
	if services.Logger != nil {
		handler = Logging(services.Logger)(handler)
		handler = Recover(services.Logger)(handler)
	}
	return handler
}

func registerAdminRoutes(mux *http.ServeMux, h *AdminHandlers, adminKey string) {
	admin := func(handler http.HandlerFunc) http.Handler {
		return requireAdminKey(adminKey, handler)
	}

	mux.Handle("GET /admin/{key}/queues", admin(h.Queues))
	mux.Handle("POST /admin/{key}/shutdown", admin(h.Shutdown))
	mux.Handle("POST /admin/{key}/unpause", admin(h.Unpause))
	mux.Handle("GET /admin/{key}/serverHealthCheck", admin(h.ServerHealthCheck))
	mux.Handle("GET /admin/{key}/serverHealthCheck/notify", admin(h.ServerHealthCheckNotify))
	mux.Handle("GET /admin/{key}/check-queues", admin(h.CheckQueues))
	mux.Handle("GET /admin/{key}/clean-before-24h-complete-jobs", admin(h.CleanOldJobs))
	mux.Handle("GET /admin/{key}/is-production", admin(h.IsProductionFlag))
}

// requireAdminKey gates a handler behind the secret path segment. Mismatches
// get a plain 404 so the admin surface does not advertise itself.
func requireAdminKey(adminKey string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.PathValue("key")
		if adminKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(adminKey)) != 1 {
			http.NotFound(w, r)
			return
		}
		next(w, r)
	})
}

const healthResponse = `{"status":"ok"}`

// healthHandler returns a simple 200 OK status for readiness/liveness checks.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.WriteString(w, healthResponse); err != nil {
		// Nothing more to do if the client connection is gone.
		return
	}
}
