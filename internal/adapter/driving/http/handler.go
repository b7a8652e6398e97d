// Package httphandler is the HTTP driving adapter: a small JSON control
// surface over the scheduler, run history, and credential status.
package httphandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ericfisherdev/aide/internal/application"
	"github.com/ericfisherdev/aide/internal/domain/port/driven"
)

const defaultRunsLimit = 50

// AuthService reports credential state for a principal.
type AuthService interface {
	Status(ctx context.Context, principalID string) (*application.AuthStatus, error)
}

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	sched       *application.Scheduler
	runs        driven.RunStore
	auth        AuthService
	db          application.Pinger
	principalID string
	logger      *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	sched *application.Scheduler,
	runs driven.RunStore,
	auth AuthService,
	db application.Pinger,
	principalID string,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		sched:       sched,
		runs:        runs,
		auth:        auth,
		db:          db,
		principalID: principalID,
		logger:      logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/scheduler/status", h.SchedulerStatus)
	mux.HandleFunc("POST /api/v1/scheduler/start", h.StartScheduler)
	mux.HandleFunc("POST /api/v1/scheduler/stop", h.StopScheduler)
	mux.HandleFunc("POST /api/v1/scheduler/jobs/{name}/run", h.RunJob)
	mux.HandleFunc("GET /api/v1/runs", h.ListRuns)
	mux.HandleFunc("GET /api/v1/auth/status", h.AuthStatus)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoverPanics(logger, mux)
	wrapped = logRequests(logger, wrapped)

	return wrapped
}

// SchedulerStatus returns the scheduler state and a per-job snapshot.
func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toSchedulerStatusResponse(h.sched.Status()))
}

// StartScheduler starts the scheduling loop. Starting a running scheduler
// is a no-op and still returns the current status.
func (h *Handler) StartScheduler(w http.ResponseWriter, r *http.Request) {
	h.sched.Start(context.WithoutCancel(r.Context()))
	writeJSON(w, http.StatusOK, toSchedulerStatusResponse(h.sched.Status()))
}

// StopScheduler stops the scheduling loop. In-flight executions drain in
// the background.
func (h *Handler) StopScheduler(w http.ResponseWriter, r *http.Request) {
	h.sched.Stop()
	writeJSON(w, http.StatusOK, toSchedulerStatusResponse(h.sched.Status()))
}

// RunJob triggers one immediate execution of the named job.
func (h *Handler) RunJob(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	err := h.sched.RunNow(context.WithoutCancel(r.Context()), name)
	switch {
	case errors.Is(err, application.ErrUnknownJob):
		writeError(w, http.StatusNotFound, "unknown job: "+name)
	case errors.Is(err, application.ErrJobBusy):
		writeError(w, http.StatusConflict, "job already running: "+name)
	case errors.Is(err, application.ErrNotRunning):
		writeError(w, http.StatusConflict, "scheduler not running")
	case err != nil:
		h.logger.Error("failed to trigger job", "job", name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{"job": name, "status": "started"})
	}
}

// ListRuns returns recent run records, newest first. The limit query
// parameter caps the result; it defaults to 50.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	runs, err := h.runs.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list runs", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]RunResponse, 0, len(runs))
	for _, run := range runs {
		resp = append(resp, toRunResponse(run))
	}
	writeJSON(w, http.StatusOK, resp)
}

// AuthStatus reports whether the configured principal holds a usable
// credential. It never triggers a refresh.
func (h *Handler) AuthStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.auth.Status(r.Context(), h.principalID)
	if err != nil {
		h.logger.Error("failed to load auth status", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toAuthStatusResponse(*status))
}

// Health returns 200 when the database is reachable, 503 otherwise.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC().Format(time.RFC3339)
	if err := h.db.Ping(r.Context()); err != nil {
		h.logger.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Time: now})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Time: now})
}
