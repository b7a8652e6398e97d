package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/aide/internal/application"
	"github.com/ericfisherdev/aide/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// JobStatusResponse is the JSON representation of one registered job.
type JobStatusResponse struct {
	Name      string `json:"name"`
	Trigger   string `json:"trigger"`
	NextRunAt string `json:"next_run_at,omitempty"`
	InFlight  bool   `json:"in_flight"`
}

// SchedulerStatusResponse is the JSON representation of the scheduler state.
type SchedulerStatusResponse struct {
	Running bool                `json:"running"`
	Jobs    []JobStatusResponse `json:"jobs"`
}

// RunResponse is the JSON representation of a job run record.
type RunResponse struct {
	ID         string `json:"id"`
	JobName    string `json:"job_name"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
	Outcome    string `json:"outcome,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

// AuthStatusResponse is the JSON representation of a principal's
// credential state.
type AuthStatusResponse struct {
	PrincipalID string `json:"principal_id"`
	Connected   bool   `json:"connected"`
	ExpiresAt   string `json:"expires_at,omitempty"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// toSchedulerStatusResponse converts a scheduler status snapshot to its
// JSON representation.
func toSchedulerStatusResponse(status application.SchedulerStatus) SchedulerStatusResponse {
	jobs := make([]JobStatusResponse, 0, len(status.Jobs))
	for _, j := range status.Jobs {
		out := JobStatusResponse{
			Name:     j.Name,
			Trigger:  j.Trigger,
			InFlight: j.InFlight,
		}
		if !j.NextRunAt.IsZero() {
			out.NextRunAt = j.NextRunAt.UTC().Format(time.RFC3339)
		}
		jobs = append(jobs, out)
	}
	return SchedulerStatusResponse{Running: status.Running, Jobs: jobs}
}

// toRunResponse converts a domain JobRun to its JSON representation.
func toRunResponse(run model.JobRun) RunResponse {
	out := RunResponse{
		ID:        run.ID,
		JobName:   run.JobName,
		StartedAt: run.StartedAt.UTC().Format(time.RFC3339),
		Outcome:   string(run.Outcome),
		Detail:    run.Detail,
	}
	if run.FinishedAt != nil {
		out.FinishedAt = run.FinishedAt.UTC().Format(time.RFC3339)
	}
	return out
}

// toAuthStatusResponse converts an application AuthStatus to its JSON
// representation.
func toAuthStatusResponse(status application.AuthStatus) AuthStatusResponse {
	out := AuthStatusResponse{
		PrincipalID: status.PrincipalID,
		Connected:   status.Connected,
	}
	if !status.ExpiresAt.IsZero() {
		out.ExpiresAt = status.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return out
}
