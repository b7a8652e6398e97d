package application

import (
	"context"
	"sync"

	"github.com/ericfisherdev/aide/internal/domain/model"
)

// RunResult classifies one finished execution of a task operation.
type RunResult struct {
	Outcome model.RunOutcome
	Detail  string
}

// TaskOp is a unit of scheduled work. Implementations acquire their own
// credential via the token lifecycle manager and classify their own
// result; the scheduler never inspects what they did.
type TaskOp interface {
	Run(ctx context.Context, principalID string) RunResult
}

// TaskOpFunc adapts a function to the TaskOp interface.
type TaskOpFunc func(ctx context.Context, principalID string) RunResult

// Run calls f.
func (f TaskOpFunc) Run(ctx context.Context, principalID string) RunResult {
	return f(ctx, principalID)
}

// Job is a declarative description of one recurring task. The operation
// is resolved at registration and immutable thereafter.
type Job struct {
	Name    string
	Trigger model.Trigger
	Op      TaskOp
}

// Registry holds the set of registered jobs. Pure data: registration and
// lookup only, no scheduling behavior.
type Registry struct {
	mu    sync.RWMutex
	jobs  map[string]Job
	order []string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]Job)}
}

// Register adds a job. Re-registering an existing name replaces the prior
// descriptor in place, keeping its position in the listing order.
func (r *Registry) Register(job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.Name]; !exists {
		r.order = append(r.order, job.Name)
	}
	r.jobs[job.Name] = job
}

// Lookup returns the job with the given name.
func (r *Registry) Lookup(name string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[name]
	return job, ok
}

// List returns all jobs in registration order.
func (r *Registry) List() []Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Job, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.jobs[name])
	}
	return out
}
