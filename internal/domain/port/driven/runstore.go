package driven

import (
	"context"
	"time"

	"github.com/ericfisherdev/aide/internal/domain/model"
)

// RunStore is the driven port for job run records. Runs are append-only
// observability artifacts keyed by (job_name, started_at).
type RunStore interface {
	// Begin records the start of an execution attempt. FinishedAt and
	// Outcome on the given run are ignored.
	Begin(ctx context.Context, run model.JobRun) error

	// Finish finalizes a run with its outcome and diagnostic detail.
	Finish(ctx context.Context, runID string, finishedAt time.Time, outcome model.RunOutcome, detail string) error

	// ListRecent returns up to limit runs, newest first.
	ListRecent(ctx context.Context, limit int) ([]model.JobRun, error)
}
