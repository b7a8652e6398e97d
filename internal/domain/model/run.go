package model

import "time"

// RunOutcome classifies one execution attempt of a scheduled job.
type RunOutcome string

const (
	// RunSuccess means the operation completed all of its work.
	RunSuccess RunOutcome = "success"
	// RunPartial means some items were processed before a collaborator
	// failed; completed side effects are not rolled back.
	RunPartial RunOutcome = "partial"
	// RunFailure means the operation produced no useful work.
	RunFailure RunOutcome = "failure"
)

// JobRun is the observability record of a single execution attempt.
// It is retained for operator inspection only; no component branches on
// historical runs.
type JobRun struct {
	ID         string
	JobName    string
	StartedAt  time.Time
	FinishedAt *time.Time // nil while the execution is still in flight
	Outcome    RunOutcome // empty while the execution is still in flight
	Detail     string
}

// Finished reports whether the run has been finalized.
func (r JobRun) Finished() bool {
	return r.FinishedAt != nil
}
