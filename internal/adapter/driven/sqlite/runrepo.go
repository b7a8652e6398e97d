package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ericfisherdev/aide/internal/domain/model"
	"github.com/ericfisherdev/aide/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RunStore = (*RunRepo)(nil)

// RunRepo is the SQLite implementation of the RunStore port.
type RunRepo struct {
	db *DB
}

// NewRunRepo creates a RunRepo backed by the given DB.
func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

// Begin inserts an in-flight run row with no outcome yet.
func (r *RunRepo) Begin(ctx context.Context, run model.JobRun) error {
	const query = `
		INSERT INTO job_runs (id, job_name, started_at, finished_at, outcome, detail)
		VALUES (?, ?, ?, NULL, NULL, '')
	`
	_, err := r.db.Writer.ExecContext(ctx, query, run.ID, run.JobName, formatTime(run.StartedAt))
	if err != nil {
		return fmt.Errorf("begin run %q for job %q: %w", run.ID, run.JobName, err)
	}
	return nil
}

// Finish finalizes a run with its outcome and diagnostic detail.
func (r *RunRepo) Finish(ctx context.Context, runID string, finishedAt time.Time, outcome model.RunOutcome, detail string) error {
	const query = `
		UPDATE job_runs
		SET finished_at = ?, outcome = ?, detail = ?
		WHERE id = ?
	`
	res, err := r.db.Writer.ExecContext(ctx, query, formatTime(finishedAt), string(outcome), detail, runID)
	if err != nil {
		return fmt.Errorf("finish run %q: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %q: no such run", runID)
	}
	return nil
}

// ListRecent returns up to limit runs, newest first. In-flight runs are
// included with a nil FinishedAt and empty Outcome.
func (r *RunRepo) ListRecent(ctx context.Context, limit int) ([]model.JobRun, error) {
	const query = `
		SELECT id, job_name, started_at, finished_at, outcome, detail
		FROM job_runs
		ORDER BY started_at DESC
		LIMIT ?
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []model.JobRun
	for rows.Next() {
		var run model.JobRun
		var startedAt string
		var finishedAt, outcome sql.NullString
		if err := rows.Scan(&run.ID, &run.JobName, &startedAt, &finishedAt, &outcome, &run.Detail); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}

		if run.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, fmt.Errorf("parse started_at for run %q: %w", run.ID, err)
		}
		if finishedAt.Valid {
			t, err := parseTime(finishedAt.String)
			if err != nil {
				return nil, fmt.Errorf("parse finished_at for run %q: %w", run.ID, err)
			}
			run.FinishedAt = &t
		}
		if outcome.Valid {
			run.Outcome = model.RunOutcome(outcome.String)
		}

		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, nil
}
