package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/aide/internal/domain/model"
	"github.com/ericfisherdev/aide/internal/domain/port/driven"
)

var (
	// ErrJobBusy is returned when a manual trigger targets a job that is
	// already executing.
	ErrJobBusy = errors.New("job already running")

	// ErrUnknownJob is returned when a manual trigger names a job that is
	// not registered.
	ErrUnknownJob = errors.New("unknown job")

	// ErrNotRunning is returned when a manual trigger arrives while the
	// scheduler is stopped.
	ErrNotRunning = errors.New("scheduler not running")
)

const defaultTick = time.Second

// JobStatus is a snapshot of one registered job.
type JobStatus struct {
	Name      string
	Trigger   string
	NextRunAt time.Time
	InFlight  bool
}

// SchedulerStatus is a snapshot of the scheduler and all registered jobs.
type SchedulerStatus struct {
	Running bool
	Jobs    []JobStatus
}

// Scheduler drives registered jobs from a single loop. Each due job runs
// on its own goroutine; a job never overlaps itself, but distinct jobs
// run concurrently. Every execution is persisted as a run record.
type Scheduler struct {
	registry    *Registry
	runs        driven.RunStore
	principalID string
	clock       Clock
	tick        time.Duration
	logger      *slog.Logger

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	inFlight map[string]bool
	nextRun  map[string]time.Time

	wg sync.WaitGroup
}

// NewScheduler creates a stopped Scheduler over the given registry.
func NewScheduler(registry *Registry, runs driven.RunStore, principalID string, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		registry:    registry,
		runs:        runs,
		principalID: principalID,
		clock:       SystemClock{},
		tick:        defaultTick,
		logger:      logger,
		inFlight:    make(map[string]bool),
		nextRun:     make(map[string]time.Time),
	}
}

// SetTick overrides the loop tick interval. Call before Start.
func (s *Scheduler) SetTick(tick time.Duration) {
	s.tick = tick
}

// Start begins the scheduling loop. Calling Start on a running scheduler
// is a no-op. Fire times for all registered jobs are computed from the
// moment of the call, so nothing fires immediately on startup.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	now := s.clock.Now()
	for _, job := range s.registry.List() {
		s.nextRun[job.Name] = job.Trigger.NextAfter(now)
	}

	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.loop(ctx, s.stopCh, s.doneCh)

	s.logger.Info("scheduler started", "jobs", len(s.registry.List()), "tick", s.tick)
}

// Stop halts the loop and returns once it has acknowledged the stop.
// Executions already in flight continue to completion and still finalize
// their run records; Wait blocks until they drain. Stopping a stopped
// scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	// Flip to stopped before releasing the lock so a concurrent Stop takes
	// the no-op branch above instead of closing stopCh a second time.
	s.running = false
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)
	<-doneCh

	s.logger.Info("scheduler stopped")
}

// Wait blocks until all in-flight executions have finished. Call after
// Stop during shutdown.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// RunNow triggers a single immediate execution of the named job, outside
// its schedule. The job's next scheduled fire time is unaffected.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	job, ok := s.registry.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	if s.inFlight[name] {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobBusy, name)
	}
	s.inFlight[name] = true
	s.mu.Unlock()

	s.dispatch(ctx, job)
	return nil
}

// Status reports the scheduler state and a per-job snapshot.
func (s *Scheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := s.registry.List()
	out := SchedulerStatus{Running: s.running, Jobs: make([]JobStatus, 0, len(jobs))}
	for _, job := range jobs {
		out.Jobs = append(out.Jobs, JobStatus{
			Name:      job.Name,
			Trigger:   job.Trigger.Describe(),
			NextRunAt: s.nextRun[job.Name],
			InFlight:  s.inFlight[job.Name],
		})
	}
	return out
}

func (s *Scheduler) loop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fireDue(ctx)
		}
	}
}

// fireDue dispatches every job whose fire time has arrived and is not
// already executing. A due job that is still in flight is skipped and its
// next fire time advanced, so a slow run swallows the overlapping slot
// rather than queueing behind itself.
func (s *Scheduler) fireDue(ctx context.Context) {
	now := s.clock.Now()

	s.mu.Lock()
	var due []Job
	for _, job := range s.registry.List() {
		next, ok := s.nextRun[job.Name]
		if !ok {
			next = job.Trigger.NextAfter(now)
			s.nextRun[job.Name] = next
		}
		if next.After(now) {
			continue
		}
		s.nextRun[job.Name] = job.Trigger.NextAfter(now)
		if s.inFlight[job.Name] {
			s.logger.Warn("job still running, skipping slot", "job", job.Name)
			continue
		}
		s.inFlight[job.Name] = true
		due = append(due, job)
	}
	s.mu.Unlock()

	for _, job := range due {
		s.dispatch(ctx, job)
	}
}

// dispatch runs one execution on its own goroutine. The caller must have
// already marked the job in flight. The execution is detached from the
// caller's cancellation: shutdown drains work through Stop and Wait, so a
// canceled Start or request context must not abort the operation mid-run
// or prevent its run record from finalizing.
func (s *Scheduler) dispatch(ctx context.Context, job Job) {
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.inFlight, job.Name)
			s.mu.Unlock()
		}()
		s.execute(ctx, job)
	}()
}

func (s *Scheduler) execute(ctx context.Context, job Job) {
	runID := uuid.New().String()
	startedAt := s.clock.Now()

	if err := s.runs.Begin(ctx, model.JobRun{ID: runID, JobName: job.Name, StartedAt: startedAt}); err != nil {
		s.logger.Error("failed to record run start", "job", job.Name, "run_id", runID, "error", err)
	}

	s.logger.Info("job started", "job", job.Name, "run_id", runID)

	result := s.safeRun(ctx, job)

	finishedAt := s.clock.Now()
	if err := s.runs.Finish(ctx, runID, finishedAt, result.Outcome, result.Detail); err != nil {
		s.logger.Error("failed to record run finish", "job", job.Name, "run_id", runID, "error", err)
	}

	s.logger.Info("job finished",
		"job", job.Name,
		"run_id", runID,
		"outcome", string(result.Outcome),
		"detail", result.Detail,
		"duration", finishedAt.Sub(startedAt),
	)
}

// safeRun executes the operation, converting a panic into a failure
// result so one broken job cannot take down the process.
func (s *Scheduler) safeRun(ctx context.Context, job Job) (result RunResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panicked", "job", job.Name, "panic", r)
			result = RunResult{Outcome: model.RunFailure, Detail: fmt.Sprintf("panic: %v", r)}
		}
	}()
	return job.Op.Run(ctx, s.principalID)
}
