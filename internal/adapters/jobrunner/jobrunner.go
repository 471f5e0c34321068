// Package jobrunner pulls waiting jobs from the shared store and drives them
// through the executor. Multiple worker processes run this loop against the
// same store; mutual exclusion is entirely the store's lock primitive.
package jobrunner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/target/crawld/internal/core"
	"github.com/target/crawld/internal/domain/model"
	"github.com/target/crawld/internal/service"
)

// RunnerOptions configures the job runner adapter.
type RunnerOptions struct {
	Repo     core.JobRepository        // Required: job repository
	Queue    core.QueueStateRepository // Required: cross-process pause flag
	Executor *service.Executor         // Required: runs acquired jobs

	Logger      *slog.Logger
	Concurrency int           // worker goroutines; defaults to 1
	IdleWait    time.Duration // cap on notification waits; defaults to 30s
	PauseWait   time.Duration // recheck interval while paused; defaults to 2s
}

// Runner acquires jobs and executes them until its context is cancelled.
type Runner struct {
	repo      core.JobRepository
	queue     core.QueueStateRepository
	executor  *service.Executor
	logger    *slog.Logger
	workers   int
	idleWait  time.Duration
	pauseWait time.Duration
}

// NewRunner constructs a job runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Queue == nil {
		return nil, errors.New("QueueStateRepository is required")
	}
	if opts.Executor == nil {
		return nil, errors.New("Executor is required")
	}

	workers := opts.Concurrency
	if workers <= 0 {
		workers = 1
	}
	idleWait := opts.IdleWait
	if idleWait <= 0 {
		idleWait = 30 * time.Second
	}
	pauseWait := opts.PauseWait
	if pauseWait <= 0 {
		pauseWait = 2 * time.Second
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		repo:      opts.Repo,
		queue:     opts.Queue,
		executor:  opts.Executor,
		logger:    logger.With("component", "job_runner"),
		workers:   workers,
		idleWait:  idleWait,
		pauseWait: pauseWait,
	}, nil
}

// Run starts worker goroutines and processes jobs until the context is
// cancelled. The first fatal store error cancels all workers.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting job runner", "workers", r.workers)

	g, ctx := errgroup.WithContext(ctx)
	for range r.workers {
		g.Go(func() error {
			return r.workerLoop(ctx)
		})
	}
	return g.Wait()
}

func (r *Runner) workerLoop(ctx context.Context) error {
	for ctx.Err() == nil {
		paused, err := r.queue.IsPaused(ctx)
		if err != nil {
			return fmt.Errorf("check pause flag: %w", err)
		}
		if paused {
			if !sleepCtx(ctx, r.pauseWait) {
				return nil
			}
			continue
		}

		job, err := r.repo.AcquireNext(ctx)
		switch {
		case err == nil:
			r.processJob(ctx, job)
		case errors.Is(err, model.ErrNoJobsAvailable):
			if !r.waitForJobs(ctx) {
				return nil
			}
		case errors.Is(err, context.Canceled):
			return nil
		default:
			return fmt.Errorf("acquire next job: %w", err)
		}
	}
	// Cancellation is a normal stop, not a worker failure.
	return nil
}

// waitForJobs blocks until the store signals new work or the idle wait
// elapses. Returns false when the runner should stop.
func (r *Runner) waitForJobs(ctx context.Context) bool {
	waitCtx, cancel := context.WithTimeout(ctx, r.idleWait)
	defer cancel()

	err := r.repo.WaitForNotification(waitCtx)
	switch {
	case ctx.Err() != nil:
		return false
	case err == nil, errors.Is(err, context.DeadlineExceeded):
		return true
	default:
		// A broken listen connection falls back to the idle poll interval.
		r.logger.WarnContext(ctx, "job notification wait failed", "error", err)
		return sleepCtx(ctx, r.idleWait)
	}
}

func (r *Runner) processJob(ctx context.Context, job *model.Job) {
	r.logger.InfoContext(ctx, "processing job", "job_id", job.ID, "mode", job.Payload.Mode)
	if err := r.executor.Execute(ctx, job); err != nil {
		r.logger.ErrorContext(ctx, "job execution error", "job_id", job.ID, "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
