package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/crawld/internal/core"
	"github.com/target/crawld/internal/domain/model"
)

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Repo   core.JobRepository         // Required: job repository
	Queue  core.QueueStateRepository  // Required: cross-process queue state
	Logger *slog.Logger               // Optional: structured logger
}

// JobService provides business logic for job submission, status polling, and
// queue-wide dispatch control. Mutual exclusion over individual jobs lives in
// the repository; this layer validates input and sequences operations.
type JobService struct {
	repo   core.JobRepository
	queue  core.QueueStateRepository
	logger *slog.Logger
}

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Queue == nil {
		return nil, errors.New("QueueStateRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "job_service")
	}

	return &JobService{
		repo:   opts.Repo,
		queue:  opts.Queue,
		logger: logger,
	}, nil
}

// MustNewJobService constructs a new JobService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewJobService(opts JobServiceOptions) *JobService {
	svc, err := NewJobService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create JobService: %v", err))
	}
	return svc
}

// Enqueue validates the request and submits a new waiting job.
func (s *JobService) Enqueue(ctx context.Context, req *model.EnqueueRequest) (*model.Job, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validate enqueue request: %w", err)
	}

	job, err := s.repo.Enqueue(ctx, req.Payload())
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "job enqueued",
			"id", job.ID,
			"mode", job.Payload.Mode,
			"team_id", job.Payload.TeamID,
		)
	}

	return job, nil
}

// GetByID returns a job by its ID.
func (s *JobService) GetByID(ctx context.Context, id string) (*model.Job, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get job by id %s: %w", id, err)
	}
	return job, nil
}

// GetStatus returns the client-facing status view of a job. Progress is only
// present while the job is active; result only once it is terminal.
func (s *JobService) GetStatus(ctx context.Context, id string) (*model.JobStatusResponse, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}

	return &model.JobStatusResponse{
		State:    job.State,
		Progress: job.Progress,
		Result:   job.Result,
	}, nil
}

// Stats returns job counts by lifecycle state.
func (s *JobService) Stats(ctx context.Context) (*model.JobStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("get job stats: %w", err)
	}
	return stats, nil
}

// Pause stops dispatching new jobs across all worker processes. In-flight
// jobs are unaffected.
func (s *JobService) Pause(ctx context.Context) error {
	if err := s.queue.Pause(ctx); err != nil {
		return fmt.Errorf("pause queue: %w", err)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "queue paused")
	}
	return nil
}

// Resume re-enables job dispatch across all worker processes.
func (s *JobService) Resume(ctx context.Context) error {
	if err := s.queue.Resume(ctx); err != nil {
		return fmt.Errorf("resume queue: %w", err)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "queue resumed")
	}
	return nil
}

// IsPaused reports whether job dispatch is currently paused.
func (s *JobService) IsPaused(ctx context.Context) (bool, error) {
	paused, err := s.queue.IsPaused(ctx)
	if err != nil {
		return false, fmt.Errorf("check queue pause state: %w", err)
	}
	return paused, nil
}
