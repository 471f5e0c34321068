package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/crawld/internal/core"
	"github.com/target/crawld/internal/domain/model"
)

// RecoveryServiceOptions groups dependencies for RecoveryService.
type RecoveryServiceOptions struct {
	Repo   core.JobRepository // Required: job repository
	Logger *slog.Logger       // Optional: structured logger
}

// RecoveryService repairs jobs left active by a worker that died without
// completing its terminal transition. It is not safe to run concurrently
// with live dispatch; callers pause the queue first.
type RecoveryService struct {
	repo   core.JobRepository
	logger *slog.Logger
}

// NewRecoveryService constructs a new RecoveryService.
func NewRecoveryService(opts RecoveryServiceOptions) (*RecoveryService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "recovery")
	}

	return &RecoveryService{repo: opts.Repo, logger: logger}, nil
}

// MustNewRecoveryService constructs a new RecoveryService and panics on error.
func MustNewRecoveryService(opts RecoveryServiceOptions) *RecoveryService {
	svc, err := NewRecoveryService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create RecoveryService: %v", err))
	}
	return svc
}

// ReclaimAndRequeue force-releases every active job, marks it failed as
// interrupted, removes the record, and re-submits a fresh waiting job with
// the same payload and the same external id so callers polling by id observe
// continuity. Per-job errors are logged and skipped; they never abort the
// rest of the batch. Returns the number of jobs successfully requeued.
func (s *RecoveryService) ReclaimAndRequeue(ctx context.Context) (int, error) {
	active, err := s.repo.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active jobs: %w", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "reclaiming active jobs", "count", len(active))
	}

	requeued := 0
	for _, job := range active {
		if err := s.reclaimOne(ctx, job); err != nil {
			if s.logger != nil {
				s.logger.WarnContext(ctx, "reclaim failed, skipping job",
					"job_id", job.ID,
					"error", err,
				)
			}
			continue
		}
		requeued++
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "reclaim finished", "requeued", requeued, "active", len(active))
	}
	return requeued, nil
}

func (s *RecoveryService) reclaimOne(ctx context.Context, job *model.Job) error {
	interrupted := model.JobError{
		Kind:    model.FailureInterrupted,
		Message: "job interrupted by worker restart",
	}

	if err := s.repo.ForceRelease(ctx, job.ID, interrupted.MarshalResult()); err != nil {
		return fmt.Errorf("force release: %w", err)
	}
	if err := s.repo.Remove(ctx, job.ID); err != nil {
		return fmt.Errorf("remove: %w", err)
	}
	if _, err := s.repo.Requeue(ctx, core.RequeueParams{ID: job.ID, Payload: job.Payload}); err != nil {
		return fmt.Errorf("requeue: %w", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "job reclaimed and requeued", "job_id", job.ID)
	}
	return nil
}
