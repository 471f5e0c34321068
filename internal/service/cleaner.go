package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/crawld/internal/core"
)

const (
	defaultCleanerMaxAge     = 24 * time.Hour
	defaultCleanerBatchSize  = 500
	defaultCleanerMaxBatches = 10
)

// CleanerServiceOptions groups dependencies for CleanerService.
type CleanerServiceOptions struct {
	Repo       core.JobRepository // Required: job repository
	Logger     *slog.Logger       // Optional: structured logger
	MaxAge     time.Duration      // Optional: retention window, default 24h
	BatchSize  int                // Optional: rows per delete batch, default 500
	MaxBatches int                // Optional: batches per sweep, default 10
}

// CleanerService removes completed jobs older than the retention window in
// bounded batches, so a large backlog never turns into one long-running
// delete.
type CleanerService struct {
	repo       core.JobRepository
	logger     *slog.Logger
	maxAge     time.Duration
	batchSize  int
	maxBatches int
}

// NewCleanerService constructs a new CleanerService.
func NewCleanerService(opts CleanerServiceOptions) (*CleanerService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}

	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = defaultCleanerMaxAge
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultCleanerBatchSize
	}
	maxBatches := opts.MaxBatches
	if maxBatches <= 0 {
		maxBatches = defaultCleanerMaxBatches
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "cleaner")
	}

	return &CleanerService{
		repo:       opts.Repo,
		logger:     logger,
		maxAge:     maxAge,
		batchSize:  batchSize,
		maxBatches: maxBatches,
	}, nil
}

// MustNewCleanerService constructs a new CleanerService and panics on error.
func MustNewCleanerService(opts CleanerServiceOptions) *CleanerService {
	svc, err := NewCleanerService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create CleanerService: %v", err))
	}
	return svc
}

// CleanCompleted deletes completed jobs whose finish time is strictly older
// than the retention window, up to MaxBatches batches per call. Returns the
// total number of jobs removed. A short batch ends the sweep early.
func (s *CleanerService) CleanCompleted(ctx context.Context) (int64, error) {
	var total int64
	for batch := 0; batch < s.maxBatches; batch++ {
		deleted, err := s.repo.DeleteOldCompleted(ctx, core.DeleteOldCompletedParams{
			MaxAge:    s.maxAge,
			BatchSize: s.batchSize,
		})
		if err != nil {
			return total, fmt.Errorf("delete old completed jobs: %w", err)
		}
		total += deleted
		if deleted < int64(s.batchSize) {
			break
		}
	}

	if s.logger != nil && total > 0 {
		s.logger.InfoContext(ctx, "completed jobs cleaned", "removed", total, "max_age", s.maxAge)
	}
	return total, nil
}
