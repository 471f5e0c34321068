package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/crawld/config"
	"github.com/target/crawld/internal/adapters/jobrunner"
	"github.com/target/crawld/internal/adapters/supervisor"
	"github.com/target/crawld/internal/core"
	"github.com/target/crawld/internal/service"
)

// WorkerConfig contains configuration for the in-process job worker.
type WorkerConfig struct {
	Repo     core.JobRepository
	Queue    core.QueueStateRepository
	Executor *service.Executor
	Logger   *slog.Logger
	Config   config.WorkerConfig
}

// RunWorker starts the job worker loop and blocks until the context is done
// or the worker fails.
func RunWorker(ctx context.Context, cfg WorkerConfig) error {
	runner, err := jobrunner.NewRunner(jobrunner.RunnerOptions{
		Repo:        cfg.Repo,
		Queue:       cfg.Queue,
		Executor:    cfg.Executor,
		Logger:      cfg.Logger,
		Concurrency: cfg.Config.Concurrency,
		IdleWait:    cfg.Config.IdleWait,
		PauseWait:   cfg.Config.PauseWait,
	})
	if err != nil {
		return fmt.Errorf("create job runner: %w", err)
	}

	if runErr := runner.Run(ctx); runErr != nil {
		return fmt.Errorf("run job runner: %w", runErr)
	}
	return nil
}

// SupervisorRunConfig contains configuration for the worker pool supervisor.
type SupervisorRunConfig struct {
	Logger *slog.Logger
	Config config.SupervisorConfig
}

// RunSupervisor starts the worker process pool and blocks until the context
// is done.
func RunSupervisor(ctx context.Context, cfg SupervisorRunConfig) error {
	sup, err := supervisor.New(supervisor.Options{
		Count:        cfg.Config.PoolSize,
		RestartDelay: cfg.Config.RestartDelay,
		Logger:       cfg.Logger,
	})
	if err != nil {
		return fmt.Errorf("create supervisor: %w", err)
	}

	if runErr := sup.Run(ctx); runErr != nil {
		return fmt.Errorf("run supervisor: %w", runErr)
	}
	return nil
}

// CleanerRunConfig contains configuration for the periodic retention sweep.
type CleanerRunConfig struct {
	Cleaner  *service.CleanerService
	Logger   *slog.Logger
	Interval time.Duration
}

// RunCleanerLoop sweeps old completed jobs on a fixed interval until the
// context is done. The first sweep runs immediately.
func RunCleanerLoop(ctx context.Context, cfg CleanerRunConfig) error {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := cfg.Cleaner.CleanCompleted(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if cfg.Logger != nil {
				cfg.Logger.ErrorContext(ctx, "retention sweep failed", "error", err)
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
