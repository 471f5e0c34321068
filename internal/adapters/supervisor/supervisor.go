// Package supervisor forks and maintains the pool of worker processes. Each
// child is a full instance of this binary in worker mode; restart-on-exit is
// the only fault tolerance here, orphaned jobs are repaired separately by the
// recovery path.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
)

// RoleEnvVar selects the service role of a spawned process.
const RoleEnvVar = "CRAWLD_ROLE"

// WorkerRole is the role value injected into child processes.
const WorkerRole = "worker"

// Options configures the worker pool supervisor.
type Options struct {
	Binary       string        // path to the executable; defaults to os.Executable()
	Args         []string      // arguments passed to each child
	Count        int           // pool size; defaults to runtime.NumCPU()
	RestartDelay time.Duration // pause before respawning a dead child; defaults to 1s
	Logger       *slog.Logger
}

// Supervisor keeps a fixed number of worker processes alive.
type Supervisor struct {
	binary       string
	args         []string
	count        int
	restartDelay time.Duration
	logger       *slog.Logger
}

// New constructs a Supervisor.
func New(opts Options) (*Supervisor, error) {
	binary := opts.Binary
	if binary == "" {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve executable: %w", err)
		}
		binary = self
	}

	count := opts.Count
	if count <= 0 {
		count = runtime.NumCPU()
	}
	delay := opts.RestartDelay
	if delay <= 0 {
		delay = time.Second
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Supervisor{
		binary:       binary,
		args:         opts.Args,
		count:        count,
		restartDelay: delay,
		logger:       logger.With("component", "supervisor"),
	}, nil
}

// Run forks the pool and blocks until the context is cancelled. Every slot
// respawns its process whenever it exits, for any reason.
func (s *Supervisor) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting worker pool", "count", s.count, "binary", s.binary)

	g, ctx := errgroup.WithContext(ctx)
	for slot := range s.count {
		g.Go(func() error {
			s.superviseSlot(ctx, slot)
			return nil
		})
	}
	return g.Wait()
}

func (s *Supervisor) superviseSlot(ctx context.Context, slot int) {
	for ctx.Err() == nil {
		err := s.runChild(ctx, slot)
		if ctx.Err() != nil {
			return
		}
		s.logger.WarnContext(ctx, "worker exited, restarting",
			"slot", slot,
			"error", err,
			"delay", s.restartDelay,
		)

		timer := time.NewTimer(s.restartDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (s *Supervisor) runChild(ctx context.Context, slot int) error {
	cmd := exec.CommandContext(ctx, s.binary, s.args...)
	cmd.Env = append(os.Environ(), fmt.Sprintf("%s=%s", RoleEnvVar, WorkerRole))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	s.logger.InfoContext(ctx, "worker started", "slot", slot, "pid", cmd.Process.Pid)

	err := cmd.Wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("worker exited with code %d", exitErr.ExitCode())
	}
	return err
}
