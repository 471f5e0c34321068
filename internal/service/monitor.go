package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/target/crawld/internal/core"
	"github.com/target/crawld/internal/observability/notify"
)

const (
	defaultNotifyThreshold = 1
	defaultNotifyDelay     = 60 * time.Second
)

// MonitorServiceOptions groups dependencies for MonitorService.
type MonitorServiceOptions struct {
	Repo      core.JobRepository        // Required: job repository
	Queue     core.QueueStateRepository // Required: one-shot alert guard
	Sink      notify.Sink               // Optional: alert destination; nil disables delivery
	Logger    *slog.Logger              // Optional: structured logger
	Threshold int                       // Optional: waiting-job alert threshold, default 1
	Delay     time.Duration             // Optional: deferred re-check delay, default 60s
}

// MonitorService watches queue depth for the admin health surface. It counts
// jobs for the health endpoints, evaluates the backlog rule on demand, and
// arms a one-shot deferred re-check that alerts only if the backlog persists.
type MonitorService struct {
	repo      core.JobRepository
	queue     core.QueueStateRepository
	sink      notify.Sink
	logger    *slog.Logger
	threshold int
	delay     time.Duration

	mu   sync.Mutex
	done chan struct{}
	wg   sync.WaitGroup
}

// NewMonitorService constructs a new MonitorService.
func NewMonitorService(opts MonitorServiceOptions) (*MonitorService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Queue == nil {
		return nil, errors.New("QueueStateRepository is required")
	}

	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = defaultNotifyThreshold
	}
	delay := opts.Delay
	if delay <= 0 {
		delay = defaultNotifyDelay
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "queue_monitor")
	}

	return &MonitorService{
		repo:      opts.Repo,
		queue:     opts.Queue,
		sink:      opts.Sink,
		logger:    logger,
		threshold: threshold,
		delay:     delay,
		done:      make(chan struct{}),
	}, nil
}

// MustNewMonitorService constructs a new MonitorService and panics on error.
func MustNewMonitorService(opts MonitorServiceOptions) *MonitorService {
	svc, err := NewMonitorService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create MonitorService: %v", err))
	}
	return svc
}

// ActiveCount returns the number of active jobs.
func (s *MonitorService) ActiveCount(ctx context.Context) (int, error) {
	count, err := s.repo.CountActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("count active jobs: %w", err)
	}
	return count, nil
}

// WaitingCount returns the number of waiting jobs.
func (s *MonitorService) WaitingCount(ctx context.Context) (int, error) {
	count, err := s.repo.CountWaiting(ctx)
	if err != nil {
		return 0, fmt.Errorf("count waiting jobs: %w", err)
	}
	return count, nil
}

// QueueReport is the outcome of an on-demand backlog rule evaluation.
type QueueReport struct {
	Waiting   int  `json:"waiting"`
	Active    int  `json:"active"`
	Threshold int  `json:"threshold"`
	Alerted   bool `json:"alerted"`
}

// CheckQueues evaluates the backlog rule immediately and delivers an alert
// when the waiting count is at or above the threshold.
func (s *MonitorService) CheckQueues(ctx context.Context) (*QueueReport, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("get job stats: %w", err)
	}

	report := &QueueReport{
		Waiting:   stats.Waiting,
		Active:    stats.Active,
		Threshold: s.threshold,
	}
	if stats.Waiting < s.threshold {
		return report, nil
	}

	report.Alerted = s.deliverAlert(ctx, stats.Waiting, stats.Active)
	return report, nil
}

// ArmDeferredCheck arms the one-shot deferred backlog check and returns
// immediately. It reports whether a check was armed: false when the waiting
// count is already below the threshold or another check is in flight (the
// cross-process guard was not acquired). The re-check runs after the
// configured delay and alerts only if the backlog is still at or above the
// threshold.
func (s *MonitorService) ArmDeferredCheck(ctx context.Context) (bool, error) {
	waiting, err := s.repo.CountWaiting(ctx)
	if err != nil {
		return false, fmt.Errorf("count waiting jobs: %w", err)
	}
	if waiting < s.threshold {
		return false, nil
	}

	// The guard expires shortly after the re-check fires, so an abandoned
	// timer cannot block future checks forever.
	armed, err := s.queue.ArmNotifyGuard(ctx, s.delay+30*time.Second)
	if err != nil {
		return false, fmt.Errorf("arm notify guard: %w", err)
	}
	if !armed {
		return false, nil
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "deferred queue check armed",
			"waiting", waiting,
			"delay", s.delay,
		)
	}

	s.wg.Add(1)
	go s.runDeferredCheck(context.WithoutCancel(ctx))
	return true, nil
}

func (s *MonitorService) runDeferredCheck(ctx context.Context) {
	defer s.wg.Done()

	timer := time.NewTimer(s.delay)
	defer timer.Stop()

	select {
	case <-s.done:
		return
	case <-timer.C:
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	waiting, err := s.repo.CountWaiting(checkCtx)
	if err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(checkCtx, "deferred queue re-check failed", "error", err)
		}
		return
	}
	if waiting < s.threshold {
		if s.logger != nil {
			s.logger.InfoContext(checkCtx, "queue drained before deferred re-check", "waiting", waiting)
		}
		return
	}

	active, err := s.repo.CountActive(checkCtx)
	if err != nil {
		active = 0
	}
	s.deliverAlert(checkCtx, waiting, active)
}

func (s *MonitorService) deliverAlert(ctx context.Context, waiting, active int) bool {
	if s.sink == nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "queue backlog over threshold, no alert sink configured",
				"waiting", waiting,
				"threshold", s.threshold,
			)
		}
		return false
	}

	hostname, _ := os.Hostname()
	payload := notify.QueueAlertPayload{
		WaitingCount: waiting,
		ActiveCount:  active,
		Threshold:    s.threshold,
		Severity:     notify.SeverityWarning,
		Hostname:     hostname,
		OccurredAt:   time.Now(),
	}
	if err := s.sink.SendQueueAlert(ctx, payload); err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "queue alert delivery failed", "error", err)
		}
		return false
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "queue backlog alert delivered",
			"waiting", waiting,
			"threshold", s.threshold,
		)
	}
	return true
}

// Close stops any armed deferred checks and waits for their goroutines.
func (s *MonitorService) Close() {
	s.mu.Lock()
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
