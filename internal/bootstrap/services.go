package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/target/crawld/config"
	"github.com/target/crawld/internal/adapters/billing"
	"github.com/target/crawld/internal/adapters/pipeline/collycrawl"
	"github.com/target/crawld/internal/core"
	"github.com/target/crawld/internal/data"
	"github.com/target/crawld/internal/devseed"
	"github.com/target/crawld/internal/observability/notify"
	"github.com/target/crawld/internal/observability/notify/slack"
	"github.com/target/crawld/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Jobs     *service.JobService
	Executor *service.Executor
	Recovery *service.RecoveryService
	Monitor  *service.MonitorService
	Cleaner  *service.CleanerService

	Repo  core.JobRepository
	Queue core.QueueStateRepository
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// serviceRepositories groups data adapters backing service ports.
type serviceRepositories struct {
	JobRepo        *data.JobRepo
	QueueStateRepo *data.QueueStateRepo
}

func buildRepositories(db *sql.DB, redisClient redis.UniversalClient) *serviceRepositories {
	return &serviceRepositories{
		JobRepo:        data.NewJobRepo(db, data.RepoConfig{}),
		QueueStateRepo: data.NewQueueStateRepo(redisClient),
	}
}

// buildBillingGate picks the billing backend. Without a ledger URL every
// charge is approved locally, which is the development default.
//
//nolint:ireturn // the gate is chosen at runtime from configuration.
func buildBillingGate(cfg config.BillingConfig, logger *slog.Logger) (core.BillingGate, error) {
	if cfg.BaseURL == "" {
		if logger != nil {
			logger.Info("no billing ledger configured; all charges approved locally")
		}
		return billing.AllowAllGate{}, nil
	}

	client, err := billing.NewClient(billing.Config{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Timeout: cfg.Timeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create billing client: %w", err)
	}
	return client, nil
}

// buildAlertSink wires the Slack webhook sink, or nil when no webhook is
// configured.
//
//nolint:ireturn // the sink is chosen at runtime from configuration.
func buildAlertSink(cfg config.SlackConfig, logger *slog.Logger) notify.Sink {
	if cfg.WebhookURL == "" {
		return nil
	}

	client, err := slack.NewClient(slack.Config{
		WebhookURL: cfg.WebhookURL,
		Channel:    cfg.Channel,
		Username:   cfg.Username,
		RetryLimit: cfg.RetryLimit,
	})
	if err != nil {
		if logger != nil {
			logger.Error("failed to initialise slack sink; queue alerts disabled", "error", err)
		}
		return nil
	}
	return client
}

// NewServices builds the full service graph from shared infrastructure.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps with config are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	repos := buildRepositories(deps.DB, deps.RedisClient)

	gate, err := buildBillingGate(cfg.Billing, logger)
	if err != nil {
		return ServiceContainer{}, err
	}

	pipeline := collycrawl.NewPipeline(collycrawl.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.Crawler.Timeout,
	}, logger)

	jobs, err := service.NewJobService(service.JobServiceOptions{
		Repo:   repos.JobRepo,
		Queue:  repos.QueueStateRepo,
		Logger: logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create job service: %w", err)
	}

	executor, err := service.NewExecutor(service.ExecutorOptions{
		Repo:     repos.JobRepo,
		Pipeline: pipeline,
		Billing:  gate,
		Logger:   logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create executor: %w", err)
	}

	recovery, err := service.NewRecoveryService(service.RecoveryServiceOptions{
		Repo:   repos.JobRepo,
		Logger: logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create recovery service: %w", err)
	}

	monitor, err := service.NewMonitorService(service.MonitorServiceOptions{
		Repo:      repos.JobRepo,
		Queue:     repos.QueueStateRepo,
		Sink:      buildAlertSink(cfg.Slack, logger),
		Logger:    logger,
		Threshold: cfg.Monitor.NotifyThreshold,
		Delay:     cfg.Monitor.NotifyDelay,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create monitor service: %w", err)
	}

	cleaner, err := service.NewCleanerService(service.CleanerServiceOptions{
		Repo:       repos.JobRepo,
		Logger:     logger,
		MaxAge:     cfg.Cleaner.MaxAge,
		BatchSize:  cfg.Cleaner.BatchSize,
		MaxBatches: cfg.Cleaner.MaxBatches,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create cleaner service: %w", err)
	}

	return ServiceContainer{
		Jobs:     jobs,
		Executor: executor,
		Recovery: recovery,
		Monitor:  monitor,
		Cleaner:  cleaner,
		Repo:     repos.JobRepo,
		Queue:    repos.QueueStateRepo,
	}, nil
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

const (
	// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
	shutdownWaitTimeout = 15 * time.Second
)

// serviceStartupDeps groups dependencies for service startup.
type serviceStartupDeps struct {
	ctx             context.Context
	cfg             *ServiceOrchestrationConfig
	logger          *slog.Logger
	enabledServices map[config.ServiceMode]bool
	errCh           chan error
}

// backgroundService describes a startable background component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	mode config.ServiceMode
	name string
	done <-chan struct{}
}

// startHTTPServerIfEnabled starts the HTTP server if enabled.
func startHTTPServerIfEnabled(deps *serviceStartupDeps) *http.Server {
	if deps == nil || deps.cfg == nil || !deps.enabledServices[config.ServiceModeHTTP] {
		return nil
	}
	return StartHTTPServer(&HTTPServerConfig{
		Config:   deps.cfg.Config,
		Services: deps.cfg.Services,
		Logger:   deps.logger,
	})
}

func launchBackground(ctx context.Context, deps *serviceStartupDeps, descriptor backgroundService) <-chan struct{} {
	if deps == nil || !deps.enabledServices[descriptor.mode] {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := descriptor.start(ctx); err != nil {
			errMsg := fmt.Errorf("%s failed: %w", descriptor.name, err)
			select {
			case deps.errCh <- errMsg:
			case <-ctx.Done():
			default:
				if deps.logger != nil {
					deps.logger.WarnContext(
						ctx,
						"dropping background service error",
						"service",
						descriptor.name,
						"error",
						errMsg,
					)
				} else {
					slog.Default().WarnContext(ctx, "dropping background service error", "service", descriptor.name, "error", errMsg)
				}
			}
		}
	}()

	if deps.logger != nil {
		deps.logger.InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)
	} else {
		slog.Default().InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)
	}

	return done
}

func startBackgroundServices(deps *serviceStartupDeps, services []backgroundService) []backgroundServiceHandle {
	if deps == nil {
		return nil
	}
	handles := make([]backgroundServiceHandle, 0, len(services))

	for _, svc := range services {
		done := launchBackground(deps.ctx, deps, svc)
		if done == nil {
			continue
		}

		handles = append(handles, backgroundServiceHandle{
			mode: svc.mode,
			name: svc.name,
			done: done,
		})
	}

	return handles
}

func newWorkerBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeWorker,
		name: "worker",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil {
				return nil
			}
			workerCfg := config.WorkerConfig{}
			if deps.cfg.Config != nil {
				workerCfg = deps.cfg.Config.Worker
			}
			return RunWorker(ctx, WorkerConfig{
				Repo:     deps.cfg.Services.Repo,
				Queue:    deps.cfg.Services.Queue,
				Executor: deps.cfg.Services.Executor,
				Logger:   deps.logger,
				Config:   workerCfg,
			})
		},
	}
}

func newSupervisorBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeSupervisor,
		name: "worker pool supervisor",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil {
				return nil
			}
			supCfg := config.SupervisorConfig{}
			if deps.cfg.Config != nil {
				supCfg = deps.cfg.Config.Supervisor
			}
			return RunSupervisor(ctx, SupervisorRunConfig{
				Logger: deps.logger,
				Config: supCfg,
			})
		},
	}
}

func newCleanerBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeCleaner,
		name: "retention cleaner",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil {
				return nil
			}
			interval := time.Duration(0)
			if deps.cfg.Config != nil {
				interval = deps.cfg.Config.Cleaner.Interval
			}
			return RunCleanerLoop(ctx, CleanerRunConfig{
				Cleaner:  deps.cfg.Services.Cleaner,
				Logger:   deps.logger,
				Interval: interval,
			})
		},
	}
}

func buildBackgroundServices(deps *serviceStartupDeps) []backgroundService {
	if deps == nil {
		return nil
	}
	return []backgroundService{
		newWorkerBackgroundService(deps),
		newSupervisorBackgroundService(deps),
		newCleanerBackgroundService(deps),
	}
}

// ServiceStartupResult holds the results of starting all services.
type ServiceStartupResult struct {
	HTTPServer *http.Server
	Background []backgroundServiceHandle
}

// startServices starts all enabled services and returns their completion channels.
func startServices(deps *serviceStartupDeps) ServiceStartupResult {
	return ServiceStartupResult{
		HTTPServer: startHTTPServerIfEnabled(deps),
		Background: startBackgroundServices(deps, buildBackgroundServices(deps)),
	}
}

// reclaimInterruptedJobs requeues jobs whose executor died with the previous
// process generation. Runs once at startup, before any local dispatch begins,
// and only in the process that owns the pool: supervisor children skip it so
// a restarting pool does not reclaim jobs its siblings still hold.
func reclaimInterruptedJobs(ctx context.Context, deps *serviceStartupDeps) error {
	if deps == nil || deps.cfg == nil {
		return nil
	}
	if IsWorkerChild() {
		return nil
	}
	if !deps.enabledServices[config.ServiceModeWorker] && !deps.enabledServices[config.ServiceModeSupervisor] {
		return nil
	}

	requeued, err := deps.cfg.Services.Recovery.ReclaimAndRequeue(ctx)
	if err != nil {
		return fmt.Errorf("reclaim interrupted jobs: %w", err)
	}
	if requeued > 0 {
		deps.logger.InfoContext(ctx, "requeued interrupted jobs from previous run", "count", requeued)
	}
	return nil
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	ctx := context.Background()
	serviceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}

	// Determine which services are enabled
	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	errCh := make(chan error, errorChannelBufferSize(enabledServices))

	deps := &serviceStartupDeps{
		ctx:             serviceCtx,
		cfg:             cfg,
		logger:          logger,
		enabledServices: enabledServices,
		errCh:           errCh,
	}

	if cfg.Config.IsDev && !IsWorkerChild() {
		if err = devseed.Run(serviceCtx, devseed.Options{DB: cfg.DB, Logger: logger}); err != nil {
			logger.WarnContext(serviceCtx, "development seed failed", "error", err)
		}
	}

	if err = reclaimInterruptedJobs(serviceCtx, deps); err != nil {
		return err
	}

	// Start all enabled services
	result := startServices(deps)

	// Wait for shutdown signal or error
	return waitForShutdown(shutdownConfig{
		ctx:         serviceCtx,
		cancel:      cancel,
		errCh:       errCh,
		httpServer:  result.HTTPServer,
		monitor:     cfg.Services.Monitor,
		logger:      logger,
		backgrounds: result.Background,
	})
}

func errorChannelCapacity(enabled map[config.ServiceMode]bool) int {
	modes := []config.ServiceMode{
		config.ServiceModeHTTP,
		config.ServiceModeWorker,
		config.ServiceModeSupervisor,
		config.ServiceModeCleaner,
	}

	count := 0
	for _, mode := range modes {
		if enabled[mode] {
			count++
		}
	}
	return count
}

func errorChannelBufferSize(enabled map[config.ServiceMode]bool) int {
	size := errorChannelCapacity(enabled) + 1
	if size < 1 {
		return 1
	}
	return size
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	ctx         context.Context
	cancel      context.CancelFunc
	errCh       <-chan error
	httpServer  *http.Server
	monitor     *service.MonitorService
	logger      *slog.Logger
	backgrounds []backgroundServiceHandle
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		cfg.logger.Info("shutting down services...")
		cfg.cancel() // Cancel service context before waiting
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel() // Cancel service context before waiting
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop attempts to gracefully stop all services.
func gracefulStop(cfg shutdownConfig) error {
	// Gracefully stop HTTP server if running
	if cfg.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWaitTimeout)
		defer cancel()

		if err := ShutdownHTTPServer(ShutdownConfig{
			Context: shutdownCtx,
			Server:  cfg.httpServer,
			Monitor: cfg.monitor,
			Logger:  cfg.logger,
		}); err != nil {
			return err
		}
	} else if cfg.monitor != nil {
		cfg.monitor.Close()
	}

	// Wait for background services to finish
	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, cfg.logger)
	}

	return nil
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
