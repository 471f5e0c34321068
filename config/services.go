package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP server.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeWorker runs the job worker loop in this process.
	ServiceModeWorker ServiceMode = "worker"
	// ServiceModeSupervisor runs the worker pool supervisor, forking child
	// worker processes.
	ServiceModeSupervisor ServiceMode = "supervisor"
	// ServiceModeCleaner runs the periodic completed-job retention sweep.
	ServiceModeCleaner ServiceMode = "cleaner"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeWorker,
		ServiceModeSupervisor,
		ServiceModeCleaner,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	for _, part := range strings.Split(servicesStr, ",") {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeWorker, ServiceModeSupervisor, ServiceModeCleaner:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: http, worker, supervisor, cleaner)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// WorkerConfig contains per-process job worker configuration.
type WorkerConfig struct {
	// Concurrency is the number of worker goroutines per process.
	Concurrency int `env:"WORKER_CONCURRENCY" envDefault:"1"`

	// IdleWait caps how long a worker blocks on a job notification before
	// polling the store again.
	IdleWait time.Duration `env:"WORKER_IDLE_WAIT" envDefault:"30s"`

	// PauseWait is the recheck interval while the queue is paused.
	PauseWait time.Duration `env:"WORKER_PAUSE_WAIT" envDefault:"2s"`
}

// Sanitize applies guardrails to worker configuration values.
func (w *WorkerConfig) Sanitize() {
	if w.Concurrency < 1 {
		w.Concurrency = 1
	}
	if w.IdleWait <= 0 {
		w.IdleWait = 30 * time.Second
	}
	if w.PauseWait <= 0 {
		w.PauseWait = 2 * time.Second
	}
}

// SupervisorConfig contains worker pool supervisor configuration.
type SupervisorConfig struct {
	// PoolSize is the number of worker processes to fork. Zero means one per
	// available CPU, reduced to a small fixed number in development.
	PoolSize int `env:"SUPERVISOR_POOL_SIZE" envDefault:"0"`

	// RestartDelay is the pause before respawning an exited worker process.
	RestartDelay time.Duration `env:"SUPERVISOR_RESTART_DELAY" envDefault:"1s"`
}

// devPoolSize caps the worker pool in development.
const devPoolSize = 2

// Sanitize applies guardrails to supervisor configuration values.
func (s *SupervisorConfig) Sanitize(isDev bool) {
	if s.PoolSize < 0 {
		s.PoolSize = 0
	}
	if isDev && (s.PoolSize == 0 || s.PoolSize > devPoolSize) {
		s.PoolSize = devPoolSize
	}
	if s.RestartDelay <= 0 {
		s.RestartDelay = time.Second
	}
}

// MonitorConfig contains queue backlog monitoring configuration.
type MonitorConfig struct {
	// NotifyThreshold is the waiting-job count at which the deferred check
	// arms and alerts.
	NotifyThreshold int `env:"MONITOR_NOTIFY_THRESHOLD" envDefault:"1"`

	// NotifyDelay is how long the armed check waits before re-checking.
	NotifyDelay time.Duration `env:"MONITOR_NOTIFY_DELAY" envDefault:"60s"`
}

// Sanitize applies guardrails to monitor configuration values.
func (m *MonitorConfig) Sanitize() {
	if m.NotifyThreshold < 1 {
		m.NotifyThreshold = 1
	}
	if m.NotifyDelay <= 0 {
		m.NotifyDelay = 60 * time.Second
	}
}

// CleanerConfig contains completed-job retention configuration.
type CleanerConfig struct {
	// MaxAge is the retention window for completed jobs.
	MaxAge time.Duration `env:"CLEANER_MAX_AGE" envDefault:"24h"`

	// BatchSize is the number of rows deleted per batch.
	BatchSize int `env:"CLEANER_BATCH_SIZE" envDefault:"500"`

	// MaxBatches bounds a single sweep.
	MaxBatches int `env:"CLEANER_MAX_BATCHES" envDefault:"10"`

	// Interval is how often the cleaner service sweeps when enabled.
	Interval time.Duration `env:"CLEANER_INTERVAL" envDefault:"1h"`
}

// Sanitize applies guardrails to cleaner configuration values.
func (c *CleanerConfig) Sanitize() {
	if c.MaxAge <= 0 {
		c.MaxAge = 24 * time.Hour
	}
	if c.BatchSize < 1 {
		c.BatchSize = 500
	}
	if c.MaxBatches < 1 {
		c.MaxBatches = 10
	}
	if c.Interval <= 0 {
		c.Interval = time.Hour
	}
}

// BillingConfig contains billing ledger configuration.
type BillingConfig struct {
	// BaseURL of the billing ledger API. Charges are approved locally when
	// empty (development only).
	BaseURL string        `env:"BILLING_BASE_URL" envDefault:""`
	APIKey  string        `env:"BILLING_API_KEY"  envDefault:""`
	Timeout time.Duration `env:"BILLING_TIMEOUT"  envDefault:"10s"`
}

// CrawlerConfig contains crawl pipeline configuration.
type CrawlerConfig struct {
	UserAgent string        `env:"CRAWLER_USER_AGENT" envDefault:"crawld/1.0"`
	Timeout   time.Duration `env:"CRAWLER_TIMEOUT"    envDefault:"30s"`
}

// SlackConfig contains queue alert delivery configuration.
type SlackConfig struct {
	// WebhookURL for queue backlog alerts. Alerts are logged only when empty.
	WebhookURL string `env:"SLACK_WEBHOOK_URL" envDefault:""`
	Channel    string `env:"SLACK_CHANNEL"     envDefault:""`
	Username   string `env:"SLACK_USERNAME"    envDefault:"crawld"`
	RetryLimit int    `env:"SLACK_RETRY_LIMIT" envDefault:"2"`
}
