// Package config defines the environment-driven configuration for crawld.
package config

import "strings"

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - database.go: Database and queue-state configuration
//   - http.go: HTTP server and admin surface configuration
//   - services.go: Service mode, worker, and maintenance configuration
type AppConfig struct {
	// Env names the deployment environment ("production", "staging",
	// "development"). The production flag exposed on the admin surface is
	// derived from it once at startup.
	Env string `env:"ENV" envDefault:"development"`

	// IsDev controls development mode behavior (smaller worker pools,
	// permissive billing). Set DEV=true for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// HTTP server configuration
	HTTP HTTPConfig

	// Service mode configuration
	Services string `env:"SERVICES" envDefault:"http,worker"`

	// Worker pool and per-worker loop configuration
	Worker     WorkerConfig
	Supervisor SupervisorConfig

	// Queue monitoring and retention configuration
	Monitor MonitorConfig
	Cleaner CleanerConfig

	// External collaborators
	Billing BillingConfig
	Crawler CrawlerConfig
	Slack   SlackConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Postgres.Sanitize()
	c.Worker.Sanitize()
	c.Supervisor.Sanitize(c.IsDev)
	c.Monitor.Sanitize()
	c.Cleaner.Sanitize()

	if !c.IsDev {
		c.IsDev = strings.EqualFold(c.Env, "development") || strings.EqualFold(c.Env, "dev")
	}
}

// IsProduction reports whether the process runs in the production environment.
func (c *AppConfig) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsHTTPServerEnabled returns true if the HTTP server service is enabled.
func (c *AppConfig) IsHTTPServerEnabled() bool {
	return c.serviceEnabled(ServiceModeHTTP)
}

// IsWorkerEnabled returns true if the job worker service is enabled.
func (c *AppConfig) IsWorkerEnabled() bool {
	return c.serviceEnabled(ServiceModeWorker)
}

// IsSupervisorEnabled returns true if the worker pool supervisor is enabled.
func (c *AppConfig) IsSupervisorEnabled() bool {
	return c.serviceEnabled(ServiceModeSupervisor)
}

// IsCleanerEnabled returns true if the retention cleaner is enabled.
func (c *AppConfig) IsCleanerEnabled() bool {
	return c.serviceEnabled(ServiceModeCleaner)
}

func (c *AppConfig) serviceEnabled(mode ServiceMode) bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[mode]
}
