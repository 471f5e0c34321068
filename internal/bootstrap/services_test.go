package bootstrap

import (
	"testing"

	"github.com/target/crawld/config"
)

func TestErrorChannelCapacity(t *testing.T) {
	tests := []struct {
		name  string
		modes []config.ServiceMode
		want  int
	}{
		{
			name: "no services enabled",
			want: 0,
		},
		{
			name:  "http only",
			modes: []config.ServiceMode{config.ServiceModeHTTP},
			want:  1,
		},
		{
			name:  "http and worker",
			modes: []config.ServiceMode{config.ServiceModeHTTP, config.ServiceModeWorker},
			want:  2,
		},
		{
			name:  "supervisor and cleaner",
			modes: []config.ServiceMode{config.ServiceModeSupervisor, config.ServiceModeCleaner},
			want:  2,
		},
		{
			name: "all services enabled",
			modes: []config.ServiceMode{
				config.ServiceModeHTTP,
				config.ServiceModeWorker,
				config.ServiceModeSupervisor,
				config.ServiceModeCleaner,
			},
			want: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enabled := make(map[config.ServiceMode]bool, len(tt.modes))
			for _, mode := range tt.modes {
				enabled[mode] = true
			}

			if got := errorChannelCapacity(enabled); got != tt.want {
				t.Fatalf("errorChannelCapacity(%v) = %d, want %d", tt.modes, got, tt.want)
			}
		})
	}
}

func TestErrorChannelBufferSize(t *testing.T) {
	tests := []struct {
		name  string
		modes []config.ServiceMode
		want  int
	}{
		{
			name: "no services enabled",
			want: 1,
		},
		{
			name:  "http only",
			modes: []config.ServiceMode{config.ServiceModeHTTP},
			want:  2,
		},
		{
			name: "all services enabled",
			modes: []config.ServiceMode{
				config.ServiceModeHTTP,
				config.ServiceModeWorker,
				config.ServiceModeSupervisor,
				config.ServiceModeCleaner,
			},
			want: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enabled := make(map[config.ServiceMode]bool, len(tt.modes))
			for _, mode := range tt.modes {
				enabled[mode] = true
			}

			if got := errorChannelBufferSize(enabled); got != tt.want {
				t.Fatalf("errorChannelBufferSize(%v) = %d, want %d", tt.modes, got, tt.want)
			}
		})
	}
}

func TestValidateServiceConfig(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		if err := ValidateServiceConfig(nil); err == nil {
			t.Fatal("expected error for nil config")
		}
	})

	t.Run("unknown mode", func(t *testing.T) {
		cfg := &config.AppConfig{Services: "http,telemetry"}
		if err := ValidateServiceConfig(cfg); err == nil {
			t.Fatal("expected error for unknown service mode")
		}
	})

	t.Run("valid modes", func(t *testing.T) {
		cfg := &config.AppConfig{Services: "http,worker"}
		if err := ValidateServiceConfig(cfg); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestWorkerChildDetection(t *testing.T) {
	t.Run("not a child by default", func(t *testing.T) {
		if IsWorkerChild() {
			t.Fatal("expected IsWorkerChild to be false without role env var")
		}
	})

	t.Run("child role forces worker-only services", func(t *testing.T) {
		t.Setenv("CRAWLD_ROLE", "worker")

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("load config: %v", err)
		}

		if cfg.Services != "worker" {
			t.Fatalf("Services = %q, want %q", cfg.Services, "worker")
		}
		if cfg.IsSupervisorEnabled() {
			t.Fatal("supervisor must not be enabled in a worker child")
		}
		if cfg.IsHTTPServerEnabled() {
			t.Fatal("http server must not be enabled in a worker child")
		}
	})
}
