package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/membrane/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/membrane/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/membrane/internal/membrane"
	"github.com/GriffinCanCode/AgentOS/membrane/internal/sandbox"
)

// Config holds all membrane configuration.
type Config struct {
	Logging  LogConfig
	Membrane MembraneConfig
	Metrics  MetricsConfig
	Sandbox  SandboxConfig
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"MEMBRANE_LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"MEMBRANE_LOG_DEV" default:"false"`
}

// MembraneConfig holds engine options.
type MembraneConfig struct {
	ShowGraphName bool   `envconfig:"MEMBRANE_SHOW_GRAPH_NAME" default:"false"`
	PolicyFile    string `envconfig:"MEMBRANE_POLICY_FILE"`
}

// MetricsConfig holds Prometheus configuration.
type MetricsConfig struct {
	Enabled   bool   `envconfig:"MEMBRANE_METRICS_ENABLED" default:"true"`
	Namespace string `envconfig:"MEMBRANE_METRICS_NAMESPACE" default:"membrane"`
}

// SandboxConfig holds script runtime configuration.
type SandboxConfig struct {
	Timeout       time.Duration `envconfig:"SANDBOX_TIMEOUT" default:"5s"`
	EnableConsole bool          `envconfig:"SANDBOX_ENABLE_CONSOLE" default:"true"`
	PoolSize      int           `envconfig:"SANDBOX_POOL_SIZE" default:"4"`
	Field         string        `envconfig:"SANDBOX_FIELD" default:"sandbox"`
	HostField     string        `envconfig:"SANDBOX_HOST_FIELD" default:"host"`
	HostCallRate  float64       `envconfig:"SANDBOX_HOST_CALL_RATE" default:"0"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Membrane: MembraneConfig{
			ShowGraphName: false,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "membrane",
		},
		Sandbox: SandboxConfig{
			Timeout:       5 * time.Second,
			EnableConsole: true,
			PoolSize:      4,
			Field:         "sandbox",
			HostField:     "host",
			HostCallRate:  0,
		},
	}
}

// LoggerConfig maps the logging section onto the logger's own config.
func (c *Config) LoggerConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Logging.Level
	cfg.Development = c.Logging.Development
	return cfg
}

// MembraneOptions translates the configuration into engine options. Metrics
// are registered on reg when enabled and reg is non-nil.
func (c *Config) MembraneOptions(logger *zap.Logger, reg prometheus.Registerer) []membrane.Option {
	opts := []membrane.Option{
		membrane.WithShowGraphName(c.Membrane.ShowGraphName),
	}
	if logger != nil {
		opts = append(opts, membrane.WithLogger(logger))
	}
	if c.Metrics.Enabled && reg != nil {
		opts = append(opts, membrane.WithMetrics(monitoring.NewMetrics(reg, c.Metrics.Namespace)))
	}
	return opts
}

// SandboxConfig maps the sandbox section onto the runtime's own config.
func (c *Config) SandboxConfig() sandbox.Config {
	cfg := sandbox.DefaultConfig()
	cfg.Timeout = c.Sandbox.Timeout
	cfg.EnableConsole = c.Sandbox.EnableConsole
	cfg.Field = membrane.Field(c.Sandbox.Field)
	cfg.HostField = membrane.Field(c.Sandbox.HostField)
	cfg.HostCallRate = c.Sandbox.HostCallRate
	return cfg
}
