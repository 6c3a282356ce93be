package app

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/membrane/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/membrane/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/membrane/internal/membrane"
	"github.com/GriffinCanCode/AgentOS/membrane/internal/policy"
	"github.com/GriffinCanCode/AgentOS/membrane/internal/sandbox"
)

// policyPattern selects policy files when the policy path is a directory
const policyPattern = "**/*.{yaml,yml,json,toml,gz,zst}"

// App wires a membrane with its logger, metrics, exposure policy, shared
// sandbox pool and per-session runtimes
type App struct {
	config   *config.Config
	logger   *logging.Logger
	registry *prometheus.Registry
	membrane *membrane.Membrane
	policy   *policy.Installed
	pool     *sandbox.Pool
	manager  *Manager

	closeOnce sync.Once
}

// New builds an App from cfg, creating the logger it describes
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.LoggerConfig())
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return NewWithLogger(ctx, cfg, logger)
}

// NewWithLogger builds an App logging to logger
func NewWithLogger(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*App, error) {
	a := &App{
		config:   cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}

	a.membrane = membrane.New(cfg.MembraneOptions(logger.Logger, a.registry)...)

	if cfg.Membrane.PolicyFile != "" {
		doc, err := loadPolicy(ctx, cfg.Membrane.PolicyFile)
		if err != nil {
			return nil, err
		}
		if a.policy, err = policy.Apply(a.membrane, doc); err != nil {
			return nil, fmt.Errorf("apply policy: %w", err)
		}
	}

	sbCfg := cfg.SandboxConfig()
	pool, err := sandbox.NewPool(a.membrane, sbCfg, cfg.Sandbox.PoolSize,
		logger.ForMembrane(a.membrane.ID().String()).Logger)
	if err != nil {
		return nil, fmt.Errorf("sandbox pool: %w", err)
	}
	a.pool = pool
	a.manager = NewManager(a.membrane, sbCfg, logger)

	logger.Info("Membrane ready",
		zap.String("membrane_id", a.membrane.ID().String()),
		zap.String("sandbox_field", string(sbCfg.Field)),
		zap.String("host_field", string(sbCfg.HostField)),
		zap.Int("pool_size", cfg.Sandbox.PoolSize))
	return a, nil
}

func loadPolicy(ctx context.Context, path string) (*policy.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("policy: %w", err)
	}
	if info.IsDir() {
		return policy.LoadDir(ctx, path, policyPattern)
	}
	return policy.Load(path)
}

// Membrane returns the engine
func (a *App) Membrane() *membrane.Membrane { return a.membrane }

// Pool returns the shared sandbox pool
func (a *App) Pool() *sandbox.Pool { return a.pool }

// Manager returns the session manager
func (a *App) Manager() *Manager { return a.manager }

// Registry returns the Prometheus registry the engine reports to
func (a *App) Registry() *prometheus.Registry { return a.registry }

// Logger returns the application logger
func (a *App) Logger() *logging.Logger { return a.logger }

// Policy returns what the configured policy installed, nil without one
func (a *App) Policy() *policy.Installed { return a.policy }

// Execute runs script in a pooled runtime
func (a *App) Execute(ctx context.Context, script string) (*sandbox.Result, error) {
	return a.pool.Execute(ctx, script)
}

// Close tears everything down: sessions, pool, then the membrane itself
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.manager.CloseAll()
		err = a.pool.Close()
		a.membrane.RevokeAll()
		a.logger.Info("Membrane closed", zap.Any("stats", a.membrane.Stats()))
		_ = a.logger.Sync()
	})
	return err
}
