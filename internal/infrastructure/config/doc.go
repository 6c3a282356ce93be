// Package config provides 12-factor configuration for the membrane.
//
// Configuration is loaded from environment variables with sensible defaults.
//
// Configuration Sections:
//   - Logging: log level and output format
//   - Membrane: engine options and the exposure policy file
//   - Metrics: Prometheus collection
//   - Sandbox: script runtime limits and field names
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	m := membrane.New(cfg.MembraneOptions(logger, prometheus.DefaultRegisterer)...)
//
// Environment Variables:
//   - MEMBRANE_LOG_LEVEL, MEMBRANE_LOG_DEV
//   - MEMBRANE_SHOW_GRAPH_NAME, MEMBRANE_POLICY_FILE
//   - MEMBRANE_METRICS_ENABLED, MEMBRANE_METRICS_NAMESPACE
//   - SANDBOX_TIMEOUT, SANDBOX_ENABLE_CONSOLE, SANDBOX_POOL_SIZE
//   - SANDBOX_FIELD, SANDBOX_HOST_FIELD
package config
