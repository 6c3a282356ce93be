// Package logging provides structured logging using uber/zap.
//
// Two modes are offered:
//   - Production: JSON output for machine parsing
//   - Development: colored console output
//
// Membrane events are logged with membrane_id, field and record fields:
// proxy creation at debug, blocked leaks and listener aborts at warn,
// revocations at info.
//
// Example Usage:
//
//	logger, err := logging.New(logging.DefaultConfig())
//	m := membrane.New(membrane.WithLogger(logger.Logger))
package logging
