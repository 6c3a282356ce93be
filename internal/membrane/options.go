package membrane

import (
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/membrane/internal/infrastructure/monitoring"
)

// Option configures a Membrane
type Option func(*Membrane)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(m *Membrane) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics enables metrics collection
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(m *Membrane) {
		m.metrics = metrics
	}
}

// WithShowGraphName makes proxies answer GraphNameSymbol with their field
func WithShowGraphName(show bool) Option {
	return func(m *Membrane) {
		m.showGraphName = show
	}
}
