package sandbox

import (
	"errors"
	"time"

	"github.com/GriffinCanCode/AgentOS/membrane/internal/membrane"
	"github.com/GriffinCanCode/AgentOS/membrane/internal/object"
)

var (
	ErrClosed      = errors.New("sandbox runtime is closed")
	ErrInterrupted = errors.New("sandbox execution interrupted")
	ErrUnbridgable = errors.New("value cannot cross into the sandbox")
	ErrHostCall    = errors.New("host call refused")
)

// Config defines sandbox configuration
type Config struct {
	Timeout       time.Duration  // Execution timeout
	EnableConsole bool           // Allow console.log/warn/error/info
	Field         membrane.Field // Field scripts run in
	HostField     membrane.Field // Field exposed values come from
	HostCallRate  float64        // Host calls per second, 0 for unlimited
}

// Result holds execution result
type Result struct {
	Value    object.Value  // Completion value, as seen from the host field
	Console  []LogEntry    // Console output
	Duration time.Duration // Execution time
	Error    error         // Execution error
}

// LogEntry represents console output
type LogEntry struct {
	Level   string    // log, warn, error, info
	Message string    // Log message, stripped of markup
	Time    time.Time // Timestamp
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Timeout:       5 * time.Second,
		EnableConsole: true,
		Field:         "sandbox",
		HostField:     "host",
	}
}
