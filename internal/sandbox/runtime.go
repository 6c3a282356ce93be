package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/AgentOS/membrane/internal/membrane"
	"github.com/GriffinCanCode/AgentOS/membrane/internal/object"
)

// Runtime is a goja VM living in one membrane field. Host values reach it
// only as that field's representations.
type Runtime struct {
	vm       *goja.Runtime
	config   Config
	membrane *membrane.Membrane
	guest    *membrane.GraphHandler
	host     *membrane.GraphHandler
	logger   *zap.Logger
	limiter  *rate.Limiter
	strip    *bluemonday.Policy
	mu       sync.Mutex

	bridge  *bridge
	exposed map[string]object.Value
	ctx     context.Context

	// Console output
	console   []LogEntry
	consoleMu sync.Mutex

	// Interrupt channel
	interrupt chan struct{}
	closed    bool
}

// New creates a sandboxed runtime bound to m
func New(m *membrane.Membrane, config Config, logger *zap.Logger) (*Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	guest, err := m.GetHandlerByField(config.Field, true)
	if err != nil {
		return nil, fmt.Errorf("sandbox field: %w", err)
	}
	host, err := m.GetHandlerByField(config.HostField, true)
	if err != nil {
		return nil, fmt.Errorf("host field: %w", err)
	}

	r := &Runtime{
		config:    config,
		membrane:  m,
		guest:     guest,
		host:      host,
		logger:    logger.With(zap.String("field", string(config.Field))),
		strip:     bluemonday.StrictPolicy(),
		exposed:   make(map[string]object.Value),
		ctx:       context.Background(),
		interrupt: make(chan struct{}),
	}
	if config.HostCallRate > 0 {
		burst := int(config.HostCallRate)
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(config.HostCallRate), burst)
	}

	if err := r.setupGlobals(); err != nil {
		return nil, err
	}
	return r, nil
}

// Expose converts value from the host field into the sandbox field and
// binds it to a global. Exposures survive Reset.
func (r *Runtime) Expose(name string, value object.Value) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	guestValue, err := r.membrane.ConvertArgumentToProxy(r.host, r.guest, value)
	if err != nil {
		return fmt.Errorf("expose %q: %w", name, err)
	}
	if err := r.bind(name, guestValue); err != nil {
		return err
	}
	r.exposed[name] = guestValue
	return nil
}

func (r *Runtime) bind(name string, guestValue object.Value) error {
	js, err := r.bridge.toJS(guestValue)
	if err != nil {
		return fmt.Errorf("expose %q: %w", name, err)
	}
	return r.vm.Set(name, js)
}

// Execute runs JavaScript code with timeout. The completion value is
// converted back into the host field.
func (r *Runtime) Execute(ctx context.Context, script string) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}

	start := time.Now()
	result := &Result{
		Console: []LogEntry{},
	}

	// Setup timeout
	timer := time.NewTimer(r.config.Timeout)
	defer timer.Stop()

	// Setup interrupt handler
	vm, done := r.vm, r.interrupt
	var watcher sync.WaitGroup
	watcher.Add(1)
	go func() {
		defer watcher.Done()
		select {
		case <-timer.C:
			vm.Interrupt("execution timeout exceeded")
		case <-ctx.Done():
			vm.Interrupt("context cancelled")
		case <-done:
			return
		}
	}()

	// Clear console
	r.consoleMu.Lock()
	r.console = []LogEntry{}
	r.consoleMu.Unlock()

	r.ctx = ctx
	val, err := r.vm.RunString(script)
	r.ctx = context.Background()

	// Stop interrupt goroutine
	close(r.interrupt)
	watcher.Wait()
	r.interrupt = make(chan struct{})
	r.vm.ClearInterrupt()

	result.Duration = time.Since(start)

	// Collect console output
	r.consoleMu.Lock()
	result.Console = append([]LogEntry{}, r.console...)
	r.consoleMu.Unlock()

	if err == nil {
		result.Value, err = r.exportValue(val)
	}
	if err != nil {
		var interrupted *goja.InterruptedError
		var ex *goja.Exception
		switch {
		case errors.As(err, &interrupted):
			err = fmt.Errorf("%w: %v", ErrInterrupted, interrupted.Value())
		case errors.As(err, &ex):
			// host errors keep their identity for errors.Is
			if goErr := goErrorOf(ex); goErr != nil {
				err = goErr
			}
		}
		result.Error = err
		r.logger.Debug("Script failed", zap.Duration("duration", result.Duration), zap.Error(err))
		return result, err
	}

	r.logger.Debug("Script executed", zap.Duration("duration", result.Duration))
	return result, nil
}

// setupGlobals configures global objects and security
func (r *Runtime) setupGlobals() error {
	r.vm = goja.New()
	r.vm.SetMaxCallStackSize(1024)

	var err error
	if r.bridge, err = newBridge(r); err != nil {
		return err
	}

	// Remove dangerous globals
	r.vm.Set("require", goja.Undefined())
	r.vm.Set("process", goja.Undefined())
	r.vm.Set("module", goja.Undefined())
	r.vm.Set("exports", goja.Undefined())

	// Setup console if enabled
	if r.config.EnableConsole {
		console := r.vm.NewObject()
		console.Set("log", r.makeConsoleFunc("log"))
		console.Set("warn", r.makeConsoleFunc("warn"))
		console.Set("error", r.makeConsoleFunc("error"))
		console.Set("info", r.makeConsoleFunc("info"))
		r.vm.Set("console", console)
	}

	// Setup timers (no-op for security)
	r.vm.Set("setTimeout", func(call goja.FunctionCall) goja.Value {
		return goja.Undefined()
	})
	r.vm.Set("setInterval", func(call goja.FunctionCall) goja.Value {
		return goja.Undefined()
	})

	return nil
}

// makeConsoleFunc creates a console function
func (r *Runtime) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, arg.String())
		}
		msg := r.strip.Sanitize(strings.Join(parts, " "))

		r.consoleMu.Lock()
		r.console = append(r.console, LogEntry{
			Level:   level,
			Message: msg,
			Time:    time.Now(),
		})
		r.consoleMu.Unlock()

		r.logger.Debug("Script console", zap.String("level", level), zap.String("message", msg))
		return goja.Undefined()
	}
}

// hostCall gates calls from scripts into the host field
func (r *Runtime) hostCall() error {
	if r.limiter == nil {
		return nil
	}
	if err := r.limiter.Wait(r.ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrHostCall, err)
	}
	return nil
}

// exportValue converts a completion value into the host field
func (r *Runtime) exportValue(val goja.Value) (object.Value, error) {
	guestValue, err := r.bridge.fromJS(val)
	if err != nil {
		return nil, err
	}
	return r.membrane.ConvertArgumentToProxy(r.guest, r.host, guestValue)
}

// Reset clears the runtime state. Exposed globals are bound again.
func (r *Runtime) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	r.console = []LogEntry{}
	if err := r.setupGlobals(); err != nil {
		return err
	}
	for name, v := range r.exposed {
		if err := r.bind(name, v); err != nil {
			return err
		}
	}
	return nil
}

// Close releases resources
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	r.vm = nil
	r.bridge = nil
	r.exposed = nil
	r.console = nil
	return nil
}
