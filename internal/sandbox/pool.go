package sandbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/membrane/internal/membrane"
	"github.com/GriffinCanCode/AgentOS/membrane/internal/object"
)

var (
	ErrPoolClosed = errors.New("sandbox pool is closed")
	ErrTimeout    = errors.New("sandbox acquisition timeout")
)

// Pool manages a pool of reusable runtimes sharing one sandbox field
type Pool struct {
	membrane  *membrane.Membrane
	config    Config
	logger    *zap.Logger
	sandboxes chan *Runtime
	size      int
	mu        sync.RWMutex
	closed    bool

	acquireTimeout time.Duration

	exposedMu sync.Mutex
	exposed   map[string]object.Value
}

// NewPool creates a sandbox pool
func NewPool(m *membrane.Membrane, config Config, size int, logger *zap.Logger) (*Pool, error) {
	if size <= 0 {
		size = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	pool := &Pool{
		membrane:       m,
		config:         config,
		logger:         logger,
		sandboxes:      make(chan *Runtime, size),
		size:           size,
		acquireTimeout: 5 * time.Second,
		exposed:        make(map[string]object.Value),
	}

	// Pre-create sandboxes
	for i := 0; i < size; i++ {
		sandbox, err := New(m, config, logger)
		if err != nil {
			pool.Close()
			return nil, err
		}
		pool.sandboxes <- sandbox
	}

	return pool, nil
}

// Expose binds a host value as a global in every runtime of the pool,
// including runtimes currently in use once they are released
func (p *Pool) Expose(name string, value object.Value) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	// validates the value crosses before any runtime sees it
	host, err := p.membrane.GetHandlerByField(p.config.HostField, true)
	if err != nil {
		return err
	}
	guest, err := p.membrane.GetHandlerByField(p.config.Field, true)
	if err != nil {
		return err
	}
	if _, err := p.membrane.ConvertArgumentToProxy(host, guest, value); err != nil {
		return err
	}

	p.exposedMu.Lock()
	p.exposed[name] = value
	p.exposedMu.Unlock()
	return nil
}

// Acquire gets a sandbox from pool with timeout
func (p *Pool) Acquire(ctx context.Context) (*Runtime, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	select {
	case sandbox := <-p.sandboxes:
		if err := p.sync(sandbox); err != nil {
			p.sandboxes <- sandbox
			return nil, err
		}
		return sandbox, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(p.acquireTimeout):
		return nil, ErrTimeout
	}
}

// sync exposes the pool's globals on a runtime
func (p *Pool) sync(sandbox *Runtime) error {
	p.exposedMu.Lock()
	defer p.exposedMu.Unlock()

	for name, value := range p.exposed {
		if err := sandbox.Expose(name, value); err != nil {
			return err
		}
	}
	return nil
}

// Release returns sandbox to pool
func (p *Pool) Release(sandbox *Runtime) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return sandbox.Close()
	}

	// Reset sandbox state
	if err := sandbox.Reset(); err != nil {
		sandbox.Close()
		p.logger.Warn("Sandbox reset failed, replacing runtime", zap.Error(err))
		// Create new sandbox
		if newSandbox, err := New(p.membrane, p.config, p.logger); err == nil {
			p.sandboxes <- newSandbox
		}
		return err
	}

	select {
	case p.sandboxes <- sandbox:
		return nil
	default:
		// Pool full, close sandbox
		return sandbox.Close()
	}
}

// Execute runs script using pool
func (p *Pool) Execute(ctx context.Context, script string) (*Result, error) {
	sandbox, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Release(sandbox)

	return sandbox.Execute(ctx, script)
}

// Close closes pool and all sandboxes
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true
	close(p.sandboxes)

	// Close all sandboxes
	for sandbox := range p.sandboxes {
		sandbox.Close()
	}

	return nil
}

// Stats returns pool statistics
func (p *Pool) Stats() map[string]interface{} {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return map[string]interface{}{
		"size":      p.size,
		"available": len(p.sandboxes),
		"in_use":    p.size - len(p.sandboxes),
		"closed":    p.closed,
	}
}
