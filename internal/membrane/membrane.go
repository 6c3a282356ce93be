package membrane

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/membrane/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/membrane/internal/object"
	"github.com/GriffinCanCode/AgentOS/membrane/internal/shared/id"
)

// Field names one object graph (trust domain)
type Field string

// GraphNameSymbol is answered with the proxy's field name when the membrane
// is created WithShowGraphName(true)
var GraphNameSymbol = object.NewSymbol("membraneGraphName")

var graphNameKey = object.SymbolKey(GraphNameSymbol)

// Membrane coordinates conversions between fields. Each membrane owns its
// registry; several membranes can coexist and be torn down independently.
type Membrane struct {
	id            id.MembraneID
	logger        *zap.Logger
	metrics       *monitoring.Metrics
	showGraphName bool

	registry *registry
	rules    *RuleSet

	internalMu sync.RWMutex
	internal   map[*object.Identity]struct{}

	revoked atomic.Bool
}

// New creates a membrane
func New(opts ...Option) *Membrane {
	m := &Membrane{
		id:       id.NewMembraneID(),
		logger:   zap.NewNop(),
		internal: make(map[*object.Identity]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.logger = m.logger.With(zap.String("membrane_id", m.id.String()))
	m.registry = newRegistry(m.metrics.RecordReclaimed)
	m.rules = &RuleSet{membrane: m}
	return m
}

// ID returns the membrane's unique ID
func (m *Membrane) ID() id.MembraneID {
	return m.id
}

// Logger returns the membrane's logger
func (m *Membrane) Logger() *zap.Logger {
	return m.logger
}

// ModifyRules returns the rule mutators
func (m *Membrane) ModifyRules() *RuleSet {
	return m.rules
}

// GetHandlerByField returns the handler for field, creating it when absent
// and createIfAbsent is set
func (m *Membrane) GetHandlerByField(field Field, createIfAbsent bool) (*GraphHandler, error) {
	if m.revoked.Load() {
		return nil, &RevokedAccessError{Op: "getHandlerByField", Field: field}
	}

	var create func() *GraphHandler
	if createIfAbsent {
		create = func() *GraphHandler {
			m.logger.Debug("Field handler created", zap.String("field", string(field)))
			return newGraphHandler(m, field)
		}
	}

	h, ok := m.registry.handler(field, create)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return h, nil
}

// HasHandlerByField reports whether field has a handler
func (m *Membrane) HasHandlerByField(field Field) bool {
	_, ok := m.registry.handler(field, nil)
	return ok
}

// ConvertArgumentToProxy converts value, owned by src's field, into its
// representation in dst's field
func (m *Membrane) ConvertArgumentToProxy(src, dst *GraphHandler, value object.Value) (object.Value, error) {
	if src == nil || dst == nil || src.membrane != m || dst.membrane != m {
		return nil, fmt.Errorf("%w: handler does not belong to this membrane", ErrUnknownField)
	}
	return m.convert(value, src.field, dst.field)
}

// Convert is ConvertArgumentToProxy addressed by field names
func (m *Membrane) Convert(value object.Value, src, dst Field) (object.Value, error) {
	if !m.HasHandlerByField(src) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, src)
	}
	if !m.HasHandlerByField(dst) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, dst)
	}
	return m.convert(value, src, dst)
}

// MarkInternal adds objects that must never cross any field
func (m *Membrane) MarkInternal(objs ...object.Object) {
	m.internalMu.Lock()
	defer m.internalMu.Unlock()

	for _, obj := range objs {
		m.internal[obj.Identity()] = struct{}{}
	}
}

func (m *Membrane) isInternal(obj object.Object) bool {
	m.internalMu.RLock()
	defer m.internalMu.RUnlock()

	_, ok := m.internal[obj.Identity()]
	return ok
}

// FieldOf reports the field a value belongs to: the proxy's field for a
// representation, the home field for a tracked original
func (m *Membrane) FieldOf(v object.Value) (Field, bool) {
	if p := asProxy(v); p != nil && p.handler.membrane == m {
		return p.handler.field, true
	}
	if s := asSubstitute(v); s != nil && s.handler.membrane == m {
		return s.handler.field, true
	}
	obj, ok := v.(object.Object)
	if !ok {
		return "", false
	}
	rec, isRep := m.registry.lookup(obj)
	if rec == nil || isRep {
		return "", false
	}
	return rec.home, true
}

// Original returns the original behind v: v itself for a tracked original,
// the wrapped object for one of its representations
func (m *Membrane) Original(v object.Value) (object.Object, bool) {
	obj, ok := v.(object.Object)
	if !ok {
		return nil, false
	}
	rec, _ := m.registry.lookup(obj)
	if rec == nil {
		return nil, false
	}
	return rec.original, true
}

// Revoke permanently disables every representation of v's original. v may be
// the original or any of its representations.
func (m *Membrane) Revoke(v object.Value) error {
	obj, ok := v.(object.Object)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotTracked, object.TypeOf(v))
	}
	rec, _ := m.registry.lookup(obj)
	if rec == nil {
		return ErrNotTracked
	}

	if rec.revoked.Swap(true) {
		return nil
	}
	m.registry.retire(rec)
	m.metrics.Revoked(monitoring.ScopeRecord)
	m.logger.Info("Record revoked",
		zap.Uint64("record", rec.id),
		zap.String("home", string(rec.home)))
	return nil
}

// RevokeAll tears the membrane down: every representation and every handler
// fails from now on
func (m *Membrane) RevokeAll() {
	if m.revoked.Swap(true) {
		return
	}
	m.registry.unpinAll()
	m.metrics.Revoked(monitoring.ScopeMembrane)
	m.logger.Info("Membrane revoked")
}

// Revoked reports whether the membrane has been torn down
func (m *Membrane) Revoked() bool {
	return m.revoked.Load()
}
