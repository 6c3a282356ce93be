package membrane

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/membrane/internal/object"
)

// KeyFilter decides whether a key of the original is visible in a field
type KeyFilter func(key object.Key) bool

// AllowKeys returns a filter passing exactly the given string keys
func AllowKeys(names ...string) KeyFilter {
	allowed := make(map[object.Key]struct{}, len(names))
	for _, name := range names {
		allowed[object.StringKey(name)] = struct{}{}
	}
	return func(key object.Key) bool {
		_, ok := allowed[key]
		return ok
	}
}

// ruleState is the per (field, target) customization carried by a proxy
type ruleState struct {
	storeUnknownAsLocal bool
	requireLocalDelete  bool
	filters             []KeyFilter
	sealed              bool

	shadow  *object.Ordinary
	deleted map[object.Key]struct{}
}

// ruleView is a snapshot of a proxy's rules for one operation
type ruleView struct {
	storeUnknownAsLocal bool
	requireLocalDelete  bool
	filters             []KeyFilter
	shadow              *object.Ordinary
	deleted             map[object.Key]struct{}
}

func (v ruleView) visible(key object.Key) bool {
	for _, f := range v.filters {
		if !f(key) {
			return false
		}
	}
	return true
}

func (v ruleView) isDeleted(key object.Key) bool {
	_, ok := v.deleted[key]
	return ok
}

func (v ruleView) shadowHas(key object.Key) bool {
	if v.shadow == nil {
		return false
	}
	desc, _ := v.shadow.GetOwnProperty(key)
	return desc != nil
}

func (p *Proxy) view() ruleView {
	p.mu.Lock()
	defer p.mu.Unlock()

	deleted := make(map[object.Key]struct{}, len(p.rules.deleted))
	for k := range p.rules.deleted {
		deleted[k] = struct{}{}
	}
	return ruleView{
		storeUnknownAsLocal: p.rules.storeUnknownAsLocal,
		requireLocalDelete:  p.rules.requireLocalDelete,
		filters:             append([]KeyFilter(nil), p.rules.filters...),
		shadow:              p.rules.shadow,
		deleted:             deleted,
	}
}

// localStore returns the shadow object, creating it on first use
func (p *Proxy) localStore() *object.Ordinary {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rules.shadow == nil {
		p.rules.shadow = object.NewOrdinary(nil)
		if p.rules.sealed {
			p.rules.shadow.PreventExtensions()
		}
	}
	return p.rules.shadow
}

func (p *Proxy) markDeleted(key object.Key) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rules.deleted == nil {
		p.rules.deleted = make(map[object.Key]struct{})
	}
	p.rules.deleted[key] = struct{}{}
}

func (p *Proxy) seal() *object.Ordinary {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rules.sealed = true
	return p.rules.shadow
}

// RuleSet mutates the rules of one (field, target) pair at a time. Rules
// only ever affect the named field's view of the target.
type RuleSet struct {
	membrane *Membrane
}

// StoreUnknownAsLocal redirects writes of keys the original lacks to the
// field's private shadow
func (r *RuleSet) StoreUnknownAsLocal(field Field, target object.Value) error {
	return r.modify("storeUnknownAsLocal", field, target, func(s *ruleState) {
		s.storeUnknownAsLocal = true
	})
}

// RequireLocalDelete keeps deletions in the field instead of forwarding them
func (r *RuleSet) RequireLocalDelete(field Field, target object.Value) error {
	return r.modify("requireLocalDelete", field, target, func(s *ruleState) {
		s.requireLocalDelete = true
	})
}

// FilterOwnKeys restricts which keys of the original the field can see.
// Filters compose: a key must pass all of them.
func (r *RuleSet) FilterOwnKeys(field Field, target object.Value, filter KeyFilter) error {
	if filter == nil {
		return &InvariantViolationError{Op: "filterOwnKeys", Reason: "nil key filter"}
	}
	return r.modify("filterOwnKeys", field, target, func(s *ruleState) {
		s.filters = append(s.filters, filter)
	})
}

// modify applies change to the proxy representing target in field.
// Changes to an existing proxy take effect for subsequent operations.
func (r *RuleSet) modify(op string, field Field, target object.Value, change func(*ruleState)) error {
	m := r.membrane
	if m.revoked.Load() {
		return &RevokedAccessError{Op: op, Field: field}
	}

	obj, ok := target.(object.Object)
	if !ok {
		return &InvariantViolationError{Op: op, Reason: fmt.Sprintf("rules need an object target, got %s", object.TypeOf(target))}
	}

	m.registry.mu.Lock()
	rec, _ := m.registry.lookupLocked(obj)
	var rep object.Object
	if rec != nil {
		rep = rec.representation(field)
	}
	m.registry.mu.Unlock()

	switch {
	case rec == nil:
		return fmt.Errorf("%s: %w", op, ErrNotTracked)
	case rec.revoked.Load():
		return &RevokedAccessError{Op: op, Field: field}
	case field == rec.home:
		return &InvariantViolationError{Op: op, Reason: fmt.Sprintf("field %q is the target's home field", field)}
	case rep == nil:
		return fmt.Errorf("%s in %q: %w", op, field, ErrNoRepresentation)
	}

	p := asProxy(rep)
	if p == nil {
		return &InvariantViolationError{Op: op, Reason: "substituted representation carries no rules"}
	}

	p.mu.Lock()
	change(&p.rules)
	p.mu.Unlock()

	m.logger.Debug("Rule applied",
		zap.String("rule", op),
		zap.String("field", string(field)),
		zap.Uint64("record", rec.id))
	return nil
}
