package membrane

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/membrane/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/membrane/internal/object"
)

// convert maps value, as seen from src, to its representation in dst.
//
// Representations resolve to their original first, so a value is never
// wrapped twice; an original has at most one representation per field.
func (m *Membrane) convert(value object.Value, src, dst Field) (object.Value, error) {
	if m.revoked.Load() {
		return nil, &RevokedAccessError{Op: "convert", Field: dst}
	}

	if err := checkCrossable(value); err != nil {
		return nil, m.leakBlocked(err, dst)
	}

	obj, ok := value.(object.Object)
	if !ok {
		m.metrics.ObserveConversion(monitoring.ResultPrimitive)
		return value, nil
	}
	if obj.Identity() == nil {
		return nil, m.failed(&InvariantViolationError{Op: "convert", Reason: fmt.Sprintf("%T has no identity", obj)})
	}

	rec, isRep := m.registry.lookup(obj)
	original, home := obj, src
	if rec == nil && m.registry.isRetired(obj) {
		return nil, m.failed(&RevokedAccessError{Op: "convert", Field: dst})
	}
	if rec != nil {
		if rec.revoked.Load() {
			return nil, m.failed(&RevokedAccessError{Op: "convert", Field: dst})
		}
		original, home = rec.original, rec.home
		if !isRep && home != src {
			return nil, m.failed(&InvariantViolationError{
				Op:     "convert",
				Reason: fmt.Sprintf("original owned by field %q presented as coming from %q", home, src),
			})
		}
	}

	if m.isInternal(original) {
		return nil, m.leakBlocked(&LeakPreventionError{
			Type:   object.ClassOf(original),
			Reason: "marked internal to the membrane",
		}, dst)
	}

	if dst == home {
		m.metrics.ObserveConversion(monitoring.ResultOriginal)
		return original, nil
	}

	h, ok := m.registry.handler(dst, nil)
	if !ok {
		return nil, m.failed(fmt.Errorf("%w: %q", ErrUnknownField, dst))
	}
	if h.revoked.Load() {
		return nil, m.failed(&RevokedAccessError{Op: "convert", Field: dst})
	}

	return m.representationFor(rec, original, home, h)
}

// representationFor returns the existing representation of original in h's
// field or builds one, running h's listeners
func (m *Membrane) representationFor(rec *record, original object.Object, home Field, h *GraphHandler) (object.Value, error) {
	reg := m.registry

	reg.mu.Lock()
	if rec == nil {
		// another conversion may have registered it meanwhile
		if existing, isRep := reg.lookupLocked(original); existing != nil && !isRep {
			rec = existing
		} else {
			rec = reg.newRecordLocked(original, home)
			m.metrics.RecordCreated()
		}
	}
	if rep := rec.representation(h.field); rep != nil {
		reg.mu.Unlock()
		m.metrics.ObserveConversion(monitoring.ResultCached)
		return rep, nil
	}

	proxy := newProxy(rec, h)
	if rec.pending == nil {
		rec.pending = make(map[Field]object.Object)
	}
	rec.pending[h.field] = proxy
	rec.reps[h.field] = weakIdentity(proxy)
	reg.trackLocked(proxy, rec)
	reg.mu.Unlock()

	meta := &ProxyMeta{
		target:  original,
		field:   h.field,
		proxy:   proxy,
		handler: h,
	}
	err := h.runListeners(meta)

	reg.mu.Lock()
	delete(rec.pending, h.field)
	if err != nil {
		delete(rec.reps, h.field)
		reg.untrackLocked(proxy)
		reg.mu.Unlock()

		m.metrics.ListenerAborted(string(h.field))
		m.metrics.ObserveConversion(monitoring.ResultError)
		m.logger.Warn("Proxy listener aborted conversion",
			zap.String("field", string(h.field)),
			zap.Uint64("record", rec.id),
			zap.Error(err))
		return nil, err
	}

	result, err := m.settle(rec, h, proxy, meta.proxy)
	reg.mu.Unlock()
	if err != nil {
		m.metrics.ObserveConversion(monitoring.ResultError)
		return nil, err
	}

	m.metrics.ProxyCreated(string(h.field))
	m.metrics.ObserveConversion(monitoring.ResultCreated)
	m.logger.Debug("Proxy created",
		zap.String("field", string(h.field)),
		zap.String("home", string(rec.home)),
		zap.Uint64("record", rec.id),
		zap.String("class", object.ClassOf(original)))
	return result, nil
}

// settle stores a listener's substitute, if any, as the representation,
// wrapped so that revocation reaches it. Caller holds registry.mu.
func (m *Membrane) settle(rec *record, h *GraphHandler, built object.Object, final object.Value) (object.Value, error) {
	if object.SameValue(built, final) {
		return built, nil
	}

	substitute, ok := final.(object.Object)
	if !ok {
		m.discardLocked(rec, h.field, built)
		return nil, &InvariantViolationError{Op: "convert", Reason: "listener substituted a non-object representation"}
	}
	if other, _ := m.registry.lookupLocked(substitute); other != nil {
		m.discardLocked(rec, h.field, built)
		return nil, &InvariantViolationError{Op: "convert", Reason: "substituted representation is already tracked"}
	}

	m.registry.untrackLocked(built)
	rep := newSubstitute(rec, h, substitute)
	if rec.pinned == nil {
		rec.pinned = make(map[Field]object.Object)
	}
	rec.pinned[h.field] = rep
	rec.reps[h.field] = weakIdentity(rep)
	m.registry.trackLocked(rep, rec)
	m.registry.pins[rec.id] = rec
	return rep, nil
}

func (m *Membrane) discardLocked(rec *record, field Field, built object.Object) {
	delete(rec.reps, field)
	m.registry.untrackLocked(built)
}

// checkCrossable rejects Go values that are neither primitives nor objects,
// engine internals above all
func checkCrossable(v object.Value) error {
	switch v.(type) {
	case *Membrane, *GraphHandler, *RuleSet, *ProxyMeta, *record, *registry:
		return &LeakPreventionError{Type: fmt.Sprintf("%T", v), Reason: "membrane bookkeeping never crosses a boundary"}
	case object.Object:
		return nil
	}
	if object.IsPrimitive(v) {
		return nil
	}
	return &LeakPreventionError{Type: fmt.Sprintf("%T", v), Reason: "only primitives and objects may cross a boundary"}
}

func (m *Membrane) leakBlocked(err error, dst Field) error {
	m.metrics.LeakBlocked()
	m.metrics.ObserveConversion(monitoring.ResultError)
	m.logger.Warn("Leak prevented", zap.String("field", string(dst)), zap.Error(err))
	return err
}

func (m *Membrane) failed(err error) error {
	m.metrics.ObserveConversion(monitoring.ResultError)
	return err
}
