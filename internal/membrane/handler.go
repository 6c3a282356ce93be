package membrane

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/membrane/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/membrane/internal/object"
)

// GraphHandler intercepts every operation on the proxies of one field. It
// maps arguments into the original's home field, forwards, and maps results
// and thrown values back.
type GraphHandler struct {
	field    Field
	membrane *Membrane

	mu        sync.Mutex
	listeners []listenerEntry
	frozen    bool

	revoked atomic.Bool
}

func newGraphHandler(m *Membrane, field Field) *GraphHandler {
	return &GraphHandler{field: field, membrane: m}
}

// Field returns the handler's field
func (h *GraphHandler) Field() Field {
	return h.field
}

// RevokeEverything disables every proxy of this field, existing and future
func (h *GraphHandler) RevokeEverything() {
	if h.revoked.Swap(true) {
		return
	}
	h.membrane.metrics.Revoked(monitoring.ScopeField)
	h.membrane.logger.Info("Field revoked", zap.String("field", string(h.field)))
}

// Revoked reports whether the field has been revoked
func (h *GraphHandler) Revoked() bool {
	return h.revoked.Load()
}

func (h *GraphHandler) check(p *Proxy, op string) error {
	if h.membrane.revoked.Load() || h.revoked.Load() || p.rec.revoked.Load() {
		return &RevokedAccessError{Op: op, Field: h.field}
	}
	return nil
}

// toHome maps a value seen in this field to the proxy's home field
func (h *GraphHandler) toHome(p *Proxy, v object.Value) (object.Value, error) {
	return h.membrane.convert(v, h.field, p.rec.home)
}

// fromHome maps a value of the proxy's home field into this field
func (h *GraphHandler) fromHome(p *Proxy, v object.Value) (object.Value, error) {
	return h.membrane.convert(v, p.rec.home, h.field)
}

func (h *GraphHandler) objectFromHome(p *Proxy, obj object.Object) (object.Object, error) {
	if obj == nil {
		return nil, nil
	}
	v, err := h.fromHome(p, obj)
	if err != nil {
		return nil, err
	}
	return v.(object.Object), nil
}

func (h *GraphHandler) objectToHome(p *Proxy, obj object.Object) (object.Object, error) {
	if obj == nil {
		return nil, nil
	}
	v, err := h.toHome(p, obj)
	if err != nil {
		return nil, err
	}
	return v.(object.Object), nil
}

// receiverHome maps a receiver or this value; the proxy stands for its original
func (h *GraphHandler) receiverHome(p *Proxy, receiver object.Value) (object.Value, error) {
	if receiver == nil || object.SameValue(receiver, p.self) {
		return p.rec.original, nil
	}
	return h.toHome(p, receiver)
}

func (h *GraphHandler) argsToHome(p *Proxy, args []object.Value) ([]object.Value, error) {
	out := make([]object.Value, len(args))
	for i, arg := range args {
		v, err := h.toHome(p, arg)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// rethrow converts the value of a thrown exception from the home field into
// this field. Other errors pass through.
func (h *GraphHandler) rethrow(p *Proxy, err error) error {
	var thrown *object.Thrown
	if !errors.As(err, &thrown) {
		return err
	}
	v, convErr := h.fromHome(p, thrown.Value)
	if convErr != nil {
		return convErr
	}
	return object.Throw(v)
}

func (h *GraphHandler) descFromHome(p *Proxy, d *object.Descriptor) (*object.Descriptor, error) {
	out := *d
	if !d.IsAccessor() {
		v, err := h.fromHome(p, d.Value)
		if err != nil {
			return nil, err
		}
		out.Value = v
		return &out, nil
	}

	var err error
	if out.Getter, err = h.callableFromHome(p, d.Getter); err != nil {
		return nil, err
	}
	if out.Setter, err = h.callableFromHome(p, d.Setter); err != nil {
		return nil, err
	}
	return &out, nil
}

func (h *GraphHandler) descToHome(p *Proxy, d object.Descriptor) (object.Descriptor, error) {
	out := d
	if !d.IsAccessor() {
		v, err := h.toHome(p, d.Value)
		if err != nil {
			return out, err
		}
		out.Value = v
		return out, nil
	}

	var err error
	if out.Getter, err = h.callableToHome(p, d.Getter); err != nil {
		return out, err
	}
	if out.Setter, err = h.callableToHome(p, d.Setter); err != nil {
		return out, err
	}
	return out, nil
}

func (h *GraphHandler) callableFromHome(p *Proxy, fn object.Callable) (object.Callable, error) {
	if fn == nil {
		return nil, nil
	}
	v, err := h.fromHome(p, fn)
	if err != nil {
		return nil, err
	}
	return v.(object.Callable), nil
}

func (h *GraphHandler) callableToHome(p *Proxy, fn object.Callable) (object.Callable, error) {
	if fn == nil {
		return nil, nil
	}
	v, err := h.toHome(p, fn)
	if err != nil {
		return nil, err
	}
	return v.(object.Callable), nil
}

func (h *GraphHandler) getPrototypeOf(p *Proxy) (object.Object, error) {
	if err := h.check(p, "getPrototypeOf"); err != nil {
		return nil, err
	}
	proto, err := p.rec.original.GetPrototypeOf()
	if err != nil {
		return nil, h.rethrow(p, err)
	}
	return h.objectFromHome(p, proto)
}

func (h *GraphHandler) setPrototypeOf(p *Proxy, proto object.Object) (bool, error) {
	if err := h.check(p, "setPrototypeOf"); err != nil {
		return false, err
	}
	homeProto, err := h.objectToHome(p, proto)
	if err != nil {
		return false, err
	}
	ok, err := p.rec.original.SetPrototypeOf(homeProto)
	if err != nil {
		return false, h.rethrow(p, err)
	}
	return ok, nil
}

func (h *GraphHandler) isExtensible(p *Proxy) (bool, error) {
	if err := h.check(p, "isExtensible"); err != nil {
		return false, err
	}
	ok, err := p.rec.original.IsExtensible()
	if err != nil {
		return false, h.rethrow(p, err)
	}
	return ok, nil
}

// preventExtensions forwards and also seals the field's local store
func (h *GraphHandler) preventExtensions(p *Proxy) (bool, error) {
	if err := h.check(p, "preventExtensions"); err != nil {
		return false, err
	}
	ok, err := p.rec.original.PreventExtensions()
	if err != nil {
		return false, h.rethrow(p, err)
	}
	if ok {
		if shadow := p.seal(); shadow != nil {
			shadow.PreventExtensions()
		}
	}
	return ok, nil
}

func (h *GraphHandler) getOwnPropertyDescriptor(p *Proxy, key object.Key) (*object.Descriptor, error) {
	if err := h.check(p, "getOwnPropertyDescriptor"); err != nil {
		return nil, err
	}

	rules := p.view()
	if rules.shadowHas(key) {
		return rules.shadow.GetOwnProperty(key)
	}
	if rules.isDeleted(key) {
		return nil, nil
	}

	desc, err := p.rec.original.GetOwnProperty(key)
	if err != nil {
		return nil, h.rethrow(p, err)
	}
	if desc == nil {
		return nil, nil
	}
	if !rules.visible(key) {
		if !desc.Configurable {
			return nil, hiddenNonConfigurable("getOwnPropertyDescriptor", key)
		}
		return nil, nil
	}
	return h.descFromHome(p, desc)
}

func (h *GraphHandler) defineProperty(p *Proxy, key object.Key, desc object.Descriptor) (bool, error) {
	if err := h.check(p, "defineProperty"); err != nil {
		return false, err
	}

	local, err := h.writesLocally(p, key)
	if err != nil || local == writeRefused {
		return false, err
	}
	if local == writeLocal {
		if p.view().visible(key) {
			current, err := p.rec.original.GetOwnProperty(key)
			if err != nil {
				return false, h.rethrow(p, err)
			}
			if current != nil && !current.Configurable {
				return false, &InvariantViolationError{
					Op:     "defineProperty",
					Key:    key.String(),
					Reason: "local slot would shadow a non-configurable property",
				}
			}
		}
		return p.localStore().DefineOwnProperty(key, desc)
	}

	homeDesc, err := h.descToHome(p, desc)
	if err != nil {
		return false, err
	}
	ok, err := p.rec.original.DefineOwnProperty(key, homeDesc)
	if err != nil {
		return false, h.rethrow(p, err)
	}
	return ok, nil
}

func (h *GraphHandler) has(p *Proxy, key object.Key) (bool, error) {
	if err := h.check(p, "has"); err != nil {
		return false, err
	}
	if key == graphNameKey && h.membrane.showGraphName {
		return true, nil
	}

	rules := p.view()
	if rules.shadowHas(key) {
		return true, nil
	}
	if rules.isDeleted(key) || !rules.visible(key) {
		proto, err := h.getPrototypeOf(p)
		if err != nil || proto == nil {
			return false, err
		}
		return proto.Has(key)
	}

	ok, err := p.rec.original.Has(key)
	if err != nil {
		return false, h.rethrow(p, err)
	}
	return ok, nil
}

func (h *GraphHandler) get(p *Proxy, key object.Key, receiver object.Value) (object.Value, error) {
	if err := h.check(p, "get"); err != nil {
		return nil, err
	}
	if key == graphNameKey && h.membrane.showGraphName {
		return string(h.field), nil
	}
	if receiver == nil {
		receiver = p.self
	}

	rules := p.view()
	if rules.shadowHas(key) {
		return rules.shadow.Get(key, receiver)
	}
	if rules.isDeleted(key) || !rules.visible(key) {
		proto, err := h.getPrototypeOf(p)
		if err != nil || proto == nil {
			return nil, err
		}
		return proto.Get(key, receiver)
	}

	homeReceiver, err := h.receiverHome(p, receiver)
	if err != nil {
		return nil, err
	}
	v, err := p.rec.original.Get(key, homeReceiver)
	if err != nil {
		return nil, h.rethrow(p, err)
	}
	return h.fromHome(p, v)
}

func (h *GraphHandler) set(p *Proxy, key object.Key, value object.Value, receiver object.Value) (bool, error) {
	if err := h.check(p, "set"); err != nil {
		return false, err
	}

	local, err := h.writesLocally(p, key)
	if err != nil || local == writeRefused {
		return false, err
	}
	if local == writeLocal {
		shadow := p.localStore()
		return shadow.Set(key, value, shadow)
	}

	homeValue, err := h.toHome(p, value)
	if err != nil {
		return false, err
	}
	homeReceiver, err := h.receiverHome(p, receiver)
	if err != nil {
		return false, err
	}
	ok, err := p.rec.original.Set(key, homeValue, homeReceiver)
	if err != nil {
		return false, h.rethrow(p, err)
	}
	return ok, nil
}

func (h *GraphHandler) deleteProperty(p *Proxy, key object.Key) (bool, error) {
	if err := h.check(p, "deleteProperty"); err != nil {
		return false, err
	}

	rules := p.view()
	if !rules.requireLocalDelete {
		switch {
		case rules.shadowHas(key):
			return rules.shadow.Delete(key)
		case rules.isDeleted(key), !rules.visible(key):
			return true, nil
		}
		ok, err := p.rec.original.Delete(key)
		if err != nil {
			return false, h.rethrow(p, err)
		}
		return ok, nil
	}

	if rules.shadowHas(key) {
		if ok, err := rules.shadow.Delete(key); !ok || err != nil {
			return false, err
		}
	}
	if rules.isDeleted(key) || !rules.visible(key) {
		return true, nil
	}

	desc, err := p.rec.original.GetOwnProperty(key)
	if err != nil {
		return false, h.rethrow(p, err)
	}
	if desc == nil {
		return true, nil
	}
	if !desc.Configurable {
		return false, nil
	}
	p.markDeleted(key)
	return true, nil
}

// ownKeys lists the original's visible keys in their order, followed by
// visible local ones
func (h *GraphHandler) ownKeys(p *Proxy) ([]object.Key, error) {
	if err := h.check(p, "ownKeys"); err != nil {
		return nil, err
	}

	keys, err := p.rec.original.OwnKeys()
	if err != nil {
		return nil, h.rethrow(p, err)
	}

	rules := p.view()
	seen := make(map[object.Key]struct{}, len(keys))
	merged := make([]object.Key, 0, len(keys))
	for _, key := range keys {
		if !rules.visible(key) {
			desc, err := p.rec.original.GetOwnProperty(key)
			if err != nil {
				return nil, h.rethrow(p, err)
			}
			if desc != nil && !desc.Configurable {
				return nil, hiddenNonConfigurable("ownKeys", key)
			}
			continue
		}
		if rules.isDeleted(key) && !rules.shadowHas(key) {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, key)
	}

	// shadow-only keys follow, through the same filter
	if rules.shadow != nil {
		local, _ := rules.shadow.OwnKeys()
		for _, key := range local {
			if _, dup := seen[key]; dup || !rules.visible(key) {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, key)
		}
	}
	return merged, nil
}

func (h *GraphHandler) apply(p *Proxy, this object.Value, args []object.Value) (object.Value, error) {
	if err := h.check(p, "apply"); err != nil {
		return nil, err
	}
	fn, ok := p.rec.original.(object.Callable)
	if !ok {
		return nil, object.TypeError("%s is not a function", object.ClassOf(p.rec.original))
	}

	var homeThis object.Value
	if this != nil {
		var err error
		if homeThis, err = h.receiverHome(p, this); err != nil {
			return nil, err
		}
	}
	homeArgs, err := h.argsToHome(p, args)
	if err != nil {
		return nil, err
	}

	v, err := fn.Call(homeThis, homeArgs)
	if err != nil {
		return nil, h.rethrow(p, err)
	}
	return h.fromHome(p, v)
}

func (h *GraphHandler) construct(p *Proxy, args []object.Value, newTarget object.Object) (object.Object, error) {
	if err := h.check(p, "construct"); err != nil {
		return nil, err
	}
	ctor, ok := p.rec.original.(object.Constructor)
	if !ok {
		return nil, object.TypeError("%s is not a constructor", object.ClassOf(p.rec.original))
	}

	homeArgs, err := h.argsToHome(p, args)
	if err != nil {
		return nil, err
	}
	var homeTarget object.Object = ctor
	if newTarget != nil && !object.SameValue(newTarget, p.self) {
		if homeTarget, err = h.objectToHome(p, newTarget); err != nil {
			return nil, err
		}
	}

	instance, err := ctor.Construct(homeArgs, homeTarget)
	if err != nil {
		return nil, h.rethrow(p, err)
	}
	return h.objectFromHome(p, instance)
}

type writeTarget int

const (
	writeForward writeTarget = iota
	writeLocal
	writeRefused
)

// writesLocally decides where a define or set of key lands
func (h *GraphHandler) writesLocally(p *Proxy, key object.Key) (writeTarget, error) {
	rules := p.view()
	if rules.shadowHas(key) || rules.isDeleted(key) {
		return writeLocal, nil
	}
	if !rules.visible(key) {
		if rules.storeUnknownAsLocal {
			return writeLocal, nil
		}
		return writeRefused, nil
	}
	if !rules.storeUnknownAsLocal {
		return writeForward, nil
	}

	known, err := p.rec.original.Has(key)
	if err != nil {
		return writeRefused, h.rethrow(p, err)
	}
	if !known {
		return writeLocal, nil
	}
	return writeForward, nil
}

func hiddenNonConfigurable(op string, key object.Key) error {
	return &InvariantViolationError{
		Op:     op,
		Key:    key.String(),
		Reason: fmt.Sprintf("key filter hides non-configurable property %s", key),
	}
}
