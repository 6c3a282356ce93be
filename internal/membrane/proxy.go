package membrane

import (
	"sync"
	"weak"

	"github.com/GriffinCanCode/AgentOS/membrane/internal/object"
)

// Proxy is the representation of an original in a foreign field. Every
// operation is intercepted by the field's GraphHandler.
type Proxy struct {
	identity *object.Identity
	self     object.Object
	rec      *record
	handler  *GraphHandler

	mu    sync.Mutex
	rules ruleState
}

// callableProxy represents a callable original
type callableProxy struct {
	*Proxy
}

func newProxy(rec *record, h *GraphHandler) object.Object {
	p := &Proxy{rec: rec, handler: h}

	if _, ok := rec.original.(object.Callable); ok {
		cp := &callableProxy{Proxy: p}
		p.identity = object.NewIdentity(cp)
		p.self = cp
		return cp
	}

	p.identity = object.NewIdentity(p)
	p.self = p
	return p
}

// asProxy unwraps v to the engine's proxy, nil if v is not one
func asProxy(v object.Value) *Proxy {
	switch p := v.(type) {
	case *Proxy:
		return p
	case *callableProxy:
		return p.Proxy
	}
	return nil
}

func weakIdentity(obj object.Object) weak.Pointer[object.Identity] {
	return weak.Make(obj.Identity())
}

// Field returns the field this proxy lives in
func (p *Proxy) Field() Field {
	return p.handler.field
}

// Revoked reports whether operations on the proxy fail
func (p *Proxy) Revoked() bool {
	return p.handler.check(p, "") != nil
}

// Identity returns the proxy's own identity, distinct from the original's
func (p *Proxy) Identity() *object.Identity {
	return p.identity
}

func (p *Proxy) GetPrototypeOf() (object.Object, error) {
	return p.handler.getPrototypeOf(p)
}

func (p *Proxy) SetPrototypeOf(proto object.Object) (bool, error) {
	return p.handler.setPrototypeOf(p, proto)
}

func (p *Proxy) IsExtensible() (bool, error) {
	return p.handler.isExtensible(p)
}

func (p *Proxy) PreventExtensions() (bool, error) {
	return p.handler.preventExtensions(p)
}

func (p *Proxy) GetOwnProperty(key object.Key) (*object.Descriptor, error) {
	return p.handler.getOwnPropertyDescriptor(p, key)
}

func (p *Proxy) DefineOwnProperty(key object.Key, desc object.Descriptor) (bool, error) {
	return p.handler.defineProperty(p, key, desc)
}

func (p *Proxy) Has(key object.Key) (bool, error) {
	return p.handler.has(p, key)
}

func (p *Proxy) Get(key object.Key, receiver object.Value) (object.Value, error) {
	return p.handler.get(p, key, receiver)
}

func (p *Proxy) Set(key object.Key, value object.Value, receiver object.Value) (bool, error) {
	return p.handler.set(p, key, value, receiver)
}

func (p *Proxy) Delete(key object.Key) (bool, error) {
	return p.handler.deleteProperty(p, key)
}

func (p *Proxy) OwnKeys() ([]object.Key, error) {
	return p.handler.ownKeys(p)
}

// ClassName mirrors the original's class tag
func (p *Proxy) ClassName() string {
	return object.ClassOf(p.rec.original)
}

func (cp *callableProxy) Call(this object.Value, args []object.Value) (object.Value, error) {
	return cp.handler.apply(cp.Proxy, this, args)
}

func (cp *callableProxy) Construct(args []object.Value, newTarget object.Object) (object.Object, error) {
	return cp.handler.construct(cp.Proxy, args, newTarget)
}
