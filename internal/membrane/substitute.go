package membrane

import (
	"github.com/GriffinCanCode/AgentOS/membrane/internal/object"
)

// substitute is the representation built from a listener's replacement
// object. It forwards to the replacement unchanged, since the listener chose
// it for this field, but fails once the record, field or membrane is revoked.
type substitute struct {
	identity *object.Identity
	target   object.Object
	rec      *record
	handler  *GraphHandler
}

type callableSubstitute struct {
	*substitute
	fn object.Callable
}

func newSubstitute(rec *record, h *GraphHandler, target object.Object) object.Object {
	s := &substitute{target: target, rec: rec, handler: h}

	if fn, ok := target.(object.Callable); ok {
		cs := &callableSubstitute{substitute: s, fn: fn}
		s.identity = object.NewIdentity(cs)
		return cs
	}

	s.identity = object.NewIdentity(s)
	return s
}

func asSubstitute(v object.Value) *substitute {
	switch s := v.(type) {
	case *substitute:
		return s
	case *callableSubstitute:
		return s.substitute
	}
	return nil
}

func (s *substitute) check(op string) error {
	h := s.handler
	if h.membrane.revoked.Load() || h.revoked.Load() || s.rec.revoked.Load() {
		return &RevokedAccessError{Op: op, Field: h.field}
	}
	return nil
}

func (s *substitute) Identity() *object.Identity {
	return s.identity
}

func (s *substitute) GetPrototypeOf() (object.Object, error) {
	if err := s.check("getPrototypeOf"); err != nil {
		return nil, err
	}
	return s.target.GetPrototypeOf()
}

func (s *substitute) SetPrototypeOf(proto object.Object) (bool, error) {
	if err := s.check("setPrototypeOf"); err != nil {
		return false, err
	}
	return s.target.SetPrototypeOf(proto)
}

func (s *substitute) IsExtensible() (bool, error) {
	if err := s.check("isExtensible"); err != nil {
		return false, err
	}
	return s.target.IsExtensible()
}

func (s *substitute) PreventExtensions() (bool, error) {
	if err := s.check("preventExtensions"); err != nil {
		return false, err
	}
	return s.target.PreventExtensions()
}

func (s *substitute) GetOwnProperty(key object.Key) (*object.Descriptor, error) {
	if err := s.check("getOwnPropertyDescriptor"); err != nil {
		return nil, err
	}
	return s.target.GetOwnProperty(key)
}

func (s *substitute) DefineOwnProperty(key object.Key, desc object.Descriptor) (bool, error) {
	if err := s.check("defineProperty"); err != nil {
		return false, err
	}
	return s.target.DefineOwnProperty(key, desc)
}

func (s *substitute) Has(key object.Key) (bool, error) {
	if err := s.check("has"); err != nil {
		return false, err
	}
	return s.target.Has(key)
}

func (s *substitute) Get(key object.Key, receiver object.Value) (object.Value, error) {
	if err := s.check("get"); err != nil {
		return nil, err
	}
	return s.target.Get(key, s.receiver(receiver))
}

func (s *substitute) Set(key object.Key, value object.Value, receiver object.Value) (bool, error) {
	if err := s.check("set"); err != nil {
		return false, err
	}
	return s.target.Set(key, value, s.receiver(receiver))
}

func (s *substitute) Delete(key object.Key) (bool, error) {
	if err := s.check("deleteProperty"); err != nil {
		return false, err
	}
	return s.target.Delete(key)
}

func (s *substitute) OwnKeys() ([]object.Key, error) {
	if err := s.check("ownKeys"); err != nil {
		return nil, err
	}
	return s.target.OwnKeys()
}

// ClassName mirrors the replacement's class tag
func (s *substitute) ClassName() string {
	return object.ClassOf(s.target)
}

// receiver maps the wrapper itself onto the replacement so accessors and
// writes land where they would without the wrapper
func (s *substitute) receiver(v object.Value) object.Value {
	if obj, ok := v.(object.Object); ok && obj.Identity() == s.identity {
		return s.target
	}
	return v
}

func (cs *callableSubstitute) Call(this object.Value, args []object.Value) (object.Value, error) {
	if err := cs.check("apply"); err != nil {
		return nil, err
	}
	return cs.fn.Call(cs.receiver(this), args)
}

func (cs *callableSubstitute) Construct(args []object.Value, newTarget object.Object) (object.Object, error) {
	if err := cs.check("construct"); err != nil {
		return nil, err
	}
	ctor, ok := cs.target.(object.Constructor)
	if !ok {
		return nil, object.TypeError("%s is not a constructor", object.ClassOf(cs.target))
	}
	if newTarget == nil || newTarget.Identity() == cs.identity {
		newTarget = ctor
	}
	return ctor.Construct(args, newTarget)
}
