package object

// Identity is the per-object identity cell. It is allocated once per object
// and owned by it; weak tables key on *Identity.
type Identity struct {
	owner Object
}

// NewIdentity creates the identity cell for owner
func NewIdentity(owner Object) *Identity {
	return &Identity{owner: owner}
}

// Owner returns the object this identity belongs to
func (id *Identity) Owner() Object {
	return id.owner
}

// Object is the interception protocol every non-primitive value implements
type Object interface {
	Identity() *Identity

	GetPrototypeOf() (Object, error)
	SetPrototypeOf(proto Object) (bool, error)
	IsExtensible() (bool, error)
	PreventExtensions() (bool, error)

	// GetOwnProperty returns nil when key is not an own property
	GetOwnProperty(key Key) (*Descriptor, error)
	DefineOwnProperty(key Key, desc Descriptor) (bool, error)

	Has(key Key) (bool, error)
	Get(key Key, receiver Value) (Value, error)
	Set(key Key, value Value, receiver Value) (bool, error)
	Delete(key Key) (bool, error)
	OwnKeys() ([]Key, error)
}

// Callable is an object that can be invoked
type Callable interface {
	Object
	Call(this Value, args []Value) (Value, error)
}

// Constructor is a callable that can create instances
type Constructor interface {
	Callable
	Construct(args []Value, newTarget Object) (Object, error)
}

// ClassOf returns the class tag of an object, "Object" if it has none
func ClassOf(o Object) string {
	if c, ok := o.(interface{ ClassName() string }); ok {
		if name := c.ClassName(); name != "" {
			return name
		}
	}
	return "Object"
}

// Get reads a string-named property with o as receiver
func Get(o Object, name string) (Value, error) {
	return o.Get(StringKey(name), o)
}

// Set writes a string-named property with o as receiver
func Set(o Object, name string, value Value) (bool, error) {
	return o.Set(StringKey(name), value, o)
}

// Call invokes v if it is callable, throwing a TypeError otherwise
func Call(v Value, this Value, args ...Value) (Value, error) {
	fn, ok := v.(Callable)
	if !ok {
		return nil, TypeError("%s is not a function", TypeOf(v))
	}
	return fn.Call(this, args)
}

// Construct invokes v as a constructor with itself as new target
func Construct(v Value, args ...Value) (Object, error) {
	ctor, ok := v.(Constructor)
	if !ok {
		return nil, TypeError("%s is not a constructor", TypeOf(v))
	}
	return ctor.Construct(args, ctor)
}

// InstanceOf walks o's prototype chain looking for ctor.prototype
func InstanceOf(o Object, ctor Object) (bool, error) {
	protoVal, err := ctor.Get(StringKey("prototype"), ctor)
	if err != nil {
		return false, err
	}
	proto, ok := protoVal.(Object)
	if !ok {
		return false, nil
	}

	current, err := o.GetPrototypeOf()
	for err == nil && current != nil {
		if current.Identity() == proto.Identity() {
			return true, nil
		}
		current, err = current.GetPrototypeOf()
	}
	return false, err
}
