package object

// Ordinary is an ordinary object: ordered own properties, a prototype and an
// extensible flag. It is not safe for concurrent use.
type Ordinary struct {
	identity   *Identity
	self       Object
	class      string
	proto      Object
	extensible bool
	keys       []Key
	props      map[Key]*Descriptor
}

// NewOrdinary creates an extensible object with the given prototype
func NewOrdinary(proto Object) *Ordinary {
	return NewOrdinaryWithClass(proto, "")
}

// NewOrdinaryWithClass creates an object carrying a class tag
func NewOrdinaryWithClass(proto Object, class string) *Ordinary {
	o := newOrdinary(proto, class)
	o.adopt(o)
	return o
}

func newOrdinary(proto Object, class string) *Ordinary {
	return &Ordinary{
		class:      class,
		proto:      proto,
		extensible: true,
		props:      make(map[Key]*Descriptor),
	}
}

// adopt makes owner the identity holder and default receiver
func (o *Ordinary) adopt(owner Object) {
	o.identity = NewIdentity(owner)
	o.self = owner
}

// Identity returns the object's identity cell
func (o *Ordinary) Identity() *Identity {
	return o.identity
}

// ClassName returns the class tag
func (o *Ordinary) ClassName() string {
	return o.class
}

// SetClassName sets the class tag
func (o *Ordinary) SetClassName(class string) {
	o.class = class
}

// GetPrototypeOf returns the prototype, nil for none
func (o *Ordinary) GetPrototypeOf() (Object, error) {
	return o.proto, nil
}

// SetPrototypeOf replaces the prototype, refusing cycles and frozen shapes
func (o *Ordinary) SetPrototypeOf(proto Object) (bool, error) {
	if SameValue(proto, o.proto) {
		return true, nil
	}
	if !o.extensible {
		return false, nil
	}

	for p := proto; p != nil; {
		if p.Identity() == o.identity {
			return false, nil
		}
		next, err := p.GetPrototypeOf()
		if err != nil {
			return false, err
		}
		p = next
	}

	o.proto = proto
	return true, nil
}

// IsExtensible reports whether new properties may be added
func (o *Ordinary) IsExtensible() (bool, error) {
	return o.extensible, nil
}

// PreventExtensions forbids new properties
func (o *Ordinary) PreventExtensions() (bool, error) {
	o.extensible = false
	return true, nil
}

// GetOwnProperty returns a copy of the own descriptor for key
func (o *Ordinary) GetOwnProperty(key Key) (*Descriptor, error) {
	desc, ok := o.props[key]
	if !ok {
		return nil, nil
	}
	cp := *desc
	return &cp, nil
}

// DefineOwnProperty creates or reconfigures an own property
func (o *Ordinary) DefineOwnProperty(key Key, desc Descriptor) (bool, error) {
	current, ok := o.props[key]
	if !ok {
		if !o.extensible {
			return false, nil
		}
		o.keys = append(o.keys, key)
		d := desc
		o.props[key] = &d
		return true, nil
	}

	if !current.Configurable && !compatible(*current, desc) {
		return false, nil
	}
	*current = desc
	return true, nil
}

// Has reports whether key is an own or inherited property
func (o *Ordinary) Has(key Key) (bool, error) {
	if _, ok := o.props[key]; ok {
		return true, nil
	}
	if o.proto == nil {
		return false, nil
	}
	return o.proto.Has(key)
}

// Get reads key, invoking getters with receiver
func (o *Ordinary) Get(key Key, receiver Value) (Value, error) {
	if receiver == nil {
		receiver = o.self
	}

	desc, ok := o.props[key]
	if !ok {
		if o.proto == nil {
			return nil, nil
		}
		return o.proto.Get(key, receiver)
	}

	if desc.IsAccessor() {
		if desc.Getter == nil {
			return nil, nil
		}
		return desc.Getter.Call(receiver, nil)
	}
	return desc.Value, nil
}

// Set writes key following ordinary assignment semantics
func (o *Ordinary) Set(key Key, value Value, receiver Value) (bool, error) {
	if receiver == nil {
		receiver = o.self
	}

	desc, ok := o.props[key]
	if !ok {
		if o.proto != nil {
			return o.proto.Set(key, value, receiver)
		}
		desc = &Descriptor{Writable: true, Enumerable: true, Configurable: true}
	}

	if desc.IsAccessor() {
		if desc.Setter == nil {
			return false, nil
		}
		if _, err := desc.Setter.Call(receiver, []Value{value}); err != nil {
			return false, err
		}
		return true, nil
	}

	if !desc.Writable {
		return false, nil
	}

	target, ok := receiver.(Object)
	if !ok {
		return false, nil
	}

	if target.Identity() == o.identity {
		if current, exists := o.props[key]; exists {
			current.Value = value
			return true, nil
		}
		return o.DefineOwnProperty(key, DataDescriptor(value, true, true, true))
	}

	existing, err := target.GetOwnProperty(key)
	if err != nil {
		return false, err
	}
	if existing != nil {
		if existing.IsAccessor() || !existing.Writable {
			return false, nil
		}
		existing.Value = value
		return target.DefineOwnProperty(key, *existing)
	}
	return target.DefineOwnProperty(key, DataDescriptor(value, true, true, true))
}

// Delete removes an own configurable property
func (o *Ordinary) Delete(key Key) (bool, error) {
	desc, ok := o.props[key]
	if !ok {
		return true, nil
	}
	if !desc.Configurable {
		return false, nil
	}

	delete(o.props, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
	return true, nil
}

// OwnKeys returns string keys in insertion order, then symbol keys
func (o *Ordinary) OwnKeys() ([]Key, error) {
	keys := make([]Key, 0, len(o.keys))
	for _, k := range o.keys {
		if !k.IsSymbol() {
			keys = append(keys, k)
		}
	}
	for _, k := range o.keys {
		if k.IsSymbol() {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Put defines an enumerable, writable, configurable data property
func (o *Ordinary) Put(name string, value Value) *Ordinary {
	o.DefineOwnProperty(StringKey(name), DataDescriptor(value, true, true, true))
	return o
}

// PutHidden defines a non-enumerable, writable, configurable data property
func (o *Ordinary) PutHidden(name string, value Value) *Ordinary {
	o.DefineOwnProperty(StringKey(name), DataDescriptor(value, true, false, true))
	return o
}
