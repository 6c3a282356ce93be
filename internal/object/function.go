package object

// NativeFunc implements a function body
type NativeFunc func(this Value, args []Value) (Value, error)

// Initializer populates a freshly constructed instance
type Initializer func(this *Ordinary, args []Value) error

// Function is a callable ordinary object, optionally constructible
type Function struct {
	*Ordinary
	name string
	call NativeFunc
	init Initializer
}

// NewFunction creates a plain callable function
func NewFunction(name string, arity int, fn NativeFunc) *Function {
	f := &Function{
		Ordinary: newOrdinary(nil, "Function"),
		name:     name,
		call:     fn,
	}
	f.adopt(f)
	f.defineMeta(arity)
	return f
}

// NewConstructor creates a constructible function with its own prototype
// object. Instances get the constructor's name as class tag.
func NewConstructor(name string, arity int, init Initializer) *Function {
	f := &Function{
		Ordinary: newOrdinary(nil, "Function"),
		name:     name,
		init:     init,
	}
	f.adopt(f)
	f.defineMeta(arity)

	proto := NewOrdinary(nil)
	proto.DefineOwnProperty(StringKey("constructor"), DataDescriptor(f, true, false, true))
	f.DefineOwnProperty(StringKey("prototype"), DataDescriptor(proto, true, false, false))
	return f
}

func (f *Function) defineMeta(arity int) {
	f.DefineOwnProperty(StringKey("name"), DataDescriptor(f.name, false, false, true))
	f.DefineOwnProperty(StringKey("length"), DataDescriptor(arity, false, false, true))
}

// Name returns the function's name
func (f *Function) Name() string {
	return f.name
}

// Prototype returns the object instances inherit from, if any
func (f *Function) Prototype() *Ordinary {
	v, _ := f.Get(StringKey("prototype"), f)
	proto, _ := v.(*Ordinary)
	return proto
}

// Call invokes the function body
func (f *Function) Call(this Value, args []Value) (Value, error) {
	if f.call == nil {
		return nil, TypeError("class constructor %s cannot be invoked without 'new'", f.name)
	}
	return f.call(this, args)
}

// Construct creates an instance whose prototype is newTarget.prototype
func (f *Function) Construct(args []Value, newTarget Object) (Object, error) {
	if f.init == nil {
		return nil, TypeError("%s is not a constructor", f.name)
	}
	if newTarget == nil {
		newTarget = f
	}

	protoVal, err := newTarget.Get(StringKey("prototype"), newTarget)
	if err != nil {
		return nil, err
	}
	proto, ok := protoVal.(Object)
	if !ok {
		proto = f.Prototype()
	}

	instance := NewOrdinaryWithClass(proto, f.name)
	if err := f.init(instance, args); err != nil {
		return nil, err
	}
	return instance, nil
}

// FunctionName returns the name of a *Function, or "" for anything else
func FunctionName(o Object) string {
	if f, ok := o.(*Function); ok {
		return f.name
	}
	return ""
}
