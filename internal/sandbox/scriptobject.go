package sandbox

import (
	"strconv"

	"github.com/dop251/goja"

	"github.com/GriffinCanCode/AgentOS/membrane/internal/object"
)

// scriptObject adapts an object created by a script to the object model. It
// is an original of the sandbox field; the host only ever sees proxies of it.
// Adapters must be used on the goroutine running the VM, which is the case
// for every call made while a script executes.
type scriptObject struct {
	b        *bridge
	obj      *goja.Object
	identity *object.Identity
}

// scriptFunction is a callable scriptObject
type scriptFunction struct {
	*scriptObject
	fn goja.Callable
}

func newScriptObject(b *bridge, obj *goja.Object) object.Object {
	so := &scriptObject{b: b, obj: obj}
	if fn, ok := goja.AssertFunction(obj); ok {
		sf := &scriptFunction{scriptObject: so, fn: fn}
		so.identity = object.NewIdentity(sf)
		return sf
	}
	so.identity = object.NewIdentity(so)
	return so
}

func asScriptObject(o object.Object) *scriptObject {
	switch so := o.(type) {
	case *scriptObject:
		return so
	case *scriptFunction:
		return so.scriptObject
	}
	return nil
}

func (so *scriptObject) Identity() *object.Identity {
	return so.identity
}

// ClassName reports the script class, e.g. Object, Array or Function
func (so *scriptObject) ClassName() string {
	return so.obj.ClassName()
}

func (so *scriptObject) reflect(op string, args ...goja.Value) (goja.Value, error) {
	v, err := so.b.callReflect(op, append([]goja.Value{so.obj}, args...)...)
	if err != nil {
		return nil, so.b.caught(err)
	}
	return v, nil
}

func (so *scriptObject) reflectBool(op string, args ...goja.Value) (bool, error) {
	v, err := so.reflect(op, args...)
	if err != nil {
		return false, err
	}
	return v.ToBoolean(), nil
}

func (so *scriptObject) receiver(v object.Value) (goja.Value, error) {
	if v == nil {
		return so.obj, nil
	}
	if o, ok := v.(object.Object); ok && o.Identity() == so.identity {
		return so.obj, nil
	}
	return so.b.toJS(v)
}

func (so *scriptObject) GetPrototypeOf() (object.Object, error) {
	v, err := so.reflect("getPrototypeOf")
	if err != nil {
		return nil, err
	}
	proto, err := so.b.fromJS(v)
	if err != nil {
		return nil, err
	}
	obj, _ := proto.(object.Object)
	return obj, nil
}

func (so *scriptObject) SetPrototypeOf(proto object.Object) (bool, error) {
	var p goja.Value = goja.Null()
	if proto != nil {
		var err error
		if p, err = so.b.toJS(proto); err != nil {
			return false, err
		}
	}
	return so.reflectBool("setPrototypeOf", p)
}

func (so *scriptObject) IsExtensible() (bool, error) {
	return so.reflectBool("isExtensible")
}

func (so *scriptObject) PreventExtensions() (bool, error) {
	return so.reflectBool("preventExtensions")
}

func (so *scriptObject) GetOwnProperty(key object.Key) (*object.Descriptor, error) {
	if key.IsSymbol() {
		return nil, nil
	}
	v, err := so.reflect("getOwnPropertyDescriptor", so.b.vm.ToValue(key.Name()))
	if err != nil {
		return nil, err
	}
	if goja.IsUndefined(v) {
		return nil, nil
	}

	d := v.ToObject(so.b.vm)
	flag := func(name string) bool {
		f := d.Get(name)
		return f != nil && f.ToBoolean()
	}

	getter, setter := d.Get("get"), d.Get("set")
	if getter != nil || setter != nil {
		desc := object.Descriptor{Enumerable: flag("enumerable"), Configurable: flag("configurable")}
		if desc.Getter, err = so.accessor(getter); err != nil {
			return nil, err
		}
		if desc.Setter, err = so.accessor(setter); err != nil {
			return nil, err
		}
		return &desc, nil
	}

	value, err := so.b.fromJS(d.Get("value"))
	if err != nil {
		return nil, err
	}
	desc := object.DataDescriptor(value, flag("writable"), flag("enumerable"), flag("configurable"))
	return &desc, nil
}

func (so *scriptObject) accessor(v goja.Value) (object.Callable, error) {
	fn, err := so.b.fromJS(v)
	if err != nil {
		return nil, err
	}
	c, _ := fn.(object.Callable)
	return c, nil
}

func (so *scriptObject) DefineOwnProperty(key object.Key, desc object.Descriptor) (bool, error) {
	if key.IsSymbol() {
		return false, nil
	}

	d := so.b.vm.NewObject()
	if desc.IsAccessor() {
		if desc.Getter != nil {
			g, err := so.b.toJS(desc.Getter)
			if err != nil {
				return false, err
			}
			d.Set("get", g)
		}
		if desc.Setter != nil {
			s, err := so.b.toJS(desc.Setter)
			if err != nil {
				return false, err
			}
			d.Set("set", s)
		}
	} else {
		v, err := so.b.toJS(desc.Value)
		if err != nil {
			return false, err
		}
		d.Set("value", v)
		d.Set("writable", desc.Writable)
	}
	d.Set("enumerable", desc.Enumerable)
	d.Set("configurable", desc.Configurable)

	return so.reflectBool("defineProperty", so.b.vm.ToValue(key.Name()), d)
}

func (so *scriptObject) Has(key object.Key) (bool, error) {
	if key.IsSymbol() {
		return false, nil
	}
	return so.reflectBool("has", so.b.vm.ToValue(key.Name()))
}

func (so *scriptObject) Get(key object.Key, receiver object.Value) (object.Value, error) {
	if key.IsSymbol() {
		return nil, nil
	}
	recv, err := so.receiver(receiver)
	if err != nil {
		return nil, err
	}
	v, err := so.reflect("get", so.b.vm.ToValue(key.Name()), recv)
	if err != nil {
		return nil, err
	}
	return so.b.fromJS(v)
}

func (so *scriptObject) Set(key object.Key, value object.Value, receiver object.Value) (bool, error) {
	if key.IsSymbol() {
		return false, nil
	}
	v, err := so.b.toJS(value)
	if err != nil {
		return false, err
	}
	recv, err := so.receiver(receiver)
	if err != nil {
		return false, err
	}
	return so.reflectBool("set", so.b.vm.ToValue(key.Name()), v, recv)
}

func (so *scriptObject) Delete(key object.Key) (bool, error) {
	if key.IsSymbol() {
		return true, nil
	}
	return so.reflectBool("deleteProperty", so.b.vm.ToValue(key.Name()))
}

// OwnKeys lists string keys; script symbols have no counterpart
func (so *scriptObject) OwnKeys() ([]object.Key, error) {
	v, err := so.reflect("ownKeys")
	if err != nil {
		return nil, err
	}
	list := v.ToObject(so.b.vm)
	n := int(list.Get("length").ToInteger())

	keys := make([]object.Key, 0, n)
	for i := 0; i < n; i++ {
		if name, ok := list.Get(strconv.Itoa(i)).Export().(string); ok {
			keys = append(keys, object.StringKey(name))
		}
	}
	return keys, nil
}

func (sf *scriptFunction) Call(this object.Value, args []object.Value) (object.Value, error) {
	thisJS, err := sf.b.toJS(this)
	if err != nil {
		return nil, err
	}
	argsJS, err := sf.b.argsToJS(args)
	if err != nil {
		return nil, err
	}

	v, err := sf.fn(thisJS, argsJS...)
	if err != nil {
		return nil, sf.b.caught(err)
	}
	return sf.b.fromJS(v)
}

func (sf *scriptFunction) Construct(args []object.Value, newTarget object.Object) (object.Object, error) {
	ctor, ok := goja.AssertConstructor(sf.obj)
	if !ok {
		return nil, object.TypeError("%s is not a constructor", sf.obj.ClassName())
	}
	argsJS, err := sf.b.argsToJS(args)
	if err != nil {
		return nil, err
	}

	var target *goja.Object
	if newTarget != nil && newTarget.Identity() != sf.identity {
		nt, err := sf.b.toJS(newTarget)
		if err != nil {
			return nil, err
		}
		target, _ = nt.(*goja.Object)
	}

	instance, err := ctor(target, argsJS...)
	if err != nil {
		return nil, sf.b.caught(err)
	}
	v, err := sf.b.fromJS(instance)
	if err != nil {
		return nil, err
	}
	return v.(object.Object), nil
}
