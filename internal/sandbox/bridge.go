package sandbox

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/dop251/goja"

	"github.com/GriffinCanCode/AgentOS/membrane/internal/object"
)

var reflectOps = []string{
	"getPrototypeOf", "setPrototypeOf", "isExtensible", "preventExtensions",
	"getOwnPropertyDescriptor", "defineProperty", "has", "get", "set",
	"deleteProperty", "ownKeys",
}

// callableShim turns a pair of native functions into one script function that
// can be both called and constructed
const callableShim = `(function (call, construct) {
	"use strict";
	return function () {
		return new.target === undefined ? call(this, arguments) : construct(arguments);
	};
})`

// bridge maps values between the object model and goja. Objects keep their
// identity in both directions for the lifetime of the VM.
type bridge struct {
	r       *Runtime
	vm      *goja.Runtime
	shim    goja.Callable
	reflect map[string]goja.Callable

	wrappers map[*object.Identity]*goja.Object // sandbox-field objects → script wrappers
	owners   map[*goja.Object]object.Object    // script wrappers → sandbox-field objects
	adapters map[*goja.Object]object.Object    // script-created objects → adapters
}

// newBridge binds to r's current VM. It must run before any script so the
// captured Reflect functions are the built-in ones.
func newBridge(r *Runtime) (*bridge, error) {
	vm := r.vm
	v, err := vm.RunString(callableShim)
	if err != nil {
		return nil, fmt.Errorf("sandbox: compile shim: %w", err)
	}
	shim, ok := goja.AssertFunction(v)
	if !ok {
		return nil, errors.New("sandbox: shim is not a function")
	}

	reflectObj := vm.Get("Reflect").ToObject(vm)
	reflect := make(map[string]goja.Callable, len(reflectOps))
	for _, op := range reflectOps {
		fn, ok := goja.AssertFunction(reflectObj.Get(op))
		if !ok {
			return nil, fmt.Errorf("sandbox: Reflect.%s unavailable", op)
		}
		reflect[op] = fn
	}

	return &bridge{
		r:        r,
		vm:       vm,
		shim:     shim,
		reflect:  reflect,
		wrappers: make(map[*object.Identity]*goja.Object),
		owners:   make(map[*goja.Object]object.Object),
		adapters: make(map[*goja.Object]object.Object),
	}, nil
}

// callReflect invokes a captured Reflect operation
func (b *bridge) callReflect(op string, args ...goja.Value) (goja.Value, error) {
	return b.reflect[op](goja.Undefined(), args...)
}

// toJS maps a sandbox-field value into the VM
func (b *bridge) toJS(v object.Value) (goja.Value, error) {
	switch x := v.(type) {
	case nil:
		return goja.Undefined(), nil
	case *object.Symbol:
		return nil, fmt.Errorf("%w: %s", ErrUnbridgable, x)
	case object.Object:
		return b.wrap(x)
	}
	if object.IsNull(v) {
		return goja.Null(), nil
	}
	if object.IsPrimitive(v) {
		return b.vm.ToValue(v), nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnbridgable, v)
}

// fromJS maps a VM value into the sandbox field
func (b *bridge) fromJS(v goja.Value) (object.Value, error) {
	if v == nil || goja.IsUndefined(v) {
		return nil, nil
	}
	if goja.IsNull(v) {
		return object.Null, nil
	}

	obj, ok := v.(*goja.Object)
	if !ok {
		exported := v.Export()
		if object.IsPrimitive(exported) {
			return exported, nil
		}
		return nil, fmt.Errorf("%w: %T", ErrUnbridgable, exported)
	}

	if owner, ok := b.owners[obj]; ok {
		return owner, nil
	}
	if adapter, ok := b.adapters[obj]; ok {
		return adapter, nil
	}
	adapter := newScriptObject(b, obj)
	b.adapters[obj] = adapter
	return adapter, nil
}

func (b *bridge) wrap(obj object.Object) (goja.Value, error) {
	if so := asScriptObject(obj); so != nil && so.b == b {
		return so.obj, nil
	}
	if w, ok := b.wrappers[obj.Identity()]; ok {
		return w, nil
	}

	var w *goja.Object
	if fn, ok := obj.(object.Callable); ok {
		v, err := b.shim(goja.Undefined(), b.vm.ToValue(b.callFunc(fn)), b.vm.ToValue(b.constructFunc(fn)))
		if err != nil {
			return nil, err
		}
		w = v.ToObject(b.vm)
	} else {
		w = b.vm.NewDynamicObject(&hostObject{b: b, target: obj})
	}

	b.wrappers[obj.Identity()] = w
	b.owners[w] = obj
	return w, nil
}

func (b *bridge) callFunc(fn object.Callable) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		this, err := b.fromJS(call.Argument(0))
		if err != nil {
			panic(b.throw(err))
		}
		args := b.mustArgs(call.Argument(1))
		if err := b.r.hostCall(); err != nil {
			panic(b.throw(err))
		}

		v, err := fn.Call(this, args)
		if err != nil {
			panic(b.throw(err))
		}
		return b.mustJS(v)
	}
}

func (b *bridge) constructFunc(fn object.Callable) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		ctor, ok := fn.(object.Constructor)
		if !ok {
			panic(b.vm.NewTypeError("%s is not a constructor", object.ClassOf(fn)))
		}
		args := b.mustArgs(call.Argument(0))
		if err := b.r.hostCall(); err != nil {
			panic(b.throw(err))
		}

		instance, err := ctor.Construct(args, nil)
		if err != nil {
			panic(b.throw(err))
		}
		return b.mustJS(instance)
	}
}

// mustArgs reads an arguments object
func (b *bridge) mustArgs(v goja.Value) []object.Value {
	list := v.ToObject(b.vm)
	n := int(list.Get("length").ToInteger())

	args := make([]object.Value, 0, n)
	for i := 0; i < n; i++ {
		arg, err := b.fromJS(list.Get(strconv.Itoa(i)))
		if err != nil {
			panic(b.throw(err))
		}
		args = append(args, arg)
	}
	return args
}

func (b *bridge) mustJS(v object.Value) goja.Value {
	js, err := b.toJS(v)
	if err != nil {
		panic(b.throw(err))
	}
	return js
}

// throw turns an error from the object model into a script exception. Thrown
// values keep their identity; other errors become GoErrors.
func (b *bridge) throw(err error) goja.Value {
	var thrown *object.Thrown
	if errors.As(err, &thrown) {
		if v, convErr := b.toJS(thrown.Value); convErr == nil {
			return v
		}
	}
	return b.vm.NewGoError(err)
}

// caught turns a script exception into an error of the object model
func (b *bridge) caught(err error) error {
	var ex *goja.Exception
	if !errors.As(err, &ex) {
		return err
	}
	if goErr := goErrorOf(ex); goErr != nil {
		return goErr
	}
	v, convErr := b.fromJS(ex.Value())
	if convErr != nil {
		return err
	}
	return object.Throw(v)
}

// goErrorOf returns the Go error carried by a GoError exception
func goErrorOf(ex *goja.Exception) error {
	obj, ok := ex.Value().(*goja.Object)
	if !ok {
		return nil
	}
	v := obj.Get("value")
	if v == nil {
		return nil
	}
	goErr, _ := v.Export().(error)
	return goErr
}

// hostObject presents a sandbox-field object to scripts
type hostObject struct {
	b      *bridge
	target object.Object
}

func (h *hostObject) Get(key string) goja.Value {
	v, err := h.target.Get(object.StringKey(key), nil)
	if err != nil {
		panic(h.b.throw(err))
	}
	return h.b.mustJS(v)
}

func (h *hostObject) Set(key string, val goja.Value) bool {
	v, err := h.b.fromJS(val)
	if err != nil {
		panic(h.b.throw(err))
	}
	ok, err := h.target.Set(object.StringKey(key), v, nil)
	if err != nil {
		panic(h.b.throw(err))
	}
	return ok
}

func (h *hostObject) Has(key string) bool {
	ok, err := h.target.Has(object.StringKey(key))
	if err != nil {
		panic(h.b.throw(err))
	}
	return ok
}

func (h *hostObject) Delete(key string) bool {
	ok, err := h.target.Delete(object.StringKey(key))
	if err != nil {
		panic(h.b.throw(err))
	}
	return ok
}

// Keys lists enumerable string keys
func (h *hostObject) Keys() []string {
	keys, err := h.target.OwnKeys()
	if err != nil {
		panic(h.b.throw(err))
	}

	names := make([]string, 0, len(keys))
	for _, key := range keys {
		if key.IsSymbol() {
			continue
		}
		desc, err := h.target.GetOwnProperty(key)
		if err != nil {
			panic(h.b.throw(err))
		}
		if desc != nil && desc.Enumerable {
			names = append(names, key.Name())
		}
	}
	return names
}

func (b *bridge) argsToJS(args []object.Value) ([]goja.Value, error) {
	out := make([]goja.Value, 0, len(args))
	for _, arg := range args {
		v, err := b.toJS(arg)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
