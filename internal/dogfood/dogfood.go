package dogfood

import (
	_ "embed"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/membrane/internal/membrane"
	"github.com/GriffinCanCode/AgentOS/membrane/internal/object"
	"github.com/GriffinCanCode/AgentOS/membrane/internal/policy"
)

const (
	PublicField   membrane.Field = "public"
	InternalField membrane.Field = "internal"
)

//go:embed policy.yaml
var policyYAML []byte

var (
	engineKey  = object.SymbolKey(object.NewSymbol("engine"))
	handlerKey = object.SymbolKey(object.NewSymbol("handler"))
)

// Dogfood exposes the engine's object-model API through a membrane of its
// own. Only Membrane, the public constructor, is meant for outside code.
type Dogfood struct {
	// Membrane constructs engines; it is the public representation of the
	// internal MembraneInternal constructor
	Membrane object.Object

	engine   *membrane.Membrane
	public   *membrane.GraphHandler
	internal *membrane.GraphHandler
	logger   *zap.Logger

	internalCtor *object.Function
	mappingCtor  *object.Function

	handlersMu sync.Mutex
	handlers   map[*membrane.GraphHandler]*object.Ordinary
}

// New builds the self-protecting API. opts configure the outer membrane;
// engines constructed through it share its logger.
func New(opts ...membrane.Option) (*Dogfood, error) {
	engine := membrane.New(opts...)

	d := &Dogfood{
		engine:   engine,
		logger:   engine.Logger().Named("dogfood"),
		handlers: make(map[*membrane.GraphHandler]*object.Ordinary),
	}

	var err error
	if d.public, err = engine.GetHandlerByField(PublicField, true); err != nil {
		return nil, err
	}
	if d.internal, err = engine.GetHandlerByField(InternalField, true); err != nil {
		return nil, err
	}

	d.mappingCtor = newMappingConstructor()
	d.internalCtor = d.newInternalConstructor()

	doc, err := policy.ParseYAML(policyYAML)
	if err != nil {
		return nil, fmt.Errorf("dogfood policy: %w", err)
	}
	if _, err := policy.Apply(engine, doc); err != nil {
		return nil, fmt.Errorf("dogfood policy: %w", err)
	}

	pub, err := engine.ConvertArgumentToProxy(d.internal, d.public, d.internalCtor)
	if err != nil {
		return nil, fmt.Errorf("expose constructor: %w", err)
	}
	d.Membrane = pub.(object.Object)

	d.logger.Debug("Public API ready")
	return d, nil
}

// Engine returns the membrane guarding the API
func (d *Dogfood) Engine() *membrane.Membrane {
	return d.engine
}

// Internal returns the unprotected MembraneInternal constructor
func (d *Dogfood) Internal() *object.Function {
	return d.internalCtor
}

// ProxyMapping returns the internal ProxyMapping constructor
func (d *Dogfood) ProxyMapping() *object.Function {
	return d.mappingCtor
}

func (d *Dogfood) newInternalConstructor() *object.Function {
	ctor := object.NewConstructor("MembraneInternal", 1, func(this *object.Ordinary, args []object.Value) error {
		inner, err := d.newEngine(args)
		if err != nil {
			return err
		}
		this.DefineOwnProperty(engineKey, object.DataDescriptor(inner, false, false, true))
		this.DefineOwnProperty(object.StringKey("modifyRules"), object.DataDescriptor(rulesObject(inner), false, true, true))
		this.DefineOwnProperty(object.StringKey("logger"), object.DataDescriptor(loggerObject(inner.Logger()), false, true, true))
		return nil
	})

	proto := ctor.Prototype()
	method := func(name string, arity int, fn object.NativeFunc) {
		proto.DefineOwnProperty(object.StringKey(name),
			object.DataDescriptor(object.NewFunction(name, arity, fn), false, false, false))
	}
	method("getHandlerByField", 2, d.getHandlerByField)
	method("convertArgumentToProxy", 3, d.convertArgumentToProxy)
	method("mappingFor", 1, d.mappingFor)
	return ctor
}

func (d *Dogfood) newEngine(args []object.Value) (*membrane.Membrane, error) {
	opts := []membrane.Option{membrane.WithLogger(d.logger)}
	if cfg, ok := arg(args, 0).(object.Object); ok {
		show, err := object.Get(cfg, "showGraphName")
		if err != nil {
			return nil, err
		}
		opts = append(opts, membrane.WithShowGraphName(show == true))
	}
	return membrane.New(opts...), nil
}

func (d *Dogfood) getHandlerByField(this object.Value, args []object.Value) (object.Value, error) {
	inner, err := engineOf(this)
	if err != nil {
		return nil, err
	}
	name, ok := arg(args, 0).(string)
	if !ok {
		return nil, object.TypeError("field name must be a string")
	}

	h, err := inner.GetHandlerByField(membrane.Field(name), arg(args, 1) == true)
	if err != nil {
		return nil, object.Throw(object.NewError("Error", err.Error()))
	}
	return d.handlerObject(h), nil
}

func (d *Dogfood) convertArgumentToProxy(this object.Value, args []object.Value) (object.Value, error) {
	inner, err := engineOf(this)
	if err != nil {
		return nil, err
	}
	src, err := handlerOf(arg(args, 0))
	if err != nil {
		return nil, err
	}
	dst, err := handlerOf(arg(args, 1))
	if err != nil {
		return nil, err
	}

	v, err := inner.ConvertArgumentToProxy(src, dst, arg(args, 2))
	if err != nil {
		return nil, object.Throw(object.NewError("Error", err.Error()))
	}
	return v, nil
}

// mappingFor describes how this engine tracks a value. The description is
// internal bookkeeping and is refused by the public field.
func (d *Dogfood) mappingFor(this object.Value, args []object.Value) (object.Value, error) {
	inner, err := engineOf(this)
	if err != nil {
		return nil, err
	}
	value := arg(args, 0)
	field, ok := inner.FieldOf(value)
	if !ok {
		return object.Null, nil
	}
	return object.Construct(d.mappingCtor, inner, string(field), value)
}

// handlerObject returns the one facade object of h
func (d *Dogfood) handlerObject(h *membrane.GraphHandler) *object.Ordinary {
	d.handlersMu.Lock()
	defer d.handlersMu.Unlock()

	if obj, ok := d.handlers[h]; ok {
		return obj
	}
	obj := object.NewOrdinaryWithClass(nil, "ObjectGraphHandler")
	obj.DefineOwnProperty(handlerKey, object.DataDescriptor(h, false, false, true))
	obj.DefineOwnProperty(object.StringKey("fieldName"), object.DataDescriptor(string(h.Field()), false, true, false))
	obj.Put("revokeEverything", object.NewFunction("revokeEverything", 0, func(object.Value, []object.Value) (object.Value, error) {
		h.RevokeEverything()
		return nil, nil
	}))
	d.handlers[h] = obj
	return obj
}

func newMappingConstructor() *object.Function {
	return object.NewConstructor("ProxyMapping", 3, func(this *object.Ordinary, args []object.Value) error {
		inner, _ := arg(args, 0).(*membrane.Membrane)
		value := arg(args, 2)
		this.DefineOwnProperty(engineKey, object.DataDescriptor(inner, false, false, true))
		this.Put("field", arg(args, 1))
		this.Put("getOriginal", object.NewFunction("getOriginal", 0, func(object.Value, []object.Value) (object.Value, error) {
			if inner == nil {
				return nil, nil
			}
			original, ok := inner.Original(value)
			if !ok {
				return nil, nil
			}
			return original, nil
		}))
		return nil
	})
}

func engineOf(this object.Value) (*membrane.Membrane, error) {
	obj, ok := this.(object.Object)
	if !ok {
		return nil, object.TypeError("receiver is not a MembraneInternal")
	}
	desc, err := obj.GetOwnProperty(engineKey)
	if err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, object.TypeError("receiver is not a MembraneInternal")
	}
	inner, ok := desc.Value.(*membrane.Membrane)
	if !ok {
		return nil, object.TypeError("receiver is not a MembraneInternal")
	}
	return inner, nil
}

func handlerOf(v object.Value) (*membrane.GraphHandler, error) {
	obj, ok := v.(object.Object)
	if !ok {
		return nil, object.TypeError("expected an ObjectGraphHandler, got %s", object.TypeOf(v))
	}
	desc, err := obj.GetOwnProperty(handlerKey)
	if err != nil {
		return nil, err
	}
	if desc != nil {
		if h, ok := desc.Value.(*membrane.GraphHandler); ok {
			return h, nil
		}
	}
	return nil, object.TypeError("expected an ObjectGraphHandler")
}

func arg(args []object.Value, i int) object.Value {
	if i < len(args) {
		return args[i]
	}
	return nil
}
