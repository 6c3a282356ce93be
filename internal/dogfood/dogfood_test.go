package dogfood

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/AgentOS/membrane/internal/membrane"
	"github.com/GriffinCanCode/AgentOS/membrane/internal/object"
)

func newDogfood(t *testing.T, opts ...membrane.Option) *Dogfood {
	t.Helper()
	d, err := New(opts...)
	require.NoError(t, err)
	return d
}

func names(t *testing.T, o object.Object) []string {
	t.Helper()
	keys, err := o.OwnKeys()
	require.NoError(t, err)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k.Name())
	}
	return out
}

func getObject(t *testing.T, o object.Object, name string) object.Object {
	t.Helper()
	v, err := object.Get(o, name)
	require.NoError(t, err)
	obj, ok := v.(object.Object)
	require.True(t, ok, "%s is %s", name, object.TypeOf(v))
	return obj
}

// invoke calls the method name on o
func invoke(o object.Object, name string, args ...object.Value) (object.Value, error) {
	fn, err := object.Get(o, name)
	if err != nil {
		return nil, err
	}
	return object.Call(fn, o, args...)
}

func newInstance(t *testing.T, d *Dogfood, args ...object.Value) object.Object {
	t.Helper()
	inst, err := object.Construct(d.Membrane, args...)
	require.NoError(t, err)
	return inst
}

func TestPublicConstructor(t *testing.T) {
	d := newDogfood(t)

	assert.NotSame(t, d.Internal(), d.Membrane)
	field, ok := d.Engine().FieldOf(d.Membrane)
	require.True(t, ok)
	assert.Equal(t, PublicField, field)

	assert.ElementsMatch(t, []string{"name", "length", "prototype"}, names(t, d.Membrane))
	name, err := object.Get(d.Membrane, "name")
	require.NoError(t, err)
	assert.Equal(t, "MembraneInternal", name)

	// writes land in the public field only
	ok, err = object.Set(d.Membrane, "patched", true)
	require.NoError(t, err)
	assert.True(t, ok)
	has, err := d.Internal().Has(object.StringKey("patched"))
	require.NoError(t, err)
	assert.False(t, has)
}

func TestPublicInstance(t *testing.T) {
	d := newDogfood(t)
	inst := newInstance(t, d)

	assert.Equal(t, []string{"modifyRules", "logger"}, names(t, inst))

	ok, err := object.InstanceOf(inst, d.Membrane)
	require.NoError(t, err)
	assert.True(t, ok)

	desc, err := inst.GetOwnProperty(engineKey)
	require.NoError(t, err)
	assert.Nil(t, desc, "engine slot must stay hidden")

	original, ok := d.Engine().Original(inst)
	require.True(t, ok)
	assert.Equal(t, "MembraneInternal", object.ClassOf(original))

	t.Run("writes stay local", func(t *testing.T) {
		ok, err := object.Set(inst, "hack", true)
		require.NoError(t, err)
		assert.True(t, ok)
		v, err := object.Get(inst, "hack")
		require.NoError(t, err)
		assert.Equal(t, true, v)
		assert.Equal(t, []string{"modifyRules", "logger"}, names(t, inst), "enumeration stays whitelisted")

		has, err := original.Has(object.StringKey("hack"))
		require.NoError(t, err)
		assert.False(t, has)
	})

	t.Run("api slots are read-only", func(t *testing.T) {
		ok, err := object.Set(inst, "modifyRules", "replaced")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("deletes stay local", func(t *testing.T) {
		ok, err := inst.Delete(object.StringKey("logger"))
		require.NoError(t, err)
		assert.True(t, ok)
		assert.NotContains(t, names(t, inst), "logger")

		has, err := original.Has(object.StringKey("logger"))
		require.NoError(t, err)
		assert.True(t, has)
	})

	t.Run("prototype methods are locked", func(t *testing.T) {
		proto, err := inst.GetPrototypeOf()
		require.NoError(t, err)
		require.NotNil(t, proto)

		ok, err := object.Set(proto, "getHandlerByField", "hijacked")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestConvertThroughPublicAPI(t *testing.T) {
	d := newDogfood(t)
	inst := newInstance(t, d)

	wet, err := invoke(inst, "getHandlerByField", "wet", true)
	require.NoError(t, err)
	dry, err := invoke(inst, "getHandlerByField", "dry", true)
	require.NoError(t, err)

	again, err := invoke(inst, "getHandlerByField", "wet", false)
	require.NoError(t, err)
	assert.Same(t, wet, again)

	fieldName, err := object.Get(wet.(object.Object), "fieldName")
	require.NoError(t, err)
	assert.Equal(t, "wet", fieldName)

	obj := object.NewOrdinary(nil).Put("x", 1).Put("y", 2)
	first, err := invoke(inst, "convertArgumentToProxy", wet, dry, obj)
	require.NoError(t, err)
	second, err := invoke(inst, "convertArgumentToProxy", wet, dry, obj)
	require.NoError(t, err)
	assert.Same(t, first, second, "one representation per field, never wrapped twice")

	rep := first.(object.Object)
	x, err := object.Get(rep, "x")
	require.NoError(t, err)
	assert.Equal(t, 1, x)

	t.Run("missing field", func(t *testing.T) {
		_, err := invoke(inst, "getHandlerByField", "absent", false)
		var thrown *object.Thrown
		require.True(t, errors.As(err, &thrown))
	})

	t.Run("bad receiver", func(t *testing.T) {
		fn, err := object.Get(inst, "getHandlerByField")
		require.NoError(t, err)
		_, err = object.Call(fn, object.NewOrdinary(nil), "wet", true)
		var thrown *object.Thrown
		require.True(t, errors.As(err, &thrown))
	})

	t.Run("rules from the public side", func(t *testing.T) {
		target := object.NewOrdinary(nil).Put("x", 1).Put("y", 2)
		v, err := invoke(inst, "convertArgumentToProxy", wet, dry, target)
		require.NoError(t, err)
		filtered := v.(object.Object)

		onlyX := object.NewFunction("onlyX", 1, func(_ object.Value, args []object.Value) (object.Value, error) {
			return len(args) > 0 && args[0] == "x", nil
		})
		rules := getObject(t, inst, "modifyRules")
		_, err = invoke(rules, "filterOwnKeys", "dry", filtered, onlyX)
		require.NoError(t, err)

		assert.Equal(t, []string{"x"}, names(t, filtered))
		assert.Equal(t, []string{"x", "y"}, names(t, target))
	})

	t.Run("revokeEverything", func(t *testing.T) {
		_, err := invoke(dry.(object.Object), "revokeEverything")
		require.NoError(t, err)

		_, err = object.Get(rep, "x")
		assert.ErrorIs(t, err, membrane.ErrRevoked)
	})
}

func TestProxyMappingNeverLeaks(t *testing.T) {
	d := newDogfood(t)
	inst := newInstance(t, d)

	wet, err := invoke(inst, "getHandlerByField", "wet", true)
	require.NoError(t, err)
	dry, err := invoke(inst, "getHandlerByField", "dry", true)
	require.NoError(t, err)
	rep, err := invoke(inst, "convertArgumentToProxy", wet, dry, object.NewOrdinary(nil))
	require.NoError(t, err)

	_, err = invoke(inst, "mappingFor", rep)
	var leak *membrane.LeakPreventionError
	require.True(t, errors.As(err, &leak), "got %v", err)
	assert.Equal(t, "ProxyMapping", leak.Type)
	assert.ErrorIs(t, err, membrane.ErrLeakPrevented)

	untracked, err := invoke(inst, "mappingFor", object.NewOrdinary(nil))
	require.NoError(t, err)
	assert.True(t, object.IsNull(untracked))

	t.Run("constructor", func(t *testing.T) {
		_, err := d.Engine().ConvertArgumentToProxy(d.internal, d.public, d.ProxyMapping())
		assert.ErrorIs(t, err, membrane.ErrLeakPrevented)
	})

	t.Run("internally visible", func(t *testing.T) {
		original, ok := d.Engine().Original(inst)
		require.True(t, ok)
		inner, err := engineOf(original)
		require.NoError(t, err)

		innerRep, ok := d.Engine().Original(rep)
		require.True(t, ok)
		mapping, err := d.mappingFor(original, []object.Value{innerRep})
		require.NoError(t, err)
		got, err := invoke(mapping.(object.Object), "getOriginal")
		require.NoError(t, err)

		want, ok := inner.Original(innerRep)
		require.True(t, ok)
		assert.Same(t, want, got)
	})
}

func TestEngineNeverLeaks(t *testing.T) {
	d := newDogfood(t)

	_, err := d.Engine().ConvertArgumentToProxy(d.internal, d.public, d.Engine())
	assert.ErrorIs(t, err, membrane.ErrLeakPrevented)

	inst := newInstance(t, d)
	original, ok := d.Engine().Original(inst)
	require.True(t, ok)
	desc, err := original.GetOwnProperty(engineKey)
	require.NoError(t, err)
	require.NotNil(t, desc)

	_, err = d.Engine().ConvertArgumentToProxy(d.internal, d.public, desc.Value)
	assert.ErrorIs(t, err, membrane.ErrLeakPrevented)
}

func TestPublicPolicyFrozen(t *testing.T) {
	d := newDogfood(t)

	h, err := d.Engine().GetHandlerByField(PublicField, false)
	require.NoError(t, err)
	assert.True(t, h.ListenersFrozen())

	_, err = h.AddProxyListener(func(*membrane.ProxyMeta) {})
	assert.ErrorIs(t, err, membrane.ErrListenersFrozen)
}

func TestInstanceOptions(t *testing.T) {
	d := newDogfood(t)
	inst := newInstance(t, d, object.NewOrdinary(nil).Put("showGraphName", true))

	wet, err := invoke(inst, "getHandlerByField", "wet", true)
	require.NoError(t, err)
	dry, err := invoke(inst, "getHandlerByField", "dry", true)
	require.NoError(t, err)
	v, err := invoke(inst, "convertArgumentToProxy", wet, dry, object.NewOrdinary(nil))
	require.NoError(t, err)

	graph, err := v.(object.Object).Get(object.SymbolKey(membrane.GraphNameSymbol), nil)
	require.NoError(t, err)
	assert.Equal(t, "dry", graph)
}

func TestLoggerFacade(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	d := newDogfood(t, membrane.WithLogger(zap.New(core)))
	inst := newInstance(t, d)

	logger := getObject(t, inst, "logger")
	_, err := invoke(logger, "info", "hello from outside", object.NewOrdinary(nil).Put("attempt", 2))
	require.NoError(t, err)

	entries := logs.FilterMessage("hello from outside").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.EqualValues(t, 2, entries[0].ContextMap()["attempt"])
	assert.Equal(t, "dogfood", entries[0].LoggerName)
}
