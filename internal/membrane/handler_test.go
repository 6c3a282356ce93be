package membrane

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/membrane/internal/object"
)

func TestHandlerDescriptors(t *testing.T) {
	f := newFixture(t)

	child := object.NewOrdinary(nil)
	var getterThis object.Value
	getter := object.NewFunction("get size", 0, func(this object.Value, _ []object.Value) (object.Value, error) {
		getterThis = this
		return 10, nil
	})
	obj := object.NewOrdinary(nil).Put("child", child)
	_, err := obj.DefineOwnProperty(object.StringKey("size"), object.AccessorDescriptor(getter, nil, true, true))
	require.NoError(t, err)

	dry := f.dryObject(t, obj)

	t.Run("data value converted", func(t *testing.T) {
		desc, err := dry.GetOwnProperty(object.StringKey("child"))
		require.NoError(t, err)
		require.NotNil(t, desc)
		assert.Same(t, get(t, dry, "child"), desc.Value)
		assert.True(t, desc.Writable)
	})

	t.Run("accessor converted", func(t *testing.T) {
		desc, err := dry.GetOwnProperty(object.StringKey("size"))
		require.NoError(t, err)
		require.True(t, desc.IsAccessor())
		require.NotNil(t, asProxy(desc.Getter))
		assert.Equal(t, dryField, asProxy(desc.Getter).Field())
	})

	t.Run("getter runs against the original", func(t *testing.T) {
		assert.Equal(t, 10, get(t, dry, "size"))
		assert.Same(t, obj, getterThis)
	})

	t.Run("define forwards converted values", func(t *testing.T) {
		local := object.NewOrdinary(nil)
		ok, err := dry.DefineOwnProperty(object.StringKey("peer"), object.DataDescriptor(local, true, true, true))
		require.NoError(t, err)
		assert.True(t, ok)

		stored := get(t, obj, "peer")
		require.NotNil(t, asProxy(stored))
		assert.Equal(t, wetField, asProxy(stored).Field())
		assert.Same(t, local, get(t, dry, "peer"))
	})
}

func TestHandlerPrototype(t *testing.T) {
	f := newFixture(t)

	base := object.NewOrdinary(nil).Put("inherited", "yes")
	obj := object.NewOrdinary(base)
	dry := f.dryObject(t, obj)

	proto, err := dry.GetPrototypeOf()
	require.NoError(t, err)
	assert.Same(t, f.wetToDry(t, base), proto)
	assert.Equal(t, "yes", get(t, dry, "inherited"))
	assert.True(t, has(t, dry, "inherited"))

	other := object.NewOrdinary(nil).Put("inherited", "no")
	dryOther := f.dryObject(t, other)
	ok, err := dry.SetPrototypeOf(dryOther)
	require.NoError(t, err)
	assert.True(t, ok)

	current, err := obj.GetPrototypeOf()
	require.NoError(t, err)
	assert.Same(t, other, current, "the original gets the unwrapped prototype")
	assert.Equal(t, "no", get(t, dry, "inherited"))

	ok, err = dry.SetPrototypeOf(nil)
	require.NoError(t, err)
	assert.True(t, ok)
	proto, err = dry.GetPrototypeOf()
	require.NoError(t, err)
	assert.Nil(t, proto)
}

func TestHandlerExtensibility(t *testing.T) {
	f := newFixture(t)
	obj := object.NewOrdinary(nil)
	dry := f.dryObject(t, obj)

	ext, err := dry.IsExtensible()
	require.NoError(t, err)
	assert.True(t, ext)

	_, err = obj.PreventExtensions()
	require.NoError(t, err)
	ext, err = dry.IsExtensible()
	require.NoError(t, err)
	assert.False(t, ext)
}

func TestHandlerSetWithForeignReceiver(t *testing.T) {
	f := newFixture(t)

	base := object.NewOrdinary(nil).Put("shared", 0)
	dryBase := f.dryObject(t, base)

	heir := object.NewOrdinary(dryBase)
	assert.True(t, put(t, heir, "shared", 7))

	assert.Equal(t, 7, get(t, heir, "shared"), "the write lands on the receiver")
	assert.Equal(t, 0, get(t, base, "shared"))
}

func TestHandlerNotCallable(t *testing.T) {
	f := newFixture(t)
	dry := f.dryObject(t, object.NewOrdinary(nil))

	_, ok := dry.(object.Callable)
	assert.False(t, ok)
	assert.Equal(t, "Object", object.ClassOf(dry))

	named := f.dryObject(t, object.NewOrdinaryWithClass(nil, "Widget"))
	assert.Equal(t, "Widget", object.ClassOf(named))
}
