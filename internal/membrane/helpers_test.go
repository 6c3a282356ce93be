package membrane

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/membrane/internal/object"
)

const (
	wetField Field = "wet"
	dryField Field = "dry"
	dampField Field = "damp"
)

type fixture struct {
	m    *Membrane
	wet  *GraphHandler
	dry  *GraphHandler
	damp *GraphHandler
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	m := New(opts...)
	f := &fixture{m: m}
	var err error
	f.wet, err = m.GetHandlerByField(wetField, true)
	require.NoError(t, err)
	f.dry, err = m.GetHandlerByField(dryField, true)
	require.NoError(t, err)
	f.damp, err = m.GetHandlerByField(dampField, true)
	require.NoError(t, err)
	return f
}

// wetToDry converts v from the wet field into the dry field
func (f *fixture) wetToDry(t *testing.T, v object.Value) object.Value {
	t.Helper()
	out, err := f.m.ConvertArgumentToProxy(f.wet, f.dry, v)
	require.NoError(t, err)
	return out
}

func (f *fixture) dryObject(t *testing.T, v object.Value) object.Object {
	t.Helper()
	obj, ok := f.wetToDry(t, v).(object.Object)
	require.True(t, ok, "expected an object, got %T", v)
	return obj
}

func get(t *testing.T, o object.Object, name string) object.Value {
	t.Helper()
	v, err := object.Get(o, name)
	require.NoError(t, err)
	return v
}

func put(t *testing.T, o object.Object, name string, v object.Value) bool {
	t.Helper()
	ok, err := object.Set(o, name, v)
	require.NoError(t, err)
	return ok
}

func has(t *testing.T, o object.Object, name string) bool {
	t.Helper()
	ok, err := o.Has(object.StringKey(name))
	require.NoError(t, err)
	return ok
}

func ownKeys(t *testing.T, o object.Object) []object.Key {
	t.Helper()
	keys, err := o.OwnKeys()
	require.NoError(t, err)
	return keys
}
