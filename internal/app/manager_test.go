package app

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/membrane/internal/membrane"
	"github.com/GriffinCanCode/AgentOS/membrane/internal/object"
	"github.com/GriffinCanCode/AgentOS/membrane/internal/sandbox"
	"github.com/GriffinCanCode/AgentOS/membrane/internal/shared/id"
)

func newManager(t *testing.T) (*Manager, *membrane.Membrane) {
	t.Helper()
	m := membrane.New()
	mg := NewManager(m, sandbox.DefaultConfig(), nil)
	t.Cleanup(mg.CloseAll)
	return mg, m
}

func TestManagerSpawn(t *testing.T) {
	mg, m := newManager(t)

	session, err := mg.Spawn("calculator", nil)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(session.ID.String(), id.AppPrefix+"_"))
	assert.Equal(t, "calculator", session.Name)
	assert.Equal(t, membrane.Field(session.ID), session.Field)
	assert.Equal(t, StateActive, session.State)
	assert.True(t, m.HasHandlerByField(session.Field))

	got, ok := mg.Get(session.ID)
	require.True(t, ok)
	assert.Same(t, session, got)

	t.Run("default name", func(t *testing.T) {
		session, err := mg.Spawn("", nil)
		require.NoError(t, err)
		assert.Equal(t, "Untitled App", session.Name)
	})

	t.Run("unknown parent", func(t *testing.T) {
		missing := id.NewAppID()
		_, err := mg.Spawn("orphan", &missing)
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})
}

func TestManagerExpose(t *testing.T) {
	mg, m := newManager(t)
	ctx := context.Background()

	api := object.NewOrdinary(nil).Put("version", 3)

	first, err := mg.Spawn("first", nil)
	require.NoError(t, err)
	second, err := mg.Spawn("second", nil)
	require.NoError(t, err)

	require.NoError(t, mg.Expose(first.ID, "api", api))
	require.NoError(t, mg.Expose(second.ID, "api", api))

	result, err := first.Runtime.Execute(ctx, "api.version")
	require.NoError(t, err)
	assert.EqualValues(t, 3, result.Value)

	// each session sees its own representation
	a, err := m.Convert(api, "host", first.Field)
	require.NoError(t, err)
	b, err := m.Convert(api, "host", second.Field)
	require.NoError(t, err)
	assert.NotSame(t, a, b)

	t.Run("unknown session", func(t *testing.T) {
		err := mg.Expose(id.NewAppID(), "api", api)
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})
}

func TestManagerCloseRevokesField(t *testing.T) {
	mg, m := newManager(t)
	ctx := context.Background()

	api := object.NewOrdinary(nil).Put("version", 3)

	closing, err := mg.Spawn("closing", nil)
	require.NoError(t, err)
	staying, err := mg.Spawn("staying", nil)
	require.NoError(t, err)
	require.NoError(t, mg.Expose(closing.ID, "api", api))
	require.NoError(t, mg.Expose(staying.ID, "api", api))

	rep, err := m.Convert(api, "host", closing.Field)
	require.NoError(t, err)

	assert.True(t, mg.Close(closing.ID))
	assert.Equal(t, StateDestroyed, closing.State)
	_, ok := mg.Get(closing.ID)
	assert.False(t, ok)

	_, err = rep.(object.Object).Get(object.StringKey("version"), rep)
	assert.ErrorIs(t, err, membrane.ErrRevoked)
	_, err = m.Convert(api, "host", closing.Field)
	assert.ErrorIs(t, err, membrane.ErrRevoked)

	result, err := staying.Runtime.Execute(ctx, "api.version")
	require.NoError(t, err)
	assert.EqualValues(t, 3, result.Value)

	assert.False(t, mg.Close(closing.ID))
}

func TestManagerCloseCascades(t *testing.T) {
	mg, _ := newManager(t)

	parent, err := mg.Spawn("parent", nil)
	require.NoError(t, err)
	child, err := mg.Spawn("child", &parent.ID)
	require.NoError(t, err)
	grandchild, err := mg.Spawn("grandchild", &child.ID)
	require.NoError(t, err)
	sibling, err := mg.Spawn("sibling", nil)
	require.NoError(t, err)

	require.True(t, mg.Close(parent.ID))

	for _, s := range []*Session{parent, child, grandchild} {
		_, ok := mg.Get(s.ID)
		assert.False(t, ok, s.Name)
		assert.Equal(t, StateDestroyed, s.State, s.Name)
	}
	_, ok := mg.Get(sibling.ID)
	assert.True(t, ok)
}

func TestManagerListAndStats(t *testing.T) {
	mg, _ := newManager(t)

	var spawned []*Session
	for _, name := range []string{"a", "b", "c"} {
		s, err := mg.Spawn(name, nil)
		require.NoError(t, err)
		spawned = append(spawned, s)
	}
	mg.Close(spawned[1].ID)

	listed := mg.List(nil)
	require.Len(t, listed, 2)
	assert.Same(t, spawned[0], listed[0])
	assert.Same(t, spawned[2], listed[1])

	active := StateActive
	assert.Len(t, mg.List(&active), 2)
	destroyed := StateDestroyed
	assert.Empty(t, mg.List(&destroyed))

	stats := mg.Stats()
	assert.Equal(t, 2, stats.TotalSessions)
	assert.Equal(t, 2, stats.ActiveSessions)
	assert.ElementsMatch(t, []string{string(spawned[0].Field), string(spawned[2].Field)}, stats.Fields)

	mg.CloseAll()
	assert.Zero(t, mg.Stats().TotalSessions)
}
