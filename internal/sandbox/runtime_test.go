package sandbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/AgentOS/membrane/internal/membrane"
	"github.com/GriffinCanCode/AgentOS/membrane/internal/object"
)

func newRuntime(t *testing.T, config Config) (*Runtime, *membrane.Membrane) {
	t.Helper()
	m := membrane.New()
	rt, err := New(m, config, nil)
	require.NoError(t, err)
	t.Cleanup(func() { rt.Close() })
	return rt, m
}

func TestRuntimeExecution(t *testing.T) {
	rt, _ := newRuntime(t, DefaultConfig())

	tests := []struct {
		name   string
		script string
		want   object.Value
	}{
		{"simple return", "42", int64(42)},
		{"console log", "console.log('hello'); 'test'", "test"},
		{"math operations", "Math.sqrt(16)", int64(4)},
		{"string operations", "'hello'.toUpperCase()", "HELLO"},
		{"float", "1.5 * 2.5", 3.75},
		{"boolean", "1 < 2", true},
		{"undefined", "undefined", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := rt.Execute(context.Background(), tt.script)
			require.NoError(t, err)
			assert.EqualValues(t, tt.want, result.Value)
		})
	}

	t.Run("null", func(t *testing.T) {
		result, err := rt.Execute(context.Background(), "null")
		require.NoError(t, err)
		assert.True(t, object.IsNull(result.Value))
	})
}

func TestRuntimeSecurity(t *testing.T) {
	rt, _ := newRuntime(t, DefaultConfig())

	dangerousScripts := []struct {
		name   string
		script string
	}{
		{"require blocked", "require('fs')"},
		{"process blocked", "process.exit(1)"},
		{"module blocked", "module.exports = {}"},
	}

	for _, tt := range dangerousScripts {
		t.Run(tt.name, func(t *testing.T) {
			result, err := rt.Execute(context.Background(), tt.script)
			assert.Error(t, err)
			require.NotNil(t, result)
			assert.Nil(t, result.Value)
		})
	}
}

func TestRuntimeTimeout(t *testing.T) {
	config := DefaultConfig()
	config.Timeout = 100 * time.Millisecond
	rt, _ := newRuntime(t, config)

	result, err := rt.Execute(context.Background(), `
		let i = 0;
		while (true) {
			i++;
		}
	`)
	assert.ErrorIs(t, err, ErrInterrupted)
	require.NotNil(t, result)
	assert.ErrorIs(t, result.Error, ErrInterrupted)

	// the runtime stays usable
	result, err = rt.Execute(context.Background(), "'alive'")
	require.NoError(t, err)
	assert.Equal(t, "alive", result.Value)
}

func TestRuntimeContextCancel(t *testing.T) {
	rt, _ := newRuntime(t, DefaultConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := rt.Execute(ctx, "for (;;) {}")
	assert.ErrorIs(t, err, ErrInterrupted)
}

func TestRuntimeConsoleCapture(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	m := membrane.New()
	rt, err := New(m, DefaultConfig(), zap.New(core))
	require.NoError(t, err)
	defer rt.Close()

	result, err := rt.Execute(context.Background(), `
		console.log('info message');
		console.warn('warning message');
		console.error('error', 'message');
		console.info('<b>bold</b> move');
		'done'
	`)
	require.NoError(t, err)
	require.Len(t, result.Console, 4)

	levels := []string{"log", "warn", "error", "info"}
	for i, entry := range result.Console {
		assert.Equal(t, levels[i], entry.Level)
	}
	assert.Equal(t, "error message", result.Console[2].Message)
	assert.Equal(t, "bold move", result.Console[3].Message)
	assert.Equal(t, 4, logs.FilterMessage("Script console").Len())
}

func TestRuntimeConsoleDisabled(t *testing.T) {
	config := DefaultConfig()
	config.EnableConsole = false
	rt, _ := newRuntime(t, config)

	result, err := rt.Execute(context.Background(), "typeof console")
	require.NoError(t, err)
	assert.Equal(t, "undefined", result.Value)
}

func TestRuntimeClosed(t *testing.T) {
	m := membrane.New()
	rt, err := New(m, DefaultConfig(), nil)
	require.NoError(t, err)
	require.NoError(t, rt.Close())

	_, err = rt.Execute(context.Background(), "1")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, rt.Expose("x", 1), ErrClosed)
	assert.ErrorIs(t, rt.Reset(), ErrClosed)
}

func TestRuntimeReset(t *testing.T) {
	rt, _ := newRuntime(t, DefaultConfig())
	config := object.NewOrdinary(nil).Put("name", "agent")
	require.NoError(t, rt.Expose("config", config))

	_, err := rt.Execute(context.Background(), "var leftover = 1")
	require.NoError(t, err)
	require.NoError(t, rt.Reset())

	result, err := rt.Execute(context.Background(), "typeof leftover")
	require.NoError(t, err)
	assert.Equal(t, "undefined", result.Value)

	result, err = rt.Execute(context.Background(), "config.name")
	require.NoError(t, err)
	assert.Equal(t, "agent", result.Value)
}

func TestScriptErrors(t *testing.T) {
	rt, _ := newRuntime(t, DefaultConfig())

	_, err := rt.Execute(context.Background(), "throw new Error('nope')")
	var ex *goja.Exception
	require.True(t, errors.As(err, &ex))
	assert.Contains(t, ex.Error(), "nope")

	_, err = rt.Execute(context.Background(), "syntax error here")
	assert.Error(t, err)
}
