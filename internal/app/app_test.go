package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/membrane/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/membrane/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/membrane/internal/membrane"
	"github.com/GriffinCanCode/AgentOS/membrane/internal/object"
	"github.com/GriffinCanCode/AgentOS/membrane/internal/policy"
)

const sandboxPolicy = `
version: 1
fields:
  sandbox:
    freeze: true
    rules:
      - name: config
        class: Config
        action: whitelist
        allow: [name]
      - name: secrets
        class: "Secret*"
        action: deny
`

func newApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := NewWithLogger(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Sandbox.PoolSize = 2
	return cfg
}

func TestNew(t *testing.T) {
	cfg := testConfig()
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Membrane())
	assert.NotNil(t, a.Pool())
	assert.NotNil(t, a.Manager())
	assert.NotNil(t, a.Logger())
	assert.Nil(t, a.Policy())

	assert.True(t, a.Membrane().HasHandlerByField("sandbox"))
	assert.True(t, a.Membrane().HasHandlerByField("host"))
	assert.Equal(t, 2, a.Pool().Stats()["size"])

	t.Run("invalid log level", func(t *testing.T) {
		cfg := testConfig()
		cfg.Logging.Level = "loud"
		_, err := New(context.Background(), cfg)
		assert.Error(t, err)
	})
}

func TestExecute(t *testing.T) {
	a := newApp(t, testConfig())

	result, err := a.Execute(context.Background(), "[1, 2, 3].length")
	require.NoError(t, err)
	assert.EqualValues(t, 3, result.Value)
}

func TestMetricsRegistered(t *testing.T) {
	a := newApp(t, testConfig())

	api := object.NewOrdinary(nil).Put("version", 1)
	require.NoError(t, a.Pool().Expose("api", api))

	count, err := testutil.GatherAndCount(a.Registry(), "membrane_proxies_created_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	t.Run("disabled", func(t *testing.T) {
		cfg := testConfig()
		cfg.Metrics.Enabled = false
		a := newApp(t, cfg)

		families, err := a.Registry().Gather()
		require.NoError(t, err)
		assert.Empty(t, families)
	})
}

func TestPolicyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sandboxPolicy), 0o644))

	tests := []struct {
		name string
		path string
	}{
		{"file", path},
		{"directory", dir},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Membrane.PolicyFile = tt.path
			a := newApp(t, cfg)
			ctx := context.Background()

			require.NotNil(t, a.Policy())
			assert.Contains(t, a.Policy().Listeners, membrane.Field("sandbox"))

			settings := object.NewOrdinaryWithClass(nil, "Config").
				Put("name", "agent").
				Put("token", "s3cr3t")
			require.NoError(t, a.Pool().Expose("settings", settings))

			result, err := a.Execute(ctx, "settings.name + ':' + typeof settings.token")
			require.NoError(t, err)
			assert.Equal(t, "agent:undefined", result.Value)

			secret := object.NewOrdinaryWithClass(nil, "SecretKey")
			assert.ErrorIs(t, a.Pool().Expose("key", secret), membrane.ErrLeakPrevented)
		})
	}

	t.Run("missing", func(t *testing.T) {
		cfg := testConfig()
		cfg.Membrane.PolicyFile = filepath.Join(dir, "absent.yaml")
		_, err := NewWithLogger(context.Background(), cfg, logging.NewNop())
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("invalid", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("version: 1\nfields:\n  sandbox:\n    rules:\n      - action: deny\n"), 0o644))

		cfg := testConfig()
		cfg.Membrane.PolicyFile = bad
		_, err := NewWithLogger(context.Background(), cfg, logging.NewNop())
		assert.ErrorIs(t, err, policy.ErrInvalidPolicy)
	})
}

func TestClose(t *testing.T) {
	a := newApp(t, testConfig())

	session, err := a.Manager().Spawn("editor", nil)
	require.NoError(t, err)

	require.NoError(t, a.Close())
	assert.True(t, a.Membrane().Revoked())
	_, ok := a.Manager().Get(session.ID)
	assert.False(t, ok)

	_, err = a.Execute(context.Background(), "1")
	assert.Error(t, err)

	// idempotent
	assert.NoError(t, a.Close())
}
