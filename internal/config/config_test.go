package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Riyakuila/Chat-Flow/internal/config"
)

func writeYaml(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("Success - defaults with only the secret set", func(t *testing.T) {
		t.Setenv("CONFIG_FILE", "")
		t.Setenv("JWT_SECRET", "s3cret")

		cfg, err := config.Load()

		require.NoError(t, err)
		assert.Equal(t, "chat-flow", cfg.Service.Name)
		assert.Equal(t, 5*time.Second, cfg.Realtime.PingInterval)
		assert.Equal(t, 10*time.Second, cfg.Realtime.SweepInterval)
		assert.Equal(t, []string{"*"}, cfg.Realtime.AllowedOrigins)
		assert.Empty(t, cfg.Redis.URL)
	})

	t.Run("Success - yaml overrides defaults and env overrides yaml", func(t *testing.T) {
		path := writeYaml(t, `
service:
  name: yaml-service
realtime:
  sweep_interval: 30s
  allowed_origins:
    - http://yaml-origin.com
redis:
  url: redis://yaml-redis:6379
auth:
  secret: from-yaml
`)
		t.Setenv("CONFIG_FILE", path)
		t.Setenv("JWT_SECRET", "")
		t.Setenv("SERVICE_NAME", "env-service")
		t.Setenv("WS_PING_INTERVAL", "2s")

		cfg, err := config.Load()

		require.NoError(t, err)
		assert.Equal(t, "env-service", cfg.Service.Name)
		assert.Equal(t, "development", cfg.Service.Env)
		assert.Equal(t, 30*time.Second, cfg.Realtime.SweepInterval)
		assert.Equal(t, 2*time.Second, cfg.Realtime.PingInterval)
		assert.Equal(t, []string{"http://yaml-origin.com"}, cfg.Realtime.AllowedOrigins)
		assert.Equal(t, "redis://yaml-redis:6379", cfg.Redis.URL)
		assert.Equal(t, "from-yaml", cfg.Auth.Secret)
	})

	t.Run("Success - comma separated origins from env", func(t *testing.T) {
		t.Setenv("CONFIG_FILE", "")
		t.Setenv("JWT_SECRET", "s3cret")
		t.Setenv("WS_ALLOWED_ORIGINS", "http://a.com, http://b.com,")

		cfg, err := config.Load()

		require.NoError(t, err)
		assert.Equal(t, []string{"http://a.com", "http://b.com"}, cfg.Realtime.AllowedOrigins)
	})

	t.Run("Success - malformed numbers fall back", func(t *testing.T) {
		t.Setenv("CONFIG_FILE", "")
		t.Setenv("JWT_SECRET", "s3cret")
		t.Setenv("WS_OUTBOX_SIZE", "lots")
		t.Setenv("SWEEP_INTERVAL", "soon")

		cfg, err := config.Load()

		require.NoError(t, err)
		assert.Equal(t, 256, cfg.Realtime.OutboxSize)
		assert.Equal(t, 10*time.Second, cfg.Realtime.SweepInterval)
	})

	t.Run("Failure - missing secret", func(t *testing.T) {
		t.Setenv("CONFIG_FILE", "")
		t.Setenv("JWT_SECRET", "")

		_, err := config.Load()

		require.Error(t, err)
	})

	t.Run("Failure - pong wait not longer than ping interval", func(t *testing.T) {
		t.Setenv("CONFIG_FILE", "")
		t.Setenv("JWT_SECRET", "s3cret")
		t.Setenv("WS_PING_INTERVAL", "20s")
		t.Setenv("WS_PONG_WAIT", "10s")

		_, err := config.Load()

		require.Error(t, err)
	})

	t.Run("Failure - missing config file", func(t *testing.T) {
		t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))

		_, err := config.Load()

		require.Error(t, err)
	})
}
