package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 9180, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 0.75, cfg.Scoring.DirectSimilarity)
	assert.Equal(t, 0.3, cfg.Scoring.RecallSimilarity)
	assert.Equal(t, 24*time.Hour, cfg.Scheduler.Interval)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
server:
  port: 8088
scoring:
  direct_similarity: 0.8
reasoning:
  model: test-model
  timeout: 30s
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, 0.8, cfg.Scoring.DirectSimilarity)
	assert.Equal(t, "test-model", cfg.Reasoning.Model)
	assert.Equal(t, 30*time.Second, cfg.Reasoning.Timeout)
}

func TestLoadEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8088\n"), 0o600))

	t.Setenv("SERVER_PORT", "7777")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7777, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		var cfg Config
		applyDefaults(&cfg)
		return &cfg
	}

	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("port out of range", func(t *testing.T) {
		cfg := valid()
		cfg.Server.Port = 70000
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})

	t.Run("similarity out of range", func(t *testing.T) {
		cfg := valid()
		cfg.Scoring.DirectSimilarity = 1.5
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})

	t.Run("recall above direct", func(t *testing.T) {
		cfg := valid()
		cfg.Scoring.RecallSimilarity = 0.9
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})

	t.Run("scheduler interval too short", func(t *testing.T) {
		cfg := valid()
		cfg.Scheduler.Enabled = true
		cfg.Scheduler.Interval = time.Second
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})
}
