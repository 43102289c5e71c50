package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "parlance.db", cfg.Database.Path)
	assert.Equal(t, 0.85, cfg.Policy.DirectThreshold)
	assert.Equal(t, 0.70, cfg.Policy.RelatedThreshold)
	assert.Equal(t, 0.50, cfg.Policy.ContextualThreshold)
	assert.Equal(t, 0.85, cfg.Policy.ExplicitFloor)
	assert.Equal(t, 4, cfg.Ingest.Workers)
	assert.Equal(t, 250*time.Millisecond, cfg.Ingest.FlushInterval)
	assert.Equal(t, 30, cfg.Semantic.MaxPerSense)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PARLANCE_DB", "/tmp/other.db")
	t.Setenv("PARLANCE_POLICY_CONTEXTUAL", "0.55")
	t.Setenv("PARLANCE_RETRY_MAX", "5")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/other.db", cfg.Database.Path)
	assert.Equal(t, 0.55, cfg.Policy.ContextualThreshold)
	assert.Equal(t, 5, cfg.RetryPolicy().MaxRetries)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parlance.yaml")
	content := `
database:
  path: lexicon.db
policy:
  direct_threshold: 0.9
  related_threshold: 0.75
  contextual_threshold: 0.6
ingest:
  workers: 2
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "lexicon.db", cfg.Database.Path)
	assert.Equal(t, 0.9, cfg.Policy.DirectThreshold)
	assert.Equal(t, 0.6, cfg.Policy.ContextualThreshold)
	assert.Equal(t, 2, cfg.Ingest.Workers)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Unset fields keep their defaults.
	assert.Equal(t, 0.85, cfg.Policy.ExplicitFloor)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	t.Run("threshold ordering", func(t *testing.T) {
		cfg := base()
		cfg.Policy.RelatedThreshold = 0.9
		assert.ErrorContains(t, cfg.Validate(), "contextual < related < direct")
	})

	t.Run("out of range", func(t *testing.T) {
		cfg := base()
		cfg.Policy.DirectThreshold = 1.5
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad log level", func(t *testing.T) {
		cfg := base()
		cfg.Log.Level = "trace"
		assert.Error(t, cfg.Validate())
	})
}

func TestYAMLRoundTripKeys(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	out, err := cfg.YAML()
	require.NoError(t, err)
	assert.Contains(t, string(out), "direct_threshold: 0.85")
	assert.Contains(t, string(out), "path: parlance.db")
}
