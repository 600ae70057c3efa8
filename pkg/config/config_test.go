package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.FullCheck)
	assert.NoError(t, cfg.Validate())
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beliefdb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: /tmp/bdb\nlog_level: debug\nfull_check: true\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/bdb", cfg.DataDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.FullCheck)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BELIEFDB_DATA_DIR", "/env/dir")
	t.Setenv("BELIEFDB_LOG_LEVEL", "warn")
	t.Setenv("BELIEFDB_FULL_CHECK", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/env/dir", cfg.DataDir)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.True(t, cfg.FullCheck)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "loud"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.DataDir = ""
	assert.Error(t, cfg.Validate())
}
