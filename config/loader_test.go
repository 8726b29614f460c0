package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_DefaultsOnly(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 20, cfg.RateLimit.Chat)
}

func TestLoader_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: 9000\nstore:\n  uri: mongodb://localhost\n"), 0o644))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.HTTPPort)
	assert.Equal(t, "mongodb://localhost", cfg.Store.URI)
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: 9000\n"), 0o644))

	t.Setenv("MUKOKO_SERVER_HTTP_PORT", "9100")
	cfg, err := NewLoader().WithConfigPath(path).WithEnvPrefix("MUKOKO").Load()
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.HTTPPort)
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()
	require.Error(t, err, "missing store URI must fail validation")

	cfg.Store.URI = "mongodb://localhost"
	require.NoError(t, cfg.Validate())

	cfg.Server.HTTPPort = 0
	require.Error(t, cfg.Validate())
}

func TestLoader_MissingFileIsNotFatal(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/path/config.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server.HTTPPort, cfg.Server.HTTPPort)
}
