package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_BadConfigFileFails(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := FromEnv()
	require.Error(t, err, "a mistyped CONFIG_FILE must not be silently ignored")
}

func TestFromEnv_FileOverlayAndEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http_addr: \":9999\"\ndb_driver: memory\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("DB_DRIVER", "sqlite")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, "sqlite", cfg.DBDriver, "env overrides the file")
}
