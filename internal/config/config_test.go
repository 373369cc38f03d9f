package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "grouptask.db", cfg.Database.Path)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
database:
  path: /var/lib/grouptask/data.db
line:
  channel_secret: secret-from-file
api:
  key: api-key-from-file
log_level: debug
default_group_id: G-home
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "/var/lib/grouptask/data.db", cfg.Database.Path)
	assert.Equal(t, "secret-from-file", cfg.Line.ChannelSecret)
	assert.Equal(t, "api-key-from-file", cfg.API.Key)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "G-home", cfg.DefaultGroupID)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
line:
  channel_secret: from-file
`), 0o644))

	t.Setenv("GROUPTASK_LINE_CHANNEL_SECRET", "from-env")
	t.Setenv("GROUPTASK_SERVER_ADDR", ":7777")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Line.ChannelSecret)
	assert.Equal(t, ":7777", cfg.Server.Addr)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not: valid"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
