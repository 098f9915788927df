package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	require.NoError(t, LoadConfig(""))
	c := Config()
	assert.Equal(t, "0.0.0.0:18515", c.ListenAddr())
	assert.Equal(t, 300, c.IdleTimeoutSec)
	assert.Equal(t, "info", c.LogLevel)
	assert.Empty(t, c.Devices)
}

func TestLoadFromFile(t *testing.T) {
	content := `
listen_host = "127.0.0.1"
listen_port = 19000
idle_timeout_sec = 60
log_level = "debug"

[[devices]]
name = "Sim Radeon GX1000"
arch = "gfx1030"
vram_mb = 16384
compute_units = 60
`
	path := filepath.Join(t.TempDir(), "gpurelayd.conf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	require.NoError(t, LoadConfig(path))
	c := Config()
	assert.Equal(t, "127.0.0.1:19000", c.ListenAddr())
	assert.Equal(t, "debug", c.LogLevel)
	require.Len(t, c.Devices, 1)
	assert.Equal(t, "gfx1030", c.Devices[0].Arch)
	assert.Equal(t, uint64(16384), c.Devices[0].VramMB)
}

func TestInvalidDeviceRejected(t *testing.T) {
	content := `
[[devices]]
name = ""
arch = "gfx1030"
vram_mb = 0
compute_units = 0
`
	path := filepath.Join(t.TempDir(), "bad.conf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	err := LoadConfig(path)
	assert.Error(t, err)
}

func TestMissingFile(t *testing.T) {
	err := LoadConfig(filepath.Join(t.TempDir(), "nope.conf"))
	assert.Error(t, err)
}
