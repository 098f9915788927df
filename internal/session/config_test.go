package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "localhost:18515", cfg.Addr())
	assert.Equal(t, 60*time.Second, cfg.Timeout())
	assert.False(t, cfg.Debug)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("GPURELAY_HOST", "10.0.0.5")
	t.Setenv("GPURELAY_PORT", "19999")
	t.Setenv("GPURELAY_TIMEOUT", "5")
	t.Setenv("GPURELAY_DEBUG", "true")

	cfg := FromEnv()
	assert.Equal(t, "10.0.0.5:19999", cfg.Addr())
	assert.Equal(t, 5*time.Second, cfg.Timeout())
	assert.True(t, cfg.Debug)
}

func TestFromEnvMalformedValue(t *testing.T) {
	t.Setenv("GPURELAY_HOST", "10.0.0.9")
	t.Setenv("GPURELAY_PORT", "not-a-port")

	// The bad value falls back to its default; valid variables still apply.
	cfg := FromEnv()
	assert.Equal(t, "10.0.0.9", cfg.Host)
	assert.Equal(t, DefaultPort, cfg.Port)
}

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("GPURELAY_HOST", "")
	t.Setenv("GPURELAY_PORT", "")
	t.Setenv("GPURELAY_TIMEOUT", "")

	cfg := FromEnv()
	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultTimeoutSec, cfg.TimeoutSec)
}
