// Package config holds the worker daemon configuration, loaded from a toml
// file with defaults for every field so the daemon also runs with no file
// at all.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

// DeviceProfile describes one simulated device the worker serves.
type DeviceProfile struct {
	Name         string `toml:"name" validate:"required"`
	Arch         string `toml:"arch" validate:"required"`
	VramMB       uint64 `toml:"vram_mb" validate:"gt=0"`
	ComputeUnits uint32 `toml:"compute_units" validate:"gt=0"`
}

// ConfigParam holds all configuration parameters for the worker daemon.
type ConfigParam struct {
	ListenHost     string `toml:"listen_host"`
	ListenPort     int    `toml:"listen_port" validate:"gte=1,lte=65535"`
	IdleTimeoutSec int    `toml:"idle_timeout_sec" validate:"gte=1"`
	LogLevel       string `toml:"log_level"`

	Devices []DeviceProfile `toml:"devices" validate:"dive"`
}

var cfg *ConfigParam

// Config returns the current configuration.
func Config() *ConfigParam {
	if cfg == nil {
		cfg = Default()
	}
	return cfg
}

// Default returns the built-in configuration: one simulated device on the
// default port.
func Default() *ConfigParam {
	return &ConfigParam{
		ListenHost:     "0.0.0.0",
		ListenPort:     18515,
		IdleTimeoutSec: 300,
		LogLevel:       "info",
	}
}

// ListenAddr returns the host:port the worker binds.
func (c *ConfigParam) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ListenHost, c.ListenPort)
}

// IdleTimeout returns the per-connection read deadline.
func (c *ConfigParam) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSec) * time.Second
}

// ValidateConfig applies defaults for unset fields and checks the rest.
func ValidateConfig(c *ConfigParam) error {
	if c.ListenHost == "" {
		c.ListenHost = "0.0.0.0"
	}
	if c.ListenPort == 0 {
		c.ListenPort = 18515
	}
	if c.IdleTimeoutSec == 0 {
		c.IdleTimeoutSec = 300
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// LoadConfig loads configuration from a file. An empty filename selects
// the built-in defaults.
func LoadConfig(filename string) error {
	c := Default()
	if filename != "" {
		content, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}
		c = &ConfigParam{}
		if _, err := toml.Decode(string(content), c); err != nil {
			return fmt.Errorf("error parsing config file: %w", err)
		}
	}
	if err := ValidateConfig(c); err != nil {
		return err
	}
	cfg = c
	return nil
}
