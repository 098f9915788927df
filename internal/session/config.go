package session

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultHost is used when GPURELAY_HOST is unset.
	DefaultHost = "localhost"
	// DefaultPort is used when GPURELAY_PORT is unset.
	DefaultPort = 18515
	// DefaultTimeoutSec is the per-call I/O timeout when GPURELAY_TIMEOUT
	// is unset.
	DefaultTimeoutSec = 60
)

// Config holds the client-side connection settings. Fields map onto the
// environment variables of the same name.
type Config struct {
	Host       string `mapstructure:"GPURELAY_HOST"`
	Port       int    `mapstructure:"GPURELAY_PORT"`
	TimeoutSec int    `mapstructure:"GPURELAY_TIMEOUT"`
	Debug      bool   `mapstructure:"GPURELAY_DEBUG"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Host:       DefaultHost,
		Port:       DefaultPort,
		TimeoutSec: DefaultTimeoutSec,
	}
}

// FromEnv builds a Config from the process environment, honoring a .env
// file in the working directory when present. Unset variables keep their
// defaults.
func FromEnv() Config {
	godotenv.Load() // best effort; absence of a .env file is not an error

	vars := map[string]string{}
	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, "GPURELAY_") {
			continue
		}
		if i := strings.IndexByte(kv, '='); i > 0 {
			vars[kv[:i]] = kv[i+1:]
		}
	}

	cfg := DefaultConfig()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
	})
	if err == nil {
		err = decoder.Decode(vars)
	}
	if err != nil {
		log.Warn().Err(err).Msg("malformed GPURELAY_* environment value, keeping defaults")
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port <= 0 {
		cfg.Port = DefaultPort
	}
	if cfg.TimeoutSec <= 0 {
		cfg.TimeoutSec = DefaultTimeoutSec
	}
	return cfg
}

// Addr returns the host:port dial target.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Timeout returns the per-call I/O timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}
