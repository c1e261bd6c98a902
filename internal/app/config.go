package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// DefaultServerURL is where an httpstan server listens when started with its
// stock settings.
const DefaultServerURL = "http://localhost:8080"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	GridPath  string // scenario .hcl file or directory
	ServerURL string

	// HTTPTimeout bounds each individual request. Zero disables the
	// deadline, leaving cancellation to the context alone.
	HTTPTimeout time.Duration

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
}

// envOverrides are the environment knobs recognized under the STANBENCH_
// prefix. They fill in values the command line left unset.
type envOverrides struct {
	ServerURL   string        `envconfig:"server_url"`
	HTTPTimeout time.Duration `envconfig:"http_timeout"`
}

// NewConfig validates a config and layers in the environment: explicit flags
// win, then STANBENCH_* variables (including any .env file in the working
// directory), then built-in defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.GridPath == "" {
		return nil, errors.New("GridPath is a required configuration field and cannot be empty")
	}

	// A missing .env file is the normal case, not an error.
	_ = godotenv.Load()

	var env envOverrides
	if err := envconfig.Process("stanbench", &env); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	if cfg.ServerURL == "" {
		cfg.ServerURL = env.ServerURL
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = DefaultServerURL
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = env.HTTPTimeout
	}
	if cfg.HTTPTimeout < 0 {
		return nil, fmt.Errorf("HTTP timeout must not be negative, got %s", cfg.HTTPTimeout)
	}

	return &cfg, nil
}
