package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// DefaultEnvFile is read by New when present.
const DefaultEnvFile = ".env"

var singleConfig *Config = nil

type Config struct {
	Service *svcConfig
	Watch   *watchConfig
}

type svcConfig struct {
	ServerUrl        string `envconfig:"STYLEFORGE_SERVER_URL" default:"http://localhost:8000"`
	ClientConfigFile string `envconfig:"STYLEFORGE_CLIENT_CONFIG" default:""`
	LogLevel         string `envconfig:"STYLEFORGE_LOG_LEVEL" default:"info"`
}

// watchConfig holds poll defaults. Zero durations fall back to the
// defaults of the job family being watched.
type watchConfig struct {
	Interval       time.Duration `envconfig:"STYLEFORGE_POLL_INTERVAL" default:"0s"`
	Timeout        time.Duration `envconfig:"STYLEFORGE_POLL_TIMEOUT" default:"0s"`
	RequestTimeout time.Duration `envconfig:"STYLEFORGE_REQUEST_TIMEOUT" default:"30s"`
	MaxFailures    int           `envconfig:"STYLEFORGE_POLL_MAX_FAILURES" default:"3"`
	Jitter         time.Duration `envconfig:"STYLEFORGE_POLL_JITTER" default:"0s"`
	MetricsAddress string        `envconfig:"STYLEFORGE_METRICS_ADDRESS" default:""`
}

func New() (*Config, error) {
	if singleConfig == nil {
		cfg, err := Load(DefaultEnvFile)
		if err != nil {
			return nil, err
		}
		singleConfig = cfg
	}
	return singleConfig, nil
}

// Load reads the optional env file, then the process environment.
// Variables already set in the environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg := new(Config)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Watch.Interval < 0:
		return fmt.Errorf("STYLEFORGE_POLL_INTERVAL must not be negative")
	case c.Watch.Timeout < 0:
		return fmt.Errorf("STYLEFORGE_POLL_TIMEOUT must not be negative")
	case c.Watch.RequestTimeout < 0:
		return fmt.Errorf("STYLEFORGE_REQUEST_TIMEOUT must not be negative")
	case c.Watch.Jitter < 0:
		return fmt.Errorf("STYLEFORGE_POLL_JITTER must not be negative")
	case c.Watch.MaxFailures < 1:
		return fmt.Errorf("STYLEFORGE_POLL_MAX_FAILURES must be at least 1")
	}
	return nil
}
