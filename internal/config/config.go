package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/psantana5/callstats/pkg/callstats"
	"github.com/psantana5/callstats/pkg/report"
	"github.com/psantana5/callstats/pkg/store"
)

// EnvPrefix prefixes every environment override, e.g. CALLSTATS_MODE.
const EnvPrefix = "CALLSTATS"

// Config is the effective configuration of the CLI
type Config struct {
	Mode     string `mapstructure:"mode" yaml:"mode"`
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" yaml:"log_json"`
	LogFile  string `mapstructure:"log_file" yaml:"log_file,omitempty"`
	Output   string `mapstructure:"output" yaml:"output"`

	Workers    int     `mapstructure:"workers" yaml:"workers"`
	Iterations int     `mapstructure:"iterations" yaml:"iterations"`
	Rate       float64 `mapstructure:"rate" yaml:"rate"`
	Seed       int64   `mapstructure:"seed" yaml:"seed"`
	Depth      int     `mapstructure:"depth" yaml:"depth"`

	Listen          string        `mapstructure:"listen" yaml:"listen"`
	PublishInterval time.Duration `mapstructure:"publish_interval" yaml:"publish_interval"`

	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Tracing TracingConfig `mapstructure:"tracing" yaml:"tracing"`
}

// StoreConfig selects where runs are persisted
type StoreConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn,omitempty"`
}

// TracingConfig controls OTLP export
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint    string `mapstructure:"endpoint" yaml:"endpoint"`
	Environment string `mapstructure:"environment" yaml:"environment"`
}

// SetDefaults registers every key with its default so env overrides apply
func SetDefaults(v *viper.Viper) {
	v.SetDefault("mode", "enabled")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
	v.SetDefault("log_file", "")
	v.SetDefault("output", report.FormatTable)
	v.SetDefault("workers", 4)
	v.SetDefault("iterations", 200)
	v.SetDefault("rate", 0.0)
	v.SetDefault("seed", 1)
	v.SetDefault("depth", 4)
	v.SetDefault("listen", ":9464")
	v.SetDefault("publish_interval", "1s")
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.environment", "development")
}

// DefaultPath returns $HOME/.callstats/config.yaml
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".callstats", "config.yaml")
}

// Load reads configuration from path (or the default location when path is
// empty), then the environment. A missing default file is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			missing := errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
			if explicit || !missing {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values no command can work with
func (c *Config) Validate() error {
	if _, err := callstats.ParseMode(c.Mode); err != nil {
		return err
	}
	if !contains(report.Formats, c.Output) {
		return fmt.Errorf("invalid output %q: expected one of %s", c.Output, strings.Join(report.Formats, ", "))
	}
	if !contains(store.Drivers, c.Store.Driver) {
		return fmt.Errorf("invalid store driver %q: expected one of %s", c.Store.Driver, strings.Join(store.Drivers, ", "))
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.Iterations < 0 {
		return fmt.Errorf("iterations must not be negative, got %d", c.Iterations)
	}
	if c.Rate < 0 {
		return fmt.Errorf("rate must not be negative, got %g", c.Rate)
	}
	if c.Depth < 1 {
		return fmt.Errorf("depth must be at least 1, got %d", c.Depth)
	}
	if c.PublishInterval <= 0 {
		return fmt.Errorf("publish_interval must be positive, got %s", c.PublishInterval)
	}
	return nil
}

// CallMode returns the parsed instrumentation mode
func (c *Config) CallMode() callstats.Mode {
	m, _ := callstats.ParseMode(c.Mode)
	return m
}

// StoreOptions converts the store section for store.Open
func (c *Config) StoreOptions() store.Config {
	return store.Config{Driver: c.Store.Driver, DSN: c.Store.DSN}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
