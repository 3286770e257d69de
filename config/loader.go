package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPollInterval  = 60 * time.Second
	DefaultBackend       = "memory"
	DefaultPostgresPort  = 5432
	DefaultTimeout       = 60 * time.Second
	DefaultMaxSize       = 800 << 20 // 800 MB
	DefaultRetries       = 3
	DefaultDepartureName = "Next Bus"
)

// Default returns a configuration with all defaults applied. It
// lacks gtfs_file and departures, so it doesn't validate as is.
func Default() Config {
	cfg := Config{}
	applyDefaults(&cfg)
	return cfg
}

// Load reads and validates the configuration at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML configuration.
func Parse(data []byte) (Config, error) {
	cfg, err := Decode(data)
	if err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Decode decodes a YAML configuration and applies defaults, without
// validating it.
func Decode(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}

	applyDefaults(&cfg)
	return cfg, nil
}

// Validate checks struct tags and cross-field constraints.
func (c Config) Validate() error {
	return c.validate()
}

// ValidateFeed is Validate without requiring any departures.
func (c Config) ValidateFeed() error {
	return c.validate("Departures")
}

func (c Config) validate(except ...string) error {
	v := validator.New()

	var err error
	if len(except) > 0 {
		err = v.StructExcept(c, except...)
	} else {
		err = v.Struct(c)
	}
	if err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	if c.Storage.Backend == "postgres" && c.Storage.Postgres.Host == "" {
		return fmt.Errorf("validating config: storage.postgres.host is required for the postgres backend")
	}

	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("validating config: timezone: %w", err)
		}
	}
	return nil
}

// Location is the configured timezone, or local time if unset.
func (c Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func applyDefaults(cfg *Config) {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultBackend
	}
	if cfg.Storage.Postgres.Port == 0 {
		cfg.Storage.Postgres.Port = DefaultPostgresPort
	}
	if cfg.Download.Timeout == 0 {
		cfg.Download.Timeout = DefaultTimeout
	}
	if cfg.Download.MaxSize == 0 {
		cfg.Download.MaxSize = DefaultMaxSize
	}
	if cfg.Download.Retries == nil {
		retries := uint64(DefaultRetries)
		cfg.Download.Retries = &retries
	}
	for i := range cfg.Departures {
		if cfg.Departures[i].Name == "" {
			cfg.Departures[i].Name = DefaultDepartureName
		}
	}
}
