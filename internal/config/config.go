// Package config provides run configuration loading for crowdsim.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/talgya/crowdsim/internal/engine"
)

// Config contains all run settings.
type Config struct {
	// Run controls the clock and the ending conditions.
	Run RunConfig `json:"run" yaml:"run"`

	// Storage controls where drained agent logs and stats go.
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Logging contains settings for operational logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// API configures the optional HTTP status server.
	API APIConfig `json:"api" yaml:"api"`
}

// RunConfig configures the simulation clock.
type RunConfig struct {
	// Seed feeds every random source in the run. Equal seeds replay equal runs.
	Seed int64 `json:"seed" yaml:"seed"`

	// TickMillis is the simulated time per tick, in (0, 1000].
	TickMillis int `json:"tick_ms" yaml:"tick_ms"`

	// MaxTicks ends the run after this many ticks. 0 means no limit, in
	// which case the run ends once every agent has left.
	MaxTicks uint64 `json:"max_ticks" yaml:"max_ticks"`

	// Realtime paces ticks against the wall clock instead of running them
	// back to back.
	Realtime bool `json:"realtime" yaml:"realtime"`

	// Speed multiplies the pace in realtime mode.
	Speed float64 `json:"speed" yaml:"speed"`
}

// StorageConfig configures the log sink.
type StorageConfig struct {
	// DB is a SQLite file path. Empty sends agent logs to the logger.
	DB string `json:"db,omitempty" yaml:"db,omitempty"`

	// StatsEverySeconds is the simulated interval between stats snapshots.
	StatsEverySeconds int `json:"stats_every_s" yaml:"stats_every_s"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "trace" additionally echoes every agent log line.
	Level string `json:"level" yaml:"level"`
}

// APIConfig configures the HTTP status server.
type APIConfig struct {
	// Addr is the listen address, e.g. ":8080". Empty disables the server.
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`

	// AdminKey is the bearer token for control endpoints. Never read from
	// the config file; set CROWDSIM_ADMIN_KEY instead.
	AdminKey string `json:"-" yaml:"-"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Run: RunConfig{
			Seed:       1,
			TickMillis: engine.DefaultTickMillis,
			Speed:      1.0,
		},
		Storage: StorageConfig{
			StatsEverySeconds: 1,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load returns the defaults, or the file at path when it is non-empty,
// with environment overrides applied on top.
func Load(path string) (*Config, error) {
	config := Default()
	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		config = fileConfig
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file. Unset fields
// keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	config.Storage.DB = os.ExpandEnv(config.Storage.DB)

	return config, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if err := engine.ValidateTick(c.Run.TickMillis); err != nil {
		return err
	}

	if c.Run.Realtime && !(c.Run.Speed > 0) {
		return fmt.Errorf("speed must be positive in realtime mode, got %v", c.Run.Speed)
	}

	if c.Storage.StatsEverySeconds < 0 {
		return fmt.Errorf("stats_every_s must be non-negative, got %d", c.Storage.StatsEverySeconds)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	if c.API.AdminKey != "" && c.API.Addr == "" {
		return fmt.Errorf("CROWDSIM_ADMIN_KEY is set but the API is disabled (no api.addr)")
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Malformed numbers are errors.
func applyEnvOverrides(config *Config) error {
	if v := os.Getenv("CROWDSIM_SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("CROWDSIM_SEED: %w", err)
		}
		config.Run.Seed = n
	}

	if v := os.Getenv("CROWDSIM_TICK_MILLIS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CROWDSIM_TICK_MILLIS: %w", err)
		}
		config.Run.TickMillis = n
	}

	if v := os.Getenv("CROWDSIM_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("CROWDSIM_DB"); v != "" {
		config.Storage.DB = v
	}

	if v := os.Getenv("CROWDSIM_API_ADDR"); v != "" {
		config.API.Addr = v
	}

	config.API.AdminKey = os.Getenv("CROWDSIM_ADMIN_KEY")

	return nil
}
