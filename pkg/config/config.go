// Package config handles BeliefDB configuration via an optional YAML file
// plus BELIEFDB_-prefixed environment variable overrides.
//
// Example Usage:
//
//	cfg, err := config.Load("beliefdb.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//		log.Fatal(err)
//	}
//
// Environment Variables:
//   - BELIEFDB_DATA_DIR: snapshot store directory
//   - BELIEFDB_LOG_LEVEL: trace|debug|info|warn|error
//   - BELIEFDB_FULL_CHECK: run the full built-in test after loading
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all BeliefDB settings.
type Config struct {
	// DataDir is the snapshot store directory.
	DataDir string `yaml:"data_dir"`
	// LogLevel selects the logrus level name.
	LogLevel string `yaml:"log_level"`
	// FullCheck runs the full invariant suite (cycles, sort contiguity)
	// after loading a snapshot, not just the path checks.
	FullCheck bool `yaml:"full_check"`
}

// DefaultConfig returns the defaults used when no file or environment is
// present.
func DefaultConfig() Config {
	return Config{
		DataDir:   "./data",
		LogLevel:  "info",
		FullCheck: false,
	}
}

// Load reads the optional YAML file at path (missing files fall back to
// defaults) and applies environment overrides.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fall through to env overrides
		case err != nil:
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("BELIEFDB_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("BELIEFDB_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("BELIEFDB_FULL_CHECK"); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			c.FullCheck = parsed
		}
	}
}

// Validate rejects configurations the CLI cannot run with.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	switch c.LogLevel {
	case "trace", "debug", "info", "warn", "warning", "error":
		return nil
	}
	return fmt.Errorf("unknown log level %q", c.LogLevel)
}
