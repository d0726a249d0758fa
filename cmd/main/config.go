package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/natefinch/atomic"
)

// envPrefix prefixes every environment variable that overrides the config file.
const envPrefix = "MARKOVKIT_"

// Config holds the settings of the command. Values from the config file can be
// overridden by MARKOVKIT_-prefixed environment variables.
type Config struct {
	LogLevel     string `json:"log_level" env:"LOG_LEVEL"`
	DatabasePath string `json:"database_path" env:"DATABASE_PATH"`
	MaxLength    int    `json:"max_length" env:"MAX_LENGTH"`
	// Seed makes sampling reproducible. 0 uses the process-wide generator.
	Seed uint64 `json:"seed" env:"SEED"`
}

// DefaultConfig creates a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:     "info",
		DatabasePath: "./markovkit.db",
		MaxLength:    20,
		Seed:         0,
	}
}

// LoadConfig reads the configuration from a JSON file at the given path and
// applies environment overrides. A missing file leaves the defaults in place.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	file, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err == nil {
		if err = json.Unmarshal(file, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err = env.ParseWithOptions(config, env.Options{Prefix: envPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if config.MaxLength < 0 {
		return nil, fmt.Errorf("max_length must not be negative, got %d", config.MaxLength)
	}
	return config, nil
}

// WriteConfig atomically writes config as indented JSON to path.
func WriteConfig(path string, config *Config) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// parseLogLevel maps a config log level to a slog.Level, defaulting to info.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
