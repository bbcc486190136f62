// Package config loads storexd configuration from an optional YAML file
// overlaid by STOREX_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "STOREX_"

// Config is the storexd runtime configuration.
type Config struct {
	LogLevel     string        `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat    string        `yaml:"log_format" env:"LOG_FORMAT"`
	Addr         string        `yaml:"addr" env:"ADDR"`
	QueueSize    int           `yaml:"queue_size" env:"QUEUE_SIZE"`
	HistorySize  int           `yaml:"history_size" env:"HISTORY_SIZE"`
	Namespace    string        `yaml:"namespace" env:"NAMESPACE"`
	TickInterval time.Duration `yaml:"tick_interval" env:"TICK_INTERVAL"` // 0 disables ticks
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel:    "info",
		LogFormat:   "text",
		Addr:        ":8080",
		QueueSize:   1024,
		HistorySize: 256,
		Namespace:   "storex",
	}
}

// Load builds the configuration: defaults, then the YAML file at path when
// path is not empty, then environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("yaml unmarshal %s: %w", path, err)
	}
	return nil
}

// ParseEnv loads STOREX_ environment variables into target. Fields whose
// variable is unset keep their value.
func ParseEnv(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format %q: want text or json", c.LogFormat))
	}
	if c.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("queue_size %d: must be positive", c.QueueSize))
	}
	if c.HistorySize <= 0 {
		errs = append(errs, fmt.Errorf("history_size %d: must be positive", c.HistorySize))
	}
	if c.TickInterval < 0 {
		errs = append(errs, fmt.Errorf("tick_interval %s: must not be negative", c.TickInterval))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("log_level %q: %w", s, err)
	}
	return level, nil
}

// NewLogger builds the process logger described by c, writing to w.
func NewLogger(c Config, w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch c.LogFormat {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text", "":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("log_format %q: want text or json", c.LogFormat)
	}
	return slog.New(handler), nil
}
