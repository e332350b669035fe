// Package config loads monkey.yaml.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no -config flag is given. A missing default
// file is not an error.
const DefaultPath = "monkey.yaml"

type Config struct {
	ExitFromMain bool          `yaml:"exit_from_main"`
	MaxCallDepth int           `yaml:"max_call_depth"`
	Color        string        `yaml:"color"`
	History      HistoryConfig `yaml:"history"`
	Serve        ServeConfig   `yaml:"serve"`
}

// HistoryConfig selects where runs are recorded.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Driver  string `yaml:"driver"`
	DSN     string `yaml:"dsn"`
}

// ServeConfig bounds every playground run by Timeout and MaxInstructions.
type ServeConfig struct {
	Addr            string        `yaml:"addr"`
	MaxSourceBytes  int           `yaml:"max_source_bytes"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxInstructions int64         `yaml:"max_instructions"`
}

// ValidationError lists every problem found in a config file.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "config: " + strings.Join(e.Issues, "; ")
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		MaxCallDepth: 1024,
		Color:        "auto",
		History: HistoryConfig{
			Driver: "sqlite",
			DSN:    "monkey-history.db",
		},
		Serve: ServeConfig{
			Addr:            ":8080",
			MaxSourceBytes:  64 << 10,
			Timeout:         5 * time.Second,
			MaxInstructions: 100_000_000,
		},
	}
}

// Load reads path, falling back to defaults when path is DefaultPath and
// the file does not exist.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) && path == DefaultPath {
			return Default(), nil
		}
		return nil, errors.Wrapf(err, "config: open %s", path)
	}
	defer file.Close()

	cfg, err := Decode(file)
	if err != nil {
		return nil, errors.Wrapf(err, "config: parse %s", path)
	}
	return cfg, nil
}

// Decode reads YAML over the defaults. Unknown keys are rejected.
func Decode(r io.Reader) (*Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && err != io.EOF {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs ValidationError
	if c.MaxCallDepth <= 0 {
		errs.Issues = append(errs.Issues, fmt.Sprintf("max_call_depth must be positive, got %d", c.MaxCallDepth))
	}
	switch c.Color {
	case "auto", "always", "never":
	default:
		errs.Issues = append(errs.Issues, fmt.Sprintf("color must be auto, always or never, got %q", c.Color))
	}
	switch c.History.Driver {
	case "sqlite", "postgres", "mysql", "sqlserver":
	default:
		errs.Issues = append(errs.Issues, fmt.Sprintf("history.driver %q is not supported", c.History.Driver))
	}
	if c.History.Enabled && c.History.DSN == "" {
		errs.Issues = append(errs.Issues, "history.dsn must be set when history is enabled")
	}
	if c.Serve.MaxSourceBytes <= 0 {
		errs.Issues = append(errs.Issues, "serve.max_source_bytes must be positive")
	}
	if c.Serve.Timeout <= 0 {
		errs.Issues = append(errs.Issues, "serve.timeout must be positive")
	}
	if c.Serve.MaxInstructions < 0 {
		errs.Issues = append(errs.Issues, "serve.max_instructions must not be negative")
	}
	if len(errs.Issues) > 0 {
		return &errs
	}
	return nil
}
