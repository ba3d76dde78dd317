// Package config manages per-repository configuration stored at
// .mf/config.yaml, loaded with environment variable expansion and
// validated before use.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// File is the config location relative to the repo root.
const File = ".mf/config.yaml"

// Duration is a time.Duration that reads and writes the human form ("30s",
// "1m30s") in YAML. yaml.v3 does not decode duration strings into
// time.Duration on its own.
type Duration time.Duration

// UnmarshalYAML accepts "30s" style strings and, for compatibility with
// files written as raw nanoseconds, bare integers.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!int" {
		var ns int64
		if err := node.Decode(&ns); err != nil {
			return err
		}
		*d = Duration(ns)
		return nil
	}
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the human form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config is the repository configuration.
type Config struct {
	// Editor is the external editor command; empty means auto-detect from
	// $EDITOR at invocation time.
	Editor   string    `yaml:"editor"`
	LogLevel string    `yaml:"log_level"`
	Git      GitConfig `yaml:"git"`
}

// GitConfig controls the version-log backend.
type GitConfig struct {
	// AutoPush enables the best-effort push after each commit.
	AutoPush bool   `yaml:"auto_push"`
	Remote   string `yaml:"remote"`
	// Timeout bounds every git subprocess invocation.
	Timeout Duration `yaml:"timeout"`
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogLevel, validation.Required,
			validation.In("debug", "info", "warn", "error")),
	); err != nil {
		return err
	}
	return validation.ValidateStruct(&c.Git,
		validation.Field(&c.Git.Remote, validation.Required),
		validation.Field(&c.Git.Timeout, validation.Min(Duration(time.Second))),
	)
}

// SlogLevel converts the configured level string.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Default returns the configuration written into fresh repositories.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Git: GitConfig{
			AutoPush: false,
			Remote:   "origin",
			Timeout:  Duration(30 * time.Second),
		},
	}
}

// Load reads the repo configuration, expanding ${ENV} references. A missing
// file yields the defaults.
func Load(root string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(root, filepath.FromSlash(File))
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration file, creating .mf/ as needed.
func Save(root string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: validate: %w", err)
	}
	path := filepath.Join(root, filepath.FromSlash(File))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: mkdir: %w", err)
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
