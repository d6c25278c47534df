// Copyright 2026 The Quarterdeck Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for Quarterdeck.
//
// Configuration is loaded from a single YAML file specified by:
//   - QUARTERDECK_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. The config file may
// contain environment-specific sections (development, staging,
// production) that override base values when the environment matches.
//
// Launch profiles — named presets for `runner launch` — live in a
// JSONC sidecar file referenced from the main config; see profile.go.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment the console
// client talks to.
type Environment string

const (
	// Development is a local or per-team console instance.
	Development Environment = "development"
	// Staging is the pre-production console.
	Staging Environment = "staging"
	// Production is the production console.
	Production Environment = "production"
)

// Config is the master configuration for Quarterdeck.
type Config struct {
	// Environment identifies the deployment type.
	Environment Environment `yaml:"environment"`

	// Console configures the connection to the console API.
	Console ConsoleConfig `yaml:"console"`

	// Transcripts configures terminal session recording.
	Transcripts TranscriptsConfig `yaml:"transcripts"`

	// Profiles is the path to the launch-profiles JSONC file.
	Profiles string `yaml:"profiles"`

	// Per-environment overrides, applied after the base config.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per
// environment.
type ConfigOverrides struct {
	Console     *ConsoleConfig     `yaml:"console,omitempty"`
	Transcripts *TranscriptsConfig `yaml:"transcripts,omitempty"`
}

// ConsoleConfig configures the console API connection.
type ConsoleConfig struct {
	// URL is the console base URL (https://...). Required.
	URL string `yaml:"url"`

	// TokenFile is the path to a file holding the API bearer token.
	// Default: ${HOME}/.config/quarterdeck/token
	TokenFile string `yaml:"token_file"`

	// DialTimeout bounds connection establishment, as a Go duration
	// string. Default: 30s
	DialTimeout string `yaml:"dial_timeout"`
}

// TranscriptsConfig configures terminal session recording.
type TranscriptsConfig struct {
	// Dir is where transcript files are written.
	// Default: ${HOME}/.cache/quarterdeck/transcripts
	Dir string `yaml:"dir"`

	// Record enables recording for every attach without passing
	// --transcript. Default: false.
	Record bool `yaml:"record"`
}

// Default returns the default configuration. These defaults give all
// fields sensible zero-values before the config file is loaded; the
// file is still required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Environment: Development,
		Console: ConsoleConfig{
			TokenFile:   filepath.Join(homeDir, ".config", "quarterdeck", "token"),
			DialTimeout: "30s",
		},
		Transcripts: TranscriptsConfig{
			Dir: filepath.Join(homeDir, ".cache", "quarterdeck", "transcripts"),
		},
	}
}

// Load loads configuration from the QUARTERDECK_CONFIG environment
// variable. There are no fallbacks: if the variable is not set, this
// fails.
func Load() (*Config, error) {
	configPath := os.Getenv("QUARTERDECK_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("QUARTERDECK_CONFIG environment variable not set; " +
			"set it to the path of your quarterdeck.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. The config
// file is the single source of truth; environment variables do not
// override config values. The only expansion performed is ${HOME} and
// similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

// applyEnvironmentOverrides applies the section matching
// c.Environment over the base values.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if overrides.Console != nil {
		if overrides.Console.URL != "" {
			c.Console.URL = overrides.Console.URL
		}
		if overrides.Console.TokenFile != "" {
			c.Console.TokenFile = overrides.Console.TokenFile
		}
		if overrides.Console.DialTimeout != "" {
			c.Console.DialTimeout = overrides.Console.DialTimeout
		}
	}
	if overrides.Transcripts != nil {
		if overrides.Transcripts.Dir != "" {
			c.Transcripts.Dir = overrides.Transcripts.Dir
		}
		// Record is a bool, so it always applies from overrides.
		c.Transcripts.Record = overrides.Transcripts.Record
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in
// paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Console.TokenFile = expandVars(c.Console.TokenFile, vars)
	c.Transcripts.Dir = expandVars(c.Transcripts.Dir, vars)
	c.Profiles = expandVars(c.Profiles, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}
	if c.Console.URL == "" {
		errs = append(errs, fmt.Errorf("console.url is required"))
	}
	if c.Console.DialTimeout != "" {
		if _, err := time.ParseDuration(c.Console.DialTimeout); err != nil {
			errs = append(errs, fmt.Errorf("console.dial_timeout: %w", err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// DialTimeout returns the parsed console dial timeout. Validate
// catches malformed values; an unset value falls back to 30 seconds.
func (c *Config) DialTimeout() time.Duration {
	if c.Console.DialTimeout == "" {
		return 30 * time.Second
	}
	parsed, err := time.ParseDuration(c.Console.DialTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return parsed
}

// ReadToken reads the API bearer token from the configured token
// file, trimming surrounding whitespace.
func (c *Config) ReadToken() (string, error) {
	data, err := os.ReadFile(c.Console.TokenFile)
	if err != nil {
		return "", fmt.Errorf("reading console token: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("console token file %s is empty", c.Console.TokenFile)
	}
	return token, nil
}

// EnsureTranscriptsDir creates the transcripts directory if needed.
func (c *Config) EnsureTranscriptsDir() error {
	if c.Transcripts.Dir == "" {
		return nil
	}
	if err := os.MkdirAll(c.Transcripts.Dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", c.Transcripts.Dir, err)
	}
	return nil
}
