// Package config handles CLI configuration loading and management.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// DefaultKeyName is the keystore entry used when no key name is configured.
const DefaultKeyName = "default"

// Config represents the CLI configuration.
type Config struct {
	// BaseURL overrides the Dify API endpoint, e.g. for self-hosted installs.
	BaseURL string `yaml:"base_url,omitempty" toml:"base_url,omitempty"`

	// User is the end-user id sent with every request.
	User string `yaml:"user,omitempty" toml:"user,omitempty"`

	// Key names the keystore entry holding the app API key.
	Key string `yaml:"key,omitempty" toml:"key,omitempty"`

	// Timeout is a Go duration string such as "45s".
	Timeout string `yaml:"timeout,omitempty" toml:"timeout,omitempty"`

	// TLS is "default" or "strict".
	TLS string `yaml:"tls,omitempty" toml:"tls,omitempty"`

	// RateLimit caps requests per second. Zero disables pacing.
	RateLimit float64 `yaml:"rate_limit,omitempty" toml:"rate_limit,omitempty"`

	// Render formats answers as markdown when stdout is a terminal.
	Render bool `yaml:"render,omitempty" toml:"render,omitempty"`
}

// DefaultConfigPath returns the default configuration file path for the current platform.
// - macOS/Linux: ~/.dify/config.yaml
// - Windows: %USERPROFILE%\.dify\config.yaml
func DefaultConfigPath() string {
	home := homeDir()
	if home == "" {
		return "config.yaml"
	}
	return filepath.Join(home, ".dify", "config.yaml")
}

func homeDir() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("USERPROFILE")
	}
	return os.Getenv("HOME")
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// LoadConfig loads configuration from the specified path. Files ending in
// .toml are read as TOML, everything else as YAML.
// If the file doesn't exist, returns an empty config without error.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if isTOML(path) {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path in the format implied by its extension.
func Save(path string, cfg *Config) error {
	var buf bytes.Buffer
	if isTOML(path) {
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return err
		}
	} else {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0600)
}

// Validate checks fields that have a fixed syntax.
func (c *Config) Validate() error {
	if c.Timeout != "" {
		if _, err := time.ParseDuration(c.Timeout); err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
	}
	switch c.TLS {
	case "", "default", "strict":
	default:
		return fmt.Errorf("tls: want default or strict, got %q", c.TLS)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit: must not be negative")
	}
	return nil
}

// TimeoutDuration returns the parsed timeout, or zero when unset.
func (c *Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// KeyName returns the keystore entry to use.
func (c *Config) KeyName() string {
	if c.Key == "" {
		return DefaultKeyName
	}
	return c.Key
}

// EnsureUser assigns a random end-user id when none is set and reports
// whether it did.
func (c *Config) EnsureUser() bool {
	if c.User != "" {
		return false
	}
	c.User = "cli-" + uuid.NewString()
	return true
}
