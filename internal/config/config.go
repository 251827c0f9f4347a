// Package config loads and stores CLI configuration in the XDG config dir.
// Only non-secret settings are kept here; the session token goes to the OS keychain.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"authkit/cli/internal/xdg"
)

const (
	// DefaultBaseURL is the authentication service used when nothing else is configured.
	DefaultBaseURL = "https://api.developbetterapps.com"
	// DefaultTimeout bounds every request to the authentication service.
	DefaultTimeout = 10 * time.Second
	// VerboseEnv forces debug logging when set to "1".
	VerboseEnv = "AUTHKIT_VERBOSE"
)

// Config holds non-sensitive CLI settings.
type Config struct {
	BaseURL  string        `json:"base_url"`
	Timeout  Duration      `json:"timeout"`
	LogLevel string        `json:"log_level"`
	Keyring  KeyringConfig `json:"keyring"`
	// MetricsFile, when set, receives Prometheus text-format metrics after each
	// command, for node_exporter's textfile collector.
	MetricsFile string `json:"metrics_file,omitempty"`
}

// KeyringConfig selects how the session token is stored.
type KeyringConfig struct {
	// Backends lists allowed keyring backend names in preference order
	// (e.g. "keychain", "wincred", "secret-service", "kwallet", "pass", "file").
	// Empty means the platform default.
	Backends []string `json:"backends,omitempty"`
	// FileDir is where the encrypted file backend keeps its data.
	FileDir string `json:"file_dir,omitempty"`
}

// Duration is a time.Duration that reads and writes Go duration strings in JSON.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timeout must be a duration string: %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		BaseURL:  DefaultBaseURL,
		Timeout:  Duration(DefaultTimeout),
		LogLevel: "info",
	}
}

// Verbose reports whether debug logging was requested through the environment.
func Verbose() bool {
	return os.Getenv(VerboseEnv) == "1"
}

// path returns the path to the config file.
func path() (string, error) {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads configuration; missing file returns defaults.
// Fields absent from the file keep their default values.
func Load() (Config, error) {
	c := Default()
	p, err := path()
	if err != nil {
		return c, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return c, err
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return c, err
	}
	return c, c.Validate()
}

// Validate rejects settings the client cannot run with.
func (c Config) Validate() error {
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("base_url must be an http(s) URL, got %q", c.BaseURL)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	return nil
}

// Set assigns a single setting from its string form, as given on the command line.
func (c *Config) Set(key, value string) error {
	switch key {
	case "base_url":
		c.BaseURL = strings.TrimRight(strings.TrimSpace(value), "/")
	case "timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		c.Timeout = Duration(d)
	case "log_level":
		c.LogLevel = strings.ToLower(strings.TrimSpace(value))
	case "metrics_file":
		c.MetricsFile = strings.TrimSpace(value)
	default:
		return fmt.Errorf("unknown setting %q (want base_url, timeout, log_level or metrics_file)", key)
	}
	return c.Validate()
}

// Save writes configuration with 0600 permissions.
func Save(c Config) error {
	p, err := path()
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, b, 0o600)
}
