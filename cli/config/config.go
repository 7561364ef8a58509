// Package config handles CLI configuration loading and management.
package config

import (
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the CLI configuration. Zero fields mean "use the
// built-in default"; flags override config values.
type Config struct {
	// BaseURL overrides the assistant endpoint.
	BaseURL string `yaml:"base_url,omitempty"`

	// APIKeyRef names the keystore entry holding the API key.
	// Defaults to "default" when empty.
	APIKeyRef string `yaml:"api_key_ref,omitempty"`

	// TimeoutMS is the per-attempt deadline in milliseconds.
	TimeoutMS int `yaml:"timeout_ms,omitempty"`

	// MaxRetries is the retry budget after the first failure.
	// Zero means default, -1 disables retries.
	MaxRetries int `yaml:"max_retries,omitempty"`

	// RetryDelayMS is the base backoff delay in milliseconds.
	RetryDelayMS int `yaml:"retry_delay_ms,omitempty"`

	// DisableMetrics turns off metrics in output and callbacks.
	DisableMetrics bool `yaml:"disable_metrics,omitempty"`
}

// DefaultConfigPath returns the default configuration file path for the current platform.
// - macOS/Linux: ~/.squall/config.yaml
// - Windows: %USERPROFILE%\.squall\config.yaml
func DefaultConfigPath() string {
	var homeDir string

	if runtime.GOOS == "windows" {
		homeDir = os.Getenv("USERPROFILE")
	} else {
		homeDir = os.Getenv("HOME")
	}

	if homeDir == "" {
		// Fallback to current directory
		return "config.yaml"
	}

	return filepath.Join(homeDir, ".squall", "config.yaml")
}

// LoadConfig loads configuration from the specified path.
// If the file doesn't exist, returns an empty config without error.
// Returns an error only if the file exists but cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Missing config file is not an error
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
