package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()

	if path == "" {
		t.Error("DefaultConfigPath() returned empty string")
	}

	// Should end with config.yaml
	if filepath.Base(path) != "config.yaml" {
		t.Errorf("DefaultConfigPath() = %q, should end with config.yaml", path)
	}

	// Should contain .squall directory
	dir := filepath.Dir(path)
	if filepath.Base(dir) != ".squall" {
		t.Errorf("DefaultConfigPath() = %q, should be in .squall directory", path)
	}
}

func TestDefaultConfigPathPlatform(t *testing.T) {
	path := DefaultConfigPath()

	if runtime.GOOS == "windows" {
		// Should use USERPROFILE on Windows
		userProfile := os.Getenv("USERPROFILE")
		if userProfile != "" && !strings.HasPrefix(path, userProfile) {
			t.Logf("Note: path %q doesn't start with USERPROFILE %q", path, userProfile)
		}
	} else {
		// Should use HOME on Unix
		home := os.Getenv("HOME")
		if home != "" && !strings.HasPrefix(path, home) {
			t.Logf("Note: path %q doesn't start with HOME %q", path, home)
		}
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.yaml")

	if err != nil {
		t.Errorf("LoadConfig() error = %v, want nil for missing file", err)
	}

	if cfg == nil {
		t.Fatal("LoadConfig() returned nil config")
	}

	// Should return empty config
	if cfg.BaseURL != "" {
		t.Errorf("BaseURL = %q, want empty", cfg.BaseURL)
	}
	if cfg.APIKeyRef != "" {
		t.Errorf("APIKeyRef = %q, want empty", cfg.APIKeyRef)
	}
	if cfg.MaxRetries != 0 {
		t.Errorf("MaxRetries = %d, want 0", cfg.MaxRetries)
	}
}

func TestLoadConfigValid(t *testing.T) {
	// Create temp config file
	content := `
base_url: https://squall.internal.example.com
api_key_ref: staging

timeout_ms: 45000
max_retries: 5
retry_delay_ms: 500
disable_metrics: true
`
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.BaseURL != "https://squall.internal.example.com" {
		t.Errorf("BaseURL = %q, want https://squall.internal.example.com", cfg.BaseURL)
	}
	if cfg.APIKeyRef != "staging" {
		t.Errorf("APIKeyRef = %q, want staging", cfg.APIKeyRef)
	}
	if cfg.TimeoutMS != 45000 {
		t.Errorf("TimeoutMS = %d, want 45000", cfg.TimeoutMS)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", cfg.MaxRetries)
	}
	if cfg.RetryDelayMS != 500 {
		t.Errorf("RetryDelayMS = %d, want 500", cfg.RetryDelayMS)
	}
	if !cfg.DisableMetrics {
		t.Error("DisableMetrics = false, want true")
	}
}

func TestLoadConfigRetriesDisabled(t *testing.T) {
	content := `max_retries: -1`

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.MaxRetries != -1 {
		t.Errorf("MaxRetries = %d, want -1", cfg.MaxRetries)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	// YAML that will cause unmarshal error (wrong type)
	content := `
base_url: [invalid, array, instead, of, string]
`
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}

	_, err := LoadConfig(path)
	if err == nil {
		t.Error("LoadConfig() should return error for invalid YAML")
	}
}

func TestLoadConfigEmptyFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(path, []byte(""), 0644); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg == nil {
		t.Fatal("LoadConfig() returned nil config for empty file")
	}
}

func TestLoadConfigMinimal(t *testing.T) {
	content := `base_url: http://localhost:8080`

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.BaseURL != "http://localhost:8080" {
		t.Errorf("BaseURL = %q, want http://localhost:8080", cfg.BaseURL)
	}
	if cfg.TimeoutMS != 0 {
		t.Errorf("TimeoutMS = %d, want 0 (unset)", cfg.TimeoutMS)
	}
}
