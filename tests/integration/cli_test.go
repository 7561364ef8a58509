//go:build integration

package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCLI_Help(t *testing.T) {
	result := runCLI(t, "--help")

	if result.ExitCode != 0 {
		t.Errorf("Exit code = %d, want 0", result.ExitCode)
	}

	if !strings.Contains(result.Stdout, "squall") {
		t.Error("Help should mention squall")
	}

	// Check for main commands
	commands := []string{"ask", "keys", "init", "version"}
	for _, cmd := range commands {
		if !strings.Contains(result.Stdout, cmd) {
			t.Errorf("Help should mention '%s' command", cmd)
		}
	}
}

func TestCLI_Version(t *testing.T) {
	result := runCLI(t, "version")

	if result.ExitCode != 0 {
		t.Errorf("Exit code = %d, want 0\nStderr: %s", result.ExitCode, result.Stderr)
	}

	if !strings.HasPrefix(result.Stdout, "squall "+testVersion+"\n") {
		t.Errorf("Version output should start with %q, got: %s", "squall "+testVersion, result.Stdout)
	}
}

func TestCLI_Version_JSON(t *testing.T) {
	result := runCLI(t, "version", "--json")

	if result.ExitCode != 0 {
		t.Errorf("Exit code = %d, want 0\nStderr: %s", result.ExitCode, result.Stderr)
	}

	var output map[string]any
	if err := json.Unmarshal([]byte(result.Stdout), &output); err != nil {
		t.Fatalf("Output is not valid JSON: %v\nOutput: %s", err, result.Stdout)
	}
	if got, ok := output["version"]; !ok || got != testVersion {
		t.Errorf("JSON version = %v, want %q", got, testVersion)
	}
}

func TestCLI_Keys(t *testing.T) {
	env := isolatedEnv(t)
	name := "integration-test"
	testKey := "wx-test-api-key-12345"

	// Set key
	result := runCLIEnv(t, env, testKey+"\n", "keys", "set", name)
	if result.ExitCode != 0 {
		t.Fatalf("keys set exit code = %d, want 0\nStderr: %s", result.ExitCode, result.Stderr)
	}

	// List keys
	result = runCLIEnv(t, env, "", "keys", "list")
	if result.ExitCode != 0 {
		t.Errorf("keys list exit code = %d, want 0\nStderr: %s", result.ExitCode, result.Stderr)
	}
	if !strings.Contains(result.Stdout, name) {
		t.Errorf("keys list should contain %s, got: %s", name, result.Stdout)
	}
	if strings.Contains(result.Stdout, testKey) {
		t.Error("keys list must never print key material")
	}

	// Delete key
	result = runCLIEnv(t, env, "", "keys", "delete", name)
	if result.ExitCode != 0 {
		t.Errorf("keys delete exit code = %d, want 0\nStderr: %s", result.ExitCode, result.Stderr)
	}

	// Verify deleted
	result = runCLIEnv(t, env, "", "keys", "list")
	if strings.Contains(result.Stdout, name) {
		t.Errorf("keys list should not contain %s after delete", name)
	}
}

func TestCLI_Init(t *testing.T) {
	env := isolatedEnv(t)

	result := runCLIEnv(t, env, "", "init")
	if result.ExitCode != 0 {
		t.Fatalf("init exit code = %d, want 0\nStderr: %s", result.ExitCode, result.Stderr)
	}

	// Verify config file created under the isolated home
	home := homeFromEnv(t, env)
	cfgPath := filepath.Join(home, ".squall", "config.yaml")
	if _, err := os.Stat(cfgPath); err != nil {
		t.Fatalf("config file not created at %s: %v", cfgPath, err)
	}

	// Rerunning without --force must refuse to overwrite
	result = runCLIEnv(t, env, "", "init")
	if result.ExitCode == 0 {
		t.Error("Expected non-zero exit code for existing config")
	}
	if !strings.Contains(result.Stderr, "exists") {
		t.Errorf("Stderr should mention exists, got: %s", result.Stderr)
	}

	// --force overwrites
	result = runCLIEnv(t, env, "", "init", "--force")
	if result.ExitCode != 0 {
		t.Errorf("init --force exit code = %d, want 0\nStderr: %s", result.ExitCode, result.Stderr)
	}
}

func TestCLI_Ask_MissingKey(t *testing.T) {
	env := isolatedEnv(t)

	result := runCLIEnv(t, env, "", "ask", "hello")
	if result.ExitCode != 1 {
		t.Errorf("Exit code = %d, want 1\nStderr: %s", result.ExitCode, result.Stderr)
	}
	if !strings.Contains(result.Stderr, "SQUALL_API_KEY") {
		t.Errorf("Stderr should mention SQUALL_API_KEY, got: %s", result.Stderr)
	}
}

func TestCLI_Ask_LocalServer(t *testing.T) {
	authCh := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case authCh <- r.Header.Get("Authorization"):
		default:
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"text\",\"text\":\"Sunny \"}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"text\",\"text\":\"skies\"}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	env := append(isolatedEnv(t), "SQUALL_API_KEY=wx-local-test")
	result := runCLIEnv(t, env, "", "ask", "--base-url", srv.URL, "weather tomorrow?")

	if result.ExitCode != 0 {
		t.Fatalf("Exit code = %d, want 0\nStderr: %s", result.ExitCode, result.Stderr)
	}
	if result.Stdout != "Sunny skies\n" {
		t.Errorf("Stdout = %q, want %q", result.Stdout, "Sunny skies\n")
	}

	select {
	case gotAuth := <-authCh:
		if gotAuth != "Bearer wx-local-test" {
			t.Errorf("Authorization = %q, want Bearer wx-local-test", gotAuth)
		}
	default:
		t.Error("server saw no request")
	}
}

func TestCLI_Ask_JSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"text\",\"text\":\"Sunny skies\"}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	env := append(isolatedEnv(t), "SQUALL_API_KEY=wx-local-test")
	result := runCLIEnv(t, env, "", "ask", "--base-url", srv.URL, "--json", "weather tomorrow?")

	if result.ExitCode != 0 {
		t.Fatalf("Exit code = %d, want 0\nStderr: %s", result.ExitCode, result.Stderr)
	}

	var output map[string]any
	if err := json.Unmarshal([]byte(result.Stdout), &output); err != nil {
		t.Fatalf("Output is not valid JSON: %v\nOutput: %s", err, result.Stdout)
	}
	if output["output"] != "Sunny skies" {
		t.Errorf("output = %v, want Sunny skies", output["output"])
	}
	metrics, ok := output["metrics"].(map[string]any)
	if !ok {
		t.Fatalf("JSON output missing 'metrics' object: %s", result.Stdout)
	}
	if metrics["event_count"] != float64(1) {
		t.Errorf("event_count = %v, want 1", metrics["event_count"])
	}
}

func TestCLI_Ask_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"type":"authentication_error","message":"invalid api key"}}`)
	}))
	defer srv.Close()

	env := append(isolatedEnv(t), "SQUALL_API_KEY=wx-bad-key")
	result := runCLIEnv(t, env, "", "ask", "--base-url", srv.URL, "weather tomorrow?")

	if result.ExitCode != 2 {
		t.Errorf("Exit code = %d, want 2\nStderr: %s", result.ExitCode, result.Stderr)
	}
	if !strings.Contains(result.Stderr, "invalid api key") {
		t.Errorf("Stderr should carry the server message, got: %s", result.Stderr)
	}
}

func TestCLI_Ask_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"type":"rate_limit_error","message":"slow down"}}`)
	}))
	defer srv.Close()

	// Disable retries so the test terminates on the first attempt.
	env := append(isolatedEnv(t), "SQUALL_API_KEY=wx-local-test")
	result := runCLIEnv(t, env, "", "ask", "--base-url", srv.URL, "--max-retries=-1", "weather tomorrow?")

	if result.ExitCode != 3 {
		t.Errorf("Exit code = %d, want 3\nStderr: %s", result.ExitCode, result.Stderr)
	}
}

// TestCLI_Ask_Live exercises the real assistant API. It only runs when
// SQUALL_API_KEY is set; SQUALL_BASE_URL points it at a non-default
// endpoint.
func TestCLI_Ask_Live(t *testing.T) {
	skipIfNoAPIKey(t)

	args := []string{"ask"}
	if base := os.Getenv("SQUALL_BASE_URL"); base != "" {
		args = append(args, "--base-url", base)
	}
	args = append(args, "Say 'hello' and nothing else.")

	result := runCLI(t, args...)

	if result.ExitCode != 0 {
		t.Errorf("Exit code = %d, want 0\nStderr: %s", result.ExitCode, result.Stderr)
	}
	if result.Stdout == "" {
		t.Error("Stdout is empty")
	}

	t.Logf("Output: %s", result.Stdout)
}

// homeFromEnv extracts the HOME entry from an isolated environment.
func homeFromEnv(t *testing.T, env []string) string {
	t.Helper()
	for _, kv := range env {
		if v, ok := strings.CutPrefix(kv, "HOME="); ok {
			return v
		}
	}
	t.Fatal("environment has no HOME entry")
	return ""
}
