package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/squall-labs/squall/assistant"
	"github.com/squall-labs/squall/cli/keystore"
	"github.com/squall-labs/squall/core"
)

// Exit codes
const (
	ExitSuccess    = 0
	ExitValidation = 1
	ExitAgent      = 2
	ExitNetwork    = 3
)

func (a *App) newAskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Ask the assistant and stream the reply",
		Long: `Ask the assistant a question and stream the reply to stdout.

The API key is read from the ` + assistant.DefaultAPIKeyEnvVar + ` environment variable,
falling back to the keystore entry named by api_key_ref in the config
(default "default").

Examples:
  squall ask "Chance of rain tomorrow?"
  squall ask --timeout 60s --max-retries 5 "Summarize this week's forecast"
  squall ask --json "Chance of rain tomorrow?"`,
		Args: cobra.ExactArgs(1),
		RunE: a.runAsk,
	}

	cmd.Flags().DurationVar(&a.askTimeout, "timeout", 0, "per-attempt deadline (0 = config or 30s)")
	cmd.Flags().IntVar(&a.askMaxRetries, "max-retries", 0, "retries after the first failure (0 = config or 3, -1 disables)")
	cmd.Flags().DurationVar(&a.askRetryDelay, "retry-delay", 0, "base backoff delay (0 = config or 1s)")
	cmd.Flags().BoolVar(&a.askNoMetrics, "no-metrics", false, "suppress request metrics")

	return cmd
}

func (a *App) runAsk(cmd *cobra.Command, args []string) error {
	input := args[0]

	apiKey, err := a.resolveAPIKey()
	if err != nil {
		return exitWithCode(ExitValidation, err)
	}

	collab, err := a.newCollaborator(apiKey, a.baseURL)
	if err != nil {
		return exitWithCode(ExitValidation, err)
	}

	var output strings.Builder
	session := core.NewSession().WithObserver(a.askObserver(&output))
	if a.askBackoff != nil {
		session.WithBackoff(a.askBackoff)
	}

	if err := session.Start(cmd.Context(), collab, input, a.askOptions()); err != nil {
		return exitWithCode(ExitValidation, err)
	}
	if err := session.Wait(); err != nil {
		return a.handleAskError(err)
	}

	snap := session.Snapshot()

	if a.jsonOutput {
		return a.outputJSON(output.String(), snap.Metrics)
	}

	// Close the streamed line.
	fmt.Fprintln(a.stdout)

	if a.verbose {
		m := snap.Metrics
		fmt.Fprintf(a.stderr, "events=%d bytes=%d retries=%d in %v\n",
			m.EventCount, m.ByteCount, m.RetryCount, m.Elapsed())
	}

	return nil
}

// askObserver streams text events to stdout as they arrive and mirrors
// them into output for JSON mode. Retries and tool activity go to
// stderr so stdout stays clean reply text.
func (a *App) askObserver(output *strings.Builder) core.Observer {
	return core.Observer{
		OnEvent: func(ev core.StreamEvent, _ core.RequestMetrics) {
			switch ev.Kind {
			case core.EventText:
				output.WriteString(ev.Text)
				if !a.jsonOutput {
					fmt.Fprint(a.stdout, ev.Text)
				}
			case core.EventToolInvoked:
				if a.verbose {
					fmt.Fprintf(a.stderr, "tool %s invoked\n", ev.ToolName)
				}
			case core.EventToolCompleted:
				if a.verbose {
					fmt.Fprintf(a.stderr, "tool %s returned %d bytes\n", ev.ToolName, len(ev.ToolResult))
				}
			case core.EventError:
				fmt.Fprintf(a.stderr, "stream error: %s\n", ev.Message)
			}
		},
		OnRetry: func(attempt int, lastErr *core.ClassifiedError) {
			fmt.Fprintf(a.stderr, "retrying after %s (attempt %d)\n", lastErr.Code, attempt)
		},
	}
}

// resolveAPIKey returns the credential for the assistant: environment
// variable first, then the configured keystore entry.
func (a *App) resolveAPIKey() (string, error) {
	if key := os.Getenv(assistant.DefaultAPIKeyEnvVar); key != "" {
		return key, nil
	}

	ks, err := a.newKeystore()
	if err != nil {
		return "", fmt.Errorf("failed to open keystore: %w", err)
	}

	ref := "default"
	if a.cfg != nil && a.cfg.APIKeyRef != "" {
		ref = a.cfg.APIKeyRef
	}

	key, err := ks.Get(ref)
	if err != nil {
		if _, ok := err.(*keystore.ErrKeyNotFound); ok {
			return "", fmt.Errorf("no API key: set %s or run 'squall keys set %s'",
				assistant.DefaultAPIKeyEnvVar, ref)
		}
		return "", fmt.Errorf("failed to get API key: %w", err)
	}

	return key, nil
}

// askOptions merges flags over config values. Zero fields fall through
// to the engine defaults.
func (a *App) askOptions() core.Options {
	opts := core.Options{
		Timeout:        a.askTimeout,
		MaxRetries:     a.askMaxRetries,
		RetryDelay:     a.askRetryDelay,
		DisableMetrics: a.askNoMetrics,
	}

	if cfg := a.cfg; cfg != nil {
		if opts.Timeout == 0 && cfg.TimeoutMS > 0 {
			opts.Timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
		}
		if opts.MaxRetries == 0 && cfg.MaxRetries != 0 {
			opts.MaxRetries = cfg.MaxRetries
		}
		if opts.RetryDelay == 0 && cfg.RetryDelayMS > 0 {
			opts.RetryDelay = time.Duration(cfg.RetryDelayMS) * time.Millisecond
		}
		if cfg.DisableMetrics {
			opts.DisableMetrics = true
		}
	}

	return opts
}

func (a *App) handleAskError(err error) error {
	cerr := core.Classify(err)

	if a.jsonOutput {
		a.outputErrorJSON(cerr)
	} else {
		fmt.Fprintf(a.stderr, "Error: %s\n", cerr.Message)
	}

	// Retryable codes are transport-level failures; everything else is
	// the assistant refusing or failing the request itself.
	switch {
	case cerr.Code == core.CodeInvalidMessage:
		return exitPrinted(ExitValidation, err)
	case cerr.Retryable:
		return exitPrinted(ExitNetwork, err)
	default:
		return exitPrinted(ExitAgent, err)
	}
}

func (a *App) outputJSON(output string, m core.RequestMetrics) error {
	payload := map[string]interface{}{
		"output": output,
	}

	// A zero request ID means metrics were disabled for the request.
	if m.RequestID != "" {
		payload["metrics"] = map[string]interface{}{
			"request_id":  m.RequestID,
			"event_count": m.EventCount,
			"byte_count":  m.ByteCount,
			"error_count": m.ErrorCount,
			"retry_count": m.RetryCount,
			"elapsed_ms":  m.Elapsed().Milliseconds(),
		}
	}

	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func (a *App) outputErrorJSON(cerr *core.ClassifiedError) {
	payload := map[string]interface{}{
		"error": map[string]interface{}{
			"code":      string(cerr.Code),
			"message":   cerr.Message,
			"retryable": cerr.Retryable,
		},
	}

	enc := json.NewEncoder(a.stderr)
	enc.SetIndent("", "  ")
	enc.Encode(payload)
}

// exitError wraps an error with an exit code.
type exitError struct {
	code    int
	err     error
	printed bool
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func (e *exitError) ExitCode() int {
	return e.code
}

func exitWithCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

// exitPrinted marks the error as already rendered to the user, so
// Execute does not report it a second time.
func exitPrinted(code int, err error) error {
	return &exitError{code: code, err: err, printed: true}
}
