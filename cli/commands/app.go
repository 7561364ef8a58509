// Package commands implements the CLI command structure using Cobra.
package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/squall-labs/squall/assistant"
	"github.com/squall-labs/squall/cli/config"
	"github.com/squall-labs/squall/cli/keystore"
	"github.com/squall-labs/squall/core"
)

// ConfigLoader loads CLI config from a path.
type ConfigLoader func(path string) (*config.Config, error)

// KeystoreFactory creates a keystore instance.
type KeystoreFactory func() (keystore.Keystore, error)

// CollaboratorFactory builds the collaborator the ask command drives.
// apiKey is the resolved credential; baseURL is empty for the default
// endpoint.
type CollaboratorFactory func(apiKey, baseURL string) (core.Collaborator, error)

// AppOption customizes App dependencies.
type AppOption func(*App)

// App holds CLI state and runtime dependencies.
type App struct {
	root *cobra.Command

	loadConfig      ConfigLoader
	newKeystore     KeystoreFactory
	newCollaborator CollaboratorFactory
	stdin           io.Reader
	stdout          io.Writer
	stderr          io.Writer

	cfgFile    string
	baseURL    string
	jsonOutput bool
	verbose    bool
	cfg        *config.Config

	askTimeout    time.Duration
	askMaxRetries int
	askRetryDelay time.Duration
	askNoMetrics  bool
	initForce     bool

	// askBackoff overrides the request backoff policy. Tests use it to
	// avoid real jittered waits.
	askBackoff core.BackoffPolicy
}

// WithConfigLoader injects a config loader dependency.
func WithConfigLoader(loader ConfigLoader) AppOption {
	return func(a *App) {
		if loader != nil {
			a.loadConfig = loader
		}
	}
}

// WithKeystoreFactory injects a keystore factory dependency.
func WithKeystoreFactory(factory KeystoreFactory) AppOption {
	return func(a *App) {
		if factory != nil {
			a.newKeystore = factory
		}
	}
}

// WithCollaboratorFactory injects a collaborator factory dependency.
func WithCollaboratorFactory(factory CollaboratorFactory) AppOption {
	return func(a *App) {
		if factory != nil {
			a.newCollaborator = factory
		}
	}
}

// WithIO injects process I/O streams.
func WithIO(stdin io.Reader, stdout, stderr io.Writer) AppOption {
	return func(a *App) {
		if stdin != nil {
			a.stdin = stdin
		}
		if stdout != nil {
			a.stdout = stdout
		}
		if stderr != nil {
			a.stderr = stderr
		}
	}
}

// NewApp creates a new CLI app with default dependencies.
func NewApp(opts ...AppOption) *App {
	a := &App{
		loadConfig:      config.LoadConfig,
		newKeystore:     keystore.NewKeystore,
		newCollaborator: defaultCollaboratorFactory,
		stdin:           os.Stdin,
		stdout:          os.Stdout,
		stderr:          os.Stderr,
	}

	for _, opt := range opts {
		opt(a)
	}

	a.root = a.newRootCommand()
	return a
}

func (a *App) newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "squall",
		Short: "Squall - resilient streaming assistant CLI",
		Long: `Squall is a command-line interface for the Squall streaming assistant.

Use squall to ask the assistant questions, manage API keys, and tune
retry behavior. Replies stream to stdout as they arrive; transient
failures are retried with exponential backoff.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	// Global flags available to all commands.
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ~/.squall/config.yaml)")
	root.PersistentFlags().StringVar(&a.baseURL, "base-url", "", "assistant endpoint (default is "+assistant.DefaultBaseURL+")")
	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "emit JSON output")
	root.PersistentFlags().BoolVar(&a.verbose, "verbose", false, "enable verbose output")

	root.AddCommand(a.newAskCommand())
	root.AddCommand(a.newKeysCommand())
	root.AddCommand(a.newInitCommand())
	root.AddCommand(a.newVersionCommand())

	return root
}

// Execute runs the root command. Errors not already rendered by a
// command (the ask command prints its own, in text or JSON form) are
// reported here once, so no path prints twice.
func (a *App) Execute() error {
	err := a.root.Execute()
	if err != nil {
		var ee *exitError
		if !errors.As(err, &ee) || !ee.printed {
			fmt.Fprintf(a.stderr, "Error: %s\n", err)
		}
	}
	return err
}

func (a *App) initConfig() error {
	path := a.cfgFile
	if path == "" {
		path = config.DefaultConfigPath()
	}

	cfg, err := a.loadConfig(path)
	if err != nil {
		return err
	}
	a.cfg = cfg

	// Apply config defaults if flags not set.
	if a.baseURL == "" && cfg.BaseURL != "" {
		a.baseURL = cfg.BaseURL
	}

	return nil
}

// defaultCollaboratorFactory wires the assistant client as the
// collaborator.
func defaultCollaboratorFactory(apiKey, baseURL string) (core.Collaborator, error) {
	var opts []assistant.Option
	if baseURL != "" {
		opts = append(opts, assistant.WithBaseURL(baseURL))
	}
	return assistant.New(apiKey, opts...).Collaborator(), nil
}

var defaultApp = NewApp()

// Execute runs the default app root command.
func Execute() error {
	return defaultApp.Execute()
}
