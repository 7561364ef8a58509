package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/spf13/cobra"

	"github.com/squall-labs/squall/assistant"
	"github.com/squall-labs/squall/cli/config"
)

func (a *App) newInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file",
		Long: `Write a commented starter configuration to the config path
(default ~/.squall/config.yaml). An existing file is left untouched
unless --force is given.

Example:
  squall init
  squall init --config ./squall.yaml`,
		Args: cobra.NoArgs,
		RunE: a.runInit,
	}

	cmd.Flags().BoolVar(&a.initForce, "force", false, "overwrite an existing config file")

	return cmd
}

func (a *App) runInit(cmd *cobra.Command, args []string) error {
	path := a.cfgFile
	if path == "" {
		path = config.DefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil && !a.initForce {
		return fmt.Errorf("config %s already exists (use --force to overwrite)", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	data := struct {
		BaseURL string
		EnvVar  string
	}{
		BaseURL: assistant.DefaultBaseURL,
		EnvVar:  assistant.DefaultAPIKeyEnvVar,
	}
	if err := tmpl.Execute(f, data); err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "Wrote %s\n\n", path)
	fmt.Fprintln(a.stdout, "Next steps:")
	fmt.Fprintln(a.stdout, "  squall keys set")
	fmt.Fprintln(a.stdout, "  squall ask \"Chance of rain tomorrow?\"")

	return nil
}

// All settings are commented out so a fresh config behaves exactly
// like no config at all.
var configTemplate = `# Squall CLI configuration.
# API keys are stored separately: run 'squall keys set' or export {{.EnvVar}}.

# Assistant endpoint.
#base_url: {{.BaseURL}}

# Keystore entry holding the API key.
#api_key_ref: default

# Request tuning. Omitted fields use the defaults shown.
#timeout_ms: 30000
#max_retries: 3
#retry_delay_ms: 1000
#disable_metrics: false
`
