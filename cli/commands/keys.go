package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/squall-labs/squall/cli/keystore"
)

func (a *App) newKeysCommand() *cobra.Command {
	keys := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys",
		Long:  `Manage API keys for the assistant. Keys are stored encrypted on disk.`,
	}

	set := &cobra.Command{
		Use:   "set [name]",
		Short: "Set an API key",
		Long: `Set an API key under the given name (default "default"). The key is
prompted without echo when stdin is a terminal.`,
		Args: cobra.MaximumNArgs(1),
		RunE: a.runKeysSet,
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored API keys",
		Long:  `List all stored API keys. Only key names are shown, never key values.`,
		RunE:  a.runKeysList,
	}

	del := &cobra.Command{
		Use:   "delete [name]",
		Short: "Delete an API key",
		Args:  cobra.MaximumNArgs(1),
		RunE:  a.runKeysDelete,
	}

	keys.AddCommand(set)
	keys.AddCommand(list)
	keys.AddCommand(del)

	return keys
}

// keyName returns the positional key name, defaulting to "default".
func keyName(args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	return "default"
}

func (a *App) runKeysSet(cmd *cobra.Command, args []string) error {
	name := keyName(args)

	apiKey, err := a.readSecret(fmt.Sprintf("Enter API key for %s: ", name))
	if err != nil {
		return fmt.Errorf("failed to read key: %w", err)
	}

	if apiKey == "" {
		return fmt.Errorf("API key cannot be empty")
	}

	ks, err := a.newKeystore()
	if err != nil {
		return fmt.Errorf("failed to open keystore: %w", err)
	}

	if err := ks.Set(name, apiKey); err != nil {
		return fmt.Errorf("failed to store key: %w", err)
	}

	fmt.Fprintf(a.stdout, "API key %q stored.\n", name)
	return nil
}

func (a *App) runKeysList(cmd *cobra.Command, args []string) error {
	ks, err := a.newKeystore()
	if err != nil {
		return fmt.Errorf("failed to open keystore: %w", err)
	}

	names, err := ks.List()
	if err != nil {
		return fmt.Errorf("failed to list keys: %w", err)
	}

	if len(names) == 0 {
		fmt.Fprintln(a.stdout, "No API keys stored.")
		return nil
	}

	fmt.Fprintln(a.stdout, "Stored keys:")
	for _, name := range names {
		fmt.Fprintf(a.stdout, "  - %s\n", name)
	}

	return nil
}

func (a *App) runKeysDelete(cmd *cobra.Command, args []string) error {
	name := keyName(args)

	ks, err := a.newKeystore()
	if err != nil {
		return fmt.Errorf("failed to open keystore: %w", err)
	}

	if err := ks.Delete(name); err != nil {
		var notFound *keystore.ErrKeyNotFound
		if errors.As(err, &notFound) {
			return fmt.Errorf("no key stored for %s", name)
		}
		return fmt.Errorf("failed to delete key: %w", err)
	}

	fmt.Fprintf(a.stdout, "API key %q deleted.\n", name)
	return nil
}

// readSecret prompts for a secret. When stdin is a terminal the input
// is read without echo; otherwise one line is read, which supports
// piped input.
func (a *App) readSecret(prompt string) (string, error) {
	fmt.Fprint(a.stdout, prompt)

	if f, ok := a.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		keyBytes, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		fmt.Fprintln(a.stdout) // Newline after hidden input
		return string(keyBytes), nil
	}

	reader := bufio.NewReader(a.stdin)
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
