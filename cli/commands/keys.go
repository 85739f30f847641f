package commands

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/petal-labs/dify-go/cli/keystore"
)

func (a *App) newKeysCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage app API keys",
		Long: `Manage Dify app API keys. Keys are stored encrypted in ~/.dify/keys.enc.
Each app has its own key; select one with --key or the config file's key field.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set [name]",
		Short: "Store an API key (prompted without echo)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := a.keyName
			if len(args) == 1 {
				name = args[0]
			}

			fmt.Fprintf(a.stderr, "Enter API key for %s: ", name)
			apiKey, err := a.readSecret()
			if err != nil {
				return fmt.Errorf("failed to read key: %w", err)
			}
			if apiKey == "" {
				return exitWithCode(ExitValidation, errors.New("API key cannot be empty"))
			}

			ks, err := a.newKeystore()
			if err != nil {
				return fmt.Errorf("failed to open keystore: %w", err)
			}
			if err := ks.Set(name, apiKey); err != nil {
				return fmt.Errorf("failed to store key: %w", err)
			}

			fmt.Fprintf(a.stdout, "API key %s stored successfully.\n", name)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored key names",
		Long:  `List stored key names. Key values are never shown.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ks, err := a.newKeystore()
			if err != nil {
				return fmt.Errorf("failed to open keystore: %w", err)
			}
			names, err := ks.List()
			if err != nil {
				return fmt.Errorf("failed to list keys: %w", err)
			}

			if a.jsonOutput {
				return a.printJSON(map[string]any{"keys": names, "active": a.keyName})
			}
			if len(names) == 0 {
				fmt.Fprintln(a.stdout, "No API keys stored.")
				return nil
			}
			fmt.Fprintln(a.stdout, "Stored keys:")
			for _, name := range names {
				marker := " "
				if name == a.keyName {
					marker = "*"
				}
				fmt.Fprintf(a.stdout, "  %s %s\n", marker, name)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a stored API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			ks, err := a.newKeystore()
			if err != nil {
				return fmt.Errorf("failed to open keystore: %w", err)
			}
			if err := ks.Delete(name); err != nil {
				var notFound *keystore.ErrKeyNotFound
				if errors.As(err, &notFound) {
					return exitWithCode(ExitValidation, fmt.Errorf("no key stored as %s", name))
				}
				return fmt.Errorf("failed to delete key: %w", err)
			}
			fmt.Fprintf(a.stdout, "API key %s deleted.\n", name)
			return nil
		},
	})

	return cmd
}

// readSecret reads one line from stdin, without echo when stdin is a terminal.
func (a *App) readSecret() (string, error) {
	if f, ok := a.stdin.(*os.File); ok && a.isTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(a.stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
