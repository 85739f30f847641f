// Package commands implements the dify command-line interface using Cobra.
package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"golang.org/x/time/rate"

	"github.com/petal-labs/dify-go/cli/config"
	"github.com/petal-labs/dify-go/cli/keystore"
	"github.com/petal-labs/dify-go/core"
	"github.com/petal-labs/dify-go/dify"
	"github.com/petal-labs/dify-go/transport"
)

func (a *App) newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "dify",
		Short: "Command-line client for Dify applications",
		Long: `dify talks to a Dify application through its API.

Store the app's API key once with 'dify keys set', then chat, run workflows,
upload files and manage conversations from the terminal.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	// Global flags available to all commands.
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ~/.dify/config.yaml)")
	root.PersistentFlags().StringVar(&a.baseURL, "base-url", "", "API base URL (default "+dify.DefaultBaseURL+")")
	root.PersistentFlags().StringVar(&a.user, "user", "", "end-user id sent with requests")
	root.PersistentFlags().StringVar(&a.keyName, "key", "", "keystore entry holding the API key")
	root.PersistentFlags().StringVar(&a.timeout, "timeout", "", "request timeout, e.g. 45s")
	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "emit JSON output")
	root.PersistentFlags().BoolVar(&a.verbose, "verbose", false, "enable debug logging")

	root.AddCommand(a.newChatCommand())
	root.AddCommand(a.newCompleteCommand())
	root.AddCommand(a.newWorkflowCommand())
	root.AddCommand(a.newStopCommand())
	root.AddCommand(a.newUploadCommand())
	root.AddCommand(a.newTranscribeCommand())
	root.AddCommand(a.newSpeakCommand())
	root.AddCommand(a.newConversationsCommand())
	root.AddCommand(a.newMessagesCommand())
	root.AddCommand(a.newFeedbackCommand())
	root.AddCommand(a.newSuggestedCommand())
	root.AddCommand(a.newParametersCommand())
	root.AddCommand(a.newMetaCommand())
	root.AddCommand(a.newKeysCommand())
	root.AddCommand(a.newVersionCommand())

	return root
}

func (a *App) initConfig() error {
	a.cfgPath = a.cfgFile
	if a.cfgPath == "" {
		a.cfgPath = config.DefaultConfigPath()
	}

	cfg, err := a.loadConfig(a.cfgPath)
	if err != nil {
		return exitWithCode(ExitValidation, fmt.Errorf("load config: %w", err))
	}
	a.cfg = cfg

	// Flags win over the config file.
	if a.baseURL == "" {
		a.baseURL = cfg.BaseURL
	}
	if a.keyName == "" {
		a.keyName = cfg.KeyName()
	}
	if a.timeout == "" {
		a.timeout = cfg.Timeout
	}

	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))
	return nil
}

// endUser returns the user id for requests. Without a flag or a configured
// id, a random one is generated and saved so later runs reuse it.
func (a *App) endUser() string {
	if a.user != "" {
		return a.user
	}
	if a.cfg.EnsureUser() {
		if err := a.saveConfig(a.cfgPath, a.cfg); err != nil {
			a.logger.Warn("could not save generated user id", slog.String("path", a.cfgPath), slog.Any("error", err))
		} else {
			a.logger.Debug("generated user id", slog.String("user", a.cfg.User), slog.String("path", a.cfgPath))
		}
	}
	return a.cfg.User
}

// apiKey reads DIFY_API_KEY, falling back to the keystore.
func (a *App) apiKey() (string, error) {
	if key := strings.TrimSpace(os.Getenv(dify.EnvAPIKey)); key != "" {
		return key, nil
	}

	ks, err := a.newKeystore()
	if err != nil {
		return "", exitWithCode(ExitValidation, fmt.Errorf("open keystore: %w", err))
	}
	key, err := ks.Get(a.keyName)
	if err != nil {
		var notFound *keystore.ErrKeyNotFound
		if errors.As(err, &notFound) {
			return "", exitWithCode(ExitValidation, fmt.Errorf("no API key named %q: run 'dify keys set %s' or set %s", a.keyName, a.keyName, dify.EnvAPIKey))
		}
		return "", exitWithCode(ExitValidation, fmt.Errorf("read API key: %w", err))
	}
	return key, nil
}

func (a *App) newClient() (*dify.Client, error) {
	key, err := a.apiKey()
	if err != nil {
		return nil, err
	}

	opts := []dify.Option{dify.WithUserAgent("dify-cli/" + Version)}

	baseURL := a.baseURL
	if baseURL == "" {
		baseURL = os.Getenv(dify.EnvBaseURL)
	}
	if baseURL != "" {
		opts = append(opts, dify.WithBaseURL(baseURL))
	}
	if a.timeout != "" {
		d, err := time.ParseDuration(a.timeout)
		if err != nil {
			return nil, exitWithCode(ExitValidation, fmt.Errorf("invalid timeout %q: %w", a.timeout, err))
		}
		opts = append(opts, dify.WithTimeout(d))
	}

	mode, err := transport.ParseTLSMode(a.cfg.TLS)
	if err != nil {
		return nil, err
	}
	opts = append(opts, dify.WithTLSMode(mode))

	if a.cfg.RateLimit > 0 {
		opts = append(opts, dify.WithRateLimit(rate.Limit(a.cfg.RateLimit), 1))
	}
	if a.verbose {
		opts = append(opts, dify.WithLogger(a.logger), dify.WithTelemetry(core.NewLogHook(a.logger)))
	}

	return a.createClient(key, opts...)
}

func isTerminal(fd int) bool {
	return term.IsTerminal(fd)
}

// stdoutIsTerminal reports whether output goes to an interactive terminal.
func (a *App) stdoutIsTerminal() bool {
	f, ok := a.stdout.(*os.File)
	return ok && a.isTerminal(int(f.Fd()))
}
