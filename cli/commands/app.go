package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/petal-labs/dify-go/cli/config"
	"github.com/petal-labs/dify-go/cli/keystore"
	"github.com/petal-labs/dify-go/dify"
)

// ConfigLoader loads CLI config from a path.
type ConfigLoader func(path string) (*config.Config, error)

// ConfigSaver persists CLI config to a path.
type ConfigSaver func(path string, cfg *config.Config) error

// ClientFactory creates an API client.
type ClientFactory func(apiKey string, opts ...dify.Option) (*dify.Client, error)

// KeystoreFactory creates a keystore instance.
type KeystoreFactory func() (keystore.Keystore, error)

// AppOption customizes App dependencies.
type AppOption func(*App)

// App holds CLI state and runtime dependencies.
type App struct {
	root *cobra.Command

	loadConfig   ConfigLoader
	saveConfig   ConfigSaver
	createClient ClientFactory
	newKeystore  KeystoreFactory
	stdin        io.Reader
	stdout       io.Writer
	stderr       io.Writer
	isTerminal   func(fd int) bool

	cfgFile    string
	cfgPath    string
	baseURL    string
	user       string
	keyName    string
	timeout    string
	jsonOutput bool
	verbose    bool
	cfg        *config.Config
	logger     *slog.Logger
}

// WithConfigLoader injects a config loader dependency.
func WithConfigLoader(loader ConfigLoader) AppOption {
	return func(a *App) {
		if loader != nil {
			a.loadConfig = loader
		}
	}
}

// WithConfigSaver injects a config saver dependency.
func WithConfigSaver(saver ConfigSaver) AppOption {
	return func(a *App) {
		if saver != nil {
			a.saveConfig = saver
		}
	}
}

// WithClientFactory injects a client factory dependency.
func WithClientFactory(factory ClientFactory) AppOption {
	return func(a *App) {
		if factory != nil {
			a.createClient = factory
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
		loadConfig:   config.LoadConfig,
		saveConfig:   config.Save,
		createClient: dify.New,
		newKeystore:  keystore.NewKeystore,
		stdin:        os.Stdin,
		stdout:       os.Stdout,
		stderr:       os.Stderr,
		isTerminal:   isTerminal,
	}

	for _, opt := range opts {
		opt(a)
	}

	a.root = a.newRootCommand()
	return a
}

// SetArgs overrides the command line, for tests and embedding.
func (a *App) SetArgs(args []string) {
	a.root.SetArgs(args)
}

// Execute runs the root command. Failures are printed to stderr and
// returned as errors carrying an exit code.
func (a *App) Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := a.root.ExecuteContext(ctx)
	if err != nil {
		return a.reportError(err)
	}
	return nil
}

// Execute runs a new app with default dependencies.
func Execute() error {
	return NewApp().Execute()
}
