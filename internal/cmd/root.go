package cmd

import (
	"context"
	"io"
	"os"
	"sync"

	"swarmclone-desktop/internal/app"

	"github.com/spf13/cobra"
)

// AppProvider lazily initializes the App on first use.
type AppProvider struct {
	once sync.Once
	app  *App
	err  error

	// Config captured from flags before Execute()
	Home       string
	JSONOutput bool
	Verbose    bool
	Out        io.Writer
	Err        io.Writer
}

// Get returns the App, initializing it on first call.
func (p *AppProvider) Get() (*App, error) {
	p.once.Do(func() {
		if p.app == nil {
			p.app, p.err = p.init()
		}
	})
	return p.app, p.err
}

// NewTestProvider creates a provider pre-initialized with the given App.
// Used for testing commands with a test App.
func NewTestProvider(a *App) *AppProvider {
	return &AppProvider{
		app:        a,
		JSONOutput: a.JSON,
		Out:        a.Out,
		Err:        a.Err,
	}
}

func (p *AppProvider) init() (*App, error) {
	out := p.Out
	if out == nil {
		out = os.Stdout
	}
	errOut := p.Err
	if errOut == nil {
		errOut = os.Stderr
	}

	rt, err := app.Open(context.Background(), app.Options{
		Home:      p.Home,
		LogOutput: errOut,
		Verbose:   p.Verbose,
		ReadOnly:  true,
	})
	if err != nil {
		return nil, err
	}

	return &App{
		Runtime: rt,
		Out:     out,
		Err:     errOut,
		JSON:    p.JSONOutput,
	}, nil
}

// Close releases the runtime if one was opened. The document is written
// only if a command changed it.
func (p *AppProvider) Close() error {
	if p.app == nil || p.app.Runtime == nil {
		return nil
	}
	return p.app.Runtime.Close()
}

// Execute runs the CLI.
func Execute() error {
	provider := &AppProvider{
		Out: os.Stdout,
		Err: os.Stderr,
	}

	rootCmd := newRootCmd(provider)
	err := rootCmd.Execute()
	if closeErr := provider.Close(); err == nil {
		err = closeErr
	}
	return err
}

// newRootCmd creates the root command with all subcommands.
func newRootCmd(provider *AppProvider) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "swarmctl",
		Short: "Inspect and edit SwarmClone desktop configuration",
		Long: `swarmctl reads and writes the configuration document used by the
SwarmClone desktop application (by default ~/.swarmclone/config.json).

Values are JSON. Writes are atomic: the document is written to a temporary
file in the same directory, synced, and renamed over the old one, so the
desktop application never sees a half-written file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags - these populate the provider config
	rootCmd.PersistentFlags().BoolVar(&provider.JSONOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&provider.Home, "home", "", "Configuration home directory (default: $SWARMCLONE_HOME or ~/.swarmclone)")
	rootCmd.PersistentFlags().BoolVarP(&provider.Verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newConfigCmd(provider))
	rootCmd.AddCommand(newSettingsCmd(provider))
	rootCmd.AddCommand(newWatchCmd(provider))
	rootCmd.AddCommand(newVersionCmd(provider))

	return rootCmd
}
