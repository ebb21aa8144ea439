// Package root contains the root command for the application
package root

import (
	"fmt"

	"github.com/spf13/cobra"

	"fjacquet/receiptvault/internal/config"
	"fjacquet/receiptvault/internal/container"
	"fjacquet/receiptvault/internal/logging"
)

var (
	// Log is the shared logger instance for commands. It is replaced with
	// the configured logger once PersistentPreRunE has loaded the config.
	Log logging.Logger = logging.NewLogrusAdapter("info", "text")

	// Cfg holds the loaded configuration after PersistentPreRunE.
	Cfg *config.Config

	// App is the dependency container shared by all commands. Commands that
	// need remote access must call EnsureApp first.
	App *container.Container

	// Offline skips backend construction; capture then allocates from
	// local sources only.
	Offline bool

	// Cmd is the root command
	Cmd = &cobra.Command{
		Use:   "receiptvault",
		Short: "Capture receipt photos and sync them across devices.",
		Long: `receiptvault captures receipt images with their metadata, assigns each
one a collision-free filename, and synchronizes images and per-day
manifests to a configured storage backend.`,
		Run: func(cmd *cobra.Command, args []string) {
			Log.Info("Welcome to receiptvault!")
			Log.Info("Use --help to see available commands")
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.InitializeConfig()
			if err != nil {
				return err
			}
			Cfg = cfg
			Log = logging.NewLogrusAdapterFromLogger(config.ConfigureLoggingFromConfig(cfg))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if App != nil {
				if err := App.Close(); err != nil {
					Log.WithError(err).Warn("Failed to close application container")
				}
				App = nil
			}
		},
	}
)

// Init initializes the root command and all flags
func Init() {
	Cmd.PersistentFlags().BoolVar(&Offline, "offline", false, "Skip remote backend setup; work against the local store only")
}

// EnsureApp builds the dependency container on first use. Construction is
// deferred to here so that commands which never touch the store (help,
// backends list) pay nothing.
func EnsureApp(cmd *cobra.Command) (*container.Container, error) {
	if App != nil {
		return App, nil
	}
	if Cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	app, err := container.NewContainer(cmd.Context(), Cfg, container.Options{Offline: Offline})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}
	App = app
	Log = app.Logger()
	return App, nil
}
