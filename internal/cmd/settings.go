package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"swarmclone-desktop/internal/config"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// newSettingsCmd creates the settings command with subcommands.
func newSettingsCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage swarmctl and store settings",
		Long: `Manage settings.yaml, which controls where the configuration document
lives, how long writes are debounced, logging, and file watching.

Environment variables (SWARMCLONE_CONFIG, SWARMCLONE_DEBOUNCE_MS,
SWARMCLONE_LOG_LEVEL) override the file without changing it.`,
	}

	cmd.AddCommand(newSettingsInitCmd(provider))
	cmd.AddCommand(newSettingsShowCmd(provider))

	return cmd
}

// newSettingsInitCmd creates the "settings init" subcommand.
func newSettingsInitCmd(provider *AppProvider) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default settings file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			path := app.Runtime.Paths.SettingsFile
			if _, err := os.Stat(path); err == nil && !force {
				fmt.Fprintf(app.Out, "%s %s already exists (use --force to overwrite)\n", app.WarnColor("Skipped:"), path)
				return nil
			}
			if err := config.WriteDefault(path); err != nil {
				return err
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(map[string]string{
					"path": path,
				})
			}
			fmt.Fprintf(app.Out, "%s %s\n", app.SuccessColor("Wrote"), path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing settings file")
	return cmd
}

// newSettingsShowCmd creates the "settings show" subcommand.
func newSettingsShowCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		Long: `Print the settings in effect: the settings file merged with defaults
and environment overrides.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			settings := app.Runtime.Settings
			if app.JSON {
				return json.NewEncoder(app.Out).Encode(map[string]any{
					"store": map[string]any{
						"file":        settings.Store.File,
						"debounce_ms": settings.Store.DebounceMS,
					},
					"log": map[string]string{
						"level":  settings.Log.Level,
						"format": settings.Log.Format,
					},
					"watch": settings.Watch,
				})
			}

			enc := yaml.NewEncoder(app.Out)
			enc.SetIndent(2)
			if err := enc.Encode(settings); err != nil {
				return fmt.Errorf("encoding settings: %w", err)
			}
			return enc.Close()
		},
	}

	return cmd
}
