package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"swarmclone-desktop/internal/config"

	"github.com/spf13/cobra"
)

// newConfigCmd creates the config command with subcommands.
func newConfigCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration values",
		Long: `Manage the persisted configuration document.

Configuration is stored as flat key-value pairs in config.json. Both core
keys (theme, language, window.width, etc.) and custom keys are supported.

Subcommands:
  get       Get a configuration value
  set       Set a configuration value
  list      List all configuration values
  unset     Remove a configuration value
  validate  Validate configuration
  flush     Rewrite the document
  path      Show resolved file locations`,
	}

	cmd.AddCommand(newConfigGetCmd(provider))
	cmd.AddCommand(newConfigSetCmd(provider))
	cmd.AddCommand(newConfigListCmd(provider))
	cmd.AddCommand(newConfigUnsetCmd(provider))
	cmd.AddCommand(newConfigValidateCmd(provider))
	cmd.AddCommand(newConfigFlushCmd(provider))
	cmd.AddCommand(newConfigPathCmd(provider))

	return cmd
}

// newConfigGetCmd creates the "config get" subcommand.
func newConfigGetCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Long: `Get the value of a configuration key.

Prints strings bare and other values as JSON. Core keys missing from the
document print their default; other missing keys print "key (not set)".

Examples:
  swarmctl config get theme
  swarmctl config get window.width`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			key := args[0]
			value, ok := app.Runtime.Store.Get(key)
			def, hasDefault := config.DefaultValues()[key]
			fromDefault := !ok && hasDefault
			if fromDefault {
				value = def
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(map[string]any{
					"key":     key,
					"value":   value,
					"set":     ok,
					"default": fromDefault,
				})
			}

			if ok || fromDefault {
				fmt.Fprintln(app.Out, formatValue(value))
			} else {
				fmt.Fprintf(app.Out, "%s (not set)\n", key)
			}
			return nil
		},
	}

	return cmd
}

// newConfigSetCmd creates the "config set" subcommand.
func newConfigSetCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration key to a value.

The value is parsed as JSON (numbers, true/false, arrays, objects); anything
that is not valid JSON is stored as a string. Known keys are validated
before anything is written.

Examples:
  swarmctl config set theme dark
  swarmctl config set window.width 1600
  swarmctl config set live2d.enabled false`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			key := args[0]
			value := parseValue(args[1])

			if problems := config.Problems(map[string]any{key: value}); len(problems) > 0 {
				return fmt.Errorf("invalid value: %s", strings.Join(problems, "; "))
			}

			store := app.Runtime.Store
			if err := config.ApplyDefaults(store); err != nil {
				return fmt.Errorf("applying config defaults: %w", err)
			}
			if err := store.Put(key, value); err != nil {
				return fmt.Errorf("setting config: %w", err)
			}
			if err := store.Flush(); err != nil {
				return err
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(map[string]any{
					"key":   key,
					"value": value,
				})
			}

			fmt.Fprintf(app.Out, "%s %s = %s\n", app.SuccessColor("Set"), key, formatValue(value))
			return nil
		},
	}

	return cmd
}

// newConfigListCmd creates the "config list" subcommand.
func newConfigListCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all configuration values",
		Long: `List all configuration key-value pairs, including defaults for core
keys that are not in the document.

Entries are sorted alphabetically by key.

Examples:
  swarmctl config list
  swarmctl config list --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			all := app.Runtime.Store.All()
			for k, v := range config.DefaultValues() {
				if _, exists := all[k]; !exists {
					all[k] = v
				}
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(all)
			}

			fmt.Fprintln(app.Out, "Configuration:")
			for _, k := range sortedKeys(all) {
				fmt.Fprintf(app.Out, "  %s = %s\n", k, formatValue(all[k]))
			}
			return nil
		},
	}

	return cmd
}

// newConfigUnsetCmd creates the "config unset" subcommand.
func newConfigUnsetCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unset <key>",
		Short: "Remove a configuration value",
		Long: `Remove a configuration key.

The key is removed from the document regardless of whether it was set.
Missing core keys are filled in with their defaults when the document is
written, and unset core keys read as their default afterwards.

Examples:
  swarmctl config unset theme
  swarmctl config unset custom.key`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			key := args[0]
			store := app.Runtime.Store
			if err := config.ApplyDefaults(store); err != nil {
				return fmt.Errorf("applying config defaults: %w", err)
			}
			if err := store.Unset(key); err != nil {
				return fmt.Errorf("unsetting config: %w", err)
			}
			if err := store.Flush(); err != nil {
				return err
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(map[string]string{
					"key": key,
				})
			}

			fmt.Fprintf(app.Out, "Unset %s\n", key)
			return nil
		},
	}

	return cmd
}

// newConfigValidateCmd creates the "config validate" subcommand.
func newConfigValidateCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		Long: `Validate the current configuration.

Checks that known keys have valid values and that the document could be
read. Unknown (custom) keys are always accepted. The document is never
written, so an unreadable file is left as it is.

Examples:
  swarmctl config validate
  swarmctl config validate --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			store := app.Runtime.Store
			problems := config.Problems(store.All())
			if loadErr := store.LastLoadError(); loadErr != nil {
				problems = append([]string{loadErr.Error()}, problems...)
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(map[string]any{
					"valid":  len(problems) == 0,
					"issues": problems,
				})
			}

			if len(problems) == 0 {
				fmt.Fprintln(app.Out, app.SuccessColor("Configuration is valid."))
				return nil
			}

			fmt.Fprintln(app.Out, app.WarnColor("Configuration errors:"))
			for _, p := range problems {
				fmt.Fprintf(app.Out, "  %s\n", p)
			}
			return fmt.Errorf("configuration has %d error(s)", len(problems))
		},
	}

	return cmd
}

// newConfigFlushCmd creates the "config flush" subcommand.
func newConfigFlushCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Rewrite the configuration document",
		Long: `Load the document and write it back atomically.

This normalises formatting and fills in missing core keys. An unreadable
document is replaced by one holding only the defaults.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			store := app.Runtime.Store
			if err := config.ApplyDefaults(store); err != nil {
				return fmt.Errorf("applying config defaults: %w", err)
			}
			if err := store.Flush(); err != nil {
				return err
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(map[string]any{
					"path": store.Path(),
					"keys": len(store.All()),
				})
			}

			fmt.Fprintf(app.Out, "Wrote %s\n", store.Path())
			return nil
		},
	}

	return cmd
}

// newConfigPathCmd creates the "config path" subcommand.
func newConfigPathCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "path",
		Short: "Show resolved file locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			paths := app.Runtime.Paths
			if app.JSON {
				return json.NewEncoder(app.Out).Encode(map[string]string{
					"home":     paths.HomeDir,
					"config":   paths.ConfigFile,
					"settings": paths.SettingsFile,
				})
			}

			fmt.Fprintf(app.Out, "home:     %s\n", paths.HomeDir)
			fmt.Fprintf(app.Out, "config:   %s\n", paths.ConfigFile)
			fmt.Fprintf(app.Out, "settings: %s\n", paths.SettingsFile)
			return nil
		},
	}

	return cmd
}
