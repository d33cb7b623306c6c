package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// File and directory names under the user's home.
const (
	HomeDirName      = ".swarmclone"
	ConfigFileName   = "config.json"
	SettingsFileName = "settings.yaml"
	SettingsTOMLName = "settings.toml"
)

// Paths captures resolved locations for config.
type Paths struct {
	HomeDir      string // path to ~/.swarmclone
	ConfigFile   string // path to the persisted JSON document
	SettingsFile string // path to settings.yaml or settings.toml
}

// ResolvePaths resolves the home directory and the settings file inside it.
// Discovery order for home: explicit argument > SWARMCLONE_HOME > ~/.swarmclone.
// settings.toml is used only when it exists and settings.yaml does not.
// ConfigFile is left empty; call Paths.WithConfig once settings are loaded.
func ResolvePaths(home string) (Paths, error) {
	if home == "" {
		home = os.Getenv(EnvHome)
	}
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, fmt.Errorf("cannot determine home directory: %w", err)
		}
		home = filepath.Join(userHome, HomeDirName)
	}

	abs, err := filepath.Abs(home)
	if err != nil {
		return Paths{}, fmt.Errorf("resolving %s: %w", home, err)
	}

	settings := filepath.Join(abs, SettingsFileName)
	if _, err := os.Stat(settings); os.IsNotExist(err) {
		tomlPath := filepath.Join(abs, SettingsTOMLName)
		if _, err := os.Stat(tomlPath); err == nil {
			settings = tomlPath
		}
	}

	return Paths{
		HomeDir:      abs,
		SettingsFile: settings,
	}, nil
}

// WithConfig returns p with ConfigFile resolved from cfg.Store.File.
// Relative paths are taken relative to HomeDir.
func (p Paths) WithConfig(cfg Config) Paths {
	file := cfg.Store.File
	if file == "" {
		file = ConfigFileName
	}
	if !filepath.IsAbs(file) {
		file = filepath.Join(p.HomeDir, file)
	}
	p.ConfigFile = file
	return p
}
