// Package config holds the contracts shared by the configuration subsystem:
// the Store interface, its error taxonomy, defaults and validation for the
// persisted document, and the settings that control how the subsystem runs.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// DefaultDebounce is the quiet period before buffered writes are flushed.
const DefaultDebounce = 300 * time.Millisecond

// Config represents the contents of settings.yaml (or settings.toml).
type Config struct {
	Store StoreConfig `yaml:"store" toml:"store"`
	Log   LogConfig   `yaml:"log" toml:"log"`
	Watch bool        `yaml:"watch" toml:"watch"`
}

type StoreConfig struct {
	// File is the JSON document path. Relative paths resolve against the
	// home directory; empty means <home>/config.json.
	File       string `yaml:"file" toml:"file"`
	DebounceMS int    `yaml:"debounce_ms" toml:"debounce_ms"`
}

type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Debounce returns the configured debounce delay, falling back to
// DefaultDebounce when unset.
func (c Config) Debounce() time.Duration {
	if c.Store.DebounceMS <= 0 {
		return DefaultDebounce
	}
	return time.Duration(c.Store.DebounceMS) * time.Millisecond
}

// Default returns the default settings.
func Default() Config {
	return Config{
		Store: StoreConfig{
			File:       ConfigFileName,
			DebounceMS: int(DefaultDebounce / time.Millisecond),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads settings from path and applies defaults for missing fields.
// A missing file yields the defaults. Files ending in .toml are decoded as
// TOML, everything else as YAML.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, err
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing settings: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing settings: %w", err)
	}

	if cfg.Store.File == "" {
		cfg.Store.File = ConfigFileName
	}
	if cfg.Store.DebounceMS < 0 {
		return Config{}, fmt.Errorf("parsing settings: store.debounce_ms must not be negative, got %d", cfg.Store.DebounceMS)
	}

	return cfg, nil
}

// Write writes the provided settings to path as YAML.
func Write(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	return nil
}

// WriteDefault writes the default settings to path.
func WriteDefault(path string) error {
	return Write(path, Default())
}
