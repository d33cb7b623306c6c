package config

import (
	"fmt"
	"os"
	"strconv"
)

// Environment variable names for swarmclone configuration.
const (
	EnvHome       = "SWARMCLONE_HOME"        // Path to the ~/.swarmclone directory
	EnvConfig     = "SWARMCLONE_CONFIG"      // Override the JSON document path
	EnvDebounceMS = "SWARMCLONE_DEBOUNCE_MS" // Override store.debounce_ms
	EnvLogLevel   = "SWARMCLONE_LOG_LEVEL"   // Override log.level
)

// ApplyEnvOverrides checks the SWARMCLONE_* env vars and overrides the
// corresponding settings in memory. These overrides are not persisted to
// the settings file.
func ApplyEnvOverrides(cfg *Config) error {
	if file := os.Getenv(EnvConfig); file != "" {
		cfg.Store.File = file
	}
	if raw := os.Getenv(EnvDebounceMS); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil || ms < 0 {
			return fmt.Errorf("%s: must be a non-negative integer, got %q", EnvDebounceMS, raw)
		}
		cfg.Store.DebounceMS = ms
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		cfg.Log.Level = level
	}
	return nil
}
