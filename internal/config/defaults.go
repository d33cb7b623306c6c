package config

// Theme names understood by the desktop shell. "default" follows the
// system palette.
const (
	ThemeDefault = "default"
	ThemeDark    = "dark"
	ThemeLight   = "light"
)

// Views the shell can switch between.
const (
	ViewHome     = "home"
	ViewSettings = "settings"
)

// DefaultValues returns the default config map for the core persisted keys.
func DefaultValues() map[string]any {
	return map[string]any{
		"theme":          ThemeDefault,
		"language":       "zh_CN",
		"window.width":   float64(1280),
		"window.height":  float64(800),
		"live2d.enabled": true,
	}
}

// TransientDefaults returns UI state keys that are observed like config
// but never written to disk.
func TransientDefaults() map[string]any {
	return map[string]any{
		"current_view": ViewHome,
		"is_loading":   false,
	}
}

// ApplyDefaults fills any missing core keys in s with their default values.
func ApplyDefaults(s Store) error {
	for k, v := range DefaultValues() {
		if _, err := s.GetOrSetDefault(k, v); err != nil {
			return err
		}
	}
	return nil
}
