package config

// Store provides key-value access to the persisted desktop configuration.
// Keys are flat strings (dotted keys like "window.width" are literal
// strings, not nested paths). Values are anything encoding/json can
// represent.
type Store interface {
	// Get returns the value for key and whether it was found.
	// It never touches disk.
	Get(key string) (any, bool)

	// GetOrSetDefault returns the value for key, inserting def first
	// (and scheduling a write) if key is absent.
	GetOrSetDefault(key string, def any) (any, error)

	// Put overwrites key and schedules a debounced write.
	Put(key string, value any) error

	// Unset removes key and schedules a debounced write.
	Unset(key string) error

	// All returns a copy of all key-value pairs.
	All() map[string]any

	// Flush writes the current mapping to disk now.
	Flush() error
}
