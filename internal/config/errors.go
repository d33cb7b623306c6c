package config

import (
	"errors"
	"fmt"
)

var (
	// ErrKeyNotFound is returned when a key has never been initialised.
	ErrKeyNotFound = errors.New("key not found")

	// ErrEmptyKey is returned when an operation is given an empty key.
	ErrEmptyKey = errors.New("key cannot be empty")

	// ErrUnrepresentable is returned when a value cannot be stored as JSON.
	ErrUnrepresentable = errors.New("value is not JSON-representable")

	// ErrTypeMismatch is returned when a stored value has an unexpected type.
	ErrTypeMismatch = errors.New("value has unexpected type")
)

// LoadError describes a config file that could not be read or parsed.
// The store recovers from it by starting with an empty mapping.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading config %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// FlushError describes a failed attempt to persist the config file.
type FlushError struct {
	Path string
	Err  error
}

func (e *FlushError) Error() string {
	return fmt.Sprintf("flushing config %s: %v", e.Path, e.Err)
}

func (e *FlushError) Unwrap() error { return e.Err }

// FlushResult reports the outcome of one flush.
type FlushResult struct {
	Path       string
	Background bool // triggered by the debounce timer rather than an explicit Flush
	Keys       int
	Err        error
}
