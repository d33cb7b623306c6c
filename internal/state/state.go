// Package state is an in-memory key/value registry that notifies observers
// when a value changes.
//
// Producers call Set; consumers Subscribe to the keys they care about and
// never reference each other. Keys can be marked as persisted, in which
// case every change is also handed to a Backend (normally the JSON config
// store), which schedules its own debounced write and returns immediately.
//
// Callbacks run synchronously on the goroutine that called Set, after the
// state lock has been released, so a callback may Set other keys. Setting
// the key that is currently being notified from inside its own callback is
// discouraged: observers registered later in the list will see the newer
// value first and the older one afterwards.
package state

import (
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"sort"
	"sync"

	"swarmclone-desktop/internal/config"

	"go.uber.org/zap"
)

// Callback observes a change of key to value. value is nil when the key
// was unset or explicitly set to nil; use SubscribeChanges to tell the two
// apart.
type Callback func(key string, value any)

// Change describes one notification. Removed is set only by Unset, so a key
// assigned a nil value arrives with Removed false.
type Change struct {
	Key     string
	Value   any
	Removed bool
}

// Backend receives changes of persisted keys.
type Backend interface {
	Put(key string, value any) error
	Unset(key string) error
}

// Pair is one key/value assignment for Update.
type Pair struct {
	Key   string
	Value any
}

// Option configures a State.
type Option func(*State)

// WithBackend writes changes of persisted keys through to b.
func WithBackend(b Backend) Option {
	return func(s *State) {
		s.backend = b
	}
}

// WithLogger sets the logger used for write-through failures.
func WithLogger(l *zap.Logger) Option {
	return func(s *State) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithEqual replaces the equality check that gates notifications.
func WithEqual(eq func(a, b any) bool) Option {
	return func(s *State) {
		if eq != nil {
			s.equal = eq
		}
	}
}

// State is safe for concurrent use.
type State struct {
	backend Backend
	logger  *zap.Logger
	equal   func(a, b any) bool

	// writeMu orders backend calls so the backend always ends up with the
	// latest assigned value. It is never held while subscribers run.
	writeMu sync.Mutex

	mu        sync.RWMutex
	values    map[string]any
	persisted map[string]bool
	subs      map[string][]*Subscription
	wildcard  []*Subscription
	seq       uint64
}

// New creates an empty State.
func New(opts ...Option) *State {
	s := &State{
		logger:    zap.NewNop(),
		equal:     Equal,
		values:    make(map[string]any),
		persisted: make(map[string]bool),
		subs:      make(map[string][]*Subscription),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("component", "state"))
	return s
}

// Get returns the value of key. It fails with config.ErrKeyNotFound if key
// was never initialised; there is no implicit default at this layer.
func (s *State) Get(key string) (any, error) {
	v, ok := s.Lookup(key)
	if !ok {
		return nil, fmt.Errorf("state key %q: %w", key, config.ErrKeyNotFound)
	}
	return v, nil
}

// Lookup returns the value of key and whether it is initialised.
func (s *State) Lookup(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// As returns the value of key as a T.
func As[T any](s *State, key string) (T, error) {
	var zero T
	v, err := s.Get(key)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("state key %q holds %T, want %T: %w", key, v, zero, config.ErrTypeMismatch)
	}
	return t, nil
}

// Keys returns the initialised keys in sorted order.
func (s *State) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set assigns value to key. If key already holds an equal value nothing
// happens. Otherwise memory is updated, every subscriber of key and every
// wildcard subscriber is called in registration order, and the change is
// handed to the backend if key is persisted. Set reports whether the value
// changed. An empty key is ignored.
func (s *State) Set(key string, value any) bool {
	return s.set(key, value, true)
}

// Update applies pairs in order, each as an independent Set.
func (s *State) Update(pairs ...Pair) {
	for _, p := range pairs {
		s.Set(p.Key, p.Value)
	}
}

// Sync applies values that already came from the backend, such as after a
// reload: changed keys are notified in sorted key order but nothing is
// written back.
func (s *State) Sync(values map[string]any) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s.set(k, values[k], false)
	}
}

func (s *State) set(key string, value any, writeThrough bool) bool {
	if key == "" {
		s.logger.Warn("ignoring state change with empty key")
		return false
	}

	s.mu.Lock()
	if old, ok := s.values[key]; ok && s.equal(old, value) {
		s.mu.Unlock()
		return false
	}
	s.values[key] = value
	persist := writeThrough && s.backend != nil && s.persisted[key]
	targets := s.targetsLocked(key)
	s.mu.Unlock()

	notify(targets, Change{Key: key, Value: value})

	if persist {
		if err := s.writeThrough(key); err != nil {
			s.logger.Error("persisting state change failed", zap.String("key", key), zap.Error(err))
		}
	}
	return true
}

// writeThrough hands the current value of key to the backend. Reading the
// value under writeMu, rather than passing the assigned one along, keeps the
// backend in step with memory when two goroutines change the same key.
func (s *State) writeThrough(key string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	value, ok := s.values[key]
	s.mu.RUnlock()

	if !ok {
		return s.backend.Unset(key)
	}
	return s.backend.Put(key, value)
}

// Seed initialises keys without notifying subscribers or writing to the
// backend. It is meant for startup, before the UI subscribes.
func (s *State) Seed(values map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		if k == "" {
			continue
		}
		s.values[k] = v
	}
}

// Unset removes key, notifies its subscribers with a Removed change, and
// removes it from the backend if it is persisted. Unsetting an uninitialised
// key fails with config.ErrKeyNotFound.
func (s *State) Unset(key string) error {
	return s.unset(key, true)
}

// Drop removes key and notifies like Unset but leaves the backend alone. It
// is the removal counterpart of Sync, for keys already gone from the backend.
func (s *State) Drop(key string) error {
	return s.unset(key, false)
}

func (s *State) unset(key string, writeThrough bool) error {
	if key == "" {
		return config.ErrEmptyKey
	}

	s.mu.Lock()
	if _, ok := s.values[key]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("state key %q: %w", key, config.ErrKeyNotFound)
	}
	delete(s.values, key)
	persist := writeThrough && s.backend != nil && s.persisted[key]
	targets := s.targetsLocked(key)
	s.mu.Unlock()

	notify(targets, Change{Key: key, Removed: true})

	if persist {
		if err := s.writeThrough(key); err != nil {
			return fmt.Errorf("removing persisted key %q: %w", key, err)
		}
	}
	return nil
}

// Persist marks keys as persisted: later changes are written through to
// the backend.
func (s *State) Persist(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		s.persisted[k] = true
	}
}

// Persisted reports whether key is written through to the backend.
func (s *State) Persisted(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persisted[key]
}

// Equal is the default change check. Values are equal if they are deeply
// equal, if both are numbers of the same value, or failing that if both
// encode to the same JSON. An int set by the UI therefore equals the
// json.Number read back from the config file.
func Equal(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	if na, ok := number(a); ok {
		if nb, ok := number(b); ok {
			return na.Cmp(nb) == 0
		}
	}
	ra, err := json.Marshal(a)
	if err != nil {
		return false
	}
	rb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(ra) == string(rb)
}

// number converts the numeric forms a value can take to an exact rational.
func number(v any) (*big.Rat, bool) {
	switch n := v.(type) {
	case json.Number:
		return new(big.Rat).SetString(string(n))
	case float64:
		if r := new(big.Rat); r.SetFloat64(n) != nil {
			return r, true
		}
	case float32:
		if r := new(big.Rat); r.SetFloat64(float64(n)) != nil {
			return r, true
		}
	case int:
		return new(big.Rat).SetInt64(int64(n)), true
	case int32:
		return new(big.Rat).SetInt64(int64(n)), true
	case int64:
		return new(big.Rat).SetInt64(n), true
	case uint:
		return new(big.Rat).SetUint64(uint64(n)), true
	case uint32:
		return new(big.Rat).SetUint64(uint64(n)), true
	case uint64:
		return new(big.Rat).SetUint64(n), true
	}
	return nil, false
}
