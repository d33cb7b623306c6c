// Package jsonstore implements config.Store backed by a single JSON file.
//
// The file holds one flat JSON object. Mutations update memory immediately
// and arm a trailing-edge debounce timer; the whole mapping is written once
// the burst of writes has been quiet for the debounce delay. Writes go to a
// temporary file that is fsynced and renamed over the target, so a crash
// leaves either the previous document or the new one, never a torn file.
//
// A flush blocks on disk I/O for as long as the filesystem takes; there is
// no timeout and an in-flight flush cannot be cancelled.
package jsonstore

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"swarmclone-desktop/internal/config"
	"swarmclone-desktop/internal/debounce"

	"go.uber.org/zap"
)

// Option configures a Store.
type Option func(*Store)

// WithDebounce sets the quiet period before buffered writes are flushed.
func WithDebounce(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.delay = d
		}
	}
}

// WithLogger sets the logger used for recovered load errors and flush
// outcomes.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithFS replaces the filesystem the store reads and writes through.
func WithFS(fsys FS) Option {
	return func(s *Store) {
		if fsys != nil {
			s.fs = fsys
		}
	}
}

// WithFlushHook registers fn to observe every flush outcome, including
// background flushes whose errors are otherwise only logged. fn runs after
// the store lock is released and may call back into the store.
func WithFlushHook(fn func(config.FlushResult)) Option {
	return func(s *Store) {
		s.onFlush = fn
	}
}

// Store implements config.Store using a JSON file on disk.
type Store struct {
	path    string
	delay   time.Duration
	fs      FS
	logger  *zap.Logger
	onFlush func(config.FlushResult)
	saver   *debounce.Debouncer

	mu           sync.Mutex
	data         map[string]any
	dirty        bool
	shuttingDown bool
	lastLoadErr  error
	lastFlushErr error
	digest       [sha256.Size]byte // of the bytes last read from or written to path
}

// New creates a Store that reads from and writes to path. The store starts
// empty; call Load to read the file.
func New(path string, opts ...Option) *Store {
	s := &Store{
		path:   path,
		delay:  config.DefaultDebounce,
		fs:     OSFS{},
		logger: zap.NewNop(),
		data:   make(map[string]any),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("component", "jsonstore"), zap.String("path", path))
	s.saver = debounce.New(s.delay, s.backgroundFlush)
	return s
}

// Load ensures the config directory and file exist (writing an empty
// document on first run) and replaces memory with the file's contents.
// An unreadable or unparseable file is not an error for the caller: the
// store falls back to an empty mapping, logs the problem, and records it
// for LastLoadError.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked()
}

// Reload re-reads the file, discarding unflushed changes. Use it after the
// file was edited outside the process.
func (s *Store) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saver.Stop()
	s.loadLocked()
}

func (s *Store) loadLocked() {
	s.lastLoadErr = nil

	if err := s.ensureFileLocked(); err != nil {
		s.recoverLocked(err)
		return
	}

	raw, err := s.fs.ReadFile(s.path)
	if err != nil {
		s.recoverLocked(fmt.Errorf("reading config file: %w", err))
		return
	}
	s.digest = sha256.Sum256(raw)

	data, err := decode(raw)
	if err != nil {
		s.recoverLocked(err)
		return
	}

	s.data = data
	s.dirty = false
	s.logger.Debug("config loaded", zap.Int("keys", len(data)))
}

// recoverLocked resets memory to an empty mapping after a failed load.
func (s *Store) recoverLocked(err error) {
	s.data = make(map[string]any)
	s.dirty = false
	s.lastLoadErr = &config.LoadError{Path: s.path, Err: err}
	s.logger.Warn("config unreadable, starting empty", zap.Error(err))
}

// ensureFileLocked creates the config directory and an empty document if
// the file does not exist yet.
func (s *Store) ensureFileLocked() error {
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if _, err := s.fs.Stat(s.path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking config file: %w", err)
	}
	if err := s.writeLocked([]byte("{}")); err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	return nil
}

// Get returns the value for key and whether it was found.
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return clone(v), ok
}

// GetOr returns the value for key, or def if key is absent.
func (s *Store) GetOr(key string, def any) any {
	if v, ok := s.Get(key); ok {
		return v
	}
	return def
}

// GetOrSetDefault returns the value for key. If key is absent, def is
// stored (scheduling a write like Put) and returned.
func (s *Store) GetOrSetDefault(key string, def any) (any, error) {
	if key == "" {
		return nil, config.ErrEmptyKey
	}
	norm, err := normalize(def)
	if err != nil {
		return nil, fmt.Errorf("key %q: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.data[key]; ok {
		return clone(v), nil
	}
	s.data[key] = norm
	s.markDirtyLocked()
	return clone(norm), nil
}

// Put overwrites key with value and (re)arms the debounced flush. Every
// call counts as a write, even if the value is unchanged. After
// PrepareShutdown, Put only updates memory.
func (s *Store) Put(key string, value any) error {
	if key == "" {
		return config.ErrEmptyKey
	}
	norm, err := normalize(value)
	if err != nil {
		return fmt.Errorf("key %q: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = norm
	s.markDirtyLocked()
	return nil
}

// Unset removes key and (re)arms the debounced flush. Removing a missing
// key is a no-op.
func (s *Store) Unset(key string) error {
	if key == "" {
		return config.ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return nil
	}
	delete(s.data, key)
	s.markDirtyLocked()
	return nil
}

func (s *Store) markDirtyLocked() {
	s.dirty = true
	if !s.shuttingDown {
		s.saver.Trigger()
	}
}

// All returns a copy of all key-value pairs.
func (s *Store) All() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.data))
	for k, v := range s.data {
		out[k] = clone(v)
	}
	return out
}

// Flush writes the whole mapping to disk now. It always writes, including
// after PrepareShutdown. On failure it returns a *config.FlushError.
func (s *Store) Flush() error {
	s.mu.Lock()
	s.saver.Stop()
	result := s.flushLocked(false)
	s.mu.Unlock()

	s.report(result)
	return result.Err
}

// backgroundFlush runs on the debounce timer.
func (s *Store) backgroundFlush() {
	s.mu.Lock()
	if s.shuttingDown || !s.dirty {
		s.mu.Unlock()
		return
	}
	result := s.flushLocked(true)
	s.mu.Unlock()

	s.report(result)
}

func (s *Store) flushLocked(background bool) config.FlushResult {
	result := config.FlushResult{
		Path:       s.path,
		Background: background,
		Keys:       len(s.data),
	}

	raw, err := encode(s.data)
	if err == nil {
		err = s.writeLocked(raw)
	}
	if err != nil {
		result.Err = &config.FlushError{Path: s.path, Err: err}
		s.lastFlushErr = result.Err
		s.logger.Error("config flush failed", zap.Bool("background", background), zap.Error(err))
		return result
	}

	s.dirty = false
	s.lastFlushErr = nil
	s.logger.Debug("config flushed", zap.Bool("background", background), zap.Int("keys", result.Keys))
	return result
}

func (s *Store) report(result config.FlushResult) {
	if s.onFlush != nil {
		s.onFlush(result)
	}
}

// PrepareShutdown cancels any pending debounced flush and stops scheduling
// new ones. Later Puts still update memory. Call Flush afterwards to
// persist; Close does both.
func (s *Store) PrepareShutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shuttingDown = true
	s.saver.Stop()
	s.logger.Debug("config shutdown prepared", zap.Bool("dirty", s.dirty))
}

// Close prepares shutdown and writes the final state. It may be called
// more than once.
func (s *Store) Close() error {
	s.PrepareShutdown()
	return s.Flush()
}

// Path returns the config file path.
func (s *Store) Path() string {
	return s.path
}

// Delay returns the debounce delay.
func (s *Store) Delay() time.Duration {
	return s.delay
}

// Dirty reports whether memory holds changes not yet written.
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Pending reports whether a debounced flush is scheduled.
func (s *Store) Pending() bool {
	return s.saver.Pending()
}

// LastLoadError returns the *config.LoadError recovered from by the most
// recent Load or Reload, or nil.
func (s *Store) LastLoadError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastLoadErr
}

// LastFlushError returns the *config.FlushError of the most recent flush,
// or nil if it succeeded.
func (s *Store) LastFlushError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFlushErr
}

// MatchesDisk reports whether raw is byte-for-byte what the store last
// read from or wrote to its file. Watchers use it to skip the store's own
// writes.
func (s *Store) MatchesDisk(raw []byte) bool {
	sum := sha256.Sum256(raw)
	s.mu.Lock()
	defer s.mu.Unlock()
	return sum == s.digest
}

// fileMode is the permission of the config document. Temp files start at
// 0600 and are widened before the rename.
const fileMode = 0644

// writeLocked atomically replaces the config file with raw: temp file in
// the same directory, fsync, rename, then a best-effort directory sync.
func (s *Store) writeLocked(raw []byte) error {
	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	unlock, err := s.fs.Lock(s.path + ".lock")
	if err != nil {
		return err
	}
	defer unlock()

	f, err := s.fs.CreateTemp(dir, filepath.Base(s.path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmp := f.Name()

	if _, err := f.Write(raw); err != nil {
		f.Close()
		s.fs.Remove(tmp) // best effort cleanup
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Chmod(fileMode); err != nil {
		f.Close()
		s.fs.Remove(tmp)
		return fmt.Errorf("setting temp file mode: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		s.fs.Remove(tmp)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		s.fs.Remove(tmp)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		s.fs.Remove(tmp)
		return fmt.Errorf("replacing config file: %w", err)
	}
	if err := s.fs.SyncDir(dir); err != nil {
		s.logger.Debug("config directory sync failed", zap.Error(err))
	}

	s.digest = sha256.Sum256(raw)
	return nil
}

// encode renders the mapping as indented JSON. HTML escaping is off so
// non-ASCII text and <>& are stored verbatim.
func encode(data map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return buf.Bytes(), nil
}

// decode parses a config document. Empty files and documents whose top
// level is not an object are errors; "null" is an empty mapping. Numbers
// are kept as json.Number so integers of any size survive unchanged.
func decode(raw []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.New("parsing config file: file is empty")
	}
	var data map[string]any
	if err := unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if data == nil {
		data = make(map[string]any)
	}
	return data, nil
}

// normalize round-trips v through JSON so memory always holds exactly what
// a cold load would produce and callers cannot alias stored maps.
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrUnrepresentable, err)
	}
	var out any
	if err := unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrUnrepresentable, err)
	}
	return out, nil
}

// unmarshal is json.Unmarshal with UseNumber.
func unmarshal(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("unexpected data after top-level value")
	}
	return nil
}

// clone deep-copies the map and slice shapes produced by encoding/json.
func clone(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = clone(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = clone(e)
		}
		return out
	default:
		return v
	}
}

// Compile-time check that Store implements config.Store.
var _ config.Store = (*Store)(nil)
