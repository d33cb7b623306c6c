// Package app wires the configuration subsystem together for the desktop
// shell and for swarmctl: one store, one state, one logger.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"

	"swarmclone-desktop/internal/config"
	"swarmclone-desktop/internal/config/jsonstore"
	"swarmclone-desktop/internal/configwatch"
	"swarmclone-desktop/internal/logging"
	"swarmclone-desktop/internal/state"
)

// Options controls Open.
type Options struct {
	// Home overrides the home directory (see config.ResolvePaths).
	Home string
	// Logger is used as is when set; otherwise one is built from the
	// settings and written to LogOutput (stderr by default).
	Logger    *zap.Logger
	LogOutput io.Writer
	// Verbose forces debug logging.
	Verbose bool
	// Watch starts the file watcher even when settings do not ask for it.
	Watch bool
	// FlushHook observes every store flush.
	FlushHook func(config.FlushResult)
	// ReadOnly keeps defaults out of the store: they are seeded into the
	// state only, so the document is rewritten only after a real change.
	// swarmctl opens the runtime this way.
	ReadOnly bool
}

// Runtime owns the store and the state for the lifetime of the process.
type Runtime struct {
	Paths    config.Paths
	Settings config.Config
	Store    *jsonstore.Store
	State    *state.State
	Logger   *zap.Logger

	readOnly  bool
	watchMu   sync.Mutex
	watcher   *configwatch.Watcher
	reloadMu  sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// Open resolves paths, loads settings, loads the JSON document, fills in
// defaults (unless opts.ReadOnly) and seeds the state. The caller must Close the runtime exactly
// once before exiting.
func Open(ctx context.Context, opts Options) (*Runtime, error) {
	paths, err := config.ResolvePaths(opts.Home)
	if err != nil {
		return nil, err
	}
	settings, err := config.Load(paths.SettingsFile)
	if err != nil {
		return nil, err
	}
	if err := config.ApplyEnvOverrides(&settings); err != nil {
		return nil, err
	}
	paths = paths.WithConfig(settings)

	logger := opts.Logger
	if logger == nil {
		logCfg := settings.Log
		if opts.Verbose {
			logCfg = logging.Verbose(logCfg)
		}
		out := opts.LogOutput
		if out == nil {
			out = os.Stderr
		}
		logger, err = logging.New(logCfg, out)
		if err != nil {
			return nil, fmt.Errorf("initializing logger: %w", err)
		}
	}

	storeOpts := []jsonstore.Option{
		jsonstore.WithDebounce(settings.Debounce()),
		jsonstore.WithLogger(logger),
	}
	if opts.FlushHook != nil {
		storeOpts = append(storeOpts, jsonstore.WithFlushHook(opts.FlushHook))
	}
	store := jsonstore.New(paths.ConfigFile, storeOpts...)
	store.Load()
	if !opts.ReadOnly {
		if err := config.ApplyDefaults(store); err != nil {
			store.PrepareShutdown()
			return nil, fmt.Errorf("applying config defaults: %w", err)
		}
	}

	rt := &Runtime{
		Paths:    paths,
		Settings: settings,
		Store:    store,
		State:    state.New(state.WithBackend(store), state.WithLogger(logger)),
		Logger:   logger,
		readOnly: opts.ReadOnly,
	}
	rt.seed()

	if settings.Watch || opts.Watch {
		if err := rt.StartWatching(ctx); err != nil {
			store.PrepareShutdown()
			return nil, err
		}
	}

	logger.Debug("runtime opened",
		zap.String("home", paths.HomeDir),
		zap.String("config", paths.ConfigFile),
		zap.Duration("debounce", settings.Debounce()),
		zap.Bool("watch", rt.Watching()),
		zap.Bool("read_only", opts.ReadOnly),
	)
	return rt, nil
}

// seed initialises the state from the loaded document plus the transient
// UI keys, and marks every document key as persisted.
func (rt *Runtime) seed() {
	values := rt.document()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	for k, v := range config.TransientDefaults() {
		if _, ok := values[k]; !ok {
			values[k] = v
		}
	}
	rt.State.Seed(values)
	rt.State.Persist(keys...)
	rt.State.Persist(defaultKeys()...)
}

// document returns the store contents as the state should see them. In
// read-only mode missing core keys fall back to their defaults.
func (rt *Runtime) document() map[string]any {
	return rt.withDefaults(rt.Store.All())
}

func (rt *Runtime) withDefaults(values map[string]any) map[string]any {
	if !rt.readOnly {
		return values
	}
	for k, v := range config.DefaultValues() {
		if _, ok := values[k]; !ok {
			values[k] = v
		}
	}
	return values
}

// Reload re-reads the document and pushes changed values to subscribers.
func (rt *Runtime) Reload() {
	rt.Store.Reload()
	rt.sync(rt.Store.All())
}

// sync applies a freshly loaded document to the state. Persisted keys that
// disappeared from the document are unset, or in read-only mode revert to
// their default.
func (rt *Runtime) sync(values map[string]any) {
	rt.reloadMu.Lock()
	defer rt.reloadMu.Unlock()

	values = rt.withDefaults(values)

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	rt.State.Persist(keys...)
	rt.State.Sync(values)

	for _, k := range rt.State.Keys() {
		if _, ok := values[k]; ok || !rt.State.Persisted(k) {
			continue
		}
		if err := rt.State.Drop(k); err != nil && !errors.Is(err, config.ErrKeyNotFound) {
			rt.Logger.Warn("dropping removed config key failed", zap.String("key", k), zap.Error(err))
		}
	}
}

// StartWatching reloads the document whenever another program changes it.
// Changed values reach State subscribers on the watcher goroutine. Calling
// it again while watching is a no-op.
func (rt *Runtime) StartWatching(ctx context.Context) error {
	rt.watchMu.Lock()
	defer rt.watchMu.Unlock()
	if rt.watcher != nil {
		return nil
	}

	w, err := configwatch.New(rt.Store,
		configwatch.WithLogger(rt.Logger),
		configwatch.WithOnReload(rt.sync),
	)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		w.Stop()
		return err
	}
	rt.watcher = w
	return nil
}

// Watching reports whether the file watcher is running.
func (rt *Runtime) Watching() bool {
	rt.watchMu.Lock()
	defer rt.watchMu.Unlock()
	return rt.watcher != nil
}

// Close stops the watcher and flushes the store if it holds changes that
// are not on disk yet. A store that is already in sync with its file, or
// that recovered from a corrupt file and was never changed, is left alone.
// Later calls return the result of the first.
func (rt *Runtime) Close() error {
	rt.closeOnce.Do(func() {
		rt.watchMu.Lock()
		if rt.watcher != nil {
			rt.watcher.Stop()
		}
		rt.watchMu.Unlock()
		rt.Store.PrepareShutdown()
		if rt.Store.Dirty() {
			rt.closeErr = rt.Store.Flush()
		}
		_ = rt.Logger.Sync()
	})
	return rt.closeErr
}

func defaultKeys() []string {
	defaults := config.DefaultValues()
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	return keys
}
