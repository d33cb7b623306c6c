// Package configwatch reloads a config store when its file is changed by
// another program.
package configwatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"swarmclone-desktop/internal/debounce"
)

// DefaultDelay is how long the file must be quiet before it is re-read.
const DefaultDelay = 200 * time.Millisecond

// Reloader is the part of the config store the watcher drives.
type Reloader interface {
	Path() string
	MatchesDisk(raw []byte) bool
	Reload()
	All() map[string]any
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDelay sets the quiet period before a changed file is re-read.
func WithDelay(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.delay = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithOnReload registers fn to receive the store contents after every
// reload. fn runs on the watcher goroutine.
func WithOnReload(fn func(values map[string]any)) Option {
	return func(w *Watcher) {
		w.onReload = fn
	}
}

// Watcher watches the directory holding the store's file. Events for
// other files are ignored, and so are writes the store made itself.
type Watcher struct {
	store    Reloader
	path     string
	delay    time.Duration
	logger   *zap.Logger
	onReload func(map[string]any)

	fsw     *fsnotify.Watcher
	settle  *debounce.Debouncer
	changed chan struct{}

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	reloads int
}

// New creates a watcher for store. Call Start to begin watching.
func New(store Reloader, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	w := &Watcher{
		store:   store,
		path:    filepath.Clean(store.Path()),
		delay:   DefaultDelay,
		logger:  zap.NewNop(),
		fsw:     fsw,
		changed: make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(zap.String("component", "configwatch"), zap.String("path", w.path))
	w.settle = debounce.New(w.delay, w.signal)
	return w, nil
}

// Start begins watching. It returns once the directory is registered; events
// are handled on a separate goroutine until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := w.fsw.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	w.running = true
	go w.run(ctx)
	w.logger.Debug("watching config file")
	return nil
}

// Stop ends watching and waits for the event loop to exit. It is safe to
// call more than once, and without Start.
func (w *Watcher) Stop() {
	w.mu.Lock()
	wasRunning := w.running
	w.running = false
	w.mu.Unlock()

	w.settle.Stop()
	if wasRunning {
		select {
		case <-w.stopCh:
		default:
			close(w.stopCh)
		}
		<-w.doneCh
	}
	if err := w.fsw.Close(); err != nil {
		w.logger.Warn("closing file watcher failed", zap.Error(err))
	}
}

// Reloads returns how many times the store was reloaded.
func (w *Watcher) Reloads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			w.settle.Stop()
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", zap.Error(err))
		case <-w.changed:
			w.check()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return
	}
	w.logger.Debug("config file event", zap.String("op", event.Op.String()))
	w.settle.Trigger()
}

// signal runs on the debounce timer and hands the work to the event loop.
func (w *Watcher) signal() {
	select {
	case w.changed <- struct{}{}:
	default:
	}
}

func (w *Watcher) check() {
	raw, err := os.ReadFile(w.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			w.logger.Warn("reading changed config file failed", zap.Error(err))
		}
		return
	}
	if w.store.MatchesDisk(raw) {
		return
	}

	w.store.Reload()
	w.mu.Lock()
	w.reloads++
	w.mu.Unlock()
	w.logger.Info("config reloaded after external change")

	if w.onReload != nil {
		w.onReload(w.store.All())
	}
}
