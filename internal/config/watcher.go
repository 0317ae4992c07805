// file: internal/config/watcher.go
package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/codebridge/internal/logging"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last file event before a reload.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reloads the config file when it changes and pushes valid results
// into a PolicyStore. Invalid files are logged and ignored.
type Watcher struct {
	path     string
	store    *PolicyStore
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   logging.Logger
	onReload func(*Config)

	mu     sync.Mutex
	timer  *time.Timer
	done   chan struct{}
	closed bool
}

// WatcherOption customises a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the debounce delay.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// WithReloadHook is called with every successfully applied config.
func WithReloadHook(fn func(*Config)) WatcherOption {
	return func(w *Watcher) { w.onReload = fn }
}

// NewWatcher watches the directory holding path, so editors that replace the
// file by rename are picked up too.
func NewWatcher(path string, store *PolicyStore, logger logging.Logger, opts ...WatcherOption) (*Watcher, error) {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	expanded, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve config path: %s", expanded)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create file watcher")
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, errors.Wrapf(err, "failed to watch config directory: %s", filepath.Dir(abs))
	}

	w := &Watcher{
		path:     abs,
		store:    store,
		watcher:  fw,
		debounce: DefaultDebounce,
		logger:   logger.WithField("component", "config_watcher"),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	go w.loop()
	w.logger.Info("Watching config file for policy changes.", "path", abs)
	return w, nil
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.schedule()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("File watcher error.", "error", err)
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := LoadFromFile(w.path)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		w.logger.Warn("Ignoring invalid config reload.", "path", w.path, "error", fmt.Sprintf("%+v", err))
		return
	}
	w.store.Update(cfg)
	w.logger.Info("Reloaded tool policy.", "path", w.path, "goals", len(cfg.OptimizationGoals))
	if w.onReload != nil {
		w.onReload(cfg)
	}
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	err := w.watcher.Close()
	<-w.done
	return err
}
