package config

import (
	"bytes"
	"crypto/sha256"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 1500 * time.Millisecond

// Watcher reloads one file when its contents change and hands each parsed
// snapshot to the subscribers. The parent directory is watched so files
// replaced by rename are picked up. Writes that leave the bytes unchanged
// (touch, re-saving the same profile) do not reload.
type Watcher[T any] struct {
	path     string
	debounce time.Duration
	load     func(path string) (T, error)
	onError  func(error)
	logger   *slog.Logger

	mu     sync.Mutex
	subs   map[int]func(T)
	nextID int
	digest [sha256.Size]byte

	fs       *fsnotify.Watcher
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption[T any] func(*Watcher[T])

// WithDebounce sets how long the file must stay quiet before it is reloaded.
func WithDebounce[T any](d time.Duration) WatcherOption[T] {
	return func(w *Watcher[T]) {
		w.debounce = d
	}
}

// WithErrorHandler is called when a changed file fails to load. The last
// good snapshot stays in effect either way.
func WithErrorHandler[T any](handler func(error)) WatcherOption[T] {
	return func(w *Watcher[T]) {
		w.onError = handler
	}
}

// NewWatcher creates a watcher that parses path with load on every change.
func NewWatcher[T any](path string, load func(path string) (T, error), logger *slog.Logger, opts ...WatcherOption[T]) *Watcher[T] {
	w := &Watcher[T]{
		path:     path,
		debounce: defaultDebounce,
		load:     load,
		logger:   logger,
		subs:     make(map[int]func(T)),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// OnReload subscribes handler and returns a function removing it.
func (w *Watcher[T]) OnReload(handler func(T)) func() {
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.subs[id] = handler
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		delete(w.subs, id)
		w.mu.Unlock()
	}
}

// Start records the current contents and begins watching.
func (w *Watcher[T]) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return err
	}
	w.fs = fsw

	if data, err := os.ReadFile(w.path); err == nil {
		w.digest = sha256.Sum256(data)
	}

	w.logger.Info("Watching file", "path", w.path, "debounce", w.debounce)
	go w.run()
	return nil
}

// Stop ends watching and waits for a reload in progress to finish.
func (w *Watcher[T]) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stop)
		if w.fs == nil {
			return
		}
		err = w.fs.Close()
		<-w.done
	})
	return err
}

func (w *Watcher[T]) run() {
	defer close(w.done)

	target := filepath.Clean(w.path)
	quiet := time.NewTimer(w.debounce)
	quiet.Stop()
	defer quiet.Stop()

	for {
		select {
		case <-w.stop:
			return

		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target || !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug("File event", "path", w.path, "op", ev.Op.String())
			quiet.Reset(w.debounce)

		case <-quiet.C:
			w.reload()

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("File watcher error", "path", w.path, "error", err)
		}
	}
}

// reload parses the file when its bytes changed and passes one snapshot to
// every subscriber.
func (w *Watcher[T]) reload() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		// Renamed away mid-replace; the Create that follows triggers another pass.
		w.logger.Debug("File not readable", "path", w.path, "error", err)
		return
	}
	digest := sha256.Sum256(data)

	w.mu.Lock()
	unchanged := bytes.Equal(digest[:], w.digest[:])
	w.mu.Unlock()
	if unchanged {
		w.logger.Debug("File contents unchanged", "path", w.path)
		return
	}

	snapshot, err := w.load(w.path)
	if err != nil {
		w.logger.Warn("Reload failed, keeping previous configuration", "path", w.path, "error", err)
		if w.onError != nil {
			w.onError(err)
		}
		return
	}

	w.mu.Lock()
	w.digest = digest
	handlers := make([]func(T), 0, len(w.subs))
	for _, h := range w.subs {
		handlers = append(handlers, h)
	}
	w.mu.Unlock()

	w.logger.Info("Reloaded", "path", w.path, "subscribers", len(handlers))
	for _, h := range handlers {
		h(snapshot)
	}
}
