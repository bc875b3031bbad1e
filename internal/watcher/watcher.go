// Package watcher reports deletion and modification of a single file, such
// as the event database or settings.json.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Option configures a Watcher.
type Option func(*Watcher)

// OnDelete sets the callback run when the file or its directory is removed.
func OnDelete(fn func()) Option {
	return func(w *Watcher) { w.onDelete = fn }
}

// OnChange sets the callback run when the file is written or created.
func OnChange(fn func()) Option {
	return func(w *Watcher) { w.onChange = fn }
}

// WithDebounce overrides the default 100ms debounce window.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// Watcher watches the parent directory of a file, since fsnotify cannot
// watch paths that do not exist yet.
type Watcher struct {
	targetPath string
	parentPath string
	onDelete   func()
	onChange   func()
	debounce   time.Duration
	fsw        *fsnotify.Watcher

	mu      sync.Mutex
	running bool
	timer   *time.Timer
	pending pendingOp
}

// New creates a watcher for targetPath.
func New(targetPath string, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	target := filepath.Clean(targetPath)
	w := &Watcher{
		targetPath: target,
		parentPath: filepath.Dir(target),
		debounce:   100 * time.Millisecond,
		fsw:        fsw,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run watches until ctx is cancelled, then closes the underlying watcher.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addWatch(); err != nil {
		log.Warn().Err(err).Str("path", w.parentPath).Msg("Failed to add initial watch")
	}

	defer func() {
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.running = false
		w.mu.Unlock()
		_ = w.fsw.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Str("path", w.targetPath).Msg("Watcher error")
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	path := filepath.Clean(event.Name)

	switch {
	case path == w.parentPath && event.Has(fsnotify.Remove):
		log.Info().Str("path", w.parentPath).Msg("Watched directory deleted")
		w.schedule(pendingDelete)

	case path == w.parentPath && event.Has(fsnotify.Create):
		log.Info().Str("path", w.parentPath).Msg("Watched directory recreated, re-establishing watch")
		_ = w.addWatch()

	case path != w.targetPath:

	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		log.Info().Str("path", w.targetPath).Msg("Watched file deleted")
		w.schedule(pendingDelete)

	case event.Has(fsnotify.Create) && w.pendingKind() == pendingDelete:
		log.Info().Str("path", w.targetPath).Msg("Watched file recreated, cancelling deletion callback")
		w.schedule(pendingChange)

	case event.Has(fsnotify.Write) || event.Has(fsnotify.Create):
		w.schedule(pendingChange)
	}
}

type pendingOp int

const (
	pendingNone pendingOp = iota
	pendingDelete
	pendingChange
)

// schedule replaces any queued callback with kind after the debounce window.
func (w *Watcher) schedule(kind pendingOp) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pending = kind
	w.timer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		run := w.pending
		w.pending = pendingNone
		w.mu.Unlock()

		switch run {
		case pendingDelete:
			w.fireDelete()
		case pendingChange:
			w.fireChange()
		}
	})
}

func (w *Watcher) pendingKind() pendingOp {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending
}

func (w *Watcher) fireDelete() {
	log.Info().Str("path", w.targetPath).Msg("Triggering deletion callback")
	if w.onDelete != nil {
		w.onDelete()
	}

	// The directory may come back shortly after a wipe.
	time.AfterFunc(500*time.Millisecond, func() {
		if err := w.addWatch(); err != nil {
			log.Warn().Err(err).Str("path", w.parentPath).Msg("Failed to re-establish watch after deletion")
		}
	})
}

func (w *Watcher) fireChange() {
	log.Debug().Str("path", w.targetPath).Msg("Watched file changed")
	if w.onChange != nil {
		w.onChange()
	}
}

func (w *Watcher) addWatch() error {
	if _, err := os.Stat(w.parentPath); err != nil {
		return err
	}
	return w.fsw.Add(w.parentPath)
}
