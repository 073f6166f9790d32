// Package watch reloads derived state when files under the content root
// change. Events are debounced into batches so an editor save storm
// triggers one reload.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"contentgraph/backend/pkg/logger"
)

// DefaultDebounce is used when no debounce window is given
const DefaultDebounce = 200 * time.Millisecond

// Handler receives the de-duplicated, sorted paths of one batch
type Handler func(ctx context.Context, paths []string)

// Watcher watches a directory tree recursively
type Watcher struct {
	root     string
	debounce time.Duration
	handlers []Handler
	logger   *zap.Logger

	fsw      *fsnotify.Watcher
	stopOnce sync.Once
}

// New creates a watcher over root. Call Run to start delivering batches.
func New(root string, debounce time.Duration, log *zap.Logger, handlers ...Handler) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	w := &Watcher{
		root:     root,
		debounce: debounce,
		handlers: handlers,
		logger:   logger.OrDefault(log),
		fsw:      fsw,
	}
	if err := w.addRecursive(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run blocks until ctx is cancelled or Close is called. Pending changes are
// flushed before returning.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.Close()

	pending := make(map[string]struct{})
	var timer *time.Timer
	var fire <-chan time.Time

	flush := func() {
		if len(pending) == 0 {
			return
		}
		paths := make([]string, 0, len(pending))
		for p := range pending {
			paths = append(paths, p)
		}
		slices.Sort(paths)
		clear(pending)

		w.logger.Info("Content changed", zap.Int("paths", len(paths)))
		for _, h := range w.handlers {
			h(ctx, paths)
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				flush()
				return nil
			}
			if w.ignored(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(event.Name); err != nil {
						w.logger.Warn("Failed to watch new directory", zap.String("path", event.Name), zap.Error(err))
					}
				}
			}
			pending[event.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			flush()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				flush()
				return nil
			}
			w.logger.Warn("Watcher error", zap.Error(err))
		}
	}
}

// Close stops the underlying watcher. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.stopOnce.Do(func() {
		err = w.fsw.Close()
	})
	return err
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.ignored(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		w.logger.Debug("Watching directory", zap.String("path", path))
		return nil
	})
}

// ignored skips dot files, editor swap files and temp files
func (w *Watcher) ignored(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") ||
		strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".tmp")
}
