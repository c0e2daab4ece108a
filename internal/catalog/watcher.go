package catalog

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce is the quiet period after the last filesystem event
// before a rescan fires.
const defaultDebounce = 500 * time.Millisecond

// Watcher rescans the catalog when its tree changes behind the engine's
// back, for example after a hand edit or a git pull. Events are
// debounced into a single cache clear plus rescan; newly created
// directories are added to the watch as they appear.
//
// The engine's own writes surface here too. The extra rescan they
// trigger is redundant but harmless, and cheaper than teaching the
// watcher which events were self-inflicted.
type Watcher struct {
	engine   *Engine
	fsw      *fsnotify.Watcher
	debounce time.Duration
	logger   Logger

	mu        sync.Mutex
	lastEvent time.Time
	dirty     bool

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Watch starts a filesystem watcher over the catalog tree. A zero or
// negative debounce selects the default. The watcher stops when ctx is
// cancelled or Close is called.
func (e *Engine) Watch(ctx context.Context, debounce time.Duration) error {
	if e.watcher != nil {
		return fmt.Errorf("catalog: watcher already running")
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating filesystem watcher: %w", err)
	}

	w := &Watcher{
		engine:   e,
		fsw:      fsw,
		debounce: debounce,
		logger:   e.logger,
		done:     make(chan struct{}),
	}
	if err := w.addTree(e.root); err != nil {
		fsw.Close()
		return fmt.Errorf("watching catalog tree: %w", err)
	}

	e.watcher = w
	w.wg.Add(1)
	go w.run(ctx)
	return nil
}

// addTree registers the root and every directory beneath it. The tree
// is shallow (manufacturer, device and community levels), so a full
// walk is cheap.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// run is the event loop: events mark the tree dirty, a ticker fires the
// rescan once the tree has been quiet for the debounce interval.
func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
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
			w.logger.Warn("catalog watcher error", "error", err)

		case <-ticker.C:
			w.maybeRescan(ctx)
		}
	}
}

// handleEvent filters one fsnotify event and marks the tree dirty when
// it is relevant. Created directories join the watch so documents
// written into brand-new manufacturer or device directories are seen.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") {
		return
	}

	isDir := false
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			isDir = true
			if err := w.fsw.Add(event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
			}
		}
	}

	// Documents and directory-level changes matter; stray files do not.
	if !isDir && filepath.Ext(event.Name) != ".json" && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	w.logger.Debug("catalog tree changed", "op", event.Op.String(), "path", event.Name)

	w.mu.Lock()
	w.lastEvent = time.Now()
	w.dirty = true
	w.mu.Unlock()
}

// maybeRescan fires a cache clear plus rescan once the tree has been
// quiet for the debounce interval.
func (w *Watcher) maybeRescan(ctx context.Context) {
	w.mu.Lock()
	due := w.dirty && time.Since(w.lastEvent) >= w.debounce
	if due {
		w.dirty = false
	}
	w.mu.Unlock()
	if !due {
		return
	}

	w.logger.Info("external catalog change detected, rescanning")
	w.engine.cache.Clear()
	if err := w.engine.Rescan(ctx); err != nil {
		w.logger.Error("watcher rescan failed", "error", err)
	}
}

// Stop closes the watcher and waits for the event loop to exit. Safe to
// call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fsw.Close()
	})
	w.wg.Wait()
	return err
}
