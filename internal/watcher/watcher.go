// Package watcher watches a drop directory for commentary files and feeds
// them into ingestion. A dropped file is named after its source id, e.g.
// en-tafsir-ibn-kathir.zip or en-tafsir-ibn-kathir.json.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// IngestFunc ingests a dropped file for the source id derived from its name.
type IngestFunc func(ctx context.Context, sourceID, path string) error

// Watcher watches one drop directory and triggers ingestion on new files.
type Watcher struct {
	root       string
	extensions []string
	ingest     IngestFunc
	debounce   time.Duration
	watcher    *fsnotify.Watcher

	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
	logger      *zap.Logger // optional
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger for drop events.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce overrides the settle delay applied before a dropped file is
// picked up.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher creates a watcher over root. extensions filter which files are
// picked up (empty = all). ingest is invoked once per settled file.
func NewWatcher(root string, extensions []string, ingest IngestFunc, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		root:        root,
		extensions:  extensions,
		ingest:      ingest,
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. The drop directory is created when missing. Files
// already present are picked up once at startup. Runs until ctx is
// cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	if err := os.MkdirAll(w.root, 0755); err != nil {
		w.mu.Unlock()
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if err := watcher.Add(w.root); err != nil {
		_ = watcher.Close()
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.started = true
	w.mu.Unlock()

	if w.logger != nil {
		w.logger.Debug("watcher starting", zap.String("root", w.root), zap.Strings("extensions", w.extensions))
	}
	w.syncExisting(ctx)
	go w.run(ctx)
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil && w.logger != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	path := ev.Name
	switch ev.Op {
	case fsnotify.Create, fsnotify.Write:
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			return
		}
		if w.matchExtension(path) {
			w.debouncePickup(ctx, path)
		}
	case fsnotify.Remove, fsnotify.Rename:
		w.cancelDebounce(path)
	}
}

// syncExisting picks up files already sitting in the drop directory.
func (w *Watcher) syncExisting(ctx context.Context) {
	entries, err := os.ReadDir(w.root)
	if err != nil {
		if w.logger != nil {
			w.logger.Debug("watcher sync failed", zap.Error(err))
		}
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(w.root, e.Name())
		if w.matchExtension(path) {
			w.debouncePickup(ctx, path)
		}
	}
}

func (w *Watcher) matchExtension(path string) bool {
	if len(w.extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range w.extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

// debouncePickup schedules ingestion after the file has settled. A write
// during the delay restarts it, so partially copied archives are not read.
func (w *Watcher) debouncePickup(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
	}
	t := time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, path)
		w.mu.Unlock()
		w.pickup(ctx, path)
	})
	w.debounceMap[path] = t
}

func (w *Watcher) cancelDebounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
		delete(w.debounceMap, path)
	}
}

// pickup ingests a settled file and removes it on success.
func (w *Watcher) pickup(ctx context.Context, path string) {
	sourceID := sourceIDFromPath(path)
	if w.logger != nil {
		w.logger.Info("watcher picked up file", zap.String("path", path), zap.String("source", sourceID))
	}
	if err := w.ingest(ctx, sourceID, path); err != nil {
		if w.logger != nil {
			w.logger.Warn("watcher ingest failed", zap.String("path", path), zap.Error(err))
		}
		return
	}
	if err := os.Remove(path); err != nil && w.logger != nil {
		w.logger.Warn("watcher failed to remove ingested file", zap.String("path", path), zap.Error(err))
	}
}

// sourceIDFromPath maps a dropped file name to a source id by stripping the
// extension.
func sourceIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Stop stops the watcher and releases its resources.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		close(w.done)
		for path, t := range w.debounceMap {
			t.Stop()
			delete(w.debounceMap, path)
		}
		if w.watcher != nil {
			_ = w.watcher.Close()
			w.watcher = nil
		}
		w.started = false
	})
}
