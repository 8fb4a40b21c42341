package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches a project tree and keeps its index up to date: changed
// files are rechunked and re-embedded, removed files are dropped from the
// store. Events are debounced so editors that write in bursts trigger one
// reindex per file.
type Watcher struct {
	indexer *Indexer
	root    string
	project string

	watcher *fsnotify.Watcher

	pendingMu    sync.Mutex
	pendingFiles map[string]time.Time
	debounceTime time.Duration
}

// WatcherConfig contains watcher configuration.
type WatcherConfig struct {
	Root         string
	Project      string        // defaults to base name of Root
	DebounceTime time.Duration // Default: 500ms
}

// NewWatcher creates a new file watcher driving the given indexer.
func NewWatcher(ix *Indexer, cfg WatcherConfig) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		fsw.Close()
		return nil, err
	}

	project := cfg.Project
	if project == "" {
		project = filepath.Base(root)
	}
	debounceTime := cfg.DebounceTime
	if debounceTime == 0 {
		debounceTime = 500 * time.Millisecond
	}

	return &Watcher{
		indexer:      ix,
		root:         root,
		project:      project,
		watcher:      fsw,
		pendingFiles: make(map[string]time.Time),
		debounceTime: debounceTime,
	}, nil
}

// Watch starts watching for file changes. It blocks until the context is
// cancelled.
func (w *Watcher) Watch(ctx context.Context) error {
	if err := w.addWatchDirs(); err != nil {
		return err
	}

	slog.Info("watching for file changes", "root", w.root, "project", w.project)

	go w.processDebounced(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping watcher")
			return w.watcher.Close()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", "error", err)
		}
	}
}

// addWatchDirs recursively adds directories to watch, pruning the same
// directories the indexer's parser is configured to ignore.
func (w *Watcher) addWatchDirs() error {
	return filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}

		if path != w.root && w.indexer.parser.IgnoresDir(d.Name()) {
			return filepath.SkipDir
		}

		if err := w.watcher.Add(path); err != nil {
			slog.Warn("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

// handleEvent records a relevant event for debounced processing. New
// directories are added to the watch set immediately so files created
// inside them are seen.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	path := event.Name

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := w.watcher.Add(path); err != nil {
				slog.Warn("failed to watch new directory", "path", path, "error", err)
			}
			return
		}
	}

	if !w.indexer.parser.SupportsFile(path) {
		return
	}

	w.pendingMu.Lock()
	w.pendingFiles[path] = time.Now()
	w.pendingMu.Unlock()

	slog.Debug("file changed", "path", path, "op", event.Op.String())
}

// processDebounced processes pending files after the debounce period.
func (w *Watcher) processDebounced(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processPendingFiles(ctx)
		}
	}
}

// processPendingFiles reindexes files that have been stable for the
// debounce period.
func (w *Watcher) processPendingFiles(ctx context.Context) {
	w.pendingMu.Lock()
	now := time.Now()
	var toProcess []string
	for path, changedAt := range w.pendingFiles {
		if now.Sub(changedAt) >= w.debounceTime {
			toProcess = append(toProcess, path)
			delete(w.pendingFiles, path)
		}
	}
	w.pendingMu.Unlock()

	if len(toProcess) == 0 {
		return
	}

	slog.Info("re-indexing changed files", "count", len(toProcess))

	for _, path := range toProcess {
		if ctx.Err() != nil {
			return
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := w.indexer.store.DeleteByFile(path); err != nil {
				slog.Warn("failed to remove deleted file from index", "file", path, "error", err)
				continue
			}
			slog.Info("removed deleted file from index", "file", path)
			continue
		}

		if err := w.indexer.ReindexFile(ctx, path, w.project); err != nil {
			slog.Warn("failed to reindex file", "file", path, "error", err)
			continue
		}
		slog.Info("reindexed file", "file", path)
	}
}

// Close closes the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
