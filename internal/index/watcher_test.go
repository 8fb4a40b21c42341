package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"

	"github.com/gcpark/coderag/internal/chunker"
	"github.com/gcpark/coderag/internal/store"
)

func TestWatcherUsesConfiguredParserSets(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"src", "generated"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			t.Fatal(err)
		}
	}

	st, err := store.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	// Non-default extension and ignore sets: the watcher must honor these,
	// not the package defaults.
	parser := chunker.New(chunker.Config{
		Root:       root,
		Extensions: []string{".py"},
		IgnoreDirs: []string{"generated"},
	})
	ix := New(parser, &fakeEmbedder{}, st, Options{Workers: 1})

	w, err := NewWatcher(ix, WatcherConfig{Root: root})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.addWatchDirs(); err != nil {
		t.Fatal(err)
	}
	watched := make(map[string]bool)
	for _, p := range w.watcher.WatchList() {
		watched[p] = true
	}
	if !watched[filepath.Join(root, "src")] {
		t.Error("src directory not watched")
	}
	if watched[filepath.Join(root, "generated")] {
		t.Error("configured ignore directory must not be watched")
	}

	// Only files with configured extensions become pending.
	w.handleEvent(fsnotify.Event{Name: filepath.Join(root, "src", "a.js"), Op: fsnotify.Write})
	w.handleEvent(fsnotify.Event{Name: filepath.Join(root, "src", "b.py"), Op: fsnotify.Write})

	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	if len(w.pendingFiles) != 1 {
		t.Fatalf("pending files = %d, want 1", len(w.pendingFiles))
	}
	if _, ok := w.pendingFiles[filepath.Join(root, "src", "b.py")]; !ok {
		t.Error("file with configured extension not queued")
	}
}
