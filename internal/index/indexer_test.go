package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gcpark/coderag/internal/chunker"
	"github.com/gcpark/coderag/internal/store"
)

// fakeEmbedder returns a fixed-dimension vector per text without any
// network calls.
type fakeEmbedder struct {
	calls int
}

func (f *fakeEmbedder) Name() string { return "fake" }

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		// Deterministic per-text vector so identical content embeds
		// identically.
		v := float32(len(text)%7) + 1
		vecs[i] = []float32{v, 1, 0}
	}
	return vecs, nil
}

func (f *fakeEmbedder) Dimensions() int                     { return 3 }
func (f *fakeEmbedder) MaxBatchSize() int                   { return 8 }
func (f *fakeEmbedder) Available(ctx context.Context) error { return nil }
func (f *fakeEmbedder) Close() error                        { return nil }

func newTestIndexer(t *testing.T, root string) (*Indexer, *store.Store) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	parser := chunker.New(chunker.Config{Root: root})
	ix := New(parser, &fakeEmbedder{}, st, Options{Workers: 2})
	return ix, st
}

func writeTree(t *testing.T, root string) {
	t.Helper()
	files := map[string]string{
		"main.py":               "def main():\n    pass\n",
		"models.py":             "class User:\n    pass\n\nclass Group:\n    pass\n",
		"web/app.js":            "function render() {\n  return 1;\n}\n",
		"node_modules/dep/x.js": "function hidden() {\n}\n",
		"docs/readme.txt":       "not source\n",
	}
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestIndexPath(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root)

	ix, st := newTestIndexer(t, root)

	result, err := ix.IndexPath(context.Background(), root, "", false)
	if err != nil {
		t.Fatalf("IndexPath failed: %v", err)
	}

	if result.Project != filepath.Base(root) {
		t.Errorf("project = %q, want %q", result.Project, filepath.Base(root))
	}
	if result.IndexedFiles != 3 {
		t.Errorf("indexed files = %d, want 3 (ignored dirs and unsupported files excluded)", result.IndexedFiles)
	}
	// main + User + Group + render
	if result.Chunks != 4 {
		t.Errorf("chunks = %d, want 4", result.Chunks)
	}

	count, err := st.CountByProject(result.Project)
	if err != nil {
		t.Fatal(err)
	}
	if count != result.Chunks {
		t.Errorf("stored %d chunks, result says %d", count, result.Chunks)
	}
}

func TestIndexPathSkipsIndexedProject(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root)

	ix, _ := newTestIndexer(t, root)

	if _, err := ix.IndexPath(context.Background(), root, "demo", false); err != nil {
		t.Fatal(err)
	}

	result, err := ix.IndexPath(context.Background(), root, "demo", false)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Skipped {
		t.Error("second run without force must be skipped")
	}
}

func TestIndexPathForceReindexes(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root)

	ix, st := newTestIndexer(t, root)

	if _, err := ix.IndexPath(context.Background(), root, "demo", false); err != nil {
		t.Fatal(err)
	}

	// Remove a file, force reindex: the stale chunks must be gone.
	if err := os.Remove(filepath.Join(root, "models.py")); err != nil {
		t.Fatal(err)
	}

	result, err := ix.IndexPath(context.Background(), root, "demo", true)
	if err != nil {
		t.Fatal(err)
	}
	if result.Skipped {
		t.Fatal("forced run must not be skipped")
	}
	if result.Chunks != 2 {
		t.Errorf("chunks = %d after removal, want 2", result.Chunks)
	}

	count, err := st.CountByProject("demo")
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("stored chunks = %d, want 2", count)
	}
}

func TestIndexPathProjectOverride(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root)

	ix, st := newTestIndexer(t, root)

	result, err := ix.IndexPath(context.Background(), root, "custom-name", false)
	if err != nil {
		t.Fatal(err)
	}
	if result.Project != "custom-name" {
		t.Errorf("project = %q, want custom-name", result.Project)
	}

	has, err := st.HasProject("custom-name")
	if err != nil {
		t.Fatal(err)
	}
	if !has {
		t.Error("chunks not stored under overridden project name")
	}
}

func TestReindexFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "mod.py")
	if err := os.WriteFile(path, []byte("def a():\n    pass\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ix, st := newTestIndexer(t, root)
	ctx := context.Background()

	if err := ix.ReindexFile(ctx, path, "demo"); err != nil {
		t.Fatal(err)
	}
	count, _ := st.CountByProject("demo")
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}

	// Grow the file, reindex, old chunks replaced.
	if err := os.WriteFile(path, []byte("def a():\n    pass\n\ndef b():\n    pass\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := ix.ReindexFile(ctx, path, "demo"); err != nil {
		t.Fatal(err)
	}
	count, _ = st.CountByProject("demo")
	if count != 2 {
		t.Errorf("count = %d after reindex, want 2", count)
	}
}
