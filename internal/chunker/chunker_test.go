package chunker

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/gcpark/coderag/pkg/types"
)

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		path string
		want types.Language
	}{
		{"a/b/main.py", types.LanguagePython},
		{"Main.java", types.LanguageJava},
		{"App.VUE", types.LanguageVue},
		{"index.js", types.LanguageJavaScript},
		{"main.go", ""},
		{"README", ""},
	}

	for _, tt := range tests {
		if got := DetectLanguage(tt.path); got != tt.want {
			t.Errorf("DetectLanguage(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestParserConfiguredSets(t *testing.T) {
	p := New(Config{
		Extensions: []string{".PY", ".js"},
		IgnoreDirs: []string{"generated"},
	})

	if !p.SupportsFile("a/b/main.py") || !p.SupportsFile("app.JS") {
		t.Error("configured extensions not matched case-insensitively")
	}
	if p.SupportsFile("Main.java") {
		t.Error(".java matched despite not being configured")
	}

	if !p.IgnoresDir("generated") {
		t.Error("configured ignore dir not matched")
	}
	if p.IgnoresDir("node_modules") {
		t.Error("default ignore dir matched despite custom config")
	}
}

func TestProjectName(t *testing.T) {
	root := t.TempDir()
	p := New(Config{Root: root})

	tests := []struct {
		path string
		want string
	}{
		{filepath.Join(root, "backend", "app", "main.py"), "backend"},
		{filepath.Join(root, "frontend", "App.vue"), "frontend"},
		{filepath.Join(root, "single.py"), "single.py"},
		{filepath.Join(os.TempDir(), "elsewhere", "x.py"), "unknown"},
	}

	for _, tt := range tests {
		if got := p.ProjectName(tt.path); got != tt.want {
			t.Errorf("ProjectName(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestProjectNameNoRoot(t *testing.T) {
	p := New(Config{})
	if got := p.ProjectName("/some/path/x.py"); got != "unknown" {
		t.Errorf("ProjectName = %q, want unknown", got)
	}
}

func TestParseFileEmpty(t *testing.T) {
	for _, content := range []string{"", "   \n\t\n"} {
		chunks := parseSource(t, "empty.py", content)
		if len(chunks) != 0 {
			t.Errorf("parse of %q returned %d chunks, want 0", content, len(chunks))
		}
	}
}

func TestParseFileMissing(t *testing.T) {
	p := New(Config{Root: t.TempDir()})
	if chunks := p.ParseFile(filepath.Join(t.TempDir(), "gone.py")); len(chunks) != 0 {
		t.Errorf("got %d chunks for missing file, want 0", len(chunks))
	}
}

func TestParseFileNonUTF8(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "bin.py")
	if err := os.WriteFile(path, []byte{0xff, 0xfe, 0x00, 0x80}, 0644); err != nil {
		t.Fatal(err)
	}

	p := New(Config{Root: root})
	if chunks := p.ParseFile(path); len(chunks) != 0 {
		t.Errorf("got %d chunks for non-UTF-8 file, want 0", len(chunks))
	}
}

func TestParseFileIdempotent(t *testing.T) {
	src := "class Foo:\n    def bar(self):\n        pass\n\ndef baz():\n    pass\n"

	root := t.TempDir()
	path := filepath.Join(root, "proj", "sample.py")
	writeFile(t, path, src)

	p := New(Config{Root: root})
	first := p.ParseFile(path)
	second := p.ParseFile(path)

	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID() != second[i].ID() {
			t.Errorf("chunk %d id differs: %q vs %q", i, first[i].ID(), second[i].ID())
		}
		if !reflect.DeepEqual(first[i], second[i]) {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

// Line invariants: for every language, every chunk's lines lie within
// [1, total_lines] and the content is the literal source slice.
func TestChunkLineInvariants(t *testing.T) {
	sources := map[string]string{
		"a.py":    "class A:\n    pass\n\ndef f():\n    return 1\n",
		"B.java":  "public class B {\n  int x;\n}\n",
		"c.js":    "function c() {\n  return 2;\n}\n",
		"D.vue":   "<template>\n<div/>\n</template>\n<script>\nexport default {}\n</script>\n",
		"only.py": "x = 1\n",
	}

	for name, src := range sources {
		t.Run(name, func(t *testing.T) {
			chunks := parseSource(t, name, src)
			if len(chunks) == 0 {
				t.Fatal("expected at least one chunk")
			}

			total := totalLines(src)
			for _, c := range chunks {
				if c.StartLine < 1 || c.EndLine > total || c.StartLine > c.EndLine {
					t.Errorf("chunk %q lines %d-%d outside [1,%d]", c.Name, c.StartLine, c.EndLine, total)
				}
				if !strings.Contains(src, c.Content) {
					t.Errorf("chunk %q content is not a literal source slice", c.Name)
				}
			}
		})
	}
}
