package chunker

import (
	"testing"

	"github.com/gcpark/coderag/pkg/types"
)

func TestParseJavaClass(t *testing.T) {
	src := "public class Foo {\n  void bar() {}\n}\n"
	chunks := parseSource(t, "Foo.java", src)

	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	c := chunks[0]
	if c.ChunkType != types.ChunkTypeClass || c.Name != "Foo" {
		t.Errorf("got %s %q, want class Foo", c.ChunkType, c.Name)
	}
	if c.StartLine != 1 || c.EndLine != 3 {
		t.Errorf("spans lines %d-%d, want 1-3", c.StartLine, c.EndLine)
	}
	if c.Metadata["modifiers"] != "public" {
		t.Errorf("modifiers = %v, want public", c.Metadata["modifiers"])
	}
}

func TestParseJavaDeclKinds(t *testing.T) {
	src := "interface Shape {\n}\n\nenum Color {\n  RED\n}\n\nrecord Point(int x, int y) {\n}\n"
	chunks := parseSource(t, "Types.java", src)

	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}

	want := []struct {
		chunkType types.ChunkType
		name      string
	}{
		{types.ChunkTypeInterface, "Shape"},
		{types.ChunkTypeEnum, "Color"},
		{types.ChunkTypeRecord, "Point"},
	}
	for i, w := range want {
		if chunks[i].ChunkType != w.chunkType || chunks[i].Name != w.name {
			t.Errorf("chunk %d = %s %q, want %s %q", i, chunks[i].ChunkType, chunks[i].Name, w.chunkType, w.name)
		}
	}
}

func TestParseJavaBraceInString(t *testing.T) {
	src := "class Msg {\n  String s = \"}\";\n  int x = 1;\n}\n"
	chunks := parseSource(t, "Msg.java", src)

	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].EndLine != 4 {
		t.Errorf("end line = %d, want 4 (string-literal brace must not close the class)", chunks[0].EndLine)
	}
}

func TestParseJavaUnclosedBrace(t *testing.T) {
	// Unbalanced braces degrade to a chunk extending to end of file.
	src := "class Open {\n  void f() {\n"
	chunks := parseSource(t, "Open.java", src)

	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].EndLine != 2 {
		t.Errorf("end line = %d, want 2", chunks[0].EndLine)
	}
}

func TestParseJavaNoDeclarationsFallback(t *testing.T) {
	src := "// only a comment\nimport java.util.List;\n"
	chunks := parseSource(t, "Nothing.java", src)

	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	c := chunks[0]
	if c.ChunkType != types.ChunkTypeFile || c.Name != "Nothing" {
		t.Errorf("got %s %q, want file Nothing", c.ChunkType, c.Name)
	}
	if c.StartLine != 1 || c.EndLine != 2 {
		t.Errorf("fallback spans lines %d-%d, want 1-2", c.StartLine, c.EndLine)
	}
}

func TestParseJavaMethodsNotExtracted(t *testing.T) {
	src := "public class Svc {\n  public void run() {\n    work();\n  }\n}\n"
	chunks := parseSource(t, "Svc.java", src)

	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1 (only the type declaration)", len(chunks))
	}
	if chunks[0].Name != "Svc" {
		t.Errorf("name = %q, want Svc", chunks[0].Name)
	}
}
