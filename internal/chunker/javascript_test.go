package chunker

import (
	"testing"

	"github.com/gcpark/coderag/pkg/types"
)

func TestParseJavaScriptDeclarations(t *testing.T) {
	src := "function helper(x) {\n  return x;\n}\n\nclass Widget extends Base {\n  render() {}\n}\n\nconst load = async (url) => {\n  return fetch(url);\n};\n"
	chunks := parseSource(t, "app.js", src)

	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}

	// Emission order is grouped by pattern: classes first, then named
	// functions, then arrow functions, regardless of source position.
	// The leading `^(\s*)` in the patterns absorbs a blank line preceding
	// a declaration, so those chunks start one line early. Accepted regex
	// imprecision.
	want := []struct {
		chunkType types.ChunkType
		name      string
		start     int
		end       int
	}{
		{types.ChunkTypeClass, "Widget", 4, 7},
		{types.ChunkTypeFunction, "helper", 1, 3},
		{types.ChunkTypeFunction, "load", 8, 11},
	}
	for i, w := range want {
		c := chunks[i]
		if c.ChunkType != w.chunkType || c.Name != w.name {
			t.Errorf("chunk %d = %s %q, want %s %q", i, c.ChunkType, c.Name, w.chunkType, w.name)
		}
		if c.StartLine != w.start || c.EndLine != w.end {
			t.Errorf("chunk %d spans lines %d-%d, want %d-%d", i, c.StartLine, c.EndLine, w.start, w.end)
		}
	}
}

func TestParseJavaScriptExported(t *testing.T) {
	src := "export class Api {\n}\nexport async function get(u) {\n  return u;\n}\nexport const post = (u) => {\n  return u;\n};\n"
	chunks := parseSource(t, "api.js", src)

	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	names := []string{chunks[0].Name, chunks[1].Name, chunks[2].Name}
	want := []string{"Api", "get", "post"}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names = %v, want %v", names, want)
			break
		}
	}
}

func TestParseJavaScriptNestedOverlap(t *testing.T) {
	// An inner named function matched independently produces its own
	// chunk; overlapping spans are accepted.
	src := "function outer() {\nfunction inner() {\n  return 1;\n}\nreturn inner;\n}\n"
	chunks := parseSource(t, "nested.js", src)

	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	outer, inner := chunks[0], chunks[1]
	if outer.Name != "outer" || inner.Name != "inner" {
		t.Fatalf("names = %q, %q, want outer, inner", outer.Name, inner.Name)
	}
	if inner.StartLine < outer.StartLine || inner.EndLine > outer.EndLine {
		t.Error("inner chunk must lie within the outer chunk's span")
	}
}

func TestParseJavaScriptFallback(t *testing.T) {
	src := "const x = 1;\nconsole.log(x);\n"
	chunks := parseSource(t, "loose.js", src)

	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	c := chunks[0]
	if c.ChunkType != types.ChunkTypeFile || c.Name != "loose" {
		t.Errorf("got %s %q, want file loose", c.ChunkType, c.Name)
	}
}
