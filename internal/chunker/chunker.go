// Package chunker splits heterogeneous source trees into semantically
// meaningful chunks (functions, classes, template/script sections) for
// retrieval. Each supported language uses its own extraction strategy:
// Python is parsed with a full Tree-sitter syntax tree, Java and JavaScript
// use brace-matching regex scans, and Vue single-file components are split
// by tag sections. Every non-empty file yields at least one chunk; when
// structural extraction finds nothing the whole file becomes one fallback
// chunk.
package chunker

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gcpark/coderag/pkg/types"
)

// extToLanguage maps supported file extensions to languages.
var extToLanguage = map[string]types.Language{
	".py":   types.LanguagePython,
	".java": types.LanguageJava,
	".vue":  types.LanguageVue,
	".js":   types.LanguageJavaScript,
}

// DefaultExtensions is the default supported extension set.
var DefaultExtensions = []string{".py", ".java", ".vue", ".js"}

// DefaultIgnoreDirs is the default set of directory names pruned during
// scanning: version control, dependency caches, build output and IDE
// metadata.
var DefaultIgnoreDirs = []string{
	"node_modules", ".git", "__pycache__", ".venv", "venv",
	"dist", "build", ".next", ".nuxt", "target", ".idea",
	".gradle", "out", "bin", ".settings",
}

// Config contains parser configuration. All fields are treated as fixed
// inputs owned by the configuration layer.
type Config struct {
	Root       string   // codebase root used for project-name derivation
	Extensions []string // supported extensions; defaults to DefaultExtensions
	IgnoreDirs []string // directory names to prune; defaults to DefaultIgnoreDirs
}

// Parser dispatches files to per-language structural extractors. It holds
// no mutable state between files, so parsing different files concurrently
// is safe.
type Parser struct {
	root       string
	extensions map[string]struct{}
	ignoreDirs map[string]struct{}
}

// New creates a parser.
func New(cfg Config) *Parser {
	exts := cfg.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	ignore := cfg.IgnoreDirs
	if len(ignore) == 0 {
		ignore = DefaultIgnoreDirs
	}

	p := &Parser{
		root:       cfg.Root,
		extensions: make(map[string]struct{}, len(exts)),
		ignoreDirs: make(map[string]struct{}, len(ignore)),
	}
	for _, ext := range exts {
		ext = strings.ToLower(ext)
		if _, ok := extToLanguage[ext]; ok {
			p.extensions[ext] = struct{}{}
		}
	}
	for _, dir := range ignore {
		p.ignoreDirs[dir] = struct{}{}
	}
	return p
}

// DetectLanguage returns the language for a file path, or "" if the
// extension is not supported.
func DetectLanguage(path string) types.Language {
	return extToLanguage[strings.ToLower(filepath.Ext(path))]
}

// SupportsFile reports whether the file's extension is in the parser's
// configured extension set.
func (p *Parser) SupportsFile(path string) bool {
	_, ok := p.extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// IgnoresDir reports whether a directory name is in the parser's configured
// ignore set.
func (p *Parser) IgnoresDir(name string) bool {
	_, ok := p.ignoreDirs[name]
	return ok
}

// ProjectName derives the project name from a file path: the first path
// component relative to the configured codebase root, or "unknown" when the
// file lies outside the root.
func (p *Parser) ProjectName(path string) string {
	if p.root == "" {
		return "unknown"
	}
	rel, err := filepath.Rel(p.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "unknown"
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "unknown"
}

// ParseFile reads a file and chunks it with the extractor matching its
// extension. Unreadable or non-UTF-8 files are logged and skipped; empty or
// whitespace-only files are skipped silently. ParseFile never fails for a
// data condition: every failure mode degrades to fewer or coarser chunks.
func (p *Parser) ParseFile(path string) []*types.Chunk {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("failed to read file", "path", path, "error", err)
		return nil
	}
	if !utf8.Valid(data) {
		slog.Warn("skipping non-UTF-8 file", "path", path)
		return nil
	}

	content := string(data)
	if strings.TrimSpace(content) == "" {
		return nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".py":
		return p.parsePython(path, content)
	case ".java":
		return p.parseJava(path, content)
	case ".vue":
		return p.parseVue(path, content)
	case ".js":
		return p.parseJavaScript(path, content)
	default:
		// Scanner already filters to supported extensions.
		return nil
	}
}

// fileStem returns the file name without its extension.
func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// totalLines counts lines the way splitting on newlines does, without a
// phantom trailing line for content ending in a newline.
func totalLines(content string) int {
	n := strings.Count(content, "\n") + 1
	if strings.HasSuffix(content, "\n") {
		n--
	}
	if n < 1 {
		n = 1
	}
	return n
}

// wholeFileChunk builds the fallback chunk spanning the entire file.
func (p *Parser) wholeFileChunk(path, content string, lang types.Language, chunkType types.ChunkType, metadata map[string]any) *types.Chunk {
	return &types.Chunk{
		Content:   content,
		FilePath:  path,
		Language:  lang,
		Project:   p.ProjectName(path),
		ChunkType: chunkType,
		Name:      fileStem(path),
		StartLine: 1,
		EndLine:   totalLines(content),
		Metadata:  metadata,
	}
}
