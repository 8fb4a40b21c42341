// Package types contains shared data types used across the coderag project.
package types

import (
	"fmt"
)

// Language identifies a supported source language. It is derived solely
// from the file extension.
type Language string

const (
	LanguagePython     Language = "python"
	LanguageJava       Language = "java"
	LanguageVue        Language = "vue"
	LanguageJavaScript Language = "javascript"
)

// ChunkType represents the structural kind of a code chunk. The valid set
// is language-dependent: Java contributes interface/enum/record, Vue
// contributes script/template/component, and "file" marks the whole-file
// fallback for the other languages.
type ChunkType string

const (
	ChunkTypeFunction  ChunkType = "function"
	ChunkTypeClass     ChunkType = "class"
	ChunkTypeInterface ChunkType = "interface"
	ChunkTypeEnum      ChunkType = "enum"
	ChunkTypeRecord    ChunkType = "record"
	ChunkTypeMethod    ChunkType = "method"
	ChunkTypeComponent ChunkType = "component"
	ChunkTypeScript    ChunkType = "script"
	ChunkTypeTemplate  ChunkType = "template"
	ChunkTypeFile      ChunkType = "file"
)

// Chunk is the unit of retrieval: a contiguous slice of a source file with
// structural metadata. Content is never reformatted; it is the literal
// substring between the chunk's boundaries.
type Chunk struct {
	Content   string         `json:"content"`
	FilePath  string         `json:"filepath"`
	Language  Language       `json:"language"`
	Project   string         `json:"project"`
	ChunkType ChunkType      `json:"chunk_type"`
	Name      string         `json:"name"`
	StartLine int            `json:"start_line"` // 1-based, inclusive
	EndLine   int            `json:"end_line"`   // 1-based, inclusive
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ID returns the chunk's stable identifier, used as the primary key in the
// vector store. Unique within a project as long as no two chunks share
// path, name and start line, which the extractors guarantee by
// construction.
func (c *Chunk) ID() string {
	return fmt.Sprintf("%s::%s::%d", c.FilePath, c.Name, c.StartLine)
}

// ToRecord flattens the chunk, including every metadata entry, into a
// single flat key/value map. Callers that store the content separately as
// the indexed document body strip the "content" key themselves.
func (c *Chunk) ToRecord() map[string]any {
	record := map[string]any{
		"content":    c.Content,
		"filepath":   c.FilePath,
		"language":   string(c.Language),
		"project":    c.Project,
		"chunk_type": string(c.ChunkType),
		"name":       c.Name,
		"start_line": c.StartLine,
		"end_line":   c.EndLine,
	}
	for k, v := range c.Metadata {
		record[k] = v
	}
	return record
}

// ChunkWithEmbedding pairs a chunk with its vector embedding.
type ChunkWithEmbedding struct {
	Chunk     *Chunk
	Embedding []float32
}

// SearchFilters restricts search results by chunk attributes.
type SearchFilters struct {
	Projects   []string
	Languages  []string
	ChunkTypes []string
}

// SearchResult is a single vector search hit. Distance is the cosine
// distance reported by the store; smaller means more similar.
type SearchResult struct {
	Chunk    *Chunk  `json:"chunk"`
	Distance float64 `json:"distance"`
}

// ProjectStats aggregates index counts for one project.
type ProjectStats struct {
	Project   string         `json:"project"`
	Chunks    int            `json:"chunks"`
	Files     int            `json:"files"`
	Languages map[string]int `json:"languages"`
}

// StoreStats contains statistics about the whole index.
type StoreStats struct {
	TotalChunks  int             `json:"total_chunks"`
	IndexedFiles int             `json:"indexed_files"`
	DBSizeBytes  int64           `json:"db_size_bytes"`
	Projects     []*ProjectStats `json:"projects"`
}

// IndexProgress represents the current state of an indexing run.
type IndexProgress struct {
	Phase           string // "scanning", "chunking", "embedding", "storing"
	TotalFiles      int
	ProcessedFiles  int
	TotalChunks     int
	ProcessedChunks int
	CurrentFile     string
}

// IndexResult summarizes a completed (or skipped) indexing run.
type IndexResult struct {
	Project      string `json:"project"`
	IndexedFiles int    `json:"indexed_files"`
	Chunks       int    `json:"chunks"`
	Skipped      bool   `json:"skipped"`
}
