// Package rag ties retrieval and generation together: embed the question,
// fetch the closest chunks, and answer from the assembled context.
package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/gcpark/coderag/internal/embedder"
	"github.com/gcpark/coderag/internal/llm"
	"github.com/gcpark/coderag/internal/store"
	"github.com/gcpark/coderag/pkg/types"
)

const promptTemplate = `You are a senior developer assistant answering questions about a codebase.
Use only the code context below to answer. If the context does not contain
the answer, say so instead of guessing. Reference files and line numbers
where relevant.

Code context:
%s

Question: %s

Answer:`

// Source describes where a retrieved chunk came from, without the chunk
// body. Returned alongside answers so callers can cite locations cheaply.
type Source struct {
	FilePath  string  `json:"filepath"`
	Project   string  `json:"project"`
	Language  string  `json:"language"`
	ChunkType string  `json:"chunk_type"`
	Name      string  `json:"name"`
	StartLine int     `json:"start_line"`
	EndLine   int     `json:"end_line"`
	Distance  float64 `json:"distance"`
}

// Answer is the result of a RAG query.
type Answer struct {
	Text    string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Chain is the retrieval-augmented generation pipeline.
type Chain struct {
	embedder embedder.Provider
	store    *store.Store
	llm      *llm.Client
	topK     int
}

// New creates a new RAG chain.
func New(emb embedder.Provider, st *store.Store, client *llm.Client, topK int) *Chain {
	if topK <= 0 {
		topK = 5
	}
	return &Chain{
		embedder: emb,
		store:    st,
		llm:      client,
		topK:     topK,
	}
}

// Query answers a question about the indexed code.
func (c *Chain) Query(ctx context.Context, question string, filters *types.SearchFilters) (*Answer, error) {
	results, err := c.retrieve(ctx, question, c.topK, filters)
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		return &Answer{Text: "No indexed code matched the question. Index a codebase first."}, nil
	}

	prompt := fmt.Sprintf(promptTemplate, formatContext(results), question)
	text, err := c.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("answer generation failed: %w", err)
	}

	return &Answer{Text: text, Sources: toSources(results)}, nil
}

// QueryStream answers a question, delivering the answer incrementally via
// fn. The sources are returned after the stream completes.
func (c *Chain) QueryStream(ctx context.Context, question string, filters *types.SearchFilters, fn func(delta string) error) ([]Source, error) {
	results, err := c.retrieve(ctx, question, c.topK, filters)
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		if err := fn("No indexed code matched the question. Index a codebase first."); err != nil {
			return nil, err
		}
		return nil, nil
	}

	prompt := fmt.Sprintf(promptTemplate, formatContext(results), question)
	if err := c.llm.Stream(ctx, prompt, fn); err != nil {
		return nil, fmt.Errorf("answer generation failed: %w", err)
	}

	return toSources(results), nil
}

// SearchOnly retrieves matching chunks without invoking the LLM.
func (c *Chain) SearchOnly(ctx context.Context, query string, topK int, filters *types.SearchFilters) ([]*types.SearchResult, error) {
	if topK <= 0 {
		topK = c.topK
	}
	return c.retrieve(ctx, query, topK, filters)
}

func (c *Chain) retrieve(ctx context.Context, query string, topK int, filters *types.SearchFilters) ([]*types.SearchResult, error) {
	vecs, err := c.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("query embedding failed: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embedding provider returned no vector")
	}

	results, err := c.store.Search(ctx, vecs[0], topK, filters)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}
	return results, nil
}

// formatContext renders retrieved chunks as numbered source blocks for the
// prompt.
func formatContext(results []*types.SearchResult) string {
	var b strings.Builder
	for i, r := range results {
		c := r.Chunk
		fmt.Fprintf(&b, "[%d] %s (%s %s, lines %d-%d)\n", i+1, c.FilePath, c.ChunkType, c.Name, c.StartLine, c.EndLine)
		b.WriteString(c.Content)
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func toSources(results []*types.SearchResult) []Source {
	sources := make([]Source, len(results))
	for i, r := range results {
		c := r.Chunk
		sources[i] = Source{
			FilePath:  c.FilePath,
			Project:   c.Project,
			Language:  string(c.Language),
			ChunkType: string(c.ChunkType),
			Name:      c.Name,
			StartLine: c.StartLine,
			EndLine:   c.EndLine,
			Distance:  r.Distance,
		}
	}
	return sources
}
