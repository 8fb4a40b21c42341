// Package index drives indexing runs: scan, chunk, embed, store. It also
// contains the filesystem watcher for incremental reindexing.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/gcpark/coderag/internal/chunker"
	"github.com/gcpark/coderag/internal/embedder"
	"github.com/gcpark/coderag/internal/store"
	"github.com/gcpark/coderag/pkg/types"
)

// ProgressFunc receives progress updates during an indexing run.
type ProgressFunc func(types.IndexProgress)

// Options configures an Indexer.
type Options struct {
	Workers     int   // parallel chunking workers; 0 = NumCPU
	MaxFileSize int64 // bytes; 0 = no limit
	BatchSize   int   // chunks per embedding batch; 0 = provider default
	Progress    ProgressFunc
}

// Indexer runs the index pipeline against a store.
type Indexer struct {
	parser   *chunker.Parser
	embedder embedder.Provider
	store    *store.Store
	opts     Options
}

// New creates a new indexer.
func New(parser *chunker.Parser, emb embedder.Provider, st *store.Store, opts Options) *Indexer {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = emb.MaxBatchSize()
	}
	return &Indexer{
		parser:   parser,
		embedder: emb,
		store:    st,
		opts:     opts,
	}
}

// IndexPath indexes all supported files under root as one project. The
// project name defaults to the root directory's base name. An already
// indexed project is skipped unless force is set, in which case its
// existing chunks are removed first.
func (ix *Indexer) IndexPath(ctx context.Context, root, project string, force bool) (*types.IndexResult, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}
	if project == "" {
		project = filepath.Base(absRoot)
	}

	exists, err := ix.store.HasProject(project)
	if err != nil {
		return nil, fmt.Errorf("failed to check project: %w", err)
	}
	if exists && !force {
		slog.Info("project already indexed, skipping", "project", project)
		return &types.IndexResult{Project: project, Skipped: true}, nil
	}
	if exists {
		removed, err := ix.store.DeleteByProject(project)
		if err != nil {
			return nil, fmt.Errorf("failed to clear project: %w", err)
		}
		slog.Info("cleared existing project", "project", project, "chunks", removed)
	}

	ix.report(types.IndexProgress{Phase: "scanning"})
	files := ix.parser.Scan(absRoot)
	if len(files) == 0 {
		slog.Warn("no supported files found", "root", absRoot)
		return &types.IndexResult{Project: project}, nil
	}

	chunks, indexed, err := ix.chunkFiles(ctx, files, project)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return &types.IndexResult{Project: project, IndexedFiles: indexed}, nil
	}

	if err := ix.embedAndStore(ctx, chunks); err != nil {
		return nil, err
	}

	slog.Info("indexing complete", "project", project, "files", indexed, "chunks", len(chunks))
	return &types.IndexResult{
		Project:      project,
		IndexedFiles: indexed,
		Chunks:       len(chunks),
	}, nil
}

// chunkFiles parses files in a worker pool and returns all chunks with
// their project set. Files over the size limit are skipped.
func (ix *Indexer) chunkFiles(ctx context.Context, files []string, project string) ([]*types.Chunk, int, error) {
	type fileChunks struct {
		index  int
		chunks []*types.Chunk
	}

	jobs := make(chan int)
	results := make(chan fileChunks)

	var wg sync.WaitGroup
	for w := 0; w < ix.opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				path := files[i]
				if ix.opts.MaxFileSize > 0 {
					if info, err := os.Stat(path); err == nil && info.Size() > ix.opts.MaxFileSize {
						slog.Debug("skipping oversized file", "path", path, "size", info.Size())
						results <- fileChunks{index: i}
						continue
					}
				}
				results <- fileChunks{index: i, chunks: ix.parser.ParseFile(path)}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range files {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var all []*types.Chunk
	indexed := 0
	processed := 0
	for fc := range results {
		processed++
		if len(fc.chunks) > 0 {
			indexed++
			for _, c := range fc.chunks {
				c.Project = project
			}
			all = append(all, fc.chunks...)
		}
		ix.report(types.IndexProgress{
			Phase:          "chunking",
			TotalFiles:     len(files),
			ProcessedFiles: processed,
			CurrentFile:    files[fc.index],
		})
	}

	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	return all, indexed, nil
}

// embedAndStore embeds chunks in batches and writes each batch to the
// store, so a crash mid-run loses at most one batch.
func (ix *Indexer) embedAndStore(ctx context.Context, chunks []*types.Chunk) error {
	batchSize := ix.opts.BatchSize
	for i := 0; i < len(chunks); i += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := i + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[i:end]

		ix.report(types.IndexProgress{
			Phase:           "embedding",
			TotalChunks:     len(chunks),
			ProcessedChunks: i,
		})

		texts := make([]string, len(batch))
		for j, c := range batch {
			texts[j] = c.Content
		}

		vecs, err := ix.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding failed: %w", err)
		}
		if len(vecs) != len(batch) {
			return fmt.Errorf("embedding count mismatch: got %d, want %d", len(vecs), len(batch))
		}

		withEmbeddings := make([]*types.ChunkWithEmbedding, len(batch))
		for j, c := range batch {
			withEmbeddings[j] = &types.ChunkWithEmbedding{Chunk: c, Embedding: vecs[j]}
		}

		ix.report(types.IndexProgress{
			Phase:           "storing",
			TotalChunks:     len(chunks),
			ProcessedChunks: end,
		})

		if err := ix.store.StoreChunks(withEmbeddings); err != nil {
			return fmt.Errorf("failed to store chunks: %w", err)
		}
	}

	return nil
}

// ReindexFile replaces the stored chunks of one file. Used by the watcher.
func (ix *Indexer) ReindexFile(ctx context.Context, path, project string) error {
	if err := ix.store.DeleteByFile(path); err != nil {
		return fmt.Errorf("failed to remove stale chunks: %w", err)
	}

	chunks := ix.parser.ParseFile(path)
	if len(chunks) == 0 {
		return nil
	}
	if project != "" {
		for _, c := range chunks {
			c.Project = project
		}
	}

	return ix.embedAndStore(ctx, chunks)
}

func (ix *Indexer) report(p types.IndexProgress) {
	if ix.opts.Progress != nil {
		ix.opts.Progress(p)
	}
}
