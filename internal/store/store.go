// Package store implements the chunk index on sqlite with sqlite-vec for
// vector similarity search.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/gcpark/coderag/pkg/types"
)

// Ensure sqlite-vec Auto() is called exactly once before any db connection
var vecAutoOnce sync.Once

// Store persists chunks and their embeddings in a single sqlite database.
type Store struct {
	db         *sql.DB
	path       string
	dimensions int
}

// Open opens (creating if necessary) the store at the given path.
func Open(path string) (*Store, error) {
	// Register sqlite-vec extension before opening any database connection.
	// This must be called once before sql.Open() to ensure vec_* functions are available.
	vecAutoOnce.Do(func() {
		sqlite_vec.Auto()
	})

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// WAL mode for concurrent reads, busy_timeout to wait for locks instead
	// of failing immediately.
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("SELECT vec_version()"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec extension not available: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	// Pick up the dimensions of an existing vector table so embeddings
	// stored in previous sessions survive a reopen.
	dims, err := s.detectVectorDimensions()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to inspect vector table: %w", err)
	}
	s.dimensions = dims

	return s, nil
}

// vecDimPattern extracts the dimension from the vec0 table's DDL, e.g.
// "embedding float[768]".
var vecDimPattern = regexp.MustCompile(`float\[(\d+)\]`)

// detectVectorDimensions returns the dimensions of the existing vector
// table, or 0 if the table has not been created yet.
func (s *Store) detectVectorDimensions() (int, error) {
	var ddl sql.NullString
	err := s.db.QueryRow(`
		SELECT sql FROM sqlite_master
		WHERE type='table' AND name='chunk_embeddings'
	`).Scan(&ddl)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	m := vecDimPattern.FindStringSubmatch(ddl.String)
	if m == nil {
		return 0, nil
	}
	return strconv.Atoi(m[1])
}

// createSchema creates all necessary tables.
func (s *Store) createSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			file_path TEXT NOT NULL,
			project TEXT NOT NULL,
			language TEXT NOT NULL,
			chunk_type TEXT NOT NULL,
			name TEXT,
			start_line INTEGER NOT NULL,
			end_line INTEGER NOT NULL,
			content TEXT NOT NULL,
			metadata TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_chunks_file_path ON chunks(file_path)`)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_chunks_project ON chunks(project)`)
	if err != nil {
		return err
	}

	return nil
}

// createVectorTable creates the vector table with the specified dimensions.
// The table is created lazily on first store because the dimensionality is
// only known once the embedding provider has produced a vector.
func (s *Store) createVectorTable(dimensions int) error {
	if s.dimensions == dimensions {
		return nil // Already created
	}

	// A different dimensionality means a different embedding model; the
	// stored vectors are unusable with it, so the table is rebuilt.
	if s.dimensions != 0 {
		slog.Warn("embedding dimensions changed, rebuilding vector table",
			"old", s.dimensions, "new", dimensions)
		if _, err := s.db.Exec("DROP TABLE IF EXISTS chunk_embeddings"); err != nil {
			return fmt.Errorf("failed to drop vector table: %w", err)
		}
	}

	s.dimensions = dimensions

	_, err := s.db.Exec(fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS chunk_embeddings USING vec0(
			chunk_id TEXT PRIMARY KEY,
			embedding float[%d]
		)
	`, dimensions))
	if err != nil {
		return fmt.Errorf("failed to create vector table: %w", err)
	}

	return nil
}

// Close releases resources and closes connections.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// StoreChunks stores chunks with their embeddings in one transaction.
func (s *Store) StoreChunks(chunks []*types.ChunkWithEmbedding) error {
	if len(chunks) == 0 {
		return nil
	}

	if len(chunks[0].Embedding) > 0 {
		if err := s.createVectorTable(len(chunks[0].Embedding)); err != nil {
			return err
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	chunkStmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO chunks
		(id, file_path, project, language, chunk_type, name, start_line, end_line, content, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer chunkStmt.Close()

	// vec0 virtual tables reject INSERT OR REPLACE, so re-stored chunks
	// delete their previous embedding row first.
	deleteEmbeddingStmt, err := tx.Prepare(`
		DELETE FROM chunk_embeddings WHERE chunk_id = ?
	`)
	if err != nil {
		return err
	}
	defer deleteEmbeddingStmt.Close()

	embeddingStmt, err := tx.Prepare(`
		INSERT INTO chunk_embeddings (chunk_id, embedding)
		VALUES (?, ?)
	`)
	if err != nil {
		return err
	}
	defer embeddingStmt.Close()

	for _, cwe := range chunks {
		c := cwe.Chunk

		metadata, err := marshalMetadata(c.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata for %s: %w", c.ID(), err)
		}

		_, err = chunkStmt.Exec(
			c.ID(), c.FilePath, c.Project, string(c.Language),
			string(c.ChunkType), c.Name, c.StartLine, c.EndLine,
			c.Content, metadata,
		)
		if err != nil {
			return fmt.Errorf("failed to store chunk %s: %w", c.ID(), err)
		}

		if len(cwe.Embedding) > 0 {
			if _, err := deleteEmbeddingStmt.Exec(c.ID()); err != nil {
				return fmt.Errorf("failed to replace embedding for %s: %w", c.ID(), err)
			}
			_, err := embeddingStmt.Exec(c.ID(), floatsToBytes(cwe.Embedding))
			if err != nil {
				return fmt.Errorf("failed to store embedding for %s: %w", c.ID(), err)
			}
		}
	}

	return tx.Commit()
}

// Search performs vector similarity search over stored chunks, smallest
// cosine distance first.
func (s *Store) Search(ctx context.Context, queryVec []float32, limit int, filters *types.SearchFilters) ([]*types.SearchResult, error) {
	if len(queryVec) == 0 {
		return nil, errors.New("query vector is required")
	}

	query := `
		SELECT
			ce.chunk_id,
			vec_distance_cosine(ce.embedding, ?) as distance,
			c.file_path, c.project, c.language, c.chunk_type,
			c.name, c.start_line, c.end_line, c.content, c.metadata
		FROM chunk_embeddings ce
		JOIN chunks c ON ce.chunk_id = c.id
	`
	args := []any{floatsToBytes(queryVec)}

	var whereClauses []string
	if filters != nil {
		addIn := func(column string, values []string) {
			if len(values) == 0 {
				return
			}
			placeholders := make([]string, len(values))
			for i, v := range values {
				placeholders[i] = "?"
				args = append(args, v)
			}
			whereClauses = append(whereClauses, column+" IN ("+strings.Join(placeholders, ",")+")")
		}
		addIn("c.project", filters.Projects)
		addIn("c.language", filters.Languages)
		addIn("c.chunk_type", filters.ChunkTypes)
	}

	if len(whereClauses) > 0 {
		query += " WHERE " + strings.Join(whereClauses, " AND ")
	}

	query += " ORDER BY distance ASC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer rows.Close()

	var results []*types.SearchResult
	for rows.Next() {
		var (
			chunkID   string
			distance  float64
			chunk     types.Chunk
			language  string
			chunkType string
			name      sql.NullString
			metadata  sql.NullString
		)

		err := rows.Scan(
			&chunkID, &distance,
			&chunk.FilePath, &chunk.Project, &language, &chunkType,
			&name, &chunk.StartLine, &chunk.EndLine, &chunk.Content, &metadata,
		)
		if err != nil {
			return nil, err
		}

		chunk.Language = types.Language(language)
		chunk.ChunkType = types.ChunkType(chunkType)
		chunk.Name = name.String
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &chunk.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode metadata for %s: %w", chunkID, err)
			}
		}

		results = append(results, &types.SearchResult{
			Chunk:    &chunk,
			Distance: distance,
		})
	}

	return results, rows.Err()
}

// DeleteByFile removes all chunks and embeddings for a file.
func (s *Store) DeleteByFile(filePath string) error {
	return s.deleteWhere("file_path = ?", filePath)
}

// DeleteByProject removes all chunks and embeddings for a project. Returns
// the number of chunks removed.
func (s *Store) DeleteByProject(project string) (int, error) {
	count, err := s.CountByProject(project)
	if err != nil {
		return 0, err
	}
	if err := s.deleteWhere("project = ?", project); err != nil {
		return 0, err
	}
	return count, nil
}

// deleteWhere removes chunks matching a single-argument predicate, cleaning
// up their embeddings first. The vec0 table has no foreign keys, so the IDs
// are collected and deleted explicitly.
func (s *Store) deleteWhere(predicate string, arg any) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rows, err := tx.Query("SELECT id FROM chunks WHERE "+predicate, arg)
	if err != nil {
		return err
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	rows.Close()

	if s.vectorTableExists() {
		for _, id := range ids {
			if _, err := tx.Exec("DELETE FROM chunk_embeddings WHERE chunk_id = ?", id); err != nil {
				return err
			}
		}
	}

	if _, err := tx.Exec("DELETE FROM chunks WHERE "+predicate, arg); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) vectorTableExists() bool {
	var exists int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='table' AND name='chunk_embeddings'
	`).Scan(&exists)
	return err == nil && exists > 0
}

// HasProject reports whether any chunks exist for the given project.
func (s *Store) HasProject(project string) (bool, error) {
	count, err := s.CountByProject(project)
	return count > 0, err
}

// CountByProject returns the number of chunks stored for a project.
func (s *Store) CountByProject(project string) (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM chunks WHERE project = ?", project).Scan(&count)
	return count, err
}

// Count returns the total number of chunks stored.
func (s *Store) Count() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM chunks").Scan(&count)
	return count, err
}

// ProjectStats returns per-project chunk and file counts with a language
// breakdown, ordered by project name.
func (s *Store) ProjectStats() ([]*types.ProjectStats, error) {
	rows, err := s.db.Query(`
		SELECT project, COUNT(*), COUNT(DISTINCT file_path)
		FROM chunks GROUP BY project ORDER BY project
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []*types.ProjectStats
	byName := make(map[string]*types.ProjectStats)
	for rows.Next() {
		ps := &types.ProjectStats{Languages: make(map[string]int)}
		if err := rows.Scan(&ps.Project, &ps.Chunks, &ps.Files); err != nil {
			return nil, err
		}
		stats = append(stats, ps)
		byName[ps.Project] = ps
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	langRows, err := s.db.Query(`
		SELECT project, language, COUNT(*)
		FROM chunks GROUP BY project, language
	`)
	if err != nil {
		return nil, err
	}
	defer langRows.Close()

	for langRows.Next() {
		var project, language string
		var count int
		if err := langRows.Scan(&project, &language, &count); err != nil {
			return nil, err
		}
		if ps, ok := byName[project]; ok {
			ps.Languages[language] = count
		}
	}

	return stats, langRows.Err()
}

// Stats returns store-wide statistics.
func (s *Store) Stats() (*types.StoreStats, error) {
	stats := &types.StoreStats{}

	row := s.db.QueryRow("SELECT COUNT(*), COUNT(DISTINCT file_path) FROM chunks")
	if err := row.Scan(&stats.TotalChunks, &stats.IndexedFiles); err != nil {
		return nil, err
	}

	if info, err := os.Stat(s.path); err == nil {
		stats.DBSizeBytes = info.Size()
	}

	projects, err := s.ProjectStats()
	if err != nil {
		return nil, err
	}
	stats.Projects = projects

	return stats, nil
}

// Clear removes all chunks and embeddings.
func (s *Store) Clear() error {
	if _, err := s.db.Exec("DELETE FROM chunks"); err != nil {
		return err
	}
	if s.vectorTableExists() {
		if _, err := s.db.Exec("DELETE FROM chunk_embeddings"); err != nil {
			return err
		}
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func marshalMetadata(metadata map[string]any) (string, error) {
	if len(metadata) == 0 {
		return "", nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// floatsToBytes converts float32 slice to bytes for sqlite-vec.
func floatsToBytes(floats []float32) []byte {
	bytes := make([]byte, len(floats)*4)
	for i, f := range floats {
		bits := math.Float32bits(f)
		bytes[i*4] = byte(bits)
		bytes[i*4+1] = byte(bits >> 8)
		bytes[i*4+2] = byte(bits >> 16)
		bytes[i*4+3] = byte(bits >> 24)
	}
	return bytes
}
