package chunker

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// Scan walks root depth-first and returns the paths of all supported
// files. Ignored directories are pruned before descent, so dependency
// trees like node_modules are never visited. A missing root yields an
// empty list with a warning, not an error. Traversal order follows the
// filesystem's lexical enumeration, which is deterministic for a static
// tree.
func (p *Parser) Scan(root string) []string {
	if _, err := os.Stat(root); err != nil {
		slog.Warn("scan root does not exist", "path", root)
		return nil
	}

	var files []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}

		if d.IsDir() {
			if path != root && p.IgnoresDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if p.SupportsFile(path) {
			files = append(files, path)
		}
		return nil
	})

	return files
}
