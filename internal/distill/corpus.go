package distill

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// supported corpus file extensions
var corpusExts = map[string]bool{
	".md":   true,
	".txt":  true,
	".rst":  true,
	".json": true,
	".yaml": true,
	".yml":  true,
}

// LoadCorpusDir reads every supported file under dir into a chunk whose id
// is the path relative to dir. maxChunkBytes > 0 truncates oversized files
// before scoring.
func LoadCorpusDir(dir string, maxChunkBytes int) ([]Chunk, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("corpus dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("corpus path %s is not a directory", dir)
	}

	chunks := make([]Chunk, 0)
	err = filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if entry.IsDir() {
			// Skip hidden directories like .git and .metis
			if strings.HasPrefix(entry.Name(), ".") && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if !corpusExts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		data, rerr := os.ReadFile(path)
		if rerr != nil {
			return nil
		}
		if maxChunkBytes > 0 && len(data) > maxChunkBytes {
			data = data[:maxChunkBytes]
		}

		rel, rerr := filepath.Rel(dir, path)
		if rerr != nil {
			rel = path
		}

		chunks = append(chunks, Chunk{
			ID:      filepath.ToSlash(rel),
			Content: string(data),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(chunks, func(i, j int) bool { return chunks[i].ID < chunks[j].ID })
	return chunks, nil
}
