package texture

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Index maps lowercase texture stems to image files found under a set of
// directories. Meshes exported on case-insensitive filesystems often name
// textures with the wrong case or extension; the index recovers them.
type Index struct {
	entries map[string]string // stem.lower() -> full path
}

// BuildIndex walks dirs for image files. When several files share a stem,
// the format listed first in Extensions wins.
func BuildIndex(dirs ...string) *Index {
	idx := &Index{entries: make(map[string]string)}
	for _, dir := range dirs {
		filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			rank := slices.Index(Extensions, strings.ToLower(filepath.Ext(path)))
			if rank < 0 {
				return nil
			}
			stem := stemOf(path)
			existing, exists := idx.entries[stem]
			if !exists || rank < slices.Index(Extensions, strings.ToLower(filepath.Ext(existing))) {
				idx.entries[stem] = path
			}
			return nil
		})
	}
	return idx
}

// ResolvePath returns the indexed file for a texture reference, or ("", false).
func (idx *Index) ResolvePath(ref string) (string, bool) {
	if idx == nil {
		return "", false
	}
	path, ok := idx.entries[stemOf(ref)]
	return path, ok
}

// Len returns the number of indexed textures.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.entries)
}

func stemOf(ref string) string {
	// Windows exporters write backslashes.
	base := filepath.Base(strings.ReplaceAll(ref, "\\", "/"))
	return strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
}
