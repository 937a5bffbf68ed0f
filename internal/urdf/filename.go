package urdf

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	packageScheme = "package://"
	fileScheme    = "file://"

	// ancestorSearchDepth bounds the walk up from the document directory
	// when a package:// reference is not found on the package paths.
	ancestorSearchDepth = 3
)

// resolver maps filenames written in a document to filesystem paths.
type resolver struct {
	dir          string
	packagePaths []string
}

// resolve never fails: an unresolvable reference yields the most likely path
// and the mesh loader reports the missing file.
func (r resolver) resolve(name string) string {
	switch {
	case strings.HasPrefix(name, packageScheme):
		return r.resolvePackage(strings.TrimPrefix(name, packageScheme))
	case strings.HasPrefix(name, fileScheme):
		return filepath.FromSlash(strings.TrimPrefix(name, fileScheme))
	case filepath.IsAbs(name):
		return name
	}
	return filepath.Join(r.dir, filepath.FromSlash(name))
}

func (r resolver) resolvePackage(ref string) string {
	pkg, rel, _ := strings.Cut(ref, "/")
	rel = filepath.FromSlash(rel)

	var candidates []string
	for _, dir := range r.packagePaths {
		candidates = append(candidates, filepath.Join(dir, pkg, rel))
		if filepath.Base(dir) == pkg {
			candidates = append(candidates, filepath.Join(dir, rel))
		}
	}
	dir := r.dir
	for i := 0; i <= ancestorSearchDepth; i++ {
		candidates = append(candidates,
			filepath.Join(dir, pkg, rel),
			filepath.Join(dir, rel),
		)
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return filepath.Join(r.dir, rel)
}
