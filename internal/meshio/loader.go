package meshio

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"urdf-asset-renderer/internal/mathutil"
)

// ErrUnsupportedFormat is returned for mesh files with an unknown extension.
var ErrUnsupportedFormat = errors.New("meshio: unsupported mesh format")

// Loader returns the decoded scene of a mesh file with vertex positions
// multiplied by scale.
type Loader interface {
	Load(path string, scale mathutil.Vec3) (*Scene, error)
}

// FileLoader reads mesh files from the local filesystem. Every file handle
// is closed before Load returns.
type FileLoader struct{}

// FormatOf maps a filename to its format by extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".obj":
		return FormatOBJ, nil
	case ".stl":
		return FormatSTL, nil
	case ".dae":
		return FormatDAE, nil
	case ".glb", ".gltf":
		return FormatGLTF, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

// Load implements Loader.
func (FileLoader) Load(path string, scale mathutil.Vec3) (*Scene, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	var parts []Part
	switch format {
	case FormatOBJ:
		parts, err = loadOBJ(path)
	case FormatSTL:
		parts, err = loadSTL(path)
	case FormatDAE:
		parts, err = loadDAE(path)
	case FormatGLTF:
		parts, err = loadGLTF(path)
	}
	if err != nil {
		return nil, err
	}

	for i := range parts {
		parts[i].Mesh.applyScale(scale)
	}
	return &Scene{Path: path, Format: format, Parts: parts}, nil
}
