package meshio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hschendel/stl"

	"urdf-asset-renderer/internal/mathutil"
)

// loadSTL reads an ASCII or binary STL file as a single part. STL carries no
// material, so the part has none.
func loadSTL(path string) ([]Part, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("meshio: open %s: %w", path, err)
	}
	defer f.Close()

	solid, err := stl.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("meshio: stl %s: %w", path, err)
	}

	m := Mesh{
		Vertices: make([][3]float32, 0, 3*len(solid.Triangles)),
		Faces:    make([][3]uint32, 0, len(solid.Triangles)),
	}
	for _, tri := range solid.Triangles {
		base := uint32(len(m.Vertices))
		for _, v := range tri.Vertices {
			m.Vertices = append(m.Vertices, [3]float32(v))
		}
		m.Faces = append(m.Faces, [3]uint32{base, base + 1, base + 2})
	}

	name := solid.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return []Part{{Name: name, Mesh: m, Local: mathutil.Mat4Identity()}}, nil
}
