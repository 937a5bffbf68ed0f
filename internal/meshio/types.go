// Package meshio loads mesh files referenced by robot descriptions into
// triangle meshes, keeping the sub-mesh structure of container formats.
package meshio

import "urdf-asset-renderer/internal/mathutil"

// Format identifies a supported mesh file format.
type Format string

const (
	FormatOBJ  Format = "obj"
	FormatSTL  Format = "stl"
	FormatDAE  Format = "dae"
	FormatGLTF Format = "gltf"
)

// Mesh holds triangle geometry. UVs are per vertex and may be empty; they
// use image orientation (v = 0 is the top row), as glTF does.
type Mesh struct {
	Vertices [][3]float32
	Faces    [][3]uint32
	UVs      [][2]float32
}

// Material is appearance embedded in the mesh file.
type Material struct {
	Color   *[4]float64
	Texture string // resolved path, "" when absent
}

// Part is one named sub-mesh with its transform relative to the file's root.
type Part struct {
	Name     string
	Mesh     Mesh
	Local    mathutil.Mat4
	Material *Material
}

// Scene is the decoded content of one mesh file.
type Scene struct {
	Path   string
	Format Format
	Parts  []Part
}

// Bounds returns the axis-aligned bounds of the mesh's vertices.
func (m *Mesh) Bounds() (lo, hi mathutil.Vec3, ok bool) {
	if len(m.Vertices) == 0 {
		return lo, hi, false
	}
	lo = mathutil.Vec3From32(m.Vertices[0])
	hi = lo
	for _, v := range m.Vertices[1:] {
		p := mathutil.Vec3From32(v)
		lo = lo.Min(p)
		hi = hi.Max(p)
	}
	return lo, hi, true
}

// applyScale scales vertex positions in place.
func (m *Mesh) applyScale(s mathutil.Vec3) {
	if s == (mathutil.Vec3{1, 1, 1}) {
		return
	}
	for i, v := range m.Vertices {
		m.Vertices[i] = [3]float32{
			float32(float64(v[0]) * s[0]),
			float32(float64(v[1]) * s[1]),
			float32(float64(v[2]) * s[2]),
		}
	}
}
