package meshio

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"urdf-asset-renderer/internal/mathutil"
)

// loadGLTF reads a .gltf or .glb file. Every triangle primitive (list, strip
// or fan) reachable from the default scene becomes a part placed by its
// node's world matrix.
func loadGLTF(path string) ([]Part, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("meshio: gltf %s: %w", path, err)
	}

	g := &gltfScene{doc: doc, dir: filepath.Dir(path), names: make(map[string]int)}
	var roots []int
	switch {
	case doc.Scene != nil && *doc.Scene < len(doc.Scenes):
		roots = doc.Scenes[*doc.Scene].Nodes
	case len(doc.Scenes) > 0:
		roots = doc.Scenes[0].Nodes
	}

	if len(roots) == 0 {
		for i := range doc.Meshes {
			if err := g.mesh(i, mathutil.Mat4Identity()); err != nil {
				return nil, fmt.Errorf("meshio: gltf %s: %w", path, err)
			}
		}
		return g.parts, nil
	}
	for _, n := range roots {
		if err := g.walk(n, mathutil.Mat4Identity(), 0); err != nil {
			return nil, fmt.Errorf("meshio: gltf %s: %w", path, err)
		}
	}
	return g.parts, nil
}

type gltfScene struct {
	doc   *gltf.Document
	dir   string
	parts []Part
	names map[string]int
}

func (g *gltfScene) walk(idx int, parent mathutil.Mat4, depth int) error {
	if idx < 0 || idx >= len(g.doc.Nodes) {
		return fmt.Errorf("node %d out of range", idx)
	}
	if depth > len(g.doc.Nodes) {
		return fmt.Errorf("node %d: cyclic hierarchy", idx)
	}
	n := g.doc.Nodes[idx]
	world := mathutil.Mat4Mul(parent, nodeMatrix(n))
	if n.Mesh != nil {
		if err := g.mesh(*n.Mesh, world); err != nil {
			return err
		}
	}
	for _, c := range n.Children {
		if err := g.walk(c, world, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// nodeMatrix returns the local transform of a node: its matrix when set,
// otherwise T * R * S.
func nodeMatrix(n *gltf.Node) mathutil.Mat4 {
	var zero [16]float64
	if n.Matrix != zero && mgl64.Mat4(n.Matrix) != mgl64.Ident4() {
		return mathutil.Mat4FromColumnMajor(n.Matrix)
	}
	r := n.Rotation
	if r == ([4]float64{}) {
		r[3] = 1
	}
	s := n.Scale
	if s == ([3]float64{}) {
		s = [3]float64{1, 1, 1}
	}
	t := n.Translation
	m := mgl64.Translate3D(t[0], t[1], t[2]).
		Mul4(mgl64.Quat{W: r[3], V: mgl64.Vec3{r[0], r[1], r[2]}}.Normalize().Mat4()).
		Mul4(mgl64.Scale3D(s[0], s[1], s[2]))
	return mathutil.Mat4FromColumnMajor([16]float64(m))
}

func (g *gltfScene) mesh(idx int, world mathutil.Mat4) error {
	if idx < 0 || idx >= len(g.doc.Meshes) {
		return fmt.Errorf("mesh %d out of range", idx)
	}
	gm := g.doc.Meshes[idx]
	base := gm.Name
	if base == "" {
		base = fmt.Sprintf("mesh%d", idx)
	}
	for pi, p := range gm.Primitives {
		m, err := g.primitive(p)
		if err != nil {
			return fmt.Errorf("mesh %q primitive %d: %w", base, pi, err)
		}
		name := base
		if len(gm.Primitives) > 1 {
			name = fmt.Sprintf("%s_%d", base, pi)
		}
		if n := g.names[name]; n > 0 {
			g.names[name]++
			name = fmt.Sprintf("%s.%d", name, n)
		} else {
			g.names[name] = 1
		}
		g.parts = append(g.parts, Part{
			Name:     name,
			Mesh:     m,
			Local:    world,
			Material: g.material(p.Material),
		})
	}
	return nil
}

func (g *gltfScene) primitive(p *gltf.Primitive) (Mesh, error) {
	pos, ok := p.Attributes[gltf.POSITION]
	if !ok || pos >= len(g.doc.Accessors) {
		return Mesh{}, fmt.Errorf("primitive without positions")
	}
	verts, err := modeler.ReadPosition(g.doc, g.doc.Accessors[pos], nil)
	if err != nil {
		return Mesh{}, err
	}
	m := Mesh{Vertices: verts}

	if uv, ok := p.Attributes[gltf.TEXCOORD_0]; ok && uv < len(g.doc.Accessors) {
		if m.UVs, err = modeler.ReadTextureCoord(g.doc, g.doc.Accessors[uv], nil); err != nil {
			return Mesh{}, err
		}
	}

	var indices []uint32
	if p.Indices != nil {
		if *p.Indices >= len(g.doc.Accessors) {
			return Mesh{}, fmt.Errorf("indices accessor %d out of range", *p.Indices)
		}
		if indices, err = modeler.ReadIndices(g.doc, g.doc.Accessors[*p.Indices], nil); err != nil {
			return Mesh{}, err
		}
	} else {
		indices = make([]uint32, len(verts))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	for _, v := range indices {
		if int(v) >= len(verts) {
			return Mesh{}, fmt.Errorf("index %d out of range", v)
		}
	}
	if m.Faces, err = gltfFaces(p.Mode, indices); err != nil {
		return Mesh{}, err
	}
	return m, nil
}

// gltfFaces converts an index stream of a triangle topology into a triangle
// list. Strips alternate winding so every face keeps the orientation of the
// first one.
func gltfFaces(mode gltf.PrimitiveMode, idx []uint32) ([][3]uint32, error) {
	var faces [][3]uint32
	switch mode {
	case gltf.PrimitiveTriangles:
		if len(idx)%3 != 0 {
			return nil, fmt.Errorf("triangle list of %d indices", len(idx))
		}
		for i := 0; i+2 < len(idx); i += 3 {
			faces = append(faces, [3]uint32{idx[i], idx[i+1], idx[i+2]})
		}
	case gltf.PrimitiveTriangleStrip:
		for i := 0; i+2 < len(idx); i++ {
			if i%2 == 0 {
				faces = append(faces, [3]uint32{idx[i], idx[i+1], idx[i+2]})
			} else {
				faces = append(faces, [3]uint32{idx[i+1], idx[i], idx[i+2]})
			}
		}
	case gltf.PrimitiveTriangleFan:
		for i := 1; i+1 < len(idx); i++ {
			faces = append(faces, [3]uint32{idx[0], idx[i], idx[i+1]})
		}
	default:
		return nil, fmt.Errorf("%w: primitive mode %s has no faces", ErrUnsupportedFormat, mode)
	}
	return faces, nil
}

// material reads the PBR base color factor and an external base color
// texture. Textures embedded in buffers are not exposed as paths.
func (g *gltfScene) material(idx *int) *Material {
	if idx == nil || *idx >= len(g.doc.Materials) {
		return nil
	}
	pbr := g.doc.Materials[*idx].PBRMetallicRoughness
	if pbr == nil {
		return nil
	}
	out := &Material{}
	if pbr.BaseColorFactor != nil {
		c := [4]float64(*pbr.BaseColorFactor)
		out.Color = &c
	}
	if ti := pbr.BaseColorTexture; ti != nil && ti.Index < len(g.doc.Textures) {
		if src := g.doc.Textures[ti.Index].Source; src != nil && *src < len(g.doc.Images) {
			uri := g.doc.Images[*src].URI
			if uri != "" && !strings.HasPrefix(uri, "data:") {
				out.Texture = filepath.Join(g.dir, filepath.FromSlash(uri))
			}
		}
	}
	if out.Color == nil && out.Texture == "" {
		return nil
	}
	return out
}
