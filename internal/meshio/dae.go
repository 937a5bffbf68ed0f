package meshio

import (
	"encoding/xml"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"urdf-asset-renderer/internal/mathutil"
)

// COLLADA 1.4/1.5 subset: triangles, polylist, polygons, trifans and
// tristrips; common-profile diffuse color or texture with transparency; and
// visual scene node transforms.

type daeDoc struct {
	Unit struct {
		Meter float64 `xml:"meter,attr"`
	} `xml:"asset>unit"`
	Images       []daeImage       `xml:"library_images>image"`
	Effects      []daeEffect      `xml:"library_effects>effect"`
	Materials    []daeMaterial    `xml:"library_materials>material"`
	Geometries   []daeGeometry    `xml:"library_geometries>geometry"`
	VisualScenes []daeVisualScene `xml:"library_visual_scenes>visual_scene"`
	Scene        struct {
		URL string `xml:"url,attr"`
	} `xml:"scene>instance_visual_scene"`
}

type daeImage struct {
	ID       string `xml:"id,attr"`
	InitFrom struct {
		Path string `xml:",chardata"`
		Ref  string `xml:"ref"`
	} `xml:"init_from"`
}

type daeEffect struct {
	ID        string        `xml:"id,attr"`
	Params    []daeNewParam `xml:"profile_COMMON>newparam"`
	Technique struct {
		Shaders []daeShader `xml:",any"`
	} `xml:"profile_COMMON>technique"`
}

type daeNewParam struct {
	SID     string `xml:"sid,attr"`
	Surface string `xml:"surface>init_from"`
	Sampler string `xml:"sampler2D>source"`
	// COLLADA 1.5 samplers reference the image directly.
	Instance struct {
		URL string `xml:"url,attr"`
	} `xml:"sampler2D>instance_image"`
}

type daeShader struct {
	XMLName xml.Name
	Diffuse *struct {
		Color   string `xml:"color"`
		Texture *struct {
			Texture string `xml:"texture,attr"`
		} `xml:"texture"`
	} `xml:"diffuse"`
	Transparent *struct {
		Opaque string `xml:"opaque,attr"`
		Color  string `xml:"color"`
	} `xml:"transparent"`
	Transparency *struct {
		Float string `xml:"float"`
	} `xml:"transparency"`
}

type daeMaterial struct {
	ID     string `xml:"id,attr"`
	Effect struct {
		URL string `xml:"url,attr"`
	} `xml:"instance_effect"`
}

type daeGeometry struct {
	ID   string   `xml:"id,attr"`
	Name string   `xml:"name,attr"`
	Mesh *daeMesh `xml:"mesh"`
}

type daeMesh struct {
	Sources  []daeSource `xml:"source"`
	Vertices struct {
		ID     string     `xml:"id,attr"`
		Inputs []daeInput `xml:"input"`
	} `xml:"vertices"`
	// Primitive elements in document order.
	Primitives []daePrimitive `xml:",any"`
}

type daeSource struct {
	ID       string `xml:"id,attr"`
	Floats   string `xml:"float_array"`
	Accessor struct {
		Stride int `xml:"stride,attr"`
	} `xml:"technique_common>accessor"`
}

type daeInput struct {
	Semantic string `xml:"semantic,attr"`
	Source   string `xml:"source,attr"`
	Offset   int    `xml:"offset,attr"`
}

type daePrimitive struct {
	XMLName  xml.Name
	Material string     `xml:"material,attr"`
	Inputs   []daeInput `xml:"input"`
	VCount   string     `xml:"vcount"`
	P        []string   `xml:"p"`
	// Polygons with holes.
	PH []struct{} `xml:"ph"`
}

// daeTopology says how the index lists of a primitive element form faces.
type daeTopology int

const (
	daePolygons daeTopology = iota // fan per polygon
	daeStrips
)

type daeVisualScene struct {
	ID    string    `xml:"id,attr"`
	Nodes []daeNode `xml:"node"`
}

type daeNode struct {
	ID         string                `xml:"id,attr"`
	Name       string                `xml:"name,attr"`
	Geometries []daeInstanceGeometry `xml:"instance_geometry"`
	Children   []daeNode             `xml:"node"`
	// Transform elements in document order; other elements are ignored.
	Ops []struct {
		XMLName xml.Name
		Value   string `xml:",chardata"`
	} `xml:",any"`
}

type daeInstanceGeometry struct {
	URL      string `xml:"url,attr"`
	Bindings []struct {
		Symbol string `xml:"symbol,attr"`
		Target string `xml:"target,attr"`
	} `xml:"bind_material>technique_common>instance_material"`
}

// daeScene indexes a decoded document by id.
type daeScene struct {
	dir        string
	meter      float64
	images     map[string]daeImage
	effects    map[string]daeEffect
	materials  map[string]daeMaterial
	geometries map[string]daeGeometry
	names      map[string]int
}

func loadDAE(path string) ([]Part, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("meshio: open %s: %w", path, err)
	}
	defer f.Close()

	var doc daeDoc
	if err := xml.NewDecoder(f).Decode(&doc); err != nil {
		return nil, fmt.Errorf("meshio: dae %s: %w", path, err)
	}

	s := &daeScene{
		dir:        filepath.Dir(path),
		meter:      doc.Unit.Meter,
		images:     make(map[string]daeImage),
		effects:    make(map[string]daeEffect),
		materials:  make(map[string]daeMaterial),
		geometries: make(map[string]daeGeometry),
		names:      make(map[string]int),
	}
	if s.meter <= 0 {
		s.meter = 1
	}
	for _, im := range doc.Images {
		s.images[im.ID] = im
	}
	for _, e := range doc.Effects {
		s.effects[e.ID] = e
	}
	for _, m := range doc.Materials {
		s.materials[m.ID] = m
	}
	for _, g := range doc.Geometries {
		s.geometries[g.ID] = g
	}

	var parts []Part
	if vs := s.visualScene(doc); vs != nil {
		for _, n := range vs.Nodes {
			if err := s.walk(n, mathutil.Mat4Identity(), &parts); err != nil {
				return nil, fmt.Errorf("meshio: dae %s: %w", path, err)
			}
		}
	} else {
		// No scene graph: every geometry once, untransformed.
		for _, g := range doc.Geometries {
			ps, err := s.instance(g, nil, mathutil.Mat4Identity())
			if err != nil {
				return nil, fmt.Errorf("meshio: dae %s: %w", path, err)
			}
			parts = append(parts, ps...)
		}
	}
	return parts, nil
}

func (s *daeScene) visualScene(doc daeDoc) *daeVisualScene {
	id := strings.TrimPrefix(doc.Scene.URL, "#")
	for i := range doc.VisualScenes {
		if id == "" || doc.VisualScenes[i].ID == id {
			return &doc.VisualScenes[i]
		}
	}
	return nil
}

// walk composes node transforms from the scene root; every instanced
// geometry becomes a part carrying the composed transform.
func (s *daeScene) walk(n daeNode, parent mathutil.Mat4, parts *[]Part) error {
	world := parent
	for _, op := range n.Ops {
		m, ok, err := daeTransform(op.XMLName.Local, op.Value)
		if err != nil {
			return fmt.Errorf("node %q: %w", n.ID, err)
		}
		if ok {
			world = mathutil.Mat4Mul(world, m)
		}
	}

	for _, ig := range n.Geometries {
		g, ok := s.geometries[strings.TrimPrefix(ig.URL, "#")]
		if !ok {
			return fmt.Errorf("node %q: unknown geometry %s", n.ID, ig.URL)
		}
		bind := make(map[string]string, len(ig.Bindings))
		for _, b := range ig.Bindings {
			bind[b.Symbol] = strings.TrimPrefix(b.Target, "#")
		}
		ps, err := s.instance(g, bind, world)
		if err != nil {
			return err
		}
		*parts = append(*parts, ps...)
	}
	for _, c := range n.Children {
		if err := s.walk(c, world, parts); err != nil {
			return err
		}
	}
	return nil
}

// daeTransform converts one transform element. ok is false for elements
// that are not transforms.
func daeTransform(kind, value string) (m mathutil.Mat4, ok bool, err error) {
	want := map[string]int{"matrix": 16, "translate": 3, "rotate": 4, "scale": 3}[kind]
	if want == 0 {
		return m, false, nil
	}
	v, err := parseFloatList(value)
	if err != nil {
		return m, false, fmt.Errorf("%s: %w", kind, err)
	}
	if len(v) != want {
		return m, false, fmt.Errorf("%s: want %d values, got %d", kind, want, len(v))
	}
	switch kind {
	case "matrix":
		copy(m[:], v)
	case "translate":
		m = mathutil.Translate4(mathutil.Vec3{v[0], v[1], v[2]})
	case "rotate":
		r := mathutil.AxisAngle(mathutil.Vec3{v[0], v[1], v[2]}, mathutil.Deg2Rad(v[3]))
		m = mathutil.FromMat3Translation(r, mathutil.Vec3{})
	case "scale":
		m = mathutil.Scale4(mathutil.Vec3{v[0], v[1], v[2]})
	}
	return m, true, nil
}

// instance builds the parts of one geometry placed at world. Vertices are
// converted to meters; the transform is conjugated so it stays consistent.
func (s *daeScene) instance(g daeGeometry, bind map[string]string, world mathutil.Mat4) ([]Part, error) {
	if g.Mesh == nil {
		return nil, nil
	}
	local := world
	local[3] *= s.meter
	local[7] *= s.meter
	local[11] *= s.meter

	var prims []daePrimitive
	for _, p := range g.Mesh.Primitives {
		switch p.XMLName.Local {
		case "triangles", "polylist", "polygons", "trifans", "tristrips":
			prims = append(prims, p)
		case "lines", "linestrips":
			return nil, fmt.Errorf("geometry %q: %w: <%s> has no faces", g.ID, ErrUnsupportedFormat, p.XMLName.Local)
		}
	}
	base := g.Name
	if base == "" {
		base = g.ID
	}

	var parts []Part
	for i, p := range prims {
		mesh, err := s.primitive(g.Mesh, p)
		if err != nil {
			return nil, fmt.Errorf("geometry %q: %w", g.ID, err)
		}
		if len(mesh.Faces) == 0 {
			continue
		}
		name := base
		if len(prims) > 1 {
			name = fmt.Sprintf("%s_%d", base, i)
		}
		parts = append(parts, Part{
			Name:     s.unique(name),
			Mesh:     mesh,
			Local:    local,
			Material: s.material(bind, p.Material),
		})
	}
	return parts, nil
}

func (s *daeScene) unique(name string) string {
	n := s.names[name]
	s.names[name]++
	if n == 0 {
		return name
	}
	return fmt.Sprintf("%s.%d", name, n)
}

func (s *daeScene) primitive(m *daeMesh, p daePrimitive) (Mesh, error) {
	sources := make(map[string]daeSource, len(m.Sources))
	for _, src := range m.Sources {
		sources[src.ID] = src
	}

	var posSrc, uvSrc *daeSource
	posOff, uvOff, stride := -1, -1, 0
	for _, in := range p.Inputs {
		if in.Offset+1 > stride {
			stride = in.Offset + 1
		}
		switch in.Semantic {
		case "VERTEX":
			posOff = in.Offset
			for _, vi := range m.Vertices.Inputs {
				if vi.Semantic == "POSITION" {
					if src, ok := sources[strings.TrimPrefix(vi.Source, "#")]; ok {
						posSrc = &src
					}
				}
			}
		case "TEXCOORD":
			if uvSrc == nil {
				if src, ok := sources[strings.TrimPrefix(in.Source, "#")]; ok {
					uvOff = in.Offset
					uvSrc = &src
				}
			}
		}
	}
	if posSrc == nil || posOff < 0 {
		return Mesh{}, fmt.Errorf("primitive without positions")
	}

	pos, err := parseFloatList(posSrc.Floats)
	if err != nil {
		return Mesh{}, err
	}
	posStride := max(posSrc.Accessor.Stride, 3)
	var uv []float64
	uvStride := 2
	if uvSrc != nil {
		if uv, err = parseFloatList(uvSrc.Floats); err != nil {
			return Mesh{}, err
		}
		uvStride = max(uvSrc.Accessor.Stride, 2)
	}

	if len(p.PH) > 0 {
		return Mesh{}, fmt.Errorf("%w: polygons with holes", ErrUnsupportedFormat)
	}

	// runs are the polygons, fans or strips of the element, each a list
	// of corners.
	var runs [][]int
	topo := daePolygons
	kind := p.XMLName.Local
	switch kind {
	case "triangles", "polylist":
		idx, err := parseIntList(strings.Join(p.P, " "))
		if err != nil {
			return Mesh{}, err
		}
		if len(idx)%stride != 0 {
			return Mesh{}, fmt.Errorf("<%s>: %d indices for %d inputs", kind, len(idx), stride)
		}
		corners := len(idx) / stride
		counts := []int(nil)
		if kind == "polylist" {
			if counts, err = parseIntList(p.VCount); err != nil {
				return Mesh{}, err
			}
		} else {
			if corners%3 != 0 {
				return Mesh{}, fmt.Errorf("<triangles>: %d corners", corners)
			}
			counts = make([]int, corners/3)
			for i := range counts {
				counts[i] = 3
			}
		}
		c := 0
		for _, n := range counts {
			if n < 3 {
				return Mesh{}, fmt.Errorf("<%s>: polygon with %d vertices", kind, n)
			}
			if c+n > corners {
				return Mesh{}, fmt.Errorf("<%s>: index list shorter than vcount", kind)
			}
			runs = append(runs, idx[c*stride:(c+n)*stride])
			c += n
		}
	default:
		if kind == "tristrips" {
			topo = daeStrips
		}
		for _, list := range p.P {
			idx, err := parseIntList(list)
			if err != nil {
				return Mesh{}, err
			}
			if len(idx)%stride != 0 || len(idx)/stride < 3 {
				return Mesh{}, fmt.Errorf("<%s>: %d indices for %d inputs", kind, len(idx), stride)
			}
			runs = append(runs, idx)
		}
	}

	var out Mesh
	remap := make(map[[2]int]uint32)
	corner := func(idx []int, c int) (uint32, error) {
		pi := idx[c*stride+posOff]
		ti := -1
		if uvSrc != nil {
			ti = idx[c*stride+uvOff]
		}
		key := [2]int{pi, ti}
		if v, ok := remap[key]; ok {
			return v, nil
		}
		if pi < 0 || (pi+1)*posStride > len(pos) {
			return 0, fmt.Errorf("position index %d out of range", pi)
		}
		v := uint32(len(out.Vertices))
		out.Vertices = append(out.Vertices, [3]float32{
			float32(pos[pi*posStride] * s.meter),
			float32(pos[pi*posStride+1] * s.meter),
			float32(pos[pi*posStride+2] * s.meter),
		})
		if uvSrc != nil {
			if ti < 0 || (ti+1)*uvStride > len(uv) {
				return 0, fmt.Errorf("texcoord index %d out of range", ti)
			}
			out.UVs = append(out.UVs, [2]float32{float32(uv[ti*uvStride]), float32(1 - uv[ti*uvStride+1])})
		}
		remap[key] = v
		return v, nil
	}

	for _, run := range runs {
		n := len(run) / stride
		vs := make([]uint32, n)
		for k := range vs {
			v, err := corner(run, k)
			if err != nil {
				return Mesh{}, err
			}
			vs[k] = v
		}
		for k := 0; k+2 < n; k++ {
			switch {
			case topo == daePolygons:
				out.Faces = append(out.Faces, [3]uint32{vs[0], vs[k+1], vs[k+2]})
			case k%2 == 0:
				out.Faces = append(out.Faces, [3]uint32{vs[k], vs[k+1], vs[k+2]})
			default:
				out.Faces = append(out.Faces, [3]uint32{vs[k+1], vs[k], vs[k+2]})
			}
		}
	}
	return out, nil
}

// material follows symbol -> material -> effect -> diffuse color or texture.
func (s *daeScene) material(bind map[string]string, symbol string) *Material {
	matID := symbol
	if t, ok := bind[symbol]; ok {
		matID = t
	}
	mat, ok := s.materials[matID]
	if !ok {
		return nil
	}
	eff, ok := s.effects[strings.TrimPrefix(mat.Effect.URL, "#")]
	if !ok {
		return nil
	}
	for _, sh := range eff.Technique.Shaders {
		if sh.Diffuse == nil {
			continue
		}
		alpha := sh.opacity()
		if sh.Diffuse.Texture != nil {
			if p := s.texturePath(eff, sh.Diffuse.Texture.Texture); p != "" {
				out := &Material{Texture: p}
				if alpha < 1 {
					out.Color = &[4]float64{1, 1, 1, alpha}
				}
				return out
			}
		}
		if v, err := parseFloatList(sh.Diffuse.Color); err == nil && len(v) >= 3 {
			c := [4]float64{v[0], v[1], v[2], alpha}
			if len(v) >= 4 {
				c[3] *= v[3]
			}
			return &Material{Color: &c}
		}
	}
	return nil
}

// opacity combines <transparent> and <transparency> into an alpha value.
// A_ONE (the default) takes the transparent color's alpha, RGB_ZERO the
// inverse of its luminance; both are scaled by transparency. Exporters
// disagree on a lone <transparency>, so without <transparent> the
// material is opaque.
func (sh daeShader) opacity() float64 {
	if sh.Transparent == nil {
		return 1
	}
	factor := 1.0
	if sh.Transparency != nil {
		if v, err := parseFloatList(sh.Transparency.Float); err == nil && len(v) == 1 {
			factor = v[0]
		}
	}
	c, err := parseFloatList(sh.Transparent.Color)
	if err != nil || len(c) < 3 {
		return clamp01(factor)
	}
	if len(c) == 3 {
		c = append(c, 1)
	}
	if sh.Transparent.Opaque == "RGB_ZERO" {
		lum := 0.212671*c[0] + 0.715160*c[1] + 0.072169*c[2]
		return clamp01(1 - lum*factor)
	}
	return clamp01(c[3] * factor)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// texturePath resolves a sampler reference through newparams to an image
// file. COLLADA exporters also reference images directly by id.
func (s *daeScene) texturePath(eff daeEffect, ref string) string {
	params := make(map[string]daeNewParam, len(eff.Params))
	for _, p := range eff.Params {
		params[p.SID] = p
	}
	imageID := ref
	if p, ok := params[ref]; ok {
		switch {
		case p.Instance.URL != "":
			imageID = strings.TrimPrefix(p.Instance.URL, "#")
		case p.Sampler != "":
			if surf, ok := params[p.Sampler]; ok && surf.Surface != "" {
				imageID = surf.Surface
			}
		}
	}
	im, ok := s.images[imageID]
	if !ok {
		return ""
	}
	file := strings.TrimSpace(im.InitFrom.Path)
	if ref := strings.TrimSpace(im.InitFrom.Ref); ref != "" {
		file = ref
	}
	if file == "" {
		return ""
	}
	file = strings.TrimPrefix(file, "file://")
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(s.dir, filepath.FromSlash(file))
}

func parseFloatList(s string) ([]float64, error) {
	fields := strings.Fields(s)
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseIntList(s string) ([]int, error) {
	fields := strings.Fields(s)
	out := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
