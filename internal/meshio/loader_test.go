package meshio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"urdf-asset-renderer/internal/mathutil"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"a/b.obj", FormatOBJ},
		{"a/b.STL", FormatSTL},
		{"b.dae", FormatDAE},
		{"b.glb", FormatGLTF},
		{"b.gltf", FormatGLTF},
	}
	for _, tt := range tests {
		got, err := FormatOf(tt.path)
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}

	_, err := FormatOf("b.ply")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	_, err = FileLoader{}.Load("b.3ds", mathutil.Vec3{1, 1, 1})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := FileLoader{}.Load(filepath.Join(t.TempDir(), "none.stl"), mathutil.Vec3{1, 1, 1})
	assert.Error(t, err)
}

const quadOBJ = `# two objects, the second with two materials
mtllib parts.mtl
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
o plate
usemtl red
f 1/1 2/2 3/3 4/4
o post
usemtl red
f 1 2 3
usemtl skin
f -4 -2 -1
`

const partsMTL = `newmtl red
Kd 1 0 0
d 0.5
newmtl skin
map_Kd tex/skin.png
`

func TestLoadOBJ(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "quad.obj", quadOBJ)
	writeFile(t, dir, "parts.mtl", partsMTL)

	scene, err := FileLoader{}.Load(p, mathutil.Vec3{2, 2, 2})
	require.NoError(t, err)
	assert.Equal(t, FormatOBJ, scene.Format)
	require.Len(t, scene.Parts, 3)

	plate := scene.Parts[0]
	assert.Equal(t, "plate", plate.Name)
	assert.Len(t, plate.Mesh.Faces, 2)
	assert.Len(t, plate.Mesh.Vertices, 4)
	assert.Len(t, plate.Mesh.UVs, 4)
	assert.Equal(t, [3]float32{2, 2, 0}, plate.Mesh.Vertices[2])
	require.NotNil(t, plate.Material)
	assert.Equal(t, [4]float64{1, 0, 0, 0.5}, *plate.Material.Color)
	assert.True(t, plate.Local.IsIdentity())

	assert.Equal(t, "post_0", scene.Parts[1].Name)
	assert.Nil(t, scene.Parts[1].Mesh.UVs)
	skin := scene.Parts[2]
	assert.Equal(t, "post_1", skin.Name)
	require.NotNil(t, skin.Material)
	assert.Nil(t, skin.Material.Color)
	assert.Equal(t, filepath.Join(dir, "tex", "skin.png"), skin.Material.Texture)
}

func TestLoadOBJ_MissingMTL(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "quad.obj", quadOBJ)
	scene, err := FileLoader{}.Load(p, mathutil.Vec3{1, 1, 1})
	require.NoError(t, err)
	for _, part := range scene.Parts {
		assert.Nil(t, part.Material)
	}
}

func TestLoadOBJ_BadIndex(t *testing.T) {
	p := writeFile(t, t.TempDir(), "bad.obj", "v 0 0 0\nv 1 0 0\nf 1 2 9\n")
	_, err := FileLoader{}.Load(p, mathutil.Vec3{1, 1, 1})
	assert.ErrorContains(t, err, "line 3")
}

func TestLoadOBJ_TexcoordArity(t *testing.T) {
	obj := "v 0 0 0\nv 1 0 0\nv 0 1 0\nvt 0.25\nvt 0.5 0.5\nvt 1 0.75 0\nf 1/1 2/2 3/3\n"
	p := writeFile(t, t.TempDir(), "ramp.obj", obj)
	scene, err := FileLoader{}.Load(p, mathutil.Vec3{1, 1, 1})
	require.NoError(t, err)
	require.Len(t, scene.Parts, 1)
	// v is flipped; a missing v is 0.
	assert.Equal(t, [][2]float32{{0.25, 1}, {0.5, 0.5}, {1, 0.25}}, scene.Parts[0].Mesh.UVs)

	p = writeFile(t, t.TempDir(), "bad.obj", "v 0 0 0\nvt\n")
	_, err = FileLoader{}.Load(p, mathutil.Vec3{1, 1, 1})
	assert.ErrorContains(t, err, "line 2")
}

const triSTL = `solid wedge
  facet normal 0 0 1
    outer loop
      vertex 0 0 0
      vertex 1 0 0
      vertex 0 1 0
    endloop
  endfacet
  facet normal 0 0 1
    outer loop
      vertex 1 0 0
      vertex 1 1 0
      vertex 0 1 0
    endloop
  endfacet
endsolid wedge
`

func TestLoadSTL(t *testing.T) {
	p := writeFile(t, t.TempDir(), "wedge.stl", triSTL)
	scene, err := FileLoader{}.Load(p, mathutil.Vec3{1, 2, 3})
	require.NoError(t, err)
	require.Len(t, scene.Parts, 1)
	part := scene.Parts[0]
	assert.Equal(t, "wedge", part.Name)
	assert.Nil(t, part.Material)
	assert.Len(t, part.Mesh.Faces, 2)
	assert.Equal(t, [3]float32{1, 2, 0}, part.Mesh.Vertices[4])

	lo, hi, ok := part.Mesh.Bounds()
	require.True(t, ok)
	assert.Equal(t, mathutil.Vec3{0, 0, 0}, lo)
	assert.Equal(t, mathutil.Vec3{1, 2, 0}, hi)
}

const wingDAE = `<?xml version="1.0" encoding="utf-8"?>
<COLLADA xmlns="http://www.collada.org/2005/11/COLLADASchema" version="1.4.1">
  <asset><unit name="centimeter" meter="0.01"/><up_axis>Z_UP</up_axis></asset>
  <library_images>
    <image id="skin-img"><init_from>skin.png</init_from></image>
  </library_images>
  <library_effects>
    <effect id="red-fx">
      <profile_COMMON><technique sid="common"><phong>
        <diffuse><color>0.8 0.1 0.1 1</color></diffuse>
      </phong></technique></profile_COMMON>
    </effect>
    <effect id="skin-fx">
      <profile_COMMON>
        <newparam sid="skin-surface"><surface type="2D"><init_from>skin-img</init_from></surface></newparam>
        <newparam sid="skin-sampler"><sampler2D><source>skin-surface</source></sampler2D></newparam>
        <technique sid="common"><lambert>
          <diffuse><texture texture="skin-sampler" texcoord="UVMap"/></diffuse>
        </lambert></technique>
      </profile_COMMON>
    </effect>
  </library_effects>
  <library_materials>
    <material id="red-mat"><instance_effect url="#red-fx"/></material>
    <material id="skin-mat"><instance_effect url="#skin-fx"/></material>
  </library_materials>
  <library_geometries>
    <geometry id="tri-mesh" name="tri">
      <mesh>
        <source id="tri-pos">
          <float_array id="tri-pos-array" count="9">0 0 0 100 0 0 0 100 0</float_array>
          <technique_common><accessor source="#tri-pos-array" count="3" stride="3"/></technique_common>
        </source>
        <source id="tri-uv">
          <float_array id="tri-uv-array" count="6">0 0 1 0 0 1</float_array>
          <technique_common><accessor source="#tri-uv-array" count="3" stride="2"/></technique_common>
        </source>
        <vertices id="tri-verts"><input semantic="POSITION" source="#tri-pos"/></vertices>
        <triangles material="body" count="1">
          <input semantic="VERTEX" source="#tri-verts" offset="0"/>
          <input semantic="TEXCOORD" source="#tri-uv" offset="1" set="0"/>
          <p>0 0 1 1 2 2</p>
        </triangles>
      </mesh>
    </geometry>
    <geometry id="quad-mesh" name="quad">
      <mesh>
        <source id="quad-pos">
          <float_array id="quad-pos-array" count="12">0 0 0 100 0 0 100 100 0 0 100 0</float_array>
          <technique_common><accessor source="#quad-pos-array" count="4" stride="3"/></technique_common>
        </source>
        <vertices id="quad-verts"><input semantic="POSITION" source="#quad-pos"/></vertices>
        <polylist material="body" count="1">
          <input semantic="VERTEX" source="#quad-verts" offset="0"/>
          <vcount>4</vcount>
          <p>0 1 2 3</p>
        </polylist>
      </mesh>
    </geometry>
  </library_geometries>
  <library_visual_scenes>
    <visual_scene id="Scene">
      <node id="root" name="root">
        <translate>0 0 100</translate>
        <node id="left" name="left">
          <translate>100 0 0</translate>
          <rotate>0 0 1 90</rotate>
          <instance_geometry url="#tri-mesh">
            <bind_material><technique_common>
              <instance_material symbol="body" target="#skin-mat"/>
            </technique_common></bind_material>
          </instance_geometry>
        </node>
        <node id="right" name="right">
          <instance_geometry url="#tri-mesh">
            <bind_material><technique_common>
              <instance_material symbol="body" target="#red-mat"/>
            </technique_common></bind_material>
          </instance_geometry>
          <instance_geometry url="#quad-mesh"/>
        </node>
      </node>
    </visual_scene>
  </library_visual_scenes>
  <scene><instance_visual_scene url="#Scene"/></scene>
</COLLADA>
`

func TestLoadDAE(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "wing.dae", wingDAE)

	scene, err := FileLoader{}.Load(p, mathutil.Vec3{1, 1, 1})
	require.NoError(t, err)
	require.Len(t, scene.Parts, 3)

	left := scene.Parts[0]
	assert.Equal(t, "tri", left.Name)
	require.Len(t, left.Mesh.Vertices, 3)
	assert.InDelta(t, 1.0, left.Mesh.Vertices[1][0], 1e-6)
	assert.Len(t, left.Mesh.UVs, 3)
	assert.Equal(t, [][3]uint32{{0, 1, 2}}, left.Mesh.Faces)
	// node transforms compose and translations convert to meters
	assert.True(t, left.Local.Translation().Sub(mathutil.Vec3{1, 0, 1}).Len() < 1e-9)
	p1 := left.Local.MulPoint(mathutil.Vec3{1, 0, 0})
	assert.InDelta(t, 1.0, p1[0], 1e-9)
	assert.InDelta(t, 1.0, p1[1], 1e-9)
	require.NotNil(t, left.Material)
	assert.Equal(t, filepath.Join(dir, "skin.png"), left.Material.Texture)

	right := scene.Parts[1]
	assert.Equal(t, "tri.1", right.Name)
	require.NotNil(t, right.Material)
	assert.Equal(t, [4]float64{0.8, 0.1, 0.1, 1}, *right.Material.Color)
	assert.True(t, right.Local.Translation().Sub(mathutil.Vec3{0, 0, 1}).Len() < 1e-9)

	quad := scene.Parts[2]
	assert.Equal(t, "quad", quad.Name)
	assert.Nil(t, quad.Material)
	assert.Len(t, quad.Mesh.Faces, 2)
}

func TestLoadDAE_NoScene(t *testing.T) {
	doc := `<COLLADA><library_geometries><geometry id="g"><mesh>
<source id="s"><float_array>0 0 0 1 0 0 0 1 0</float_array><technique_common><accessor stride="3"/></technique_common></source>
<vertices id="v"><input semantic="POSITION" source="#s"/></vertices>
<triangles count="1"><input semantic="VERTEX" source="#v" offset="0"/><p>0 1 2</p></triangles>
</mesh></geometry></library_geometries></COLLADA>`
	p := writeFile(t, t.TempDir(), "g.dae", doc)
	scene, err := FileLoader{}.Load(p, mathutil.Vec3{1, 1, 1})
	require.NoError(t, err)
	require.Len(t, scene.Parts, 1)
	assert.Equal(t, "g", scene.Parts[0].Name)
	assert.True(t, scene.Parts[0].Local.IsIdentity())
}

func TestLoadGLB(t *testing.T) {
	doc := gltf.NewDocument()
	pos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}})
	idx := modeler.WriteIndices(doc, []uint32{0, 1, 2})
	doc.Materials = []*gltf.Material{{
		Name:                 "red",
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{BaseColorFactor: &[4]float64{1, 0, 0, 1}},
	}}
	doc.Meshes = []*gltf.Mesh{{
		Name: "tri",
		Primitives: []*gltf.Primitive{{
			Mode:       gltf.PrimitiveTriangles,
			Indices:    gltf.Index(idx),
			Attributes: map[string]int{gltf.POSITION: pos},
			Material:   gltf.Index(0),
		}},
	}}
	doc.Nodes = []*gltf.Node{
		{Name: "root", Translation: [3]float64{0, 0, 2}, Children: []int{1}},
		{Name: "child", Mesh: gltf.Index(0), Translation: [3]float64{1, 0, 0}},
	}
	doc.Scenes[0].Nodes = []int{0}

	p := filepath.Join(t.TempDir(), "tri.glb")
	require.NoError(t, gltf.SaveBinary(doc, p))

	scene, err := FileLoader{}.Load(p, mathutil.Vec3{3, 3, 3})
	require.NoError(t, err)
	require.Len(t, scene.Parts, 1)
	part := scene.Parts[0]
	assert.Equal(t, "tri", part.Name)
	assert.Equal(t, [3]float32{3, 0, 0}, part.Mesh.Vertices[1])
	assert.Equal(t, [][3]uint32{{0, 1, 2}}, part.Mesh.Faces)
	assert.True(t, part.Local.ApproxEqual(mathutil.Translate4(mathutil.Vec3{1, 0, 2}), 1e-12))
	require.NotNil(t, part.Material)
	assert.Equal(t, [4]float64{1, 0, 0, 1}, *part.Material.Color)
}

// squareDAE wraps one primitive element in a document whose geometry has the
// unit square as its positions.
func squareDAE(prim string) string {
	return `<COLLADA><library_geometries><geometry id="sq"><mesh>
<source id="s"><float_array>0 0 0 1 0 0 1 1 0 0 1 0</float_array><technique_common><accessor stride="3"/></technique_common></source>
<vertices id="v"><input semantic="POSITION" source="#s"/></vertices>
` + prim + `
</mesh></geometry></library_geometries></COLLADA>`
}

func TestLoadDAE_Primitives(t *testing.T) {
	const in = `<input semantic="VERTEX" source="#v" offset="0"/>`
	tests := []struct {
		name  string
		prim  string
		faces [][3]uint32
		err   string
	}{
		{
			name:  "polygons",
			prim:  `<polygons count="2">` + in + `<p>0 1 2 3</p><p>0 2 3</p></polygons>`,
			faces: [][3]uint32{{0, 1, 2}, {0, 2, 3}, {0, 2, 3}},
		},
		{
			name:  "trifans",
			prim:  `<trifans count="1">` + in + `<p>0 1 2 3</p></trifans>`,
			faces: [][3]uint32{{0, 1, 2}, {0, 2, 3}},
		},
		{
			name:  "tristrips",
			prim:  `<tristrips count="1">` + in + `<p>0 1 3 2</p></tristrips>`,
			faces: [][3]uint32{{0, 1, 2}, {2, 1, 3}},
		},
		{
			name: "zero vcount",
			prim: `<polylist count="2">` + in + `<vcount>3 0</vcount><p>0 1 2</p></polylist>`,
			err:  "polygon with 0 vertices",
		},
		{
			name: "short index list",
			prim: `<polylist count="2">` + in + `<vcount>3 3</vcount><p>0 1 2</p></polylist>`,
			err:  "shorter than vcount",
		},
		{
			name: "partial triangle",
			prim: `<triangles count="1">` + in + `<p>0 1</p></triangles>`,
			err:  "2 corners",
		},
		{
			name: "position out of range",
			prim: `<triangles count="1">` + in + `<p>0 1 7</p></triangles>`,
			err:  "position index 7",
		},
		{
			name: "negative position",
			prim: `<triangles count="1">` + in + `<p>0 -1 2</p></triangles>`,
			err:  "position index -1",
		},
		{
			name: "polygon with hole",
			prim: `<polygons count="1">` + in + `<ph><p>0 1 2 3</p><h>0 1 2</h></ph></polygons>`,
			err:  "holes",
		},
		{
			name: "lines",
			prim: `<lines count="2">` + in + `<p>0 1 2 3</p></lines>`,
			err:  "<lines> has no faces",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := writeFile(t, t.TempDir(), "sq.dae", squareDAE(tt.prim))
			var scene *Scene
			var err error
			require.NotPanics(t, func() { scene, err = FileLoader{}.Load(p, mathutil.Vec3{1, 1, 1}) })
			if tt.err != "" {
				assert.ErrorContains(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			require.Len(t, scene.Parts, 1)
			assert.Equal(t, "sq", scene.Parts[0].Name)
			assert.Equal(t, tt.faces, scene.Parts[0].Mesh.Faces)
		})
	}
}

func TestLoadDAE_LinesUnsupported(t *testing.T) {
	prim := `<linestrips count="1"><input semantic="VERTEX" source="#v" offset="0"/><p>0 1 2</p></linestrips>`
	p := writeFile(t, t.TempDir(), "sq.dae", squareDAE(prim))
	_, err := FileLoader{}.Load(p, mathutil.Vec3{1, 1, 1})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

const glassDAE = `<COLLADA>
  <library_effects>
    <effect id="tint-fx"><profile_COMMON><technique sid="common"><phong>
      <diffuse><color>0.2 0.4 0.6 1</color></diffuse>
      <transparent opaque="A_ONE"><color>1 1 1 0.5</color></transparent>
      <transparency><float>0.8</float></transparency>
    </phong></technique></profile_COMMON></effect>
    <effect id="lone-fx"><profile_COMMON><technique sid="common"><phong>
      <diffuse><color>0.5 0.5 0.5 1</color></diffuse>
      <transparency><float>0</float></transparency>
    </phong></technique></profile_COMMON></effect>
    <effect id="smoke-fx"><profile_COMMON><technique sid="common"><lambert>
      <diffuse><color>0.3 0.3 0.3 1</color></diffuse>
      <transparent opaque="RGB_ZERO"><color>0.5 0.5 0.5 1</color></transparent>
    </lambert></technique></profile_COMMON></effect>
  </library_effects>
  <library_materials>
    <material id="tint"><instance_effect url="#tint-fx"/></material>
    <material id="smoke"><instance_effect url="#smoke-fx"/></material>
    <material id="lone"><instance_effect url="#lone-fx"/></material>
  </library_materials>
  <library_geometries><geometry id="sq" name="sq"><mesh>
    <source id="s"><float_array>0 0 0 1 0 0 0 1 0</float_array><technique_common><accessor stride="3"/></technique_common></source>
    <vertices id="v"><input semantic="POSITION" source="#s"/></vertices>
    <triangles material="m" count="1"><input semantic="VERTEX" source="#v" offset="0"/><p>0 1 2</p></triangles>
  </mesh></geometry></library_geometries>
  <library_visual_scenes><visual_scene id="S">
    <node id="a"><instance_geometry url="#sq"><bind_material><technique_common>
      <instance_material symbol="m" target="#tint"/>
    </technique_common></bind_material></instance_geometry></node>
    <node id="b"><instance_geometry url="#sq"><bind_material><technique_common>
      <instance_material symbol="m" target="#smoke"/>
    </technique_common></bind_material></instance_geometry></node>
    <node id="c"><instance_geometry url="#sq"><bind_material><technique_common>
      <instance_material symbol="m" target="#lone"/>
    </technique_common></bind_material></instance_geometry></node>
  </visual_scene></library_visual_scenes>
  <scene><instance_visual_scene url="#S"/></scene>
</COLLADA>`

func TestLoadDAE_Transparency(t *testing.T) {
	p := writeFile(t, t.TempDir(), "glass.dae", glassDAE)
	scene, err := FileLoader{}.Load(p, mathutil.Vec3{1, 1, 1})
	require.NoError(t, err)
	require.Len(t, scene.Parts, 3)

	tint := scene.Parts[0].Material
	require.NotNil(t, tint)
	require.NotNil(t, tint.Color)
	assert.InDelta(t, 0.4, tint.Color[3], 1e-9)
	assert.InDelta(t, 0.6, tint.Color[2], 1e-9)

	smoke := scene.Parts[1].Material
	require.NotNil(t, smoke)
	require.NotNil(t, smoke.Color)
	assert.InDelta(t, 0.5, smoke.Color[3], 1e-6)

	// transparency without <transparent> leaves the material opaque
	lone := scene.Parts[2].Material
	require.NotNil(t, lone)
	require.NotNil(t, lone.Color)
	assert.Equal(t, 1.0, lone.Color[3])
}

func glbWith(t *testing.T, mode gltf.PrimitiveMode, indices []uint32) string {
	t.Helper()
	doc := gltf.NewDocument()
	pos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0}, {2, 0, 0}})
	idx := modeler.WriteIndices(doc, indices)
	doc.Meshes = []*gltf.Mesh{{
		Name: "m",
		Primitives: []*gltf.Primitive{{
			Mode:       mode,
			Indices:    gltf.Index(idx),
			Attributes: map[string]int{gltf.POSITION: pos},
		}},
	}}
	doc.Nodes = []*gltf.Node{{Name: "n", Mesh: gltf.Index(0)}}
	doc.Scenes[0].Nodes = []int{0}
	p := filepath.Join(t.TempDir(), "m.glb")
	require.NoError(t, gltf.SaveBinary(doc, p))
	return p
}

func TestLoadGLB_Modes(t *testing.T) {
	tests := []struct {
		name    string
		mode    gltf.PrimitiveMode
		indices []uint32
		faces   [][3]uint32
	}{
		{"strip", gltf.PrimitiveTriangleStrip, []uint32{0, 1, 2, 3}, [][3]uint32{{0, 1, 2}, {2, 1, 3}}},
		{"fan", gltf.PrimitiveTriangleFan, []uint32{0, 1, 3, 2}, [][3]uint32{{0, 1, 3}, {0, 3, 2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scene, err := FileLoader{}.Load(glbWith(t, tt.mode, tt.indices), mathutil.Vec3{1, 1, 1})
			require.NoError(t, err)
			require.Len(t, scene.Parts, 1)
			assert.Equal(t, tt.faces, scene.Parts[0].Mesh.Faces)
		})
	}
}

func TestLoadGLB_LinesUnsupported(t *testing.T) {
	_, err := FileLoader{}.Load(glbWith(t, gltf.PrimitiveLines, []uint32{0, 1, 1, 2}), mathutil.Vec3{1, 1, 1})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
