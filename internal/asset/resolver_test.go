package asset

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"urdf-asset-renderer/internal/mathutil"
	"urdf-asset-renderer/internal/meshio"
	"urdf-asset-renderer/internal/skeleton"
	"urdf-asset-renderer/internal/urdf"
)

// fakeLoader serves canned scenes and counts calls per path.
type fakeLoader struct {
	scenes map[string][]meshio.Part
	calls  map[string]int
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{scenes: make(map[string][]meshio.Part), calls: make(map[string]int)}
}

func (f *fakeLoader) Load(path string, scale mathutil.Vec3) (*meshio.Scene, error) {
	f.calls[path]++
	parts, ok := f.scenes[path]
	if !ok {
		if _, err := meshio.FormatOf(path); err != nil {
			return nil, err
		}
		return nil, errors.New("no such mesh")
	}
	return &meshio.Scene{Path: path, Format: meshio.FormatOBJ, Parts: parts}, nil
}

func part(name string, local mathutil.Mat4, mat *meshio.Material) meshio.Part {
	return meshio.Part{
		Name:     name,
		Mesh:     meshio.Mesh{Vertices: [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}, Faces: [][3]uint32{{0, 1, 2}}},
		Local:    local,
		Material: mat,
	}
}

func parse(t *testing.T, doc string) *urdf.Robot {
	t.Helper()
	r, err := urdf.Parse(strings.NewReader(doc), urdf.Options{})
	require.NoError(t, err)
	return r
}

func TestKey(t *testing.T) {
	k := MakeKey("arm/upper", 3)
	assert.Equal(t, Key("arm/upper/3"), k)
	assert.Equal(t, "arm/upper", k.Link())
	assert.Equal(t, 3, k.Index())

	assert.Equal(t, -1, Key("nolink").Index())
	assert.Equal(t, "", Key("nolink").Link())
	assert.Equal(t, -1, Key("a/x").Index())
}

func TestResolve_TwoSpheres(t *testing.T) {
	robot := parse(t, `<robot name="r"><link name="link">
  <visual><geometry><sphere radius="0.1"/></geometry></visual>
  <visual><origin xyz="0 0 1"/><geometry><sphere radius="0.2"/></geometry></visual>
</link></robot>`)

	res, err := Resolve(robot, newFakeLoader(), Options{CollapseFixedJoints: true})
	require.NoError(t, err)
	assert.Equal(t, []Key{"link/0", "link/1"}, res.Keys())
	assert.Equal(t, 2, res.Len())

	e, ok := res.Lookup("link/1")
	require.True(t, ok)
	assert.Equal(t, KindSphere, e.Geometry.Kind)
	assert.Equal(t, 0.2, e.Geometry.Radius)
	assert.Equal(t, mathutil.Translate4(mathutil.Vec3{0, 0, 1}), e.Pose)
	assert.Equal(t, DefaultColor, e.Material.Color)
	assert.Equal(t, MaterialDefault, e.Material.Source)

	_, ok = res.Lookup("link/2")
	assert.False(t, ok)
}

func TestResolve_CylinderAndCapsule(t *testing.T) {
	doc := `<robot name="r"><link name="l">
  <visual><origin xyz="1 2 3"/><geometry><cylinder radius="0.1" length="0.5"/></geometry></visual>
  <visual><geometry><capsule radius="0.2" length="0.3"/></geometry></visual>
</link></robot>`
	rx := mathutil.FromMat3Translation(mathutil.RotX(math.Pi/2), mathutil.Vec3{})

	res, err := Resolve(parse(t, doc), newFakeLoader(), Options{})
	require.NoError(t, err)
	cyl := res.Entries[0]
	assert.Equal(t, KindCylinder, cyl.Geometry.Kind)
	assert.Equal(t, 0.5, cyl.Geometry.Length)
	assert.Equal(t, mathutil.Mat4Mul(mathutil.Translate4(mathutil.Vec3{1, 2, 3}), rx), cyl.Pose)
	// the primitive's +Y axis ends up along +Z
	up := cyl.Pose.MulDir(mathutil.Vec3{0, 1, 0})
	assert.InDelta(t, 1.0, up[2], 1e-12)

	capsule := res.Entries[1]
	assert.Equal(t, KindCapsule, capsule.Geometry.Kind)
	assert.Equal(t, rx, capsule.Pose)

	res, err = Resolve(parse(t, doc), newFakeLoader(), Options{ReplaceCylinderWithCapsule: true})
	require.NoError(t, err)
	assert.Equal(t, KindCapsule, res.Entries[0].Geometry.Kind)
	assert.Equal(t, 0.1, res.Entries[0].Geometry.Radius)
	assert.Equal(t, 0.5, res.Entries[0].Geometry.Length)
}

const collapseDoc = `<robot name="arm">
  <link name="base"><visual><geometry><box size="1 1 1"/></geometry></visual></link>
  <link name="plate"><visual><geometry><box size="1 1 0.1"/></geometry></visual></link>
  <link name="arm"><visual><geometry><sphere radius="0.1"/></geometry></visual></link>
  <link name="tip"><visual><geometry><sphere radius="0.05"/></geometry></visual></link>
  <joint name="base_plate" type="fixed">
    <parent link="base"/><child link="plate"/><origin xyz="0 0 0.5"/>
  </joint>
  <joint name="plate_arm" type="revolute">
    <parent link="plate"/><child link="arm"/><origin xyz="0 0 0.2"/>
  </joint>
  <joint name="arm_tip" type="fixed">
    <parent link="arm"/><child link="tip"/><origin xyz="1 0 0" rpy="0 0 1"/>
  </joint>
</robot>`

func TestResolve_Collapse(t *testing.T) {
	robot := parse(t, collapseDoc)

	res, err := Resolve(robot, newFakeLoader(), Options{CollapseFixedJoints: true})
	require.NoError(t, err)
	assert.Equal(t, "base", res.Base)
	assert.Equal(t, []Key{"base/0", "base/1", "arm/0", "arm/1"}, res.Keys())

	plate, _ := res.Lookup("base/1")
	assert.Equal(t, "plate", plate.SourceLink)
	assert.Equal(t, "base", plate.Link)
	assert.Equal(t, mathutil.Translate4(mathutil.Vec3{0, 0, 0.5}), plate.Pose)

	tip, _ := res.Lookup("arm/1")
	assert.Equal(t, robot.Joints[2].Origin, tip.Pose)

	res, err = Resolve(robot, newFakeLoader(), Options{CollapseFixedJoints: false})
	require.NoError(t, err)
	assert.Equal(t, []Key{"base/0", "plate/0", "arm/0", "tip/0"}, res.Keys())
	for _, e := range res.Entries {
		assert.Equal(t, e.SourceLink, e.Link)
		assert.Equal(t, mathutil.Mat4Identity(), e.Pose)
	}
}

func TestResolve_MaterialPrecedence(t *testing.T) {
	doc := `<robot name="r">
  <material name="steel"><color rgba="0.5 0.5 0.5 1"/><texture filename="/tex/steel.png"/></material>
  <material name="hot"><color rgba="2 -1 0.5 1.5"/></material>
  <link name="l">
    <visual><geometry><mesh filename="/m/a.obj"/></geometry>
      <material name="steel"><color rgba="1 0 0 1"/></material></visual>
    <visual><geometry><mesh filename="/m/a.obj"/></geometry><material name="steel"/></visual>
    <visual><geometry><mesh filename="/m/a.obj"/></geometry><material name="unknown"/></visual>
    <visual><geometry><mesh filename="/m/b.obj"/></geometry></visual>
    <visual><geometry><sphere radius="1"/></geometry><material name="hot"/></visual>
  </link>
</robot>`
	native := &meshio.Material{Color: &[4]float64{0, 1, 0, 1}, Texture: "/m/native.png"}
	loader := newFakeLoader()
	loader.scenes["/m/a.obj"] = []meshio.Part{part("a", mathutil.Mat4Identity(), native)}
	loader.scenes["/m/b.obj"] = []meshio.Part{part("b", mathutil.Mat4Identity(), nil)}

	res, err := Resolve(parse(t, doc), loader, Options{})
	require.NoError(t, err)
	require.Equal(t, 5, res.Len())

	tests := []struct {
		key     Key
		color   [4]float64
		texture string
		source  MaterialSource
	}{
		{"l/0", [4]float64{1, 0, 0, 1}, "/tex/steel.png", MaterialInline},
		{"l/1", [4]float64{0.5, 0.5, 0.5, 1}, "/tex/steel.png", MaterialNamed},
		{"l/2", [4]float64{0, 1, 0, 1}, "/m/native.png", MaterialMesh},
		{"l/3", DefaultColor, "", MaterialDefault},
		{"l/4", [4]float64{1, 0, 0.5, 1}, "", MaterialNamed},
	}
	for _, tt := range tests {
		t.Run(string(tt.key), func(t *testing.T) {
			e, ok := res.Lookup(tt.key)
			require.True(t, ok)
			assert.Equal(t, tt.color, e.Material.Color)
			assert.Equal(t, tt.texture, e.Material.Texture)
			assert.Equal(t, tt.source, e.Material.Source)
		})
	}

	// The named table is ignored in favour of the mesh's own material.
	res, err = Resolve(parse(t, doc), loader, Options{UseMeshMaterials: true})
	require.NoError(t, err)
	e, _ := res.Lookup("l/1")
	assert.Equal(t, MaterialMesh, e.Material.Source)
	assert.Equal(t, [4]float64{0, 1, 0, 1}, e.Material.Color)
	assert.Equal(t, "/m/native.png", e.Material.Texture)
	e, _ = res.Lookup("l/0")
	assert.Equal(t, MaterialInline, e.Material.Source)
}

func TestResolve_SubMeshes(t *testing.T) {
	doc := `<robot name="r">
  <link name="base"><visual><geometry><box size="1 1 1"/></geometry></visual></link>
  <link name="body">
    <visual><origin xyz="0 0 1"/><geometry><mesh filename="/m/body.dae" scale="2 2 2"/></geometry></visual>
    <visual><geometry><mesh filename="/m/body.dae" scale="2 2 2"/></geometry></visual>
    <visual><geometry><mesh filename="/m/body.dae"/></geometry></visual>
  </link>
  <joint name="j" type="fixed"><parent link="base"/><child link="body"/><origin xyz="1 0 0"/></joint>
</robot>`
	wheel := mathutil.Translate4(mathutil.Vec3{0, 0.5, 0})
	loader := newFakeLoader()
	loader.scenes["/m/body.dae"] = []meshio.Part{
		part("hull", mathutil.Mat4Identity(), nil),
		part("wheel", wheel, nil),
	}

	res, err := Resolve(parse(t, doc), loader, Options{CollapseFixedJoints: true})
	require.NoError(t, err)
	assert.Equal(t, []Key{"base/0", "base/1", "base/2", "base/3", "base/4", "base/5", "base/6"}, res.Keys())
	// once per distinct (path, scale)
	assert.Equal(t, 2, loader.calls["/m/body.dae"])

	w, _ := res.Lookup("base/2")
	assert.Equal(t, "wheel", w.Geometry.Part)
	assert.Equal(t, "/m/body.dae", w.Geometry.MeshSource)
	assert.Equal(t, mathutil.Vec3{2, 2, 2}, w.Geometry.Scale)
	plain, _ := res.Lookup("base/6")
	assert.Equal(t, mathutil.Vec3{1, 1, 1}, plain.Geometry.Scale)
	want := mathutil.Mat4Chain(
		mathutil.Translate4(mathutil.Vec3{1, 0, 0}),
		mathutil.Translate4(mathutil.Vec3{0, 0, 1}),
		wheel,
	)
	assert.Equal(t, want, w.Pose)
	assert.Equal(t, 0, w.Visual)
}

func TestResolve_EmptyMeshAndNoVisuals(t *testing.T) {
	doc := `<robot name="r">
  <link name="base"/>
  <link name="l"><visual><geometry><mesh filename="/m/empty.obj"/></geometry></visual>
    <visual><geometry><sphere radius="1"/></geometry></visual></link>
  <joint name="j" type="revolute"><parent link="base"/><child link="l"/></joint>
</robot>`
	loader := newFakeLoader()
	loader.scenes["/m/empty.obj"] = nil
	res, err := Resolve(parse(t, doc), loader, Options{CollapseFixedJoints: true})
	require.NoError(t, err)
	assert.Equal(t, []Key{"l/0"}, res.Keys())
	assert.Equal(t, []string{"base", "l"}, res.Tree.Canonical())
}

func TestResolve_Errors(t *testing.T) {
	loader := newFakeLoader()
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{
			name: "unknown geometry",
			doc:  `<robot name="r"><link name="a"><visual><geometry><torus r="1"/></geometry></visual></link></robot>`,
			want: ErrUnsupportedGeometry,
		},
		{
			name: "unsupported mesh format",
			doc:  `<robot name="r"><link name="a"><visual><geometry><mesh filename="/m/a.ply"/></geometry></visual></link></robot>`,
			want: meshio.ErrUnsupportedFormat,
		},
		{
			name: "malformed tree",
			doc: `<robot name="r"><link name="a"/><link name="b"/><link name="c"/>
<joint name="ab" type="fixed"><parent link="a"/><child link="b"/></joint>
<joint name="xc" type="fixed"><parent link="x"/><child link="c"/></joint></robot>`,
			want: skeleton.ErrMalformedTree,
		},
		{
			name: "no base",
			doc:  `<robot name="r"><link name="a"/><link name="b"/></robot>`,
			want: urdf.ErrAmbiguousBase,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, collapse := range []bool{true, false} {
				res, err := Resolve(parse(t, tt.doc), loader, Options{CollapseFixedJoints: collapse})
				assert.ErrorIs(t, err, tt.want)
				assert.Nil(t, res)
			}
		})
	}
}

func TestResolve_UnconnectedLinkWithBaseOverride(t *testing.T) {
	doc := `<robot name="r"><link name="a"/><link name="b"/></robot>`
	robot, err := urdf.Parse(strings.NewReader(doc), urdf.Options{BaseLink: "a"})
	require.NoError(t, err)
	_, err = Resolve(robot, newFakeLoader(), Options{})
	assert.ErrorIs(t, err, skeleton.ErrMalformedTree)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "meshes"), 0o755))
	obj := "v 0 0 0\nv 1 0 0\nv 0 1 0\no a\nf 1 2 3\no b\nf 3 2 1\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "meshes", "two.obj"), []byte(obj), 0o644))
	doc := `<robot name="r"><link name="base">
  <visual><geometry><mesh filename="meshes/two.obj" scale="0.5"/></geometry></visual>
</link></robot>`
	path := filepath.Join(dir, "r.urdf")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	res, err := Load(path, LoadOptions{Options: Options{CollapseFixedJoints: true}})
	require.NoError(t, err)
	assert.Equal(t, path, res.Filename)
	assert.Equal(t, []Key{"base/0", "base/1"}, res.Keys())
	e, _ := res.Lookup("base/1")
	assert.Equal(t, "b", e.Geometry.Part)
	assert.Equal(t, [3]float32{0.5, 0, 0}, e.Geometry.Mesh.Vertices[1])

	_, err = Load(filepath.Join(dir, "missing.urdf"), LoadOptions{})
	assert.Error(t, err)
}
