package asset

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"urdf-asset-renderer/internal/mathutil"
	"urdf-asset-renderer/internal/meshio"
	"urdf-asset-renderer/internal/skeleton"
	"urdf-asset-renderer/internal/urdf"
)

// ErrUnsupportedGeometry is returned for a visual whose geometry kind the
// resolver does not handle.
var ErrUnsupportedGeometry = errors.New("asset: unsupported geometry")

// Options controls resolution.
type Options struct {
	// CollapseFixedJoints folds links joined by fixed joints into their
	// parent's group and expresses poses in the group root's frame.
	CollapseFixedJoints bool
	// ReplaceCylinderWithCapsule emits cylinders as capsules of the same
	// radius and length.
	ReplaceCylinderWithCapsule bool
	// UseMeshMaterials skips the document's named material table so the
	// mesh file's own material wins over it.
	UseMeshMaterials bool
	Logger           *slog.Logger
}

// LoadOptions combines parsing and resolution options for Load.
type LoadOptions struct {
	URDF urdf.Options
	Options
}

// cylinderUp rotates the primitive's +Y axis onto the description's +Z axis.
var cylinderUp = mathutil.FromMat3Translation(mathutil.RotX(math.Pi/2), mathutil.Vec3{})

// Load parses the description at path and resolves it against the local
// filesystem.
func Load(path string, opts LoadOptions) (*Resource, error) {
	robot, err := urdf.ParseFile(path, opts.URDF)
	if err != nil {
		return nil, err
	}
	return Resolve(robot, meshio.FileLoader{}, opts.Options)
}

type meshKey struct {
	path  string
	scale mathutil.Vec3
}

// resolution is the state of one Resolve call.
type resolution struct {
	robot  *urdf.Robot
	loader meshio.Loader
	opts   Options
	log    *slog.Logger
	tree   *skeleton.Tree
	scenes map[meshKey]*meshio.Scene
	counts map[string]int
	res    *Resource
}

// Resolve builds the asset list of robot. Mesh files are read through
// loader, once per distinct path and scale. Any error aborts the whole
// call and no resource is returned.
func Resolve(robot *urdf.Robot, loader meshio.Loader, opts Options) (*Resource, error) {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	base, err := robot.BaseLink()
	if err != nil {
		return nil, fmt.Errorf("asset: %s: %w", robot.Name, err)
	}
	// The tree is validated even when collapsing is disabled.
	tree, err := skeleton.Collapse(robot.Joints, base, opts.CollapseFixedJoints)
	if err != nil {
		return nil, fmt.Errorf("asset: %s: %w", robot.Name, err)
	}

	r := &resolution{
		robot:  robot,
		loader: loader,
		opts:   opts,
		log:    log,
		tree:   tree,
		scenes: make(map[meshKey]*meshio.Scene),
		counts: make(map[string]int),
		res: &Resource{
			Name:     robot.Name,
			Filename: robot.Filename,
			Base:     base,
			Tree:     tree,
			index:    make(map[Key]int),
		},
	}
	for i := range robot.Links {
		if err := r.link(&robot.Links[i]); err != nil {
			return nil, fmt.Errorf("asset: %s: %w", robot.Name, err)
		}
	}

	log.Debug("resolved robot",
		"robot", robot.Name,
		"base", base,
		"links", len(robot.Links),
		"groups", len(tree.Canonical()),
		"assets", len(r.res.Entries),
		"mesh_files", len(r.scenes))
	return r.res, nil
}

func (r *resolution) link(l *urdf.Link) error {
	canonical, ok := r.tree.Root(l.Name)
	if !ok {
		return fmt.Errorf("link %q is not connected to base %q: %w", l.Name, r.tree.Base, skeleton.ErrMalformedTree)
	}
	pose, _ := r.tree.Pose(l.Name)

	for vi := range l.Visuals {
		v := &l.Visuals[vi]
		linkPose := mathutil.Mat4Mul(pose, v.Origin)
		if err := r.visual(l.Name, canonical, vi, v, linkPose); err != nil {
			return fmt.Errorf("link %q visual %d: %w", l.Name, vi, err)
		}
	}
	return nil
}

func (r *resolution) visual(source, canonical string, vi int, v *urdf.Visual, pose mathutil.Mat4) error {
	g := v.Geometry
	emit := func(geom Geometry, native *meshio.Material, p mathutil.Mat4) {
		key := MakeKey(canonical, r.counts[canonical])
		r.counts[canonical]++
		e := Entry{
			Key:        key,
			Link:       canonical,
			SourceLink: source,
			Visual:     vi,
			Geometry:   geom,
			Material:   resolveMaterial(v, r.robot.Materials, native, r.opts.UseMeshMaterials),
			Pose:       p,
		}
		r.res.index[key] = len(r.res.Entries)
		r.res.Entries = append(r.res.Entries, e)
		r.log.Debug("asset",
			"key", string(key),
			"kind", geom.Kind.String(),
			"source_link", source,
			"material", e.Material.Source.String())
	}

	switch g.Kind {
	case urdf.GeometryMesh:
		scene, err := r.scene(g.Mesh)
		if err != nil {
			return err
		}
		for i := range scene.Parts {
			part := &scene.Parts[i]
			emit(Geometry{
				Kind:       KindMesh,
				Mesh:       &part.Mesh,
				MeshSource: scene.Path,
				Part:       part.Name,
				Scale:      g.Mesh.Scale,
			}, part.Material, mathutil.Mat4Mul(pose, part.Local))
		}
	case urdf.GeometrySphere:
		emit(Geometry{Kind: KindSphere, Radius: g.Radius}, nil, pose)
	case urdf.GeometryBox:
		emit(Geometry{Kind: KindBox, Size: g.Size}, nil, pose)
	case urdf.GeometryCylinder, urdf.GeometryCapsule:
		kind := KindCylinder
		if g.Kind == urdf.GeometryCapsule || r.opts.ReplaceCylinderWithCapsule {
			kind = KindCapsule
		}
		emit(Geometry{Kind: kind, Radius: g.Radius, Length: g.Length}, nil, mathutil.Mat4Mul(pose, cylinderUp))
	default:
		tag := g.Tag
		if tag == "" {
			tag = g.Kind.String()
		}
		return fmt.Errorf("%w: %s", ErrUnsupportedGeometry, tag)
	}
	return nil
}

// scene loads a mesh file once per (path, scale).
func (r *resolution) scene(m *urdf.Mesh) (*meshio.Scene, error) {
	k := meshKey{path: m.Path, scale: m.Scale}
	if s, ok := r.scenes[k]; ok {
		return s, nil
	}
	s, err := r.loader.Load(m.Path, m.Scale)
	if err != nil {
		return nil, err
	}
	r.scenes[k] = s
	return s, nil
}
