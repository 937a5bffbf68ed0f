package urdf

import (
	"fmt"

	"urdf-asset-renderer/internal/mathutil"
)

// GeometryKind is the closed set of visual geometry shapes.
type GeometryKind int

const (
	GeometryUnknown GeometryKind = iota
	GeometryMesh
	GeometrySphere
	GeometryBox
	GeometryCylinder
	GeometryCapsule
)

func (k GeometryKind) String() string {
	switch k {
	case GeometryMesh:
		return "mesh"
	case GeometrySphere:
		return "sphere"
	case GeometryBox:
		return "box"
	case GeometryCylinder:
		return "cylinder"
	case GeometryCapsule:
		return "capsule"
	}
	return "unknown"
}

// Mesh references an external mesh file.
type Mesh struct {
	Filename string        // as written in the document
	Path     string        // resolved filesystem path
	Scale    mathutil.Vec3 // (1,1,1) when absent
}

// Geometry is a tagged union: Kind selects which payload fields are valid.
//   - GeometryMesh: Mesh
//   - GeometrySphere: Radius
//   - GeometryBox: Size
//   - GeometryCylinder, GeometryCapsule: Radius, Length
//   - GeometryUnknown: Tag holds the unrecognized element name
type Geometry struct {
	Kind   GeometryKind
	Mesh   *Mesh
	Radius float64
	Length float64
	Size   mathutil.Vec3
	Tag    string
}

// Color is an RGBA color with channels nominally in [0,1].
type Color [4]float64

// Material is either inline on a visual or a named document-level entry.
type Material struct {
	Name    string
	Color   *Color
	Texture string // resolved path, "" when absent
}

// Visual is one renderable shape attached to a link.
type Visual struct {
	Name     string
	Origin   mathutil.Mat4
	Geometry Geometry
	Material *Material
}

// Link is a node of the kinematic tree.
type Link struct {
	Name    string
	Visuals []Visual
}

// Joint types defined by URDF.
const (
	JointFixed      = "fixed"
	JointRevolute   = "revolute"
	JointContinuous = "continuous"
	JointPrismatic  = "prismatic"
	JointFloating   = "floating"
	JointPlanar     = "planar"
)

// Joint is a directed edge parent → child with a parent-frame origin.
type Joint struct {
	Name   string
	Type   string
	Parent string
	Child  string
	Origin mathutil.Mat4
}

// IsFixed reports whether the joint rigidly connects parent and child.
func (j Joint) IsFixed() bool {
	return j.Type == JointFixed
}

// Robot is the parsed description. Links and Joints keep document order.
// It is never mutated after Parse returns.
type Robot struct {
	Name      string
	Filename  string
	Links     []Link
	Joints    []Joint
	Materials map[string]Material

	baseLink string
}

// Link looks up a link by name.
func (r *Robot) Link(name string) (*Link, bool) {
	for i := range r.Links {
		if r.Links[i].Name == name {
			return &r.Links[i], true
		}
	}
	return nil, false
}

// BaseLink returns the root of the kinematic tree: the configured base link,
// or else the only link that is never a joint child.
func (r *Robot) BaseLink() (string, error) {
	if r.baseLink != "" {
		if _, ok := r.Link(r.baseLink); !ok {
			return "", fmt.Errorf("urdf: base link %q not declared: %w", r.baseLink, ErrNoBaseLink)
		}
		return r.baseLink, nil
	}

	children := make(map[string]bool, len(r.Joints))
	for _, j := range r.Joints {
		children[j.Child] = true
	}
	var candidates []string
	for _, l := range r.Links {
		if !children[l.Name] {
			candidates = append(candidates, l.Name)
		}
	}
	switch len(candidates) {
	case 0:
		return "", fmt.Errorf("urdf: %s: %w", r.Name, ErrNoBaseLink)
	case 1:
		return candidates[0], nil
	}
	return "", fmt.Errorf("urdf: %s: candidates %v: %w", r.Name, candidates, ErrAmbiguousBase)
}
