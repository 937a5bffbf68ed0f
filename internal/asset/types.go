// Package asset turns a parsed robot description into a flat, keyed list of
// renderable assets: one entry per visual (or per sub-mesh of a mesh file),
// each with its geometry, resolved material and pose relative to its
// canonical link.
package asset

import (
	"fmt"
	"strconv"
	"strings"

	"urdf-asset-renderer/internal/mathutil"
	"urdf-asset-renderer/internal/meshio"
	"urdf-asset-renderer/internal/skeleton"
)

// Key identifies an asset as "{canonical link}/{index}".
type Key string

// MakeKey builds the key of the index-th asset of link.
func MakeKey(link string, index int) Key {
	return Key(link + "/" + strconv.Itoa(index))
}

// Link returns the canonical link part. Link names may contain '/'.
func (k Key) Link() string {
	i := strings.LastIndexByte(string(k), '/')
	if i < 0 {
		return ""
	}
	return string(k[:i])
}

// Index returns the numeric part, or -1 when the key is malformed.
func (k Key) Index() int {
	i := strings.LastIndexByte(string(k), '/')
	if i < 0 {
		return -1
	}
	n, err := strconv.Atoi(string(k[i+1:]))
	if err != nil || n < 0 {
		return -1
	}
	return n
}

// Kind is the geometry variant of an asset.
type Kind int

const (
	KindMesh Kind = iota
	KindSphere
	KindBox
	KindCylinder
	KindCapsule
)

func (k Kind) String() string {
	switch k {
	case KindMesh:
		return "mesh"
	case KindSphere:
		return "sphere"
	case KindBox:
		return "box"
	case KindCylinder:
		return "cylinder"
	case KindCapsule:
		return "capsule"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Geometry is a tagged union; the fields that apply depend on Kind.
type Geometry struct {
	Kind Kind

	// KindMesh
	Mesh       *meshio.Mesh
	MeshSource string // resolved mesh file path
	Part       string // sub-mesh name within the file
	// Scale is the URDF mesh scale, already applied to Mesh vertices.
	Scale mathutil.Vec3

	Radius float64       // sphere, cylinder, capsule
	Length float64       // cylinder, capsule
	Size   mathutil.Vec3 // box
}

// MaterialSource records which rule produced an asset's material.
type MaterialSource int

const (
	MaterialInline MaterialSource = iota
	MaterialNamed
	MaterialMesh
	MaterialDefault
)

func (s MaterialSource) String() string {
	switch s {
	case MaterialInline:
		return "inline"
	case MaterialNamed:
		return "named"
	case MaterialMesh:
		return "mesh"
	}
	return "default"
}

// DefaultColor is used when no rule supplies a color.
var DefaultColor = [4]float64{0.9, 0.9, 0.9, 1}

// Material is the resolved appearance of an asset. Color channels are in
// [0, 1].
type Material struct {
	Color   [4]float64
	Texture string
	Source  MaterialSource
}

// Entry is one renderable asset.
type Entry struct {
	Key        Key
	Link       string // canonical link
	SourceLink string // link that declared the visual
	Visual     int    // visual index within SourceLink
	Geometry   Geometry
	Material   Material
	// Pose places the geometry in the canonical link's frame.
	Pose mathutil.Mat4
}

// Resource is the result of resolving one robot. Entries are in emission
// order: link document order, then visual order, then sub-mesh order.
type Resource struct {
	Name     string
	Filename string
	Base     string
	Entries  []Entry
	Tree     *skeleton.Tree

	index map[Key]int
}

// Lookup returns the entry with key k.
func (r *Resource) Lookup(k Key) (*Entry, bool) {
	i, ok := r.index[k]
	if !ok {
		return nil, false
	}
	return &r.Entries[i], true
}

// Keys returns all keys in emission order.
func (r *Resource) Keys() []Key {
	keys := make([]Key, len(r.Entries))
	for i, e := range r.Entries {
		keys[i] = e.Key
	}
	return keys
}

// Len returns the number of assets.
func (r *Resource) Len() int { return len(r.Entries) }
