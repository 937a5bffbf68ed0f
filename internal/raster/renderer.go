// Package raster renders resolved robot assets into a preview image with a
// flat-shaded software rasterizer.
package raster

import (
	"image"
	"sort"

	"urdf-asset-renderer/internal/asset"
	"urdf-asset-renderer/internal/mathutil"
	"urdf-asset-renderer/internal/meshio"
	"urdf-asset-renderer/internal/shape"
	"urdf-asset-renderer/internal/texture"
	"urdf-asset-renderer/internal/viewmatrix"
)

// Options controls a render.
type Options struct {
	Size        int // output edge length before supersampling
	Supersample int
	Camera      viewmatrix.Camera
	Textures    texture.Resolver // may be nil
	// Segments is the tessellation resolution of round primitives.
	Segments int
}

type drawItem struct {
	points []mathutil.Vec3
	faces  [][3]uint32
	surf   Surface
	depth  float64 // mean view depth, for ordering translucent items
}

// Render draws every entry of res at frames[entry.Link] · entry.Pose.
// frames holds the world pose of each canonical link; a missing link is
// drawn at the origin. The image is Size*Supersample pixels square.
func Render(res *asset.Resource, frames map[string]mathutil.Mat4, opts Options) *image.NRGBA {
	ss := max(opts.Supersample, 1)
	renderSize := max(opts.Size, 1) * ss
	segs := opts.Segments
	if segs <= 0 {
		segs = shape.DefaultSegments
	}

	var items []drawItem
	var all []mathutil.Vec3
	for i := range res.Entries {
		e := &res.Entries[i]
		m := entryMesh(e.Geometry, segs)
		if m == nil || len(m.Faces) == 0 {
			continue
		}
		world, ok := frames[e.Link]
		if !ok {
			world = mathutil.Mat4Identity()
		}
		xf := mathutil.Mat4Mul(world, e.Pose)

		pts := make([]mathutil.Vec3, len(m.Vertices))
		for k, v := range m.Vertices {
			pts[k] = xf.MulPoint(mathutil.Vec3From32(v))
		}
		all = append(all, pts...)
		items = append(items, drawItem{points: pts, faces: m.Faces, surf: surface(e, m, opts.Textures)})
	}
	if len(items) == 0 {
		return image.NewNRGBA(image.Rect(0, 0, renderSize, renderSize))
	}

	proj := viewmatrix.Fit(all, opts.Camera, renderSize, renderSize/16)
	fb := NewFrameBuffer(renderSize, renderSize)
	lc := DefaultLightConfig()

	type projected struct {
		item       *drawItem
		px, py, pz []float64
	}
	var opaque, translucent []projected
	for i := range items {
		it := &items[i]
		px, py, pz := proj.Project(it.points)
		var sum float64
		for _, z := range pz {
			sum += z
		}
		it.depth = sum / float64(len(pz))
		p := projected{item: it, px: px, py: py, pz: pz}
		if it.surf.A < 255 {
			translucent = append(translucent, p)
		} else {
			opaque = append(opaque, p)
		}
	}

	for _, p := range opaque {
		for _, f := range p.item.faces {
			RasterizeTriangle(fb, p.px, p.py, p.pz, [3]int{int(f[0]), int(f[1]), int(f[2])}, &p.item.surf, &lc)
		}
	}
	// back to front
	sort.SliceStable(translucent, func(a, b int) bool { return translucent[a].item.depth < translucent[b].item.depth })
	for _, p := range translucent {
		for _, f := range p.item.faces {
			BlendTriangle(fb, p.px, p.py, p.pz, [3]int{int(f[0]), int(f[1]), int(f[2])}, &p.item.surf, &lc)
		}
	}
	return fb.Image()
}

// entryMesh returns the triangles of an asset in its own frame.
func entryMesh(g asset.Geometry, segs int) *meshio.Mesh {
	var m meshio.Mesh
	switch g.Kind {
	case asset.KindMesh:
		return g.Mesh
	case asset.KindSphere:
		m = shape.Sphere(g.Radius, segs, segs/2)
	case asset.KindBox:
		m = shape.Box(g.Size)
	case asset.KindCylinder:
		m = shape.Cylinder(g.Radius, g.Length, segs)
	case asset.KindCapsule:
		m = shape.Capsule(g.Radius, g.Length, segs, segs/2)
	default:
		return nil
	}
	return &m
}

func surface(e *asset.Entry, m *meshio.Mesh, textures texture.Resolver) Surface {
	c := e.Material.Color
	s := Surface{
		R: clamp255(c[0] * 255),
		G: clamp255(c[1] * 255),
		B: clamp255(c[2] * 255),
		A: clamp255(c[3] * 255),
	}
	if textures != nil && e.Material.Texture != "" && len(m.UVs) == len(m.Vertices) {
		if tex := textures.Resolve(e.Material.Texture); tex != nil {
			s.Tex = tex
			s.UVs = m.UVs
		}
	}
	return s
}
