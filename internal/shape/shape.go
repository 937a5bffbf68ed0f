// Package shape tessellates primitive geometries into triangle meshes.
// Round shapes are centered at the origin with their axis along +Y.
package shape

import (
	"math"

	"urdf-asset-renderer/internal/mathutil"
	"urdf-asset-renderer/internal/meshio"
)

const (
	DefaultSegments = 24
	DefaultRings    = 12
)

// Box returns an axis-aligned box with the given edge lengths.
func Box(size mathutil.Vec3) meshio.Mesh {
	h := size.Scale(0.5)
	var m meshio.Mesh
	for i := 0; i < 8; i++ {
		x, y, z := -h[0], -h[1], -h[2]
		if i&1 != 0 {
			x = h[0]
		}
		if i&2 != 0 {
			y = h[1]
		}
		if i&4 != 0 {
			z = h[2]
		}
		m.Vertices = append(m.Vertices, [3]float32{float32(x), float32(y), float32(z)})
	}
	// counter-clockwise seen from outside
	quads := [6][4]uint32{
		{0, 2, 3, 1}, // -z
		{4, 5, 7, 6}, // +z
		{0, 1, 5, 4}, // -y
		{2, 6, 7, 3}, // +y
		{0, 4, 6, 2}, // -x
		{1, 3, 7, 5}, // +x
	}
	for _, q := range quads {
		m.Faces = append(m.Faces, [3]uint32{q[0], q[1], q[2]}, [3]uint32{q[0], q[2], q[3]})
	}
	return m
}

// Sphere returns a UV sphere.
func Sphere(r float64, segs, rings int) meshio.Mesh {
	segs, rings = max(segs, 3), max(rings, 2)
	var m meshio.Mesh
	for i := 0; i <= rings; i++ {
		phi := math.Pi * float64(i) / float64(rings)
		ring(&m, r*math.Sin(phi), -r*math.Cos(phi), segs)
	}
	stitch(&m, 0, rings, segs)
	return m
}

// Cylinder returns a closed cylinder of the given radius and length.
func Cylinder(r, length float64, segs int) meshio.Mesh {
	segs = max(segs, 3)
	h := length / 2
	var m meshio.Mesh
	ring(&m, r, -h, segs)
	ring(&m, r, h, segs)
	stitch(&m, 0, 1, segs)
	closeRing(&m, 0, -h, segs, false)
	closeRing(&m, 1, h, segs, true)
	return m
}

// Capsule returns a cylinder of the given length capped by hemispheres, so
// its total extent along Y is length + 2r.
func Capsule(r, length float64, segs, rings int) meshio.Mesh {
	segs, rings = max(segs, 3), max(rings, 2)
	half := (rings + 1) / 2
	h := length / 2
	var m meshio.Mesh
	n := 0
	for i := 0; i <= half; i++ {
		phi := math.Pi / 2 * float64(i) / float64(half)
		ring(&m, r*math.Sin(phi), -h-r*math.Cos(phi), segs)
		n++
	}
	for i := 0; i <= half; i++ {
		phi := math.Pi / 2 * float64(i) / float64(half)
		ring(&m, r*math.Cos(phi), h+r*math.Sin(phi), segs)
		n++
	}
	stitch(&m, 0, n-1, segs)
	return m
}

// ring appends segs+1 vertices on a circle of radius r at height y. The
// seam vertex is duplicated so UVs wrap.
func ring(m *meshio.Mesh, r, y float64, segs int) {
	for j := 0; j <= segs; j++ {
		th := 2 * math.Pi * float64(j) / float64(segs)
		m.Vertices = append(m.Vertices, [3]float32{
			float32(r * math.Cos(th)),
			float32(y),
			float32(-r * math.Sin(th)),
		})
	}
}

// stitch connects consecutive rings first..last with quads facing outward.
func stitch(m *meshio.Mesh, first, last, segs int) {
	w := uint32(segs + 1)
	for i := first; i < last; i++ {
		a := uint32(i) * w
		b := a + w
		for j := uint32(0); j < uint32(segs); j++ {
			m.Faces = append(m.Faces,
				[3]uint32{a + j, a + j + 1, b + j + 1},
				[3]uint32{a + j, b + j + 1, b + j},
			)
		}
	}
}

// closeRing closes ring i with a fan around a center vertex at height y.
func closeRing(m *meshio.Mesh, i int, y float64, segs int, up bool) {
	center := uint32(len(m.Vertices))
	m.Vertices = append(m.Vertices, [3]float32{0, float32(y), 0})
	a := uint32(i * (segs + 1))
	for j := uint32(0); j < uint32(segs); j++ {
		if up {
			m.Faces = append(m.Faces, [3]uint32{center, a + j, a + j + 1})
		} else {
			m.Faces = append(m.Faces, [3]uint32{center, a + j + 1, a + j})
		}
	}
}
