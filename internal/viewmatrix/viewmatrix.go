// Package viewmatrix places the preview camera: an orbit rotation from the
// Z-up world into screen space plus an optional perspective projection.
package viewmatrix

import (
	"math"

	"urdf-asset-renderer/internal/mathutil"
)

const DefaultFOV = 35.0

// Camera orbits the model. Azimuth turns counter-clockwise about world +Z
// starting from +X; Elevation lifts the eye above the XY plane. Degrees.
type Camera struct {
	Azimuth     float64
	Elevation   float64
	Perspective bool
	FOV         float64
}

// Matrix returns the rotation from world to view space: view X is screen
// right, view Y is screen up, view Z points at the viewer.
func (c Camera) Matrix() mathutil.Mat3 {
	el := mathutil.Deg2Rad(math.Max(-89, math.Min(89, c.Elevation)))
	az := mathutil.Deg2Rad(c.Azimuth)
	eye := mathutil.Vec3{math.Cos(el) * math.Cos(az), math.Cos(el) * math.Sin(az), math.Sin(el)}
	fwd := eye.Scale(-1)
	right := fwd.Cross(mathutil.Vec3{0, 0, 1}).Normalize()
	up := right.Cross(fwd)
	return mathutil.Mat3{
		right[0], right[1], right[2],
		up[0], up[1], up[2],
		eye[0], eye[1], eye[2],
	}
}

// Projection maps world points to pixel coordinates on a square canvas.
type Projection struct {
	R      mathutil.Mat3
	Center mathutil.Vec3 // view-space center of the fitted bounds
	Scale  float64       // pixels per unit
	Size   int

	persp   bool
	camDist float64
	zCenter float64
}

// Fit builds a projection that frames all points with margin pixels of
// border. Perspective distance is derived from the whole point set, so
// every mesh of a model shares one camera.
func Fit(points []mathutil.Vec3, cam Camera, size, margin int) Projection {
	p := Projection{R: cam.Matrix(), Size: size, Scale: 1}
	if len(points) == 0 {
		return p
	}

	lo := mathutil.Vec3{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi := mathutil.Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for _, v := range points {
		t := p.R.MulVec3(v)
		lo = lo.Min(t)
		hi = hi.Max(t)
	}
	p.Center = lo.Add(hi).Scale(0.5)

	if cam.Perspective {
		fov := cam.FOV
		if fov == 0 {
			fov = DefaultFOV
		}
		xyMax := math.Max(math.Max(hi[0]-p.Center[0], hi[1]-p.Center[1]), 0.001)
		p.persp = true
		p.zCenter = p.Center[2]
		// keep the eye outside the model
		p.camDist = math.Max(xyMax/math.Tan(mathutil.Deg2Rad(fov/2)), hi[2]-p.zCenter+xyMax)
		lo, hi = p.perspExtent(points)
	}

	span := math.Max(math.Max(hi[0]-lo[0], hi[1]-lo[1]), 0.001)
	p.Center[0] = (lo[0] + hi[0]) / 2
	p.Center[1] = (lo[1] + hi[1]) / 2
	p.Scale = float64(size-2*margin) / span
	return p
}

// perspExtent returns view-space bounds after the perspective divide.
func (p Projection) perspExtent(points []mathutil.Vec3) (lo, hi mathutil.Vec3) {
	lo = mathutil.Vec3{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi = mathutil.Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for _, v := range points {
		t := p.view(v)
		lo = lo.Min(t)
		hi = hi.Max(t)
	}
	return lo, hi
}

func (p Projection) view(v mathutil.Vec3) mathutil.Vec3 {
	t := p.R.MulVec3(v)
	if p.persp {
		depth := math.Max(p.camDist-(t[2]-p.zCenter), 0.1)
		f := p.camDist / depth
		t[0] *= f
		t[1] *= f
	}
	return t
}

// Project transforms points to screen X, screen Y and depth. Larger depth
// is closer to the viewer.
func (p Projection) Project(points []mathutil.Vec3) (px, py, pz []float64) {
	n := len(points)
	px = make([]float64, n)
	py = make([]float64, n)
	pz = make([]float64, n)
	half := float64(p.Size) / 2
	for i, v := range points {
		t := p.view(v)
		px[i] = (t[0]-p.Center[0])*p.Scale + half
		py[i] = -(t[1]-p.Center[1])*p.Scale + half
		pz[i] = t[2]
	}
	return px, py, pz
}
