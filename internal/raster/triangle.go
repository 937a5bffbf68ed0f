package raster

import (
	"image"
	"math"
)

// Surface is the appearance shared by the triangles of one asset. UVs are
// indexed like the vertices; Tex is used only when every vertex has a UV.
type Surface struct {
	Tex        *image.NRGBA
	UVs        [][2]float32
	R, G, B, A uint8
}

// triangle is the per-face setup shared by the opaque and blended paths.
type triangle struct {
	x0, y0, z0, x1, y1, z1, x2, y2, z2 float64
	u0, v0, u1, v1, u2, v2             float64
	hasUV                              bool
	front                              bool // faces the viewer
	shade                              float64
	minX, maxX, minY, maxY             int
	invDet                             float64
}

func setupTriangle(fb *FrameBuffer, px, py, pz []float64, vi [3]int, s *Surface, lc *LightConfig) (t triangle, ok bool) {
	nv := len(px)
	for _, i := range vi {
		if i < 0 || i >= nv {
			return t, false
		}
	}
	t.x0, t.y0, t.z0 = px[vi[0]], py[vi[0]], pz[vi[0]]
	t.x1, t.y1, t.z1 = px[vi[1]], py[vi[1]], pz[vi[1]]
	t.x2, t.y2, t.z2 = px[vi[2]], py[vi[2]], pz[vi[2]]

	t.hasUV = s.Tex != nil && len(s.UVs) == nv
	if t.hasUV {
		t.u0, t.v0 = float64(s.UVs[vi[0]][0]), float64(s.UVs[vi[0]][1])
		t.u1, t.v1 = float64(s.UVs[vi[1]][0]), float64(s.UVs[vi[1]][1])
		t.u2, t.v2 = float64(s.UVs[vi[2]][0]), float64(s.UVs[vi[2]][1])
	}

	// Face normal in screen space for flat shading
	e1x, e1y, e1z := t.x1-t.x0, t.y1-t.y0, t.z1-t.z0
	e2x, e2y, e2z := t.x2-t.x0, t.y2-t.y0, t.z2-t.z0
	n := [3]float64{e1y*e2z - e1z*e2y, e1z*e2x - e1x*e2z, e1x*e2y - e1y*e2x}
	nl := math.Sqrt(n[0]*n[0] + n[1]*n[1] + n[2]*n[2])
	if nl < 1e-8 {
		return t, false
	}
	// Screen y points down, so counter-clockwise faces have negative z.
	t.front = n[2] < 0
	t.shade = lc.ComputeShade([3]float64{n[0] / nl, n[1] / nl, n[2] / nl})

	size := fb.Width
	t.minX = max(int(math.Min(math.Min(t.x0, t.x1), t.x2)), 0)
	t.maxX = min(int(math.Max(math.Max(t.x0, t.x1), t.x2))+1, size-1)
	t.minY = max(int(math.Min(math.Min(t.y0, t.y1), t.y2)), 0)
	t.maxY = min(int(math.Max(math.Max(t.y0, t.y1), t.y2))+1, fb.Height-1)
	if t.minX >= t.maxX || t.minY >= t.maxY {
		return t, false
	}

	det := (t.y1-t.y2)*(t.x0-t.x2) + (t.x2-t.x1)*(t.y0-t.y2)
	if det > -1e-8 && det < 1e-8 {
		return t, false
	}
	t.invDet = 1.0 / det
	return t, true
}

// each calls fn for every covered pixel with its barycentric weights.
func (t *triangle) each(width int, fn func(idx int, w0, w1, w2 float64)) {
	dy12 := t.y1 - t.y2
	dx21 := t.x2 - t.x1
	dy20 := t.y2 - t.y0
	dx02 := t.x0 - t.x2
	for sy := t.minY; sy <= t.maxY; sy++ {
		dsy := float64(sy) - t.y2
		rowOff := sy * width
		for sx := t.minX; sx <= t.maxX; sx++ {
			dsx := float64(sx) - t.x2
			w0 := (dy12*dsx + dx21*dsy) * t.invDet
			w1 := (dy20*dsx + dx02*dsy) * t.invDet
			w2 := 1.0 - w0 - w1
			if w0 < -0.001 || w1 < -0.001 || w2 < -0.001 {
				continue
			}
			fn(rowOff+sx, w0, w1, w2)
		}
	}
}

func (t *triangle) texel(s *Surface, w0, w1, w2 float64) (r, g, b, a uint8) {
	if !t.hasUV {
		return s.R, s.G, s.B, s.A
	}
	u := w0*t.u0 + w1*t.u1 + w2*t.u2
	v := w0*t.v0 + w1*t.v1 + w2*t.v2
	r, g, b, a = SampleTexture(s.Tex, u, v)
	return r, g, b, uint8(uint16(a) * uint16(s.A) / 255)
}

// shadeColor applies lighting, ACES tone mapping and sRGB encoding.
func shadeColor(lc *LightConfig, shade float64, cr, cg, cb uint8) (r, g, b float64) {
	k := shade * lc.Exposure
	r = math.Pow(ACESTonemap(srgbToLinear[cr]*k), lc.InvGamma) * 255
	g = math.Pow(ACESTonemap(srgbToLinear[cg]*k), lc.InvGamma) * 255
	b = math.Pow(ACESTonemap(srgbToLinear[cb]*k), lc.InvGamma) * 255
	return r, g, b
}

// RasterizeTriangle draws an opaque triangle with z-buffering, flat
// lighting and tone mapping.
func RasterizeTriangle(fb *FrameBuffer, px, py, pz []float64, vi [3]int, s *Surface, lc *LightConfig) {
	t, ok := setupTriangle(fb, px, py, pz, vi, s, lc)
	if !ok {
		return
	}
	t.each(fb.Width, func(idx int, w0, w1, w2 float64) {
		z := w0*t.z0 + w1*t.z1 + w2*t.z2
		if !fb.visible(idx, z) {
			return
		}
		cr, cg, cb, ca := t.texel(s, w0, w1, w2)
		// Skip transparent texels
		if ca < 8 {
			return
		}
		r, g, b := shadeColor(lc, t.shade, cr, cg, cb)
		fb.put(idx, z, r, g, b)
	})
}

// BlendTriangle draws a translucent triangle over the framebuffer. It is
// depth-tested against opaque geometry but does not write depth. Back
// faces are culled.
func BlendTriangle(fb *FrameBuffer, px, py, pz []float64, vi [3]int, s *Surface, lc *LightConfig) {
	t, ok := setupTriangle(fb, px, py, pz, vi, s, lc)
	if !ok || !t.front {
		return
	}
	t.each(fb.Width, func(idx int, w0, w1, w2 float64) {
		z := w0*t.z0 + w1*t.z1 + w2*t.z2
		if !fb.visible(idx, z) {
			return
		}
		cr, cg, cb, ca := t.texel(s, w0, w1, w2)
		if ca < 8 {
			return
		}
		r, g, b := shadeColor(lc, t.shade, cr, cg, cb)
		fb.over(idx, r, g, b, float64(ca)/255)
	})
}
