package raster

import (
	"image"
	"math"
)

// FrameBuffer is the render target: an NRGBA image plus one depth value
// per pixel. Larger depth is closer to the viewer.
type FrameBuffer struct {
	Width  int
	Height int
	img    *image.NRGBA
	depth  []float64
}

// NewFrameBuffer allocates a transparent target with all depths at -inf.
func NewFrameBuffer(w, h int) *FrameBuffer {
	depth := make([]float64, w*h)
	for i := range depth {
		depth[i] = math.Inf(-1)
	}
	return &FrameBuffer{
		Width:  w,
		Height: h,
		img:    image.NewNRGBA(image.Rect(0, 0, w, h)),
		depth:  depth,
	}
}

// visible reports whether depth z at pixel idx is in front of what is drawn.
func (fb *FrameBuffer) visible(idx int, z float64) bool {
	return z > fb.depth[idx]
}

// put writes an opaque pixel and its depth.
func (fb *FrameBuffer) put(idx int, z, r, g, b float64) {
	fb.depth[idx] = z
	p := fb.img.Pix[idx*4 : idx*4+4 : idx*4+4]
	p[0], p[1], p[2], p[3] = clamp255(r), clamp255(g), clamp255(b), 255
}

// over composites a translucent color onto pixel idx without touching
// depth. Colors are straight (non-premultiplied) alpha.
func (fb *FrameBuffer) over(idx int, r, g, b, a float64) {
	p := fb.img.Pix[idx*4 : idx*4+4 : idx*4+4]
	da := float64(p[3]) / 255
	oa := a + da*(1-a)
	if oa <= 0 {
		return
	}
	mix := func(src float64, dst uint8) uint8 {
		return clamp255((src*a + float64(dst)*da*(1-a)) / oa)
	}
	p[0], p[1], p[2], p[3] = mix(r, p[0]), mix(g, p[1]), mix(b, p[2]), clamp255(oa*255)
}

// Image returns the rendered image. The buffer must not be drawn to
// afterwards.
func (fb *FrameBuffer) Image() *image.NRGBA {
	return fb.img
}

func clamp255(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
