// Package postprocess reduces supersampled renders to their output size.
package postprocess

import (
	"image"

	"golang.org/x/image/draw"
)

// Downsample scales img to size×size with CatmullRom filtering. Filtering
// happens on premultiplied alpha so transparent edges do not darken. An
// image already within size is returned unchanged.
func Downsample(img *image.NRGBA, size int) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() <= size && b.Dy() <= size {
		return img
	}

	// image.RGBA is premultiplied; draw converts in both directions.
	premul := image.NewRGBA(b)
	draw.Draw(premul, b, img, b.Min, draw.Src)

	scaled := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), premul, b, draw.Src, nil)

	out := image.NewNRGBA(scaled.Bounds())
	draw.Draw(out, out.Bounds(), scaled, image.Point{}, draw.Src)
	return out
}
