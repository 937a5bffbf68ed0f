package asset

import (
	"math"

	"urdf-asset-renderer/internal/meshio"
	"urdf-asset-renderer/internal/urdf"
)

// resolveMaterial picks color and texture by precedence: inline visual
// material, named document material (unless useMesh), mesh-native part
// material, default.
func resolveMaterial(v *urdf.Visual, table map[string]urdf.Material, native *meshio.Material, useMesh bool) Material {
	type candidate struct {
		color   *[4]float64
		texture string
		source  MaterialSource
	}
	var cands []candidate

	if m := v.Material; m != nil {
		cands = append(cands, candidate{color: (*[4]float64)(m.Color), texture: m.Texture, source: MaterialInline})
		if !useMesh && m.Name != "" {
			if named, ok := table[m.Name]; ok {
				cands = append(cands, candidate{color: (*[4]float64)(named.Color), texture: named.Texture, source: MaterialNamed})
			}
		}
	}
	if native != nil {
		cands = append(cands, candidate{color: native.Color, texture: native.Texture, source: MaterialMesh})
	}

	out := Material{Color: DefaultColor, Source: MaterialDefault}
	colorSet := false
	for _, c := range cands {
		if !colorSet && c.color != nil {
			out.Color = clampColor(*c.color)
			out.Source = c.source
			colorSet = true
		}
		if out.Texture == "" && c.texture != "" {
			out.Texture = c.texture
			if !colorSet {
				out.Source = c.source
			}
		}
	}
	return out
}

func clampColor(c [4]float64) [4]float64 {
	for i, v := range c {
		switch {
		case math.IsNaN(v), v < 0:
			c[i] = 0
		case v > 1:
			c[i] = 1
		}
	}
	return c
}
