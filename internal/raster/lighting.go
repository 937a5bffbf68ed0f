package raster

import (
	"math"

	"urdf-asset-renderer/internal/mathutil"
)

// LightConfig holds precomputed lighting parameters. Directions are in
// screen space: x right, y down, z toward the viewer.
type LightConfig struct {
	LightDir mathutil.Vec3
	RimDir   mathutil.Vec3
	HalfMain mathutil.Vec3 // Blinn-Phong half vector
	Ambient  float64
	Hemi     float64
	Direct   float64
	Rim      float64
	SpecInt  float64
	SpecPow  float64
	Exposure float64
	InvGamma float64
}

// DefaultLightConfig is a key light from the upper right front with a cool
// rim from behind, tuned for plain CAD colors.
func DefaultLightConfig() LightConfig {
	lightDir := mathutil.Vec3{0.45, -0.65, 0.6}.Normalize()
	viewDir := mathutil.Vec3{0, 0, 1}
	return LightConfig{
		LightDir: lightDir,
		RimDir:   mathutil.Vec3{-0.4, -0.3, -0.85}.Normalize(),
		HalfMain: lightDir.Add(viewDir).Normalize(),
		Ambient:  0.35,
		Hemi:     0.40,
		Direct:   1.10,
		Rim:      0.35,
		SpecInt:  0.30,
		SpecPow:  24.0,
		Exposure: 1.0,
		InvGamma: 1.0 / 2.2,
	}
}

// ComputeShade returns the combined lighting scalar for a unit face normal.
func (lc *LightConfig) ComputeShade(normal mathutil.Vec3) float64 {
	// Faces may come in either winding, so the normal is made to face the
	// viewer before lighting.
	if normal[2] < 0 {
		normal = normal.Scale(-1)
	}
	ndlMain := math.Max(normal.Dot(lc.LightDir), 0)
	ndlRim := math.Abs(normal.Dot(lc.RimDir))

	// Hemisphere fill: brighter for faces pointing up (screen -y)
	hemi := 0.5 - normal[1]*0.5

	spec := math.Pow(math.Max(normal.Dot(lc.HalfMain), 0), lc.SpecPow) * lc.SpecInt

	return lc.Ambient + hemi*lc.Hemi + ndlMain*lc.Direct + ndlRim*lc.Rim + spec
}

// Precomputed sRGB-to-linear lookup table (256 entries).
var srgbToLinear [256]float64

func init() {
	for i := 0; i < 256; i++ {
		srgbToLinear[i] = math.Pow(float64(i)/255.0, 2.2)
	}
}

// ACESTonemap applies ACES Filmic tone mapping to a linear value.
func ACESTonemap(x float64) float64 {
	return (x * (2.51*x + 0.03)) / (x*(2.43*x+0.59) + 0.14)
}
