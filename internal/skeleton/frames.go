package skeleton

import (
	"urdf-asset-renderer/internal/mathutil"
	"urdf-asset-renderer/internal/urdf"
)

// RestFrames returns every link's transform relative to base with all
// movable joints at their zero position, i.e. the chain of joint origins.
// Used to place canonical groups in a static preview.
func RestFrames(joints []urdf.Joint, base string) (map[string]mathutil.Mat4, error) {
	worlds := map[string]mathutil.Mat4{base: mathutil.Mat4Identity()}
	err := walk(joints, base, func(j urdf.Joint) {
		worlds[j.Child] = mathutil.Mat4Mul(worlds[j.Parent], j.Origin)
	})
	if err != nil {
		return nil, err
	}
	return worlds, nil
}
