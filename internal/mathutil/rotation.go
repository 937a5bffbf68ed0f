package mathutil

import "math"

// RotX returns a 3×3 rotation matrix around the X axis. Angle in radians.
func RotX(a float64) Mat3 {
	c, s := math.Cos(a), math.Sin(a)
	return Mat3{
		1, 0, 0,
		0, c, -s,
		0, s, c,
	}
}

// RotY returns a 3×3 rotation matrix around the Y axis.
func RotY(a float64) Mat3 {
	c, s := math.Cos(a), math.Sin(a)
	return Mat3{
		c, 0, s,
		0, 1, 0,
		-s, 0, c,
	}
}

// RotZ returns a 3×3 rotation matrix around the Z axis.
func RotZ(a float64) Mat3 {
	c, s := math.Cos(a), math.Sin(a)
	return Mat3{
		c, -s, 0,
		s, c, 0,
		0, 0, 1,
	}
}

// RPY returns the fixed-axis roll/pitch/yaw rotation Rz(yaw)·Ry(pitch)·Rx(roll).
func RPY(roll, pitch, yaw float64) Mat3 {
	return Mat3Mul(Mat3Mul(RotZ(yaw), RotY(pitch)), RotX(roll))
}

// AxisAngle returns the rotation of angle radians about a (normalized) axis.
func AxisAngle(axis Vec3, angle float64) Mat3 {
	a := axis.Normalize()
	if a == (Vec3{}) {
		return Mat3Identity()
	}
	x, y, z := a[0], a[1], a[2]
	c, s := math.Cos(angle), math.Sin(angle)
	t := 1 - c
	return Mat3{
		t*x*x + c, t*x*y - s*z, t*x*z + s*y,
		t*x*y + s*z, t*y*y + c, t*y*z - s*x,
		t*x*z - s*y, t*y*z + s*x, t*z*z + c,
	}
}

// PoseFromXYZRPY builds the rigid transform of a URDF <origin xyz rpy>.
func PoseFromXYZRPY(xyz, rpy Vec3) Mat4 {
	return FromMat3Translation(RPY(rpy[0], rpy[1], rpy[2]), xyz)
}

// Deg2Rad converts degrees to radians.
func Deg2Rad(d float64) float64 {
	return d * math.Pi / 180
}
