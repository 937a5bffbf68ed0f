package mathutil

// Mat4 is a 4×4 matrix stored row-major. Used for rigid link, joint and visual
// transforms; the translation lives in elements 3, 7 and 11.
type Mat4 [16]float64

func Mat4Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Mat4Mul returns a × b.
func Mat4Mul(a, b Mat4) Mat4 {
	var m Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			m[r*4+c] = a[r*4+0]*b[0*4+c] + a[r*4+1]*b[1*4+c] +
				a[r*4+2]*b[2*4+c] + a[r*4+3]*b[3*4+c]
		}
	}
	return m
}

// Mat4Chain multiplies left to right: Mat4Chain(a, b, c) = a × b × c.
func Mat4Chain(ms ...Mat4) Mat4 {
	out := Mat4Identity()
	for i, m := range ms {
		if i == 0 {
			out = m
			continue
		}
		out = Mat4Mul(out, m)
	}
	return out
}

// MulPoint transforms a 3D point (w=1) by the 4×4 matrix.
func (m Mat4) MulPoint(v Vec3) Vec3 {
	return Vec3{
		m[0]*v[0] + m[1]*v[1] + m[2]*v[2] + m[3],
		m[4]*v[0] + m[5]*v[1] + m[6]*v[2] + m[7],
		m[8]*v[0] + m[9]*v[1] + m[10]*v[2] + m[11],
	}
}

// MulDir transforms a direction (w=0): rotation and scale only.
func (m Mat4) MulDir(v Vec3) Vec3 {
	return Vec3{
		m[0]*v[0] + m[1]*v[1] + m[2]*v[2],
		m[4]*v[0] + m[5]*v[1] + m[6]*v[2],
		m[8]*v[0] + m[9]*v[1] + m[10]*v[2],
	}
}

// FromMat3Translation builds a 4×4 affine matrix from a 3×3 rotation and translation.
func FromMat3Translation(r Mat3, t Vec3) Mat4 {
	return Mat4{
		r[0], r[1], r[2], t[0],
		r[3], r[4], r[5], t[1],
		r[6], r[7], r[8], t[2],
		0, 0, 0, 1,
	}
}

// Translate4 returns a pure translation.
func Translate4(t Vec3) Mat4 {
	return FromMat3Translation(Mat3Identity(), t)
}

// Scale4 returns a diagonal scale matrix.
func Scale4(s Vec3) Mat4 {
	return FromMat3Translation(Mat3Diag(s[0], s[1], s[2]), Vec3{})
}

// Rotation returns the upper-left 3×3 block.
func (m Mat4) Rotation() Mat3 {
	return Mat3{
		m[0], m[1], m[2],
		m[4], m[5], m[6],
		m[8], m[9], m[10],
	}
}

// Translation returns the translation column.
func (m Mat4) Translation() Vec3 {
	return Vec3{m[3], m[7], m[11]}
}

// WithRotation replaces the 3×3 block and keeps the translation.
func (m Mat4) WithRotation(r Mat3) Mat4 {
	return FromMat3Translation(r, m.Translation())
}

func (m Mat4) Transpose() Mat4 {
	var t Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			t[c*4+r] = m[r*4+c]
		}
	}
	return t
}

// ColumnMajor returns the elements in column-major order, the layout WebGL
// style consumers expect.
func (m Mat4) ColumnMajor() [16]float64 {
	return [16]float64(m.Transpose())
}

// Mat4FromColumnMajor converts a column-major array (glTF, mgl64) to Mat4.
func Mat4FromColumnMajor(a [16]float64) Mat4 {
	return Mat4(a).Transpose()
}

// IsIdentity checks if the matrix is approximately identity.
func (m Mat4) IsIdentity() bool {
	return m.ApproxEqual(Mat4Identity(), 1e-8)
}

// ApproxEqual reports whether every element differs by at most eps.
func (m Mat4) ApproxEqual(o Mat4, eps float64) bool {
	for i := 0; i < 16; i++ {
		d := m[i] - o[i]
		if d > eps || d < -eps {
			return false
		}
	}
	return true
}
