package common

import (
	"github.com/chewxy/math32"
)

// AxisMask is a set of coordinate axes negated relative to the source (glTF) convention.
// The glTF convention is right-handed with +Y up and +Z forward; the engine's target
// convention is left-handed and is reached by negating Z.
type AxisMask uint8

const (
	// AxisX marks the X axis as negated.
	AxisX AxisMask = 1 << iota
	// AxisY marks the Y axis as negated.
	AxisY
	// AxisZ marks the Z axis as negated.
	AxisZ
)

// TargetConvention is the axis mask that takes source data into the engine's left-handed space.
const TargetConvention = AxisZ

// Has reports whether the axis is negated by the mask.
func (m AxisMask) Has(axis AxisMask) bool {
	return m&axis != 0
}

// Odd reports whether the mask negates an odd number of axes. Odd masks are reflections:
// they change handedness, so triangle winding and tangent handedness must be flipped with them.
func (m AxisMask) Odd() bool {
	n := 0
	for _, a := range []AxisMask{AxisX, AxisY, AxisZ} {
		if m.Has(a) {
			n++
		}
	}
	return n%2 == 1
}

// Correction returns the mask that converts data expressed in the `from` convention into the
// `to` convention. Both masks are relative to the source convention, so the correction is the
// symmetric difference of the two.
//
// Parameters:
//   - from: the convention the data is currently expressed in
//   - to: the desired convention
//
// Returns:
//   - AxisMask: the axes to negate
func Correction(from, to AxisMask) AxisMask {
	return from ^ to
}

// signs returns the per-axis sign multipliers for the mask.
func (m AxisMask) signs() [3]float32 {
	s := [3]float32{1, 1, 1}
	if m.Has(AxisX) {
		s[0] = -1
	}
	if m.Has(AxisY) {
		s[1] = -1
	}
	if m.Has(AxisZ) {
		s[2] = -1
	}
	return s
}

// FlipVec3 negates the masked components of a position, direction or normal.
func FlipVec3(v [3]float32, m AxisMask) [3]float32 {
	s := m.signs()
	return [3]float32{v[0] * s[0], v[1] * s[1], v[2] * s[2]}
}

// FlipTangent negates the masked components of a tangent and flips its handedness sign (W)
// when the mask is a reflection.
func FlipTangent(t [4]float32, m AxisMask) [4]float32 {
	s := m.signs()
	w := t[3]
	if m.Odd() {
		w = -w
	}
	return [4]float32{t[0] * s[0], t[1] * s[1], t[2] * s[2], w}
}

// FlipQuaternion converts a rotation quaternion (x, y, z, w) across the masked axes.
// For a single negated axis this negates that axis component and W, e.g. the Z mask
// maps (x, y, z, w) to (x, y, -z, -w). Applying the same mask twice is the identity.
func FlipQuaternion(q [4]float32, m AxisMask) [4]float32 {
	if m == 0 {
		return q
	}
	s := m.signs()
	det := s[0] * s[1] * s[2]
	// The rotation axis is a pseudo-vector: it picks up the determinant of the reflection.
	out := [4]float32{det * s[0] * q[0], det * s[1] * q[1], det * s[2] * q[2], q[3]}
	if det < 0 {
		for i := range out {
			out[i] = -out[i]
		}
	}
	return out
}

// FlipMatrix conjugates a column-major 4x4 matrix by the reflection S = diag(sx, sy, sz, 1),
// returning S·M·S. Bind poses and node matrices use this to change convention.
func FlipMatrix(m [16]float32, mask AxisMask) [16]float32 {
	s3 := mask.signs()
	s := [4]float32{s3[0], s3[1], s3[2], 1}
	var out [16]float32
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			out[c*4+r] = s[r] * s[c] * m[c*4+r]
		}
	}
	return out
}

// Identity4 returns a 4x4 identity matrix.
func Identity4() [16]float32 {
	return [16]float32{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Mul4 multiplies two 4x4 matrices and stores the result in out.
// All matrices are stored in column-major order (OpenGL/WebGPU convention).
// Result: out = a * b
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - a: left-hand matrix (16 elements)
//   - b: right-hand matrix (16 elements)
func Mul4(out, a, b []float32) {
	var buf [16]float32
	for i := 0; i < 4; i++ { // column of B
		for j := 0; j < 4; j++ { // row of A
			sum := float32(0)
			for k := 0; k < 4; k++ {
				sum += a[k*4+j] * b[i*4+k]
			}
			buf[i*4+j] = sum
		}
	}
	copy(out, buf[:])
}

// ComposeTRS builds a column-major matrix from translation, rotation (x, y, z, w) and scale.
func ComposeTRS(t [3]float32, q [4]float32, s [3]float32) [16]float32 {
	x, y, z, w := q[0], q[1], q[2], q[3]
	xx, yy, zz := x*x, y*y, z*z
	xy, xz, yz := x*y, x*z, y*z
	wx, wy, wz := w*x, w*y, w*z

	return [16]float32{
		(1 - 2*(yy+zz)) * s[0], 2 * (xy + wz) * s[0], 2 * (xz - wy) * s[0], 0,
		2 * (xy - wz) * s[1], (1 - 2*(xx+zz)) * s[1], 2 * (yz + wx) * s[1], 0,
		2 * (xz + wy) * s[2], 2 * (yz - wx) * s[2], (1 - 2*(xx+yy)) * s[2], 0,
		t[0], t[1], t[2], 1,
	}
}

// DecomposeMatrix decomposes a 4x4 column-major matrix into translation, rotation (quaternion), and scale.
// This is an approximation that assumes no shear.
//
// Parameters:
//   - m: the column-major matrix
//
// Returns:
//   - [3]float32: translation
//   - [4]float32: rotation quaternion (x, y, z, w)
//   - [3]float32: scale
func DecomposeMatrix(m [16]float32) ([3]float32, [4]float32, [3]float32) {
	translation := [3]float32{m[12], m[13], m[14]}

	sx := vectorLength(m[0], m[1], m[2])
	sy := vectorLength(m[4], m[5], m[6])
	sz := vectorLength(m[8], m[9], m[10])
	scale := [3]float32{sx, sy, sz}

	// Avoid division by zero
	if sx < 0.0001 {
		sx = 1
	}
	if sy < 0.0001 {
		sy = 1
	}
	if sz < 0.0001 {
		sz = 1
	}

	// Row-major 3x3 rotation from the normalized columns.
	r := [9]float32{
		m[0] / sx, m[4] / sy, m[8] / sz,
		m[1] / sx, m[5] / sy, m[9] / sz,
		m[2] / sx, m[6] / sy, m[10] / sz,
	}

	return translation, MatrixToQuaternion(r), scale
}

// vectorLength computes the length of a 3D vector.
func vectorLength(x, y, z float32) float32 {
	return math32.Sqrt(x*x + y*y + z*z)
}

// MatrixToQuaternion converts a 3x3 rotation matrix to a quaternion.
// Matrix is in row-major order: [r00, r01, r02, r10, r11, r12, r20, r21, r22].
// Returns quaternion as [x, y, z, w].
func MatrixToQuaternion(m [9]float32) [4]float32 {
	r00, r01, r02 := m[0], m[1], m[2]
	r10, r11, r12 := m[3], m[4], m[5]
	r20, r21, r22 := m[6], m[7], m[8]

	trace := r00 + r11 + r22

	var x, y, z, w float32

	if trace > 0 {
		s := math32.Sqrt(trace+1.0) * 2
		w = 0.25 * s
		x = (r21 - r12) / s
		y = (r02 - r20) / s
		z = (r10 - r01) / s
	} else if r00 > r11 && r00 > r22 {
		s := math32.Sqrt(1.0+r00-r11-r22) * 2
		w = (r21 - r12) / s
		x = 0.25 * s
		y = (r01 + r10) / s
		z = (r02 + r20) / s
	} else if r11 > r22 {
		s := math32.Sqrt(1.0+r11-r00-r22) * 2
		w = (r02 - r20) / s
		x = (r01 + r10) / s
		y = 0.25 * s
		z = (r12 + r21) / s
	} else {
		s := math32.Sqrt(1.0+r22-r00-r11) * 2
		w = (r10 - r01) / s
		x = (r02 + r20) / s
		y = (r12 + r21) / s
		z = 0.25 * s
	}

	return NormalizeQuaternion([4]float32{x, y, z, w})
}

// NormalizeQuaternion scales q to unit length. Degenerate input returns the identity rotation.
func NormalizeQuaternion(q [4]float32) [4]float32 {
	length := math32.Sqrt(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3])
	if length < 0.0001 {
		return [4]float32{0, 0, 0, 1}
	}
	return [4]float32{q[0] / length, q[1] / length, q[2] / length, q[3] / length}
}

// Normalize3 scales v to unit length, returning ok=false when v is degenerate.
func Normalize3(v [3]float32) ([3]float32, bool) {
	length := vectorLength(v[0], v[1], v[2])
	if length < 1e-6 {
		return v, false
	}
	inv := 1.0 / length
	return [3]float32{v[0] * inv, v[1] * inv, v[2] * inv}, true
}

// Cross3 returns the cross product a × b.
func Cross3(a, b [3]float32) [3]float32 {
	return [3]float32{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

// Dot3 returns the dot product a · b.
func Dot3(a, b [3]float32) float32 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

// Sub3 returns a - b.
func Sub3(a, b [3]float32) [3]float32 {
	return [3]float32{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}
