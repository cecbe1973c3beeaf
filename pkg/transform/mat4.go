// Package transform turns stabilized poses into model and projection
// matrices for the external renderer, bridging the vision camera convention
// (+Z forward, +Y down) to the rendering convention (-Z forward, +Y up).
package transform

import (
	"math"

	"github.com/mwestergaard/go-headlock/pkg/camera"
	"github.com/mwestergaard/go-headlock/pkg/pose"
)

// Mat4 is a 4x4 matrix in column-major order (OpenGL layout):
// element (row, col) lives at index col*4+row.
type Mat4 [16]float64

// Identity returns the identity matrix.
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// At returns element (row, col).
func (m Mat4) At(row, col int) float64 {
	return m[col*4+row]
}

// set assigns element (row, col).
func (m *Mat4) set(row, col int, v float64) {
	m[col*4+row] = v
}

// Mul returns m * o.
func (m Mat4) Mul(o Mat4) Mat4 {
	var out Mat4
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			sum := 0.0
			for k := 0; k < 4; k++ {
				sum += m.At(row, k) * o.At(k, col)
			}
			out.set(row, col, sum)
		}
	}
	return out
}

// Translation returns the matrix translating by v.
func Translation(v pose.Vec3) Mat4 {
	out := Identity()
	out.set(0, 3, v.X)
	out.set(1, 3, v.Y)
	out.set(2, 3, v.Z)
	return out
}

// Scaling returns the matrix scaling uniformly by s.
func Scaling(s float64) Mat4 {
	out := Identity()
	out.set(0, 0, s)
	out.set(1, 1, s)
	out.set(2, 2, s)
	return out
}

// FromRotation embeds a row-major 3x3 rotation matrix into a Mat4.
func FromRotation(r [9]float64) Mat4 {
	out := Identity()
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			out.set(row, col, r[row*3+col])
		}
	}
	return out
}

// Perspective returns a standard OpenGL perspective projection from a
// vertical field of view in radians.
func Perspective(fovy, aspect, near, far float64) Mat4 {
	f := 1 / math.Tan(fovy/2)
	var out Mat4
	out.set(0, 0, f/aspect)
	out.set(1, 1, f)
	out.set(2, 2, -(far+near)/(far-near))
	out.set(2, 3, -2*far*near/(far-near))
	out.set(3, 2, -1)
	return out
}

// PerspectiveFromIntrinsics builds the projection matching the pinhole
// intrinsics, so the overlay lines up with the video background without
// non-uniform distortion. The principal point offset is carried into the
// third column.
func PerspectiveFromIntrinsics(in camera.Intrinsics, near, far float64) Mat4 {
	w := float64(in.Width)
	h := float64(in.Height)
	var out Mat4
	out.set(0, 0, 2*in.Fx/w)
	out.set(0, 2, 1-2*in.Cx/w)
	out.set(1, 1, 2*in.Fy/h)
	out.set(1, 2, 2*in.Cy/h-1)
	out.set(2, 2, -(far+near)/(far-near))
	out.set(2, 3, -2*far*near/(far-near))
	out.set(3, 2, -1)
	return out
}

// Float32 converts the matrix for GPU upload.
func (m Mat4) Float32() [16]float32 {
	var out [16]float32
	for i, v := range m {
		out[i] = float32(v)
	}
	return out
}
