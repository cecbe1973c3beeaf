// Package pose estimates and stabilizes the 6DOF rigid transform of a
// tracked head from 2D landmark observations.
package pose

import "math"

// Vec3 is a 3-component vector.
type Vec3 struct {
	X, Y, Z float64
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Scale returns v * s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// Dot returns the dot product of v and o.
func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Cross returns the cross product of v and o.
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// IsFinite reports whether all components are finite.
func (v Vec3) IsFinite() bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) &&
		!math.IsNaN(v.Y) && !math.IsInf(v.Y, 0) &&
		!math.IsNaN(v.Z) && !math.IsInf(v.Z, 0)
}

// Lerp linearly interpolates from a to b by t.
func Lerp(a, b Vec3, t float64) Vec3 {
	return a.Scale(1 - t).Add(b.Scale(t))
}

// Quat is a unit quaternion representing a rotation.
type Quat struct {
	W, X, Y, Z float64
}

// QuatIdentity returns the identity rotation.
func QuatIdentity() Quat {
	return Quat{W: 1}
}

// QuatFromRotationVector converts an axis-angle rotation vector (Rodrigues
// form, as produced by the PnP solve) into a quaternion.
func QuatFromRotationVector(rv Vec3) Quat {
	angle := rv.Norm()
	if angle < 1e-12 {
		return QuatIdentity()
	}
	s := math.Sin(angle/2) / angle
	return Quat{
		W: math.Cos(angle / 2),
		X: rv.X * s,
		Y: rv.Y * s,
		Z: rv.Z * s,
	}
}

// RotationVector converts q back to axis-angle form.
func (q Quat) RotationVector() Vec3 {
	n := q.Normalize()
	if n.W < 0 {
		n = Quat{-n.W, -n.X, -n.Y, -n.Z}
	}
	sinHalf := math.Sqrt(n.X*n.X + n.Y*n.Y + n.Z*n.Z)
	if sinHalf < 1e-12 {
		return Vec3{}
	}
	angle := 2 * math.Atan2(sinHalf, n.W)
	return Vec3{n.X, n.Y, n.Z}.Scale(angle / sinHalf)
}

// Normalize returns q scaled to unit length.
func (q Quat) Normalize() Quat {
	n := math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
	if n < 1e-15 {
		return QuatIdentity()
	}
	return Quat{q.W / n, q.X / n, q.Y / n, q.Z / n}
}

// Dot returns the 4D dot product of two quaternions.
func (q Quat) Dot(o Quat) float64 {
	return q.W*o.W + q.X*o.X + q.Y*o.Y + q.Z*o.Z
}

// IsFinite reports whether all components are finite.
func (q Quat) IsFinite() bool {
	for _, c := range [4]float64{q.W, q.X, q.Y, q.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// RotationMatrix returns the 3x3 rotation matrix for q in row-major order.
func (q Quat) RotationMatrix() [9]float64 {
	n := q.Normalize()
	w, x, y, z := n.W, n.X, n.Y, n.Z
	return [9]float64{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y),
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x),
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y),
	}
}

// Rotate applies the rotation to a vector.
func (q Quat) Rotate(v Vec3) Vec3 {
	m := q.RotationMatrix()
	return Vec3{
		m[0]*v.X + m[1]*v.Y + m[2]*v.Z,
		m[3]*v.X + m[4]*v.Y + m[5]*v.Z,
		m[6]*v.X + m[7]*v.Y + m[8]*v.Z,
	}
}

// Slerp spherically interpolates from a to b by t, taking the shorter arc.
func Slerp(a, b Quat, t float64) Quat {
	a = a.Normalize()
	b = b.Normalize()

	dot := a.Dot(b)
	if dot < 0 {
		b = Quat{-b.W, -b.X, -b.Y, -b.Z}
		dot = -dot
	}

	// Nearly parallel: fall back to normalized lerp.
	if dot > 0.9995 {
		out := Quat{
			W: a.W + t*(b.W-a.W),
			X: a.X + t*(b.X-a.X),
			Y: a.Y + t*(b.Y-a.Y),
			Z: a.Z + t*(b.Z-a.Z),
		}
		return out.Normalize()
	}

	theta := math.Acos(dot)
	sinTheta := math.Sin(theta)
	wa := math.Sin((1-t)*theta) / sinTheta
	wb := math.Sin(t*theta) / sinTheta
	return Quat{
		W: wa*a.W + wb*b.W,
		X: wa*a.X + wb*b.X,
		Y: wa*a.Y + wb*b.Y,
		Z: wa*a.Z + wb*b.Z,
	}.Normalize()
}

// rotateRodrigues rotates p by the rotation vector rv without building a
// quaternion. Used in the solver's inner loop.
func rotateRodrigues(rv, p Vec3) Vec3 {
	angle := rv.Norm()
	if angle < 1e-12 {
		return p
	}
	k := rv.Scale(1 / angle)
	cosA := math.Cos(angle)
	sinA := math.Sin(angle)
	// p*cos + (k×p)*sin + k*(k·p)*(1-cos)
	return p.Scale(cosA).
		Add(k.Cross(p).Scale(sinA)).
		Add(k.Scale(k.Dot(p) * (1 - cosA)))
}
