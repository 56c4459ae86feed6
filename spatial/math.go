package spatial

import "math"

// Vec3 is a 3D vector. The simulation plane is XZ with Y up.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

func (v Vec3) Dot(o Vec3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

func (v Vec3) LengthSquared() float64 { return v.Dot(v) }

func (v Vec3) Length() float64 { return math.Sqrt(v.LengthSquared()) }

// Normalized returns the unit vector, or the zero vector for zero input.
func (v Vec3) Normalized() Vec3 {
	l := v.Length()
	if l == 0 {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

// DistanceTo returns the Euclidean distance between v and o.
func (v Vec3) DistanceTo(o Vec3) float64 { return v.Sub(o).Length() }

// Quat is a rotation quaternion.
type Quat struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Identity is the null rotation.
func Identity() Quat { return Quat{W: 1} }

// FromAxisAngle builds a rotation of angle radians about a unit axis.
func FromAxisAngle(axis Vec3, angle float64) Quat {
	s, c := math.Sincos(angle / 2)
	return Quat{axis.X * s, axis.Y * s, axis.Z * s, c}
}

// Mul composes q then o (o applied in q's local frame).
func (q Quat) Mul(o Quat) Quat {
	return Quat{
		X: q.W*o.X + q.X*o.W + q.Y*o.Z - q.Z*o.Y,
		Y: q.W*o.Y - q.X*o.Z + q.Y*o.W + q.Z*o.X,
		Z: q.W*o.Z + q.X*o.Y - q.Y*o.X + q.Z*o.W,
		W: q.W*o.W - q.X*o.X - q.Y*o.Y - q.Z*o.Z,
	}
}

// Normalized returns q scaled to unit length; a zero quaternion becomes Identity.
func (q Quat) Normalized() Quat {
	l := math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
	if l == 0 {
		return Identity()
	}
	return Quat{q.X / l, q.Y / l, q.Z / l, q.W / l}
}

// Rotate applies q to v.
func (q Quat) Rotate(v Vec3) Vec3 {
	u := Vec3{q.X, q.Y, q.Z}
	t := u.Cross(v).Scale(2)
	return v.Add(t.Scale(q.W)).Add(u.Cross(t))
}

// Transform is a rigid placement: rotation then translation.
type Transform struct {
	Origin   Vec3 `json:"origin"`
	Rotation Quat `json:"rotation"`
}

// NewTransform places an unrotated transform at origin.
func NewTransform(origin Vec3) Transform {
	return Transform{Origin: origin, Rotation: Identity()}
}

// Translated returns t moved by offset in world space.
func (t Transform) Translated(offset Vec3) Transform {
	t.Origin = t.Origin.Add(offset)
	return t
}

// RotatedLocal returns t rotated by angle radians about axis expressed in t's
// own frame. The origin is unchanged.
func (t Transform) RotatedLocal(axis Vec3, angle float64) Transform {
	t.Rotation = t.Rotation.Mul(FromAxisAngle(axis, angle)).Normalized()
	return t
}

// Compose returns the world placement of child, a transform local to t.
func (t Transform) Compose(child Transform) Transform {
	return Transform{
		Origin:   t.Origin.Add(t.Rotation.Rotate(child.Origin)),
		Rotation: t.Rotation.Mul(child.Rotation).Normalized(),
	}
}
