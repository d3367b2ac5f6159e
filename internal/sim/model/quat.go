package model

import "math"

// Quat is a unit rotation quaternion.
type Quat struct{ X, Y, Z, W float64 }

var Identity = Quat{W: 1}

// YawQuat returns a rotation of deg degrees around the vertical axis.
func YawQuat(deg float64) Quat {
	h := deg * math.Pi / 360
	return Quat{Y: math.Sin(h), W: math.Cos(h)}
}

func (q Quat) Dot(o Quat) float64 { return q.X*o.X + q.Y*o.Y + q.Z*o.Z + q.W*o.W }

func (q Quat) normalized() Quat {
	l := math.Sqrt(q.Dot(q))
	if l == 0 {
		return Identity
	}
	return Quat{X: q.X / l, Y: q.Y / l, Z: q.Z / l, W: q.W / l}
}

// Slerp interpolates along the shortest arc; t is clamped to [0,1].
func Slerp(a, b Quat, t float64) Quat {
	if t <= 0 {
		return a
	}
	if t >= 1 {
		return b
	}
	cos := a.Dot(b)
	if cos < 0 {
		b = Quat{X: -b.X, Y: -b.Y, Z: -b.Z, W: -b.W}
		cos = -cos
	}
	if cos > 0.9995 {
		return Quat{
			X: a.X + (b.X-a.X)*t,
			Y: a.Y + (b.Y-a.Y)*t,
			Z: a.Z + (b.Z-a.Z)*t,
			W: a.W + (b.W-a.W)*t,
		}.normalized()
	}
	theta := math.Acos(cos)
	sin := math.Sin(theta)
	wa := math.Sin((1-t)*theta) / sin
	wb := math.Sin(t*theta) / sin
	return Quat{
		X: a.X*wa + b.X*wb,
		Y: a.Y*wa + b.Y*wb,
		Z: a.Z*wa + b.Z*wb,
		W: a.W*wa + b.W*wb,
	}
}

// Angle returns the angle in radians between two rotations.
func Angle(a, b Quat) float64 {
	d := math.Abs(a.Dot(b))
	if d > 1 {
		d = 1
	}
	return 2 * math.Acos(d)
}
