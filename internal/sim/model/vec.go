package model

import "math"

// Vec3 is a world-space point or direction.
type Vec3 struct{ X, Y, Z float64 }

var Zero = Vec3{}

func (v Vec3) Add(o Vec3) Vec3      { return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3      { return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z} }
func (v Vec3) Scale(s float64) Vec3 { return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s} }
func (v Vec3) Dot(o Vec3) float64   { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }
func (v Vec3) Len() float64         { return math.Sqrt(v.Dot(v)) }
func (v Vec3) IsZero() bool         { return v.X == 0 && v.Y == 0 && v.Z == 0 }

func (v Vec3) Dist(o Vec3) float64 { return v.Sub(o).Len() }

// Normalized returns the unit vector, or Zero for a zero-length input.
func (v Vec3) Normalized() Vec3 {
	l := v.Len()
	if l == 0 {
		return Zero
	}
	return v.Scale(1 / l)
}

// MoveTowards steps v toward target by at most maxDelta without overshooting.
func (v Vec3) MoveTowards(target Vec3, maxDelta float64) Vec3 {
	d := target.Sub(v)
	l := d.Len()
	if l <= maxDelta || l == 0 {
		return target
	}
	return v.Add(d.Scale(maxDelta / l))
}

func (v Vec3) ToArray() [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

func Vec3FromArray(a [3]float64) Vec3 { return Vec3{X: a[0], Y: a[1], Z: a[2]} }
