package gamemath

import (
	"math"

	dmath "github.com/yohamta/donburi/features/math"
)

// Vec2 is the 2D vector used throughout the simulation.
type Vec2 = dmath.Vec2

func V(x, y float64) Vec2 {
	return Vec2{X: x, Y: y}
}

func Dot(a, b Vec2) float64 {
	return a.X*b.X + a.Y*b.Y
}

// Lerp moves a toward b by fraction t.
func Lerp(a, b Vec2, t float64) Vec2 {
	return Vec2{X: a.X + (b.X-a.X)*t, Y: a.Y + (b.Y-a.Y)*t}
}

// Direction returns the unit vector for a rotation in radians.
func Direction(rotation float64) Vec2 {
	return Vec2{X: math.Cos(rotation), Y: math.Sin(rotation)}
}

// Reflect mirrors v about the plane with the given unit normal.
func Reflect(v, normal Vec2) Vec2 {
	d := 2 * Dot(v, normal)
	return Vec2{X: v.X - d*normal.X, Y: v.Y - d*normal.Y}
}

// Clamp restricts v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
