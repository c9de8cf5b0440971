package gamemath

import "math"

// Transform is a position plus a facing in radians.
type Transform struct {
	Position Vec2
	Rotation float64
}

// Integrate advances a body under constant vertical gravity for dt seconds.
// The closed form keeps the result independent of how a span is sliced, so two
// machines ticking at different rates land on the same trajectory.
func Integrate(pos, vel Vec2, gravity, dt float64) (Vec2, Vec2) {
	next := Vec2{
		X: pos.X + vel.X*dt,
		Y: pos.Y + vel.Y*dt + 0.5*gravity*dt*dt,
	}
	return next, Vec2{X: vel.X, Y: vel.Y + gravity*dt}
}

// LaunchVelocity returns the initial velocity for a shot fired along rotation.
func LaunchVelocity(rotation, speed float64) Vec2 {
	return Direction(rotation).MulScalar(speed)
}

// Slices splits span into n equal slices no longer than maxSlice.
func Slices(span, maxSlice float64) (n int, slice float64) {
	if span <= 0 {
		return 0, 0
	}
	if maxSlice <= 0 || span <= maxSlice {
		return 1, span
	}
	n = int(math.Ceil(span / maxSlice))
	return n, span / float64(n)
}
