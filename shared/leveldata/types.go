// Package leveldata provides TMX arena parsing shared between client and server.
// It has no dependencies on donburi or resolv, pure data only.
package leveldata

// ArenaData holds everything a projectile can collide with in one arena.
type ArenaData struct {
	Solids  []Rect
	Targets []Target
	Width   int
	Height  int
}

// Rect is an axis-aligned rectangle in world units, origin top-left.
type Rect struct {
	X, Y, W, H float64
}

// Target is a named static hitbox placed in the map editor.
type Target struct {
	Name string
	Rect
}

// Box returns an empty w x h arena enclosed by walls of the given thickness.
// The headless binaries use it when no map is supplied.
func Box(w, h int, thickness float64) *ArenaData {
	fw, fh := float64(w), float64(h)
	return &ArenaData{
		Width:  w,
		Height: h,
		Solids: []Rect{
			{X: 0, Y: 0, W: fw, H: thickness},
			{X: 0, Y: fh - thickness, W: fw, H: thickness},
			{X: 0, Y: 0, W: thickness, H: fh},
			{X: fw - thickness, Y: 0, W: thickness, H: fh},
		},
	}
}
