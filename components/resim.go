package components

import (
	"github.com/automoto/boomsync/shared/gamemath"
	"github.com/tanema/gween"
	"github.com/yohamta/donburi"
)

// ResimData drives an observer copy from where it is to the host's
// detonation point. Progress runs 0→1 over the catch-up delay.
type ResimData struct {
	Progress *gween.Tween
	From, To gamemath.Vec2
}

var Resim = donburi.NewComponentType[ResimData]()
