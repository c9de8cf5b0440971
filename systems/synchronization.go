package systems

import (
	"sort"
	"time"

	"github.com/automoto/boomsync/components"
	"github.com/automoto/boomsync/shared/gamemath"
	"github.com/automoto/boomsync/shared/netconfig"
)

// synchronize pulls each linked prediction toward its authoritative copy.
// The move is a plain teleport: no sweep runs, so closing the gap never
// produces a collision the prediction did not earn on its own.
func (m *Machine) synchronize(dt time.Duration) {
	if len(m.pairs) == 0 {
		return
	}
	cfg := m.prediction(m.local)

	shots := make([]netconfig.ShotID, 0, len(m.pairs))
	for shot := range m.pairs {
		shots = append(shots, shot)
	}
	sort.Slice(shots, func(i, j int) bool { return shots[i] < shots[j] })

	for _, shot := range shots {
		pr := m.pairs[shot]
		if pr.state != BothPending || !pr.hasAuthoritative {
			continue
		}
		if !m.world.Valid(pr.predicted) || !m.world.Valid(pr.authoritative) {
			continue
		}
		pred := components.Projectile.Get(m.world.Entry(pr.predicted))
		auth := components.Projectile.Get(m.world.Entry(pr.authoritative))
		if pred.Lifecycle != netconfig.Traveling || auth.Lifecycle != netconfig.Traveling || auth.Halted {
			continue
		}

		alpha := cfg.LerpFraction(pred.InitialSpeed, dt)
		pred.Current.Position = gamemath.Lerp(pred.Current.Position, auth.Current.Position, alpha)
		pred.Velocity = gamemath.Lerp(pred.Velocity, auth.Velocity, alpha)
	}
}
