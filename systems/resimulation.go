package systems

import (
	"log"
	"time"

	"github.com/automoto/boomsync/components"
	"github.com/automoto/boomsync/shared/gamemath"
	"github.com/automoto/boomsync/shared/netconfig"
	"github.com/automoto/boomsync/tags"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
	"github.com/yohamta/donburi"
)

// resimulateDetonation carries an observer copy from wherever its replay has
// reached to the host's detonation point instead of teleporting it there.
func (m *Machine) resimulateDetonation(entry *donburi.Entry, rec *components.DetonationRecord) {
	resim := components.Resim.Get(entry)
	if resim.Progress != nil {
		return
	}
	p := components.Projectile.Get(entry)

	speed := p.Velocity.Magnitude()
	if speed <= 0 {
		speed = p.InitialSpeed
	}
	var delay time.Duration
	dist := p.Current.Position.Distance(rec.Location)
	if speed > 0 {
		delay = seconds(dist / speed)
	}

	// Very short shots slow down rather than vanish before anyone saw them.
	visible := m.Now() - p.FirstVisibleAt
	if floor := m.prediction(m.local).MinVisibleLifetime; visible+delay < floor {
		delay = floor - visible
	}

	p.Halted = true
	if delay <= 0 {
		m.observerDetonate(entry.Entity(), rec)
		return
	}

	resim.From = p.Current.Position
	resim.To = rec.Location
	resim.Progress = gween.New(0, 1, float32(delay.Seconds()), ease.Linear)
	e := entry.Entity()
	m.sched.After(entityKey(taskResim, e), delay, func(time.Duration) {
		m.observerDetonate(e, rec)
	})
}

// resimulate moves observer copies along their catch-up paths.
func (m *Machine) resimulate(dt time.Duration) {
	tags.Observer.Each(m.world, func(entry *donburi.Entry) {
		resim := components.Resim.Get(entry)
		if resim.Progress == nil {
			return
		}
		f, _ := resim.Progress.Update(float32(dt.Seconds()))
		p := components.Projectile.Get(entry)
		p.Current.Position = gamemath.Lerp(resim.From, resim.To, float64(f))
	})
}

func (m *Machine) resimActive(entry *donburi.Entry) bool {
	return entry.HasComponent(tags.Observer) && components.Resim.Get(entry).Progress != nil
}

func (m *Machine) observerDetonate(e donburi.Entity, rec *components.DetonationRecord) {
	if !m.world.Valid(e) {
		return
	}
	entry := m.world.Entry(e)
	p := components.Projectile.Get(entry)
	if p.Lifecycle == netconfig.Detonated {
		return
	}
	p.Current.Position = rec.Location
	p.Lifecycle = netconfig.Detonated
	p.Detonation = rec
	p.Detonation.At = m.Now()
	components.Resim.Get(entry).Progress = nil

	log.Printf("[resim] instance %d detonated after %v visible", p.Instance, m.Now()-p.FirstVisibleAt)
	m.effects.Detonated(m.ref(entry), *rec)
	m.destroyAfterGrace(e)
}
