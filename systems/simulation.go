package systems

import (
	"log"
	"math"
	"time"

	"github.com/automoto/boomsync/components"
	"github.com/automoto/boomsync/shared/gamemath"
	"github.com/automoto/boomsync/shared/netconfig"
	"github.com/automoto/boomsync/tags"
	"github.com/yohamta/donburi"
)

// simulate advances every instance by dt. Nothing here is sent over the
// network; only detonations leave the machine.
func (m *Machine) simulate(dt time.Duration) {
	for _, entry := range m.projectiles() {
		if !entry.Valid() {
			continue
		}
		p := components.Projectile.Get(entry)
		if p.Lifecycle == netconfig.Spawning {
			if !m.begin(entry) {
				continue
			}
		}
		if p.Lifecycle == netconfig.Traveling {
			m.step(entry, dt)
		}
	}
	m.retryDeferred()
}

// begin runs at the start of an instance's first update cycle. It reports
// whether the instance is still traveling afterwards.
func (m *Machine) begin(entry *donburi.Entry) bool {
	p := components.Projectile.Get(entry)
	p.Lifecycle = netconfig.Traveling

	if entry.HasComponent(components.Link) && !components.Link.Get(entry).Attempted {
		m.attemptLink(entry)
		if !entry.Valid() {
			return false
		}
	}

	if p.CatchUp > 0 {
		span := p.CatchUp
		p.CatchUp = 0
		if m.advance(entry, span, m.sim.CatchUpSubstep) {
			m.onLocalDetonation(entry)
			return false
		}
	}
	return entry.Valid() && p.Lifecycle == netconfig.Traveling
}

func (m *Machine) step(entry *donburi.Entry, dt time.Duration) {
	p := components.Projectile.Get(entry)

	span := dt
	if remaining := p.Lifespan - p.Age; remaining < span {
		span = remaining
	}
	if span < 0 {
		span = 0
	}

	if p.Halted {
		p.Age += span
	} else if m.advance(entry, span, m.sim.Substep) {
		m.onLocalDetonation(entry)
		return
	}

	if p.Age >= p.Lifespan && !m.resimActive(entry) {
		m.expire(entry)
	}
}

// advance integrates an instance over span in slices no longer than slice,
// sweeping each one through the collider so fast instances cannot tunnel.
// It reports whether the instance detonated.
func (m *Machine) advance(entry *donburi.Entry, span, slice time.Duration) bool {
	p := components.Projectile.Get(entry)
	start := p.Age
	n, h := gamemath.Slices(span.Seconds(), slice.Seconds())
	for i := 0; i < n; i++ {
		if p.Lifecycle != netconfig.Traveling || p.Halted {
			break
		}
		m.integrate(p, h)
	}
	if p.Lifecycle == netconfig.Traveling && !p.Halted {
		// Slices drift by a few nanoseconds; keep the clock exact.
		p.Age = start + span
	}
	return p.Lifecycle == netconfig.Detonated
}

// integrate moves p through one slice of dt seconds, bouncing off surfaces
// while it has bounces left.
func (m *Machine) integrate(p *components.ProjectileData, dt float64) {
	g := p.Archetype.Gravity
	remaining := dt
	for contacts := 0; remaining > 0 && contacts <= p.Archetype.Bounces; contacts++ {
		pos := p.Current.Position
		next, vel := gamemath.Integrate(pos, p.Velocity, g, remaining)

		hit, ok := m.collider.Sweep(pos, next, p.Archetype.Radius, p.Caller)
		if !ok {
			p.Current.Position = next
			p.Velocity = vel
			p.Age += seconds(remaining)
			break
		}

		used := remaining * hit.Fraction
		_, atHit := gamemath.Integrate(pos, p.Velocity, g, used)
		p.Current.Position = hit.Position
		p.Age += seconds(used)
		remaining -= used

		if hit.Cause == netconfig.CauseSurface && p.BouncesLeft > 0 {
			p.BouncesLeft--
			p.Velocity = gamemath.Reflect(atHit, hit.Normal)
			continue
		}

		p.Velocity = atHit
		if p.Replica {
			// Only the host decides where a shot detonates.
			p.Halted = true
			break
		}
		p.Lifecycle = netconfig.Detonated
		p.Detonation = &components.DetonationRecord{
			Location: hit.Position,
			Normal:   hit.Normal,
			Target:   hit.Target,
			Cause:    hit.Cause,
			At:       m.Now(),
		}
		break
	}
	if p.Velocity.X != 0 || p.Velocity.Y != 0 {
		p.Current.Rotation = math.Atan2(p.Velocity.Y, p.Velocity.X)
	}
}

// expire handles an instance reaching its lifespan ceiling.
func (m *Machine) expire(entry *donburi.Entry) {
	p := components.Projectile.Get(entry)
	if p.Archetype.DetonateOnExpiry && !p.Replica {
		p.Lifecycle = netconfig.Detonated
		p.Detonation = &components.DetonationRecord{
			Location: p.Current.Position,
			Cause:    netconfig.CauseFuse,
			At:       m.Now(),
		}
		m.onLocalDetonation(entry)
		return
	}

	switch {
	case entry.HasComponent(tags.Predicted):
		m.predictedExpired(entry)
	case entry.HasComponent(tags.Authoritative) && entry.HasComponent(components.Link):
		m.ownerCopyExpired(entry)
	default:
		log.Printf("[sim] instance %d expired after %v without detonating", p.Instance, p.Age)
		m.destroy(entry)
	}
}

// onLocalDetonation dispatches a detonation produced by this machine's own
// simulation. Replicas never get here.
func (m *Machine) onLocalDetonation(entry *donburi.Entry) {
	if entry.HasComponent(tags.Predicted) {
		m.predictedDetonated(entry)
		return
	}
	m.hostDetonated(entry)
}
