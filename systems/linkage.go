package systems

import (
	"log"

	"github.com/automoto/boomsync/components"
	"github.com/automoto/boomsync/shared/netconfig"
	"github.com/yohamta/donburi"
)

// LinkageRegistry holds predicted instances that are still waiting for their
// authoritative counterpart. Only the firing machine has entries.
type LinkageRegistry struct {
	pending map[netconfig.ShotID]donburi.Entity
}

func NewLinkageRegistry() *LinkageRegistry {
	return &LinkageRegistry{pending: make(map[netconfig.ShotID]donburi.Entity)}
}

func (r *LinkageRegistry) Register(shot netconfig.ShotID, predicted donburi.Entity) {
	r.pending[shot] = predicted
}

// Claim removes and returns the predicted instance for shot. The entity may
// already be gone; callers check World.Valid.
func (r *LinkageRegistry) Claim(shot netconfig.ShotID) (donburi.Entity, bool) {
	e, ok := r.pending[shot]
	if ok {
		delete(r.pending, shot)
	}
	return e, ok
}

func (r *LinkageRegistry) Forget(shot netconfig.ShotID) {
	delete(r.pending, shot)
}

func (r *LinkageRegistry) Pending(shot netconfig.ShotID) bool {
	_, ok := r.pending[shot]
	return ok
}

func (r *LinkageRegistry) Len() int {
	return len(r.pending)
}

// attemptLink runs once, at the start of an owner copy's first update cycle,
// and pairs it with the prediction waiting under the same shot id.
func (m *Machine) attemptLink(entry *donburi.Entry) {
	p := components.Projectile.Get(entry)
	link := components.Link.Get(entry)
	link.Attempted = true

	predicted, ok := m.links.Claim(p.Shot)
	pr, paired := m.pairs[p.Shot]
	if paired && pr.lost {
		log.Printf("[link] instance %d arrived after shot %d gave up waiting, dropping", p.Instance, p.Shot)
		m.destroy(entry)
		return
	}
	if !ok || !paired {
		log.Printf("[link] instance %d: no prediction waiting for shot %d", p.Instance, p.Shot)
		link.State = components.Unlinked
		m.reveal(entry.Entity())
		return
	}

	link.State = components.Linked
	link.Peer = predicted
	pr.authoritative = entry.Entity()
	pr.authoritativeRef = m.ref(entry)
	pr.hasAuthoritative = true
	m.sched.Cancel(shotKey(taskLinkTimeout, p.Shot))

	if !m.world.Valid(predicted) || pr.discarded {
		m.reveal(entry.Entity())
		return
	}
	peer := components.Link.Get(m.world.Entry(predicted))
	peer.State = components.Linked
	peer.Peer = entry.Entity()
}
