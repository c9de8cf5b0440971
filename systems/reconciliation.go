package systems

import (
	"log"
	"sort"
	"time"

	"github.com/automoto/boomsync/components"
	"github.com/automoto/boomsync/shared/gamemath"
	"github.com/automoto/boomsync/shared/messages"
	"github.com/automoto/boomsync/shared/netconfig"
	"github.com/automoto/boomsync/tags"
	"github.com/yohamta/donburi"
)

// PairState tracks detonation causality for one shot on the firing machine.
type PairState int

const (
	BothPending PairState = iota
	PredictedDetonatedOnly
	AuthoritativeDetonatedOnly
	BothDetonated
	Resolved
)

var pairStateNames = map[PairState]string{
	BothPending:                "both-pending",
	PredictedDetonatedOnly:     "predicted-detonated",
	AuthoritativeDetonatedOnly: "authoritative-detonated",
	BothDetonated:              "both-detonated",
	Resolved:                   "resolved",
}

func (s PairState) String() string {
	return pairStateNames[s]
}

// pair is the firing machine's record of one shot. Entities are handles into
// the world and may already be gone; the refs and records outlive them.
type pair struct {
	shot  netconfig.ShotID
	state PairState

	predicted        donburi.Entity
	predictedRef     InstanceRef
	predictedRecord  *components.DetonationRecord
	authoritative    donburi.Entity
	authoritativeRef InstanceRef
	hasAuthoritative bool

	discarded bool // Predicted outcome thrown away; the authoritative one will stand
	lost      bool // Counterpart never arrived; the local outcome will stand
}

// hostDetonated makes the host's own detonation canonical and tells every
// client where it happened.
func (m *Machine) hostDetonated(entry *donburi.Entry) {
	p := components.Projectile.Get(entry)
	rec := p.Detonation

	info := messages.DetonationInfo{
		Instance: uint32(p.Instance),
		X:        rec.Location.X,
		Y:        rec.Location.Y,
		NormalX:  rec.Normal.X,
		NormalY:  rec.Normal.Y,
		Cause:    uint8(rec.Cause),
		Target:   string(rec.Target),
	}
	for _, peer := range m.out.Peers() {
		m.out.SendTo(peer, info)
	}

	m.effects.Detonated(m.ref(entry), *rec)
	m.destroyAfterGrace(entry.Entity())
}

// predictedDetonated handles the firing machine's own prediction hitting
// something. Its effects play right away; whether they stand is decided once
// the authoritative outcome is known.
func (m *Machine) predictedDetonated(entry *donburi.Entry) {
	p := components.Projectile.Get(entry)
	rec := p.Detonation
	m.effects.PredictedImpact(m.ref(entry), *rec)

	pr, ok := m.pairs[p.Shot]
	if !ok {
		m.effects.Detonated(m.ref(entry), *rec)
		m.destroyAfterGrace(entry.Entity())
		return
	}
	pr.predictedRecord = rec

	if pr.lost {
		log.Printf("[recon] shot %d: no authoritative instance, local outcome stands", pr.shot)
		m.resolve(pr, pr.predictedRef, rec, pr.predicted)
		return
	}
	if pr.state != BothPending {
		return
	}

	pr.state = PredictedDetonatedOnly
	// The predicted instance stays until the window closes so the pair can
	// still be compared if the authoritative result is merely slow.
	window := m.prediction(m.local).PrematureWindow(m.rtt(netconfig.HostConnection), m.sim.TickPeriod())
	m.sched.After(shotKey(taskPremature, pr.shot), window, func(time.Duration) {
		m.prematureExpired(pr.shot)
	})
}

// prematureExpired fires when the host never confirmed a predicted
// detonation in time: the prediction was wrong.
func (m *Machine) prematureExpired(shot netconfig.ShotID) {
	pr, ok := m.pairs[shot]
	if !ok || pr.state != PredictedDetonatedOnly || pr.discarded {
		return
	}
	log.Printf("[recon] shot %d: predicted detonation unconfirmed, discarding", shot)
	pr.discarded = true
	m.destroyEntity(pr.predicted)
	if pr.hasAuthoritative {
		m.reveal(pr.authoritative)
	}
}

// ownerCopyDetonated applies the host's verdict to the firing machine's copy
// of the authoritative instance.
func (m *Machine) ownerCopyDetonated(entry *donburi.Entry, rec *components.DetonationRecord) {
	p := components.Projectile.Get(entry)
	p.Current.Position = rec.Location
	p.Lifecycle = netconfig.Detonated
	p.Detonation = rec
	p.Halted = true

	link := components.Link.Get(entry)
	pr, ok := m.pairs[p.Shot]
	switch {
	case link.State == components.Linked && !ok:
		// The shot already resolved.
		m.destroy(entry)
		return
	case link.State != components.Linked:
		log.Printf("[link] instance %d detonated unlinked, trusting local outcome", p.Instance)
		m.reveal(entry.Entity())
		m.effects.Detonated(m.ref(entry), *rec)
		m.destroyAfterGrace(entry.Entity())
		return
	}

	m.sched.Cancel(shotKey(taskPremature, pr.shot))
	switch {
	case pr.state == BothPending:
		pr.state = AuthoritativeDetonatedOnly
		log.Printf("[recon] shot %d: late detonation, adopting authoritative outcome", pr.shot)
		m.adoptAuthoritative(pr, entry, rec)

	case pr.state == PredictedDetonatedOnly && pr.discarded:
		m.adoptAuthoritative(pr, entry, rec)

	case pr.state == PredictedDetonatedOnly:
		pr.state = BothDetonated
		miss := pr.predictedRecord.Location.Distance(rec.Location)
		if miss > m.prediction(m.local).InaccuracyTolerance {
			log.Printf("[recon] shot %d: detonations %.1f apart, adopting authoritative outcome", pr.shot, miss)
			m.adoptAuthoritative(pr, entry, rec)
			return
		}
		// Consistent: the prediction's effects already played and stand.
		m.destroy(entry)
		m.resolve(pr, pr.predictedRef, pr.predictedRecord, pr.predicted)
	}
}

func (m *Machine) adoptAuthoritative(pr *pair, entry *donburi.Entry, rec *components.DetonationRecord) {
	m.destroyEntity(pr.predicted)
	m.reveal(entry.Entity())
	m.resolve(pr, pr.authoritativeRef, rec, entry.Entity())
}

// resolve delivers the canonical detonation for a pair exactly once and
// retires the shot id.
func (m *Machine) resolve(pr *pair, ref InstanceRef, rec *components.DetonationRecord, keep donburi.Entity) {
	if pr.state == Resolved {
		return
	}
	pr.state = Resolved
	m.finish(pr)
	m.effects.Detonated(ref, *rec)
	if m.world.Valid(keep) {
		m.destroyAfterGrace(keep)
	}
}

// finish forgets a pair without delivering anything.
func (m *Machine) finish(pr *pair) {
	pr.state = Resolved
	delete(m.pairs, pr.shot)
	m.links.Forget(pr.shot)
	m.sched.Cancel(shotKey(taskPremature, pr.shot))
	m.sched.Cancel(shotKey(taskLinkTimeout, pr.shot))
	m.tombstone(pr.shot)
}

// linkTimedOut gives up on an authoritative counterpart that never arrived.
func (m *Machine) linkTimedOut(shot netconfig.ShotID) {
	pr, ok := m.pairs[shot]
	if !ok || pr.hasAuthoritative {
		return
	}
	log.Printf("[link] shot %d: authoritative instance never arrived", shot)
	m.links.Forget(shot)
	pr.lost = true

	switch {
	case pr.predictedRecord != nil:
		m.resolve(pr, pr.predictedRef, pr.predictedRecord, pr.predicted)
	case !m.world.Valid(pr.predicted):
		m.finish(pr)
	}
	// Otherwise the prediction keeps flying and resolves on its own.
}

// predictedExpired handles a prediction that ran out its lifespan without
// detonating.
func (m *Machine) predictedExpired(entry *donburi.Entry) {
	shot := components.Projectile.Get(entry).Shot
	m.destroy(entry)

	pr, ok := m.pairs[shot]
	if !ok {
		return
	}
	pr.discarded = true
	switch {
	case pr.lost:
		m.finish(pr)
	case pr.hasAuthoritative:
		m.reveal(pr.authoritative)
	}
}

// ownerCopyExpired handles the host's instance ending without a detonation:
// whatever the prediction showed did not happen.
func (m *Machine) ownerCopyExpired(entry *donburi.Entry) {
	p := components.Projectile.Get(entry)
	shot, state := p.Shot, components.Link.Get(entry).State
	m.destroy(entry)

	pr, ok := m.pairs[shot]
	if !ok || state != components.Linked {
		return
	}
	log.Printf("[recon] shot %d: authoritative instance expired, no detonation", shot)
	m.destroyEntity(pr.predicted)
	m.finish(pr)
}

// HandleDetonationInfo applies the host's detonation broadcast. It is
// idempotent: a second message for the same instance is dropped.
func (m *Machine) HandleDetonationInfo(msg messages.DetonationInfo) {
	id := netconfig.InstanceID(msg.Instance)
	e, ok := m.instances[id]
	if !ok || !m.world.Valid(e) {
		if _, gone := m.ignored[id]; !gone {
			log.Printf("[recon] detonation for unknown instance %d", id)
		}
		return
	}
	entry := m.world.Entry(e)
	p := components.Projectile.Get(entry)
	if p.Detonation != nil {
		return
	}

	rec := &components.DetonationRecord{
		Location: gamemath.V(msg.X, msg.Y),
		Normal:   gamemath.V(msg.NormalX, msg.NormalY),
		Target:   netconfig.TargetRef(msg.Target),
		Cause:    netconfig.Cause(msg.Cause),
		At:       m.Now(),
	}

	switch {
	case entry.HasComponent(tags.Observer):
		m.resimulateDetonation(entry, rec)
	case entry.HasComponent(components.Link):
		link := components.Link.Get(entry)
		if !link.Attempted {
			if link.Deferred == nil {
				log.Printf("[link] instance %d detonated before linking, deferring", id)
				link.Deferred = rec
				m.deferred = append(m.deferred, e)
			}
			return
		}
		m.ownerCopyDetonated(entry, rec)
	default:
		log.Printf("[recon] unexpected detonation for host-side instance %d", id)
	}
}

// retryDeferred runs after a full update cycle and gives every deferred
// detonation its single retry.
func (m *Machine) retryDeferred() {
	if len(m.deferred) == 0 {
		return
	}
	pending := m.deferred
	m.deferred = nil
	sort.Slice(pending, func(i, j int) bool { return pending[i].Id() < pending[j].Id() })

	for _, e := range pending {
		if !m.world.Valid(e) {
			continue
		}
		entry := m.world.Entry(e)
		link := components.Link.Get(entry)
		rec := link.Deferred
		link.Deferred = nil
		if rec == nil || components.Projectile.Get(entry).Detonation != nil {
			continue
		}
		m.ownerCopyDetonated(entry, rec)
	}
}
