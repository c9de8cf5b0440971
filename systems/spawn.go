package systems

import (
	"fmt"
	"log"
	"time"

	"github.com/automoto/boomsync/archetypes"
	"github.com/automoto/boomsync/components"
	"github.com/automoto/boomsync/config"
	"github.com/automoto/boomsync/shared/gamemath"
	"github.com/automoto/boomsync/shared/messages"
	"github.com/automoto/boomsync/shared/netconfig"
	"github.com/google/uuid"
	"github.com/yohamta/donburi"
)

// FireRequest is what an input or AI collaborator asks for.
type FireRequest struct {
	Archetype string
	Origin    gamemath.Transform
	Caller    netconfig.TargetRef
}

// pendingShot is a fired shot whose predicted instance is not created yet.
type pendingShot struct {
	shot   netconfig.ShotID
	token  uuid.UUID
	arch   config.ArchetypeConfig
	origin gamemath.Transform
	caller netconfig.TargetRef
}

// Fire starts a shot. On a client it returns the shot id that pairs the
// predicted instance with its authoritative counterpart; the host fires
// untracked instances directly. Results are reported through the EffectSink.
func (m *Machine) Fire(req FireRequest) (netconfig.ShotID, error) {
	arch, ok := config.Archetype(req.Archetype)
	if !ok {
		return netconfig.Untracked, fmt.Errorf("fire: %w: %q", ErrUnknownArchetype, req.Archetype)
	}

	if m.mode == HostMode {
		// Nothing to compensate: no transfer, no fast-forward.
		m.spawnAuthoritative(m.local, netconfig.Untracked, arch, req.Origin, req.Caller)
		return netconfig.Untracked, nil
	}

	shot := m.ids.Next(m.shotInUse)
	if shot == netconfig.Untracked {
		return netconfig.Untracked, fmt.Errorf("fire: no free shot id")
	}
	p := &pendingShot{
		shot:   shot,
		token:  uuid.New(),
		arch:   arch,
		origin: req.Origin,
		caller: req.Caller,
	}
	m.pendingShots[shot] = p

	m.out.SendToHost(messages.ShotActivation{
		Shot:      uint32(shot),
		Archetype: arch.Name,
		Token:     p.token.String(),
		Caller:    string(req.Caller),
	})

	delay := m.prediction(m.local).SpawnDelay(m.rtt(netconfig.HostConnection))
	if delay > 0 {
		log.Printf("[spawn] shot %d held back %v", shot, delay)
		m.sched.After(shotKey(taskDelayedSpawn, shot), delay, func(time.Duration) {
			m.spawnPredicted(p)
		})
		return shot, nil
	}
	m.spawnPredicted(p)
	return shot, nil
}

func (m *Machine) spawnPredicted(p *pendingShot) {
	delete(m.pendingShots, p.shot)

	entry := archetypes.Predicted.Spawn(m.world)
	data := m.newProjectile(p.arch, p.origin, p.caller)
	data.Shot = p.shot
	data.Owner = m.local
	data.Role = netconfig.Predicted
	components.Projectile.Set(entry, &data)
	// Only the authoritative side looks the pair up.
	components.Link.Set(entry, &components.LinkData{State: components.PendingLink, Attempted: true})

	pr := &pair{
		shot:         p.shot,
		state:        BothPending,
		predicted:    entry.Entity(),
		predictedRef: m.ref(entry),
	}
	m.pairs[p.shot] = pr
	m.links.Register(p.shot, entry.Entity())

	m.out.SendToHost(messages.SpawnData{
		Shot:     uint32(p.shot),
		Token:    p.token.String(),
		X:        p.origin.Position.X,
		Y:        p.origin.Position.Y,
		Rotation: p.origin.Rotation,
	})

	timeout := m.prediction(m.local).LinkTimeout
	m.sched.After(shotKey(taskLinkTimeout, p.shot), timeout, func(time.Duration) {
		m.linkTimedOut(p.shot)
	})

	m.effects.InstanceSpawned(pr.predictedRef)
}

// HandleActivation authorizes a shot on the host and records a grant for its
// token. A rejection is answered with SpawnCancelled.
func (m *Machine) HandleActivation(conn netconfig.ConnectionID, msg messages.ShotActivation) {
	if m.mode != HostMode {
		log.Printf("[spawn] %v: ignoring activation for shot %d", ErrNotHost, msg.Shot)
		return
	}
	shot := netconfig.ShotID(msg.Shot)
	token, err := uuid.Parse(msg.Token)
	if err != nil {
		m.cancel(conn, shot, "malformed token")
		return
	}
	if m.ledger.Seen(token) {
		log.Printf("[spawn] duplicate activation for shot %d from %d", shot, conn)
		return
	}
	if _, ok := config.Archetype(msg.Archetype); !ok {
		m.cancel(conn, shot, ErrUnknownArchetype.Error())
		return
	}
	if m.auth != nil {
		if err := m.auth.Authorize(conn, msg.Archetype); err != nil {
			m.cancel(conn, shot, err.Error())
			return
		}
	}

	err = m.ledger.Grant(token, Grant{
		Conn:      conn,
		Shot:      shot,
		Archetype: msg.Archetype,
		Caller:    netconfig.TargetRef(msg.Caller),
	}, m.Now())
	if err != nil {
		log.Printf("[spawn] dropping activation for shot %d from %d: %v", shot, conn, err)
	}
}

func (m *Machine) cancel(conn netconfig.ConnectionID, shot netconfig.ShotID, reason string) {
	log.Printf("[spawn] rejecting shot %d from %d: %s", shot, conn, reason)
	m.out.SendTo(conn, messages.SpawnCancelled{Shot: uint32(shot), Reason: reason})
}

// HandleSpawnData creates the authoritative instance on the host. The grant
// for the token is consumed, so a duplicate never spawns a second instance.
func (m *Machine) HandleSpawnData(conn netconfig.ConnectionID, msg messages.SpawnData) {
	if m.mode != HostMode {
		log.Printf("[spawn] %v: ignoring spawn data for shot %d", ErrNotHost, msg.Shot)
		return
	}
	token, err := uuid.Parse(msg.Token)
	if err != nil {
		log.Printf("[spawn] dropping spawn data for shot %d: bad token: %v", msg.Shot, err)
		return
	}
	g, err := m.ledger.Consume(token, conn, m.Now())
	if err != nil {
		log.Printf("[spawn] dropping spawn data for shot %d from %d: %v", msg.Shot, conn, err)
		return
	}
	if g.Shot != netconfig.ShotID(msg.Shot) {
		log.Printf("[spawn] dropping spawn data: token is for shot %d, not %d", g.Shot, msg.Shot)
		return
	}
	arch, ok := config.Archetype(g.Archetype)
	if !ok {
		return
	}

	origin := gamemath.Transform{
		Position: gamemath.V(msg.X, msg.Y),
		Rotation: msg.Rotation,
	}
	m.spawnAuthoritative(conn, g.Shot, arch, origin, g.Caller)
}

// spawnAuthoritative creates the host's instance, fast-forwards it for the
// owner's latency and announces it to every client.
func (m *Machine) spawnAuthoritative(owner netconfig.ConnectionID, shot netconfig.ShotID, arch config.ArchetypeConfig, origin gamemath.Transform, caller netconfig.TargetRef) *donburi.Entry {
	m.nextInstance++
	if m.nextInstance == 0 {
		m.nextInstance++
	}

	entry := archetypes.Authoritative.Spawn(m.world)
	data := m.newProjectile(arch, origin, caller)
	data.Shot = shot
	data.Instance = m.nextInstance
	data.Owner = owner
	data.Role = netconfig.Authoritative
	data.Lifecycle = netconfig.Traveling
	components.Projectile.Set(entry, &data)
	m.instances[data.Instance] = entry.Entity()

	var forward time.Duration
	if owner != m.local {
		forward = m.prediction(owner).ForwardPrediction(m.rtt(owner))
	}
	detonated := false
	if forward > 0 {
		detonated = m.advance(entry, forward, m.sim.CatchUpSubstep)
	}

	// Clients must hear about the instance before they hear it detonated.
	m.announceSpawn(entry, forward)
	m.effects.InstanceSpawned(m.ref(entry))
	if detonated {
		m.onLocalDetonation(entry)
	}
	return entry
}

func (m *Machine) announceSpawn(entry *donburi.Entry, forward time.Duration) {
	p := components.Projectile.Get(entry)
	for _, peer := range m.out.Peers() {
		msg := messages.ProjectileSpawned{
			Instance:      uint32(p.Instance),
			Owner:         uint32(p.Owner),
			Archetype:     p.Archetype.Name,
			X:             p.Spawn.Position.X,
			Y:             p.Spawn.Position.Y,
			Rotation:      p.Spawn.Rotation,
			FastForwardMs: messages.ToMs(forward),
			Caller:        string(p.Caller),
		}
		if peer == p.Owner {
			msg.Shot = uint32(p.Shot)
		}
		m.out.SendTo(peer, msg)
	}
}

// HandleSpawnCancelled tears down a rejected shot on the firing machine.
func (m *Machine) HandleSpawnCancelled(msg messages.SpawnCancelled) {
	shot := netconfig.ShotID(msg.Shot)
	log.Printf("[spawn] shot %d cancelled by host: %s", shot, msg.Reason)

	m.sched.Cancel(shotKey(taskDelayedSpawn, shot))
	delete(m.pendingShots, shot)
	m.links.Forget(shot)

	if pr, ok := m.pairs[shot]; ok {
		m.sched.Cancel(shotKey(taskPremature, shot))
		m.sched.Cancel(shotKey(taskLinkTimeout, shot))
		m.destroyEntity(pr.predicted)
		delete(m.pairs, shot)
	}
	m.tombstone(shot)
	m.effects.ShotCancelled(shot, msg.Reason)
}

// HandleProjectileSpawned creates the local copy of an authoritative
// instance. The owner gets a hidden copy that links to its prediction;
// everyone else gets an observer copy replayed from the spawn point.
func (m *Machine) HandleProjectileSpawned(msg messages.ProjectileSpawned) {
	if m.mode == HostMode {
		return
	}
	id := netconfig.InstanceID(msg.Instance)
	if _, dup := m.instances[id]; dup {
		return
	}
	if _, gone := m.ignored[id]; gone {
		return
	}
	arch, ok := config.Archetype(msg.Archetype)
	if !ok {
		log.Printf("[spawn] instance %d has unknown archetype %q", id, msg.Archetype)
		return
	}

	origin := gamemath.Transform{Position: gamemath.V(msg.X, msg.Y), Rotation: msg.Rotation}
	data := m.newProjectile(arch, origin, netconfig.TargetRef(msg.Caller))
	data.Instance = id
	data.Owner = netconfig.ConnectionID(msg.Owner)
	data.Role = netconfig.Authoritative
	data.Replica = true
	data.Lifespan += m.sim.ReplicaSlack

	shot := netconfig.ShotID(msg.Shot)
	var entry *donburi.Entry
	if data.Owner == m.local && shot != netconfig.Untracked {
		if _, dead := m.tombstones[shot]; dead {
			log.Printf("[spawn] shot %d already finished, ignoring instance %d", shot, id)
			m.ignore(id)
			return
		}
		entry = archetypes.OwnerCopy.Spawn(m.world)
		data.Shot = shot
		data.Visible = false
		// Represent the host's present: its fast-forward plus the trip here.
		data.CatchUp = messages.FromMs(msg.FastForwardMs) + m.rtt(netconfig.HostConnection)/2
		components.Projectile.Set(entry, &data)
		components.Link.Set(entry, &components.LinkData{State: components.PendingLink})
	} else {
		// Observers start from the spawn transform regardless of how far
		// the host advanced its instance.
		entry = archetypes.ObserverCopy.Spawn(m.world)
		components.Projectile.Set(entry, &data)
	}
	m.instances[id] = entry.Entity()
	m.effects.InstanceSpawned(m.ref(entry))
}

func (m *Machine) newProjectile(arch config.ArchetypeConfig, origin gamemath.Transform, caller netconfig.TargetRef) components.ProjectileData {
	return components.ProjectileData{
		Lifecycle:      netconfig.Spawning,
		Archetype:      arch,
		Spawn:          origin,
		Current:        origin,
		Velocity:       gamemath.LaunchVelocity(origin.Rotation, arch.Speed),
		InitialSpeed:   arch.Speed,
		Lifespan:       arch.Lifespan,
		BouncesLeft:    arch.Bounces,
		Caller:         caller,
		Visible:        true,
		FirstVisibleAt: m.Now(),
	}
}
