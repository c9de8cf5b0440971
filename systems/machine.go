package systems

import (
	"errors"
	"log"
	"sort"
	"time"

	"github.com/automoto/boomsync/components"
	"github.com/automoto/boomsync/config"
	"github.com/automoto/boomsync/physics"
	"github.com/automoto/boomsync/schedule"
	"github.com/automoto/boomsync/shared/gamemath"
	"github.com/automoto/boomsync/shared/messages"
	"github.com/automoto/boomsync/shared/netconfig"
	"github.com/automoto/boomsync/tags"
	"github.com/yohamta/donburi"
)

var (
	ErrUnknownArchetype = errors.New("unknown archetype")
	ErrNotHost          = errors.New("not the host")
)

type Mode int

const (
	HostMode Mode = iota
	ClientMode
)

// Collider is the sweep primitive the simulation runs against.
// physics.Arena implements it.
type Collider interface {
	Sweep(from, to gamemath.Vec2, radius float64, ignore netconfig.TargetRef) (physics.Hit, bool)
}

// Outbox delivers messages reliably and in order. On a client only
// SendToHost is used; Peers lists the connected clients on the host.
type Outbox interface {
	SendToHost(msg any)
	SendTo(conn netconfig.ConnectionID, msg any)
	Peers() []netconfig.ConnectionID
}

// LatencyProvider reports the smoothed round-trip time to conn.
type LatencyProvider interface {
	RTT(conn netconfig.ConnectionID) time.Duration
}

// Authorizer decides whether conn may fire archetype right now.
type Authorizer interface {
	Authorize(conn netconfig.ConnectionID, archetype string) error
}

// InstanceRef identifies an instance to collaborators outside the engine.
type InstanceRef struct {
	Entity    donburi.Entity
	Shot      netconfig.ShotID
	Instance  netconfig.InstanceID
	Owner     netconfig.ConnectionID
	Role      netconfig.Role
	Archetype string
}

// EffectSink receives everything the engine wants the outside world to show
// or apply. Detonated is called exactly once per shot per machine;
// PredictedImpact is cosmetic and may precede a different canonical result.
type EffectSink interface {
	InstanceSpawned(ref InstanceRef)
	ShotCancelled(shot netconfig.ShotID, reason string)
	PredictedImpact(ref InstanceRef, rec components.DetonationRecord)
	Detonated(ref InstanceRef, rec components.DetonationRecord)
}

type Options struct {
	Mode       Mode
	Local      netconfig.ConnectionID
	Collider   Collider
	Configs    *config.Store
	Outbox     Outbox
	Effects    EffectSink
	Latency    LatencyProvider
	Authorizer Authorizer               // Host only; nil allows everything
	Simulation *config.SimulationConfig // nil uses config.Simulation
}

// Machine is one participant's projectile engine: the host or a client.
// It is driven by a single loop; nothing here is safe for concurrent use.
type Machine struct {
	mode     Mode
	local    netconfig.ConnectionID
	world    donburi.World
	collider Collider
	sched    *schedule.Scheduler
	configs  *config.Store
	out      Outbox
	effects  EffectSink
	latency  LatencyProvider
	auth     Authorizer
	sim      config.SimulationConfig

	ids          *IdAllocator
	links        *LinkageRegistry
	ledger       *Ledger
	pendingShots map[netconfig.ShotID]*pendingShot
	pairs        map[netconfig.ShotID]*pair
	tombstones   map[netconfig.ShotID]struct{}
	instances    map[netconfig.InstanceID]donburi.Entity
	ignored      map[netconfig.InstanceID]struct{}
	nextInstance netconfig.InstanceID
	deferred     []donburi.Entity
}

func NewMachine(opts Options) *Machine {
	sim := config.Simulation
	if opts.Simulation != nil {
		sim = *opts.Simulation
	}
	configs := opts.Configs
	if configs == nil {
		configs = config.NewStore(config.DefaultPrediction)
	}

	m := &Machine{
		mode:         opts.Mode,
		local:        opts.Local,
		world:        donburi.NewWorld(),
		collider:     opts.Collider,
		sched:        schedule.New(),
		configs:      configs,
		out:          opts.Outbox,
		effects:      opts.Effects,
		latency:      opts.Latency,
		auth:         opts.Authorizer,
		sim:          sim,
		ids:          NewIdAllocator(netconfig.Untracked),
		links:        NewLinkageRegistry(),
		pendingShots: make(map[netconfig.ShotID]*pendingShot),
		pairs:        make(map[netconfig.ShotID]*pair),
		tombstones:   make(map[netconfig.ShotID]struct{}),
		instances:    make(map[netconfig.InstanceID]donburi.Entity),
		ignored:      make(map[netconfig.InstanceID]struct{}),
	}
	if m.mode == HostMode {
		m.ledger = NewLedger(sim.GrantTTL)
	}
	return m
}

// Update runs one simulation tick: due timers first, then the local
// simulation, then observer catch-up and visual convergence.
func (m *Machine) Update(dt time.Duration) {
	m.sched.Advance(dt)
	if m.ledger != nil {
		m.ledger.Sweep(m.Now())
	}
	m.simulate(dt)
	m.resimulate(dt)
	m.synchronize(dt)
}

// HandleMessage routes a decoded network message to its handler and reports
// whether the type was recognized.
func (m *Machine) HandleMessage(from netconfig.ConnectionID, msg any) bool {
	switch v := msg.(type) {
	case messages.ShotActivation:
		m.HandleActivation(from, v)
	case messages.SpawnData:
		m.HandleSpawnData(from, v)
	case messages.SpawnCancelled:
		m.HandleSpawnCancelled(v)
	case messages.ProjectileSpawned:
		m.HandleProjectileSpawned(v)
	case messages.DetonationInfo:
		m.HandleDetonationInfo(v)
	default:
		return false
	}
	return true
}

// Disconnect forgets everything the host holds for conn.
func (m *Machine) Disconnect(conn netconfig.ConnectionID) {
	if m.ledger != nil {
		if n := m.ledger.DropConn(conn); n > 0 {
			log.Printf("[spawn] dropped %d grants for connection %d", n, conn)
		}
	}
}

func (m *Machine) World() donburi.World {
	return m.world
}

func (m *Machine) Now() time.Duration {
	return m.sched.Now()
}

func (m *Machine) Mode() Mode {
	return m.mode
}

// Instance returns the live entry for an authoritative instance id.
func (m *Machine) Instance(id netconfig.InstanceID) (*donburi.Entry, bool) {
	e, ok := m.instances[id]
	if !ok || !m.world.Valid(e) {
		return nil, false
	}
	return m.world.Entry(e), true
}

// Predicted returns the live predicted instance for shot.
func (m *Machine) Predicted(shot netconfig.ShotID) (*donburi.Entry, bool) {
	pr, ok := m.pairs[shot]
	if !ok || !m.world.Valid(pr.predicted) {
		return nil, false
	}
	return m.world.Entry(pr.predicted), true
}

// PairState reports the reconciliation state of an unresolved shot.
func (m *Machine) PairState(shot netconfig.ShotID) (PairState, bool) {
	pr, ok := m.pairs[shot]
	if !ok {
		return Resolved, false
	}
	return pr.state, true
}

func (m *Machine) PendingLinks() int {
	return m.links.Len()
}

func (m *Machine) prediction(conn netconfig.ConnectionID) config.PredictionConfig {
	return m.configs.For(conn)
}

func (m *Machine) rtt(conn netconfig.ConnectionID) time.Duration {
	if m.latency == nil {
		return 0
	}
	return m.latency.RTT(conn)
}

func (m *Machine) ref(entry *donburi.Entry) InstanceRef {
	p := components.Projectile.Get(entry)
	return InstanceRef{
		Entity:    entry.Entity(),
		Shot:      p.Shot,
		Instance:  p.Instance,
		Owner:     p.Owner,
		Role:      p.Role,
		Archetype: p.Archetype.Name,
	}
}

// projectiles returns every live instance in creation order.
func (m *Machine) projectiles() []*donburi.Entry {
	var out []*donburi.Entry
	tags.Projectile.Each(m.world, func(e *donburi.Entry) {
		out = append(out, e)
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].Entity().Id() < out[j].Entity().Id()
	})
	return out
}

func (m *Machine) destroy(entry *donburi.Entry) {
	if !entry.Valid() {
		return
	}
	e := entry.Entity()
	p := components.Projectile.Get(entry)
	p.Lifecycle = netconfig.Destroyed
	if entry.HasComponent(tags.Authoritative) && m.instances[p.Instance] == e {
		delete(m.instances, p.Instance)
		if m.mode == ClientMode {
			m.ignore(p.Instance)
		}
	}
	m.sched.Cancel(entityKey(taskDestroy, e))
	m.sched.Cancel(entityKey(taskResim, e))
	m.world.Remove(e)
}

func (m *Machine) destroyEntity(e donburi.Entity) {
	if m.world.Valid(e) {
		m.destroy(m.world.Entry(e))
	}
}

// destroyAfterGrace leaves a detonated instance around long enough for late
// effects to attach to it.
func (m *Machine) destroyAfterGrace(e donburi.Entity) {
	m.sched.After(entityKey(taskDestroy, e), m.sim.DetonationGrace, func(time.Duration) {
		m.destroyEntity(e)
	})
}

func (m *Machine) reveal(e donburi.Entity) {
	if !m.world.Valid(e) {
		return
	}
	p := components.Projectile.Get(m.world.Entry(e))
	if !p.Visible {
		p.Visible = true
		p.FirstVisibleAt = m.Now()
	}
}

// tombstone remembers a finished shot so a late authoritative copy cannot
// produce a second canonical detonation.
func (m *Machine) tombstone(shot netconfig.ShotID) {
	m.tombstones[shot] = struct{}{}
	m.sched.After(shotKey(taskTombstone, shot), m.sim.TombstoneTTL, func(time.Duration) {
		delete(m.tombstones, shot)
	})
}

func (m *Machine) ignore(id netconfig.InstanceID) {
	m.ignored[id] = struct{}{}
	m.sched.After(instanceKey(taskIgnore, id), m.sim.TombstoneTTL, func(time.Duration) {
		delete(m.ignored, id)
	})
}

func (m *Machine) shotInUse(shot netconfig.ShotID) bool {
	if _, ok := m.pendingShots[shot]; ok {
		return true
	}
	if _, ok := m.pairs[shot]; ok {
		return true
	}
	_, ok := m.tombstones[shot]
	return ok
}

// Scheduler task kinds.
const (
	taskDelayedSpawn uint8 = iota + 1
	taskPremature
	taskLinkTimeout
	taskResim
	taskDestroy
	taskTombstone
	taskIgnore
)

func shotKey(kind uint8, shot netconfig.ShotID) schedule.Key {
	return schedule.Key{Kind: kind, ID: uint64(shot)}
}

func instanceKey(kind uint8, id netconfig.InstanceID) schedule.Key {
	return schedule.Key{Kind: kind, ID: uint64(id)}
}

func entityKey(kind uint8, e donburi.Entity) schedule.Key {
	return schedule.Key{Kind: kind, ID: uint64(e)}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
