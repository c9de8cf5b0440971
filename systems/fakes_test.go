package systems

import (
	"errors"
	"time"

	"github.com/automoto/boomsync/components"
	"github.com/automoto/boomsync/config"
	"github.com/automoto/boomsync/physics"
	"github.com/automoto/boomsync/shared/gamemath"
	"github.com/automoto/boomsync/shared/netconfig"
	"github.com/yohamta/donburi"
)

const tick = time.Second / 60

// wall is a vertical surface at x that only stops rightward motion.
type wall struct {
	x      float64
	target netconfig.TargetRef
}

func (w wall) Sweep(from, to gamemath.Vec2, radius float64, ignore netconfig.TargetRef) (physics.Hit, bool) {
	if w.target != "" && w.target == ignore {
		return physics.Hit{}, false
	}
	edge := w.x - radius
	if to.X <= from.X || to.X <= edge {
		return physics.Hit{}, false
	}
	f := 0.0
	if from.X < edge {
		f = (edge - from.X) / (to.X - from.X)
	}
	cause := netconfig.CauseSurface
	if w.target != "" {
		cause = netconfig.CauseTarget
	}
	return physics.Hit{
		Position: gamemath.Lerp(from, to, f),
		Normal:   gamemath.V(-1, 0),
		Cause:    cause,
		Target:   w.target,
		Fraction: f,
	}, true
}

// openSky never blocks anything.
type openSky struct{}

func (openSky) Sweep(from, to gamemath.Vec2, radius float64, ignore netconfig.TargetRef) (physics.Hit, bool) {
	return physics.Hit{}, false
}

type fakeOutbox struct {
	toHost []any
	sent   map[netconfig.ConnectionID][]any
	peers  []netconfig.ConnectionID
}

func (o *fakeOutbox) SendToHost(msg any) {
	o.toHost = append(o.toHost, msg)
}

func (o *fakeOutbox) SendTo(conn netconfig.ConnectionID, msg any) {
	if o.sent == nil {
		o.sent = make(map[netconfig.ConnectionID][]any)
	}
	o.sent[conn] = append(o.sent[conn], msg)
}

func (o *fakeOutbox) Peers() []netconfig.ConnectionID {
	return o.peers
}

type fixedLatency map[netconfig.ConnectionID]time.Duration

func (l fixedLatency) RTT(conn netconfig.ConnectionID) time.Duration {
	return l[conn]
}

type denyAll struct{}

func (denyAll) Authorize(conn netconfig.ConnectionID, archetype string) error {
	return errors.New("not allowed")
}

type detonation struct {
	ref InstanceRef
	rec components.DetonationRecord
}

type recordingSink struct {
	spawned     []InstanceRef
	cancelled   []netconfig.ShotID
	impacts     []detonation
	detonations []detonation
}

func (s *recordingSink) InstanceSpawned(ref InstanceRef) {
	s.spawned = append(s.spawned, ref)
}

func (s *recordingSink) ShotCancelled(shot netconfig.ShotID, reason string) {
	s.cancelled = append(s.cancelled, shot)
}

func (s *recordingSink) PredictedImpact(ref InstanceRef, rec components.DetonationRecord) {
	s.impacts = append(s.impacts, detonation{ref, rec})
}

func (s *recordingSink) Detonated(ref InstanceRef, rec components.DetonationRecord) {
	s.detonations = append(s.detonations, detonation{ref, rec})
}

type testMachine struct {
	*Machine
	out  *fakeOutbox
	sink *recordingSink
}

func newTestMachine(mode Mode, local netconfig.ConnectionID, col Collider, lat LatencyProvider, cfg config.PredictionConfig) testMachine {
	out := &fakeOutbox{}
	sink := &recordingSink{}
	m := NewMachine(Options{
		Mode:     mode,
		Local:    local,
		Collider: col,
		Configs:  config.NewStore(cfg),
		Outbox:   out,
		Effects:  sink,
		Latency:  lat,
	})
	return testMachine{Machine: m, out: out, sink: sink}
}

func runTicks(m *Machine, n int) {
	for i := 0; i < n; i++ {
		m.Update(tick)
	}
}

func messagesOf[T any](msgs []any) []T {
	var out []T
	for _, msg := range msgs {
		if v, ok := msg.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func countProjectiles(w donburi.World) int {
	n := 0
	components.Projectile.Each(w, func(*donburi.Entry) { n++ })
	return n
}

func near(a, b, eps float64) bool {
	d := a - b
	return d < eps && d > -eps
}
