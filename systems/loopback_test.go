package systems

import (
	"fmt"
	"testing"
	"time"

	"github.com/automoto/boomsync/config"
	"github.com/automoto/boomsync/shared/gamemath"
	"github.com/automoto/boomsync/shared/netconfig"
)

type envelope struct {
	from, to netconfig.ConnectionID
	msg      any
	due      time.Duration
}

// loopback connects a host and its clients in one process. A message is
// delivered after the first tick that ends at least delay after it was sent,
// once every machine has updated. Messages keep their send order.
type loopback struct {
	machines map[netconfig.ConnectionID]*Machine
	sinks    map[netconfig.ConnectionID]*recordingSink
	order    []netconfig.ConnectionID
	queue    []envelope
	delay    time.Duration
	now      time.Duration
}

type endpoint struct {
	net  *loopback
	self netconfig.ConnectionID
}

func (e endpoint) SendToHost(msg any) {
	e.SendTo(netconfig.HostConnection, msg)
}

func (e endpoint) SendTo(conn netconfig.ConnectionID, msg any) {
	e.net.queue = append(e.net.queue, envelope{from: e.self, to: conn, msg: msg, due: e.net.now + e.net.delay})
}

func (e endpoint) Peers() []netconfig.ConnectionID {
	var peers []netconfig.ConnectionID
	for _, id := range e.net.order {
		if id != netconfig.HostConnection {
			peers = append(peers, id)
		}
	}
	return peers
}

func newLoopback(col Collider, rtt time.Duration, cfg config.PredictionConfig, clients ...netconfig.ConnectionID) *loopback {
	n := &loopback{
		machines: make(map[netconfig.ConnectionID]*Machine),
		sinks:    make(map[netconfig.ConnectionID]*recordingSink),
	}
	lat := fixedLatency{netconfig.HostConnection: rtt}
	for _, id := range clients {
		lat[id] = rtt
	}

	add := func(id netconfig.ConnectionID, mode Mode) {
		sink := &recordingSink{}
		n.sinks[id] = sink
		n.machines[id] = NewMachine(Options{
			Mode:     mode,
			Local:    id,
			Collider: col,
			Configs:  config.NewStore(cfg),
			Outbox:   endpoint{net: n, self: id},
			Effects:  sink,
			Latency:  lat,
		})
		n.order = append(n.order, id)
	}
	add(netconfig.HostConnection, HostMode)
	for _, id := range clients {
		add(id, ClientMode)
	}
	return n
}

func (n *loopback) tick() {
	n.now += tick
	for _, id := range n.order {
		n.machines[id].Update(tick)
	}
	pending := n.queue
	n.queue = nil
	var later []envelope
	for _, env := range pending {
		if env.due > n.now {
			later = append(later, env)
			continue
		}
		n.machines[env.to].HandleMessage(env.from, env.msg)
	}
	n.queue = append(later, n.queue...)
}

func TestLoopbackSingleCanonicalDetonation(t *testing.T) {
	cfg := config.DefaultPrediction
	cfg.LatencyFudge = 0

	tests := []struct {
		name    string
		shooter netconfig.ConnectionID
	}{
		{"client shot", 1},
		{"host shot", netconfig.HostConnection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			net := newLoopback(wall{x: 100}, 60*time.Millisecond, cfg, 1, 2)
			if _, err := net.machines[tt.shooter].Fire(FireRequest{
				Archetype: "boomerang",
				Origin:    gamemath.Transform{},
			}); err != nil {
				t.Fatalf("Fire: %v", err)
			}

			for i := 0; i < 60; i++ {
				net.tick()
			}

			for _, id := range net.order {
				sink := net.sinks[id]
				if len(sink.detonations) != 1 {
					t.Fatalf("machine %d: %d canonical detonations, want 1", id, len(sink.detonations))
				}
				if x := sink.detonations[0].rec.Location.X; !near(x, 94, 1e-6) {
					t.Fatalf("machine %d: detonated at x=%v, want 94", id, x)
				}
				if n := countProjectiles(net.machines[id].World()); n != 0 {
					t.Fatalf("machine %d: %d instances left", id, n)
				}
			}
			if m := net.machines[tt.shooter]; m.Mode() == ClientMode && m.PendingLinks() != 0 {
				t.Fatalf("shooter still waiting on %d links", m.PendingLinks())
			}
		})
	}
}

func TestLoopbackRejectedShot(t *testing.T) {
	net := newLoopback(openSky{}, 40*time.Millisecond, config.DefaultPrediction, 1)
	host := net.machines[netconfig.HostConnection]
	host.auth = denyAll{}

	shot, err := net.machines[1].Fire(FireRequest{Archetype: "boomerang"})
	if err != nil {
		t.Fatalf("Fire: %v", err)
	}
	for i := 0; i < 5; i++ {
		net.tick()
	}

	if got := net.sinks[1].cancelled; len(got) != 1 || got[0] != shot {
		t.Fatalf("cancelled = %v", got)
	}
	for _, id := range net.order {
		if n := countProjectiles(net.machines[id].World()); n != 0 {
			t.Fatalf("machine %d holds %d instances", id, n)
		}
	}
}

func TestLoopbackConsistentPrediction(t *testing.T) {
	for _, rtt := range []time.Duration{40 * time.Millisecond, 100 * time.Millisecond} {
		for _, x := range []float64{30, 100} {
			t.Run(fmt.Sprintf("rtt %v wall %v", rtt, x), func(t *testing.T) {
				net := newLoopback(wall{x: x}, rtt, config.DefaultPrediction, 1, 2)
				net.delay = rtt / 2
				if _, err := net.machines[1].Fire(FireRequest{Archetype: "boomerang"}); err != nil {
					t.Fatalf("Fire: %v", err)
				}
				for i := 0; i < 60; i++ {
					net.tick()
				}

				shooter := net.sinks[1]
				if len(shooter.impacts) != 1 || len(shooter.detonations) != 1 {
					t.Fatalf("impacts %d, detonations %d", len(shooter.impacts), len(shooter.detonations))
				}
				got := shooter.detonations[0]
				if got.ref.Role != netconfig.Predicted {
					t.Fatalf("canonical role = %v, want the prediction to stand", got.ref.Role)
				}
				if !near(got.rec.Location.X, x-6, 1e-6) {
					t.Fatalf("canonical at x=%v, want %v", got.rec.Location.X, x-6)
				}
				for _, id := range net.order {
					if n := len(net.sinks[id].detonations); n != 1 {
						t.Fatalf("machine %d: %d canonical detonations, want 1", id, n)
					}
					if n := countProjectiles(net.machines[id].World()); n != 0 {
						t.Fatalf("machine %d: %d instances left", id, n)
					}
				}
			})
		}
	}
}
