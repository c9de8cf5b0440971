package systems

import (
	"testing"
	"time"

	"github.com/automoto/boomsync/components"
	"github.com/automoto/boomsync/config"
	"github.com/automoto/boomsync/shared/messages"
	"github.com/automoto/boomsync/shared/netconfig"
)

// newLinkedClient fires one boomerang and replicates its authoritative
// instance back as instance 1. The pair links on the first update.
func newLinkedClient(t *testing.T, col Collider) (testMachine, netconfig.ShotID) {
	t.Helper()
	client := newTestMachine(ClientMode, 1, col, fixedLatency{}, config.DefaultPrediction)
	shot := fireBoomerang(t, client)
	client.HandleMessage(netconfig.HostConnection, messages.ProjectileSpawned{
		Instance:  1,
		Shot:      uint32(shot),
		Owner:     1,
		Archetype: "boomerang",
	})
	return client, shot
}

func detonationAt(instance uint32, x float64) messages.DetonationInfo {
	return messages.DetonationInfo{
		Instance: instance,
		X:        x,
		NormalX:  -1,
		Cause:    uint8(netconfig.CauseSurface),
	}
}

func TestLinkOnFirstUpdate(t *testing.T) {
	client, shot := newLinkedClient(t, openSky{})
	runTicks(client.Machine, 1)

	if client.PendingLinks() != 0 {
		t.Fatalf("PendingLinks = %d after linking", client.PendingLinks())
	}
	pred, _ := client.Predicted(shot)
	auth, _ := client.Instance(1)
	if components.Link.Get(pred).Peer != auth.Entity() || components.Link.Get(auth).Peer != pred.Entity() {
		t.Fatal("pair not linked both ways")
	}
	if components.Projectile.Get(auth).Visible {
		t.Fatal("authoritative copy rendered while its prediction lives")
	}
}

func TestBothDetonated(t *testing.T) {
	tests := []struct {
		name     string
		offset   float64
		wantRole netconfig.Role
	}{
		{"consistent", 0, netconfig.Predicted},
		{"within tolerance", 99, netconfig.Predicted},
		{"inaccurate", 150, netconfig.Authoritative},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, shot := newLinkedClient(t, wall{x: 100})
			runTicks(client.Machine, 6)

			if state, _ := client.PairState(shot); state != PredictedDetonatedOnly {
				t.Fatalf("state = %v, want %v", state, PredictedDetonatedOnly)
			}
			if len(client.sink.impacts) != 1 || len(client.sink.detonations) != 0 {
				t.Fatalf("impacts %d, detonations %d", len(client.sink.impacts), len(client.sink.detonations))
			}
			predicted := client.sink.impacts[0].rec.Location

			runTicks(client.Machine, 2)
			client.HandleMessage(netconfig.HostConnection, detonationAt(1, predicted.X+tt.offset))

			if len(client.sink.detonations) != 1 {
				t.Fatalf("detonations = %d, want 1", len(client.sink.detonations))
			}
			got := client.sink.detonations[0]
			if got.ref.Role != tt.wantRole {
				t.Fatalf("canonical role = %v, want %v", got.ref.Role, tt.wantRole)
			}
			wantX := predicted.X
			if tt.wantRole == netconfig.Authoritative {
				wantX += tt.offset
			}
			if !near(got.rec.Location.X, wantX, 1e-9) {
				t.Fatalf("canonical location %v, want x=%v", got.rec.Location, wantX)
			}
			if _, ok := client.PairState(shot); ok {
				t.Fatal("pair not resolved")
			}

			runTicks(client.Machine, 30)
			if len(client.sink.detonations) != 1 {
				t.Fatalf("detonations = %d after settling", len(client.sink.detonations))
			}
			if n := countProjectiles(client.World()); n != 0 {
				t.Fatalf("%d instances left after grace", n)
			}
		})
	}
}

func TestInaccurateDetonationReplacesPrediction(t *testing.T) {
	client := newTestMachine(ClientMode, 1, wall{x: 100}, fixedLatency{netconfig.HostConnection: 60 * time.Millisecond}, config.DefaultPrediction)
	shot := fireBoomerang(t, client)
	client.HandleMessage(netconfig.HostConnection, messages.ProjectileSpawned{
		Instance:  1,
		Shot:      uint32(shot),
		Owner:     1,
		Archetype: "boomerang",
	})
	runTicks(client.Machine, 6)
	if len(client.sink.impacts) != 1 {
		t.Fatalf("impacts = %d, want the prediction to have hit", len(client.sink.impacts))
	}
	impact := client.sink.impacts[0].rec

	// The host's result lands 40ms later, 150 units away.
	for client.Now() < impact.At+40*time.Millisecond {
		runTicks(client.Machine, 1)
	}
	if state, _ := client.PairState(shot); state != PredictedDetonatedOnly {
		t.Fatalf("state = %v before the host's result", state)
	}
	client.HandleMessage(netconfig.HostConnection, detonationAt(1, impact.Location.X+150))

	if len(client.sink.detonations) != 1 {
		t.Fatalf("detonations = %d, want 1", len(client.sink.detonations))
	}
	got := client.sink.detonations[0]
	if got.ref.Role != netconfig.Authoritative || !near(got.rec.Location.X, impact.Location.X+150, 1e-9) {
		t.Fatalf("canonical = %+v, want the host's detonation", got)
	}
	if _, ok := client.Predicted(shot); ok {
		t.Fatal("prediction survived an inaccurate detonation")
	}
	if len(client.sink.impacts) != 1 {
		t.Fatalf("impacts = %d", len(client.sink.impacts))
	}
}

func TestLateDetonationAdoptsAuthoritative(t *testing.T) {
	client, shot := newLinkedClient(t, openSky{})
	runTicks(client.Machine, 2)

	client.HandleMessage(netconfig.HostConnection, detonationAt(1, 40))
	if _, ok := client.Predicted(shot); ok {
		t.Fatal("prediction survived a late detonation")
	}
	if len(client.sink.detonations) != 1 {
		t.Fatalf("detonations = %d", len(client.sink.detonations))
	}
	got := client.sink.detonations[0]
	if got.ref.Role != netconfig.Authoritative || got.rec.Location.X != 40 {
		t.Fatalf("canonical = %+v", got)
	}
	auth, ok := client.Instance(1)
	if !ok || !components.Projectile.Get(auth).Visible {
		t.Fatal("authoritative copy not revealed")
	}

	runTicks(client.Machine, 10)
	if len(client.sink.impacts) != 0 || len(client.sink.detonations) != 1 {
		t.Fatalf("impacts %d, detonations %d", len(client.sink.impacts), len(client.sink.detonations))
	}
}

func TestPrematureDetonationDiscarded(t *testing.T) {
	client, shot := newLinkedClient(t, wall{x: 100})
	runTicks(client.Machine, 6)
	if _, ok := client.Predicted(shot); !ok {
		t.Fatal("detonated prediction destroyed before its window closed")
	}

	// No RTT: the window is three ticks plus 60ms after the 100ms detonation.
	runTicks(client.Machine, 6)
	if _, ok := client.Predicted(shot); !ok {
		t.Fatal("prediction discarded inside its window")
	}
	runTicks(client.Machine, 2)
	if _, ok := client.Predicted(shot); ok {
		t.Fatal("unconfirmed prediction not discarded")
	}
	auth, ok := client.Instance(1)
	if !ok || !components.Projectile.Get(auth).Visible {
		t.Fatal("authoritative copy not revealed after the window")
	}
	if len(client.sink.detonations) != 0 {
		t.Fatal("discarded prediction became canonical")
	}

	client.HandleMessage(netconfig.HostConnection, detonationAt(1, 94))
	if len(client.sink.detonations) != 1 || client.sink.detonations[0].ref.Role != netconfig.Authoritative {
		t.Fatalf("detonations = %+v", client.sink.detonations)
	}
}

func TestDetonationBeforeLinkIsDeferred(t *testing.T) {
	client, shot := newLinkedClient(t, openSky{})
	client.HandleMessage(netconfig.HostConnection, detonationAt(1, 30))
	client.HandleMessage(netconfig.HostConnection, detonationAt(1, 30))
	if len(client.sink.detonations) != 0 {
		t.Fatal("detonation applied before the link attempt")
	}

	runTicks(client.Machine, 1)
	if len(client.sink.detonations) != 1 {
		t.Fatalf("detonations = %d after retry", len(client.sink.detonations))
	}
	got := client.sink.detonations[0]
	if got.ref.Role != netconfig.Authoritative || got.rec.Location.X != 30 {
		t.Fatalf("canonical = %+v", got)
	}
	if _, ok := client.Predicted(shot); ok {
		t.Fatal("prediction survived")
	}

	runTicks(client.Machine, 20)
	if len(client.sink.detonations) != 1 {
		t.Fatalf("retried more than once: %d", len(client.sink.detonations))
	}
}

func TestDeferredDetonationWithoutPrediction(t *testing.T) {
	client := newTestMachine(ClientMode, 1, openSky{}, fixedLatency{}, config.DefaultPrediction)
	client.HandleMessage(netconfig.HostConnection, messages.ProjectileSpawned{Instance: 2, Shot: 99, Owner: 1, Archetype: "boomerang"})
	client.HandleMessage(netconfig.HostConnection, detonationAt(2, 12))

	runTicks(client.Machine, 1)
	if len(client.sink.detonations) != 1 {
		t.Fatalf("detonations = %d", len(client.sink.detonations))
	}
	entry, ok := client.Instance(2)
	if !ok {
		t.Fatal("copy destroyed before grace")
	}
	if link := components.Link.Get(entry); link.State != components.Unlinked {
		t.Fatalf("link state = %v, want unlinked", link.State)
	}
	if !components.Projectile.Get(entry).Visible {
		t.Fatal("unlinked copy hidden")
	}
}

func TestLostShotKeepsLocalOutcome(t *testing.T) {
	client := newTestMachine(ClientMode, 1, wall{x: 100}, fixedLatency{}, config.DefaultPrediction)
	shot := fireBoomerang(t, client)

	runTicks(client.Machine, 125)
	if len(client.sink.detonations) != 1 {
		t.Fatalf("detonations = %d, want the local one", len(client.sink.detonations))
	}
	if got := client.sink.detonations[0]; got.ref.Role != netconfig.Predicted || got.ref.Shot != shot {
		t.Fatalf("canonical = %+v", got.ref)
	}

	// The host's copy finally shows up; it must not produce a second result.
	client.HandleMessage(netconfig.HostConnection, messages.ProjectileSpawned{Instance: 1, Shot: uint32(shot), Owner: 1, Archetype: "boomerang"})
	client.HandleMessage(netconfig.HostConnection, detonationAt(1, 94))
	runTicks(client.Machine, 5)
	if len(client.sink.detonations) != 1 {
		t.Fatalf("late copy produced another detonation")
	}
}

func TestShotWithoutDetonation(t *testing.T) {
	t.Run("never replicated", func(t *testing.T) {
		client := newTestMachine(ClientMode, 1, openSky{}, fixedLatency{}, config.DefaultPrediction)
		shot := fireBoomerang(t, client)
		runTicks(client.Machine, 200)

		if len(client.sink.detonations) != 0 {
			t.Fatal("expired shot detonated")
		}
		if _, ok := client.PairState(shot); ok {
			t.Fatal("pair leaked")
		}
		if n := countProjectiles(client.World()); n != 0 {
			t.Fatalf("%d instances leaked", n)
		}
	})

	t.Run("linked", func(t *testing.T) {
		client, shot := newLinkedClient(t, openSky{})
		runTicks(client.Machine, 250)

		if len(client.sink.detonations) != 0 {
			t.Fatal("expired shot detonated")
		}
		if _, ok := client.PairState(shot); ok {
			t.Fatal("pair leaked")
		}
		if n := countProjectiles(client.World()); n != 0 {
			t.Fatalf("%d instances leaked", n)
		}
	})
}

func TestDuplicateDetonationInfoIgnored(t *testing.T) {
	client, _ := newLinkedClient(t, openSky{})
	runTicks(client.Machine, 2)
	client.HandleMessage(netconfig.HostConnection, detonationAt(1, 40))
	client.HandleMessage(netconfig.HostConnection, detonationAt(1, 40))
	runTicks(client.Machine, 30)
	client.HandleMessage(netconfig.HostConnection, detonationAt(1, 40))

	if len(client.sink.detonations) != 1 {
		t.Fatalf("detonations = %d", len(client.sink.detonations))
	}
}
