package config

import (
	"errors"
	"testing"
	"time"

	"github.com/automoto/boomsync/shared/netconfig"
)

func TestStoreOverrides(t *testing.T) {
	s := NewStore(DefaultPrediction)

	custom := DefaultPrediction
	custom.ClientBiasPct = 1
	if err := s.SetFor(3, custom); err != nil {
		t.Fatalf("SetFor: %v", err)
	}

	if got := s.For(3).ClientBiasPct; got != 1 {
		t.Fatalf("override not applied, bias = %v", got)
	}
	if got := s.For(4).ClientBiasPct; got != DefaultPrediction.ClientBiasPct {
		t.Fatalf("other connection saw override, bias = %v", got)
	}

	s.Clear(3)
	if got := s.For(3).ClientBiasPct; got != DefaultPrediction.ClientBiasPct {
		t.Fatalf("override survived Clear, bias = %v", got)
	}
}

func TestStoreRejectsInvalid(t *testing.T) {
	s := NewStore(DefaultPrediction)
	called := false
	s.OnChange(func(netconfig.ConnectionID, PredictionConfig, bool) { called = true })

	bad := DefaultPrediction
	bad.MaxPredictionPing = -time.Millisecond
	if err := s.Set(bad); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Set(bad) = %v, want ErrInvalidConfig", err)
	}
	if called {
		t.Fatal("listener notified of rejected config")
	}
	if s.Default() != DefaultPrediction {
		t.Fatal("default changed after rejected Set")
	}
}

func TestStoreNotifiesListeners(t *testing.T) {
	s := NewStore(DefaultPrediction)

	type change struct {
		conn netconfig.ConnectionID
		all  bool
	}
	var got []change
	s.OnChange(func(conn netconfig.ConnectionID, _ PredictionConfig, all bool) {
		got = append(got, change{conn, all})
	})

	cfg := DefaultPrediction
	cfg.MaxPredictionPing = 80 * time.Millisecond
	if err := s.Set(cfg); err != nil {
		t.Fatal(err)
	}
	if err := s.SetFor(7, cfg); err != nil {
		t.Fatal(err)
	}

	if len(got) != 2 {
		t.Fatalf("got %d notifications, want 2", len(got))
	}
	if !got[0].all || got[1].all || got[1].conn != 7 {
		t.Fatalf("unexpected notifications: %+v", got)
	}
	if s.For(1).MaxPredictionPing != 80*time.Millisecond {
		t.Fatal("new default not visible to connections without override")
	}
}
