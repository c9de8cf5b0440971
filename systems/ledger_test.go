package systems

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestLedgerConsumesOnce(t *testing.T) {
	l := NewLedger(time.Second)
	token := uuid.New()
	if err := l.Grant(token, Grant{Conn: 1, Shot: 7, Archetype: "boomerang"}, 0); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if err := l.Grant(token, Grant{Conn: 1, Shot: 7}, 0); !errors.Is(err, ErrTokenConsumed) {
		t.Fatalf("second Grant = %v, want ErrTokenConsumed", err)
	}

	if _, err := l.Consume(token, 2, 0); !errors.Is(err, ErrWrongConnection) {
		t.Fatalf("Consume from another connection = %v", err)
	}

	g, err := l.Consume(token, 1, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if g.Shot != 7 || g.Archetype != "boomerang" {
		t.Fatalf("grant = %+v", g)
	}
	if _, err := l.Consume(token, 1, 20*time.Millisecond); !errors.Is(err, ErrTokenConsumed) {
		t.Fatalf("duplicate Consume = %v, want ErrTokenConsumed", err)
	}
	if !l.Seen(token) {
		t.Fatal("consumed token forgotten too early")
	}
}

func TestLedgerExpiry(t *testing.T) {
	l := NewLedger(time.Second)
	token := uuid.New()
	_ = l.Grant(token, Grant{Conn: 1, Shot: 1}, 0)

	if _, err := l.Consume(token, 1, 2*time.Second); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("late Consume = %v, want ErrTokenExpired", err)
	}
	if _, err := l.Consume(uuid.New(), 1, 0); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("unknown token = %v", err)
	}

	stale := uuid.New()
	_ = l.Grant(stale, Grant{Conn: 1, Shot: 2}, 0)
	l.Sweep(1500 * time.Millisecond)
	if l.Len() != 0 || l.Seen(stale) {
		t.Fatalf("Sweep left %d grants", l.Len())
	}
}

func TestLedgerDropConn(t *testing.T) {
	l := NewLedger(time.Second)
	_ = l.Grant(uuid.New(), Grant{Conn: 1, Shot: 1}, 0)
	_ = l.Grant(uuid.New(), Grant{Conn: 1, Shot: 2}, 0)
	_ = l.Grant(uuid.New(), Grant{Conn: 2, Shot: 1}, 0)

	if n := l.DropConn(1); n != 2 {
		t.Fatalf("DropConn = %d, want 2", n)
	}
	if l.Len() != 1 {
		t.Fatalf("Len = %d, want 1", l.Len())
	}
}
