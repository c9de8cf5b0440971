package systems

import (
	"errors"
	"time"

	"github.com/automoto/boomsync/shared/netconfig"
	"github.com/google/uuid"
)

var (
	ErrUnknownToken    = errors.New("unknown activation token")
	ErrTokenConsumed   = errors.New("activation token already used")
	ErrTokenExpired    = errors.New("activation token expired")
	ErrWrongConnection = errors.New("activation token belongs to another connection")
)

// Grant is the host's record of an authorized activation.
type Grant struct {
	Conn      netconfig.ConnectionID
	Shot      netconfig.ShotID
	Archetype string
	Caller    netconfig.TargetRef
	expires   time.Duration
}

// Ledger makes spawn-data transfer at-most-once: every token is granted once
// and consumed once. Consumed tokens are remembered for the TTL so
// duplicates can be told apart from garbage.
type Ledger struct {
	ttl      time.Duration
	grants   map[uuid.UUID]Grant
	consumed map[uuid.UUID]time.Duration
}

func NewLedger(ttl time.Duration) *Ledger {
	return &Ledger{
		ttl:      ttl,
		grants:   make(map[uuid.UUID]Grant),
		consumed: make(map[uuid.UUID]time.Duration),
	}
}

// Seen reports whether token was ever granted and not yet forgotten.
func (l *Ledger) Seen(token uuid.UUID) bool {
	if _, ok := l.grants[token]; ok {
		return true
	}
	_, ok := l.consumed[token]
	return ok
}

func (l *Ledger) Grant(token uuid.UUID, g Grant, now time.Duration) error {
	if l.Seen(token) {
		return ErrTokenConsumed
	}
	g.expires = now + l.ttl
	l.grants[token] = g
	return nil
}

// Consume redeems token for conn exactly once.
func (l *Ledger) Consume(token uuid.UUID, conn netconfig.ConnectionID, now time.Duration) (Grant, error) {
	g, ok := l.grants[token]
	if !ok {
		if _, used := l.consumed[token]; used {
			return Grant{}, ErrTokenConsumed
		}
		return Grant{}, ErrUnknownToken
	}
	if g.Conn != conn {
		return Grant{}, ErrWrongConnection
	}
	delete(l.grants, token)
	if now > g.expires {
		return Grant{}, ErrTokenExpired
	}
	l.consumed[token] = now + l.ttl
	return g, nil
}

// Sweep forgets expired grants and consumed tokens.
func (l *Ledger) Sweep(now time.Duration) {
	for token, g := range l.grants {
		if now > g.expires {
			delete(l.grants, token)
		}
	}
	for token, until := range l.consumed {
		if now > until {
			delete(l.consumed, token)
		}
	}
}

// DropConn removes every outstanding grant held by conn.
func (l *Ledger) DropConn(conn netconfig.ConnectionID) int {
	n := 0
	for token, g := range l.grants {
		if g.Conn == conn {
			delete(l.grants, token)
			n++
		}
	}
	return n
}

func (l *Ledger) Len() int {
	return len(l.grants)
}
