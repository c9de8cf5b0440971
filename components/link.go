package components

import "github.com/yohamta/donburi"

type LinkState int

const (
	PendingLink LinkState = iota
	Linked
	Unlinked
)

func (s LinkState) String() string {
	switch s {
	case PendingLink:
		return "pending"
	case Linked:
		return "linked"
	case Unlinked:
		return "unlinked"
	}
	return "unknown"
}

// LinkData is carried by both halves of a pair on the firing machine.
type LinkData struct {
	State     LinkState
	Attempted bool           // Lookup ran at the start of the first update cycle
	Peer      donburi.Entity // Set once; check World.Valid before use

	// Deferred holds a detonation that arrived before the lookup ran. It is
	// retried exactly once after the first update cycle.
	Deferred *DetonationRecord
}

var Link = donburi.NewComponentType[LinkData]()
