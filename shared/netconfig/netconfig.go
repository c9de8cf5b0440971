// Package netconfig defines lightweight types shared between client and server
// for network serialization. It must have zero dependencies on the ECS, the
// collision space or the transport so both binaries can share it freely.
package netconfig

import "fmt"

// ShotID is the per-connection handle that pairs a predicted instance with its
// authoritative counterpart. It is only meaningful on the firing machine.
type ShotID uint32

// Untracked marks an instance that has no predicted counterpart: copies on
// observers and shots fired by a host acting as its own client.
const Untracked ShotID = 0

// InstanceID is the host-assigned handle of an authoritative instance. Every
// machine that holds a copy knows it by this id.
type InstanceID uint32

// ConnectionID identifies a machine. The host is always HostConnection.
type ConnectionID uint32

const HostConnection ConnectionID = 0

// Role distinguishes the locally-simulated stand-in from the host's canonical
// simulation of a shot.
type Role int

const (
	Predicted Role = iota
	Authoritative
)

func (r Role) String() string {
	switch r {
	case Predicted:
		return "predicted"
	case Authoritative:
		return "authoritative"
	}
	return "unknown"
}

// Lifecycle is the coarse state of a projectile instance.
type Lifecycle int

const (
	Spawning Lifecycle = iota
	Traveling
	Detonated
	Destroyed
)

var lifecycleNames = map[Lifecycle]string{
	Spawning:  "spawning",
	Traveling: "traveling",
	Detonated: "detonated",
	Destroyed: "destroyed",
}

func (l Lifecycle) String() string {
	if name, ok := lifecycleNames[l]; ok {
		return name
	}
	return fmt.Sprintf("lifecycle(%d)", int(l))
}

// Cause records why an instance detonated.
type Cause uint8

const (
	CauseNone Cause = iota
	CauseTarget
	CauseSurface
	CauseFuse
)

func (c Cause) String() string {
	switch c {
	case CauseTarget:
		return "target"
	case CauseSurface:
		return "surface"
	case CauseFuse:
		return "fuse"
	}
	return "none"
}

// TargetRef names something a projectile can hit. Empty means no target.
type TargetRef string
