package config

import "time"

// ArchetypeConfig describes one kind of projectile. Both ends of a connection
// read the same catalog, so only the name travels on the wire.
type ArchetypeConfig struct {
	Name             string
	Speed            float64       // Units per second at launch
	Gravity          float64       // Units per second squared, +Y is down
	Radius           float64       // Collision half-extent
	Lifespan         time.Duration // Ceiling after which the instance self-destructs
	Bounces          int           // Surface contacts absorbed before detonating
	DetonateOnExpiry bool          // Fuse: detonate instead of vanishing at Lifespan
}

// SimulationConfig contains values shared by every machine's simulation loop.
type SimulationConfig struct {
	TickRate        int           // Simulation ticks per second
	Substep         time.Duration // Longest slice integrated in one sweep
	CatchUpSubstep  time.Duration // Slice used while fast-forwarding
	DetonationGrace time.Duration // Delay between detonation and destruction
	GrantTTL        time.Duration // How long an authorized activation waits for spawn data
	TombstoneTTL    time.Duration // How long a resolved shot id is remembered
	ReplicaSlack    time.Duration // Extra lifespan granted to copies awaiting DetonationInfo
}

// TickPeriod is the length of one simulation tick. Without a tick rate it
// falls back to Substep.
func (s SimulationConfig) TickPeriod() time.Duration {
	if s.TickRate <= 0 {
		return s.Substep
	}
	return time.Second / time.Duration(s.TickRate)
}

// ServerConfig contains host defaults that can be overridden by flags.
type ServerConfig struct {
	Port          uint
	Name          string
	MaxFireRate   float64 // Shots per second per connection
	FireBurst     int
	SessionIssuer string
}

// Global configuration instances
var Archetypes map[string]ArchetypeConfig
var Simulation SimulationConfig
var Server ServerConfig

// Archetype looks up a catalog entry by name.
func Archetype(name string) (ArchetypeConfig, bool) {
	a, ok := Archetypes[name]
	return a, ok
}

func init() {
	Archetypes = map[string]ArchetypeConfig{
		"boomerang": {
			Name:     "boomerang",
			Speed:    1000,
			Gravity:  0,
			Radius:   6,
			Lifespan: 3 * time.Second,
			Bounces:  0,
		},
		"grenade": {
			Name:             "grenade",
			Speed:            600,
			Gravity:          980,
			Radius:           4,
			Lifespan:         2500 * time.Millisecond,
			Bounces:          2,
			DetonateOnExpiry: true,
		},
		"knife": {
			Name:     "knife",
			Speed:    1400,
			Gravity:  120,
			Radius:   3,
			Lifespan: 2 * time.Second,
		},
	}

	Simulation = SimulationConfig{
		TickRate:        60,
		Substep:         5 * time.Millisecond,
		CatchUpSubstep:  2 * time.Millisecond,   // Fast-forward slices are finer
		DetonationGrace: 250 * time.Millisecond, // Lets late effects attach before teardown
		GrantTTL:        5 * time.Second,
		TombstoneTTL:    10 * time.Second,
		ReplicaSlack:    time.Second,
	}

	Server = ServerConfig{
		Port:          7373,
		Name:          "boomsync host",
		MaxFireRate:   8,
		FireBurst:     4,
		SessionIssuer: "boomsync",
	}
}
