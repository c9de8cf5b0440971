package components

import (
	"time"

	"github.com/automoto/boomsync/config"
	"github.com/automoto/boomsync/shared/gamemath"
	"github.com/automoto/boomsync/shared/netconfig"
	"github.com/yohamta/donburi"
)

// DetonationRecord is written once, on an instance's first detonation.
type DetonationRecord struct {
	Location gamemath.Vec2
	Normal   gamemath.Vec2
	Target   netconfig.TargetRef
	Cause    netconfig.Cause
	At       time.Duration // Machine clock when it happened
}

type ProjectileData struct {
	Shot      netconfig.ShotID     // Untracked unless this machine fired the shot
	Instance  netconfig.InstanceID // Zero on predicted instances
	Owner     netconfig.ConnectionID
	Role      netconfig.Role
	Lifecycle netconfig.Lifecycle
	Archetype config.ArchetypeConfig

	Spawn        gamemath.Transform
	Current      gamemath.Transform
	Velocity     gamemath.Vec2
	InitialSpeed float64
	Age          time.Duration
	Lifespan     time.Duration
	BouncesLeft  int
	Caller       netconfig.TargetRef // Never collided with
	CatchUp      time.Duration       // Simulated in one go on the first update cycle

	// Replica copies live on machines other than the host. They follow the
	// same trajectory but stop at a contact and wait for the host's verdict.
	Replica bool
	Halted  bool

	Visible        bool
	FirstVisibleAt time.Duration

	Detonation *DetonationRecord
}

var Projectile = donburi.NewComponentType[ProjectileData]()
