package systems

import (
	"log"

	"github.com/automoto/boomsync/components"
	"github.com/automoto/boomsync/shared/netconfig"
)

// LogEffects is the EffectSink of the headless binaries: every effect the
// engine asks for becomes a log line.
type LogEffects struct {
	Name string
}

func (l LogEffects) InstanceSpawned(ref InstanceRef) {
	log.Printf("[effects%s] %s %s spawned (shot %d, instance %d, owner %d)",
		l.suffix(), ref.Role, ref.Archetype, ref.Shot, ref.Instance, ref.Owner)
}

func (l LogEffects) ShotCancelled(shot netconfig.ShotID, reason string) {
	log.Printf("[effects%s] shot %d cancelled: %s", l.suffix(), shot, reason)
}

func (l LogEffects) PredictedImpact(ref InstanceRef, rec components.DetonationRecord) {
	log.Printf("[effects%s] shot %d impact preview at (%.1f, %.1f)",
		l.suffix(), ref.Shot, rec.Location.X, rec.Location.Y)
}

func (l LogEffects) Detonated(ref InstanceRef, rec components.DetonationRecord) {
	target := string(rec.Target)
	if target == "" {
		target = "-"
	}
	log.Printf("[effects%s] %s detonated at (%.1f, %.1f) cause=%s target=%s",
		l.suffix(), ref.Archetype, rec.Location.X, rec.Location.Y, rec.Cause, target)
}

func (l LogEffects) suffix() string {
	if l.Name == "" {
		return ""
	}
	return ":" + l.Name
}
