package archetypes

import (
	"github.com/automoto/boomsync/components"
	"github.com/automoto/boomsync/tags"
	"github.com/yohamta/donburi"
)

var (
	// Predicted is the firing machine's local stand-in.
	Predicted = newArchetype(
		tags.Projectile,
		tags.Predicted,
		components.Projectile,
		components.Link,
	)
	// Authoritative is the host's own instance.
	Authoritative = newArchetype(
		tags.Projectile,
		tags.Authoritative,
		components.Projectile,
	)
	// OwnerCopy is the authoritative instance replicated back to the shooter.
	OwnerCopy = newArchetype(
		tags.Projectile,
		tags.Authoritative,
		components.Projectile,
		components.Link,
	)
	// ObserverCopy is the authoritative instance on every other machine.
	ObserverCopy = newArchetype(
		tags.Projectile,
		tags.Authoritative,
		tags.Observer,
		components.Projectile,
		components.Resim,
	)
)

type archetype struct {
	components []donburi.IComponentType
}

func newArchetype(cs ...donburi.IComponentType) *archetype {
	return &archetype{
		components: cs,
	}
}

func (a *archetype) Spawn(w donburi.World, cs ...donburi.IComponentType) *donburi.Entry {
	all := make([]donburi.IComponentType, 0, len(a.components)+len(cs))
	all = append(all, a.components...)
	all = append(all, cs...)
	return w.Entry(w.Create(all...))
}
