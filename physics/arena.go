// Package physics answers swept-collision queries against an arena built on a
// resolv space. resolv narrows candidates by cell; the final overlap test is
// done here against the exact rectangles.
package physics

import (
	"log"
	"math"

	"github.com/automoto/boomsync/shared/gamemath"
	"github.com/automoto/boomsync/shared/leveldata"
	"github.com/automoto/boomsync/shared/netconfig"
	"github.com/solarlune/resolv"
)

const (
	TagSolid  = "solid"
	TagTarget = "target"
	tagProbe  = "probe"

	cellSize = 16
)

// Hit describes the first contact along a sweep.
type Hit struct {
	Position gamemath.Vec2 // Body center at the last free position before contact
	Normal   gamemath.Vec2 // Unit surface normal facing the body
	Cause    netconfig.Cause
	Target   netconfig.TargetRef
	Fraction float64 // Portion of the sweep completed before contact, in [0,1]
}

// Arena is not safe for concurrent use; one machine loop owns it.
type Arena struct {
	space   *resolv.Space
	probe   *resolv.Object
	targets map[netconfig.TargetRef]*resolv.Object
	Width   float64
	Height  float64
}

func NewArena(data *leveldata.ArenaData) *Arena {
	space := resolv.NewSpace(data.Width, data.Height, cellSize, cellSize)

	for _, r := range data.Solids {
		obj := resolv.NewObject(r.X, r.Y, r.W, r.H, TagSolid)
		obj.SetShape(resolv.NewRectangle(0, 0, r.W, r.H))
		space.Add(obj)
	}

	probe := resolv.NewObject(0, 0, 1, 1, tagProbe)
	space.Add(probe)

	a := &Arena{
		space:   space,
		probe:   probe,
		targets: make(map[netconfig.TargetRef]*resolv.Object),
		Width:   float64(data.Width),
		Height:  float64(data.Height),
	}
	for _, t := range data.Targets {
		a.PlaceTarget(netconfig.TargetRef(t.Name), t.X, t.Y, t.W, t.H)
	}

	log.Printf("[physics] arena %dx%d: %d solids, %d targets",
		data.Width, data.Height, len(data.Solids), len(data.Targets))
	return a
}

// PlaceTarget adds ref or moves it if it already exists.
func (a *Arena) PlaceTarget(ref netconfig.TargetRef, x, y, w, h float64) {
	if obj, ok := a.targets[ref]; ok {
		obj.X, obj.Y, obj.W, obj.H = x, y, w, h
		obj.Update()
		return
	}
	obj := resolv.NewObject(x, y, w, h, TagTarget)
	obj.SetShape(resolv.NewRectangle(0, 0, w, h))
	obj.Data = ref
	a.space.Add(obj)
	a.targets[ref] = obj
}

func (a *Arena) RemoveTarget(ref netconfig.TargetRef) {
	if obj, ok := a.targets[ref]; ok {
		a.space.Remove(obj)
		delete(a.targets, ref)
	}
}

// Sweep moves a square body of half-extent radius from one center to another
// and reports the first solid or target it touches. Targets named ignore are
// passed through so a shot never hits its own thrower.
func (a *Arena) Sweep(from, to gamemath.Vec2, radius float64, ignore netconfig.TargetRef) (Hit, bool) {
	if radius <= 0 {
		radius = 0.5
	}
	delta := to.Sub(from)
	dist := delta.Magnitude()
	steps := int(math.Ceil(dist / radius))
	if steps < 1 {
		steps = 1
	}

	prev := from
	for i := 1; i <= steps; i++ {
		frac := float64(i) / float64(steps)
		pos := gamemath.Lerp(from, to, frac)
		if obj := a.overlapping(pos, radius, ignore); obj != nil {
			hit := Hit{
				Position: prev,
				Normal:   contactNormal(obj, pos, radius, delta),
				Cause:    netconfig.CauseSurface,
				Fraction: float64(i-1) / float64(steps),
			}
			if ref, ok := obj.Data.(netconfig.TargetRef); ok && obj.HasTags(TagTarget) {
				hit.Cause = netconfig.CauseTarget
				hit.Target = ref
			}
			return hit, true
		}
		prev = pos
	}
	return Hit{}, false
}

// Blocked reports whether a body centered at pos already overlaps a solid.
func (a *Arena) Blocked(pos gamemath.Vec2, radius float64) bool {
	obj := a.overlapping(pos, radius, "")
	return obj != nil && obj.HasTags(TagSolid)
}

func (a *Arena) overlapping(pos gamemath.Vec2, radius float64, ignore netconfig.TargetRef) *resolv.Object {
	a.probe.X = pos.X - radius
	a.probe.Y = pos.Y - radius
	a.probe.W = radius * 2
	a.probe.H = radius * 2
	a.probe.Update()

	check := a.probe.Check(0, 0, TagSolid, TagTarget)
	if check == nil {
		return nil
	}

	var best *resolv.Object
	bestDist := math.MaxFloat64
	for _, obj := range check.Objects {
		if ref, ok := obj.Data.(netconfig.TargetRef); ok && ignore != "" && ref == ignore {
			continue
		}
		if !overlaps(a.probe, obj) {
			continue
		}
		// Prefer the object whose center is nearest so results do not depend
		// on cell iteration order.
		d := pos.Distance(center(obj))
		if d < bestDist {
			best, bestDist = obj, d
		}
	}
	return best
}

func overlaps(a, b *resolv.Object) bool {
	return a.X < b.X+b.W && a.X+a.W > b.X && a.Y < b.Y+b.H && a.Y+a.H > b.Y
}

func center(obj *resolv.Object) gamemath.Vec2 {
	return gamemath.V(obj.X+obj.W/2, obj.Y+obj.H/2)
}

// contactNormal picks the face the body entered through: the axis with the
// shallower penetration, signed against the direction of travel.
func contactNormal(obj *resolv.Object, pos gamemath.Vec2, radius float64, travel gamemath.Vec2) gamemath.Vec2 {
	penX := math.Min(pos.X+radius-obj.X, obj.X+obj.W-(pos.X-radius))
	penY := math.Min(pos.Y+radius-obj.Y, obj.Y+obj.H-(pos.Y-radius))

	c := center(obj)
	if penX < penY {
		dir := travel.X
		if dir == 0 {
			dir = c.X - pos.X
		}
		if dir > 0 {
			return gamemath.V(-1, 0)
		}
		return gamemath.V(1, 0)
	}
	dir := travel.Y
	if dir == 0 {
		dir = c.Y - pos.Y
	}
	if dir > 0 {
		return gamemath.V(0, -1)
	}
	return gamemath.V(0, 1)
}
