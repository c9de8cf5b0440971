package systems

import (
	"math"

	"github.com/automoto/boomsync/shared/netconfig"
)

// IdAllocator hands out shot ids for one connection. It counts upward,
// wraps around, never returns Untracked and skips ids still in use.
type IdAllocator struct {
	last netconfig.ShotID
}

func NewIdAllocator(start netconfig.ShotID) *IdAllocator {
	return &IdAllocator{last: start}
}

// Next returns the next free id, or Untracked if every id is in use.
func (a *IdAllocator) Next(inUse func(netconfig.ShotID) bool) netconfig.ShotID {
	for i := uint64(0); i <= math.MaxUint32; i++ {
		a.last++
		if a.last == netconfig.Untracked {
			continue
		}
		if inUse == nil || !inUse(a.last) {
			return a.last
		}
	}
	return netconfig.Untracked
}
