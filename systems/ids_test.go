package systems

import (
	"math"
	"testing"

	"github.com/automoto/boomsync/shared/netconfig"
)

func TestIdAllocatorWrapsPastUntracked(t *testing.T) {
	a := NewIdAllocator(math.MaxUint32 - 1)
	if got := a.Next(nil); got != math.MaxUint32 {
		t.Fatalf("Next = %d, want MaxUint32", got)
	}
	if got := a.Next(nil); got != 1 {
		t.Fatalf("Next after wrap = %d, want 1", got)
	}
}

func TestIdAllocatorSkipsInUse(t *testing.T) {
	busy := map[netconfig.ShotID]bool{1: true, 2: true, 4: true}
	a := NewIdAllocator(netconfig.Untracked)
	inUse := func(id netconfig.ShotID) bool { return busy[id] }

	if got := a.Next(inUse); got != 3 {
		t.Fatalf("Next = %d, want 3", got)
	}
	if got := a.Next(inUse); got != 5 {
		t.Fatalf("Next = %d, want 5", got)
	}
}

func TestIdAllocatorPendingIdsUnique(t *testing.T) {
	pending := make(map[netconfig.ShotID]bool)
	a := NewIdAllocator(math.MaxUint32 - 500)
	inUse := func(id netconfig.ShotID) bool { return pending[id] }

	for i := 0; i < 2000; i++ {
		id := a.Next(inUse)
		if id == netconfig.Untracked {
			t.Fatalf("allocation %d returned Untracked", i)
		}
		if pending[id] {
			t.Fatalf("id %d handed out twice while pending", id)
		}
		pending[id] = true
	}
}
