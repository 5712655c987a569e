package physics

import "github.com/orrerysim/orrery/pkg/sequence"

// WorkPackage is one collision group scheduled for integration. A package
// touches no body outside its group, so distinct packages can step in
// parallel.
type WorkPackage struct {
	ID     uint64
	Bodies []uint64
}

// Packages numbers the collision groups in processing order, largest group
// first so the longest integration starts earliest.
func Packages(sets [][]uint64) []WorkPackage {
	pq := sequence.NewPriorityQueue[[]uint64]()
	for _, set := range sets {
		pq.Enqueue(set, len(set))
	}
	out := make([]WorkPackage, 0, len(sets))
	for {
		set, ok := pq.Dequeue()
		if !ok {
			return out
		}
		out = append(out, WorkPackage{ID: uint64(len(out) + 1), Bodies: set})
	}
}
