// Package physics hosts the broad phase and the step loop. Bodies are
// grouped into independent collision sets by sweeping their bounding boxes,
// packed into work packages, and advanced through the configured engine
// backend.
package physics

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/orrerysim/orrery/internal/core/body"
)

// AABB is a world axis-aligned bounding box.
type AABB struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

// BodyAABB derives the broad-phase box of a body from its bounding radius.
// The second return is false for bodies that have no bounded moving extent,
// static bodies and bodies with an empty shape set; those never enter a
// sweep and always step alone.
func BodyAABB(s body.State) (AABB, bool) {
	if s.Static() {
		return AABB{}, false
	}
	r := s.BoundingRadius()
	if r <= 0 {
		return AABB{}, false
	}
	off := mgl64.Vec3{r, r, r}
	return AABB{Min: s.Position.Sub(off), Max: s.Position.Add(off)}, true
}

// Sweep partitions labels into groups whose boxes overlap on the given axis,
// directly or through a chain of intermediaries. Intervals are closed, so
// boxes that merely touch end up in the same group.
func Sweep(boxes []AABB, labels []uint64, axis int) ([][]uint64, error) {
	if axis < 0 || axis > 2 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAxis, axis)
	}
	if len(boxes) != len(labels) {
		return nil, fmt.Errorf("%w: %d boxes, %d labels", ErrInputMismatch, len(boxes), len(labels))
	}
	return sweepAxis(boxes, labels, axis), nil
}

type sweepEvent struct {
	coord float64
	open  bool
	idx   int
}

func sweepAxis(boxes []AABB, labels []uint64, axis int) [][]uint64 {
	if len(boxes) == 0 {
		return nil
	}
	events := make([]sweepEvent, 0, 2*len(boxes))
	for i, b := range boxes {
		events = append(events,
			sweepEvent{coord: b.Min[axis], open: true, idx: i},
			sweepEvent{coord: b.Max[axis], open: false, idx: i},
		)
	}
	// Starts sort before stops at equal coordinates, which is what makes
	// touching intervals land in one group.
	sort.Slice(events, func(i, j int) bool {
		if events[i].coord != events[j].coord {
			return events[i].coord < events[j].coord
		}
		return events[i].open && !events[j].open
	})

	var (
		groups  [][]uint64
		current []uint64
		depth   int
	)
	for _, ev := range events {
		if ev.open {
			depth++
			current = append(current, labels[ev.idx])
			continue
		}
		depth--
		if depth == 0 {
			groups = append(groups, current)
			current = nil
		}
	}
	return groups
}

// CollisionSets partitions the bodies into groups that can be stepped
// independently. Bounded moving bodies share a group when their boxes
// overlap on all three axes, directly or transitively; static and
// extent-less bodies always form singletons. Groups come back sorted, each
// ascending by ID and ordered by their first member.
func CollisionSets(bodies map[uint64]*body.State) [][]uint64 {
	var (
		ids     []uint64
		singles []uint64
		boxes   = make(map[uint64]AABB, len(bodies))
	)
	for id, s := range bodies {
		if s == nil {
			continue
		}
		if box, ok := BodyAABB(*s); ok {
			boxes[id] = box
			ids = append(ids, id)
			continue
		}
		singles = append(singles, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	groups := refine(ids, boxes, 0)
	for _, id := range singles {
		groups = append(groups, []uint64{id})
	}
	for _, g := range groups {
		sort.Slice(g, func(i, j int) bool { return g[i] < g[j] })
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })
	return groups
}

// refine splits the group on one axis and recurses into the next. A group
// survives only if its members overlap on every axis.
func refine(ids []uint64, boxes map[uint64]AABB, axis int) [][]uint64 {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) == 1 || axis > 2 {
		return [][]uint64{ids}
	}
	bs := make([]AABB, len(ids))
	for i, id := range ids {
		bs[i] = boxes[id]
	}
	var out [][]uint64
	for _, g := range sweepAxis(bs, ids, axis) {
		out = append(out, refine(g, boxes, axis+1)...)
	}
	return out
}
