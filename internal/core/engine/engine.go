// Package engine declares the boundary to the collision backend. The
// interfaces mirror the backend's own shape hierarchy one to one; everything
// with actual physics in it (inertia tensors, support points, contact
// resolution) lives behind them.
package engine

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/orrerysim/orrery/internal/core/body"
	"github.com/orrerysim/orrery/internal/core/shape"
)

// CollisionShape is the base capability of every bound shape: a mutable
// local scaling vector, local inertia for a given mass, and the backend's
// name string for the shape.
type CollisionShape interface {
	Name() string
	SetLocalScaling(scaling mgl64.Vec3)
	LocalScaling() mgl64.Vec3
	CalculateLocalInertia(mass float64) mgl64.Vec3
}

// ConvexShape marks shapes that admit support-point queries.
type ConvexShape interface {
	CollisionShape
	convexShape()
}

// ConvexInternalShape marks convex shapes with an implicit margin.
type ConvexInternalShape interface {
	ConvexShape
	convexInternalShape()
}

// PolyhedralConvexShape marks convex shapes with an explicit vertex/face
// representation.
type PolyhedralConvexShape interface {
	ConvexInternalShape
	polyhedralConvexShape()
}

// ConcaveShape marks non-convex shapes.
type ConcaveShape interface {
	CollisionShape
	concaveShape()
}

// The marker structs below seal the hierarchy while letting backends in
// other packages take part: embedding one grants the matching marker method.

type Convex struct{}

func (Convex) convexShape() {}

type ConvexInternal struct{ Convex }

func (ConvexInternal) convexInternalShape() {}

type PolyhedralConvex struct{ ConvexInternal }

func (PolyhedralConvex) polyhedralConvexShape() {}

type Concave struct{}

func (Concave) concaveShape() {}

// BodyForce is the external force and torque acting on one body during a
// step, both in world coordinates.
type BodyForce struct {
	Force  mgl64.Vec3
	Torque mgl64.Vec3
}

// Engine binds shape descriptors to backend shapes and advances rigid
// bodies. Step mutates the passed states in place; maxSubSteps bounds the
// internal sub-stepping of backends that resolve collisions.
type Engine interface {
	Name() string
	Compile(m shape.Meta) (CollisionShape, error)
	Step(dt float64, maxSubSteps int, bodies map[uint64]*body.State, forces map[uint64]BodyForce) error
}
