//go:build bullet

package bullet

/*
#cgo CXXFLAGS: -std=c++14
#cgo pkg-config: bullet
#include "bridge.h"
*/
import "C"

import (
	"fmt"
	"runtime"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/orrerysim/orrery/internal/core/body"
	"github.com/orrerysim/orrery/internal/core/engine"
	"github.com/orrerysim/orrery/internal/core/shape"
)

// Name is the registry name of the native backend.
const Name = "bullet"

func init() {
	engine.Register(Name, func() (engine.Engine, error) {
		return New(), nil
	})
}

// Bullet compiles shape descriptors into native btCollisionShape instances.
// Body advancement still runs through the kinematic integrator.
// TODO: bind btDiscreteDynamicsWorld and route Step through stepSimulation.
type Bullet struct {
	kinematic *engine.Kinematic
}

func New() *Bullet {
	return &Bullet{kinematic: engine.NewKinematic()}
}

func (e *Bullet) Name() string { return Name }

// Compile binds a shape descriptor to a native shape.
func (e *Bullet) Compile(m shape.Meta) (engine.CollisionShape, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	switch d := m.Data.(type) {
	case shape.Box:
		return NewBoxShape(d.HalfExtents()), nil
	case shape.Sphere:
		return NewSphereShape(d.Radius), nil
	case shape.StaticPlane:
		return NewStaticPlaneShape(d.Normal, d.Offset), nil
	case shape.Empty:
		return NewEmptyShape(), nil
	default:
		return nil, fmt.Errorf("%w: %s", engine.ErrUnsupportedShape, m.Type)
	}
}

func (e *Bullet) Step(dt float64, maxSubSteps int, bodies map[uint64]*body.State, forces map[uint64]engine.BodyForce) error {
	return e.kinematic.Step(dt, maxSubSteps, bodies, forces)
}

// nativeShape owns one btCollisionShape handle and forwards the four shape
// operations across the bridge.
type nativeShape struct {
	handle C.orr_shape
}

func (s *nativeShape) Name() string {
	return C.GoString(C.orr_shape_name(s.handle))
}

func (s *nativeShape) SetLocalScaling(scaling mgl64.Vec3) {
	C.orr_shape_set_local_scaling(s.handle,
		C.double(scaling[0]), C.double(scaling[1]), C.double(scaling[2]))
}

func (s *nativeShape) LocalScaling() mgl64.Vec3 {
	var out [3]C.double
	C.orr_shape_get_local_scaling(s.handle, &out[0])
	return mgl64.Vec3{float64(out[0]), float64(out[1]), float64(out[2])}
}

func (s *nativeShape) CalculateLocalInertia(mass float64) mgl64.Vec3 {
	var out [3]C.double
	C.orr_shape_calc_local_inertia(s.handle, C.double(mass), &out[0])
	return mgl64.Vec3{float64(out[0]), float64(out[1]), float64(out[2])}
}

func (s *nativeShape) free() {
	if s.handle != nil {
		C.orr_shape_free(s.handle)
		s.handle = nil
	}
}

// BoxShape wraps a btBoxShape.
type BoxShape struct {
	engine.PolyhedralConvex
	nativeShape
}

func NewBoxShape(halfExtents mgl64.Vec3) *BoxShape {
	s := &BoxShape{nativeShape: nativeShape{handle: C.orr_new_box(
		C.double(halfExtents[0]), C.double(halfExtents[1]), C.double(halfExtents[2]))}}
	runtime.SetFinalizer(s, func(b *BoxShape) { b.free() })
	return s
}

// SphereShape wraps a btSphereShape.
type SphereShape struct {
	engine.ConvexInternal
	nativeShape
}

func NewSphereShape(radius float64) *SphereShape {
	s := &SphereShape{nativeShape: nativeShape{handle: C.orr_new_sphere(C.double(radius))}}
	runtime.SetFinalizer(s, func(sp *SphereShape) { sp.free() })
	return s
}

// StaticPlaneShape wraps a btStaticPlaneShape.
type StaticPlaneShape struct {
	engine.Concave
	nativeShape
}

func NewStaticPlaneShape(normal mgl64.Vec3, offset float64) *StaticPlaneShape {
	s := &StaticPlaneShape{nativeShape: nativeShape{handle: C.orr_new_static_plane(
		C.double(normal[0]), C.double(normal[1]), C.double(normal[2]), C.double(offset))}}
	runtime.SetFinalizer(s, func(p *StaticPlaneShape) { p.free() })
	return s
}

// EmptyShape wraps a btEmptyShape.
type EmptyShape struct {
	engine.Concave
	nativeShape
}

func NewEmptyShape() *EmptyShape {
	s := &EmptyShape{nativeShape: nativeShape{handle: C.orr_new_empty()}}
	runtime.SetFinalizer(s, func(e *EmptyShape) { e.free() })
	return s
}

var (
	_ engine.PolyhedralConvexShape = (*BoxShape)(nil)
	_ engine.ConvexInternalShape   = (*SphereShape)(nil)
	_ engine.ConcaveShape          = (*StaticPlaneShape)(nil)
	_ engine.ConcaveShape          = (*EmptyShape)(nil)
	_ engine.Engine                = (*Bullet)(nil)
)
