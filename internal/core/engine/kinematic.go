package engine

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/orrerysim/orrery/internal/core/body"
	"github.com/orrerysim/orrery/internal/core/shape"
)

// KinematicName is the registry name of the default pure-Go backend.
const KinematicName = "kinematic"

func init() {
	Register(KinematicName, func() (Engine, error) {
		return NewKinematic(), nil
	})
}

// Kinematic is the default backend. It integrates velocities and applies
// external forces but performs no collision response and treats every body
// as a point mass: local inertia is always the zero vector.
type Kinematic struct{}

func NewKinematic() *Kinematic {
	return &Kinematic{}
}

func (e *Kinematic) Name() string { return KinematicName }

// Compile binds a shape descriptor to a backend shape.
func (e *Kinematic) Compile(m shape.Meta) (CollisionShape, error) {
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
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedShape, m.Type)
	}
}

// Step advances every non-static body: velocities pick up force·imass·dt
// scaled by the body's axis factors, positions pick up velocity·dt, and
// orientations integrate the angular velocity.
func (e *Kinematic) Step(dt float64, _ int, bodies map[uint64]*body.State, forces map[uint64]BodyForce) error {
	if dt < 0 {
		return fmt.Errorf("%w: dt %v", ErrInvalidStep, dt)
	}
	for id, b := range bodies {
		if b == nil || b.Static() {
			continue
		}
		if f, ok := forces[id]; ok && b.InverseMass > 0 {
			dv := f.Force.Mul(dt * b.InverseMass)
			b.LinearVelocity = b.LinearVelocity.Add(scaleElem(dv, b.LinearFactor))
			dw := f.Torque.Mul(dt * b.InverseMass)
			b.AngularVelocity = b.AngularVelocity.Add(scaleElem(dw, b.AngularFactor))
		}
		b.Position = b.Position.Add(b.LinearVelocity.Mul(dt))
		b.Rotation = integrateRotation(b.Rotation, b.AngularVelocity, dt)
	}
	return nil
}

func scaleElem(v, f mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{v[0] * f[0], v[1] * f[1], v[2] * f[2]}
}

func integrateRotation(q shape.Quaternion, omega mgl64.Vec3, dt float64) shape.Quaternion {
	if omega.Len() == 0 {
		return q
	}
	qq := q.Quat()
	dq := mgl64.Quat{W: 0, V: omega}.Mul(qq)
	out := mgl64.Quat{
		W: qq.W + 0.5*dt*dq.W,
		V: qq.V.Add(dq.V.Mul(0.5 * dt)),
	}
	return shape.FromQuat(out.Normalize())
}

// scalingState is the shared local-scaling slot of the kinematic shapes.
type scalingState struct {
	scaling mgl64.Vec3
}

func newScalingState() scalingState {
	return scalingState{scaling: mgl64.Vec3{1, 1, 1}}
}

func (s *scalingState) SetLocalScaling(scaling mgl64.Vec3) { s.scaling = scaling }

func (s *scalingState) LocalScaling() mgl64.Vec3 { return s.scaling }

// BoxShape is a box with per-axis half extents.
type BoxShape struct {
	PolyhedralConvex
	scalingState
	halfExtents mgl64.Vec3
}

func NewBoxShape(halfExtents mgl64.Vec3) *BoxShape {
	return &BoxShape{scalingState: newScalingState(), halfExtents: halfExtents}
}

func (s *BoxShape) Name() string { return "Box" }

func (s *BoxShape) HalfExtents() mgl64.Vec3 { return s.halfExtents }

func (s *BoxShape) CalculateLocalInertia(float64) mgl64.Vec3 { return mgl64.Vec3{} }

// SphereShape is a sphere with a scalar radius.
type SphereShape struct {
	ConvexInternal
	scalingState
	radius float64
}

func NewSphereShape(radius float64) *SphereShape {
	return &SphereShape{scalingState: newScalingState(), radius: radius}
}

func (s *SphereShape) Name() string { return "SPHERE" }

func (s *SphereShape) Radius() float64 { return s.radius }

func (s *SphereShape) CalculateLocalInertia(float64) mgl64.Vec3 { return mgl64.Vec3{} }

// StaticPlaneShape is an immovable plane given by a normal and an offset
// along it.
type StaticPlaneShape struct {
	Concave
	scalingState
	normal mgl64.Vec3
	offset float64
}

func NewStaticPlaneShape(normal mgl64.Vec3, offset float64) *StaticPlaneShape {
	return &StaticPlaneShape{scalingState: newScalingState(), normal: normal, offset: offset}
}

func (s *StaticPlaneShape) Name() string { return "STATICPLANE" }

func (s *StaticPlaneShape) Normal() mgl64.Vec3 { return s.normal }

func (s *StaticPlaneShape) Offset() float64 { return s.offset }

func (s *StaticPlaneShape) CalculateLocalInertia(float64) mgl64.Vec3 { return mgl64.Vec3{} }

// EmptyShape occupies no volume.
type EmptyShape struct {
	Concave
	scalingState
}

func NewEmptyShape() *EmptyShape {
	return &EmptyShape{scalingState: newScalingState()}
}

func (s *EmptyShape) Name() string { return "Empty" }

func (s *EmptyShape) CalculateLocalInertia(float64) mgl64.Vec3 { return mgl64.Vec3{} }

var (
	_ PolyhedralConvexShape = (*BoxShape)(nil)
	_ ConvexInternalShape   = (*SphereShape)(nil)
	_ ConcaveShape          = (*StaticPlaneShape)(nil)
	_ ConcaveShape          = (*EmptyShape)(nil)
	_ Engine                = (*Kinematic)(nil)
)
