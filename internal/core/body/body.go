package body

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/orrerysim/orrery/internal/core/shape"
)

// State is the full dynamic state of one rigid body. Field tags follow the
// wire vocabulary every client speaks.
type State struct {
	Scale           float64          `json:"scale"`
	InverseMass     float64          `json:"imass"`
	Restitution     float64          `json:"restitution"`
	Rotation        shape.Quaternion `json:"rotation"`
	Position        mgl64.Vec3       `json:"position"`
	LinearVelocity  mgl64.Vec3       `json:"velocityLin"`
	AngularVelocity mgl64.Vec3       `json:"velocityRot"`
	LinearFactor    mgl64.Vec3       `json:"axesLockLin"`
	AngularFactor   mgl64.Vec3       `json:"axesLockRot"`
	Shapes          shape.Set        `json:"cshapes"`
	Version         uint32           `json:"version"`
}

// Default returns the canonical body: unit mass and scale, a unit sphere for
// collision geometry, at rest at the origin.
func Default() State {
	return State{
		Scale:         1,
		InverseMass:   1,
		Restitution:   0.9,
		Rotation:      shape.QuatIdent,
		LinearFactor:  mgl64.Vec3{1, 1, 1},
		AngularFactor: mgl64.Vec3{1, 1, 1},
		Shapes:        shape.Set{"cssphere": shape.NewSphere(1)},
	}
}

// Validate checks the state for values the stepper cannot work with.
func (s State) Validate() error {
	for name, v := range map[string]float64{
		"scale":       s.Scale,
		"imass":       s.InverseMass,
		"restitution": s.Restitution,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite %s", ErrInvalidState, name)
		}
	}
	if s.Scale < 0 {
		return fmt.Errorf("%w: negative scale", ErrInvalidState)
	}
	if s.InverseMass < 0 {
		return fmt.Errorf("%w: negative inverse mass", ErrInvalidState)
	}
	if err := s.Rotation.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if err := s.Shapes.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	return nil
}

// BoundingRadius derives the broad-phase half extent from the shape set and
// the body scale.
func (s State) BoundingRadius() float64 {
	return s.Scale * s.Shapes.BoundingRadius()
}

// Static reports whether the body is pinned (its shape set contains a plane).
func (s State) Static() bool {
	return s.Shapes.Static()
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := s
	out.Shapes = s.Shapes.Clone()
	return out
}

// Override is a partial body state used when spawning or updating objects.
// Absent fields keep their current value. Decoding is strict so a typo in a
// field name is rejected instead of silently ignored.
type Override struct {
	Scale           *float64          `json:"scale,omitempty"`
	InverseMass     *float64          `json:"imass,omitempty"`
	Restitution     *float64          `json:"restitution,omitempty"`
	Rotation        *shape.Quaternion `json:"rotation,omitempty"`
	Position        *mgl64.Vec3       `json:"position,omitempty"`
	LinearVelocity  *mgl64.Vec3       `json:"velocityLin,omitempty"`
	AngularVelocity *mgl64.Vec3       `json:"velocityRot,omitempty"`
	LinearFactor    *mgl64.Vec3       `json:"axesLockLin,omitempty"`
	AngularFactor   *mgl64.Vec3       `json:"axesLockRot,omitempty"`
	Shapes          shape.Set         `json:"cshapes,omitempty"`
}

// DecodeOverride parses a partial state, rejecting unknown fields and values
// of the wrong shape.
func DecodeOverride(raw json.RawMessage) (Override, error) {
	var o Override
	if len(raw) == 0 {
		return o, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&o); err != nil {
		return Override{}, fmt.Errorf("%w: %v", ErrInvalidOverride, err)
	}
	return o, nil
}

// Empty reports whether the override carries no fields.
func (o Override) Empty() bool {
	return o.Scale == nil && o.InverseMass == nil && o.Restitution == nil &&
		o.Rotation == nil && o.Position == nil && o.LinearVelocity == nil &&
		o.AngularVelocity == nil && o.LinearFactor == nil &&
		o.AngularFactor == nil && o.Shapes == nil
}

// Apply copies the present fields onto s. It reports whether the shape set
// changed, which callers use to recompute broad-phase extents.
func (o Override) Apply(s *State) (shapesChanged bool) {
	if o.Scale != nil {
		s.Scale = *o.Scale
	}
	if o.InverseMass != nil {
		s.InverseMass = *o.InverseMass
	}
	if o.Restitution != nil {
		s.Restitution = *o.Restitution
	}
	if o.Rotation != nil {
		s.Rotation = *o.Rotation
	}
	if o.Position != nil {
		s.Position = *o.Position
	}
	if o.LinearVelocity != nil {
		s.LinearVelocity = *o.LinearVelocity
	}
	if o.AngularVelocity != nil {
		s.AngularVelocity = *o.AngularVelocity
	}
	if o.LinearFactor != nil {
		s.LinearFactor = *o.LinearFactor
	}
	if o.AngularFactor != nil {
		s.AngularFactor = *o.AngularFactor
	}
	if o.Shapes != nil {
		s.Shapes = o.Shapes.Clone()
		shapesChanged = true
	}
	return shapesChanged
}

// Validate checks the fields the override carries.
func (o Override) Validate() error {
	if o.Scale != nil && (*o.Scale < 0 || math.IsNaN(*o.Scale)) {
		return fmt.Errorf("%w: bad scale", ErrInvalidOverride)
	}
	if o.InverseMass != nil && (*o.InverseMass < 0 || math.IsNaN(*o.InverseMass)) {
		return fmt.Errorf("%w: bad inverse mass", ErrInvalidOverride)
	}
	if o.Rotation != nil {
		if err := o.Rotation.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidOverride, err)
		}
	}
	if o.Shapes != nil {
		if err := o.Shapes.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidOverride, err)
		}
	}
	return nil
}
