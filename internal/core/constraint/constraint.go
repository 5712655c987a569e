// Package constraint defines the joints that link pairs of rigid bodies.
// Records are declarative; the collision backend consumes them when it
// assembles its world.
package constraint

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/orrerysim/orrery/internal/core/shape"
)

// Type names a constraint kind.
type Type string

const (
	// P2P pins a point of one body to a point of another.
	P2P Type = "P2P"
	// SixDOFSpring2 is a generic six degree of freedom spring joint.
	SixDOFSpring2 Type = "6DOFSPRING2"
)

// ParseType normalises a wire-level constraint type.
func ParseType(s string) (Type, error) {
	switch Type(strings.ToUpper(s)) {
	case P2P:
		return P2P, nil
	case SixDOFSpring2:
		return SixDOFSpring2, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
}

// Data is the per-type constraint payload.
type Data interface {
	constraintType() Type
}

// PointToPoint holds the body-frame pivots of a P2P joint.
type PointToPoint struct {
	PivotA mgl64.Vec3 `json:"pivot_a"`
	PivotB mgl64.Vec3 `json:"pivot_b"`
}

func (PointToPoint) constraintType() Type { return P2P }

// Frame is a body-local pose. It travels as a seven element array of
// position followed by rotation.
type Frame struct {
	Position mgl64.Vec3
	Rotation shape.Quaternion
}

// MarshalJSON renders the frame as [x y z qx qy qz qw].
func (f Frame) MarshalJSON() ([]byte, error) {
	arr := [7]float64{
		f.Position[0], f.Position[1], f.Position[2],
		f.Rotation[0], f.Rotation[1], f.Rotation[2], f.Rotation[3],
	}
	return json.Marshal(arr)
}

// UnmarshalJSON parses a seven element pose array.
func (f *Frame) UnmarshalJSON(data []byte) error {
	var arr [7]float64
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	f.Position = mgl64.Vec3{arr[0], arr[1], arr[2]}
	f.Rotation = shape.Quaternion{arr[3], arr[4], arr[5], arr[6]}
	return nil
}

// Spring holds the parameters of a six degree of freedom spring joint. The
// six element arrays run over the three linear axes followed by the three
// angular ones.
type Spring struct {
	FrameA       Frame      `json:"frameInA"`
	FrameB       Frame      `json:"frameInB"`
	Stiffness    [6]float64 `json:"stiffness"`
	Damping      [6]float64 `json:"damping"`
	Equilibrium  [6]float64 `json:"equilibrium"`
	LinLimitLo   mgl64.Vec3 `json:"linLimitLo"`
	LinLimitHi   mgl64.Vec3 `json:"linLimitHi"`
	RotLimitLo   mgl64.Vec3 `json:"rotLimitLo"`
	RotLimitHi   mgl64.Vec3 `json:"rotLimitHi"`
	Bounce       mgl64.Vec3 `json:"bounce"`
	EnableSpring [6]bool    `json:"enableSpring"`
}

func (Spring) constraintType() Type { return SixDOFSpring2 }

// DefaultSpring returns a spring at rest with identity frames and limits
// disabled (lo above hi leaves the axis free).
func DefaultSpring() Spring {
	return Spring{
		FrameA:     Frame{Rotation: shape.QuatIdent},
		FrameB:     Frame{Rotation: shape.QuatIdent},
		LinLimitLo: mgl64.Vec3{1, 1, 1},
		LinLimitHi: mgl64.Vec3{-1, -1, -1},
		RotLimitLo: mgl64.Vec3{1, 1, 1},
		RotLimitHi: mgl64.Vec3{-1, -1, -1},
	}
}

// Meta is one constraint record between two bodies. Tag disambiguates
// multiple constraints of the same type on the same pair.
type Meta struct {
	Type   Type
	Tag    string
	RigidA uint64
	RigidB uint64
	Data   Data
}

// Key identifies a constraint record. Two records with equal keys describe
// the same joint.
type Key struct {
	Type   Type
	Tag    string
	RigidA uint64
	RigidB uint64
}

// Key returns the identity of the constraint.
func (m Meta) Key() Key {
	return Key{Type: m.Type, Tag: m.Tag, RigidA: m.RigidA, RigidB: m.RigidB}
}

// Involves reports whether the constraint attaches to the given body.
func (m Meta) Involves(bodyID uint64) bool {
	return m.RigidA == bodyID || m.RigidB == bodyID
}

// NewP2P builds a point-to-point constraint in canonical body order.
func NewP2P(rigidA, rigidB uint64, tag string, pivotA, pivotB mgl64.Vec3) Meta {
	m := Meta{
		Type: P2P, Tag: tag, RigidA: rigidA, RigidB: rigidB,
		Data: PointToPoint{PivotA: pivotA, PivotB: pivotB},
	}
	m.normalize()
	return m
}

// NewSpring builds a six degree of freedom spring constraint in canonical
// body order.
func NewSpring(rigidA, rigidB uint64, tag string, spring Spring) Meta {
	m := Meta{Type: SixDOFSpring2, Tag: tag, RigidA: rigidA, RigidB: rigidB, Data: spring}
	m.normalize()
	return m
}

// normalize orders the bodies so RigidA < RigidB, swapping the payload's
// sides along with them.
func (m *Meta) normalize() {
	if m.RigidA <= m.RigidB {
		return
	}
	m.RigidA, m.RigidB = m.RigidB, m.RigidA
	switch d := m.Data.(type) {
	case PointToPoint:
		d.PivotA, d.PivotB = d.PivotB, d.PivotA
		m.Data = d
	case Spring:
		d.FrameA, d.FrameB = d.FrameB, d.FrameA
		m.Data = d
	}
}

// Validate checks the record for structural soundness.
func (m Meta) Validate() error {
	if _, err := ParseType(string(m.Type)); err != nil {
		return err
	}
	if m.RigidA == 0 || m.RigidB == 0 {
		return fmt.Errorf("%w: body id 0", ErrInvalidConstraint)
	}
	if m.RigidA == m.RigidB {
		return fmt.Errorf("%w: self constraint on body %d", ErrInvalidConstraint, m.RigidA)
	}
	if m.RigidA > m.RigidB {
		return fmt.Errorf("%w: bodies out of canonical order", ErrInvalidConstraint)
	}
	switch d := m.Data.(type) {
	case PointToPoint:
		if m.Type != P2P {
			return fmt.Errorf("%w: payload does not match type %q", ErrInvalidConstraint, m.Type)
		}
		for _, v := range append(d.PivotA[:], d.PivotB[:]...) {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: non-finite pivot", ErrInvalidConstraint)
			}
		}
	case Spring:
		if m.Type != SixDOFSpring2 {
			return fmt.Errorf("%w: payload does not match type %q", ErrInvalidConstraint, m.Type)
		}
		if err := d.FrameA.Rotation.Validate(); err != nil {
			return fmt.Errorf("%w: frame A: %v", ErrInvalidConstraint, err)
		}
		if err := d.FrameB.Rotation.Validate(); err != nil {
			return fmt.Errorf("%w: frame B: %v", ErrInvalidConstraint, err)
		}
	case nil:
		return fmt.Errorf("%w: missing payload", ErrInvalidConstraint)
	default:
		return fmt.Errorf("%w: unknown payload %T", ErrInvalidConstraint, d)
	}
	return nil
}

type metaWire struct {
	Type   string          `json:"contype"`
	Tag    string          `json:"aid"`
	RigidA uint64          `json:"rb_a"`
	RigidB uint64          `json:"rb_b"`
	Data   json.RawMessage `json:"condata"`
}

// MarshalJSON writes the record with the payload inlined under "condata".
func (m Meta) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(m.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(metaWire{
		Type: string(m.Type), Tag: m.Tag,
		RigidA: m.RigidA, RigidB: m.RigidB, Data: data,
	})
}

// UnmarshalJSON parses a record, dispatching the payload on "contype".
func (m *Meta) UnmarshalJSON(data []byte) error {
	var w metaWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	typ, err := ParseType(w.Type)
	if err != nil {
		return err
	}
	m.Type = typ
	m.Tag = w.Tag
	m.RigidA = w.RigidA
	m.RigidB = w.RigidB
	switch typ {
	case P2P:
		var d PointToPoint
		if err := json.Unmarshal(w.Data, &d); err != nil {
			return err
		}
		m.Data = d
	case SixDOFSpring2:
		var d Spring
		if err := json.Unmarshal(w.Data, &d); err != nil {
			return err
		}
		m.Data = d
	}
	m.normalize()
	return nil
}
