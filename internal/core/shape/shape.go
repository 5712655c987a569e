package shape

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// Type discriminates shape descriptors on the wire.
type Type string

const (
	TypeBox    Type = "BOX"
	TypeSphere Type = "SPHERE"
	TypePlane  Type = "PLANE"
	TypeEmpty  Type = "EMPTY"
)

// ParseType canonicalises a wire value into a Type. Matching is
// case-insensitive and accepts STATICPLANE as an alias for PLANE.
func ParseType(s string) (Type, error) {
	switch strings.ToUpper(s) {
	case "BOX":
		return TypeBox, nil
	case "SPHERE":
		return TypeSphere, nil
	case "PLANE", "STATICPLANE":
		return TypePlane, nil
	case "EMPTY":
		return TypeEmpty, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
}

func (t Type) String() string { return string(t) }

// Data is the per-type parameter block of a shape descriptor.
type Data interface {
	shapeType() Type
}

// Box is parameterised by half extents along each local axis.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (Box) shapeType() Type { return TypeBox }

// HalfExtents returns the half extents as a vector.
func (b Box) HalfExtents() mgl64.Vec3 { return mgl64.Vec3{b.X, b.Y, b.Z} }

// Sphere is parameterised by a scalar radius.
type Sphere struct {
	Radius float64 `json:"radius"`
}

func (Sphere) shapeType() Type { return TypeSphere }

// StaticPlane is parameterised by a plane normal and a scalar offset along it.
type StaticPlane struct {
	Normal mgl64.Vec3 `json:"normal"`
	Offset float64    `json:"ofs"`
}

func (StaticPlane) shapeType() Type { return TypePlane }

// Empty occupies no volume and never collides.
type Empty struct{}

func (Empty) shapeType() Type { return TypeEmpty }

// Meta is one collision shape descriptor: the shape parameters plus the
// shape's transform relative to its parent body.
type Meta struct {
	Type     Type
	Position mgl64.Vec3
	Rotation Quaternion
	Data     Data
}

// NewBox returns a box descriptor with the given half extents at the body
// origin.
func NewBox(x, y, z float64) Meta {
	return Meta{Type: TypeBox, Rotation: QuatIdent, Data: Box{X: x, Y: y, Z: z}}
}

// NewSphere returns a sphere descriptor at the body origin.
func NewSphere(radius float64) Meta {
	return Meta{Type: TypeSphere, Rotation: QuatIdent, Data: Sphere{Radius: radius}}
}

// NewStaticPlane returns a static plane descriptor with the given normal and
// offset.
func NewStaticPlane(normal mgl64.Vec3, ofs float64) Meta {
	return Meta{Type: TypePlane, Rotation: QuatIdent, Data: StaticPlane{Normal: normal, Offset: ofs}}
}

// NewEmpty returns an empty shape descriptor.
func NewEmpty() Meta {
	return Meta{Type: TypeEmpty, Rotation: QuatIdent, Data: Empty{}}
}

// Validate checks the descriptor for internal consistency: a known type, a
// parameter block matching that type, finite values, and for planes a usable
// normal.
func (m Meta) Validate() error {
	if _, err := ParseType(string(m.Type)); err != nil {
		return err
	}
	if m.Data == nil {
		return fmt.Errorf("%w: missing parameters for %s", ErrInvalidShape, m.Type)
	}
	if m.Data.shapeType() != m.Type {
		return fmt.Errorf("%w: %s parameters on a %s descriptor", ErrTypeMismatch, m.Data.shapeType(), m.Type)
	}
	for _, v := range m.Position {
		if !isFinite(v) {
			return fmt.Errorf("%w: non-finite position", ErrInvalidShape)
		}
	}
	if err := m.Rotation.Validate(); err != nil {
		return err
	}
	switch d := m.Data.(type) {
	case Box:
		if !isFinite(d.X) || !isFinite(d.Y) || !isFinite(d.Z) {
			return fmt.Errorf("%w: non-finite box extents", ErrInvalidShape)
		}
		if d.X < 0 || d.Y < 0 || d.Z < 0 {
			return fmt.Errorf("%w: negative box extents", ErrInvalidShape)
		}
	case Sphere:
		if !isFinite(d.Radius) || d.Radius < 0 {
			return fmt.Errorf("%w: bad sphere radius %v", ErrInvalidShape, d.Radius)
		}
	case StaticPlane:
		if !isFinite(d.Offset) {
			return fmt.Errorf("%w: non-finite plane offset", ErrInvalidShape)
		}
		if d.Normal.Len() == 0 || !isFinite(d.Normal.Len()) {
			return fmt.Errorf("%w: degenerate plane normal", ErrInvalidShape)
		}
	}
	return nil
}

// BoundingRadius returns the radius of a sphere centred on the parent body
// origin that encloses the shape, and whether such a sphere exists. Planes
// are unbounded and report false; empty shapes report zero.
func (m Meta) BoundingRadius() (float64, bool) {
	switch d := m.Data.(type) {
	case Box:
		return m.Position.Len() + d.HalfExtents().Len(), true
	case Sphere:
		return m.Position.Len() + d.Radius, true
	case StaticPlane:
		return 0, false
	default:
		return 0, true
	}
}

type metaWire struct {
	Type     string          `json:"cstype"`
	Position mgl64.Vec3      `json:"position"`
	Rotation Quaternion      `json:"rotation"`
	Data     json.RawMessage `json:"csdata"`
}

func (m Meta) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(m.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(metaWire{
		Type:     string(m.Type),
		Position: m.Position,
		Rotation: m.Rotation,
		Data:     data,
	})
}

func (m *Meta) UnmarshalJSON(raw []byte) error {
	var w metaWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return err
	}
	t, err := ParseType(w.Type)
	if err != nil {
		return err
	}
	m.Type = t
	m.Position = w.Position
	m.Rotation = w.Rotation
	if m.Rotation == (Quaternion{}) {
		m.Rotation = QuatIdent
	}
	switch t {
	case TypeBox:
		var d Box
		if err = json.Unmarshal(w.Data, &d); err != nil {
			return err
		}
		m.Data = d
	case TypeSphere:
		var d Sphere
		if err = json.Unmarshal(w.Data, &d); err != nil {
			return err
		}
		m.Data = d
	case TypePlane:
		var d StaticPlane
		if err = json.Unmarshal(w.Data, &d); err != nil {
			return err
		}
		m.Data = d
	case TypeEmpty:
		m.Data = Empty{}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
