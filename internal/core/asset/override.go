package asset

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/orrerysim/orrery/internal/core/shape"
)

// Override is a partial fragment update. Nil fields keep their current
// value. Data, when present, replaces the geometry payload and must decode
// under the effective fragment type. Setting Type to None removes the
// fragment.
type Override struct {
	Type     *FragType         `json:"fragtype,omitempty"`
	Scale    *float64          `json:"scale,omitempty"`
	Position *mgl64.Vec3       `json:"position,omitempty"`
	Rotation *shape.Quaternion `json:"rotation,omitempty"`
	Data     json.RawMessage   `json:"fragdata,omitempty"`
}

// DecodeOverride parses a partial fragment update, rejecting unknown keys.
func DecodeOverride(raw []byte) (Override, error) {
	var o Override
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&o); err != nil {
		return Override{}, fmt.Errorf("%w: %v", ErrInvalidFragment, err)
	}
	if o.Type != nil {
		typ, err := ParseFragType(string(*o.Type))
		if err != nil {
			return Override{}, err
		}
		o.Type = &typ
	}
	return o, nil
}

// Empty reports whether the override changes nothing.
func (o Override) Empty() bool {
	return o.Type == nil && o.Scale == nil && o.Position == nil &&
		o.Rotation == nil && len(o.Data) == 0
}

// Remove reports whether the override deletes the fragment.
func (o Override) Remove() bool {
	return o.Type != nil && *o.Type == None
}

// Apply merges the override into f. It reports whether the geometry payload
// changed, which decides whether the asset store must be rewritten and the
// owning body's version bumped.
func (o Override) Apply(f *Fragment) (geometryChanged bool, err error) {
	if o.Remove() {
		return false, fmt.Errorf("%w: deletion marker applied as update", ErrInvalidFragment)
	}
	if o.Type != nil {
		if *o.Type != f.Type && len(o.Data) == 0 {
			return false, fmt.Errorf("%w: type change without new payload", ErrInvalidFragment)
		}
		f.Type = *o.Type
	}
	if o.Scale != nil {
		f.Scale = *o.Scale
	}
	if o.Position != nil {
		f.Position = *o.Position
	}
	if o.Rotation != nil {
		f.Rotation = *o.Rotation
	}
	if len(o.Data) > 0 {
		f.Raw, f.Dae = nil, nil
		switch f.Type {
		case Raw:
			m := new(RawModel)
			if err := json.Unmarshal(o.Data, m); err != nil {
				return false, fmt.Errorf("%w: %v", ErrInvalidFragment, err)
			}
			f.Raw = m
		case Dae:
			m := new(DaeModel)
			if err := json.Unmarshal(o.Data, m); err != nil {
				return false, fmt.Errorf("%w: %v", ErrInvalidFragment, err)
			}
			f.Dae = m
		default:
			return false, fmt.Errorf("%w: payload for type %q", ErrInvalidFragment, f.Type)
		}
		geometryChanged = true
	}
	if err := f.Validate(); err != nil {
		return false, err
	}
	return geometryChanged, nil
}
