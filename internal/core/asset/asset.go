// Package asset manages the model fragments attached to templates and object
// instances. Fragment metadata (type, scale, placement) travels with the
// owning record; the geometry payloads live in a content store backed by a
// Vault and are served over HTTP by the gateway.
package asset

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/orrerysim/orrery/internal/core/shape"
)

// FragType names the payload format of a fragment.
type FragType string

const (
	// Raw is a vertex/UV/color triple encoded as one JSON model file.
	Raw FragType = "RAW"
	// Dae is a Collada document plus its texture files.
	Dae FragType = "DAE"
	// None marks a fragment for deletion when used in an update.
	None FragType = "NONE"
)

// ParseFragType normalises a wire-level fragment type.
func ParseFragType(s string) (FragType, error) {
	switch FragType(strings.ToUpper(s)) {
	case Raw:
		return Raw, nil
	case Dae:
		return Dae, nil
	case None:
		return None, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFragType, s)
}

// RawModel is the self-contained JSON geometry format. Vertices are grouped
// in triples, UV coordinates in pairs, colors as 8-bit channel values.
type RawModel struct {
	Vertices []float64 `json:"vert"`
	UV       []float64 `json:"uv"`
	RGB      []int     `json:"rgb"`
}

// DaeModel is a Collada document with its textures. Byte slices travel
// base64-encoded inside JSON.
type DaeModel struct {
	Dae      []byte            `json:"dae"`
	Textures map[string][]byte `json:"rgb"`
}

// Fragment is one named model fragment. Raw or Dae carries the geometry
// payload matching Type; both stay nil for metadata-only copies, such as the
// per-object records kept in the state store after the payload has been
// persisted.
type Fragment struct {
	Type     FragType
	Scale    float64
	Position mgl64.Vec3
	Rotation shape.Quaternion
	Raw      *RawModel
	Dae      *DaeModel
}

// NewRaw wraps a raw model in a fragment with neutral placement.
func NewRaw(m RawModel) Fragment {
	return Fragment{Type: Raw, Scale: 1, Rotation: shape.QuatIdent, Raw: &m}
}

// NewDae wraps a Collada model in a fragment with neutral placement.
func NewDae(m DaeModel) Fragment {
	return Fragment{Type: Dae, Scale: 1, Rotation: shape.QuatIdent, Dae: &m}
}

// DefaultFragment returns the placeholder model the builtin templates carry.
func DefaultFragment() Fragment {
	return NewRaw(RawModel{
		Vertices: []float64{0, 0, 0, 1, 0, 0, 0, 1, 0},
		UV:       []float64{},
		RGB:      []int{},
	})
}

type fragmentWire struct {
	Type     FragType         `json:"fragtype"`
	Scale    float64          `json:"scale"`
	Position mgl64.Vec3       `json:"position"`
	Rotation shape.Quaternion `json:"rotation"`
	Data     json.RawMessage  `json:"fragdata,omitempty"`
}

// MarshalJSON writes the fragment with its payload inlined under "fragdata".
func (f Fragment) MarshalJSON() ([]byte, error) {
	w := fragmentWire{Type: f.Type, Scale: f.Scale, Position: f.Position, Rotation: f.Rotation}
	var payload any
	switch f.Type {
	case Raw:
		if f.Raw != nil {
			payload = f.Raw
		}
	case Dae:
		if f.Dae != nil {
			payload = f.Dae
		}
	case None:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFragType, f.Type)
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		w.Data = data
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a fragment, dispatching the payload on "fragtype".
// An absent rotation decodes as the identity.
func (f *Fragment) UnmarshalJSON(data []byte) error {
	var w fragmentWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	typ, err := ParseFragType(string(w.Type))
	if err != nil {
		return err
	}
	f.Type = typ
	f.Scale = w.Scale
	f.Position = w.Position
	f.Rotation = w.Rotation
	f.Raw, f.Dae = nil, nil
	if f.Rotation == (shape.Quaternion{}) {
		f.Rotation = shape.QuatIdent
	}
	if len(w.Data) == 0 {
		return nil
	}
	switch typ {
	case Raw:
		m := new(RawModel)
		if err := json.Unmarshal(w.Data, m); err != nil {
			return err
		}
		f.Raw = m
	case Dae:
		m := new(DaeModel)
		if err := json.Unmarshal(w.Data, m); err != nil {
			return err
		}
		f.Dae = m
	case None:
	}
	return nil
}

// Validate checks type/payload consistency and placement sanity.
func (f Fragment) Validate() error {
	switch f.Type {
	case Raw:
		if f.Dae != nil {
			return fmt.Errorf("%w: raw fragment with collada payload", ErrInvalidFragment)
		}
	case Dae:
		if f.Raw != nil {
			return fmt.Errorf("%w: collada fragment with raw payload", ErrInvalidFragment)
		}
	case None:
		if f.Raw != nil || f.Dae != nil {
			return fmt.Errorf("%w: deletion marker with payload", ErrInvalidFragment)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFragType, f.Type)
	}
	if math.IsNaN(f.Scale) || math.IsInf(f.Scale, 0) || f.Scale < 0 {
		return fmt.Errorf("%w: scale %v", ErrInvalidFragment, f.Scale)
	}
	if err := f.Rotation.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFragment, err)
	}
	return nil
}

// HasPayload reports whether the fragment carries geometry to persist.
func (f Fragment) HasPayload() bool {
	return f.Raw != nil || f.Dae != nil
}

// Meta strips the payload, keeping placement and type.
func (f Fragment) Meta() Fragment {
	f.Raw, f.Dae = nil, nil
	return f
}

// Clone deep-copies the fragment including any payload.
func (f Fragment) Clone() Fragment {
	out := f
	if f.Raw != nil {
		m := RawModel{
			Vertices: append([]float64(nil), f.Raw.Vertices...),
			UV:       append([]float64(nil), f.Raw.UV...),
			RGB:      append([]int(nil), f.Raw.RGB...),
		}
		out.Raw = &m
	}
	if f.Dae != nil {
		m := DaeModel{Dae: append([]byte(nil), f.Dae.Dae...)}
		if f.Dae.Textures != nil {
			m.Textures = make(map[string][]byte, len(f.Dae.Textures))
			for name, tex := range f.Dae.Textures {
				m.Textures[name] = append([]byte(nil), tex...)
			}
		}
		out.Dae = &m
	}
	return out
}

// Ref points a client at a fragment's downloadable files.
type Ref struct {
	Type     FragType         `json:"fragtype"`
	Scale    float64          `json:"scale"`
	Position mgl64.Vec3       `json:"position"`
	Rotation shape.Quaternion `json:"rotation"`
	URL      string           `json:"url_frag"`
}

// Ref builds the download reference for this fragment rooted at base, for
// example "/instances/4/left_engine".
func (f Fragment) Ref(base, name string) Ref {
	return Ref{
		Type:     f.Type,
		Scale:    f.Scale,
		Position: f.Position,
		Rotation: f.Rotation,
		URL:      base + "/" + name,
	}
}

// CloneSet deep-copies a fragment map.
func CloneSet(frags map[string]Fragment) map[string]Fragment {
	if frags == nil {
		return nil
	}
	out := make(map[string]Fragment, len(frags))
	for name, f := range frags {
		out[name] = f.Clone()
	}
	return out
}

// MetaSet strips payloads from a fragment map.
func MetaSet(frags map[string]Fragment) map[string]Fragment {
	out := make(map[string]Fragment, len(frags))
	for name, f := range frags {
		out[name] = f.Meta()
	}
	return out
}

// ValidateSet checks a named fragment map as stored on a template.
func ValidateSet(frags map[string]Fragment) error {
	for name, f := range frags {
		if name == "" {
			return fmt.Errorf("%w: empty fragment name", ErrInvalidFragment)
		}
		if err := f.Validate(); err != nil {
			return fmt.Errorf("fragment %q: %w", name, err)
		}
		if f.Type == None {
			return fmt.Errorf("%w: fragment %q: deletion marker outside an update", ErrInvalidFragment, name)
		}
	}
	return nil
}
