package shape

import "fmt"

// Set is a named collection of shape descriptors forming one body's
// collision geometry.
type Set map[string]Meta

// Validate checks every descriptor in the set. Names must be non-empty.
func (s Set) Validate() error {
	for name, m := range s {
		if name == "" {
			return fmt.Errorf("%w: empty shape name", ErrInvalidShape)
		}
		if err := m.Validate(); err != nil {
			return fmt.Errorf("shape %q: %w", name, err)
		}
	}
	return nil
}

// Static reports whether the set pins its body in place. Plane shapes are
// unbounded and only make sense on immovable bodies.
func (s Set) Static() bool {
	for _, m := range s {
		if m.Type == TypePlane {
			return true
		}
	}
	return false
}

// BoundingRadius returns the radius of a sphere around the body origin
// covering every bounded shape in the set. Planes are skipped; an empty or
// all-empty set yields zero.
func (s Set) BoundingRadius() float64 {
	var radius float64
	for _, m := range s {
		if r, ok := m.BoundingRadius(); ok && r > radius {
			radius = r
		}
	}
	return radius
}

// Clone returns a copy sharing no map storage with the original.
func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	out := make(Set, len(s))
	for name, m := range s {
		out[name] = m
	}
	return out
}
