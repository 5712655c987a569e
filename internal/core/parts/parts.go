// Package parts holds the active components a template can attach to a body:
// boosters, which exert force along a body-fixed direction, and factories,
// which spawn new objects from a template. Part geometry lives in the body
// frame; the owning body's orientation maps it into world coordinates.
package parts

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Booster is a force generator fixed to its parent body.
type Booster struct {
	Position  mgl64.Vec3 `json:"pos"`
	Direction mgl64.Vec3 `json:"direction"`
	MinForce  float64    `json:"minval"`
	MaxForce  float64    `json:"maxval"`
	Force     float64    `json:"force"`
}

// Factory spawns children from a template with an exit speed along its
// direction.
type Factory struct {
	Position   mgl64.Vec3 `json:"pos"`
	Direction  mgl64.Vec3 `json:"direction"`
	TemplateID string     `json:"templateID"`
	ExitSpeed  [2]float64 `json:"exit_speed"`
}

// BoosterCmd sets the force output of one booster.
type BoosterCmd struct {
	Force float64 `json:"force"`
}

// FactoryCmd triggers one factory with the requested exit speed.
type FactoryCmd struct {
	ExitSpeed float64 `json:"exit_speed"`
}

// Normalize scales the direction to unit length. Parts are normalised once
// at template ingestion so the control path never renormalises.
func (b *Booster) Normalize() error {
	dir, err := unit(b.Direction)
	if err != nil {
		return fmt.Errorf("booster: %w", err)
	}
	b.Direction = dir
	return nil
}

// Validate checks the booster after normalisation.
func (b Booster) Validate() error {
	if b.MinForce > b.MaxForce {
		return fmt.Errorf("%w: min force %v above max %v", ErrInvalidPart, b.MinForce, b.MaxForce)
	}
	for _, v := range []float64{b.MinForce, b.MaxForce, b.Force} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite booster force", ErrInvalidPart)
		}
	}
	return nil
}

// Apply clamps the commanded force into the booster's range and stores it.
func (b *Booster) Apply(cmd BoosterCmd) {
	b.Force = clamp(cmd.Force, b.MinForce, b.MaxForce)
}

func (f *Factory) Normalize() error {
	dir, err := unit(f.Direction)
	if err != nil {
		return fmt.Errorf("factory: %w", err)
	}
	f.Direction = dir
	return nil
}

func (f Factory) Validate() error {
	if f.TemplateID == "" {
		return fmt.Errorf("%w: factory without template", ErrInvalidPart)
	}
	if f.ExitSpeed[0] > f.ExitSpeed[1] {
		return fmt.Errorf("%w: exit speed range %v", ErrInvalidPart, f.ExitSpeed)
	}
	return nil
}

// Launch computes the start position and velocity of a factory child. The
// factory geometry rotates with the parent; the child inherits the parent's
// velocity on top of its exit velocity.
func (f Factory) Launch(cmd FactoryCmd, parentPos mgl64.Vec3, parentRot mgl64.Quat, parentVel mgl64.Vec3) (pos, vel mgl64.Vec3) {
	speed := clamp(cmd.ExitSpeed, f.ExitSpeed[0], f.ExitSpeed[1])
	dir := parentRot.Rotate(f.Direction)
	pos = parentPos.Add(parentRot.Rotate(f.Position))
	vel = dir.Mul(speed).Add(parentVel)
	return pos, vel
}

// CompileForce sums the world-frame central force and torque currently
// produced by a body's boosters given the body orientation.
func CompileForce(boosters map[string]Booster, orientation mgl64.Quat) (force, torque mgl64.Vec3) {
	for _, b := range boosters {
		dir := orientation.Rotate(b.Direction)
		pos := orientation.Rotate(b.Position)
		f := dir.Mul(b.Force)
		force = force.Add(f)
		torque = torque.Add(pos.Cross(f))
	}
	return force, torque
}

// NormalizeBoosters normalises and validates a template's booster map.
func NormalizeBoosters(boosters map[string]Booster) error {
	for id, b := range boosters {
		if id == "" {
			return fmt.Errorf("%w: empty booster id", ErrInvalidPart)
		}
		if err := b.Normalize(); err != nil {
			return fmt.Errorf("booster %q: %w", id, err)
		}
		if err := b.Validate(); err != nil {
			return fmt.Errorf("booster %q: %w", id, err)
		}
		boosters[id] = b
	}
	return nil
}

// NormalizeFactories normalises and validates a template's factory map.
func NormalizeFactories(factories map[string]Factory) error {
	for id, f := range factories {
		if id == "" {
			return fmt.Errorf("%w: empty factory id", ErrInvalidPart)
		}
		if err := f.Normalize(); err != nil {
			return fmt.Errorf("factory %q: %w", id, err)
		}
		if err := f.Validate(); err != nil {
			return fmt.Errorf("factory %q: %w", id, err)
		}
		factories[id] = f
	}
	return nil
}

func unit(v mgl64.Vec3) (mgl64.Vec3, error) {
	n := v.Len()
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return mgl64.Vec3{}, fmt.Errorf("%w: degenerate direction %v", ErrInvalidPart, v)
	}
	return v.Mul(1 / n), nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
