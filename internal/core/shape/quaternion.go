package shape

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// Quaternion is an orientation in (x, y, z, w) wire order.
type Quaternion [4]float64

// QuatIdent is the identity orientation.
var QuatIdent = Quaternion{0, 0, 0, 1}

// Quat converts to an mgl64 quaternion.
func (q Quaternion) Quat() mgl64.Quat {
	return mgl64.Quat{W: q[3], V: mgl64.Vec3{q[0], q[1], q[2]}}
}

// FromQuat converts an mgl64 quaternion into wire order.
func FromQuat(q mgl64.Quat) Quaternion {
	return Quaternion{q.V[0], q.V[1], q.V[2], q.W}
}

// Rotate applies the orientation to a vector.
func (q Quaternion) Rotate(v mgl64.Vec3) mgl64.Vec3 {
	return q.Quat().Rotate(v)
}

// Normalized returns the unit quaternion with the same orientation.
func (q Quaternion) Normalized() Quaternion {
	return FromQuat(q.Quat().Normalize())
}

// Validate rejects orientations that cannot be normalised.
func (q Quaternion) Validate() error {
	n := q.Quat().Norm()
	if n == 0 || !isFinite(n) {
		return fmt.Errorf("%w: degenerate rotation %v", ErrInvalidShape, q)
	}
	return nil
}
