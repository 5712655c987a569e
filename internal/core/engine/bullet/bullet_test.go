//go:build bullet

package bullet

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/orrerysim/orrery/internal/core/engine"
	"github.com/orrerysim/orrery/internal/core/shape"
)

func TestNativeShape_Names(t *testing.T) {
	// The name strings come from the native library itself.
	tests := []struct {
		desc shape.Meta
		want string
	}{
		{desc: shape.NewBox(1, 1, 1), want: "Box"},
		{desc: shape.NewSphere(1), want: "SPHERE"},
		{desc: shape.NewStaticPlane(mgl64.Vec3{0, 0, 1}, 0), want: "STATICPLANE"},
		{desc: shape.NewEmpty(), want: "Empty"},
	}

	eng := New()
	for _, tt := range tests {
		s, err := eng.Compile(tt.desc)
		if err != nil {
			t.Fatalf("Compile(%v): %v", tt.desc.Type, err)
		}
		if got := s.Name(); got != tt.want {
			t.Errorf("Name() = %q, want %q", got, tt.want)
		}
	}
}

func TestNativeShape_ScalingRoundTrip(t *testing.T) {
	eng := New()
	s, err := eng.Compile(shape.NewBox(1, 2, 3))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	want := mgl64.Vec3{2, 3, 4}
	s.SetLocalScaling(want)
	if got := s.LocalScaling(); got != want {
		t.Errorf("LocalScaling() = %v, want %v", got, want)
	}
}

func TestNativeShape_Inertia(t *testing.T) {
	eng := New()

	s, err := eng.Compile(shape.NewSphere(1))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	inertia := s.CalculateLocalInertia(1)
	// 2/5·m·r² on the diagonal for a solid sphere; the native library adds
	// its collision margin, so only check shape and symmetry.
	if inertia[0] <= 0 || inertia[0] != inertia[1] || inertia[1] != inertia[2] {
		t.Errorf("sphere inertia = %v, want positive isotropic", inertia)
	}

	if zero := s.CalculateLocalInertia(0); zero != (mgl64.Vec3{}) {
		t.Errorf("inertia at zero mass = %v, want zero", zero)
	}
}

func TestNativeShape_Hierarchy(t *testing.T) {
	var (
		_ engine.PolyhedralConvexShape = NewBoxShape(mgl64.Vec3{1, 1, 1})
		_ engine.ConvexInternalShape   = NewSphereShape(1)
		_ engine.ConcaveShape          = NewStaticPlaneShape(mgl64.Vec3{0, 0, 1}, 0)
		_ engine.ConcaveShape          = NewEmptyShape()
	)

	if _, ok := interface{}(NewSphereShape(1)).(engine.PolyhedralConvexShape); ok {
		t.Error("sphere must not be polyhedral")
	}
}
