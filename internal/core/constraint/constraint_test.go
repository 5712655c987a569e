package constraint

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/orrerysim/orrery/internal/core/shape"
)

func TestNewP2P_CanonicalOrder(t *testing.T) {
	pivotA := mgl64.Vec3{2, 0, 0}
	pivotB := mgl64.Vec3{-2, 0, 0}

	// Passing the bodies in descending order swaps both the IDs and the
	// pivots, so the two spellings describe the same joint.
	c1 := NewP2P(1, 2, "", pivotA, pivotB)
	c2 := NewP2P(2, 1, "", pivotB, pivotA)

	if c1.Key() != c2.Key() {
		t.Fatalf("keys differ: %+v vs %+v", c1.Key(), c2.Key())
	}
	if c1.RigidA != 1 || c1.RigidB != 2 {
		t.Fatalf("bodies not canonical: %d, %d", c1.RigidA, c1.RigidB)
	}
	d1 := c1.Data.(PointToPoint)
	d2 := c2.Data.(PointToPoint)
	if d1 != d2 {
		t.Fatalf("payloads differ after normalisation: %+v vs %+v", d1, d2)
	}

	if err := c1.Validate(); err != nil {
		t.Fatalf("valid constraint rejected: %v", err)
	}
}

func TestMeta_Involves(t *testing.T) {
	c := NewP2P(1, 2, "", mgl64.Vec3{}, mgl64.Vec3{})
	if !c.Involves(1) || !c.Involves(2) {
		t.Error("constraint should involve both linked bodies")
	}
	if c.Involves(3) {
		t.Error("constraint should not involve unrelated bodies")
	}
}

func TestMeta_Validate(t *testing.T) {
	tests := []struct {
		name string
		meta Meta
	}{
		{"self link", Meta{Type: P2P, RigidA: 1, RigidB: 1, Data: PointToPoint{}}},
		{"zero body", Meta{Type: P2P, RigidA: 0, RigidB: 2, Data: PointToPoint{}}},
		{"missing payload", Meta{Type: P2P, RigidA: 1, RigidB: 2}},
		{"payload type mismatch", Meta{Type: SixDOFSpring2, RigidA: 1, RigidB: 2, Data: PointToPoint{}}},
		{"unknown type", Meta{Type: "HINGE", RigidA: 1, RigidB: 2, Data: PointToPoint{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.meta.Validate(); err == nil {
				t.Errorf("Validate() accepted %+v", tt.meta)
			}
		})
	}
}

func TestMeta_WireFormat(t *testing.T) {
	c := NewP2P(1, 2, "left", mgl64.Vec3{2, 0, 0}, mgl64.Vec3{-2, 0, 0})

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var wire map[string]json.RawMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("unmarshal wire: %v", err)
	}
	for _, key := range []string{"contype", "aid", "rb_a", "rb_b", "condata"} {
		if _, ok := wire[key]; !ok {
			t.Errorf("wire record is missing key %q", key)
		}
	}

	var back Meta
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back != c {
		t.Errorf("roundtrip mismatch: %+v vs %+v", back, c)
	}

	var bad Meta
	if err := json.Unmarshal([]byte(`{"contype": "blah", "rb_a": 1, "rb_b": 2}`), &bad); !errors.Is(err, ErrUnknownType) {
		t.Errorf("unknown contype error = %v, want ErrUnknownType", err)
	}
}

func TestSpring_WireFormat(t *testing.T) {
	spring := DefaultSpring()
	spring.FrameA = Frame{Position: mgl64.Vec3{0, 0, -1}, Rotation: shape.QuatIdent}
	spring.Stiffness = [6]float64{1, 2, 3, 4, 5.5, 6}
	spring.EnableSpring = [6]bool{true, false, false, false, false, false}
	c := NewSpring(2, 3, "spring", spring)

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	// Frames travel as seven element pose arrays.
	var wire struct {
		Data struct {
			FrameA []float64 `json:"frameInA"`
		} `json:"condata"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("unmarshal wire: %v", err)
	}
	want := []float64{0, 0, -1, 0, 0, 0, 1}
	if len(wire.Data.FrameA) != 7 {
		t.Fatalf("frameInA has %d elements, want 7", len(wire.Data.FrameA))
	}
	for i, v := range want {
		if wire.Data.FrameA[i] != v {
			t.Errorf("frameInA[%d] = %v, want %v", i, wire.Data.FrameA[i], v)
		}
	}

	var back Meta
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back != c {
		t.Errorf("roundtrip mismatch")
	}
}
