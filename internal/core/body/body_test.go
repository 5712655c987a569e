package body

import (
	"encoding/json"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/orrerysim/orrery/internal/core/shape"
)

func TestDefault(t *testing.T) {
	s := Default()

	if s.Scale != 1 || s.InverseMass != 1 {
		t.Errorf("scale/imass = %v/%v, want 1/1", s.Scale, s.InverseMass)
	}
	if s.Restitution != 0.9 {
		t.Errorf("restitution = %v, want 0.9", s.Restitution)
	}
	if s.Rotation != shape.QuatIdent {
		t.Errorf("rotation = %v, want identity", s.Rotation)
	}
	if s.LinearFactor != (mgl64.Vec3{1, 1, 1}) || s.AngularFactor != (mgl64.Vec3{1, 1, 1}) {
		t.Errorf("factors = %v/%v, want all ones", s.LinearFactor, s.AngularFactor)
	}
	if s.Version != 0 {
		t.Errorf("version = %v, want 0", s.Version)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("default state invalid: %v", err)
	}

	// The default collision geometry is a unit sphere, so the broad-phase
	// half extent is exactly 1.
	if r := s.BoundingRadius(); r != 1 {
		t.Errorf("bounding radius = %v, want 1", r)
	}
	if s.Static() {
		t.Error("default body should not be static")
	}
}

func TestState_CloneIsDeep(t *testing.T) {
	a := Default()
	b := a.Clone()
	b.Shapes["extra"] = shape.NewBox(1, 1, 1)

	if _, ok := a.Shapes["extra"]; ok {
		t.Error("Clone shares shape storage")
	}
}

func TestDecodeOverride(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "position", raw: `{"position": [1, 2, 3]}`},
		{name: "imass", raw: `{"imass": 2}`},
		{name: "several fields", raw: `{"position": [1,2,3], "velocityLin": [4,5,6], "rotation": [0,0,0,1]}`},
		{name: "empty", raw: `{}`},
		{name: "unknown field", raw: `{"blah": 1}`, wantErr: true},
		{name: "scalar position", raw: `{"position": 1}`, wantErr: true},
		{name: "string imass", raw: `{"imass": "heavy"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeOverride(json.RawMessage(tt.raw))
			if tt.wantErr && err == nil {
				t.Fatalf("DecodeOverride(%s): expected error", tt.raw)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("DecodeOverride(%s): %v", tt.raw, err)
			}
		})
	}
}

func TestOverride_Apply(t *testing.T) {
	s := Default()
	o, err := DecodeOverride(json.RawMessage(`{"position": [1,2,3], "velocityLin": [4,5,6]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if o.Empty() {
		t.Fatal("override should not be empty")
	}
	if changed := o.Apply(&s); changed {
		t.Error("override without shapes reported a shape change")
	}
	if s.Position != (mgl64.Vec3{1, 2, 3}) || s.LinearVelocity != (mgl64.Vec3{4, 5, 6}) {
		t.Errorf("apply result: pos=%v vel=%v", s.Position, s.LinearVelocity)
	}
	// Untouched fields keep their defaults.
	if s.InverseMass != 1 || s.Restitution != 0.9 {
		t.Errorf("apply clobbered unrelated fields: %+v", s)
	}

	o2, err := DecodeOverride(json.RawMessage(`{"cshapes": {"csbox": {"cstype":"BOX","position":[0,0,0],"rotation":[0,0,0,1],"csdata":{"x":2,"y":2,"z":2}}}}`))
	if err != nil {
		t.Fatalf("decode shapes: %v", err)
	}
	if changed := o2.Apply(&s); !changed {
		t.Error("shape override should report a shape change")
	}
	if s.BoundingRadius() == 1 {
		t.Error("bounding radius unchanged after shape replacement")
	}
}

func TestState_WireRoundTrip(t *testing.T) {
	s := Default()
	s.Position = mgl64.Vec3{1, 2, 3}
	s.Version = 7

	raw, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var keys map[string]json.RawMessage
	if err = json.Unmarshal(raw, &keys); err != nil {
		t.Fatalf("unmarshal keys: %v", err)
	}
	for _, k := range []string{
		"scale", "imass", "restitution", "rotation", "position",
		"velocityLin", "velocityRot", "axesLockLin", "axesLockRot",
		"cshapes", "version",
	} {
		if _, ok := keys[k]; !ok {
			t.Errorf("wire form missing %q", k)
		}
	}

	var back State
	if err = json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Position != s.Position || back.Version != s.Version {
		t.Errorf("round trip mismatch: %+v", back)
	}
	if len(back.Shapes) != 1 {
		t.Errorf("shapes lost in round trip: %+v", back.Shapes)
	}
}
