package broker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/orrerysim/orrery/internal/core/asset"
	"github.com/orrerysim/orrery/internal/core/body"
	"github.com/orrerysim/orrery/internal/core/engine"
	"github.com/orrerysim/orrery/internal/core/parts"
	"github.com/orrerysim/orrery/internal/core/protocol"
	"github.com/orrerysim/orrery/internal/core/template"
)

func TestSetForce(t *testing.T) {
	b := newTestBroker(t)
	ctx := context.Background()
	id := spawnFrom(t, b, template.DefaultSphere, 1)[0]

	callOK(t, b, protocol.CmdSetForce, protocol.SetForceRequest{
		ObjID:  id,
		Force:  mgl64.Vec3{1, 2, 3},
		RelPos: mgl64.Vec3{4, 5, 6},
	}, nil)

	forces, err := b.store.Forces.All(ctx)
	require.NoError(t, err)
	require.Contains(t, forces, id)
	assert.Equal(t, mgl64.Vec3{1, 2, 3}, forces[id].Force)
	assert.Equal(t, mgl64.Vec3{3, -6, 3}, forces[id].Torque, "torque is rel_pos cross force")

	// A second call replaces the stored force, it does not accumulate.
	callOK(t, b, protocol.CmdSetForce, protocol.SetForceRequest{
		ObjID: id,
		Force: mgl64.Vec3{0, 0, 1},
	}, nil)
	forces, err = b.store.Forces.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, engine.BodyForce{Force: mgl64.Vec3{0, 0, 1}}, forces[id])
}

// shipTemplate carries two boosters pointing along +z, one on each side of
// the hull, so symmetric burns translate and asymmetric burns rotate.
func shipTemplate() template.Template {
	tpl := testTemplate("ship", map[string]asset.Fragment{"hull": fragRaw()})
	tpl.Boosters["b0"] = parts.Booster{
		Position: mgl64.Vec3{-1, 0, 0}, Direction: mgl64.Vec3{0, 0, 1},
		MinForce: -10, MaxForce: 10,
	}
	tpl.Boosters["b1"] = parts.Booster{
		Position: mgl64.Vec3{1, 0, 0}, Direction: mgl64.Vec3{0, 0, 1},
		MinForce: -10, MaxForce: 10,
	}
	return tpl
}

func TestControlPartsBoosters(t *testing.T) {
	b := newTestBroker(t)
	ctx := context.Background()
	addTemplate(t, b, shipTemplate())
	id := spawnFrom(t, b, "ship", 1)[0]

	fire := func(cmds map[string]parts.BoosterCmd) {
		var out protocol.ObjectIDsResult
		callOK(t, b, protocol.CmdControlParts,
			protocol.ControlPartsRequest{ObjID: id, Boosters: cmds}, &out)
		assert.Empty(t, out.ObjIDs)
	}
	total := func() engine.BodyForce {
		forces, err := b.store.Forces.All(ctx)
		require.NoError(t, err)
		return forces[id]
	}

	// Equal burns cancel their torque.
	fire(map[string]parts.BoosterCmd{"b0": {Force: 1}, "b1": {Force: 1}})
	assert.Equal(t, engine.BodyForce{Force: mgl64.Vec3{0, 0, 2}}, total())

	// Opposed burns cancel their force.
	fire(map[string]parts.BoosterCmd{"b0": {Force: 1}, "b1": {Force: -1}})
	assert.Equal(t, engine.BodyForce{Torque: mgl64.Vec3{0, 2, 0}}, total())

	// A partial command recompiles over the retained levels of the rest.
	fire(map[string]parts.BoosterCmd{"b0": {Force: 0}})
	assert.Equal(t, engine.BodyForce{
		Force:  mgl64.Vec3{0, 0, -1},
		Torque: mgl64.Vec3{0, 1, 0},
	}, total())

	// Commands clamp into the booster's force range.
	fire(map[string]parts.BoosterCmd{"b0": {Force: 1000}, "b1": {Force: 0}})
	assert.Equal(t, engine.BodyForce{
		Force:  mgl64.Vec3{0, 0, 10},
		Torque: mgl64.Vec3{0, 10, 0},
	}, total())

	// Unknown part names reject the whole command.
	resp := call(t, b, protocol.CmdControlParts, protocol.ControlPartsRequest{
		ObjID: id, Boosters: map[string]parts.BoosterCmd{"blah": {Force: 1}},
	})
	require.False(t, resp.OK)
	assert.Equal(t, "Object 1 has no booster blah", resp.Msg)

	resp = call(t, b, protocol.CmdControlParts, protocol.ControlPartsRequest{ObjID: 10000})
	require.False(t, resp.OK)
	assert.Equal(t, "Could not find object 10000", resp.Msg)
}

func TestControlPartsFactories(t *testing.T) {
	b := newTestBroker(t)

	tpl := testTemplate("carrier", map[string]asset.Fragment{"hull": fragRaw()})
	tpl.Factories["f0"] = parts.Factory{
		Position:   mgl64.Vec3{1, 0, 0},
		Direction:  mgl64.Vec3{0, 0, 1},
		TemplateID: template.DefaultSphere,
		ExitSpeed:  [2]float64{0.1, 1},
	}
	addTemplate(t, b, tpl)
	id := spawnFrom(t, b, "carrier", 1)[0]

	// Move the carrier so the child's start state is distinguishable.
	pos := mgl64.Vec3{10, 0, 0}
	vel := mgl64.Vec3{1, 1, 1}
	callOK(t, b, protocol.CmdSetRigidBody, protocol.SetRigidBodyRequest{
		Bodies: map[uint64]body.Override{id: {Position: &pos, LinearVelocity: &vel}},
	}, nil)

	var out protocol.ObjectIDsResult
	callOK(t, b, protocol.CmdControlParts, protocol.ControlPartsRequest{
		ObjID:     id,
		Factories: map[string]parts.FactoryCmd{"f0": {ExitSpeed: 1}},
	}, &out)
	require.Len(t, out.ObjIDs, 1)
	child := out.ObjIDs[0]

	// The child starts at the factory mount, inheriting the parent velocity
	// plus the exit velocity along the factory direction.
	var bodies protocol.GetRigidBodiesResult
	callOK(t, b, protocol.CmdGetRigidBodies,
		protocol.ObjectIDsRequest{ObjIDs: []uint64{child}}, &bodies)
	require.NotNil(t, bodies.Data[child])
	assert.Equal(t, mgl64.Vec3{11, 0, 0}, bodies.Data[child].Body.Position)
	assert.Equal(t, mgl64.Vec3{1, 1, 2}, bodies.Data[child].Body.LinearVelocity)

	var tid protocol.GetTemplateIDResult
	callOK(t, b, protocol.CmdGetTemplateID, protocol.GetTemplateIDRequest{ObjID: child}, &tid)
	assert.Equal(t, template.DefaultSphere, tid.TemplateID)

	// The carrier itself is untouched.
	var parent protocol.GetRigidBodiesResult
	callOK(t, b, protocol.CmdGetRigidBodies,
		protocol.ObjectIDsRequest{ObjIDs: []uint64{id}}, &parent)
	require.NotNil(t, parent.Data[id])
	assert.Equal(t, pos, parent.Data[id].Body.Position)
	assert.Equal(t, vel, parent.Data[id].Body.LinearVelocity)
}
