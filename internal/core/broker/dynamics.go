package broker

import (
	"context"
	"errors"
	"strings"

	"github.com/orrerysim/orrery/internal/core/body"
	"github.com/orrerysim/orrery/internal/core/engine"
	"github.com/orrerysim/orrery/internal/core/parts"
	"github.com/orrerysim/orrery/internal/core/protocol"
	"github.com/orrerysim/orrery/internal/core/state"
	"github.com/orrerysim/orrery/pkg/sequence"
)

// handleSetForce stores a world-frame force acting at an offset from the
// body's center of mass. The offset turns into torque here, so the stepper
// only ever sees force/torque pairs. The target object need not exist yet;
// a force on an unknown ID simply never reaches a body.
func (b *Broker) handleSetForce(ctx context.Context, req *protocol.Request) *protocol.Response {
	var in protocol.SetForceRequest
	if err := req.Bind(&in); err != nil {
		return protocol.Failure("%v", err)
	}
	f := engine.BodyForce{
		Force:  in.Force,
		Torque: in.RelPos.Cross(in.Force),
	}
	if err := b.store.Forces.SetDirect(ctx, in.ObjID, f); err != nil {
		return protocol.Failure("%v", err)
	}
	return protocol.Success(nil)
}

// handleControlParts commands an object's boosters and factories. Booster
// commands update the stored output levels and recompile the object's total
// booster force and torque into world coordinates. Factory commands spawn
// one child each, launched along the factory's parent-rotated direction on
// top of the parent's velocity. The reply lists the spawned children.
func (b *Broker) handleControlParts(ctx context.Context, req *protocol.Request) *protocol.Response {
	var in protocol.ControlPartsRequest
	if err := req.Bind(&in); err != nil {
		return protocol.Failure("%v", err)
	}
	obj, err := b.store.Objects.Get(ctx, in.ObjID)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return protocol.Failure("Could not find object %d", in.ObjID)
		}
		return protocol.Failure("%v", err)
	}

	var unknown []string
	for _, id := range sequence.SortedKeys(in.Boosters) {
		if _, ok := obj.Boosters[id]; !ok {
			unknown = append(unknown, "booster "+id)
		}
	}
	for _, id := range sequence.SortedKeys(in.Factories) {
		if _, ok := obj.Factories[id]; !ok {
			unknown = append(unknown, "factory "+id)
		}
	}
	if len(unknown) > 0 {
		return protocol.Failure("Object %d has no %s", in.ObjID, strings.Join(unknown, ", "))
	}

	for id, cmd := range in.Boosters {
		booster := obj.Boosters[id]
		booster.Apply(cmd)
		obj.Boosters[id] = booster
	}
	force, torque := parts.CompileForce(obj.Boosters, obj.Body.Rotation.Quat())
	if err := b.store.Forces.SetBooster(ctx, in.ObjID, engine.BodyForce{Force: force, Torque: torque}); err != nil {
		return protocol.Failure("%v", err)
	}
	if len(in.Boosters) > 0 {
		if err := b.store.Objects.Update(ctx, obj); err != nil {
			return protocol.Failure("%v", err)
		}
	}

	orders := make([]spawnOrder, 0, len(in.Factories))
	for _, id := range sequence.SortedKeys(in.Factories) {
		factory := obj.Factories[id]
		pos, vel := factory.Launch(in.Factories[id], obj.Body.Position,
			obj.Body.Rotation.Quat(), obj.Body.LinearVelocity)
		orders = append(orders, spawnOrder{
			templateID: factory.TemplateID,
			override: body.Override{
				Position:       &pos,
				LinearVelocity: &vel,
			},
		})
	}
	ids, fail := b.spawnObjects(ctx, orders)
	if fail != nil {
		return fail
	}
	return protocol.Success(protocol.ObjectIDsResult{ObjIDs: ids})
}
