package broker

import (
	"context"
	"errors"
	"strings"

	"github.com/orrerysim/orrery/internal/core/asset"
	"github.com/orrerysim/orrery/internal/core/body"
	"github.com/orrerysim/orrery/internal/core/events/bus"
	"github.com/orrerysim/orrery/internal/core/observability/log"
	"github.com/orrerysim/orrery/internal/core/protocol"
	"github.com/orrerysim/orrery/internal/core/state"
)

// spawnOrder is one object to create: the template to instantiate and the
// body fields overriding the template's defaults.
type spawnOrder struct {
	templateID string
	override   body.Override
}

// spawnObjects creates the ordered objects and returns their IDs. The whole
// batch is validated before any ID is allocated; after that, an order whose
// asset copy fails is skipped and its ID burned, so the result may be
// shorter than the input.
func (b *Broker) spawnObjects(ctx context.Context, orders []spawnOrder) ([]uint64, *protocol.Response) {
	spawned := make([]uint64, 0, len(orders))
	sources := make([]string, 0, len(orders))
	if len(orders) == 0 {
		return spawned, nil
	}
	for _, o := range orders {
		if err := o.override.Validate(); err != nil {
			return nil, protocol.Failure("%v", err)
		}
	}

	unique := make([]string, 0, len(orders))
	seen := make(map[string]bool, len(orders))
	for _, o := range orders {
		if !seen[o.templateID] {
			seen[o.templateID] = true
			unique = append(unique, o.templateID)
		}
	}
	templates, err := b.store.Templates.GetMulti(ctx, unique)
	if err != nil {
		return nil, protocol.Failure("%v", err)
	}
	var missing []string
	for _, id := range unique {
		if templates[id] == nil {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, protocol.Failure("Could not find all templates (%s)", strings.Join(missing, ", "))
	}

	ids, err := b.store.Counters.NextIDs(ctx, len(orders))
	if err != nil {
		return nil, protocol.Failure("%v", err)
	}
	for i, o := range orders {
		objID := ids[i]
		if _, err := b.assets.SpawnInstance(ctx, o.templateID, objID); err != nil {
			b.logger.Warn("asset copy failed, object skipped",
				log.Uint64("objID", objID),
				log.String("templateID", o.templateID),
				log.Error(err))
			continue
		}
		tpl := templates[o.templateID].Clone()
		obj := state.Object{
			ID:         objID,
			TemplateID: o.templateID,
			Body:       tpl.Body,
			Fragments:  tpl.Fragments,
			Boosters:   tpl.Boosters,
			Factories:  tpl.Factories,
		}
		o.override.Apply(&obj.Body)
		if err := b.store.Objects.Insert(ctx, obj); err != nil {
			return nil, protocol.Failure("%v", err)
		}
		spawned = append(spawned, objID)
		sources = append(sources, o.templateID)
	}
	if len(spawned) > 0 {
		b.publish(bus.TypeObjectsSpawned, bus.ObjectsSpawned{IDs: spawned, Templates: sources})
	}
	return spawned, nil
}

// handleSpawn creates objects from templates with per-object body overrides.
func (b *Broker) handleSpawn(ctx context.Context, req *protocol.Request) *protocol.Response {
	var in protocol.SpawnRequest
	if err := req.Bind(&in); err != nil {
		return protocol.Failure("%v", err)
	}
	orders := make([]spawnOrder, len(in.Payload))
	for i, o := range in.Payload {
		orders[i] = spawnOrder{templateID: o.TemplateID, override: o.Body}
	}
	ids, fail := b.spawnObjects(ctx, orders)
	if fail != nil {
		return fail
	}
	return protocol.Success(protocol.ObjectIDsResult{ObjIDs: ids})
}

// handleRemove deletes an object with everything attached to it: asset
// copies, constraints and pending forces. Removing an object that does not
// exist succeeds, so retries and races between clients are harmless.
func (b *Broker) handleRemove(ctx context.Context, req *protocol.Request) *protocol.Response {
	var in protocol.RemoveRequest
	if err := req.Bind(&in); err != nil {
		return protocol.Failure("%v", err)
	}
	existed, err := b.store.Objects.Delete(ctx, in.ObjID)
	if err != nil {
		return protocol.Failure("%v", err)
	}
	if _, err := b.store.Constraints.DropBody(ctx, in.ObjID); err != nil {
		b.logger.Warn("constraint cleanup failed", log.Uint64("objID", in.ObjID), log.Error(err))
	}
	if err := b.store.Forces.Delete(ctx, in.ObjID); err != nil {
		b.logger.Warn("force cleanup failed", log.Uint64("objID", in.ObjID), log.Error(err))
	}
	if err := b.assets.RemoveInstance(ctx, in.ObjID); err != nil && !errors.Is(err, asset.ErrNotFound) {
		b.logger.Warn("asset cleanup failed", log.Uint64("objID", in.ObjID), log.Error(err))
	}
	if existed {
		b.publish(bus.TypeObjectsRemoved, bus.ObjectsRemoved{IDs: []uint64{in.ObjID}})
	}
	return protocol.Success(nil)
}

// handleGetAllObjectIDs lists every live object.
func (b *Broker) handleGetAllObjectIDs(ctx context.Context, _ *protocol.Request) *protocol.Response {
	ids, err := b.store.Objects.IDs(ctx)
	if err != nil {
		return protocol.Failure("%v", err)
	}
	return protocol.Success(protocol.ObjectIDsResult{ObjIDs: ids})
}
