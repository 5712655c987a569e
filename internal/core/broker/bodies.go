package broker

import (
	"context"
	"errors"

	"github.com/orrerysim/orrery/internal/core/events/bus"
	"github.com/orrerysim/orrery/internal/core/observability/log"
	"github.com/orrerysim/orrery/internal/core/protocol"
	"github.com/orrerysim/orrery/internal/core/state"
	"github.com/orrerysim/orrery/pkg/sequence"
)

// handleGetRigidBodies returns the full body state of the selected objects.
// IDs that name no live object map to null so callers can tell them apart
// without failing the whole query. A nil selection returns every object.
func (b *Broker) handleGetRigidBodies(ctx context.Context, req *protocol.Request) *protocol.Response {
	var in protocol.ObjectIDsRequest
	if err := req.Bind(&in); err != nil {
		return protocol.Failure("%v", err)
	}
	records, err := b.fetchObjects(ctx, in.ObjIDs)
	if err != nil {
		return protocol.Failure("%v", err)
	}
	data := make(map[uint64]*protocol.RigidBodyEntry, len(records))
	for id, obj := range records {
		if obj == nil {
			data[id] = nil
			continue
		}
		data[id] = &protocol.RigidBodyEntry{Body: obj.Body}
	}
	return protocol.Success(protocol.GetRigidBodiesResult{Data: data})
}

// handleSetRigidBody applies partial body updates. The whole batch is
// validated up front; after that each object updates independently, and IDs
// that name no live object are skipped without failing the call.
func (b *Broker) handleSetRigidBody(ctx context.Context, req *protocol.Request) *protocol.Response {
	var in protocol.SetRigidBodyRequest
	if err := req.Bind(&in); err != nil {
		return protocol.Failure("%v", err)
	}
	ids := sequence.SortedKeys(in.Bodies)
	for _, id := range ids {
		if err := in.Bodies[id].Validate(); err != nil {
			return protocol.Failure("%v", err)
		}
	}
	updated := make([]uint64, 0, len(ids))
	var skipped []uint64
	for _, id := range ids {
		obj, err := b.store.Objects.Get(ctx, id)
		if err != nil {
			if errors.Is(err, state.ErrNotFound) {
				skipped = append(skipped, id)
				continue
			}
			return protocol.Failure("%v", err)
		}
		in.Bodies[id].Apply(&obj.Body)
		if err := b.store.Objects.Update(ctx, obj); err != nil {
			return protocol.Failure("%v", err)
		}
		updated = append(updated, id)
	}
	if len(updated) > 0 {
		b.publish(bus.TypeBodiesModified, bus.BodiesModified{IDs: updated})
	}
	if len(skipped) > 0 {
		b.logger.Debug("body updates skipped for unknown objects",
			log.Int("count", len(skipped)))
	}
	return protocol.Success(nil)
}

// handleGetObjectStates returns the per-frame render slice of the selected
// objects: the kinematic body summary plus fragment placements. A nil
// selection returns every object; unknown IDs map to null.
func (b *Broker) handleGetObjectStates(ctx context.Context, req *protocol.Request) *protocol.Response {
	var in protocol.ObjectIDsRequest
	if err := req.Bind(&in); err != nil {
		return protocol.Failure("%v", err)
	}
	records, err := b.fetchObjects(ctx, in.ObjIDs)
	if err != nil {
		return protocol.Failure("%v", err)
	}
	data := make(map[uint64]*protocol.ObjectState, len(records))
	for id, obj := range records {
		if obj == nil {
			data[id] = nil
			continue
		}
		frags := make(map[string]protocol.FragmentSummary, len(obj.Fragments))
		for name, f := range obj.Fragments {
			frags[name] = protocol.SummarizeFragment(f)
		}
		data[id] = &protocol.ObjectState{
			Body:      protocol.SummarizeBody(obj.Body),
			Fragments: frags,
		}
	}
	return protocol.Success(protocol.GetObjectStatesResult{Data: data})
}

// fetchObjects resolves an ID selection into object records, with nil
// entries for unknown IDs. A nil selection fetches everything.
func (b *Broker) fetchObjects(ctx context.Context, ids []uint64) (map[uint64]*state.Object, error) {
	if ids == nil {
		all, err := b.store.Objects.All(ctx)
		if err != nil {
			return nil, err
		}
		out := make(map[uint64]*state.Object, len(all))
		for id := range all {
			obj := all[id]
			out[id] = &obj
		}
		return out, nil
	}
	return b.store.Objects.GetMulti(ctx, ids)
}
