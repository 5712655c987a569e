package broker

import (
	"context"
	"fmt"

	"github.com/orrerysim/orrery/internal/core/asset"
	"github.com/orrerysim/orrery/internal/core/events/bus"
	"github.com/orrerysim/orrery/internal/core/observability/log"
	"github.com/orrerysim/orrery/internal/core/protocol"
	"github.com/orrerysim/orrery/internal/core/shape"
	"github.com/orrerysim/orrery/pkg/sequence"
)

// handleGetFragments returns download references for the fragments of the
// selected objects. Unknown IDs map to null. A nil selection returns every
// object.
func (b *Broker) handleGetFragments(ctx context.Context, req *protocol.Request) *protocol.Response {
	var in protocol.ObjectIDsRequest
	if err := req.Bind(&in); err != nil {
		return protocol.Failure("%v", err)
	}
	records, err := b.fetchObjects(ctx, in.ObjIDs)
	if err != nil {
		return protocol.Failure("%v", err)
	}
	out := make(protocol.GetFragmentsResult, len(records))
	for id, obj := range records {
		if obj == nil {
			out[id] = nil
			continue
		}
		base := asset.InstanceURL(id)
		refs := make(map[string]asset.Ref, len(obj.Fragments))
		for name, f := range obj.Fragments {
			refs[name] = f.Ref(base, name)
		}
		out[id] = refs
	}
	return protocol.Success(out)
}

// handleSetFragments applies fragment updates per object. Each object is
// all or nothing: when any of its fragment commands is invalid, none of
// them applies. Objects are otherwise independent, so a batch naming an
// unknown object still updates the others and then reports failure. Only
// updates that replace or remove geometry reach the asset store and bump
// the object's version; placement changes touch just the object record.
func (b *Broker) handleSetFragments(ctx context.Context, req *protocol.Request) *protocol.Response {
	var in protocol.SetFragmentsRequest
	if err := req.Bind(&in); err != nil {
		return protocol.Failure("%v", err)
	}
	ok := true
	for _, objID := range sequence.SortedKeys(in) {
		version, applied, err := b.applyFragmentUpdates(ctx, objID, in[objID])
		if err != nil {
			b.logger.Debug("fragment update rejected",
				log.Uint64("objID", objID), log.Error(err))
			ok = false
			continue
		}
		if applied {
			b.publish(bus.TypeFragmentsUpdated, bus.FragmentsUpdated{ID: objID, Version: version})
		}
	}
	if !ok {
		return protocol.Failure("Could not update all fragments")
	}
	return protocol.Success(nil)
}

// applyFragmentUpdates runs one object's fragment commands against a copy
// of its record and commits only if every command applies cleanly. It
// reports the object's body version after the commit and whether the
// record changed.
func (b *Broker) applyFragmentUpdates(ctx context.Context, objID uint64, cmds map[string]asset.Override) (uint32, bool, error) {
	if len(cmds) == 0 {
		return 0, false, nil
	}
	obj, err := b.store.Objects.Get(ctx, objID)
	if err != nil {
		return 0, false, err
	}
	frags := asset.CloneSet(obj.Fragments)
	// Geometry-bearing changes, destined for the asset store. Placement
	// only commands must never appear here or they would wipe the stored
	// payload.
	geometry := make(map[string]asset.Fragment, len(cmds))
	for name, cmd := range cmds {
		if cmd.Type != nil {
			typ, err := asset.ParseFragType(string(*cmd.Type))
			if err != nil {
				return 0, false, err
			}
			cmd.Type = &typ
		}
		if cmd.Remove() {
			if _, exists := frags[name]; !exists {
				return 0, false, fmt.Errorf("%w: fragment %q", asset.ErrNotFound, name)
			}
			delete(frags, name)
			geometry[name] = asset.Fragment{Type: asset.None}
			continue
		}
		f, exists := frags[name]
		if !exists {
			if cmd.Type == nil || len(cmd.Data) == 0 {
				return 0, false, fmt.Errorf("%w: fragment %q", asset.ErrNotFound, name)
			}
			f = asset.Fragment{Type: *cmd.Type, Scale: 1, Rotation: shape.QuatIdent}
		}
		changed, err := cmd.Apply(&f)
		if err != nil {
			return 0, false, err
		}
		if changed {
			geometry[name] = f
		}
		frags[name] = f
	}
	if len(geometry) > 0 {
		if err := b.assets.UpdateFragments(ctx, objID, geometry); err != nil {
			return 0, false, err
		}
		obj.Body.Version++
	}
	obj.Fragments = asset.MetaSet(frags)
	if err := b.store.Objects.Update(ctx, obj); err != nil {
		return 0, false, err
	}
	return obj.Body.Version, true, nil
}
