package broker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/orrerysim/orrery/internal/core/observability/log"
	"github.com/orrerysim/orrery/internal/core/protocol"
	"github.com/orrerysim/orrery/internal/core/state"
	"github.com/orrerysim/orrery/pkg/sequence"
)

// handleSetCustomData replaces the custom blobs of the selected objects.
// Entries are vetted one by one: a value that is not a JSON string, a blob
// at or beyond the size cap, or an unknown object leaves that entry's
// stored value untouched. The reply always succeeds and lists the object
// IDs whose entries were not applied.
func (b *Broker) handleSetCustomData(ctx context.Context, req *protocol.Request) *protocol.Response {
	var in protocol.SetCustomDataRequest
	if err := req.Bind(&in); err != nil {
		return protocol.Failure("%v", err)
	}
	rejected := make(protocol.SetCustomDataResult, 0)
	for _, id := range sequence.SortedKeys(in) {
		var blob string
		if err := json.Unmarshal(in[id], &blob); err != nil {
			rejected = append(rejected, id)
			continue
		}
		if len(blob) >= maxCustomBytes {
			rejected = append(rejected, id)
			continue
		}
		obj, err := b.store.Objects.Get(ctx, id)
		if err != nil {
			if errors.Is(err, state.ErrNotFound) {
				rejected = append(rejected, id)
				continue
			}
			return protocol.Failure("%v", err)
		}
		obj.Custom = blob
		if err := b.store.Objects.Update(ctx, obj); err != nil {
			return protocol.Failure("%v", err)
		}
	}
	if len(rejected) > 0 {
		b.logger.Debug("custom data entries rejected", log.Int("count", len(rejected)))
	}
	return protocol.Success(rejected)
}

// handleGetCustomData returns the custom blobs of the selected objects.
// Unknown IDs map to null; live objects always carry a string, empty until
// the first write. A nil selection returns every object.
func (b *Broker) handleGetCustomData(ctx context.Context, req *protocol.Request) *protocol.Response {
	var in protocol.ObjectIDsRequest
	if err := req.Bind(&in); err != nil {
		return protocol.Failure("%v", err)
	}
	records, err := b.fetchObjects(ctx, in.ObjIDs)
	if err != nil {
		return protocol.Failure("%v", err)
	}
	out := make(protocol.GetCustomDataResult, len(records))
	for id, obj := range records {
		if obj == nil {
			out[id] = nil
			continue
		}
		blob := obj.Custom
		out[id] = &blob
	}
	return protocol.Success(out)
}
