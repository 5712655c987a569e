package broker

import (
	"context"

	"github.com/orrerysim/orrery/internal/core/constraint"
	"github.com/orrerysim/orrery/internal/core/events/bus"
	"github.com/orrerysim/orrery/internal/core/protocol"
)

// handleAddConstraints stores new constraint records. The batch is
// validated as a whole; records whose identity is already present are
// skipped, and the reply counts the records actually added.
func (b *Broker) handleAddConstraints(ctx context.Context, req *protocol.Request) *protocol.Response {
	var in protocol.ConstraintsRequest
	if err := req.Bind(&in); err != nil {
		return protocol.Failure("%v", err)
	}
	for _, c := range in.Constraints {
		if err := c.Validate(); err != nil {
			return protocol.Failure("%v", err)
		}
	}
	added, err := b.store.Constraints.Add(ctx, in.Constraints)
	if err != nil {
		return protocol.Failure("%v", err)
	}
	if added > 0 {
		b.publish(bus.TypeConstraintsChanged, bus.ConstraintsChanged{Added: added})
	}
	return protocol.Success(protocol.ConstraintsChangedResult{Added: added})
}

// handleGetConstraints returns the constraints attaching to any of the
// selected bodies, or every constraint when no bodies are named.
func (b *Broker) handleGetConstraints(ctx context.Context, req *protocol.Request) *protocol.Response {
	var in protocol.GetConstraintsRequest
	if err := req.Bind(&in); err != nil {
		return protocol.Failure("%v", err)
	}
	cons, err := b.store.Constraints.Get(ctx, in.BodyIDs)
	if err != nil {
		return protocol.Failure("%v", err)
	}
	if cons == nil {
		cons = []constraint.Meta{}
	}
	return protocol.Success(protocol.GetConstraintsResult{Constraints: cons})
}

// handleDeleteConstraints removes the records matching the given
// constraints' identities and counts the removals.
func (b *Broker) handleDeleteConstraints(ctx context.Context, req *protocol.Request) *protocol.Response {
	var in protocol.ConstraintsRequest
	if err := req.Bind(&in); err != nil {
		return protocol.Failure("%v", err)
	}
	removed, err := b.store.Constraints.Delete(ctx, in.Constraints)
	if err != nil {
		return protocol.Failure("%v", err)
	}
	if removed > 0 {
		b.publish(bus.TypeConstraintsChanged, bus.ConstraintsChanged{Removed: removed})
	}
	return protocol.Success(protocol.ConstraintsChangedResult{Added: removed})
}
