// Package broker executes the command API of the simulation. It owns every
// operation a client can invoke: template management, spawning and removing
// objects, body and fragment updates, part control, constraints and custom
// data. The broker holds no simulation state of its own; everything lives in
// the state store and the asset store, so any number of transport frontends
// can share one broker and the stepper sees every change immediately.
package broker

import (
	"context"
	"errors"

	"github.com/orrerysim/orrery/internal/core/asset"
	"github.com/orrerysim/orrery/internal/core/events/bus"
	"github.com/orrerysim/orrery/internal/core/observability/log"
	"github.com/orrerysim/orrery/internal/core/protocol"
	"github.com/orrerysim/orrery/internal/core/state"
	"github.com/orrerysim/orrery/internal/core/template"
)

// Reply to a ping.
const pingResponse = "pong broker"

// Custom data blobs above this size are rejected.
const maxCustomBytes = 1 << 16

// Broker executes commands against the stores and publishes lifecycle
// events. All methods are safe for concurrent use; consistency across
// records is per object, not per call.
type Broker struct {
	store  *state.Store
	assets *asset.Store
	bus    bus.Bus
	logger log.Log
	routes map[string]protocol.Handler
}

// New wires a broker to its stores. The bus may be nil when nobody listens.
func New(store *state.Store, assets *asset.Store, eventBus bus.Bus, logger log.Log) *Broker {
	if logger == nil {
		logger = log.Provide()
	}
	b := &Broker{
		store:  store,
		assets: assets,
		bus:    eventBus,
		logger: logger.With(log.String("component", "broker")),
	}
	b.routes = map[string]protocol.Handler{
		protocol.CmdPing:              b.handlePing,
		protocol.CmdAddTemplates:      b.handleAddTemplates,
		protocol.CmdGetTemplates:      b.handleGetTemplates,
		protocol.CmdGetTemplateID:     b.handleGetTemplateID,
		protocol.CmdSpawn:             b.handleSpawn,
		protocol.CmdRemove:            b.handleRemove,
		protocol.CmdGetAllObjectIDs:   b.handleGetAllObjectIDs,
		protocol.CmdGetRigidBodies:    b.handleGetRigidBodies,
		protocol.CmdSetRigidBody:      b.handleSetRigidBody,
		protocol.CmdGetObjectStates:   b.handleGetObjectStates,
		protocol.CmdSetForce:          b.handleSetForce,
		protocol.CmdGetFragments:      b.handleGetFragments,
		protocol.CmdSetFragments:      b.handleSetFragments,
		protocol.CmdControlParts:      b.handleControlParts,
		protocol.CmdAddConstraints:    b.handleAddConstraints,
		protocol.CmdGetConstraints:    b.handleGetConstraints,
		protocol.CmdDeleteConstraints: b.handleDeleteConstraints,
		protocol.CmdSetCustomData:     b.handleSetCustomData,
		protocol.CmdGetCustomData:     b.handleGetCustomData,
	}
	return b
}

// Handler returns the dispatch function transports feed decoded requests
// into. Requests without a command or payload are rejected before routing;
// an empty JSON value as payload is valid, only the absent key is not.
func (b *Broker) Handler() protocol.Handler {
	return func(ctx context.Context, req *protocol.Request) *protocol.Response {
		if req.Cmd == "" || len(req.Data) == 0 {
			return protocol.Failure(protocol.MsgInvalidFormat)
		}
		h, ok := b.routes[req.Cmd]
		if !ok {
			return protocol.InvalidCommand(req.Cmd)
		}
		return h(ctx, req)
	}
}

// InstallDefaults stores the builtin templates. Templates that survived in
// a persistent backend from an earlier run are left untouched, so the call
// is safe on every startup.
func (b *Broker) InstallDefaults(ctx context.Context) error {
	installed := 0
	for _, tpl := range template.Defaults() {
		if err := tpl.Normalize(); err != nil {
			return err
		}
		if _, err := b.assets.AddTemplate(ctx, tpl.ID, tpl.Fragments); err != nil {
			if errors.Is(err, asset.ErrExists) {
				continue
			}
			return err
		}
		if err := b.store.Templates.Insert(ctx, tpl.Meta()); err != nil {
			if errors.Is(err, state.ErrExists) {
				continue
			}
			return err
		}
		installed++
	}
	b.logger.Info("default templates installed", log.Int("count", installed))
	return nil
}

func (b *Broker) handlePing(context.Context, *protocol.Request) *protocol.Response {
	return protocol.Success(protocol.PingResult{Response: pingResponse})
}

// publish emits a lifecycle event on the default topic.
func (b *Broker) publish(eventType string, data any) {
	if b.bus == nil {
		return
	}
	if err := b.bus.Publish(bus.NewEvent(eventType, "broker", data)); err != nil {
		b.logger.Warn("event delivery failed",
			log.String("event", eventType), log.Error(err))
	}
}
