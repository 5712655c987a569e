package broker

import (
	"context"
	"errors"
	"strings"

	"github.com/orrerysim/orrery/internal/core/asset"
	"github.com/orrerysim/orrery/internal/core/events/bus"
	"github.com/orrerysim/orrery/internal/core/observability/log"
	"github.com/orrerysim/orrery/internal/core/protocol"
	"github.com/orrerysim/orrery/internal/core/state"
)

// handleAddTemplates validates and stores a batch of templates. Validation
// runs over the whole batch before anything is written. The writes
// themselves are per template: a duplicate ID or a failing store leaves the
// templates written before it in place and fails the call.
func (b *Broker) handleAddTemplates(ctx context.Context, req *protocol.Request) *protocol.Response {
	var in protocol.AddTemplatesRequest
	if err := req.Bind(&in); err != nil {
		return protocol.Failure("Invalid template data")
	}
	for i := range in.Templates {
		if err := in.Templates[i].Normalize(); err != nil {
			b.logger.Debug("template rejected", log.Error(err))
			return protocol.Failure("Invalid template data")
		}
	}

	var clashes []string
	added := make([]string, 0, len(in.Templates))
	for _, tpl := range in.Templates {
		if _, err := b.assets.AddTemplate(ctx, tpl.ID, tpl.Fragments); err != nil {
			if errors.Is(err, asset.ErrExists) {
				clashes = append(clashes, tpl.ID)
				continue
			}
			return protocol.Failure("%v", err)
		}
		if err := b.store.Templates.Insert(ctx, tpl.Meta()); err != nil {
			if errors.Is(err, state.ErrExists) {
				clashes = append(clashes, tpl.ID)
				continue
			}
			return protocol.Failure("%v", err)
		}
		added = append(added, tpl.ID)
	}
	if len(added) > 0 {
		b.publish(bus.TypeTemplatesAdded, bus.TemplatesAdded{IDs: added})
	}
	if len(clashes) > 0 {
		return protocol.Failure("Template IDs not unique: %s", strings.Join(clashes, ", "))
	}
	return protocol.Success(nil)
}

// handleGetTemplates returns the requested templates with their asset URLs.
// The call fails when any requested ID is unknown.
func (b *Broker) handleGetTemplates(ctx context.Context, req *protocol.Request) *protocol.Response {
	var in protocol.GetTemplatesRequest
	if err := req.Bind(&in); err != nil {
		return protocol.Failure("%v", err)
	}
	records, err := b.store.Templates.GetMulti(ctx, in.TemplateIDs)
	if err != nil {
		return protocol.Failure("%v", err)
	}
	out := make(protocol.GetTemplatesResult, len(records))
	var missing []string
	for id, tpl := range records {
		if tpl == nil {
			missing = append(missing, id)
			continue
		}
		out[id] = protocol.TemplateEntry{
			URLFrag:  asset.TemplateURL(id),
			Template: *tpl,
		}
	}
	if len(missing) > 0 {
		return protocol.Failure("Could not find templates %s", strings.Join(missing, ", "))
	}
	return protocol.Success(out)
}

// handleGetTemplateID answers which template an object spawned from.
func (b *Broker) handleGetTemplateID(ctx context.Context, req *protocol.Request) *protocol.Response {
	var in protocol.GetTemplateIDRequest
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
	return protocol.Success(protocol.GetTemplateIDResult{TemplateID: obj.TemplateID})
}
