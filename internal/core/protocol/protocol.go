// Package protocol defines the command envelope clients and the broker
// exchange, the typed payloads of every command, and the failure vocabulary
// shared across transports. The envelope is plain JSON so the same bytes
// travel over QUIC streams and websocket frames unchanged.
package protocol

import "context"

// Command names. Every request names one of these in its "cmd" field.
const (
	CmdPing              = "ping"
	CmdAddTemplates      = "add_templates"
	CmdGetTemplates      = "get_templates"
	CmdGetTemplateID     = "get_template_id"
	CmdSpawn             = "spawn"
	CmdRemove            = "remove"
	CmdGetAllObjectIDs   = "get_all_object_ids"
	CmdGetRigidBodies    = "get_rigid_bodies"
	CmdSetRigidBody      = "set_rigid_body"
	CmdGetObjectStates   = "get_object_states"
	CmdSetForce          = "set_force"
	CmdGetFragments      = "get_fragments"
	CmdSetFragments      = "set_fragments"
	CmdControlParts      = "control_parts"
	CmdAddConstraints    = "add_constraints"
	CmdGetConstraints    = "get_constraints"
	CmdDeleteConstraints = "delete_constraints"
	CmdSetCustomData     = "set_custom_data"
	CmdGetCustomData     = "get_custom_data"
)

// Canonical dispatch failure messages. Clients match on these strings, so
// every transport reports the same ones.
const (
	MsgDecodeError   = "JSON decoding error"
	MsgInvalidFormat = "Invalid command format"
)

// InvalidCommand is the reply for a command name no handler claims.
func InvalidCommand(cmd string) *Response {
	return Failure("Invalid command <%s>", cmd)
}

// Handler processes one decoded request and produces the reply. The
// transport owns both messages: the handler must not retain them past the
// call, they return to their pools afterwards.
type Handler func(ctx context.Context, req *Request) *Response

// Middleware wraps a handler with cross-cutting behavior.
type Middleware func(Handler) Handler

// Chain applies middlewares to h so the first listed runs outermost.
func Chain(h Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
