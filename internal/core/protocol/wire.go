package protocol

import (
	"encoding/json"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/orrerysim/orrery/internal/core/asset"
	"github.com/orrerysim/orrery/internal/core/body"
	"github.com/orrerysim/orrery/internal/core/constraint"
	"github.com/orrerysim/orrery/internal/core/parts"
	"github.com/orrerysim/orrery/internal/core/shape"
	"github.com/orrerysim/orrery/internal/core/template"
)

// Typed payloads for every command. The JSON tags are the wire vocabulary;
// integer-keyed maps travel with their keys rendered as decimal strings,
// which encoding/json does in both directions.

// PingResult answers a ping.
type PingResult struct {
	Response string `json:"response"`
}

// AddTemplatesRequest carries freshly authored templates.
type AddTemplatesRequest struct {
	Templates []template.Template `json:"data"`
}

// GetTemplatesRequest names the templates to fetch.
type GetTemplatesRequest struct {
	TemplateIDs []string `json:"templateIDs"`
}

// TemplateEntry pairs a template with the URL prefix its fragment files
// download from.
type TemplateEntry struct {
	URLFrag  string            `json:"url_frag"`
	Template template.Template `json:"template"`
}

// GetTemplatesResult maps template IDs to their records.
type GetTemplatesResult map[string]TemplateEntry

// GetTemplateIDRequest asks which template an object spawned from.
type GetTemplateIDRequest struct {
	ObjID uint64 `json:"objID"`
}

// GetTemplateIDResult carries the answer.
type GetTemplateIDResult struct {
	TemplateID string `json:"templateID"`
}

// SpawnOrder describes one object to create: a template plus overrides
// applied on top of the template's body.
type SpawnOrder struct {
	TemplateID string        `json:"templateID"`
	Body       body.Override `json:"rbs"`
}

// SpawnRequest carries the orders of one spawn call. The batch validates as
// a whole; the reply lists the IDs actually created.
type SpawnRequest struct {
	Payload []SpawnOrder `json:"payload"`
}

// RemoveRequest names the object to delete.
type RemoveRequest struct {
	ObjID uint64 `json:"objID"`
}

// ObjectIDsRequest selects objects for a query. A nil list selects every
// live object.
type ObjectIDsRequest struct {
	ObjIDs []uint64 `json:"objIDs"`
}

// ObjectIDsResult returns object IDs: the spawned ones for spawn and
// control_parts, all live ones for get_all_object_ids.
type ObjectIDsResult struct {
	ObjIDs []uint64 `json:"objIDs"`
}

// RigidBodyEntry wraps one full body state. Queries return a nil entry for
// IDs that name no live object.
type RigidBodyEntry struct {
	Body body.State `json:"rbs"`
}

// GetRigidBodiesResult maps object IDs to their body states.
type GetRigidBodiesResult struct {
	Data map[uint64]*RigidBodyEntry `json:"data"`
}

// SetRigidBodyRequest carries partial body updates per object.
type SetRigidBodyRequest struct {
	Bodies map[uint64]body.Override `json:"bodies"`
}

// BodySummary is the kinematic slice of a body state that render clients
// poll every frame.
type BodySummary struct {
	Scale           float64          `json:"scale"`
	Position        mgl64.Vec3       `json:"position"`
	Rotation        shape.Quaternion `json:"rotation"`
	LinearVelocity  mgl64.Vec3       `json:"velocityLin"`
	AngularVelocity mgl64.Vec3       `json:"velocityRot"`
	Version         uint32           `json:"version"`
}

// SummarizeBody extracts the render slice of a full body state.
func SummarizeBody(s body.State) BodySummary {
	return BodySummary{
		Scale:           s.Scale,
		Position:        s.Position,
		Rotation:        s.Rotation,
		LinearVelocity:  s.LinearVelocity,
		AngularVelocity: s.AngularVelocity,
		Version:         s.Version,
	}
}

// FragmentSummary is the placement slice of a fragment.
type FragmentSummary struct {
	Scale    float64          `json:"scale"`
	Position mgl64.Vec3       `json:"position"`
	Rotation shape.Quaternion `json:"rotation"`
}

// SummarizeFragment extracts the placement of a fragment.
func SummarizeFragment(f asset.Fragment) FragmentSummary {
	return FragmentSummary{Scale: f.Scale, Position: f.Position, Rotation: f.Rotation}
}

// ObjectState bundles what a client needs per frame for one object. Queries
// return nil for IDs that name no live object.
type ObjectState struct {
	Body      BodySummary                `json:"rbs"`
	Fragments map[string]FragmentSummary `json:"frag"`
}

// GetObjectStatesResult maps object IDs to their per-frame states.
type GetObjectStatesResult struct {
	Data map[uint64]*ObjectState `json:"data"`
}

// SetForceRequest applies a central force at an offset from the body's
// center of mass, which the broker resolves into force and torque.
type SetForceRequest struct {
	ObjID  uint64     `json:"objID"`
	Force  mgl64.Vec3 `json:"force"`
	RelPos mgl64.Vec3 `json:"rel_pos"`
}

// GetFragmentsResult maps object IDs to their fragment download references,
// keyed by fragment name. Unknown IDs map to nil.
type GetFragmentsResult map[uint64]map[string]asset.Ref

// SetFragmentsRequest maps object IDs to partial fragment updates keyed by
// fragment name. The payload is the bare map, no wrapper key.
type SetFragmentsRequest map[uint64]map[string]asset.Override

// ControlPartsRequest addresses the boosters and factories of one object.
type ControlPartsRequest struct {
	ObjID     uint64                      `json:"objID"`
	Boosters  map[string]parts.BoosterCmd `json:"cmd_boosters"`
	Factories map[string]parts.FactoryCmd `json:"cmd_factories"`
}

// ConstraintsRequest carries constraint records for add and delete calls.
type ConstraintsRequest struct {
	Constraints []constraint.Meta `json:"constraints"`
}

// ConstraintsChangedResult reports how many records an add or delete call
// touched.
type ConstraintsChangedResult struct {
	Added int `json:"added"`
}

// GetConstraintsRequest selects constraints by the bodies they attach to.
// A nil list selects every constraint.
type GetConstraintsRequest struct {
	BodyIDs []uint64 `json:"bodyIDs"`
}

// GetConstraintsResult carries the matching records.
type GetConstraintsResult struct {
	Constraints []constraint.Meta `json:"constraints"`
}

// SetCustomDataRequest maps object IDs to replacement blobs. Values stay
// raw so the broker can vet each one and reject it individually.
type SetCustomDataRequest map[uint64]json.RawMessage

// SetCustomDataResult lists the IDs whose blobs were not updated, either
// because the object does not exist or the value was rejected.
type SetCustomDataResult []uint64

// GetCustomDataResult maps object IDs to their blobs. Unknown IDs map to
// nil, live objects always carry a string, empty by default.
type GetCustomDataResult map[uint64]*string
