package bus

import "time"

// Event is an immutable message routed by Type. Data carries one of the
// payload structs below; subscribers type-assert on it.
type Event struct {
	Type   string
	Source string
	Time   time.Time
	Data   any
}

// NewEvent stamps an event with the current time.
func NewEvent(eventType, source string, data any) Event {
	return Event{Type: eventType, Source: source, Time: time.Now(), Data: data}
}

// Topic for simulation tick traffic; lifecycle events use the default topic.
const TopicPhysics = "physics"

// Event types published by the broker and the stepper.
const (
	TypeTemplatesAdded     = "template.added"
	TypeObjectsSpawned     = "object.spawned"
	TypeObjectsRemoved     = "object.removed"
	TypeBodiesModified     = "body.modified"
	TypeFragmentsUpdated   = "fragment.updated"
	TypeConstraintsChanged = "constraint.changed"
	TypeStepCompleted      = "step.completed"
)

// TemplatesAdded reports newly registered template IDs.
type TemplatesAdded struct {
	IDs []string
}

// ObjectsSpawned reports the IDs handed out by a spawn call and the
// template each object was built from.
type ObjectsSpawned struct {
	IDs       []uint64
	Templates []string
}

// ObjectsRemoved reports deleted object IDs.
type ObjectsRemoved struct {
	IDs []uint64
}

// BodiesModified reports objects whose rigid-body state was overwritten
// outside the physics loop.
type BodiesModified struct {
	IDs []uint64
}

// FragmentsUpdated reports a geometry or meta change on one object. Version
// is the object's body version after the change.
type FragmentsUpdated struct {
	ID      uint64
	Version uint32
}

// ConstraintsChanged reports how many constraints an operation added or
// removed.
type ConstraintsChanged struct {
	Added   int
	Removed int
}

// StepCompleted summarizes one physics tick.
type StepCompleted struct {
	Generation uint64
	Bodies     int
	Groups     int
	Largest    int
	Elapsed    time.Duration
}
