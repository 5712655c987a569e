// Package state persists the simulation's records: live objects, templates,
// constraints, applied forces and the ID counter. Two backends exist, an
// in-process one for tests and single-node runs and a MongoDB one for
// deployments where state must survive the broker.
package state

import (
	"context"
	"time"

	"github.com/orrerysim/orrery/internal/core/asset"
	"github.com/orrerysim/orrery/internal/core/body"
	"github.com/orrerysim/orrery/internal/core/constraint"
	"github.com/orrerysim/orrery/internal/core/engine"
	"github.com/orrerysim/orrery/internal/core/parts"
	"github.com/orrerysim/orrery/internal/core/template"
)

// Object is one live instance. Fragments hold metadata only; the payloads
// live in the asset store.
type Object struct {
	ID         uint64                    `json:"objID"`
	TemplateID string                    `json:"templateID"`
	Body       body.State                `json:"rbs"`
	Fragments  map[string]asset.Fragment `json:"fragments"`
	Boosters   map[string]parts.Booster  `json:"boosters"`
	Factories  map[string]parts.Factory  `json:"factories"`
	Custom     string                    `json:"custom"`
}

// Clone deep-copies the record.
func (o Object) Clone() Object {
	out := o
	out.Body = o.Body.Clone()
	out.Fragments = asset.CloneSet(o.Fragments)
	if o.Boosters != nil {
		out.Boosters = make(map[string]parts.Booster, len(o.Boosters))
		for id, b := range o.Boosters {
			out.Boosters[id] = b
		}
	}
	if o.Factories != nil {
		out.Factories = make(map[string]parts.Factory, len(o.Factories))
		for id, f := range o.Factories {
			out.Factories[id] = f
		}
	}
	return out
}

// Objects stores live instance records keyed by object ID.
type Objects interface {
	// Insert adds a new record and fails with ErrExists on an ID clash.
	Insert(ctx context.Context, obj Object) error
	// Get returns one record or ErrNotFound.
	Get(ctx context.Context, id uint64) (Object, error)
	// GetMulti returns the requested records. Missing IDs map to nil so
	// callers can report them individually.
	GetMulti(ctx context.Context, ids []uint64) (map[uint64]*Object, error)
	// All returns every record.
	All(ctx context.Context) (map[uint64]Object, error)
	// IDs returns all object IDs in ascending order.
	IDs(ctx context.Context) ([]uint64, error)
	// Update replaces an existing record or fails with ErrNotFound.
	Update(ctx context.Context, obj Object) error
	// Delete removes a record and reports whether it existed.
	Delete(ctx context.Context, id uint64) (bool, error)
	Reset(ctx context.Context) error
}

// Templates stores spawnable blueprints keyed by template ID.
type Templates interface {
	// Insert adds a new template and fails with ErrExists on a name clash.
	Insert(ctx context.Context, tpl template.Template) error
	Get(ctx context.Context, id string) (template.Template, error)
	// GetMulti returns the requested templates with nil entries for
	// missing IDs.
	GetMulti(ctx context.Context, ids []string) (map[string]*template.Template, error)
	All(ctx context.Context) (map[string]template.Template, error)
	// Delete removes a template and reports whether it existed.
	Delete(ctx context.Context, id string) (bool, error)
	Reset(ctx context.Context) error
}

// Constraints stores the joints between body pairs. Records are unique by
// constraint.Key.
type Constraints interface {
	// Add inserts the given records, skipping duplicates, and returns how
	// many were added.
	Add(ctx context.Context, cons []constraint.Meta) (int, error)
	// Get returns the constraints attaching to any of the given bodies,
	// or every constraint when bodyIDs is nil.
	Get(ctx context.Context, bodyIDs []uint64) ([]constraint.Meta, error)
	// Delete removes the records matching the given constraints' keys and
	// returns how many were removed.
	Delete(ctx context.Context, cons []constraint.Meta) (int, error)
	// DropBody removes every constraint attached to the body and returns
	// how many went away.
	DropBody(ctx context.Context, bodyID uint64) (int, error)
	Reset(ctx context.Context) error
}

// Forces keeps the external forces acting on each body. Directly applied
// forces and booster-compiled forces occupy separate slots, so commanding
// one never clobbers the other. Forces persist across ticks until replaced
// or the body is removed; the stepper reads their sum.
type Forces interface {
	// SetDirect replaces the directly applied force and torque on a body.
	SetDirect(ctx context.Context, id uint64, f engine.BodyForce) error
	// SetBooster replaces the booster-generated force and torque on a body.
	SetBooster(ctx context.Context, id uint64, f engine.BodyForce) error
	// All returns the summed force and torque per body.
	All(ctx context.Context) (map[uint64]engine.BodyForce, error)
	// Delete drops both force slots of a body.
	Delete(ctx context.Context, id uint64) error
	Reset(ctx context.Context) error
}

// Counters hands out unique object IDs. The first allocated ID is 1.
type Counters interface {
	// NextIDs allocates n fresh IDs in ascending order. n must be
	// positive.
	NextIDs(ctx context.Context, n int) ([]uint64, error)
	// Current returns the last allocated ID, 0 when none was.
	Current(ctx context.Context) (uint64, error)
	Reset(ctx context.Context) error
}

// Store bundles the typed stores of one backend.
type Store struct {
	Objects     Objects
	Templates   Templates
	Constraints Constraints
	Forces      Forces
	Counters    Counters
}

// Reset flushes every store.
func (s *Store) Reset(ctx context.Context) error {
	for _, r := range []interface {
		Reset(context.Context) error
	}{s.Objects, s.Templates, s.Constraints, s.Forces, s.Counters} {
		if err := r.Reset(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Backend selects a store implementation.
type Backend string

const (
	// BackendMemory keeps all state in process memory.
	BackendMemory Backend = "memory"
	// BackendMongo persists state in MongoDB.
	BackendMongo Backend = "mongo"
)

// Config selects and parameterises the backend.
type Config struct {
	Backend  Backend       `yaml:"backend" json:"backend"`
	MongoURI string        `yaml:"mongo_uri" json:"mongo_uri"`
	Database string        `yaml:"database" json:"database"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
}

// DefaultConfig returns a memory-backed configuration.
func DefaultConfig() Config {
	return Config{
		Backend:  BackendMemory,
		MongoURI: "mongodb://localhost:27017",
		Database: "orrery",
		Timeout:  5 * time.Second,
	}
}

// New builds the store selected by the configuration.
func New(ctx context.Context, cfg Config) (*Store, error) {
	switch cfg.Backend {
	case BackendMemory, "":
		return NewMemory(), nil
	case BackendMongo:
		return NewMongo(ctx, cfg)
	default:
		return nil, ErrUnknownBackend
	}
}
