package state

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/orrerysim/orrery/internal/core/constraint"
	"github.com/orrerysim/orrery/internal/core/engine"
	"github.com/orrerysim/orrery/internal/core/template"
)

// NewMemory returns a store keeping all records in process memory.
func NewMemory() *Store {
	return &Store{
		Objects:     &memObjects{records: make(map[uint64]Object)},
		Templates:   &memTemplates{records: make(map[string]template.Template)},
		Constraints: &memConstraints{records: make(map[constraint.Key]constraint.Meta)},
		Forces:      &memForces{records: make(map[uint64]forceSlots)},
		Counters:    &memCounters{},
	}
}

type memObjects struct {
	mu      sync.RWMutex
	records map[uint64]Object
}

func (m *memObjects) Insert(_ context.Context, obj Object) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[obj.ID]; ok {
		return fmt.Errorf("%w: object %d", ErrExists, obj.ID)
	}
	m.records[obj.ID] = obj.Clone()
	return nil
}

func (m *memObjects) Get(_ context.Context, id uint64) (Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.records[id]
	if !ok {
		return Object{}, fmt.Errorf("%w: object %d", ErrNotFound, id)
	}
	return obj.Clone(), nil
}

func (m *memObjects) GetMulti(_ context.Context, ids []uint64) (map[uint64]*Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[uint64]*Object, len(ids))
	for _, id := range ids {
		if obj, ok := m.records[id]; ok {
			clone := obj.Clone()
			out[id] = &clone
		} else {
			out[id] = nil
		}
	}
	return out, nil
}

func (m *memObjects) All(_ context.Context) (map[uint64]Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[uint64]Object, len(m.records))
	for id, obj := range m.records {
		out[id] = obj.Clone()
	}
	return out, nil
}

func (m *memObjects) IDs(_ context.Context) ([]uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]uint64, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *memObjects) Update(_ context.Context, obj Object) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[obj.ID]; !ok {
		return fmt.Errorf("%w: object %d", ErrNotFound, obj.ID)
	}
	m.records[obj.ID] = obj.Clone()
	return nil
}

func (m *memObjects) Delete(_ context.Context, id uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[id]
	delete(m.records, id)
	return ok, nil
}

func (m *memObjects) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[uint64]Object)
	return nil
}

type memTemplates struct {
	mu      sync.RWMutex
	records map[string]template.Template
}

func (m *memTemplates) Insert(_ context.Context, tpl template.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[tpl.ID]; ok {
		return fmt.Errorf("%w: template %q", ErrExists, tpl.ID)
	}
	m.records[tpl.ID] = tpl.Clone()
	return nil
}

func (m *memTemplates) Get(_ context.Context, id string) (template.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tpl, ok := m.records[id]
	if !ok {
		return template.Template{}, fmt.Errorf("%w: template %q", ErrNotFound, id)
	}
	return tpl.Clone(), nil
}

func (m *memTemplates) GetMulti(_ context.Context, ids []string) (map[string]*template.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*template.Template, len(ids))
	for _, id := range ids {
		if tpl, ok := m.records[id]; ok {
			clone := tpl.Clone()
			out[id] = &clone
		} else {
			out[id] = nil
		}
	}
	return out, nil
}

func (m *memTemplates) All(_ context.Context) (map[string]template.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]template.Template, len(m.records))
	for id, tpl := range m.records {
		out[id] = tpl.Clone()
	}
	return out, nil
}

func (m *memTemplates) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[id]
	delete(m.records, id)
	return ok, nil
}

func (m *memTemplates) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]template.Template)
	return nil
}

type memConstraints struct {
	mu      sync.RWMutex
	records map[constraint.Key]constraint.Meta
}

func (m *memConstraints) Add(_ context.Context, cons []constraint.Meta) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	added := 0
	for _, c := range cons {
		key := c.Key()
		if _, ok := m.records[key]; ok {
			continue
		}
		m.records[key] = c
		added++
	}
	return added, nil
}

func (m *memConstraints) Get(_ context.Context, bodyIDs []uint64) ([]constraint.Meta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []constraint.Meta
	for _, c := range m.records {
		if bodyIDs == nil {
			out = append(out, c)
			continue
		}
		for _, id := range bodyIDs {
			if c.Involves(id) {
				out = append(out, c)
				break
			}
		}
	}
	sortConstraints(out)
	return out, nil
}

func (m *memConstraints) Delete(_ context.Context, cons []constraint.Meta) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for _, c := range cons {
		key := c.Key()
		if _, ok := m.records[key]; ok {
			delete(m.records, key)
			removed++
		}
	}
	return removed, nil
}

func (m *memConstraints) DropBody(_ context.Context, bodyID uint64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key, c := range m.records {
		if c.Involves(bodyID) {
			delete(m.records, key)
			removed++
		}
	}
	return removed, nil
}

func (m *memConstraints) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[constraint.Key]constraint.Meta)
	return nil
}

// sortConstraints orders records by body pair, then type and tag, so query
// results are stable across backends.
func sortConstraints(cons []constraint.Meta) {
	sort.Slice(cons, func(i, j int) bool {
		a, b := cons[i], cons[j]
		if a.RigidA != b.RigidA {
			return a.RigidA < b.RigidA
		}
		if a.RigidB != b.RigidB {
			return a.RigidB < b.RigidB
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.Tag < b.Tag
	})
}

// forceSlots separates directly applied forces from booster output.
type forceSlots struct {
	direct  engine.BodyForce
	booster engine.BodyForce
}

func (s forceSlots) sum() engine.BodyForce {
	return engine.BodyForce{
		Force:  s.direct.Force.Add(s.booster.Force),
		Torque: s.direct.Torque.Add(s.booster.Torque),
	}
}

type memForces struct {
	mu      sync.RWMutex
	records map[uint64]forceSlots
}

func (m *memForces) SetDirect(_ context.Context, id uint64, f engine.BodyForce) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.records[id]
	rec.direct = f
	m.records[id] = rec
	return nil
}

func (m *memForces) SetBooster(_ context.Context, id uint64, f engine.BodyForce) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.records[id]
	rec.booster = f
	m.records[id] = rec
	return nil
}

func (m *memForces) All(_ context.Context) (map[uint64]engine.BodyForce, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[uint64]engine.BodyForce, len(m.records))
	for id, rec := range m.records {
		out[id] = rec.sum()
	}
	return out, nil
}

func (m *memForces) Delete(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

func (m *memForces) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[uint64]forceSlots)
	return nil
}

type memCounters struct {
	mu   sync.Mutex
	last uint64
}

func (m *memCounters) NextIDs(_ context.Context, n int) ([]uint64, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCount, n)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]uint64, n)
	for i := range ids {
		m.last++
		ids[i] = m.last
	}
	return ids, nil
}

func (m *memCounters) Current(_ context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, nil
}

func (m *memCounters) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = 0
	return nil
}
