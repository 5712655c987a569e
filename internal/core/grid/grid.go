// Package grid provides named vector fields sampled over a regular spatial
// lattice. The stepper reads the "force" grid at each body's position and
// adds the sampled vector to the body's applied force, which gives scenes
// cheap ambient effects such as gravity wells or wind without per-body
// bookkeeping.
package grid

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// ForceGrid is the name of the grid the stepper samples every tick.
const ForceGrid = "force"

// Index addresses one cell of a grid.
type Index struct {
	X, Y, Z int
}

// Grid is a sparse vector field. Cells that were never written sample as
// the zero vector. Safe for concurrent use.
type Grid struct {
	name        string
	granularity float64

	mu    sync.RWMutex
	cells map[Index]mgl64.Vec3
}

// New creates an empty grid whose cells have the given edge length.
func New(name string, granularity float64) (*Grid, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidGrid)
	}
	if granularity <= 0 || math.IsNaN(granularity) || math.IsInf(granularity, 0) {
		return nil, fmt.Errorf("%w: granularity %v", ErrInvalidGrid, granularity)
	}
	return &Grid{
		name:        name,
		granularity: granularity,
		cells:       make(map[Index]mgl64.Vec3),
	}, nil
}

func (g *Grid) Name() string         { return g.name }
func (g *Grid) Granularity() float64 { return g.granularity }

// CellOf maps a world position to its cell index.
func (g *Grid) CellOf(pos mgl64.Vec3) Index {
	return Index{
		X: int(math.Floor(pos[0] / g.granularity)),
		Y: int(math.Floor(pos[1] / g.granularity)),
		Z: int(math.Floor(pos[2] / g.granularity)),
	}
}

// Value samples the field at a world position.
func (g *Grid) Value(pos mgl64.Vec3) mgl64.Vec3 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cells[g.CellOf(pos)]
}

// SetValue writes the cell containing a world position. Writing the zero
// vector clears the cell.
func (g *Grid) SetValue(pos mgl64.Vec3, v mgl64.Vec3) {
	g.mu.Lock()
	defer g.mu.Unlock()
	idx := g.CellOf(pos)
	if v == (mgl64.Vec3{}) {
		delete(g.cells, idx)
		return
	}
	g.cells[idx] = v
}

// Region returns the populated cells inside the inclusive index box.
func (g *Grid) Region(min, max Index) map[Index]mgl64.Vec3 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[Index]mgl64.Vec3)
	for idx, v := range g.cells {
		if idx.X < min.X || idx.X > max.X ||
			idx.Y < min.Y || idx.Y > max.Y ||
			idx.Z < min.Z || idx.Z > max.Z {
			continue
		}
		out[idx] = v
	}
	return out
}

// SetRegion writes many cells at once. Zero vectors clear their cells.
func (g *Grid) SetRegion(values map[Index]mgl64.Vec3) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for idx, v := range values {
		if v == (mgl64.Vec3{}) {
			delete(g.cells, idx)
			continue
		}
		g.cells[idx] = v
	}
}

// Len reports the number of populated cells.
func (g *Grid) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.cells)
}

// Reset clears every cell.
func (g *Grid) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cells = make(map[Index]mgl64.Vec3)
}

// Manager tracks the defined grids by name.
type Manager struct {
	mu    sync.RWMutex
	grids map[string]*Grid
}

// NewManager returns a manager with a force grid of unit granularity
// already defined.
func NewManager() *Manager {
	m := &Manager{grids: make(map[string]*Grid)}
	g, _ := New(ForceGrid, 1)
	m.grids[ForceGrid] = g
	return m
}

// Define adds a new grid. Defining an existing name fails with ErrExists.
func (m *Manager) Define(name string, granularity float64) (*Grid, error) {
	g, err := New(name, granularity)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.grids[name]; ok {
		return nil, fmt.Errorf("%w: grid %q", ErrExists, name)
	}
	m.grids[name] = g
	return g, nil
}

// Get returns a grid by name.
func (m *Manager) Get(name string) (*Grid, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.grids[name]
	if !ok {
		return nil, fmt.Errorf("%w: grid %q", ErrNotFound, name)
	}
	return g, nil
}

// Force returns the builtin force grid.
func (m *Manager) Force() *Grid {
	g, _ := m.Get(ForceGrid)
	return g
}

// Delete removes a grid. The force grid cannot be deleted, only reset.
func (m *Manager) Delete(name string) error {
	if name == ForceGrid {
		return fmt.Errorf("%w: the force grid is builtin", ErrInvalidGrid)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.grids[name]; !ok {
		return fmt.Errorf("%w: grid %q", ErrNotFound, name)
	}
	delete(m.grids, name)
	return nil
}

// ResetAll clears every grid and drops all but the builtin ones.
func (m *Manager) ResetAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, g := range m.grids {
		if name == ForceGrid {
			g.Reset()
			continue
		}
		delete(m.grids, name)
	}
}

// Names lists the defined grids in lexical order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.grids))
	for name := range m.grids {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
