package engine

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds an engine instance.
type Factory func() (Engine, error)

// Registry maps backend names to factories. Backends register themselves at
// init time; the native backend only does so when it is compiled in.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

func (r *Registry) Create(name string) (Engine, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, name)
	}
	return factory()
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the registry used by the package-level functions.
var DefaultRegistry = NewRegistry()

func Register(name string, factory Factory) {
	DefaultRegistry.Register(name, factory)
}

func Create(name string) (Engine, error) {
	return DefaultRegistry.Create(name)
}

func Names() []string {
	return DefaultRegistry.Names()
}
