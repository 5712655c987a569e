package physics

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/orrerysim/orrery/internal/core/body"
	"github.com/orrerysim/orrery/internal/core/engine"
	"github.com/orrerysim/orrery/internal/core/events/bus"
	"github.com/orrerysim/orrery/internal/core/grid"
	"github.com/orrerysim/orrery/internal/core/observability/log"
	"github.com/orrerysim/orrery/internal/core/state"
	"github.com/orrerysim/orrery/pkg/concurrent"
	"github.com/orrerysim/orrery/pkg/sequence"
)

// Config controls the step loop.
type Config struct {
	// Engine names the registered backend that integrates the bodies.
	Engine string `yaml:"engine" json:"engine"`
	// Interval is the tick period of Run and the simulated time per tick.
	Interval time.Duration `yaml:"interval" json:"interval"`
	// SubSteps bounds backend sub-stepping within one tick.
	SubSteps int `yaml:"substeps" json:"substeps"`
	// Workers bounds how many work packages integrate in parallel.
	Workers int `yaml:"workers" json:"workers"`
}

// DefaultConfig runs the pure-Go backend at 20 ticks per second.
func DefaultConfig() Config {
	return Config{
		Engine:   engine.KinematicName,
		Interval: 50 * time.Millisecond,
		SubSteps: 10,
		Workers:  4,
	}
}

func (c Config) Validate() error {
	if c.Engine == "" {
		return fmt.Errorf("%w: empty engine name", ErrInvalidConfig)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval %v", ErrInvalidConfig, c.Interval)
	}
	if c.SubSteps <= 0 {
		return fmt.Errorf("%w: substeps %d", ErrInvalidConfig, c.SubSteps)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers %d", ErrInvalidConfig, c.Workers)
	}
	return nil
}

// Stepper drives the simulation. Each tick it collects the stored forces,
// samples the force grid at every body position, partitions the bodies into
// collision groups and advances each group through the engine.
type Stepper struct {
	cfg   Config
	eng   engine.Engine
	store *state.Store
	grids *grid.Manager
	bus   bus.Bus
	log   log.Log

	running    atomic.Bool
	generation atomic.Uint64
}

// New resolves the configured engine backend and wires the loop. The event
// bus may be nil when nobody listens.
func New(cfg Config, store *state.Store, grids *grid.Manager, eventBus bus.Bus, logger log.Log) (*Stepper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	eng, err := engine.Create(cfg.Engine)
	if err != nil {
		return nil, err
	}
	if grids == nil {
		grids = grid.NewManager()
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Stepper{
		cfg:   cfg,
		eng:   eng,
		store: store,
		grids: grids,
		bus:   eventBus,
		log:   logger.With(log.String("component", "stepper")),
	}, nil
}

// Engine exposes the resolved backend, e.g. for compiling shapes.
func (s *Stepper) Engine() engine.Engine { return s.eng }

// Generation returns the number of committed steps.
func (s *Stepper) Generation() uint64 { return s.generation.Load() }

// Running reports whether the loop is live.
func (s *Stepper) Running() bool { return s.running.Load() }

// Run ticks the loop every Interval until the context is cancelled. The dt
// fed to the engine is the configured interval, not the wall clock, so a
// delayed tick does not stretch simulated time.
func (s *Stepper) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	s.log.Info("stepper started",
		log.String("engine", s.eng.Name()),
		log.Duration("interval", s.cfg.Interval),
		log.Int("workers", s.cfg.Workers))

	dt := s.cfg.Interval.Seconds()
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("stepper stopped", log.Uint64("generation", s.generation.Load()))
			return nil
		case <-ticker.C:
			if _, err := s.Step(ctx, dt); err != nil {
				if ctx.Err() != nil {
					continue
				}
				s.log.Error("step failed", log.Error(err))
			}
		}
	}
}

// Step advances the world by dt seconds and reports what happened.
func (s *Stepper) Step(ctx context.Context, dt float64) (bus.StepCompleted, error) {
	start := time.Now()

	objects, err := s.store.Objects.All(ctx)
	if err != nil {
		return bus.StepCompleted{}, err
	}
	stored, err := s.store.Forces.All(ctx)
	if err != nil {
		return bus.StepCompleted{}, err
	}

	states := make(map[uint64]*body.State, len(objects))
	for id, obj := range objects {
		states[id] = &obj.Body
	}

	forceGrid := s.grids.Force()
	forces := make(map[uint64]engine.BodyForce, len(states))
	for id, st := range states {
		f := stored[id]
		f.Force = f.Force.Add(forceGrid.Value(st.Position))
		forces[id] = f
	}

	sets := CollisionSets(states)
	packages := Packages(sets)

	err = concurrent.ConcurrentLimit(sequence.From(packages), s.cfg.Workers, func(pkg WorkPackage) error {
		group := make(map[uint64]*body.State, len(pkg.Bodies))
		groupForces := make(map[uint64]engine.BodyForce, len(pkg.Bodies))
		for _, id := range pkg.Bodies {
			group[id] = states[id]
			groupForces[id] = forces[id]
		}
		return s.eng.Step(dt, s.cfg.SubSteps, group, groupForces)
	})
	if err != nil {
		return bus.StepCompleted{}, err
	}

	for id, st := range states {
		obj := objects[id]
		obj.Body = *st
		if err := s.store.Objects.Update(ctx, obj); err != nil {
			// removed while the step was in flight
			if errors.Is(err, state.ErrNotFound) {
				continue
			}
			return bus.StepCompleted{}, err
		}
	}

	largest := 0
	if len(packages) > 0 {
		largest = len(packages[0].Bodies)
	}
	stats := bus.StepCompleted{
		Generation: s.generation.Add(1),
		Bodies:     len(states),
		Groups:     len(sets),
		Largest:    largest,
		Elapsed:    time.Since(start),
	}
	s.log.Debug("step committed",
		log.Uint64("generation", stats.Generation),
		log.Int("bodies", stats.Bodies),
		log.Int("groups", stats.Groups),
		log.Duration("elapsed", stats.Elapsed))
	if s.bus != nil {
		if err := s.bus.PublishToTopic(bus.TopicPhysics, bus.NewEvent(bus.TypeStepCompleted, "stepper", stats)); err != nil {
			s.log.Warn("step event delivery failed", log.Error(err))
		}
	}
	return stats, nil
}
