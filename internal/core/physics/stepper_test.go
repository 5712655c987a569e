package physics

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/orrerysim/orrery/internal/core/body"
	"github.com/orrerysim/orrery/internal/core/engine"
	"github.com/orrerysim/orrery/internal/core/events/bus"
	"github.com/orrerysim/orrery/internal/core/grid"
	"github.com/orrerysim/orrery/internal/core/shape"
	"github.com/orrerysim/orrery/internal/core/state"
)

func newStepper(t *testing.T, store *state.Store, grids *grid.Manager, eb bus.Bus) *Stepper {
	t.Helper()
	s, err := New(DefaultConfig(), store, grids, eb, nil)
	if err != nil {
		t.Fatalf("new stepper: %v", err)
	}
	return s
}

func insertBody(t *testing.T, store *state.Store, id uint64, b body.State) {
	t.Helper()
	err := store.Objects.Insert(context.Background(), state.Object{
		ID:         id,
		TemplateID: "_templateSphere",
		Body:       b,
	})
	if err != nil {
		t.Fatalf("insert %d: %v", id, err)
	}
}

func stepVecClose(t *testing.T, got, want mgl64.Vec3, msg string) {
	t.Helper()
	if got.Sub(want).Len() > 1e-9 {
		t.Fatalf("%s: got %v, want %v", msg, got, want)
	}
}

func TestNew_Rejects(t *testing.T) {
	store := state.NewMemory()
	bad := DefaultConfig()
	bad.Interval = 0
	if _, err := New(bad, store, nil, nil, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("zero interval: %v", err)
	}
	bad = DefaultConfig()
	bad.Workers = 0
	if _, err := New(bad, store, nil, nil, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("zero workers: %v", err)
	}
	bad = DefaultConfig()
	bad.Engine = "warp-drive"
	if _, err := New(bad, store, nil, nil, nil); !errors.Is(err, engine.ErrUnknownEngine) {
		t.Fatalf("unknown engine: %v", err)
	}
}

func TestStep_IntegratesVelocity(t *testing.T) {
	store := state.NewMemory()
	b := body.Default()
	b.LinearVelocity = mgl64.Vec3{1, -2, 0}
	insertBody(t, store, 1, b)

	s := newStepper(t, store, nil, nil)
	stats, err := s.Step(context.Background(), 0.5)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if stats.Bodies != 1 || stats.Groups != 1 || stats.Generation != 1 {
		t.Fatalf("stats %+v", stats)
	}

	got, err := store.Objects.Get(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	stepVecClose(t, got.Body.Position, mgl64.Vec3{0.5, -1, 0}, "position")
	if got.Body.Version != 0 {
		t.Fatalf("stepping must not touch the version, got %d", got.Body.Version)
	}
	if s.Generation() != 1 {
		t.Fatalf("generation %d", s.Generation())
	}
}

func TestStep_AppliesStoredForce(t *testing.T) {
	store := state.NewMemory()
	insertBody(t, store, 1, body.Default())
	err := store.Forces.SetDirect(context.Background(), 1, engine.BodyForce{Force: mgl64.Vec3{2, 0, 0}})
	if err != nil {
		t.Fatal(err)
	}

	s := newStepper(t, store, nil, nil)
	if _, err := s.Step(context.Background(), 1); err != nil {
		t.Fatal(err)
	}

	got, _ := store.Objects.Get(context.Background(), 1)
	stepVecClose(t, got.Body.LinearVelocity, mgl64.Vec3{2, 0, 0}, "velocity")
	stepVecClose(t, got.Body.Position, mgl64.Vec3{2, 0, 0}, "position")
}

func TestStep_SamplesForceGrid(t *testing.T) {
	store := state.NewMemory()
	insertBody(t, store, 1, body.Default())

	grids := grid.NewManager()
	grids.Force().SetValue(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 3, 0})

	s := newStepper(t, store, grids, nil)
	if _, err := s.Step(context.Background(), 1); err != nil {
		t.Fatal(err)
	}

	got, _ := store.Objects.Get(context.Background(), 1)
	stepVecClose(t, got.Body.LinearVelocity, mgl64.Vec3{0, 3, 0}, "velocity")

	// the body has left the populated cell, the next tick adds nothing
	if _, err := s.Step(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	got, _ = store.Objects.Get(context.Background(), 1)
	stepVecClose(t, got.Body.LinearVelocity, mgl64.Vec3{0, 3, 0}, "velocity after leaving cell")
}

func TestStep_StaticBodyPinned(t *testing.T) {
	store := state.NewMemory()
	ground := body.Default()
	ground.InverseMass = 0
	ground.Shapes = shape.Set{"csplane": shape.NewStaticPlane(mgl64.Vec3{0, 1, 0}, 0)}
	ground.LinearVelocity = mgl64.Vec3{1, 1, 1}
	insertBody(t, store, 1, ground)
	err := store.Forces.SetDirect(context.Background(), 1, engine.BodyForce{Force: mgl64.Vec3{5, 5, 5}})
	if err != nil {
		t.Fatal(err)
	}

	s := newStepper(t, store, nil, nil)
	if _, err := s.Step(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	got, _ := store.Objects.Get(context.Background(), 1)
	stepVecClose(t, got.Body.Position, mgl64.Vec3{}, "static position")
}

func TestStep_GroupsClusters(t *testing.T) {
	store := state.NewMemory()
	near := body.Default()
	nearer := body.Default()
	nearer.Position = mgl64.Vec3{1, 0, 0}
	far := body.Default()
	far.Position = mgl64.Vec3{100, 0, 0}
	insertBody(t, store, 1, near)
	insertBody(t, store, 2, nearer)
	insertBody(t, store, 3, far)

	s := newStepper(t, store, nil, nil)
	stats, err := s.Step(context.Background(), 0.1)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Bodies != 3 || stats.Groups != 2 || stats.Largest != 2 {
		t.Fatalf("stats %+v", stats)
	}
}

func TestStep_PublishesEvent(t *testing.T) {
	store := state.NewMemory()
	insertBody(t, store, 1, body.Default())
	eb := bus.New()
	var got bus.StepCompleted
	_, _ = eb.SubscribeTopic(bus.TopicPhysics, bus.TypeStepCompleted, func(ev bus.Event) error {
		got = ev.Data.(bus.StepCompleted)
		return nil
	})

	s := newStepper(t, store, nil, eb)
	if _, err := s.Step(context.Background(), 0.05); err != nil {
		t.Fatal(err)
	}
	if got.Generation != 1 || got.Bodies != 1 {
		t.Fatalf("event payload %+v", got)
	}
}

func TestStep_EmptyWorld(t *testing.T) {
	s := newStepper(t, state.NewMemory(), nil, nil)
	stats, err := s.Step(context.Background(), 0.05)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Bodies != 0 || stats.Groups != 0 || stats.Largest != 0 {
		t.Fatalf("stats %+v", stats)
	}
}

func TestRun_TicksUntilCancelled(t *testing.T) {
	store := state.NewMemory()
	b := body.Default()
	b.LinearVelocity = mgl64.Vec3{1, 0, 0}
	insertBody(t, store, 1, b)

	eb := bus.New()
	ticks := make(chan bus.StepCompleted, 16)
	_, _ = eb.SubscribeTopic(bus.TopicPhysics, bus.TypeStepCompleted, func(ev bus.Event) error {
		select {
		case ticks <- ev.Data.(bus.StepCompleted):
		default:
		}
		return nil
	})

	cfg := DefaultConfig()
	cfg.Interval = 5 * time.Millisecond
	s, err := New(cfg, store, nil, eb, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-ticks:
	case <-time.After(2 * time.Second):
		t.Fatal("no tick within deadline")
	}
	if !s.Running() {
		t.Fatal("stepper should report running")
	}
	if err := s.Run(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second run: %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop")
	}
	if s.Running() {
		t.Fatal("stepper still running after cancel")
	}

	got, _ := store.Objects.Get(context.Background(), 1)
	if math.Abs(got.Body.Position.X()) < 1e-12 {
		t.Fatal("body never moved")
	}
}
