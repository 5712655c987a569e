// Package injector wires the server process together. The provider sets
// here feed wire's code generation; InitializeApp in wire_gen.go is the
// generated result.
package injector

import (
	"github.com/google/wire"

	"github.com/orrerysim/orrery/internal/config"
	"github.com/orrerysim/orrery/internal/core/asset"
	"github.com/orrerysim/orrery/internal/core/broker"
	"github.com/orrerysim/orrery/internal/core/events/bus"
	"github.com/orrerysim/orrery/internal/core/grid"
	"github.com/orrerysim/orrery/internal/core/observability/log"
	"github.com/orrerysim/orrery/internal/core/physics"
	"github.com/orrerysim/orrery/internal/core/protocol"
	"github.com/orrerysim/orrery/internal/core/script"
	"github.com/orrerysim/orrery/internal/core/state"
	"github.com/orrerysim/orrery/internal/server"
)

// App bundles the wired components of one server process. cmd/server owns
// their lifecycles; the injector only builds them.
type App struct {
	Config  config.Config
	Logger  *log.Logger
	Store   *state.Store
	Assets  *asset.Store
	Bus     bus.Bus
	Grids   *grid.Manager
	Broker  *broker.Broker
	Stepper *physics.Stepper
	Server  *server.Server
	Scripts *script.Runner
}

// ProvideHandler exposes the broker's dispatch entry point to components
// that consume plain handlers.
func ProvideHandler(b *broker.Broker) protocol.Handler {
	return b.Handler()
}

// CoreSet builds the simulation core: logging, stores, event bus, broker.
var CoreSet = wire.NewSet(
	log.Provide,
	wire.Bind(new(log.Log), new(*log.Logger)),
	state.New,
	asset.NewVault,
	asset.NewStore,
	bus.New,
	grid.NewManager,
	broker.New,
	ProvideHandler,
)

// ConfigSet splits the aggregated config into the per-component configs.
var ConfigSet = wire.NewSet(
	wire.FieldsOf(new(config.Config), "State", "Assets", "Physics", "Server", "Scripts"),
)
