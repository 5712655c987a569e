//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"context"

	"github.com/google/wire"

	"github.com/orrerysim/orrery/internal/config"
	"github.com/orrerysim/orrery/internal/core/physics"
	"github.com/orrerysim/orrery/internal/core/script"
	"github.com/orrerysim/orrery/internal/server"
)

// InitializeApp assembles one server process from an aggregated config.
func InitializeApp(ctx context.Context, cfg config.Config) (*App, error) {
	wire.Build(
		CoreSet,
		ConfigSet,
		physics.New,
		server.New,
		script.NewRunner,
		wire.Struct(new(App), "*"),
	)
	return nil, nil
}
