package acquirer

import (
	"github.com/smallbiznis/paygate/internal/acquirer/simulator"
	"github.com/smallbiznis/paygate/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("acquirer",
	fx.Provide(config.NewSimulatorSettingsHolder),
	fx.Provide(simulator.NewEngine),
	fx.Provide(simulator.NewHandler),
	fx.Provide(DefaultRegistry),
	fx.Provide(NewClient),
)
