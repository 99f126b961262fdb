package merchant

import (
	"github.com/smallbiznis/paygate/internal/merchant/repository"
	"github.com/smallbiznis/paygate/internal/merchant/service"
	"go.uber.org/fx"
)

var Module = fx.Module("merchant.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
