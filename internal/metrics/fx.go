package metrics

import (
	"github.com/loyaltylabs/loyalsync/internal/metrics/service"
	"go.uber.org/fx"
)

var Module = fx.Module("metrics",
	fx.Provide(service.NewCollectors),
	fx.Provide(service.NewService),
)
