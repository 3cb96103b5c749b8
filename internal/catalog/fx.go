package catalog

import (
	"github.com/loyaltylabs/loyalsync/internal/catalog/service"
	"go.uber.org/fx"
)

var Module = fx.Module("catalog",
	fx.Provide(service.NewRefresher),
)
