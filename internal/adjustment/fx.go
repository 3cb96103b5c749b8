package adjustment

import (
	"github.com/loyaltylabs/loyalsync/internal/adjustment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("adjustment",
	fx.Provide(service.NewLedger),
)
