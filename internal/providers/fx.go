package providers

import (
	"github.com/loyaltylabs/loyalsync/internal/providers/cardnet"
	"github.com/loyaltylabs/loyalsync/internal/providers/shopfeed"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	fx.Provide(cardnet.NewClient),
	fx.Provide(shopfeed.NewClient),
)
