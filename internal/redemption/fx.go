package redemption

import (
	redemptiondomain "github.com/loyaltylabs/loyalsync/internal/redemption/domain"
	"github.com/loyaltylabs/loyalsync/internal/redemption/repository"
	"github.com/loyaltylabs/loyalsync/internal/redemption/service"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("redemption",
	fx.Provide(func(db *gorm.DB) redemptiondomain.Repository {
		return repository.NewRepository(db)
	}),
	fx.Provide(service.NewReconciler),
)
