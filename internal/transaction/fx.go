package transaction

import (
	txdomain "github.com/loyaltylabs/loyalsync/internal/transaction/domain"
	"github.com/loyaltylabs/loyalsync/internal/transaction/repository"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("transaction",
	fx.Provide(func(db *gorm.DB) txdomain.Repository {
		return repository.NewRepository(db)
	}),
)
