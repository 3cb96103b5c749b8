package member

import (
	memberdomain "github.com/loyaltylabs/loyalsync/internal/member/domain"
	"github.com/loyaltylabs/loyalsync/internal/member/repository"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("member",
	fx.Provide(func(db *gorm.DB) memberdomain.Repository {
		return repository.NewRepository(db)
	}),
)
