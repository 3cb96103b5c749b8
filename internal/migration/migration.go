// Package migration keeps the schema aligned with the owned gorm models.
package migration

import (
	adjustmentdomain "github.com/loyaltylabs/loyalsync/internal/adjustment/domain"
	catalogdomain "github.com/loyaltylabs/loyalsync/internal/catalog/domain"
	memberdomain "github.com/loyaltylabs/loyalsync/internal/member/domain"
	metricsdomain "github.com/loyaltylabs/loyalsync/internal/metrics/domain"
	redemptiondomain "github.com/loyaltylabs/loyalsync/internal/redemption/domain"
	txdomain "github.com/loyaltylabs/loyalsync/internal/transaction/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migration",
	fx.Invoke(Run),
)

func Run(db *gorm.DB, log *zap.Logger) error {
	log.Info("running schema migration")
	return db.AutoMigrate(
		&catalogdomain.Program{},
		&catalogdomain.Promotion{},
		&memberdomain.Member{},
		&memberdomain.Card{},
		&txdomain.Transaction{},
		&metricsdomain.MemberMetric{},
		&metricsdomain.UserPromotionStatus{},
		&adjustmentdomain.ManualAdjustment{},
		&redemptiondomain.Redemption{},
	)
}
