package repository

import (
	"context"

	redemptiondomain "github.com/loyaltylabs/loyalsync/internal/redemption/domain"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) redemptiondomain.Repository {
	return &repository{db: db}
}

func (r *repository) TotalForMember(ctx context.Context, memberExternalID string) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.db.WithContext(ctx).
		Model(&redemptiondomain.Redemption{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("member_id = ?", memberExternalID).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

func (r *repository) ListUnlinked(ctx context.Context, limit, offset int) ([]redemptiondomain.Redemption, error) {
	var rows []redemptiondomain.Redemption
	err := r.db.WithContext(ctx).
		Where("member_numeric_id IS NULL OR program_id = '' OR program_id IS NULL").
		Order("created ASC, id ASC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	return rows, err
}

func (r *repository) Save(ctx context.Context, rec *redemptiondomain.Redemption) error {
	return r.db.WithContext(ctx).Save(rec).Error
}
