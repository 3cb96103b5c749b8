package repository

import (
	"context"

	metricsdomain "github.com/loyaltylabs/loyalsync/internal/metrics/domain"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetValue reads one persisted metric value by its composite key. The second
// return is false when the row does not exist yet.
func (r *Repository) GetValue(ctx context.Context, memberID int64, t metricsdomain.MetricType) (decimal.Decimal, bool, error) {
	var row metricsdomain.MemberMetric
	err := r.db.WithContext(ctx).
		Where("unique_member_metric_id = ?", metricsdomain.MetricKey(memberID, t)).
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, err
	}
	return row.Value, true, nil
}

func (r *Repository) ListForMember(ctx context.Context, memberID int64) ([]metricsdomain.MemberMetric, error) {
	var rows []metricsdomain.MemberMetric
	err := r.db.WithContext(ctx).
		Where("member_numeric_id = ?", memberID).
		Order("type ASC").
		Find(&rows).Error
	return rows, err
}
