// Package domain contains manual adjustment records: operator-entered signed
// deltas layered on top of computed metrics.
package domain

import (
	"time"

	metricsdomain "github.com/loyaltylabs/loyalsync/internal/metrics/domain"
	"github.com/shopspring/decimal"
)

type ManualAdjustment struct {
	ID              int64                    `gorm:"primaryKey;autoIncrement"`
	MemberNumericID int64                    `gorm:"not null;index;column:member_numeric_id"`
	Type            metricsdomain.MetricType `gorm:"type:text;not null"`

	Amount decimal.Decimal `gorm:"type:numeric(18,2);column:adjustment_amount"`
	Notes  string          `gorm:"type:text"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (ManualAdjustment) TableName() string { return "manual_adjustments" }

// Overlay is the refreshed in-memory view: per member, per metric type, the
// summed signed delta to apply on top of computed totals.
type Overlay map[int64]map[metricsdomain.MetricType]decimal.Decimal

// Amount returns the adjustment for one member/metric pair, zero when none
// exists.
func (o Overlay) Amount(memberID int64, t metricsdomain.MetricType) decimal.Decimal {
	if byType, ok := o[memberID]; ok {
		if amt, ok := byType[t]; ok {
			return amt
		}
	}
	return decimal.Zero
}
