// Package domain contains redemption records: reward pay-outs consumed to
// compute total_redemptions and the net rewards balance.
package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Redemption struct {
	ID string `gorm:"primaryKey;type:uuid"`

	// MemberExternalID is the upstream member identifier the redemption
	// arrived with; MemberNumericID is backfilled by the reconciler.
	MemberExternalID string `gorm:"index;column:member_id"`
	MemberNumericID  *int64 `gorm:"index;column:member_numeric_id"`

	Amount decimal.Decimal `gorm:"type:numeric(18,2)"`
	Type   string          `gorm:"type:text"`

	// ProgramName arrives from upstream; ProgramID is resolved against the
	// catalog by case-insensitive name match.
	ProgramName string `gorm:"column:program_name"`
	ProgramID   string `gorm:"index;column:program_id"`

	Created   time.Time `gorm:"column:created"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Redemption) TableName() string { return "redemptions" }

type Repository interface {
	// TotalForMember sums redemption amounts joined by the member's external
	// identifier.
	TotalForMember(ctx context.Context, memberExternalID string) (decimal.Decimal, error)
	// ListUnlinked pages through redemptions missing their member or program
	// linkage.
	ListUnlinked(ctx context.Context, limit, offset int) ([]Redemption, error)
	Save(ctx context.Context, r *Redemption) error
}
