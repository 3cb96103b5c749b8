// Package domain contains the transaction model and its paged repository
// contract.
package domain

import (
	"context"
	"time"

	memberdomain "github.com/loyaltylabs/loyalsync/internal/member/domain"
	"github.com/shopspring/decimal"
)

// Origin tags identify which upstream feed produced a transaction.
const (
	OriginCardnet  = "cardnet"
	OriginShopfeed = "shopfeed"
)

// Transaction is a purchase record attributed to a member. Immutable after
// import except for CalculatedReward, which the metrics engine owns.
type Transaction struct {
	ExternalUUID string `gorm:"primaryKey;column:transaction_id"`

	MemberNumericID *int64               `gorm:"index;column:member_numeric_id"`
	Member          *memberdomain.Member `gorm:"foreignKey:MemberNumericID;references:NumericID"`

	Amount  decimal.Decimal `gorm:"type:numeric(18,2)"`
	MccCode int64           `gorm:"column:mcc_code"`

	Origin       string `gorm:"index"`
	IsRedemption bool   `gorm:"column:is_redemption"`

	// RewardAmount is supplied by an upstream aggregator. A transaction that
	// carries one is never matched against a promotion.
	RewardAmount *decimal.Decimal `gorm:"type:numeric(18,2);column:reward_amount"`

	// CalculatedReward is written back only when the engine's computed value
	// changes.
	CalculatedReward *decimal.Decimal `gorm:"type:numeric(18,2);column:calculated_reward"`

	// Created is the upstream transaction timestamp; the auto-managed pair
	// below tracks row lifecycle only.
	Created   time.Time `gorm:"column:created;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Transaction) TableName() string { return "transactions" }

// PageRequest describes one page of the ascending-created transaction scan.
type PageRequest struct {
	Limit  int
	Offset int
	// MemberIDs restricts the scan to a member subset when non-empty.
	MemberIDs []int64
	// IncludeMember eagerly loads the owning member row.
	IncludeMember bool
}

type Repository interface {
	ListPage(ctx context.Context, req PageRequest) ([]Transaction, error)
}
