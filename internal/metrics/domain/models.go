// Package domain contains the metrics engine's persistence models and the
// pure in-memory accumulation machinery (cap tracker, accumulator, engine).
package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type MetricType string

const (
	MetricTotalGmv         MetricType = "total_gmv"
	MetricQualifiedGmv     MetricType = "qualified_gmv"
	MetricTotalRewards     MetricType = "total_rewards"
	MetricRewardsBalance   MetricType = "rewards_balance"
	MetricTotalRedemptions MetricType = "total_redemptions"
)

// MemberMetric is one aggregated figure for one member. UniqueMetricID keys
// the idempotent upsert; a (member, type) pair maps to exactly one row.
type MemberMetric struct {
	ID              snowflake.ID `gorm:"primaryKey"`
	MemberNumericID int64        `gorm:"not null;index;column:member_numeric_id"`
	Type            MetricType   `gorm:"type:text;not null;index"`
	UniqueMetricID  string       `gorm:"type:text;not null;uniqueIndex;column:unique_member_metric_id"`

	Value decimal.Decimal `gorm:"type:numeric(18,2)"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (MemberMetric) TableName() string { return "member_metrics" }

// MetricKey builds the composite upsert key for a (member, type) pair.
func MetricKey(memberID int64, t MetricType) string {
	return fmt.Sprintf("member__%d__metric__%s", memberID, t)
}

// UserPromotionStatus records whether a member has saturated a promotion's
// cap. Recomputed from scratch each run, only ever written.
type UserPromotionStatus struct {
	ID                    snowflake.ID `gorm:"primaryKey"`
	UniquePromotionUserID string       `gorm:"type:text;not null;uniqueIndex;column:unique_promotion_user_id"`
	MemberNumericID       int64        `gorm:"not null;index;column:member_numeric_id"`
	PromotionID           int64        `gorm:"not null;index;column:promotion_id"`

	Bucket    string          `gorm:"type:text"`
	RewardSum decimal.Decimal `gorm:"type:numeric(18,2);column:reward_sum"`
	HasHitCap bool            `gorm:"column:has_hit_cap"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (UserPromotionStatus) TableName() string { return "user_promotion_status" }

// PromotionStatusKey builds the composite upsert key for a promotion/member
// pair. The bucket is deliberately not part of the key: a member holds one
// status row per promotion and later buckets overwrite earlier ones.
func PromotionStatusKey(promotionID, memberID int64) string {
	return fmt.Sprintf("promotion__%d__user__%d", promotionID, memberID)
}
