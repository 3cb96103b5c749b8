// Package domain contains the member and card persistence models.
package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Member is a rewards-program participant. NumericID is the stable join key
// for all aggregation; ExternalUUID is the card-network identifier every
// imported record carries.
type Member struct {
	NumericID    int64  `gorm:"primaryKey;autoIncrement;column:numeric_id"`
	ExternalUUID string `gorm:"uniqueIndex;column:member_id"`
	ExternalID   string `gorm:"column:external_id"`
	ProgramID    string `gorm:"index;column:program_id"`

	FirstName string `gorm:"column:first_name"`
	LastName  string `gorm:"column:last_name"`
	Email     string `gorm:"index"`
	Phone     string

	IsActive bool `gorm:"column:is_active;default:true"`
	Origin   string

	CardLinked     bool       `gorm:"column:card_linked;default:false"`
	CardLinkedDate *time.Time `gorm:"column:card_linked_date"`

	// Denormalized copies of the latest aggregation, refreshed each run.
	TotalGmv           decimal.Decimal `gorm:"type:numeric(18,2);column:total_gmv"`
	QualifiedGmv       decimal.Decimal `gorm:"type:numeric(18,2);column:qualified_gmv"`
	RewardsBalance     decimal.Decimal `gorm:"type:numeric(18,2);column:rewards_balance"`
	MetricsLastUpdated *time.Time      `gorm:"column:metrics_last_updated"`

	// Created is the upstream enrollment timestamp, distinct from the
	// auto-managed row lifecycle pair.
	Created   time.Time `gorm:"column:created;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Member) TableName() string { return "members" }

// Card is a payment card linked to a member, keyed by its provider id.
// MemberExternalID references Member.ExternalUUID.
type Card struct {
	ExternalUUID     string `gorm:"primaryKey;column:card_id"`
	MemberExternalID string `gorm:"index;column:member_id"`
	Last4            string `gorm:"column:last_four"`
	Brand            string
	Origin           string

	Created   time.Time `gorm:"column:created"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Card) TableName() string { return "cards" }

type Repository interface {
	// ListIDs returns every member numeric id, including members with no
	// transactions at all.
	ListIDs(ctx context.Context) ([]int64, error)
	ListPage(ctx context.Context, limit, offset int) ([]Member, error)
	GetByNumericID(ctx context.Context, id int64) (*Member, error)
	GetByExternalID(ctx context.Context, externalID string) (*Member, error)
	CountCards(ctx context.Context, memberExternalUUID string) (int64, error)
	Save(ctx context.Context, member *Member) error
}
