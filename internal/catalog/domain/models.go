// Package domain contains the program/promotion models and the immutable
// catalog snapshot consumed by the metrics engine.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// CapPeriod is the recurring window a promotion's reward cap applies to.
type CapPeriod string

const (
	CapMonthly   CapPeriod = "monthly"
	CapQuarterly CapPeriod = "quarterly"
	CapYearly    CapPeriod = "yearly"
)

// DefaultCapAmount is applied when a promotion has no max_value configured.
var DefaultCapAmount = decimal.NewFromInt(50)

type Program struct {
	ProgramID string `gorm:"primaryKey;column:program_id"`
	Name      string `gorm:"index"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Program) TableName() string { return "programs" }

// Promotion is a percentage-of-spend reward with a monetary cap per period.
// Read-only to the metrics engine.
type Promotion struct {
	ID        int64  `gorm:"primaryKey"`
	Name      string `gorm:"type:text"`
	ProgramID string `gorm:"index;column:program_id"`

	MccCodes datatypes.JSONSlice[int64] `gorm:"column:mcc_codes"`

	StartDate *time.Time `gorm:"column:start_date"`
	EndDate   *time.Time `gorm:"column:end_date"`

	// Value is the reward percentage (e.g. 10 means 10% of spend).
	Value decimal.Decimal `gorm:"type:numeric(8,2)"`

	// MaxValue caps the payable reward per CapPeriod bucket.
	// Nil falls back to DefaultCapAmount.
	MaxValue  *decimal.Decimal `gorm:"type:numeric(18,2);column:max_value"`
	CapType   CapPeriod        `gorm:"column:cap_type"`
	IsActive  bool             `gorm:"column:is_active"`
	IsVisible bool             `gorm:"column:is_visible"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Promotion) TableName() string { return "promotions" }

// Cap returns the promotion's cap amount, defaulted when unset.
func (p *Promotion) Cap() decimal.Decimal {
	if p.MaxValue == nil {
		return DefaultCapAmount
	}
	return *p.MaxValue
}

// Period returns the promotion's cap period, defaulted to monthly.
func (p *Promotion) Period() CapPeriod {
	switch p.CapType {
	case CapQuarterly, CapYearly:
		return p.CapType
	default:
		return CapMonthly
	}
}
