package domain

import (
	catalogdomain "github.com/loyaltylabs/loyalsync/internal/catalog/domain"
	txdomain "github.com/loyaltylabs/loyalsync/internal/transaction/domain"
	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// Engine applies the per-transaction accumulation rules against one catalog
// snapshot. It is a pure function of its inputs plus the tracker/accumulator
// state it owns; it performs no I/O.
type Engine struct {
	Snapshot    *catalogdomain.Snapshot
	Accumulator *Accumulator
	Tracker     *CapTracker
}

func NewEngine(snap *catalogdomain.Snapshot) *Engine {
	return &Engine{
		Snapshot:    snap,
		Accumulator: NewAccumulator(),
		Tracker:     NewCapTracker(),
	}
}

// Outcome reports what Process did with one transaction.
type Outcome struct {
	// Reward is the marginal reward attributed to this transaction.
	Reward decimal.Decimal
	// Matched is set when a promotion applied.
	Matched *catalogdomain.Promotion
	// RewardChanged is set when Reward differs from the transaction's stored
	// calculated reward and the row needs re-persisting.
	RewardChanged bool
	// Capped is set when the bucket's remaining headroom truncated the
	// potential reward.
	Capped bool
}

// Process evaluates one transaction for the member that owns it. The rules
// run strictly in order: redemptions are skipped, externally-rewarded
// transactions contribute only to external rewards, everything else feeds
// GMV and, when a promotion matches, capped reward accrual.
func (e *Engine) Process(tx *txdomain.Transaction, memberID int64, programID string) Outcome {
	if tx.IsRedemption {
		return Outcome{Reward: decimal.Zero}
	}

	totals := e.Accumulator.Totals(memberID)

	if tx.RewardAmount != nil {
		// External and internal reward computation are mutually exclusive:
		// no GMV contribution, no promotion matching.
		totals.ExternalRewards = totals.ExternalRewards.Add(*tx.RewardAmount)
		return Outcome{Reward: decimal.Zero}
	}

	if tx.Origin != txdomain.OriginShopfeed {
		totals.TotalGmv = totals.TotalGmv.Add(tx.Amount)
	}

	promo := e.Snapshot.MatchPromotion(programID, tx.MccCode, tx.Created)
	if promo == nil {
		return Outcome{Reward: decimal.Zero}
	}

	potential := tx.Amount.Mul(promo.Value).Div(oneHundred)

	key := CapBucket{
		MemberID:    memberID,
		PromotionID: promo.ID,
		Bucket:      BucketKey(tx.Created, promo.Period()),
	}
	marginal, _ := e.Tracker.Consume(key, potential, promo.Cap())

	totals.QualifiedGmv = totals.QualifiedGmv.Add(tx.Amount)
	totals.CumulativeRewards = totals.CumulativeRewards.Add(marginal)

	return Outcome{
		Reward:        marginal,
		Matched:       promo,
		RewardChanged: rewardChanged(tx.CalculatedReward, marginal),
		Capped:        marginal.LessThan(potential),
	}
}

func rewardChanged(stored *decimal.Decimal, computed decimal.Decimal) bool {
	if stored == nil {
		return !computed.IsZero()
	}
	return !stored.Equal(computed)
}
