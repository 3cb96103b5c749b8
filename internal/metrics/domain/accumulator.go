package domain

import "github.com/shopspring/decimal"

// MemberTotals are one member's running aggregates for the current pass.
type MemberTotals struct {
	TotalGmv          decimal.Decimal
	QualifiedGmv      decimal.Decimal
	CumulativeRewards decimal.Decimal
	ExternalRewards   decimal.Decimal
}

// Accumulator holds per-member totals keyed by numeric id, initialized
// lazily on first touch. Size grows with distinct members seen in the run,
// not with the transaction count.
type Accumulator struct {
	totals map[int64]*MemberTotals
}

func NewAccumulator() *Accumulator {
	return &Accumulator{totals: make(map[int64]*MemberTotals)}
}

func (a *Accumulator) Totals(memberID int64) *MemberTotals {
	t, ok := a.totals[memberID]
	if !ok {
		t = &MemberTotals{
			TotalGmv:          decimal.Zero,
			QualifiedGmv:      decimal.Zero,
			CumulativeRewards: decimal.Zero,
			ExternalRewards:   decimal.Zero,
		}
		a.totals[memberID] = t
	}
	return t
}

// Get returns totals without creating an entry; nil when the member produced
// no accumulation this run.
func (a *Accumulator) Get(memberID int64) *MemberTotals {
	return a.totals[memberID]
}

func (a *Accumulator) MemberIDs() []int64 {
	ids := make([]int64, 0, len(a.totals))
	for id := range a.totals {
		ids = append(ids, id)
	}
	return ids
}
