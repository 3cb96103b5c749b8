package domain

import "github.com/shopspring/decimal"

// BucketState is the tracker's running state for one cap window.
type BucketState struct {
	Key        CapBucket
	RunningSum decimal.Decimal
	Cap        decimal.Decimal
}

// CapTracker accumulates reward consumption per (member, promotion, bucket)
// for the lifetime of one aggregation pass. It is rebuilt empty at the start
// of every run; only the derived promotion-status rows are persisted.
type CapTracker struct {
	states map[CapBucket]*BucketState
}

func NewCapTracker() *CapTracker {
	return &CapTracker{states: make(map[CapBucket]*BucketState)}
}

// Consume applies a potential reward against the bucket's remaining headroom.
// The returned marginal reward is always >= 0 and reaches zero once the cap
// is saturated; the running sum never exceeds cap.
func (t *CapTracker) Consume(key CapBucket, potential, cap decimal.Decimal) (marginal, runningSum decimal.Decimal) {
	state, ok := t.states[key]
	if !ok {
		state = &BucketState{Key: key, RunningSum: decimal.Zero, Cap: cap}
		t.states[key] = state
	}

	newSum := state.RunningSum.Add(potential)
	if newSum.GreaterThan(cap) {
		newSum = cap
	}
	marginal = newSum.Sub(state.RunningSum)
	state.RunningSum = newSum
	state.Cap = cap
	return marginal, newSum
}

// States returns every bucket touched during the run, for the writer to turn
// into promotion-status rows.
func (t *CapTracker) States() []BucketState {
	out := make([]BucketState, 0, len(t.states))
	for _, s := range t.states {
		out = append(out, *s)
	}
	return out
}
