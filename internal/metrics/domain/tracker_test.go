package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestCapTracker_Consume(t *testing.T) {
	key := CapBucket{MemberID: 1, PromotionID: 10, Bucket: "202501"}
	cap := d("5")

	tracker := NewCapTracker()

	// $100 at 10% would earn $5; the cap is exactly $5 so it all pays out.
	marginal, sum := tracker.Consume(key, d("10"), cap)
	assert.True(t, marginal.Equal(d("5")), "marginal = %s", marginal)
	assert.True(t, sum.Equal(d("5")))

	// A second transaction in the same bucket earns nothing.
	marginal, sum = tracker.Consume(key, d("10"), cap)
	assert.True(t, marginal.IsZero(), "marginal = %s", marginal)
	assert.True(t, sum.Equal(cap))
}

func TestCapTracker_PartialHeadroom(t *testing.T) {
	key := CapBucket{MemberID: 1, PromotionID: 10, Bucket: "202501"}
	cap := d("10")

	tracker := NewCapTracker()

	marginal, _ := tracker.Consume(key, d("8"), cap)
	assert.True(t, marginal.Equal(d("8")))

	// Only $2 of headroom left out of a $8 potential.
	marginal, sum := tracker.Consume(key, d("8"), cap)
	assert.True(t, marginal.Equal(d("2")), "marginal = %s", marginal)
	assert.True(t, sum.Equal(cap))
}

func TestCapTracker_BucketsAreIndependent(t *testing.T) {
	cap := d("5")
	tracker := NewCapTracker()

	jan := CapBucket{MemberID: 1, PromotionID: 10, Bucket: "202501"}
	feb := CapBucket{MemberID: 1, PromotionID: 10, Bucket: "202502"}
	otherMember := CapBucket{MemberID: 2, PromotionID: 10, Bucket: "202501"}

	tracker.Consume(jan, d("10"), cap)

	// A new month resets headroom.
	marginal, _ := tracker.Consume(feb, d("3"), cap)
	assert.True(t, marginal.Equal(d("3")))

	// Another member's spend never consumes this member's cap.
	marginal, _ = tracker.Consume(otherMember, d("4"), cap)
	assert.True(t, marginal.Equal(d("4")))

	states := tracker.States()
	assert.Len(t, states, 3)
	for _, s := range states {
		assert.False(t, s.RunningSum.GreaterThan(s.Cap), "bucket %v sum %s exceeds cap %s", s.Key, s.RunningSum, s.Cap)
	}
}
