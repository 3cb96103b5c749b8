package service

import (
	"context"

	memberdomain "github.com/loyaltylabs/loyalsync/internal/member/domain"
	metricsdomain "github.com/loyaltylabs/loyalsync/internal/metrics/domain"
	"github.com/loyaltylabs/loyalsync/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// writeMetrics turns the pass's accumulated state into persisted metric and
// promotion-status rows, in member chunks. The universe covers every known
// member, so zero-activity members still get zeroed rows.
//
// rewards_balance is written as a placeholder here: it cannot be computed
// until total_rewards and total_redemptions both exist in storage, so a
// second phase (finalizeRewardsBalance) fills it in.
func (s *Service) writeMetrics(ctx context.Context, engine *metricsdomain.Engine, memberIDs []int64) error {
	universe, err := s.memberUniverse(ctx, engine, memberIDs)
	if err != nil {
		return err
	}

	overlay := s.adjustments.Current(ctx)

	statesByMember := latestStatesByMember(engine.Tracker.States())

	for start := 0; start < len(universe); start += s.cfg.ChunkSize {
		end := min(start+s.cfg.ChunkSize, len(universe))

		var metricRows []metricsdomain.MemberMetric
		var statusRows []metricsdomain.UserPromotionStatus

		for _, memberID := range universe[start:end] {
			member, err := s.members.GetByNumericID(ctx, memberID)
			if err != nil || member == nil {
				s.log.Warn("member lookup failed during metric write",
					zap.Int64("member_id", memberID),
					zap.Error(err),
				)
				continue
			}

			totals := engine.Accumulator.Get(memberID)
			if totals == nil {
				totals = &metricsdomain.MemberTotals{}
			}

			redemptionTotal, err := s.redemptions.TotalForMember(ctx, member.ExternalUUID)
			if err != nil {
				s.log.Warn("redemption total lookup failed, using zero",
					zap.Int64("member_id", memberID),
					zap.Error(err),
				)
				redemptionTotal = decimal.Zero
			}

			base := []struct {
				t metricsdomain.MetricType
				v decimal.Decimal
			}{
				{metricsdomain.MetricTotalGmv, totals.TotalGmv},
				{metricsdomain.MetricQualifiedGmv, totals.QualifiedGmv},
				{metricsdomain.MetricTotalRewards, totals.CumulativeRewards.Add(totals.ExternalRewards)},
				{metricsdomain.MetricRewardsBalance, decimal.Zero},
				{metricsdomain.MetricTotalRedemptions, redemptionTotal},
			}

			for _, m := range base {
				value := m.v.Add(overlay.Amount(memberID, m.t))
				metricRows = append(metricRows, metricsdomain.MemberMetric{
					ID:              s.genID.Generate(),
					MemberNumericID: memberID,
					Type:            m.t,
					UniqueMetricID:  metricsdomain.MetricKey(memberID, m.t),
					Value:           value,
				})
			}

			for _, state := range statesByMember[memberID] {
				statusRows = append(statusRows, metricsdomain.UserPromotionStatus{
					ID:                    s.genID.Generate(),
					UniquePromotionUserID: metricsdomain.PromotionStatusKey(state.Key.PromotionID, memberID),
					MemberNumericID:       memberID,
					PromotionID:           state.Key.PromotionID,
					Bucket:                state.Key.Bucket,
					RewardSum:             state.RunningSum,
					HasHitCap:             state.Cap.LessThanOrEqual(state.RunningSum),
				})
			}
		}

		metricRes := store.UpsertMany(ctx, s.store, metricRows, "unique_member_metric_id")
		statusRes := store.UpsertMany(ctx, s.store, statusRows, "unique_promotion_user_id")
		s.collectors.MetricRowsUpserted.Add(float64(metricRes.Inserted + metricRes.Updated + statusRes.Inserted + statusRes.Updated))
	}

	return nil
}

// latestStatesByMember keeps one state per (member, promotion): the newest
// bucket wins. A member and promotion share a single status row, and bucket
// keys within one promotion share a period, so lexicographic order is
// chronological.
func latestStatesByMember(states []metricsdomain.BucketState) map[int64][]metricsdomain.BucketState {
	type promoKey struct {
		memberID    int64
		promotionID int64
	}

	latest := make(map[promoKey]metricsdomain.BucketState)
	for _, state := range states {
		k := promoKey{memberID: state.Key.MemberID, promotionID: state.Key.PromotionID}
		if cur, ok := latest[k]; ok && cur.Key.Bucket >= state.Key.Bucket {
			continue
		}
		latest[k] = state
	}

	byMember := make(map[int64][]metricsdomain.BucketState)
	for _, state := range latest {
		byMember[state.Key.MemberID] = append(byMember[state.Key.MemberID], state)
	}
	return byMember
}

// finalizeRewardsBalance is the second phase of the two-phase write: with
// total_rewards and total_redemptions persisted, each member's balance is
// max(total_rewards - total_redemptions, 0) plus any rewards_balance
// adjustment, floored at zero again. Member rows get their denormalized
// metric copies refreshed at the same time.
func (s *Service) finalizeRewardsBalance(ctx context.Context, engine *metricsdomain.Engine, memberIDs []int64) error {
	universe, err := s.memberUniverse(ctx, engine, memberIDs)
	if err != nil {
		return err
	}

	overlay := s.adjustments.Current(ctx)
	now := s.clock.Now(ctx)

	for start := 0; start < len(universe); start += s.cfg.ChunkSize {
		end := min(start+s.cfg.ChunkSize, len(universe))

		var balanceRows []metricsdomain.MemberMetric
		var memberRows []memberdomain.Member

		for _, memberID := range universe[start:end] {
			totalRewards, _, err := s.metricsRepo.GetValue(ctx, memberID, metricsdomain.MetricTotalRewards)
			if err != nil {
				s.log.Warn("total_rewards read failed", zap.Int64("member_id", memberID), zap.Error(err))
				continue
			}
			totalRedemptions, _, err := s.metricsRepo.GetValue(ctx, memberID, metricsdomain.MetricTotalRedemptions)
			if err != nil {
				s.log.Warn("total_redemptions read failed", zap.Int64("member_id", memberID), zap.Error(err))
				continue
			}

			balance := totalRewards.Sub(totalRedemptions)
			if balance.IsNegative() {
				balance = decimal.Zero
			}
			balance = balance.Add(overlay.Amount(memberID, metricsdomain.MetricRewardsBalance))
			if balance.IsNegative() {
				balance = decimal.Zero
			}

			balanceRows = append(balanceRows, metricsdomain.MemberMetric{
				ID:              s.genID.Generate(),
				MemberNumericID: memberID,
				Type:            metricsdomain.MetricRewardsBalance,
				UniqueMetricID:  metricsdomain.MetricKey(memberID, metricsdomain.MetricRewardsBalance),
				Value:           balance,
			})

			member, err := s.members.GetByNumericID(ctx, memberID)
			if err != nil || member == nil {
				continue
			}
			totalGmv, _, _ := s.metricsRepo.GetValue(ctx, memberID, metricsdomain.MetricTotalGmv)
			qualifiedGmv, _, _ := s.metricsRepo.GetValue(ctx, memberID, metricsdomain.MetricQualifiedGmv)

			member.TotalGmv = totalGmv
			member.QualifiedGmv = qualifiedGmv
			member.RewardsBalance = balance
			member.MetricsLastUpdated = &now
			memberRows = append(memberRows, *member)
		}

		store.UpsertMany(ctx, s.store, balanceRows, "unique_member_metric_id")
		store.UpsertMany(ctx, s.store, memberRows, "numeric_id",
			"total_gmv", "qualified_gmv", "rewards_balance", "metrics_last_updated")
	}

	return nil
}

// memberUniverse resolves the set of members a pass writes rows for: the
// supplied subset when given, otherwise every known member plus everyone the
// accumulator touched.
func (s *Service) memberUniverse(ctx context.Context, engine *metricsdomain.Engine, memberIDs []int64) ([]int64, error) {
	if len(memberIDs) > 0 {
		return memberIDs, nil
	}

	all, err := s.members.ListIDs(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{}, len(all))
	for _, id := range all {
		seen[id] = struct{}{}
	}
	for _, id := range engine.Accumulator.MemberIDs() {
		if _, ok := seen[id]; !ok {
			all = append(all, id)
		}
	}
	return all, nil
}
