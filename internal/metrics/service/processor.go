package service

import (
	"context"

	metricsdomain "github.com/loyaltylabs/loyalsync/internal/metrics/domain"
	"github.com/loyaltylabs/loyalsync/internal/store"
	txdomain "github.com/loyaltylabs/loyalsync/internal/transaction/domain"
	"go.uber.org/zap"
)

// processTransactions is the main batch loop: offset-paginated scan of all
// transactions in ascending created order, feeding the engine and buffering
// transactions whose computed reward changed for write-back.
//
// The loop has no durable checkpoint. A page read error is treated as end of
// data (fail soft): the pass ends short and an operator re-run converges via
// the idempotent store.
func (s *Service) processTransactions(ctx context.Context, engine *metricsdomain.Engine, memberIDs []int64) int {
	pageSize := s.cfg.PageSize
	offset := 0
	processed := 0

	writeBack := make([]txdomain.Transaction, 0, s.cfg.WriteBackThreshold)

	for {
		page, err := s.transactions.ListPage(ctx, txdomain.PageRequest{
			Limit:         pageSize,
			Offset:        offset,
			MemberIDs:     memberIDs,
			IncludeMember: true,
		})
		if err != nil {
			s.log.Error("transaction page read failed, treating as end of data",
				zap.Int("offset", offset),
				zap.Error(err),
			)
			break
		}
		if len(page) == 0 {
			break
		}

		for i := range page {
			tx := &page[i]
			if tx.MemberNumericID == nil || tx.Member == nil {
				// Orphaned transaction, nothing to attribute it to.
				continue
			}

			out := engine.Process(tx, *tx.MemberNumericID, tx.Member.ProgramID)
			processed++
			s.collectors.TransactionsProcessed.Inc()
			if out.Capped {
				s.collectors.RewardsCapped.Inc()
			}

			if out.RewardChanged {
				reward := out.Reward
				cp := *tx
				cp.CalculatedReward = &reward
				cp.Member = nil
				writeBack = append(writeBack, cp)

				if len(writeBack) >= s.cfg.WriteBackThreshold {
					s.flushWriteBack(ctx, writeBack)
					writeBack = writeBack[:0]
				}
			}
		}

		if len(page) < pageSize {
			break
		}
		offset += len(page)
	}

	if len(writeBack) > 0 {
		s.flushWriteBack(ctx, writeBack)
	}
	return processed
}

func (s *Service) flushWriteBack(ctx context.Context, txs []txdomain.Transaction) {
	// The engine owns exactly one transaction column.
	res := store.UpsertMany(ctx, s.store, txs, "transaction_id", "calculated_reward")
	s.log.Debug("flushed reward write-back",
		zap.Int("updated", res.Updated),
		zap.Int("unchanged", res.Unchanged),
		zap.Int("failed", res.Failed),
	)
}
