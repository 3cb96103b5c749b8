package service

import (
	"context"
	"sync"

	"github.com/bwmarrin/snowflake"
	adjustmentservice "github.com/loyaltylabs/loyalsync/internal/adjustment/service"
	catalogservice "github.com/loyaltylabs/loyalsync/internal/catalog/service"
	"github.com/loyaltylabs/loyalsync/internal/clock"
	"github.com/loyaltylabs/loyalsync/internal/config"
	memberdomain "github.com/loyaltylabs/loyalsync/internal/member/domain"
	metricsdomain "github.com/loyaltylabs/loyalsync/internal/metrics/domain"
	"github.com/loyaltylabs/loyalsync/internal/metrics/repository"
	redemptiondomain "github.com/loyaltylabs/loyalsync/internal/redemption/domain"
	"github.com/loyaltylabs/loyalsync/internal/runlock"
	"github.com/loyaltylabs/loyalsync/internal/store"
	txdomain "github.com/loyaltylabs/loyalsync/internal/transaction/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service drives one full aggregation pass: stream transactions in created
// order, accumulate per-member totals and per-bucket cap consumption, then
// persist metric and promotion-status rows through the idempotent store.
type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	cfg   config.SyncConfig

	catalog      *catalogservice.Refresher
	adjustments  *adjustmentservice.Ledger
	transactions txdomain.Repository
	members      memberdomain.Repository
	redemptions  redemptiondomain.Repository
	metricsRepo  *repository.Repository
	store        *store.Store
	lock         *runlock.Lock
	collectors   *Collectors

	// runMu serializes passes within the process; the redis lock serializes
	// across triggers when configured.
	runMu sync.Mutex
}

type ServiceParam struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Cfg          config.Config
	Catalog      *catalogservice.Refresher
	Adjustments  *adjustmentservice.Ledger
	Transactions txdomain.Repository
	Members      memberdomain.Repository
	Redemptions  redemptiondomain.Repository
	Store        *store.Store
	Lock         *runlock.Lock `optional:"true"`
	Collectors   *Collectors
}

func NewService(p ServiceParam) *Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("metrics.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		cfg:          p.Cfg.Sync,
		catalog:      p.Catalog,
		adjustments:  p.Adjustments,
		transactions: p.Transactions,
		members:      p.Members,
		redemptions:  p.Redemptions,
		metricsRepo:  repository.NewRepository(p.DB),
		store:        p.Store,
		lock:         p.Lock,
		collectors:   p.Collectors,
	}
}

// RunMetrics executes a full pass, optionally restricted to a member subset.
// Cap accrual depends on strictly ascending-timestamp processing, so the
// pass runs on exactly one logical worker.
func (s *Service) RunMetrics(ctx context.Context, memberIDs []int64) error {
	if !s.runMu.TryLock() {
		return metricsdomain.ErrRunInProgress
	}
	defer s.runMu.Unlock()

	if s.lock != nil {
		if err := s.lock.Acquire(ctx); err != nil {
			s.collectors.Runs.WithLabelValues("locked_out").Inc()
			return err
		}
		defer func() {
			if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
				s.log.Warn("run lock release failed", zap.Error(err))
			}
		}()
	}

	snap := s.catalog.Current(ctx)
	if snap == nil {
		s.collectors.Runs.WithLabelValues("failed").Inc()
		return metricsdomain.ErrNoCatalog
	}

	// All in-memory state is rebuilt from empty every run; replays converge
	// through the idempotent store rather than through checkpoints.
	engine := metricsdomain.NewEngine(snap)

	processed := s.processTransactions(ctx, engine, memberIDs)

	if err := s.writeMetrics(ctx, engine, memberIDs); err != nil {
		s.collectors.Runs.WithLabelValues("failed").Inc()
		return err
	}
	if err := s.finalizeRewardsBalance(ctx, engine, memberIDs); err != nil {
		s.collectors.Runs.WithLabelValues("failed").Inc()
		return err
	}

	s.collectors.Runs.WithLabelValues("completed").Inc()
	s.log.Info("aggregation pass completed",
		zap.Int("transactions", processed),
		zap.Int("members_touched", len(engine.Accumulator.MemberIDs())),
	)
	return nil
}
