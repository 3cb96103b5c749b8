// Package scheduler drives the periodic aggregation passes. A metrics tick
// runs a full pass over every member; catalog and adjustment refreshes run on
// their own tickers so a long-lived process picks up promotion changes
// between passes without a restart.
package scheduler

import (
	"context"
	"time"

	adjustmentservice "github.com/loyaltylabs/loyalsync/internal/adjustment/service"
	catalogservice "github.com/loyaltylabs/loyalsync/internal/catalog/service"
	"github.com/loyaltylabs/loyalsync/internal/clock"
	"github.com/loyaltylabs/loyalsync/internal/config"
	metricsdomain "github.com/loyaltylabs/loyalsync/internal/metrics/domain"
	metricsservice "github.com/loyaltylabs/loyalsync/internal/metrics/service"
	"github.com/loyaltylabs/loyalsync/internal/runlock"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Scheduler struct {
	log   *zap.Logger
	cfg   config.SyncConfig
	clock clock.Clock

	metrics    *metricsservice.Service
	catalog    *catalogservice.Refresher
	adjustment *adjustmentservice.Ledger
}

type Param struct {
	fx.In

	Log        *zap.Logger
	Cfg        config.Config
	Clock      clock.Clock
	Metrics    *metricsservice.Service
	Catalog    *catalogservice.Refresher
	Adjustment *adjustmentservice.Ledger
}

func New(p Param) *Scheduler {
	return &Scheduler{
		log:        p.Log.Named("scheduler"),
		cfg:        p.Cfg.Sync,
		clock:      p.Clock,
		metrics:    p.Metrics,
		catalog:    p.Catalog,
		adjustment: p.Adjustment,
	}
}

// RunForever blocks until ctx is cancelled. The metrics pass runs
// immediately and then every RunInterval; catalog and adjustment refreshes
// tick independently so promotion changes land between passes.
func (s *Scheduler) RunForever(ctx context.Context) {
	runEvery := intervalOrDefault(s.cfg.RunInterval, 6*time.Hour)
	catalogEvery := intervalOrDefault(s.cfg.CatalogRefreshInterval, time.Hour)
	adjustmentEvery := intervalOrDefault(s.cfg.AdjustmentRefreshInterval, time.Hour)

	s.log.Info("scheduler started",
		zap.Duration("run_interval", runEvery),
		zap.Duration("catalog_refresh_interval", catalogEvery),
		zap.Duration("adjustment_refresh_interval", adjustmentEvery),
	)

	s.RefreshCatalog(ctx)
	s.RefreshAdjustments(ctx)
	s.RunMetricsJob(ctx)

	runTicker := time.NewTicker(runEvery)
	defer runTicker.Stop()
	catalogTicker := time.NewTicker(catalogEvery)
	defer catalogTicker.Stop()
	adjustmentTicker := time.NewTicker(adjustmentEvery)
	defer adjustmentTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-catalogTicker.C:
			s.RefreshCatalog(ctx)
		case <-adjustmentTicker.C:
			s.RefreshAdjustments(ctx)
		case <-runTicker.C:
			s.RunMetricsJob(ctx)
		}
	}
}

func intervalOrDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

// RefreshCatalog pulls the latest promotion catalog. A failed pull keeps the
// last snapshot in place.
func (s *Scheduler) RefreshCatalog(ctx context.Context) {
	if err := s.catalog.Refresh(ctx); err != nil {
		s.log.Warn("catalog refresh failed, using last snapshot", zap.Error(err))
	}
}

// RefreshAdjustments pulls the latest manual adjustment overlay.
func (s *Scheduler) RefreshAdjustments(ctx context.Context) {
	if err := s.adjustment.Refresh(ctx); err != nil {
		s.log.Warn("adjustment refresh failed, using last overlay", zap.Error(err))
	}
}

// RunMetricsJob runs a full aggregation pass. A pass already held elsewhere
// is not an error.
func (s *Scheduler) RunMetricsJob(ctx context.Context) {
	start := s.clock.Now(ctx)

	err := s.metrics.RunMetrics(ctx, nil)
	switch err {
	case nil:
		s.log.Info("metrics pass completed", zap.Duration("took", s.clock.Now(ctx).Sub(start)))
	case metricsdomain.ErrRunInProgress, runlock.ErrLockHeld:
		s.log.Info("metrics pass skipped, another run in progress")
	default:
		s.log.Error("metrics pass failed", zap.Error(err))
	}
}
