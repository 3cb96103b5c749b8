package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	catalogdomain "github.com/loyaltylabs/loyalsync/internal/catalog/domain"
	"github.com/loyaltylabs/loyalsync/internal/clock"
	"github.com/loyaltylabs/loyalsync/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Refresher holds the current catalog snapshot and re-pulls it on a fixed
// interval. A failed refresh keeps the previous snapshot; the snapshot is
// never left empty once it has been populated.
type Refresher struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	interval time.Duration

	snap atomic.Pointer[catalogdomain.Snapshot]

	mu          sync.Mutex
	lastRefresh time.Time
}

type RefresherParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Cfg   config.Config
}

func NewRefresher(p RefresherParam) *Refresher {
	return &Refresher{
		db:       p.DB,
		log:      p.Log.Named("catalog.refresher"),
		clock:    p.Clock,
		interval: p.Cfg.Sync.CatalogRefreshInterval,
	}
}

// Current returns the catalog snapshot, refreshing first if it has never been
// loaded or the refresh interval has elapsed. The returned snapshot is
// immutable; callers hold it for the duration of a pass.
func (r *Refresher) Current(ctx context.Context) *catalogdomain.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now(ctx)
	if r.snap.Load() == nil || now.Sub(r.lastRefresh) >= r.interval {
		if err := r.refreshLocked(ctx, now); err != nil {
			r.log.Error("catalog refresh failed, keeping stale snapshot", zap.Error(err))
		}
	}
	return r.snap.Load()
}

// Refresh forces a re-pull regardless of interval. Used by the scheduler tick.
func (r *Refresher) Refresh(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refreshLocked(ctx, r.clock.Now(ctx))
}

func (r *Refresher) refreshLocked(ctx context.Context, now time.Time) error {
	var programs []catalogdomain.Program
	if err := r.db.WithContext(ctx).Order("program_id ASC").Find(&programs).Error; err != nil {
		return err
	}

	var promotions []catalogdomain.Promotion
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&promotions).Error; err != nil {
		return err
	}

	r.snap.Store(catalogdomain.NewSnapshot(programs, promotions, now))
	r.lastRefresh = now
	r.log.Debug("catalog snapshot refreshed",
		zap.Int("programs", len(programs)),
		zap.Int("promotions", len(promotions)),
	)
	return nil
}
