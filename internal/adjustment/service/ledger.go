package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	adjustmentdomain "github.com/loyaltylabs/loyalsync/internal/adjustment/domain"
	"github.com/loyaltylabs/loyalsync/internal/clock"
	"github.com/loyaltylabs/loyalsync/internal/config"
	metricsdomain "github.com/loyaltylabs/loyalsync/internal/metrics/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Ledger holds the manual-adjustment overlay, lazily re-pulled: a pull is
// skipped entirely while the previous one is still within the refresh
// interval. Failed pulls keep the stale overlay.
type Ledger struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	interval time.Duration

	overlay atomic.Pointer[adjustmentdomain.Overlay]

	mu       sync.Mutex
	lastPull time.Time
}

type LedgerParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Cfg   config.Config
}

func NewLedger(p LedgerParam) *Ledger {
	return &Ledger{
		db:       p.DB,
		log:      p.Log.Named("adjustment.ledger"),
		clock:    p.Clock,
		interval: p.Cfg.Sync.AdjustmentRefreshInterval,
	}
}

// Current returns the adjustment overlay, pulling only when stale.
func (l *Ledger) Current(ctx context.Context) adjustmentdomain.Overlay {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now(ctx)
	if l.overlay.Load() == nil || now.Sub(l.lastPull) >= l.interval {
		if err := l.pullLocked(ctx, now); err != nil {
			l.log.Error("adjustment refresh failed, keeping stale overlay", zap.Error(err))
		}
	}

	if o := l.overlay.Load(); o != nil {
		return *o
	}
	return adjustmentdomain.Overlay{}
}

// Refresh forces a pull regardless of the interval.
func (l *Ledger) Refresh(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pullLocked(ctx, l.clock.Now(ctx))
}

func (l *Ledger) pullLocked(ctx context.Context, now time.Time) error {
	var rows []adjustmentdomain.ManualAdjustment
	if err := l.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return err
	}

	overlay := make(adjustmentdomain.Overlay)
	for _, row := range rows {
		byType, ok := overlay[row.MemberNumericID]
		if !ok {
			byType = make(map[metricsdomain.MetricType]decimal.Decimal)
			overlay[row.MemberNumericID] = byType
		}
		byType[row.Type] = byType[row.Type].Add(row.Amount)
	}

	l.overlay.Store(&overlay)
	l.lastPull = now
	l.log.Debug("adjustment overlay refreshed", zap.Int("rows", len(rows)))
	return nil
}
