package scheduler

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	adjustmentdomain "github.com/loyaltylabs/loyalsync/internal/adjustment/domain"
	adjustmentservice "github.com/loyaltylabs/loyalsync/internal/adjustment/service"
	catalogdomain "github.com/loyaltylabs/loyalsync/internal/catalog/domain"
	catalogservice "github.com/loyaltylabs/loyalsync/internal/catalog/service"
	"github.com/loyaltylabs/loyalsync/internal/clock"
	"github.com/loyaltylabs/loyalsync/internal/config"
	memberdomain "github.com/loyaltylabs/loyalsync/internal/member/domain"
	memberrepository "github.com/loyaltylabs/loyalsync/internal/member/repository"
	metricsdomain "github.com/loyaltylabs/loyalsync/internal/metrics/domain"
	metricsservice "github.com/loyaltylabs/loyalsync/internal/metrics/service"
	redemptiondomain "github.com/loyaltylabs/loyalsync/internal/redemption/domain"
	redemptionrepository "github.com/loyaltylabs/loyalsync/internal/redemption/repository"
	"github.com/loyaltylabs/loyalsync/internal/store"
	txdomain "github.com/loyaltylabs/loyalsync/internal/transaction/domain"
	txrepository "github.com/loyaltylabs/loyalsync/internal/transaction/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testCollectors = metricsservice.NewCollectors()

// stubClock freezes time so the refreshers' lazy interval check never fires
// on its own; only the scheduler's tickers can trigger a re-pull.
type stubClock struct {
	now time.Time
}

func (c *stubClock) Now(context.Context) time.Time { return c.now }

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&memberdomain.Member{},
		&catalogdomain.Program{},
		&catalogdomain.Promotion{},
		&txdomain.Transaction{},
		&metricsdomain.MemberMetric{},
		&metricsdomain.UserPromotionStatus{},
		&redemptiondomain.Redemption{},
		&adjustmentdomain.ManualAdjustment{},
	))
	return db
}

func newTestScheduler(t *testing.T, db *gorm.DB, cfg config.Config, clk clock.Clock) (*Scheduler, *catalogservice.Refresher, *adjustmentservice.Ledger) {
	t.Helper()
	log := zap.NewNop()

	catalog := catalogservice.NewRefresher(catalogservice.RefresherParam{DB: db, Log: log, Clock: clk, Cfg: cfg})
	adjustment := adjustmentservice.NewLedger(adjustmentservice.LedgerParam{DB: db, Log: log, Clock: clk, Cfg: cfg})

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	metrics := metricsservice.NewService(metricsservice.ServiceParam{
		DB:           db,
		Log:          log,
		GenID:        node,
		Clock:        clk,
		Cfg:          cfg,
		Catalog:      catalog,
		Adjustments:  adjustment,
		Transactions: txrepository.NewRepository(db),
		Members:      memberrepository.NewRepository(db),
		Redemptions:  redemptionrepository.NewRepository(db),
		Store:        store.New(db, log),
		Collectors:   testCollectors,
	})

	sched := New(Param{
		Log:        log,
		Cfg:        cfg,
		Clock:      clk,
		Metrics:    metrics,
		Catalog:    catalog,
		Adjustment: adjustment,
	})
	return sched, catalog, adjustment
}

func TestRunForever_RefreshesIndependentlyOfMetricsPass(t *testing.T) {
	db := openTestDB(t)
	clk := &stubClock{now: time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)}
	cfg := config.Config{Sync: config.SyncConfig{
		PageSize:           1000,
		ChunkSize:          250,
		WriteBackThreshold: 250,
		// The metrics pass will not run again within the test window;
		// only the refresh tickers fire.
		RunInterval:               time.Hour,
		CatalogRefreshInterval:    10 * time.Millisecond,
		AdjustmentRefreshInterval: 10 * time.Millisecond,
	}}
	sched, catalog, adjustment := newTestScheduler(t, db, cfg, clk)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.RunForever(ctx)

	// Wait for the startup pass so the later observations can only come
	// from ticker-driven re-pulls.
	require.Eventually(t, func() bool {
		return catalog.Current(ctx) != nil
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, db.Create(&catalogdomain.Program{ProgramID: "prog-1", Name: "Gold"}).Error)
	require.NoError(t, db.Create(&catalogdomain.Promotion{
		ID:        10,
		Name:      "Grocery 20%",
		ProgramID: "prog-1",
		Value:     decimal.NewFromInt(20),
		IsActive:  true,
	}).Error)
	require.NoError(t, db.Create(&adjustmentdomain.ManualAdjustment{
		MemberNumericID: 7,
		Type:            metricsdomain.MetricRewardsBalance,
		Amount:          decimal.NewFromInt(2),
	}).Error)

	require.Eventually(t, func() bool {
		snap := catalog.Current(ctx)
		return snap != nil && len(snap.Promotions) == 1
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		overlay := adjustment.Current(ctx)
		return overlay.Amount(7, metricsdomain.MetricRewardsBalance).Equal(decimal.NewFromInt(2))
	}, time.Second, 5*time.Millisecond)
}

func TestRunMetricsJob_RunnableBackToBack(t *testing.T) {
	db := openTestDB(t)
	clk := &stubClock{now: time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)}
	cfg := config.Config{Sync: config.SyncConfig{
		PageSize:           1000,
		ChunkSize:          250,
		WriteBackThreshold: 250,
	}}
	sched, catalog, _ := newTestScheduler(t, db, cfg, clk)

	ctx := context.Background()
	sched.RefreshCatalog(ctx)
	require.NotNil(t, catalog.Current(ctx))

	// A completed pass leaves the job runnable again.
	sched.RunMetricsJob(ctx)
	sched.RunMetricsJob(ctx)
}
