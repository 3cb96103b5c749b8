package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	catalogdomain "github.com/loyaltylabs/loyalsync/internal/catalog/domain"
	"github.com/loyaltylabs/loyalsync/internal/clock"
	"github.com/loyaltylabs/loyalsync/internal/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&catalogdomain.Program{}, &catalogdomain.Promotion{}))
	return db
}

func newTestRefresher(t *testing.T, db *gorm.DB, interval time.Duration) *Refresher {
	t.Helper()
	return NewRefresher(RefresherParam{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: clock.SystemClock{},
		Cfg:   config.Config{Sync: config.SyncConfig{CatalogRefreshInterval: interval}},
	})
}

func seedPromotion(t *testing.T, db *gorm.DB, id int64) {
	t.Helper()
	require.NoError(t, db.Create(&catalogdomain.Promotion{
		ID:        id,
		ProgramID: "prog-1",
		Value:     decimal.NewFromInt(10),
		IsActive:  true,
	}).Error)
}

func TestRefresher_LazyLoadAndCache(t *testing.T) {
	db := openTestDB(t)
	r := newTestRefresher(t, db, time.Hour)
	ctx := context.Background()

	seedPromotion(t, db, 1)

	snap := r.Current(ctx)
	require.NotNil(t, snap)
	assert.Len(t, snap.Promotions, 1)

	// Within the interval the snapshot is served from memory; new rows are
	// not visible yet.
	seedPromotion(t, db, 2)
	snap = r.Current(ctx)
	assert.Len(t, snap.Promotions, 1)

	// A forced refresh picks them up.
	require.NoError(t, r.Refresh(ctx))
	snap = r.Current(ctx)
	assert.Len(t, snap.Promotions, 2)
}

func TestRefresher_KeepsStaleSnapshotOnFailure(t *testing.T) {
	db := openTestDB(t)
	r := newTestRefresher(t, db, time.Hour)
	ctx := context.Background()

	seedPromotion(t, db, 1)
	require.NotNil(t, r.Current(ctx))

	// Break the source, then force a refresh: the old snapshot survives.
	require.NoError(t, db.Migrator().DropTable(&catalogdomain.Promotion{}))
	assert.Error(t, r.Refresh(ctx))

	snap := r.Current(ctx)
	require.NotNil(t, snap)
	assert.Len(t, snap.Promotions, 1)
}

func TestRefresher_NilWhenNeverLoaded(t *testing.T) {
	db := openTestDB(t)
	r := newTestRefresher(t, db, time.Hour)

	require.NoError(t, db.Migrator().DropTable(&catalogdomain.Promotion{}))
	assert.Nil(t, r.Current(context.Background()))
}
