package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	memberdomain "github.com/loyaltylabs/loyalsync/internal/member/domain"
	txdomain "github.com/loyaltylabs/loyalsync/internal/transaction/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&memberdomain.Member{}, &txdomain.Transaction{}))
	return db
}

func seedTx(t *testing.T, db *gorm.DB, id string, created time.Time) {
	t.Helper()
	require.NoError(t, db.Create(&txdomain.Transaction{
		ExternalUUID: id,
		Amount:       decimal.NewFromInt(10),
		Origin:       txdomain.OriginCardnet,
		Created:      created,
	}).Error)
}

func TestListPage_OrdersByBusinessTimestamp(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	// Insertion order is the reverse of transaction time: the scan must
	// follow Created, not row age.
	base := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	seedTx(t, db, "t-3", base.AddDate(0, 2, 0))
	seedTx(t, db, "t-1", base)
	seedTx(t, db, "t-2", base.AddDate(0, 1, 0))

	txs, err := repo.ListPage(ctx, txdomain.PageRequest{Limit: 10})
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, "t-1", txs[0].ExternalUUID)
	assert.Equal(t, "t-2", txs[1].ExternalUUID)
	assert.Equal(t, "t-3", txs[2].ExternalUUID)

	// Created holds the upstream timestamp while CreatedAt still gets the
	// auto-stamped insert time; the two columns stay independent.
	assert.True(t, txs[0].Created.Equal(base))
	assert.False(t, txs[0].CreatedAt.IsZero())
	assert.False(t, txs[0].CreatedAt.Equal(txs[0].Created))
}

func TestListPage_MemberSubsetAndPaging(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	m1 := &memberdomain.Member{ExternalUUID: "m-1", ProgramID: "prog-1"}
	m2 := &memberdomain.Member{ExternalUUID: "m-2", ProgramID: "prog-1"}
	require.NoError(t, db.Create(m1).Error)
	require.NoError(t, db.Create(m2).Error)

	base := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i, memberID := range []int64{m1.NumericID, m2.NumericID, m1.NumericID} {
		id := memberID
		require.NoError(t, db.Create(&txdomain.Transaction{
			ExternalUUID:    fmt.Sprintf("t-%d", i+1),
			MemberNumericID: &id,
			Amount:          decimal.NewFromInt(5),
			Origin:          txdomain.OriginCardnet,
			Created:         base.AddDate(0, 0, i),
		}).Error)
	}

	txs, err := repo.ListPage(ctx, txdomain.PageRequest{Limit: 10, MemberIDs: []int64{m1.NumericID}})
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "t-1", txs[0].ExternalUUID)
	assert.Equal(t, "t-3", txs[1].ExternalUUID)

	page, err := repo.ListPage(ctx, txdomain.PageRequest{Limit: 1, Offset: 1, IncludeMember: true})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "t-2", page[0].ExternalUUID)
	require.NotNil(t, page[0].Member)
	assert.Equal(t, "m-2", page[0].Member.ExternalUUID)
}
