package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/loyaltylabs/loyalsync/internal/clock"
	"github.com/loyaltylabs/loyalsync/internal/config"
	memberdomain "github.com/loyaltylabs/loyalsync/internal/member/domain"
	memberrepository "github.com/loyaltylabs/loyalsync/internal/member/repository"
	"github.com/loyaltylabs/loyalsync/internal/providers/cardnet"
	"github.com/loyaltylabs/loyalsync/internal/providers/shopfeed"
	"github.com/loyaltylabs/loyalsync/internal/store"
	txdomain "github.com/loyaltylabs/loyalsync/internal/transaction/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// providerFixture serves canned upstream responses. Paths mirror the real
// APIs: cardnet resources at /cn/<resource>, shopfeed at /sf/transactions.
type providerFixture struct {
	members      []map[string]any
	cards        []map[string]any
	transactions []map[string]any
	shopfeed     []map[string]any
}

func (f *providerFixture) handler() http.Handler {
	mux := http.NewServeMux()
	serveCardnet := func(items []map[string]any) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			// Only the first page has data; later pages are empty.
			page := items
			if r.URL.Query().Get("pageNumber") != "1" {
				page = nil
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"totalNumberOfPages":   1,
				"totalNumberOfRecords": len(page),
				"items":                page,
			})
		}
	}
	mux.HandleFunc("/cn/members", serveCardnet(f.members))
	mux.HandleFunc("/cn/cards", serveCardnet(f.cards))
	mux.HandleFunc("/cn/transactions", serveCardnet(f.transactions))
	mux.HandleFunc("/sf/transactions", func(w http.ResponseWriter, r *http.Request) {
		items := f.shopfeed
		if r.URL.Query().Get("page") != "0" {
			items = nil
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content":       items,
			"totalPages":    1,
			"totalElements": len(items),
		})
	})
	return mux
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&memberdomain.Member{},
		&memberdomain.Card{},
		&txdomain.Transaction{},
	))
	return db
}

type stubClock struct {
	now time.Time
}

func (c *stubClock) Now(context.Context) time.Time { return c.now }

func newTestImporter(t *testing.T, db *gorm.DB, fixture *providerFixture, clk clock.Clock) *Importer {
	t.Helper()
	srv := httptest.NewServer(fixture.handler())
	t.Cleanup(srv.Close)

	log := zap.NewNop()
	cfg := config.Config{
		Sync: config.SyncConfig{PageSize: 1000, ChunkSize: 250},
		Providers: config.ProvidersConfig{
			Cardnet:  config.CardnetConfig{BaseURL: srv.URL + "/cn", APIKey: "test-key"},
			Shopfeed: config.ShopfeedConfig{BaseURL: srv.URL + "/sf", APIKey: "test-key"},
		},
	}

	return NewImporter(ImporterParam{
		Log:      log,
		Clock:    clk,
		Cfg:      cfg,
		Store:    store.New(db, log),
		Members:  memberrepository.NewRepository(db),
		Cardnet:  cardnet.NewClient(cfg, log),
		Shopfeed: shopfeed.NewClient(cfg, log),
	})
}

func TestImportMembers(t *testing.T) {
	db := openTestDB(t)
	fixture := &providerFixture{
		members: []map[string]any{
			{"id": "m-1", "firstName": "Ada", "lastName": "L", "email": "ada@example.com", "programId": "prog-1", "created": "2024-06-01T00:00:00Z"},
			{"id": "m-2", "firstName": "Bob", "lastName": "K", "email": "bob@example.com", "programId": "prog-1", "created": "2024-06-02T00:00:00Z"},
		},
	}
	imp := newTestImporter(t, db, fixture, clock.SystemClock{})
	ctx := context.Background()

	require.NoError(t, imp.ImportMembers(ctx))

	var members []memberdomain.Member
	require.NoError(t, db.Order("member_id ASC").Find(&members).Error)
	require.Len(t, members, 2)
	assert.Equal(t, "m-1", members[0].ExternalUUID)
	assert.Equal(t, txdomain.OriginCardnet, members[0].Origin)
	assert.True(t, members[0].IsActive)
	firstID := members[0].NumericID

	// A re-import neither duplicates nor reassigns identities.
	require.NoError(t, imp.ImportMembers(ctx))
	var count int64
	db.Model(&memberdomain.Member{}).Count(&count)
	assert.Equal(t, int64(2), count)

	var again memberdomain.Member
	require.NoError(t, db.Where("member_id = ?", "m-1").First(&again).Error)
	assert.Equal(t, firstID, again.NumericID)
}

func TestImportTransactions(t *testing.T) {
	db := openTestDB(t)
	fixture := &providerFixture{
		transactions: []map[string]any{
			{"id": "t-1", "memberId": "m-1", "amount": "50", "merchantCategoryCode": 5411, "created": "2025-01-10T00:00:00Z"},
			{"id": "t-2", "memberId": "m-unknown", "amount": "10", "merchantCategoryCode": 5999, "created": "2025-01-11T00:00:00Z"},
		},
		shopfeed: []map[string]any{
			{"id": 77, "shopperId": "m-1", "saleAmount": 25.5, "shopperCommission": 1.25, "storeName": "Acme", "status": "confirmed", "purchaseDate": "2025-01-12T00:00:00Z"},
		},
	}
	imp := newTestImporter(t, db, fixture, clock.SystemClock{})
	ctx := context.Background()

	member := &memberdomain.Member{ExternalUUID: "m-1", ProgramID: "prog-1", IsActive: true}
	require.NoError(t, db.Create(member).Error)

	require.NoError(t, imp.ImportTransactions(ctx))

	var cardnetTx txdomain.Transaction
	require.NoError(t, db.Where("transaction_id = ?", "t-1").First(&cardnetTx).Error)
	require.NotNil(t, cardnetTx.MemberNumericID)
	assert.Equal(t, member.NumericID, *cardnetTx.MemberNumericID)
	assert.Equal(t, txdomain.OriginCardnet, cardnetTx.Origin)
	assert.Nil(t, cardnetTx.RewardAmount)

	// Unknown member: the transaction lands orphaned rather than dropped.
	var orphan txdomain.Transaction
	require.NoError(t, db.Where("transaction_id = ?", "t-2").First(&orphan).Error)
	assert.Nil(t, orphan.MemberNumericID)

	var sfTx txdomain.Transaction
	require.NoError(t, db.Where("transaction_id = ?", "77").First(&sfTx).Error)
	assert.Equal(t, txdomain.OriginShopfeed, sfTx.Origin)
	require.NotNil(t, sfTx.RewardAmount)
	assert.True(t, sfTx.RewardAmount.Equal(decimal.RequireFromString("1.25")))
	assert.True(t, sfTx.Amount.Equal(decimal.RequireFromString("25.5")))
}

func TestReimportPreservesLocallyOwnedColumns(t *testing.T) {
	db := openTestDB(t)
	fixture := &providerFixture{
		members: []map[string]any{
			{"id": "m-1", "firstName": "Ada", "lastName": "L", "email": "ada@example.com", "programId": "prog-1", "created": "2024-06-01T00:00:00Z"},
		},
		transactions: []map[string]any{
			{"id": "t-1", "memberId": "m-1", "amount": "50", "merchantCategoryCode": 5411, "created": "2025-01-10T00:00:00Z"},
		},
	}
	clk := &stubClock{now: time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)}
	imp := newTestImporter(t, db, fixture, clk)
	ctx := context.Background()

	require.NoError(t, imp.ImportMembers(ctx))
	require.NoError(t, imp.ImportTransactions(ctx))

	// Simulate the metrics pass writing back its columns.
	reward := decimal.RequireFromString("4.50")
	linkedAt := clk.now
	require.NoError(t, db.Model(&txdomain.Transaction{}).
		Where("transaction_id = ?", "t-1").
		Update("calculated_reward", reward).Error)
	require.NoError(t, db.Model(&memberdomain.Member{}).
		Where("member_id = ?", "m-1").
		Updates(map[string]any{
			"total_gmv":        decimal.RequireFromString("50"),
			"rewards_balance":  decimal.RequireFromString("4.50"),
			"card_linked":      true,
			"card_linked_date": linkedAt,
		}).Error)

	require.NoError(t, imp.ImportMembers(ctx))
	require.NoError(t, imp.ImportTransactions(ctx))

	var tx txdomain.Transaction
	require.NoError(t, db.Where("transaction_id = ?", "t-1").First(&tx).Error)
	require.NotNil(t, tx.CalculatedReward)
	assert.True(t, tx.CalculatedReward.Equal(reward))

	var m memberdomain.Member
	require.NoError(t, db.Where("member_id = ?", "m-1").First(&m).Error)
	assert.True(t, m.TotalGmv.Equal(decimal.RequireFromString("50")))
	assert.True(t, m.RewardsBalance.Equal(decimal.RequireFromString("4.50")))
	assert.True(t, m.CardLinked)
	require.NotNil(t, m.CardLinkedDate)
	assert.True(t, m.CardLinkedDate.Equal(linkedAt))
}

func TestSetCardLinkDates(t *testing.T) {
	db := openTestDB(t)
	clk := &stubClock{now: time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)}
	imp := newTestImporter(t, db, &providerFixture{}, clk)
	ctx := context.Background()

	linked := &memberdomain.Member{ExternalUUID: "m-1", ProgramID: "prog-1"}
	unlinked := &memberdomain.Member{ExternalUUID: "m-2", ProgramID: "prog-1"}
	require.NoError(t, db.Create(linked).Error)
	require.NoError(t, db.Create(unlinked).Error)
	require.NoError(t, db.Create(&memberdomain.Card{ExternalUUID: "c-1", MemberExternalID: "m-1"}).Error)

	require.NoError(t, imp.SetCardLinkDates(ctx))

	var m1 memberdomain.Member
	require.NoError(t, db.Where("member_id = ?", "m-1").First(&m1).Error)
	assert.True(t, m1.CardLinked)
	require.NotNil(t, m1.CardLinkedDate)
	firstDate := *m1.CardLinkedDate

	var m2 memberdomain.Member
	require.NoError(t, db.Where("member_id = ?", "m-2").First(&m2).Error)
	assert.False(t, m2.CardLinked)
	assert.Nil(t, m2.CardLinkedDate)

	// A later run does not move the first-linked date.
	clk.now = clk.now.Add(48 * time.Hour)
	require.NoError(t, imp.SetCardLinkDates(ctx))
	require.NoError(t, db.Where("member_id = ?", "m-1").First(&m1).Error)
	require.NotNil(t, m1.CardLinkedDate)
	assert.True(t, m1.CardLinkedDate.Equal(firstDate))

	// Losing the card clears the flag and the date. Scan into a fresh struct:
	// gorm leaves fields untouched when the column comes back NULL.
	require.NoError(t, db.Where("card_id = ?", "c-1").Delete(&memberdomain.Card{}).Error)
	require.NoError(t, imp.SetCardLinkDates(ctx))
	var unlinkedAgain memberdomain.Member
	require.NoError(t, db.Where("member_id = ?", "m-1").First(&unlinkedAgain).Error)
	assert.False(t, unlinkedAgain.CardLinked)
	assert.Nil(t, unlinkedAgain.CardLinkedDate)
}
