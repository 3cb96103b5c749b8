// Package importer pulls members, cards and transactions from the upstream
// providers and lands them through the idempotent store.
package importer

import (
	"context"
	"sync"

	"github.com/loyaltylabs/loyalsync/internal/clock"
	"github.com/loyaltylabs/loyalsync/internal/config"
	memberdomain "github.com/loyaltylabs/loyalsync/internal/member/domain"
	"github.com/loyaltylabs/loyalsync/internal/providers/cardnet"
	"github.com/loyaltylabs/loyalsync/internal/providers/shopfeed"
	"github.com/loyaltylabs/loyalsync/internal/store"
	txdomain "github.com/loyaltylabs/loyalsync/internal/transaction/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Importer struct {
	log     *zap.Logger
	clock   clock.Clock
	cfg     config.SyncConfig
	store   *store.Store
	members memberdomain.Repository

	cardnet  *cardnet.Client
	shopfeed *shopfeed.Client

	// memberIDCache maps provider external ids onto member numeric ids for
	// transaction attribution. Reset per import run.
	mu            sync.Mutex
	memberIDCache map[string]*int64
}

type ImporterParam struct {
	fx.In

	Log      *zap.Logger
	Clock    clock.Clock
	Cfg      config.Config
	Store    *store.Store
	Members  memberdomain.Repository
	Cardnet  *cardnet.Client
	Shopfeed *shopfeed.Client
}

func NewImporter(p ImporterParam) *Importer {
	return &Importer{
		log:      p.Log.Named("importer"),
		clock:    p.Clock,
		cfg:      p.Cfg.Sync,
		store:    p.Store,
		members:  p.Members,
		cardnet:  p.Cardnet,
		shopfeed: p.Shopfeed,
	}
}

func (i *Importer) ImportMembers(ctx context.Context) error {
	i.log.Info("importing members from cardnet")
	importPaginated(ctx, i, "members",
		i.cardnet.PullMembers,
		func(ctx context.Context, r cardnet.MemberRecord) (memberdomain.Member, bool) {
			return memberdomain.Member{
				ExternalUUID: r.ID,
				FirstName:    r.FirstName,
				LastName:     r.LastName,
				Email:        r.Email,
				Phone:        r.Phone,
				ProgramID:    r.ProgramID,
				IsActive:     true,
				Origin:       txdomain.OriginCardnet,
				Created:      r.Created,
			}, true
		},
		"member_id",
		"first_name", "last_name", "email", "phone", "program_id", "is_active", "origin", "created",
	)
	return nil
}

func (i *Importer) ImportCards(ctx context.Context) error {
	i.log.Info("importing cards from cardnet")
	importPaginated(ctx, i, "cards",
		i.cardnet.PullCards,
		func(ctx context.Context, r cardnet.CardRecord) (memberdomain.Card, bool) {
			return memberdomain.Card{
				ExternalUUID:     r.ID,
				MemberExternalID: r.MemberID,
				Last4:            r.Last4,
				Brand:            r.Brand,
				Origin:           txdomain.OriginCardnet,
				Created:          r.Created,
			}, true
		},
		"card_id",
		"member_id", "last_four", "brand", "origin", "created",
	)
	return nil
}

func (i *Importer) ImportTransactions(ctx context.Context) error {
	i.resetMemberIDCache()

	i.log.Info("importing transactions from cardnet")
	importPaginated(ctx, i, "transactions",
		i.cardnet.PullTransactions,
		func(ctx context.Context, r cardnet.TransactionRecord) (txdomain.Transaction, bool) {
			return txdomain.Transaction{
				ExternalUUID:    r.ID,
				MemberNumericID: i.resolveMemberID(ctx, r.MemberID),
				Amount:          r.Amount,
				MccCode:         r.MerchantCategoryCode,
				Origin:          txdomain.OriginCardnet,
				IsRedemption:    r.IsRedemption,
				Created:         r.Created,
			}, true
		},
		"transaction_id",
		// calculated_reward stays with the metrics engine, never the import.
		"member_numeric_id", "amount", "mcc_code", "origin", "is_redemption", "created",
	)

	i.log.Info("importing transactions from shopfeed")
	importPaginated(ctx, i, "transactions",
		i.shopfeed.PullTransactions,
		func(ctx context.Context, r shopfeed.TransactionRecord) (txdomain.Transaction, bool) {
			reward := r.RewardAmount
			return txdomain.Transaction{
				ExternalUUID:    r.ID,
				MemberNumericID: i.resolveMemberID(ctx, r.ShopperID),
				Amount:          r.Amount,
				Origin:          txdomain.OriginShopfeed,
				RewardAmount:    &reward,
				Created:         r.Created,
			}, true
		},
		"transaction_id",
		"member_numeric_id", "amount", "origin", "reward_amount", "created",
	)
	return nil
}

// SetCardLinkDates walks every member and maintains the card_linked flag and
// first-linked date from card ownership. Repeated runs do not move the date.
func (i *Importer) SetCardLinkDates(ctx context.Context) error {
	i.log.Info("syncing card link dates on members")
	now := i.clock.Now(ctx)

	offset := 0
	for {
		members, err := i.members.ListPage(ctx, i.cfg.ChunkSize, offset)
		if err != nil {
			i.log.Error("member page read failed, stopping card link sync", zap.Error(err))
			break
		}
		if len(members) == 0 {
			break
		}

		updated := make([]memberdomain.Member, 0, len(members))
		for _, m := range members {
			count, err := i.members.CountCards(ctx, m.ExternalUUID)
			if err != nil {
				i.log.Warn("card count failed",
					zap.String("member", m.ExternalUUID),
					zap.Error(err),
				)
				continue
			}

			linked := count > 0
			linkedDate := m.CardLinkedDate
			switch {
			case linked && !m.CardLinked:
				d := now
				linkedDate = &d
			case !linked:
				linkedDate = nil
			}

			m.CardLinked = linked
			m.CardLinkedDate = linkedDate
			updated = append(updated, m)
		}

		store.UpsertMany(ctx, i.store, updated, "numeric_id", "card_linked", "card_linked_date")

		if len(members) < i.cfg.ChunkSize {
			break
		}
		offset += len(members)
	}
	return nil
}

// importPaginated is the shared pull-map-upsert loop: fetch one provider
// page, map records to entities in chunks, land each chunk through the
// idempotent store. A failed page read ends the import (fail soft). The
// column list names the fields the import owns; fields written by the
// metrics and card-link passes survive a re-import untouched.
func importPaginated[R any, E any](
	ctx context.Context,
	i *Importer,
	label string,
	fetch func(context.Context, int, int) ([]R, error),
	mapFn func(context.Context, R) (E, bool),
	keyColumn string,
	columns ...string,
) {
	pageSize := i.cfg.PageSize
	pageNumber := 1

	for {
		items, err := fetch(ctx, pageSize, pageNumber)
		if err != nil {
			i.log.Error("page fetch failed, ending import",
				zap.String("resource", label),
				zap.Int("page", pageNumber),
				zap.Error(err),
			)
			break
		}
		i.log.Info("fetched page",
			zap.String("resource", label),
			zap.Int("page", pageNumber),
			zap.Int("items", len(items)),
		)
		if len(items) == 0 {
			break
		}

		for start := 0; start < len(items); start += i.cfg.ChunkSize {
			end := min(start+i.cfg.ChunkSize, len(items))

			entities := make([]E, 0, end-start)
			for _, item := range items[start:end] {
				if entity, ok := mapFn(ctx, item); ok {
					entities = append(entities, entity)
				}
			}
			res := store.UpsertMany(ctx, i.store, entities, keyColumn, columns...)
			if res.Failed > 0 {
				i.log.Warn("chunk had failed upserts",
					zap.String("resource", label),
					zap.Int("failed", res.Failed),
				)
			}
		}

		if len(items) < pageSize {
			break
		}
		pageNumber++
	}
	i.log.Info("import completed", zap.String("resource", label))
}

func (i *Importer) resetMemberIDCache() {
	i.mu.Lock()
	i.memberIDCache = make(map[string]*int64)
	i.mu.Unlock()
}

// resolveMemberID maps a provider member id onto the member's numeric id,
// nil when unknown (the transaction stays orphaned and is skipped by the
// metrics pass).
func (i *Importer) resolveMemberID(ctx context.Context, externalID string) *int64 {
	if externalID == "" {
		return nil
	}

	i.mu.Lock()
	cached, ok := i.memberIDCache[externalID]
	i.mu.Unlock()
	if ok {
		return cached
	}

	var id *int64
	member, err := i.members.GetByExternalID(ctx, externalID)
	if err != nil {
		i.log.Warn("member resolution failed", zap.String("external_id", externalID), zap.Error(err))
		return nil
	}
	if member != nil {
		id = &member.NumericID
	}

	i.mu.Lock()
	i.memberIDCache[externalID] = id
	i.mu.Unlock()
	return id
}
