package service

import (
	"context"

	catalogservice "github.com/loyaltylabs/loyalsync/internal/catalog/service"
	"github.com/loyaltylabs/loyalsync/internal/config"
	memberdomain "github.com/loyaltylabs/loyalsync/internal/member/domain"
	redemptiondomain "github.com/loyaltylabs/loyalsync/internal/redemption/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Reconciler backfills member and program linkage on redemption records that
// arrived without it. It must have run before rewards balances derived from
// total_redemptions can be trusted.
type Reconciler struct {
	log     *zap.Logger
	repo    redemptiondomain.Repository
	members memberdomain.Repository
	catalog *catalogservice.Refresher
	cfg     config.SyncConfig
}

type ReconcilerParam struct {
	fx.In

	Log     *zap.Logger
	Repo    redemptiondomain.Repository
	Members memberdomain.Repository
	Catalog *catalogservice.Refresher
	Cfg     config.Config
}

func NewReconciler(p ReconcilerParam) *Reconciler {
	return &Reconciler{
		log:     p.Log.Named("redemption.reconciler"),
		repo:    p.Repo,
		members: p.Members,
		catalog: p.Catalog,
		cfg:     p.Cfg.Sync,
	}
}

// Run walks unlinked redemptions, resolving the member by external identifier
// and the program by case-insensitive catalog name match. Records that cannot
// be resolved are logged and left for the next pass.
func (r *Reconciler) Run(ctx context.Context) error {
	snap := r.catalog.Current(ctx)
	if snap == nil {
		return redemptiondomain.ErrNoCatalog
	}

	pageSize := r.cfg.PageSize
	offset := 0
	linked := 0

	for {
		rows, err := r.repo.ListUnlinked(ctx, pageSize, offset)
		if err != nil {
			r.log.Error("unlinked redemption page read failed, stopping", zap.Error(err))
			break
		}
		if len(rows) == 0 {
			break
		}

		pageLinked := 0
		for i := range rows {
			rec := &rows[i]
			changed := false

			if rec.MemberNumericID == nil && rec.MemberExternalID != "" {
				member, err := r.members.GetByExternalID(ctx, rec.MemberExternalID)
				if err != nil {
					r.log.Warn("member lookup failed",
						zap.String("redemption_id", rec.ID),
						zap.Error(err),
					)
				} else if member != nil {
					rec.MemberNumericID = &member.NumericID
					changed = true
				}
			}

			if rec.ProgramID == "" && rec.ProgramName != "" {
				if program := snap.ProgramByName(rec.ProgramName); program != nil {
					rec.ProgramID = program.ProgramID
					changed = true
				}
			}

			if !changed {
				continue
			}
			if err := r.repo.Save(ctx, rec); err != nil {
				r.log.Warn("redemption save failed",
					zap.String("redemption_id", rec.ID),
					zap.Error(err),
				)
				continue
			}
			pageLinked++
			linked++
		}

		if len(rows) < pageSize {
			break
		}
		// Linked rows drop out of the unlinked filter, so the next page
		// starts past only the rows that stayed unlinked.
		offset += len(rows) - pageLinked
	}

	r.log.Info("redemption reconciliation finished", zap.Int("linked", linked))
	return nil
}
