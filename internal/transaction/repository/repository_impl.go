package repository

import (
	"context"

	txdomain "github.com/loyaltylabs/loyalsync/internal/transaction/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) txdomain.Repository {
	return &repository{db: db}
}

func (r *repository) ListPage(ctx context.Context, req txdomain.PageRequest) ([]txdomain.Transaction, error) {
	q := r.db.WithContext(ctx).
		Model(&txdomain.Transaction{}).
		Order("created ASC, transaction_id ASC").
		Limit(req.Limit).
		Offset(req.Offset)

	if len(req.MemberIDs) > 0 {
		q = q.Where("member_numeric_id IN ?", req.MemberIDs)
	}
	if req.IncludeMember {
		q = q.Preload("Member")
	}

	var txs []txdomain.Transaction
	err := q.Find(&txs).Error
	return txs, err
}
