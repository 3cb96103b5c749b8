package repository

import (
	"context"

	memberdomain "github.com/loyaltylabs/loyalsync/internal/member/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) memberdomain.Repository {
	return &repository{db: db}
}

func (r *repository) ListIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&memberdomain.Member{}).
		Order("numeric_id ASC").
		Pluck("numeric_id", &ids).Error
	return ids, err
}

func (r *repository) ListPage(ctx context.Context, limit, offset int) ([]memberdomain.Member, error) {
	var members []memberdomain.Member
	err := r.db.WithContext(ctx).
		Order("numeric_id ASC").
		Limit(limit).
		Offset(offset).
		Find(&members).Error
	return members, err
}

func (r *repository) GetByNumericID(ctx context.Context, id int64) (*memberdomain.Member, error) {
	var member memberdomain.Member
	err := r.db.WithContext(ctx).
		Where("numeric_id = ?", id).
		First(&member).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

func (r *repository) GetByExternalID(ctx context.Context, externalID string) (*memberdomain.Member, error) {
	var member memberdomain.Member
	err := r.db.WithContext(ctx).
		Where("member_id = ?", externalID).
		First(&member).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

func (r *repository) CountCards(ctx context.Context, memberExternalUUID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&memberdomain.Card{}).
		Where("member_id = ?", memberExternalUUID).
		Count(&count).Error
	return count, err
}

func (r *repository) Save(ctx context.Context, member *memberdomain.Member) error {
	return r.db.WithContext(ctx).Save(member).Error
}
