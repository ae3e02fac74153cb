package repository

import (
	"context"

	"github.com/nimasrn/loyalty-engine/internal/model"
	"github.com/nimasrn/loyalty-engine/pkg/pg"
)

type ReferralRepository struct {
	*pg.DB
}

func NewReferralRepository(db *pg.DB) *ReferralRepository {
	return &ReferralRepository{
		db,
	}
}

func (r *ReferralRepository) Create(ctx context.Context, ref *model.Referral) (*model.Referral, error) {
	entity := toReferralEntity(ref)
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toReferralModel(entity), nil
}

func (r *ReferralRepository) CountByReferrer(ctx context.Context, referrerID, programID int64) (int64, error) {
	var count int64
	err := r.Read(ctx).
		Model(&ReferralEntity{}).
		Where("referrer_id = ? AND program_id = ?", referrerID, programID).
		Count(&count).
		Error
	return count, err
}
