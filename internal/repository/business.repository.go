package repository

import (
	"context"
	"errors"

	"github.com/nimasrn/loyalty-engine/internal/model"
	"github.com/nimasrn/loyalty-engine/pkg/pg"
	"gorm.io/gorm"
)

type BusinessRepository struct {
	*pg.DB
}

func NewBusinessRepository(db *pg.DB) *BusinessRepository {
	return &BusinessRepository{
		db,
	}
}

func (r *BusinessRepository) Create(ctx context.Context, b *model.Business) (*model.Business, error) {
	entity := toBusinessEntity(b)
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toBusinessModel(entity), nil
}

func (r *BusinessRepository) Get(ctx context.Context, id int64) (*model.Business, error) {
	var entity BusinessEntity
	err := r.Read(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.NewNotFound(model.EntityBusiness)
		}
		return nil, err
	}
	return toBusinessModel(&entity), nil
}

func (r *BusinessRepository) UpdateLoyaltyRate(ctx context.Context, id int64, rate float64) error {
	result := r.Write(ctx).
		Model(&BusinessEntity{}).
		Where("id = ?", id).
		Update("loyalty_rate", rate)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return model.NewNotFound(model.EntityBusiness)
	}
	return nil
}
