package repository

import (
	"context"

	"github.com/nimasrn/loyalty-engine/internal/model"
	"github.com/nimasrn/loyalty-engine/pkg/pg"
)

type RewardRepository struct {
	*pg.DB
}

func NewRewardRepository(db *pg.DB) *RewardRepository {
	return &RewardRepository{
		db,
	}
}

func (r *RewardRepository) Create(ctx context.Context, reward *model.Reward) (*model.Reward, error) {
	entity := toRewardEntity(reward)
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toRewardModel(entity), nil
}

// ListAvailable returns active rewards in the business's programs that the
// customer's membership balance in that program already covers.
func (r *RewardRepository) ListAvailable(ctx context.Context, customerID, businessID int64) ([]*model.Reward, error) {
	var entities []*RewardEntity
	err := r.Read(ctx).
		Model(&RewardEntity{}).
		Select("rewards.*").
		Joins("JOIN loyalty_programs ON loyalty_programs.id = rewards.program_id").
		Joins("JOIN customer_memberships ON customer_memberships.program_id = rewards.program_id").
		Where("customer_memberships.customer_id = ? AND loyalty_programs.business_id = ?", customerID, businessID).
		Where("rewards.is_active = ? AND rewards.points_required <= customer_memberships.points", true).
		Order("rewards.points_required, rewards.id").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toRewardModels(entities), nil
}

// ListActiveByProgram returns the program's active catalog, cheapest first.
func (r *RewardRepository) ListActiveByProgram(ctx context.Context, programID int64) ([]*model.Reward, error) {
	var entities []*RewardEntity
	err := r.Read(ctx).
		Where("program_id = ? AND is_active = ?", programID, true).
		Order("points_required, id").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toRewardModels(entities), nil
}
