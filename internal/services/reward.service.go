package services

import (
	"context"
	"fmt"

	"github.com/nimasrn/loyalty-engine/internal/model"
)

type RewardService struct {
	customers CustomerRepository
	programs  ProgramRepository
	rewards   RewardRepository
}

func NewRewardService(customers CustomerRepository, programs ProgramRepository, rewards RewardRepository) *RewardService {
	return &RewardService{
		customers: customers,
		programs:  programs,
		rewards:   rewards,
	}
}

// Available lists active rewards of businessID that one of the customer's
// memberships can already pay for. Stock is not checked.
func (s *RewardService) Available(ctx context.Context, phone string, businessID int64) ([]*model.Reward, error) {
	customer, err := s.customers.GetByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	return s.rewards.ListAvailable(ctx, customer.ID, businessID)
}

// ListByProgram returns the active rewards of one program, affordable or not.
func (s *RewardService) ListByProgram(ctx context.Context, programID int64) ([]*model.Reward, error) {
	if _, err := s.programs.Get(ctx, programID); err != nil {
		return nil, err
	}
	return s.rewards.ListActiveByProgram(ctx, programID)
}

func (s *RewardService) Create(ctx context.Context, reward *model.Reward) (*model.Reward, error) {
	if reward.Name == "" || reward.PointsRequired <= 0 {
		return nil, fmt.Errorf("%w: reward needs a name and a positive points_required", model.ErrInvalidRequest)
	}
	if _, err := s.programs.Get(ctx, reward.ProgramID); err != nil {
		return nil, err
	}
	return s.rewards.Create(ctx, reward)
}
