package services

import (
	"context"
	"fmt"
	"math"

	"github.com/nimasrn/loyalty-engine/internal/model"
	"github.com/nimasrn/loyalty-engine/pkg/logger"
)

const maxLoyaltyRate = 100

type BusinessService struct {
	businesses BusinessRepository
}

func NewBusinessService(businesses BusinessRepository) *BusinessService {
	return &BusinessService{businesses: businesses}
}

func (s *BusinessService) Get(ctx context.Context, id int64) (*model.Business, error) {
	return s.businesses.Get(ctx, id)
}

// SetLoyaltyRate changes the points-per-unit rate used by earns without a program.
func (s *BusinessService) SetLoyaltyRate(ctx context.Context, id int64, rate float64) error {
	if rate <= 0 || rate > maxLoyaltyRate || math.IsNaN(rate) {
		return fmt.Errorf("%w: loyalty rate must be in (0, %d]", model.ErrInvalidRequest, maxLoyaltyRate)
	}
	if err := s.businesses.UpdateLoyaltyRate(ctx, id, rate); err != nil {
		return err
	}
	logger.Info("loyalty rate updated", "business_id", id, "rate", rate)
	return nil
}
