package services

import (
	"context"
	"fmt"

	"github.com/nimasrn/loyalty-engine/internal/model"
	"github.com/nimasrn/loyalty-engine/pkg/logger"
)

type ProgramService struct {
	programs   ProgramRepository
	businesses BusinessRepository
}

func NewProgramService(programs ProgramRepository, businesses BusinessRepository) *ProgramService {
	return &ProgramService{
		programs:   programs,
		businesses: businesses,
	}
}

func (s *ProgramService) Create(ctx context.Context, req model.ProgramCreateRequest) (*model.LoyaltyProgram, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidRequest, err)
	}
	if _, err := s.businesses.Get(ctx, req.BusinessID); err != nil {
		return nil, err
	}

	created, err := s.programs.Create(ctx, &model.LoyaltyProgram{
		BusinessID:  req.BusinessID,
		Name:        req.Name,
		Description: req.Description,
		EarnRate:    req.EarnRate,
		Active:      true,
		Variant:     req.Variant(),
	})
	if err != nil {
		return nil, fmt.Errorf("create program: %w", err)
	}

	logger.Info("program created",
		"program_id", created.ID,
		"business_id", created.BusinessID,
		"program_type", created.Type())
	return created, nil
}

func (s *ProgramService) Get(ctx context.Context, id int64) (*model.LoyaltyProgram, error) {
	return s.programs.Get(ctx, id)
}

func (s *ProgramService) ListByBusiness(ctx context.Context, businessID int64) ([]*model.LoyaltyProgram, error) {
	if _, err := s.businesses.Get(ctx, businessID); err != nil {
		return nil, err
	}
	return s.programs.ListByBusiness(ctx, businessID)
}

// Update applies req to the stored program and returns the result.
func (s *ProgramService) Update(ctx context.Context, id int64, req model.ProgramUpdateRequest) (*model.LoyaltyProgram, error) {
	p, err := s.programs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := req.Apply(p); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidRequest, err)
	}
	if err := s.programs.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("update program: %w", err)
	}
	logger.Info("program updated", "program_id", p.ID, "earn_rate", p.EarnRate)
	return p, nil
}

func (s *ProgramService) SetActive(ctx context.Context, id int64, active bool) error {
	if err := s.programs.SetActive(ctx, id, active); err != nil {
		return err
	}
	logger.Info("program activation changed", "program_id", id, "active", active)
	return nil
}
