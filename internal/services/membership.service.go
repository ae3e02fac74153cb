package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/nimasrn/loyalty-engine/internal/clock"
	"github.com/nimasrn/loyalty-engine/internal/model"
	"github.com/nimasrn/loyalty-engine/internal/tier"
	"github.com/nimasrn/loyalty-engine/pkg/logger"
)

// MembershipService owns every write to a membership balance. The customer's
// legacy total is moved in the same transaction as the membership points.
type MembershipService struct {
	tx          Transactor
	memberships MembershipRepository
	customers   CustomerRepository
	programs    ProgramRepository
	codes       CodeGenerator
	clock       clock.Clock
}

func NewMembershipService(tx Transactor, memberships MembershipRepository, customers CustomerRepository, programs ProgramRepository, codes CodeGenerator, clk clock.Clock) *MembershipService {
	return &MembershipService{
		tx:          tx,
		memberships: memberships,
		customers:   customers,
		programs:    programs,
		codes:       codes,
		clock:       clk,
	}
}

// GetOrCreate returns the membership for the pair, inserting a zero-balance
// row on first use. The row is locked when ctx carries a transaction.
func (s *MembershipService) GetOrCreate(ctx context.Context, customerID, programID int64) (*model.Membership, error) {
	m, err := s.memberships.GetOrCreate(ctx, customerID, programID)
	if err != nil {
		return nil, fmt.Errorf("get or create membership: %w", err)
	}
	return m, nil
}

// Lock reads an existing membership FOR UPDATE. Missing memberships are
// reported as *model.NotFoundError.
func (s *MembershipService) Lock(ctx context.Context, customerID, programID int64) (*model.Membership, error) {
	return s.memberships.Lock(ctx, customerID, programID)
}

// AdjustBalance applies delta to the membership and to the customer's total.
// A delta that would take the membership below zero fails with
// *model.InsufficientBalanceError and changes nothing.
func (s *MembershipService) AdjustBalance(ctx context.Context, m *model.Membership, delta int64) error {
	if delta == 0 {
		return nil
	}
	if delta < 0 && m.Points+delta < 0 {
		return &model.InsufficientBalanceError{Available: m.Points, Requested: -delta}
	}
	if delta > 0 && m.Points > math.MaxInt64-delta {
		return fmt.Errorf("%w: membership balance would overflow", model.ErrInvalidAmount)
	}

	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.memberships.AddPoints(ctx, m.ID, delta); err != nil {
			if errors.Is(err, model.ErrInsufficientBalance) {
				return &model.InsufficientBalanceError{Available: m.Points, Requested: -delta}
			}
			return fmt.Errorf("update membership points: %w", err)
		}
		if err := s.customers.AddPoints(ctx, m.CustomerID, delta); err != nil {
			return fmt.Errorf("update customer total: %w", err)
		}
		m.Points += delta
		return nil
	})
}

// SyncTier re-resolves the tier of a tiered membership from its current points
// and persists it when it changed. Other program types are left alone.
func (s *MembershipService) SyncTier(ctx context.Context, m *model.Membership, program *model.LoyaltyProgram) (*model.TierLevel, error) {
	tiered, ok := program.Variant.(model.TieredProgram)
	if !ok {
		return nil, nil
	}

	resolved := tier.Resolve(m.Points, tiered.Tiers)
	id := tier.ID(resolved)
	if sameTier(id, m.CurrentTierID) {
		return resolved, nil
	}

	if err := s.memberships.SetTier(ctx, m.ID, id); err != nil {
		return nil, fmt.Errorf("set tier: %w", err)
	}
	logger.Info("membership tier changed",
		"membership_id", m.ID,
		"points", m.Points,
		"tier_id", id)
	m.CurrentTierID = id
	return resolved, nil
}

// EnrollPaid starts a paid membership window at the current time.
func (s *MembershipService) EnrollPaid(ctx context.Context, m *model.Membership, program *model.LoyaltyProgram) error {
	paid, ok := program.Variant.(model.PaidProgram)
	if !ok {
		return &model.InvalidProgramTypeError{
			Expected: []model.ProgramType{model.ProgramTypePaid},
			Actual:   program.Type(),
		}
	}

	start := s.clock.Now()
	end := start.AddDate(0, 0, paid.PeriodDays())
	if err := s.memberships.SetPaidWindow(ctx, m.ID, start, end); err != nil {
		return fmt.Errorf("set paid window: %w", err)
	}

	m.IsPaidMember = true
	m.MembershipStart = &start
	m.MembershipEnd = &end
	return nil
}

// Enroll signs the customer up for a paid program of businessID, creating the
// customer and the membership when needed.
func (s *MembershipService) Enroll(ctx context.Context, businessID int64, phone string, programID int64) (*model.Membership, error) {
	var membership *model.Membership
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		program, err := s.programs.Get(ctx, programID)
		if err != nil {
			return err
		}
		if program.BusinessID != businessID {
			return model.NewNotFound(model.EntityProgram)
		}
		if program.Type() != model.ProgramTypePaid {
			return &model.InvalidProgramTypeError{
				Expected: []model.ProgramType{model.ProgramTypePaid},
				Actual:   program.Type(),
			}
		}

		customer, _, err := s.customers.GetOrCreateByPhone(ctx, phone, s.codes.NewCode)
		if err != nil {
			return fmt.Errorf("resolve customer: %w", err)
		}
		m, err := s.GetOrCreate(ctx, customer.ID, program.ID)
		if err != nil {
			return err
		}
		if err := s.EnrollPaid(ctx, m, program); err != nil {
			return err
		}
		membership = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("paid membership enrolled",
		"membership_id", membership.ID,
		"program_id", programID,
		"membership_end", membership.MembershipEnd)
	return membership, nil
}

func (s *MembershipService) ListForBusiness(ctx context.Context, phone string, businessID int64) ([]*model.Membership, error) {
	customer, err := s.customers.GetByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	return s.memberships.ListForBusiness(ctx, customer.ID, businessID)
}

func sameTier(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
