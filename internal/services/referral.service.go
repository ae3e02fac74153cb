package services

import (
	"context"
	"fmt"
	"time"

	"github.com/nimasrn/loyalty-engine/internal/model"
	"github.com/nimasrn/loyalty-engine/pkg/logger"
	"github.com/nimasrn/loyalty-engine/pkg/prom"
)

type ReferralService struct {
	tx           Transactor
	customers    CustomerRepository
	programs     ProgramRepository
	referrals    ReferralRepository
	transactions TransactionRepository
	memberships  *MembershipService
	codes        CodeGenerator
}

func NewReferralService(
	tx Transactor,
	customers CustomerRepository,
	programs ProgramRepository,
	referrals ReferralRepository,
	transactions TransactionRepository,
	memberships *MembershipService,
	codes CodeGenerator,
) *ReferralService {
	return &ReferralService{
		tx:           tx,
		customers:    customers,
		programs:     programs,
		referrals:    referrals,
		transactions: transactions,
		memberships:  memberships,
		codes:        codes,
	}
}

// ProcessReferral credits the referrer with the program's flat award and makes
// sure the referred customer has a code of their own. Both customers must
// already exist. Repeated referrals of the same pair are each credited.
func (s *ReferralService) ProcessReferral(ctx context.Context, req model.ReferralRequest) (*model.Referral, error) {
	start := time.Now()
	var created *model.Referral
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		referrer, err := s.customers.GetByPhone(ctx, req.ReferrerPhone)
		if err != nil {
			return err
		}
		referred, err := s.customers.GetByPhone(ctx, req.ReferredPhone)
		if err != nil {
			return err
		}
		if referrer.ID == referred.ID {
			return model.ErrSelfReferral
		}

		program, err := s.programs.Get(ctx, req.ProgramID)
		if err != nil {
			return err
		}
		if program.BusinessID != req.BusinessID {
			return model.NewNotFound(model.EntityProgram)
		}
		if _, ok := program.Variant.(model.ReferralProgram); !ok {
			return &model.InvalidProgramTypeError{
				Expected: []model.ProgramType{model.ProgramTypeReferral},
				Actual:   program.Type(),
			}
		}
		if !program.Active {
			return model.ErrProgramInactive
		}

		// customers are locked in id order so two opposite referrals cannot deadlock
		referrer, referred, err = s.lockPair(ctx, referrer.ID, referred.ID)
		if err != nil {
			return err
		}

		points, err := floorPoints(program.EarnRate)
		if err != nil {
			return err
		}
		m, err := s.memberships.GetOrCreate(ctx, referrer.ID, program.ID)
		if err != nil {
			return err
		}
		if err := s.memberships.AdjustBalance(ctx, m, points); err != nil {
			return err
		}

		if referred.ReferralCode == nil {
			code, err := uniqueCode(ctx, s.codes, s.customers)
			if err != nil {
				return err
			}
			if err := s.customers.SetReferralCode(ctx, referred.ID, code); err != nil {
				return fmt.Errorf("assign referral code: %w", err)
			}
		}

		created, err = s.referrals.Create(ctx, &model.Referral{
			ReferrerID:    referrer.ID,
			ReferredID:    referred.ID,
			BusinessID:    req.BusinessID,
			ProgramID:     program.ID,
			PointsAwarded: points,
		})
		if err != nil {
			return fmt.Errorf("create referral: %w", err)
		}

		_, err = s.transactions.Create(ctx, &model.Transaction{
			BusinessID:   req.BusinessID,
			CustomerID:   referrer.ID,
			ProgramID:    &program.ID,
			PointsEarned: points,
			Type:         model.TransactionTypeReferral,
			ReferralID:   &created.ID,
		})
		if err != nil {
			return fmt.Errorf("append transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		prom.IncRejection("referral", rejectionReason(err))
		logger.Warn("referral rejected", "error", err)
		return nil, err
	}

	prom.AddTransaction(string(model.TransactionTypeReferral), string(model.ProgramTypeReferral), created.PointsAwarded)
	prom.AddOperationDuration("referral", time.Since(start).Seconds())
	logger.Info("referral committed",
		"referral_id", created.ID,
		"referrer_id", created.ReferrerID,
		"referred_id", created.ReferredID,
		"points", created.PointsAwarded)
	return created, nil
}

func (s *ReferralService) lockPair(ctx context.Context, referrerID, referredID int64) (*model.Customer, *model.Customer, error) {
	first, second := referrerID, referredID
	if first > second {
		first, second = second, first
	}
	a, err := s.customers.LockByID(ctx, first)
	if err != nil {
		return nil, nil, err
	}
	b, err := s.customers.LockByID(ctx, second)
	if err != nil {
		return nil, nil, err
	}
	if a.ID == referrerID {
		return a, b, nil
	}
	return b, a, nil
}

// ReferralCode returns the customer's code, assigning one on first request.
func (s *ReferralService) ReferralCode(ctx context.Context, phone string) (string, error) {
	var code string
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		customer, err := s.customers.LockByPhone(ctx, phone)
		if err != nil {
			return err
		}
		if customer.ReferralCode != nil {
			code = *customer.ReferralCode
			return nil
		}

		code, err = uniqueCode(ctx, s.codes, s.customers)
		if err != nil {
			return err
		}
		if err := s.customers.SetReferralCode(ctx, customer.ID, code); err != nil {
			return fmt.Errorf("assign referral code: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return code, nil
}

func (s *ReferralService) CustomerByCode(ctx context.Context, code string) (*model.Customer, error) {
	return s.customers.GetByReferralCode(ctx, code)
}
