package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/nimasrn/loyalty-engine/internal/clock"
	"github.com/nimasrn/loyalty-engine/internal/model"
	"github.com/nimasrn/loyalty-engine/internal/tier"
	"github.com/nimasrn/loyalty-engine/pkg/logger"
	"github.com/nimasrn/loyalty-engine/pkg/prom"
)

// paidInactiveFactor scales the earn rate of a paid program for customers
// outside an active paid window.
const paidInactiveFactor = 0.5

const redemptionMessage = "You have redeemed %d points for: %s"

// TransactionService is the single entry point for earn and redemption. Each
// call runs in one database transaction and appends exactly one ledger entry.
type TransactionService struct {
	tx           Transactor
	businesses   BusinessRepository
	customers    CustomerRepository
	programs     ProgramRepository
	transactions TransactionRepository
	memberships  *MembershipService
	codes        CodeGenerator
	notifier     Notifier
	clock        clock.Clock
}

func NewTransactionService(
	tx Transactor,
	businesses BusinessRepository,
	customers CustomerRepository,
	programs ProgramRepository,
	transactions TransactionRepository,
	memberships *MembershipService,
	codes CodeGenerator,
	notifier Notifier,
	clk clock.Clock,
) *TransactionService {
	return &TransactionService{
		tx:           tx,
		businesses:   businesses,
		customers:    customers,
		programs:     programs,
		transactions: transactions,
		memberships:  memberships,
		codes:        codes,
		notifier:     notifier,
		clock:        clk,
	}
}

// ProcessEarn credits a purchase. Without a program the business's legacy rate
// applies to the customer's total only.
func (s *TransactionService) ProcessEarn(ctx context.Context, req model.EarnRequest) (*model.Transaction, error) {
	start := time.Now()
	if err := validAmount(req.AmountSpent); err != nil {
		prom.IncRejection("earn", "invalid_amount")
		return nil, err
	}

	var (
		created     *model.Transaction
		programType model.ProgramType
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		business, err := s.businesses.Get(ctx, req.BusinessID)
		if err != nil {
			return err
		}

		customer, isNew, err := s.customers.GetOrCreateByPhone(ctx, req.CustomerPhone, s.codes.NewCode)
		if err != nil {
			return fmt.Errorf("resolve customer: %w", err)
		}
		if isNew {
			logger.Info("customer created", "customer_id", customer.ID)
		}

		txn := &model.Transaction{
			BusinessID:  business.ID,
			CustomerID:  customer.ID,
			AmountSpent: req.AmountSpent,
			Type:        model.TransactionTypeEarn,
		}

		if req.ProgramID == nil {
			points, err := floorPoints(req.AmountSpent * business.LoyaltyRate)
			if err != nil {
				return err
			}
			if points > math.MaxInt64-customer.TotalPoints {
				return fmt.Errorf("%w: customer total would overflow", model.ErrInvalidAmount)
			}
			txn.PointsEarned = points
			if err := s.customers.AddPoints(ctx, customer.ID, txn.PointsEarned); err != nil {
				return fmt.Errorf("update customer total: %w", err)
			}
		} else {
			program, err := s.earnInProgram(ctx, business.ID, customer.ID, *req.ProgramID, txn)
			if err != nil {
				return err
			}
			programType = program.Type()
		}

		created, err = s.transactions.Create(ctx, txn)
		if err != nil {
			return fmt.Errorf("append transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		s.reject("earn", err)
		return nil, err
	}

	prom.AddTransaction(string(created.Type), string(programType), created.PointsEarned)
	prom.AddOperationDuration("earn", time.Since(start).Seconds())
	logger.Info("earn committed",
		"reference", created.Reference,
		"business_id", created.BusinessID,
		"customer_id", created.CustomerID,
		"program_type", programType,
		"points", created.PointsEarned,
		"cashback", created.CashbackAmount)
	return created, nil
}

// earnInProgram computes the award for the program variant, applies it to the
// membership and fills txn. It must run inside the caller's transaction.
func (s *TransactionService) earnInProgram(ctx context.Context, businessID, customerID, programID int64, txn *model.Transaction) (*model.LoyaltyProgram, error) {
	program, err := s.programs.Get(ctx, programID)
	if err != nil {
		return nil, err
	}
	if program.BusinessID != businessID {
		return nil, model.NewNotFound(model.EntityProgram)
	}
	if !program.Active {
		return nil, model.ErrProgramInactive
	}

	m, err := s.memberships.GetOrCreate(ctx, customerID, program.ID)
	if err != nil {
		return nil, err
	}
	txn.ProgramID = &program.ID

	amount := txn.AmountSpent
	switch v := program.Variant.(type) {
	case model.PointsProgram:
		txn.PointsEarned, err = floorPoints(amount * program.EarnRate)
	case model.TieredProgram:
		// the multiplier comes from the tier held before this purchase
		current := tier.Resolve(m.Points, v.Tiers)
		var base int64
		if base, err = floorPoints(amount * program.EarnRate); err == nil {
			txn.PointsEarned, err = floorPoints(float64(base) * tier.Multiplier(current))
		}
		txn.TierID = tier.ID(current)
	case model.PaidProgram:
		if m.PaidActiveAt(s.clock.Now()) {
			txn.PointsEarned, err = floorPoints(amount * program.EarnRate)
		} else {
			txn.PointsEarned, err = floorPoints(amount * program.EarnRate * paidInactiveFactor)
		}
	case model.CashbackProgram:
		// ledger only, no balance holds cashback
		txn.CashbackAmount = amount * (program.EarnRate / 100)
		if math.IsInf(txn.CashbackAmount, 0) {
			err = fmt.Errorf("%w: cashback is out of range", model.ErrInvalidAmount)
		}
	case model.ReferralProgram:
		return nil, &model.InvalidProgramTypeError{
			Expected: []model.ProgramType{
				model.ProgramTypePoints,
				model.ProgramTypeTiered,
				model.ProgramTypePaid,
				model.ProgramTypeCashback,
			},
			Actual: program.Type(),
		}
	default:
		return nil, fmt.Errorf("program %d has no variant", program.ID)
	}
	if err != nil {
		return nil, err
	}

	if err := s.memberships.AdjustBalance(ctx, m, txn.PointsEarned); err != nil {
		return nil, err
	}
	if _, err := s.memberships.SyncTier(ctx, m, program); err != nil {
		return nil, err
	}
	return program, nil
}

// ValidateRedemption checks a redemption against the balance read under lock.
func ValidateRedemption(available, requested int64) error {
	if requested <= 0 {
		return model.ErrInvalidAmount
	}
	if available < requested {
		return &model.InsufficientBalanceError{Available: available, Requested: requested}
	}
	return nil
}

// ProcessRedemption deducts points for a reward. With a program the membership
// balance is checked and both ledgers move; without one only the customer's
// total is checked and deducted. A rejected redemption changes nothing.
func (s *TransactionService) ProcessRedemption(ctx context.Context, req model.RedeemRequest) (*model.Transaction, error) {
	start := time.Now()
	if req.Points <= 0 {
		prom.IncRejection("redeem", "invalid_amount")
		return nil, model.ErrInvalidAmount
	}

	var (
		created     *model.Transaction
		programType model.ProgramType
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		customer, err := s.customers.LockByPhone(ctx, req.CustomerPhone)
		if err != nil {
			return err
		}

		txn := &model.Transaction{
			BusinessID:        req.BusinessID,
			CustomerID:        customer.ID,
			PointsEarned:      -req.Points,
			Type:              model.TransactionTypeRedemption,
			RewardDescription: req.RewardDescription,
		}

		if req.ProgramID == nil {
			if _, err := s.businesses.Get(ctx, req.BusinessID); err != nil {
				return err
			}
			if err := ValidateRedemption(customer.TotalPoints, req.Points); err != nil {
				return err
			}
			if err := s.customers.AddPoints(ctx, customer.ID, -req.Points); err != nil {
				return fmt.Errorf("update customer total: %w", err)
			}
		} else {
			m, err := s.memberships.Lock(ctx, customer.ID, *req.ProgramID)
			if err != nil {
				return err
			}
			program, err := s.programs.Get(ctx, *req.ProgramID)
			if err != nil {
				return err
			}
			if program.BusinessID != req.BusinessID {
				return model.NewNotFound(model.EntityProgram)
			}
			if err := ValidateRedemption(m.Points, req.Points); err != nil {
				return err
			}
			if err := s.memberships.AdjustBalance(ctx, m, -req.Points); err != nil {
				return err
			}
			if _, err := s.memberships.SyncTier(ctx, m, program); err != nil {
				return err
			}
			txn.ProgramID = &program.ID
			txn.TierID = m.CurrentTierID
			programType = program.Type()
		}

		created, err = s.transactions.Create(ctx, txn)
		if err != nil {
			return fmt.Errorf("append transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		s.reject("redeem", err)
		return nil, err
	}

	prom.AddTransaction(string(created.Type), string(programType), created.PointsEarned)
	prom.AddOperationDuration("redeem", time.Since(start).Seconds())
	logger.Info("redemption committed",
		"reference", created.Reference,
		"customer_id", created.CustomerID,
		"points", req.Points,
		"reward", req.RewardDescription)

	s.notify(ctx, req.CustomerPhone, fmt.Sprintf(redemptionMessage, req.Points, req.RewardDescription))
	return created, nil
}

func (s *TransactionService) notify(ctx context.Context, phone, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, phone, message); err != nil {
		prom.IncNotification("enqueue_failed")
		logger.Error("redemption notification failed", "error", err)
	}
}

func (s *TransactionService) reject(operation string, err error) {
	reason := rejectionReason(err)
	prom.IncRejection(operation, reason)
	if reason == "internal" {
		logger.Error(operation+" failed", "error", err)
		return
	}
	logger.Warn(operation+" rejected", "reason", reason, "error", err)
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	case errors.Is(err, model.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, model.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, model.ErrInvalidProgramType):
		return "invalid_program_type"
	case errors.Is(err, model.ErrProgramInactive):
		return "program_inactive"
	case errors.Is(err, model.ErrSelfReferral):
		return "self_referral"
	default:
		return "internal"
	}
}

func validAmount(amount float64) error {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return model.ErrInvalidAmount
	}
	return nil
}

// floorPoints truncates a computed award to whole points. Awards outside
// [0, MaxInt64) have no int64 value and fail with ErrInvalidAmount.
func floorPoints(v float64) (int64, error) {
	if math.IsNaN(v) || v < 0 || v >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: award of %g points is out of range", model.ErrInvalidAmount, v)
	}
	return int64(math.Floor(v)), nil
}
