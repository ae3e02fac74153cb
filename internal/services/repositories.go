package services

import (
	"context"
	"time"

	"github.com/nimasrn/loyalty-engine/internal/model"
)

// Transactor runs fn inside one database transaction. Nested calls join the
// transaction already carried by ctx.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type CustomerRepository interface {
	GetOrCreateByPhone(ctx context.Context, phone string, newCode func() string) (*model.Customer, bool, error)
	GetByPhone(ctx context.Context, phone string) (*model.Customer, error)
	GetByReferralCode(ctx context.Context, code string) (*model.Customer, error)
	LockByPhone(ctx context.Context, phone string) (*model.Customer, error)
	LockByID(ctx context.Context, id int64) (*model.Customer, error)
	AddPoints(ctx context.Context, id int64, delta int64) error
	ReferralCodeExists(ctx context.Context, code string) (bool, error)
	SetReferralCode(ctx context.Context, id int64, code string) error
}

type BusinessRepository interface {
	Get(ctx context.Context, id int64) (*model.Business, error)
	UpdateLoyaltyRate(ctx context.Context, id int64, rate float64) error
}

type ProgramRepository interface {
	Create(ctx context.Context, p *model.LoyaltyProgram) (*model.LoyaltyProgram, error)
	Get(ctx context.Context, id int64) (*model.LoyaltyProgram, error)
	ListByBusiness(ctx context.Context, businessID int64) ([]*model.LoyaltyProgram, error)
	Update(ctx context.Context, p *model.LoyaltyProgram) error
	SetActive(ctx context.Context, id int64, active bool) error
}

type MembershipRepository interface {
	GetOrCreate(ctx context.Context, customerID, programID int64) (*model.Membership, error)
	Lock(ctx context.Context, customerID, programID int64) (*model.Membership, error)
	AddPoints(ctx context.Context, id int64, delta int64) error
	SetTier(ctx context.Context, id int64, tierID *int64) error
	SetPaidWindow(ctx context.Context, id int64, start, end time.Time) error
	ListForBusiness(ctx context.Context, customerID, businessID int64) ([]*model.Membership, error)
}

type TransactionRepository interface {
	Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
	ListRecentByCustomer(ctx context.Context, customerID int64, limit int) ([]*model.Transaction, error)
}

type ReferralRepository interface {
	Create(ctx context.Context, ref *model.Referral) (*model.Referral, error)
}

type RewardRepository interface {
	Create(ctx context.Context, reward *model.Reward) (*model.Reward, error)
	ListAvailable(ctx context.Context, customerID, businessID int64) ([]*model.Reward, error)
	ListActiveByProgram(ctx context.Context, programID int64) ([]*model.Reward, error)
}

// Notifier delivers a text message to a customer. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, phone, message string) error
}
