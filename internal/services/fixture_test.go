package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nimasrn/loyalty-engine/internal/clock"
	"github.com/nimasrn/loyalty-engine/internal/model"
	"github.com/nimasrn/loyalty-engine/internal/repository"
	"github.com/nimasrn/loyalty-engine/pkg/pg"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages map[string][]string
	err      error
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{messages: make(map[string][]string)}
}

func (n *recordingNotifier) Notify(_ context.Context, phone, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.messages[phone] = append(n.messages[phone], message)
	return nil
}

func (n *recordingNotifier) sent(phone string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages[phone]...)
}

type fixedCodes struct {
	mu    sync.Mutex
	codes []string
	next  int
}

func (g *fixedCodes) NewCode() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	code := g.codes[g.next%len(g.codes)]
	g.next++
	return code
}

type engine struct {
	raw   *gorm.DB
	db    *pg.DB
	clock *clock.FakeClock
	notes *recordingNotifier

	customerRepo   *repository.CustomerRepository
	businessRepo   *repository.BusinessRepository
	programRepo    *repository.ProgramRepository
	membershipRepo *repository.MembershipRepository
	txnRepo        *repository.TransactionRepository

	memberships  *MembershipService
	transactions *TransactionService
	referrals    *ReferralService
}

func newEngine(t *testing.T) *engine {
	raw, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := raw.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, raw.AutoMigrate(repository.Entities()...))

	db := pg.New(raw, raw)
	e := &engine{
		raw:            raw,
		db:             db,
		clock:          clock.NewFakeClock(time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)),
		notes:          newRecordingNotifier(),
		customerRepo:   repository.NewCustomerRepository(db),
		businessRepo:   repository.NewBusinessRepository(db),
		programRepo:    repository.NewProgramRepository(db),
		membershipRepo: repository.NewMembershipRepository(db),
		txnRepo:        repository.NewTransactionRepository(db),
	}
	codes := NewCodeGenerator(DefaultReferralCodeLength)

	e.memberships = NewMembershipService(db, e.membershipRepo, e.customerRepo, e.programRepo, codes, e.clock)
	e.transactions = NewTransactionService(db, e.businessRepo, e.customerRepo, e.programRepo, e.txnRepo, e.memberships, codes, e.notes, e.clock)
	e.referrals = NewReferralService(db, e.customerRepo, e.programRepo, repository.NewReferralRepository(db), e.txnRepo, e.memberships, codes)
	return e
}

func (e *engine) business(t *testing.T, rate float64) *model.Business {
	b, err := e.businessRepo.Create(context.Background(), &model.Business{Name: "Corner Cafe", LoyaltyRate: rate})
	require.NoError(t, err)
	return b
}

func (e *engine) program(t *testing.T, businessID int64, rate float64, variant model.ProgramVariant) *model.LoyaltyProgram {
	p, err := e.programRepo.Create(context.Background(), &model.LoyaltyProgram{
		BusinessID: businessID,
		Name:       string(variant.ProgramType()) + " program",
		EarnRate:   rate,
		Active:     true,
		Variant:    variant,
	})
	require.NoError(t, err)
	got, err := e.programRepo.Get(context.Background(), p.ID)
	require.NoError(t, err)
	return got
}

func (e *engine) customer(t *testing.T, phone string, total int64) *model.Customer {
	entity := &repository.CustomerEntity{PhoneNumber: phone, TotalPoints: total}
	require.NoError(t, e.raw.Create(entity).Error)
	c, err := e.customerRepo.GetByPhone(context.Background(), phone)
	require.NoError(t, err)
	return c
}

// member gives the customer a membership holding points, mirrored in the total.
func (e *engine) member(t *testing.T, customerID, programID, points int64) *model.Membership {
	ctx := context.Background()
	m, err := e.membershipRepo.GetOrCreate(ctx, customerID, programID)
	require.NoError(t, err)
	if points != 0 {
		require.NoError(t, e.membershipRepo.AddPoints(ctx, m.ID, points))
		require.NoError(t, e.customerRepo.AddPoints(ctx, customerID, points))
	}
	return e.membershipOf(t, customerID, programID)
}

func (e *engine) membershipOf(t *testing.T, customerID, programID int64) *model.Membership {
	m, err := e.membershipRepo.Get(context.Background(), customerID, programID)
	require.NoError(t, err)
	return m
}

func (e *engine) totalOf(t *testing.T, phone string) int64 {
	c, err := e.customerRepo.GetByPhone(context.Background(), phone)
	require.NoError(t, err)
	return c.TotalPoints
}

func (e *engine) ledgerSize(t *testing.T) int64 {
	var n int64
	require.NoError(t, e.raw.Model(&repository.TransactionEntity{}).Count(&n).Error)
	return n
}

func ptr[T any](v T) *T {
	return &v
}

func repositoryRewards(e *engine) *repository.RewardRepository {
	return repository.NewRewardRepository(e.db)
}
