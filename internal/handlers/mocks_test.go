package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/nimasrn/loyalty-engine/internal/model"
	xhttp "github.com/nimasrn/loyalty-engine/pkg/http"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

type MockTransactionService struct {
	mock.Mock
}

func (m *MockTransactionService) ProcessEarn(ctx context.Context, req model.EarnRequest) (*model.Transaction, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

func (m *MockTransactionService) ProcessRedemption(ctx context.Context, req model.RedeemRequest) (*model.Transaction, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

type MockReferralService struct {
	mock.Mock
}

func (m *MockReferralService) ProcessReferral(ctx context.Context, req model.ReferralRequest) (*model.Referral, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Referral), args.Error(1)
}

func (m *MockReferralService) ReferralCode(ctx context.Context, phone string) (string, error) {
	args := m.Called(ctx, phone)
	return args.String(0), args.Error(1)
}

func (m *MockReferralService) CustomerByCode(ctx context.Context, code string) (*model.Customer, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Customer), args.Error(1)
}

type MockProgramService struct {
	mock.Mock
}

func (m *MockProgramService) Create(ctx context.Context, req model.ProgramCreateRequest) (*model.LoyaltyProgram, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LoyaltyProgram), args.Error(1)
}

func (m *MockProgramService) Get(ctx context.Context, id int64) (*model.LoyaltyProgram, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LoyaltyProgram), args.Error(1)
}

func (m *MockProgramService) ListByBusiness(ctx context.Context, businessID int64) ([]*model.LoyaltyProgram, error) {
	args := m.Called(ctx, businessID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.LoyaltyProgram), args.Error(1)
}

func (m *MockProgramService) Update(ctx context.Context, id int64, req model.ProgramUpdateRequest) (*model.LoyaltyProgram, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LoyaltyProgram), args.Error(1)
}

func (m *MockProgramService) SetActive(ctx context.Context, id int64, active bool) error {
	return m.Called(ctx, id, active).Error(0)
}

type MockBusinessService struct {
	mock.Mock
}

func (m *MockBusinessService) SetLoyaltyRate(ctx context.Context, id int64, rate float64) error {
	return m.Called(ctx, id, rate).Error(0)
}

type MockEnrollmentService struct {
	mock.Mock
}

func (m *MockEnrollmentService) Enroll(ctx context.Context, businessID int64, phone string, programID int64) (*model.Membership, error) {
	args := m.Called(ctx, businessID, phone, programID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Membership), args.Error(1)
}

type MockRewardService struct {
	mock.Mock
}

func (m *MockRewardService) Create(ctx context.Context, reward *model.Reward) (*model.Reward, error) {
	args := m.Called(ctx, reward)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Reward), args.Error(1)
}

func (m *MockRewardService) ListByProgram(ctx context.Context, programID int64) ([]*model.Reward, error) {
	args := m.Called(ctx, programID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Reward), args.Error(1)
}

func (m *MockRewardService) Available(ctx context.Context, phone string, businessID int64) ([]*model.Reward, error) {
	args := m.Called(ctx, phone, businessID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Reward), args.Error(1)
}

type MockCustomerService struct {
	mock.Mock
}

func (m *MockCustomerService) Points(ctx context.Context, phone string) (*model.CustomerPoints, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CustomerPoints), args.Error(1)
}

type MockMembershipLister struct {
	mock.Mock
}

func (m *MockMembershipLister) ListForBusiness(ctx context.Context, phone string, businessID int64) ([]*model.Membership, error) {
	args := m.Called(ctx, phone, businessID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Membership), args.Error(1)
}

type MockHealthService struct {
	mock.Mock
}

func (m *MockHealthService) Get() error {
	return m.Called().Error(0)
}

func setupTestContext(method, path string, body []byte) *xhttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if body != nil {
		ctx.Request.SetBody(body)
	}
	return ctx
}

func jsonBody(t *testing.T, v any) []byte {
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func decodeBody[T any](t *testing.T, ctx *xhttp.RequestCtx) T {
	var out T
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &out))
	return out
}
