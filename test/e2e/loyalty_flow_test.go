package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nimasrn/loyalty-engine/internal/clock"
	gateway "github.com/nimasrn/loyalty-engine/internal/gateways"
	"github.com/nimasrn/loyalty-engine/internal/handlers"
	"github.com/nimasrn/loyalty-engine/internal/model"
	"github.com/nimasrn/loyalty-engine/internal/notification"
	"github.com/nimasrn/loyalty-engine/internal/processor"
	"github.com/nimasrn/loyalty-engine/internal/queue"
	"github.com/nimasrn/loyalty-engine/internal/repository"
	"github.com/nimasrn/loyalty-engine/internal/services"
	xhttp "github.com/nimasrn/loyalty-engine/pkg/http"
	"github.com/nimasrn/loyalty-engine/pkg/pg"
	"github.com/nimasrn/loyalty-engine/test/fixtures"
	"github.com/nimasrn/loyalty-engine/test/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

// smsProvider is an in-memory SMS provider that accepts everything.
type smsProvider struct {
	mu       sync.Mutex
	received []gateway.SendRequest
	ln       *fasthttputil.InmemoryListener
}

func newSMSProvider(t *testing.T) *smsProvider {
	p := &smsProvider{ln: fasthttputil.NewInmemoryListener()}
	go func() {
		_ = fasthttp.Serve(p.ln, func(ctx *fasthttp.RequestCtx) {
			var req gateway.SendRequest
			if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
				ctx.SetStatusCode(fasthttp.StatusBadRequest)
				return
			}
			p.mu.Lock()
			p.received = append(p.received, req)
			p.mu.Unlock()

			body, _ := json.Marshal(gateway.SendResponse{NotificationID: req.NotificationID, Status: gateway.StatusAccepted})
			ctx.SetContentType("application/json")
			ctx.SetBody(body)
		})
	}()
	t.Cleanup(func() { _ = p.ln.Close() })
	return p
}

func (p *smsProvider) messages() []gateway.SendRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]gateway.SendRequest(nil), p.received...)
}

type testEnvironment struct {
	DB        *pg.DB
	Provider  *smsProvider
	Processor *processor.ProcessorService
	client    *fasthttp.Client
}

func setupE2EEnvironment(t *testing.T) *testEnvironment {
	db, _ := helpers.SetupTestDB(t)
	_, adapter := helpers.SetupTestRedis(t)

	queueConfig := queue.QueueConfig{
		Name:              "notifications",
		ConsumerGroup:     "sms-senders",
		ConsumerName:      "e2e",
		MaxRetries:        2,
		VisibilityTimeout: 2 * time.Second,
		PollInterval:      20 * time.Millisecond,
		BatchSize:         10,
		MaxLen:            1000,
		EnableDLQ:         true,
	}
	publisher, err := queue.NewQueue(adapter, queueConfig)
	require.NoError(t, err)

	clk := clock.New()
	codes := services.NewCodeGenerator(services.DefaultReferralCodeLength)

	businessRepo := repository.NewBusinessRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	programRepo := repository.NewProgramRepository(db)
	membershipRepo := repository.NewMembershipRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	rewardRepo := repository.NewRewardRepository(db)

	memberships := services.NewMembershipService(db, membershipRepo, customerRepo, programRepo, codes, clk)
	transactions := services.NewTransactionService(db, businessRepo, customerRepo, programRepo, transactionRepo,
		memberships, codes, notification.NewQueueNotifier(publisher, clk), clk)
	referrals := services.NewReferralService(db, customerRepo, programRepo, repository.NewReferralRepository(db), transactionRepo, memberships, codes)
	rewards := services.NewRewardService(customerRepo, programRepo, rewardRepo)

	s := xhttp.CreateServer()
	s.Use(xhttp.RecoverMiddleware)
	s.Use(xhttp.RequestIDMiddleware)
	g := s.Router.Group("/api/v1")
	handlers.RegisterTransactionRoutes(g, handlers.NewTransactionHandler(transactions))
	handlers.RegisterReferralRoutes(g, handlers.NewReferralHandler(referrals))
	handlers.RegisterProgramRoutes(g, handlers.NewProgramHandler(services.NewProgramService(programRepo, businessRepo),
		services.NewBusinessService(businessRepo), memberships, rewards))
	handlers.RegisterCustomerRoutes(g, handlers.NewCustomerHandler(services.NewCustomerService(customerRepo, transactionRepo), memberships, rewards))
	handlers.RegisterHealthRoutes(g, handlers.NewHealthHandler(services.NewHealthService(db)))

	apiLn := fasthttputil.NewInmemoryListener()
	go func() { _ = s.Serve(apiLn) }()

	provider := newSMSProvider(t)
	smsClient, err := gateway.NewClient(&gateway.Config{
		Providers:  []gateway.ProviderConfig{{Name: "primary", URL: "http://sms-primary"}},
		SenderID:   "LOYALTY",
		Timeout:    time.Second,
		MaxRetries: 1,
		RetryDelay: 10 * time.Millisecond,
		Dial:       func(addr string) (net.Conn, error) { return provider.ln.Dial() },
	})
	require.NoError(t, err)

	idempotency := processor.NewIdempotencyService(adapter, processor.DefaultIdempotencyConfig())
	svc, err := processor.NewProcessorService(adapter, processor.NewNotificationProcessor(smsClient, idempotency), processor.ServiceConfig{
		Queue:     queueConfig,
		Consumers: 2,
		Workers:   4,
	})
	require.NoError(t, err)
	require.NoError(t, svc.Start())

	t.Cleanup(func() {
		svc.Stop()
		_ = publisher.Stop(time.Second)
		s.Shutdown()
		_ = apiLn.Close()
	})

	return &testEnvironment{
		DB:        db,
		Provider:  provider,
		Processor: svc,
		client: &fasthttp.Client{
			Dial: func(addr string) (net.Conn, error) { return apiLn.Dial() },
		},
	}
}

func (env *testEnvironment) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(method)
	req.SetRequestURI("http://loyalty" + path)
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		req.Header.SetContentType("application/json")
		req.SetBody(b)
	}
	require.NoError(t, env.client.DoTimeout(req, resp, 5*time.Second))
	return resp.StatusCode(), append([]byte(nil), resp.Body()...)
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(body, &out), string(body))
	return out
}

func TestE2E_EarnRedeemAndNotify(t *testing.T) {
	env := setupE2EEnvironment(t)
	business := helpers.CreateTestBusiness(t, env.DB, "Corner Cafe", 0.01)

	status, body := env.do(t, "POST", "/api/v1/programs", model.ProgramCreateRequest{
		BusinessID: business.ID,
		Name:       "Coffee points",
		Type:       model.ProgramTypePoints,
		EarnRate:   1,
	})
	require.Equal(t, 201, status, string(body))
	programID := int64(decode[map[string]any](t, body)["id"].(float64))

	status, body = env.do(t, "POST", "/api/v1/transactions/earn",
		fixtures.EarnRequest(business.ID, fixtures.PhoneAlice, 120.75, &programID))
	require.Equal(t, 201, status, string(body))
	earned := decode[model.Transaction](t, body)
	assert.Equal(t, int64(120), earned.PointsEarned)
	assert.NotEmpty(t, earned.Reference)

	status, body = env.do(t, "GET", "/api/v1/customers/"+fixtures.PhoneAlice+"/points", nil)
	require.Equal(t, 200, status, string(body))
	assert.Equal(t, int64(120), decode[model.CustomerPoints](t, body).TotalPoints)

	status, body = env.do(t, "POST", fmt.Sprintf("/api/v1/programs/%d/rewards", programID), model.Reward{
		Name:           "Free coffee",
		PointsRequired: 100,
		IsActive:       true,
	})
	require.Equal(t, 201, status, string(body))

	status, body = env.do(t, "GET", fmt.Sprintf("/api/v1/customers/%s/rewards?business_id=%d", fixtures.PhoneAlice, business.ID), nil)
	require.Equal(t, 200, status, string(body))
	assert.Equal(t, float64(1), decode[map[string]any](t, body)["total"])

	status, body = env.do(t, "POST", "/api/v1/transactions/redeem",
		fixtures.RedeemRequest(business.ID, fixtures.PhoneAlice, 100, "Free coffee", &programID))
	require.Equal(t, 201, status, string(body))
	assert.Equal(t, int64(-100), decode[model.Transaction](t, body).PointsEarned)
	assert.Equal(t, int64(20), helpers.CustomerTotal(t, env.DB, fixtures.PhoneAlice))

	helpers.AssertEventually(t, 5*time.Second, func() bool {
		return len(env.Provider.messages()) == 1
	}, "redemption sms was not delivered")
	sms := env.Provider.messages()[0]
	assert.Equal(t, fixtures.PhoneAlice, sms.PhoneNumber)
	assert.Equal(t, "You have redeemed 100 points for: Free coffee", sms.Content)
	assert.Equal(t, "LOYALTY", sms.SenderID)

	status, body = env.do(t, "POST", "/api/v1/transactions/redeem",
		fixtures.RedeemRequest(business.ID, fixtures.PhoneAlice, 50, "Muffin", &programID))
	require.Equal(t, 409, status, string(body))
	rejected := decode[map[string]any](t, body)
	assert.Equal(t, float64(20), rejected["available"])
	assert.Equal(t, float64(50), rejected["requested"])
	assert.Equal(t, int64(20), helpers.CustomerTotal(t, env.DB, fixtures.PhoneAlice))

	// rejected redemptions do not notify
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, env.Provider.messages(), 1)
}

func TestE2E_LegacyEarnWithoutProgram(t *testing.T) {
	env := setupE2EEnvironment(t)
	business := helpers.CreateTestBusiness(t, env.DB, "Book Nook", 0.1)

	status, body := env.do(t, "POST", "/api/v1/transactions/earn",
		fixtures.EarnRequest(business.ID, fixtures.PhoneBob, 99, nil))
	require.Equal(t, 201, status, string(body))
	assert.Equal(t, int64(9), decode[model.Transaction](t, body).PointsEarned)

	for _, amount := range fixtures.InvalidAmounts {
		status, _ = env.do(t, "POST", "/api/v1/transactions/earn",
			fixtures.EarnRequest(business.ID, fixtures.PhoneBob, amount, nil))
		assert.Equal(t, 422, status, "amount %v", amount)
	}

	status, _ = env.do(t, "POST", "/api/v1/transactions/earn",
		fixtures.EarnRequest(business.ID+100, fixtures.PhoneBob, 10, nil))
	assert.Equal(t, 404, status)
	assert.Equal(t, int64(9), helpers.CustomerTotal(t, env.DB, fixtures.PhoneBob))
}

func TestE2E_ReferralFlow(t *testing.T) {
	env := setupE2EEnvironment(t)
	business := helpers.CreateTestBusiness(t, env.DB, "Gym", 0.01)
	program := helpers.CreateTestProgram(t, env.DB, fixtures.ReferralProgram(business.ID, 50))

	for _, phone := range []string{fixtures.PhoneAlice, fixtures.PhoneBob} {
		status, body := env.do(t, "POST", "/api/v1/transactions/earn", fixtures.EarnRequest(business.ID, phone, 100, nil))
		require.Equal(t, 201, status, string(body))
	}
	before := helpers.CustomerTotal(t, env.DB, fixtures.PhoneAlice)

	status, body := env.do(t, "POST", "/api/v1/referrals", model.ReferralRequest{
		ReferrerPhone: fixtures.PhoneAlice,
		ReferredPhone: fixtures.PhoneBob,
		BusinessID:    business.ID,
		ProgramID:     program.ID,
	})
	require.Equal(t, 201, status, string(body))
	assert.Equal(t, int64(50), decode[model.Referral](t, body).PointsAwarded)
	assert.Equal(t, before+50, helpers.CustomerTotal(t, env.DB, fixtures.PhoneAlice))

	status, body = env.do(t, "GET", "/api/v1/customers/"+fixtures.PhoneBob+"/referral-code", nil)
	require.Equal(t, 200, status, string(body))
	code := decode[map[string]string](t, body)["referral_code"]
	require.Len(t, code, services.DefaultReferralCodeLength)

	status, body = env.do(t, "GET", "/api/v1/referral-codes/"+code, nil)
	require.Equal(t, 200, status, string(body))
	assert.Equal(t, fixtures.PhoneBob, decode[model.Customer](t, body).PhoneNumber)

	status, _ = env.do(t, "POST", "/api/v1/referrals", model.ReferralRequest{
		ReferrerPhone: fixtures.PhoneAlice,
		ReferredPhone: fixtures.PhoneAlice,
		BusinessID:    business.ID,
		ProgramID:     program.ID,
	})
	assert.Equal(t, 400, status)
}

func TestE2E_PaidEnrollment(t *testing.T) {
	env := setupE2EEnvironment(t)
	business := helpers.CreateTestBusiness(t, env.DB, "Cinema", 0.01)
	paid := helpers.CreateTestProgram(t, env.DB, fixtures.PaidProgram(business.ID, 9.99))
	points := helpers.CreateTestProgram(t, env.DB, fixtures.PointsProgram(business.ID, 1))

	status, body := env.do(t, "POST", fmt.Sprintf("/api/v1/programs/%d/enroll", paid.ID), map[string]any{
		"business_id":    business.ID,
		"customer_phone": fixtures.PhoneCarol,
	})
	require.Equal(t, 200, status, string(body))
	m := decode[model.Membership](t, body)
	assert.True(t, m.IsPaidMember)
	require.NotNil(t, m.MembershipEnd)

	status, _ = env.do(t, "POST", fmt.Sprintf("/api/v1/programs/%d/enroll", points.ID), map[string]any{
		"business_id":    business.ID,
		"customer_phone": fixtures.PhoneCarol,
	})
	assert.Equal(t, 400, status)

	status, body = env.do(t, "GET", fmt.Sprintf("/api/v1/customers/%s/memberships?business_id=%d", fixtures.PhoneCarol, business.ID), nil)
	require.Equal(t, 200, status, string(body))
	assert.Equal(t, float64(1), decode[map[string]any](t, body)["total"])
}

func TestE2E_ConcurrentRedemptionsNeverOverdraw(t *testing.T) {
	env := setupE2EEnvironment(t)
	business := helpers.CreateTestBusiness(t, env.DB, "Bakery", 0.01)
	program := helpers.CreateTestProgram(t, env.DB, fixtures.PointsProgram(business.ID, 1))

	status, body := env.do(t, "POST", "/api/v1/transactions/earn",
		fixtures.EarnRequest(business.ID, fixtures.PhoneAlice, 50, &program.ID))
	require.Equal(t, 201, status, string(body))

	var (
		wg       sync.WaitGroup
		accepted atomic.Int32
		rejected atomic.Int32
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, _ := env.do(t, "POST", "/api/v1/transactions/redeem",
				fixtures.RedeemRequest(business.ID, fixtures.PhoneAlice, 10, "Bread", &program.ID))
			switch status {
			case 201:
				accepted.Add(1)
			case 409:
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), accepted.Load())
	assert.Equal(t, int32(5), rejected.Load())
	assert.Equal(t, int64(0), helpers.CustomerTotal(t, env.DB, fixtures.PhoneAlice))

	helpers.AssertEventually(t, 5*time.Second, func() bool {
		return len(env.Provider.messages()) == 5
	}, "every accepted redemption should produce one sms")
}

func TestE2E_Health(t *testing.T) {
	env := setupE2EEnvironment(t)

	status, body := env.do(t, "GET", "/api/v1/health", nil)
	assert.Equal(t, 200, status)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, env.DB.Ping(ctx))
}
