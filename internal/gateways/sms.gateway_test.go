package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

// fakeProviders serves in-memory SMS providers keyed by host:port.
type fakeProviders map[string]*fasthttputil.InmemoryListener

func (f fakeProviders) serve(t *testing.T, addr string, handler fasthttp.RequestHandler) {
	ln := fasthttputil.NewInmemoryListener()
	f[addr] = ln
	go func() { _ = fasthttp.Serve(ln, handler) }()
	t.Cleanup(func() { _ = ln.Close() })
}

func (f fakeProviders) dial(addr string) (net.Conn, error) {
	ln, ok := f[addr]
	if !ok {
		return nil, fmt.Errorf("no provider at %s", addr)
	}
	return ln.Dial()
}

func answer(status DeliveryStatus, hits *int32) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		atomic.AddInt32(hits, 1)
		var req SendRequest
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
			ctx.SetStatusCode(fasthttp.StatusBadRequest)
			return
		}
		body, _ := json.Marshal(SendResponse{NotificationID: req.NotificationID, Status: status})
		ctx.SetContentType("application/json")
		ctx.SetBody(body)
	}
}

func failing(hits *int32) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		atomic.AddInt32(hits, 1)
		ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
	}
}

func newTestClient(t *testing.T, f fakeProviders, providers ...ProviderConfig) *Client {
	c, err := NewClient(&Config{
		Providers:               providers,
		SenderID:                "LOYALTY",
		Timeout:                 time.Second,
		MaxRetries:              1,
		RetryDelay:              10 * time.Millisecond,
		CircuitBreakerThreshold: 2,
		CircuitBreakerTimeout:   time.Minute,
		Dial:                    f.dial,
	})
	require.NoError(t, err)
	return c
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(nil)
	assert.Error(t, err)

	_, err = NewClient(&Config{})
	assert.Error(t, err)

	_, err = NewClient(&Config{Providers: []ProviderConfig{{Name: "secondary"}}})
	assert.Error(t, err, "a provider without url is skipped")

	c, err := NewClient(&Config{Providers: []ProviderConfig{{Name: "primary", URL: "http://primary"}, {Name: "secondary"}}})
	require.NoError(t, err)
	assert.Len(t, c.GetProviderStats(), 1)
}

func TestClient_SendSMS_Primary(t *testing.T) {
	f := fakeProviders{}
	var primaryHits, secondaryHits int32
	f.serve(t, "primary:80", answer(StatusAccepted, &primaryHits))
	f.serve(t, "secondary:80", answer(StatusAccepted, &secondaryHits))

	c := newTestClient(t, f,
		ProviderConfig{Name: "primary", URL: "http://primary"},
		ProviderConfig{Name: "secondary", URL: "http://secondary"})

	resp, err := c.SendSMS(context.Background(), &SendRequest{NotificationID: "n-1", PhoneNumber: "+15550001", Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "n-1", resp.NotificationID)
	assert.Equal(t, "primary", resp.Provider)
	assert.True(t, resp.Sent())
	assert.Equal(t, int32(1), atomic.LoadInt32(&primaryHits))
	assert.Equal(t, int32(0), atomic.LoadInt32(&secondaryHits))
}

func TestClient_SendSMS_FailsOver(t *testing.T) {
	f := fakeProviders{}
	var primaryHits, secondaryHits int32
	f.serve(t, "primary:80", failing(&primaryHits))
	f.serve(t, "secondary:80", answer(StatusDelivered, &secondaryHits))

	c := newTestClient(t, f,
		ProviderConfig{Name: "primary", URL: "http://primary"},
		ProviderConfig{Name: "secondary", URL: "http://secondary"})

	for i := 0; i < 3; i++ {
		resp, err := c.SendSMS(context.Background(), &SendRequest{NotificationID: fmt.Sprintf("n-%d", i), PhoneNumber: "+15550001"})
		require.NoError(t, err)
		assert.Equal(t, "secondary", resp.Provider)
	}

	// the circuit opens after two failures and the primary is skipped
	assert.Equal(t, int32(2), atomic.LoadInt32(&primaryHits))
	assert.Equal(t, int32(3), atomic.LoadInt32(&secondaryHits))

	stats := c.GetProviderStats()
	require.Len(t, stats, 2)
	assert.True(t, stats[0].CircuitOpen)
	assert.Equal(t, int64(2), stats[0].Failed)
	assert.Equal(t, int64(3), stats[1].Sent)
}

func TestClient_SendSMS_AllFail(t *testing.T) {
	f := fakeProviders{}
	var hits int32
	f.serve(t, "primary:80", failing(&hits))

	c := newTestClient(t, f, ProviderConfig{Name: "primary", URL: "http://primary"})

	_, err := c.SendSMS(context.Background(), &SendRequest{NotificationID: "n-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 2 attempts")
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))

	// circuit is open now
	_, err = c.SendSMS(context.Background(), &SendRequest{NotificationID: "n-2"})
	assert.ErrorIs(t, err, ErrNoAvailableProviders)
}

func TestClient_SendSMS_Rejected(t *testing.T) {
	f := fakeProviders{}
	var primaryHits, secondaryHits int32
	f.serve(t, "primary:80", answer(StatusFailed, &primaryHits))
	f.serve(t, "secondary:80", answer(StatusAccepted, &secondaryHits))

	c := newTestClient(t, f,
		ProviderConfig{Name: "primary", URL: "http://primary"},
		ProviderConfig{Name: "secondary", URL: "http://secondary"})

	resp, err := c.SendSMS(context.Background(), &SendRequest{NotificationID: "n-1"})
	assert.ErrorIs(t, err, ErrRejected)
	require.NotNil(t, resp)
	assert.Equal(t, StatusFailed, resp.Status)
	assert.Equal(t, int32(0), atomic.LoadInt32(&secondaryHits))
}

func TestClient_CircuitCloses(t *testing.T) {
	f := fakeProviders{}
	var hits int32
	f.serve(t, "primary:80", failing(&hits))

	c := newTestClient(t, f, ProviderConfig{Name: "primary", URL: "http://primary"})
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_, _ = c.SendSMS(context.Background(), &SendRequest{NotificationID: "n-1"})
	assert.Empty(t, c.available())

	now = now.Add(time.Minute)
	assert.Len(t, c.available(), 1)
}
