package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nimasrn/loyalty-engine/pkg/logger"
	"github.com/valyala/fasthttp"
)

const sendPath = "/api/v1/sms/send"

var (
	ErrNoAvailableProviders = errors.New("no available providers")
	ErrRejected             = errors.New("sms rejected by provider")
)

type DeliveryStatus string

const (
	StatusAccepted  DeliveryStatus = "ACCEPTED"
	StatusDelivered DeliveryStatus = "DELIVERED"
	StatusFailed    DeliveryStatus = "FAILED"
)

type SendRequest struct {
	NotificationID string `json:"message_id"`
	PhoneNumber    string `json:"phone_number"`
	Content        string `json:"content"`
	SenderID       string `json:"sender_id,omitempty"`
}

type SendResponse struct {
	NotificationID string         `json:"message_id"`
	Status         DeliveryStatus `json:"status"`
	ErrorCode      string         `json:"error_code,omitempty"`
	ErrorMsg       string         `json:"error_message,omitempty"`
	Provider       string         `json:"-"`
}

// Sent reports whether the provider took responsibility for the SMS.
func (r *SendResponse) Sent() bool {
	return r.Status == StatusAccepted || r.Status == StatusDelivered
}

type Provider struct {
	name             string
	url              string
	client           *fasthttp.Client
	consecutiveFails atomic.Int32
	circuitOpenUntil atomic.Int64
	sent             atomic.Int64
	failed           atomic.Int64
}

func NewProvider(name, url string, client *fasthttp.Client) *Provider {
	return &Provider{name: name, url: url, client: client}
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) IsAvailable(now time.Time) bool {
	return now.UnixNano() >= p.circuitOpenUntil.Load()
}

func (p *Provider) recordSuccess() {
	p.sent.Add(1)
	p.consecutiveFails.Store(0)
}

// recordFailure returns the number of failures in a row.
func (p *Provider) recordFailure() int32 {
	p.failed.Add(1)
	return p.consecutiveFails.Add(1)
}

type Config struct {
	Providers               []ProviderConfig
	SenderID                string
	Timeout                 time.Duration
	MaxRetries              int
	RetryDelay              time.Duration
	MaxConns                int
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration
	// Dial overrides the network dialer, used to run against in-memory listeners.
	Dial fasthttp.DialFunc
}

type ProviderConfig struct {
	Name string
	URL  string
}

// Client sends SMS through the configured providers in order, failing over
// to the next one when a provider errors or its circuit is open.
type Client struct {
	config    Config
	providers []*Provider
	now       func() time.Time
	mu        sync.RWMutex
}

func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if len(config.Providers) == 0 {
		return nil, errors.New("at least one provider is required")
	}

	cfg := *config
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.CircuitBreakerThreshold <= 0 {
		cfg.CircuitBreakerThreshold = 5
	}
	if cfg.CircuitBreakerTimeout <= 0 {
		cfg.CircuitBreakerTimeout = 30 * time.Second
	}

	c := &Client{config: cfg, now: time.Now}
	for _, pc := range cfg.Providers {
		if pc.URL == "" {
			continue
		}
		httpClient := &fasthttp.Client{
			MaxConnsPerHost:     cfg.MaxConns,
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
			MaxIdleConnDuration: time.Minute,
			Dial:                cfg.Dial,
		}
		c.providers = append(c.providers, NewProvider(pc.Name, pc.URL, httpClient))
		logger.Info("sms provider initialized", "name", pc.Name, "url", pc.URL)
	}
	if len(c.providers) == 0 {
		return nil, errors.New("at least one provider needs a url")
	}

	return c, nil
}

func (c *Client) available() []*Provider {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	out := make([]*Provider, 0, len(c.providers))
	for _, p := range c.providers {
		if p.IsAvailable(now) {
			out = append(out, p)
		}
	}
	return out
}

// SendSMS tries every available provider once per attempt. A provider that
// answers with a rejection is final and is not retried elsewhere.
func (c *Client) SendSMS(ctx context.Context, req *SendRequest) (*SendResponse, error) {
	if req.SenderID == "" {
		req.SenderID = c.config.SenderID
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	lastErr := ErrNoAvailableProviders
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		for _, provider := range c.available() {
			resp, err := c.send(ctx, provider, body)
			if err != nil {
				c.fail(provider, err)
				lastErr = err
				continue
			}
			provider.recordSuccess()

			if !resp.Sent() {
				return resp, fmt.Errorf("%w: %s %s", ErrRejected, resp.ErrorCode, resp.ErrorMsg)
			}
			logger.Info("sms handed to provider",
				"notification_id", req.NotificationID,
				"provider", provider.name,
				"status", string(resp.Status),
				"attempt", attempt+1)
			return resp, nil
		}
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

func (c *Client) send(ctx context.Context, provider *Provider, body []byte) (*SendResponse, error) {
	req := fasthttp.AcquireRequest()
	res := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(res)

	req.SetRequestURI(provider.url + sendPath)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}
	if err := provider.client.DoDeadline(req, res, deadline); err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", provider.name, err)
	}

	status := res.StatusCode()
	if status != fasthttp.StatusOK && status != fasthttp.StatusAccepted {
		return nil, fmt.Errorf("%s answered %d: %s", provider.name, status, res.Body())
	}

	var out SendResponse
	if err := json.Unmarshal(res.Body(), &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response from %s: %w", provider.name, err)
	}
	out.Provider = provider.name
	return &out, nil
}

func (c *Client) fail(provider *Provider, err error) {
	fails := provider.recordFailure()
	logger.Warn("sms provider request failed", "provider", provider.name, "consecutive_fails", fails, "error", err)

	if fails >= int32(c.config.CircuitBreakerThreshold) {
		provider.circuitOpenUntil.Store(c.now().Add(c.config.CircuitBreakerTimeout).UnixNano())
		provider.consecutiveFails.Store(0)
		logger.Warn("circuit breaker opened", "provider", provider.name, "timeout", c.config.CircuitBreakerTimeout)
	}
}

type ProviderStats struct {
	Name        string
	Sent        int64
	Failed      int64
	CircuitOpen bool
}

func (c *Client) GetProviderStats() []ProviderStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	stats := make([]ProviderStats, 0, len(c.providers))
	for _, p := range c.providers {
		stats = append(stats, ProviderStats{
			Name:        p.name,
			Sent:        p.sent.Load(),
			Failed:      p.failed.Load(),
			CircuitOpen: !p.IsAvailable(now),
		})
	}
	return stats
}
