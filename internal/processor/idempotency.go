package processor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nimasrn/loyalty-engine/pkg/logger"
	"github.com/nimasrn/loyalty-engine/pkg/redis"
)

var (
	ErrAlreadyProcessed   = errors.New("notification already delivered")
	ErrLockAcquireFailed  = errors.New("failed to acquire processing lock")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")
)

type IdempotencyConfig struct {
	LockTTL      time.Duration
	ProcessedTTL time.Duration
	MaxRetries   int

	RetryKeyPrefix     string
	LockKeyPrefix      string
	ProcessedKeyPrefix string
}

func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		LockTTL:            30 * time.Second,
		ProcessedTTL:       24 * time.Hour,
		MaxRetries:         3,
		RetryKeyPrefix:     "notify:retry:",
		LockKeyPrefix:      "notify:lock:",
		ProcessedKeyPrefix: "notify:processed:",
	}
}

// IdempotencyService makes sure a notification is handed to the SMS
// provider at most once even when its stream entry is delivered again.
type IdempotencyService struct {
	redis  redis.RedisAdapter
	config IdempotencyConfig
}

func NewIdempotencyService(redisAdapter redis.RedisAdapter, config IdempotencyConfig) *IdempotencyService {
	return &IdempotencyService{
		redis:  redisAdapter,
		config: config,
	}
}

type ProcessingContext struct {
	NotificationID string
	RetryCount     int
	lockAcquired   bool
}

func (pc *ProcessingContext) IsRetry() bool {
	return pc.RetryCount > 0
}

func (s *IdempotencyService) AcquireProcessingLock(ctx context.Context, id string) (*ProcessingContext, error) {
	processed, err := s.redis.Exists(ctx, s.config.ProcessedKeyPrefix+id)
	if err != nil {
		// a duplicate SMS is preferable to a lost one
		logger.Warn("failed to check processed marker", "notification_id", id, "error", err)
	} else if processed {
		return nil, ErrAlreadyProcessed
	}

	retryCount, err := s.GetRetryCount(ctx, id)
	if err != nil {
		logger.Warn("failed to read retry counter", "notification_id", id, "error", err)
	}
	if retryCount >= s.config.MaxRetries {
		return nil, fmt.Errorf("%w: notification_id=%s, retries=%d", ErrMaxRetriesExceeded, id, retryCount)
	}

	lockValue := []byte(strconv.FormatInt(time.Now().UnixNano(), 10))
	acquired, err := s.redis.SetNX(ctx, s.config.LockKeyPrefix+id, lockValue, s.config.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLockAcquireFailed, err)
	}
	if !acquired {
		return nil, ErrLockAcquireFailed
	}

	logger.Debug("processing lock acquired", "notification_id", id, "retry_count", retryCount)

	return &ProcessingContext{
		NotificationID: id,
		RetryCount:     retryCount,
		lockAcquired:   true,
	}, nil
}

// MarkSuccess records the delivery and clears the lock and retry counter.
func (s *IdempotencyService) MarkSuccess(ctx context.Context, pc *ProcessingContext) error {
	id := pc.NotificationID
	if err := s.redis.Set(ctx, s.config.ProcessedKeyPrefix+id, []byte("1"), s.config.ProcessedTTL); err != nil {
		return fmt.Errorf("failed to mark as processed: %w", err)
	}

	if err := s.redis.Del(ctx, s.config.LockKeyPrefix+id, s.config.RetryKeyPrefix+id); err != nil {
		logger.Warn("failed to clean up idempotency keys", "notification_id", id, "error", err)
	}
	pc.lockAcquired = false
	return nil
}

// MarkFailure bumps the retry counter and releases the lock so the next
// delivery of the entry can try again.
func (s *IdempotencyService) MarkFailure(ctx context.Context, pc *ProcessingContext, reason error) error {
	id := pc.NotificationID
	retries, err := s.redis.IncrWithTTL(ctx, s.config.RetryKeyPrefix+id, s.config.ProcessedTTL)
	if err != nil {
		logger.Error("failed to increment retry counter", "notification_id", id, "error", err)
	}

	releaseErr := s.ReleaseLock(ctx, pc)

	logger.Warn("notification delivery failed",
		"notification_id", id,
		"retry_count", retries,
		"max_retries", s.config.MaxRetries,
		"reason", reason)

	if err != nil {
		return err
	}
	return releaseErr
}

func (s *IdempotencyService) ReleaseLock(ctx context.Context, pc *ProcessingContext) error {
	if pc == nil || !pc.lockAcquired {
		return nil
	}
	if err := s.redis.Del(ctx, s.config.LockKeyPrefix+pc.NotificationID); err != nil {
		logger.Warn("failed to release lock", "notification_id", pc.NotificationID, "error", err)
		return err
	}
	pc.lockAcquired = false
	return nil
}

func (s *IdempotencyService) GetRetryCount(ctx context.Context, id string) (int, error) {
	raw, err := s.redis.Get(ctx, s.config.RetryKeyPrefix+id)
	if err != nil {
		if errors.Is(err, redis.NilError) {
			return 0, nil
		}
		return 0, err
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, fmt.Errorf("corrupt retry counter for %s: %w", id, err)
	}
	return n, nil
}

func (s *IdempotencyService) IsProcessed(ctx context.Context, id string) (bool, error) {
	return s.redis.Exists(ctx, s.config.ProcessedKeyPrefix+id)
}
