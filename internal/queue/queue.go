package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nimasrn/loyalty-engine/pkg/logger"
	"github.com/nimasrn/loyalty-engine/pkg/redis"
)

const (
	fieldData        = "data"
	fieldPublishedAt = "published_at"
	metaPrefix       = "meta_"
	dlqSuffix        = ":dlq"
	pendingScanLimit = 100
)

type Message struct {
	ID          string
	Data        []byte
	Metadata    map[string]string
	PublishedAt time.Time
	// Attempts is the delivery number of this read, starting at 1.
	Attempts int
}

// MessageHandler processes one message. A nil error acknowledges it; any
// error leaves it pending so it is claimed again after the visibility timeout.
type MessageHandler func(ctx context.Context, msg *Message) error

type QueueConfig struct {
	Name          string
	ConsumerGroup string
	ConsumerName  string
	// MaxRetries is the number of redeliveries after the first attempt
	// before a message is moved to the dead letter stream.
	MaxRetries        int
	VisibilityTimeout time.Duration
	PollInterval      time.Duration
	BatchSize         int64
	MaxLen            int64
	EnableDLQ         bool
}

func (c QueueConfig) DeadLetterName() string {
	return c.Name + dlqSuffix
}

type Queue struct {
	adapter redis.RedisAdapter
	config  QueueConfig
	handler MessageHandler
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type QueueStats struct {
	TotalMessages   int64
	PendingMessages int64
	DeadLettered    int64
}

func NewQueue(adapter redis.RedisAdapter, config QueueConfig) (*Queue, error) {
	if config.Name == "" {
		return nil, errors.New("queue name is required")
	}
	if config.ConsumerGroup == "" {
		config.ConsumerGroup = "default-group"
	}
	if config.ConsumerName == "" {
		config.ConsumerName = fmt.Sprintf("consumer-%d", time.Now().UnixNano())
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.VisibilityTimeout <= 0 {
		config.VisibilityTimeout = 30 * time.Second
	}
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 10
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		adapter: adapter,
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
	}

	err := adapter.XGroupCreateMkStream(ctx, config.Name, config.ConsumerGroup, "0")
	if err != nil && !redis.IsBusyGroup(err) {
		cancel()
		return nil, fmt.Errorf("failed to create consumer group %s: %w", config.ConsumerGroup, err)
	}

	return q, nil
}

func (q *Queue) Config() QueueConfig {
	return q.config
}

func (q *Queue) Publish(ctx context.Context, data []byte, metadata map[string]string) (string, error) {
	values := map[string]interface{}{
		fieldData:        string(data),
		fieldPublishedAt: strconv.FormatInt(time.Now().UnixNano(), 10),
	}
	for k, v := range metadata {
		values[metaPrefix+k] = v
	}

	id, err := q.adapter.XAdd(ctx, q.config.Name, values, q.config.MaxLen)
	if err != nil {
		return "", fmt.Errorf("failed to publish message: %w", err)
	}
	return id, nil
}

func (q *Queue) PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return q.Publish(ctx, payload, metadata)
}

// Consume starts the poll loop in the background. It may be called once.
func (q *Queue) Consume(handler MessageHandler) error {
	if handler == nil {
		return errors.New("message handler is required")
	}
	if q.handler != nil {
		return errors.New("queue is already consuming")
	}

	q.handler = handler
	q.wg.Add(1)
	go q.consumeLoop()

	logger.Info("queue consumer started",
		"queue", q.config.Name,
		"group", q.config.ConsumerGroup,
		"consumer", q.config.ConsumerName)
	return nil
}

func (q *Queue) consumeLoop() {
	defer q.wg.Done()

	ticker := time.NewTicker(q.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			q.readNew()
			q.reclaimStale()
		}
	}
}

func (q *Queue) readNew() {
	messages, err := q.adapter.XReadGroup(q.ctx, q.config.ConsumerGroup, q.config.ConsumerName, q.config.Name, q.config.BatchSize)
	if err != nil {
		if !errors.Is(err, redis.NilError) && q.ctx.Err() == nil {
			logger.Error("failed to read from queue", "queue", q.config.Name, "error", err)
		}
		return
	}

	for _, sm := range messages {
		msg := toMessage(sm)
		msg.Attempts = 1
		q.handle(msg)
	}
}

// reclaimStale takes over entries that stayed unacknowledged longer than the
// visibility timeout, whichever consumer they were delivered to.
func (q *Queue) reclaimStale() {
	pending, err := q.adapter.XPendingEntries(q.ctx, q.config.Name, q.config.ConsumerGroup, pendingScanLimit)
	if err != nil {
		if !errors.Is(err, redis.NilError) && q.ctx.Err() == nil {
			logger.Warn("failed to list pending entries", "queue", q.config.Name, "error", err)
		}
		return
	}

	deliveries := make(map[string]int64)
	var ids []string
	for _, p := range pending {
		if p.Idle >= q.config.VisibilityTimeout {
			ids = append(ids, p.ID)
			deliveries[p.ID] = p.RetryCount
		}
	}
	if len(ids) == 0 {
		return
	}

	messages, err := q.adapter.XClaim(q.ctx, q.config.Name, q.config.ConsumerGroup, q.config.ConsumerName, q.config.VisibilityTimeout, ids...)
	if err != nil {
		logger.Warn("failed to claim pending entries", "queue", q.config.Name, "count", len(ids), "error", err)
		return
	}

	for _, sm := range messages {
		msg := toMessage(sm)
		// the claim itself is one more delivery
		msg.Attempts = int(deliveries[sm.ID]) + 1
		q.handle(msg)
	}
}

func (q *Queue) handle(msg *Message) {
	if msg.Attempts > q.config.MaxRetries+1 {
		q.deadLetter(msg)
		return
	}

	ctx, cancel := context.WithTimeout(q.ctx, q.config.VisibilityTimeout)
	defer cancel()

	if err := q.handler(ctx, msg); err != nil {
		logger.Warn("message handling failed, left pending",
			"queue", q.config.Name,
			"message_id", msg.ID,
			"attempt", msg.Attempts,
			"error", err)
		return
	}

	if err := q.ack(msg.ID); err != nil {
		logger.Error("failed to ack message", "queue", q.config.Name, "message_id", msg.ID, "error", err)
	}
}

func (q *Queue) ack(id string) error {
	return q.adapter.XAck(q.ctx, q.config.Name, q.config.ConsumerGroup, id)
}

func (q *Queue) deadLetter(msg *Message) {
	if q.config.EnableDLQ {
		values := map[string]interface{}{
			fieldData:        string(msg.Data),
			"original_id":    msg.ID,
			"attempts":       strconv.Itoa(msg.Attempts - 1),
			"failed_at":      strconv.FormatInt(time.Now().UnixNano(), 10),
			"original_queue": q.config.Name,
		}
		for k, v := range msg.Metadata {
			values[metaPrefix+k] = v
		}
		if _, err := q.adapter.XAdd(q.ctx, q.config.DeadLetterName(), values, 0); err != nil {
			// keep it pending rather than lose it
			logger.Error("failed to move message to dead letter queue", "queue", q.config.Name, "message_id", msg.ID, "error", err)
			return
		}
	}

	logger.Warn("message dead lettered",
		"queue", q.config.Name,
		"message_id", msg.ID,
		"attempts", msg.Attempts-1,
		"dlq_enabled", q.config.EnableDLQ)

	if err := q.ack(msg.ID); err != nil {
		logger.Error("failed to ack dead lettered message", "queue", q.config.Name, "message_id", msg.ID, "error", err)
	}
}

func toMessage(sm redis.StreamMessage) *Message {
	msg := &Message{
		ID:       sm.ID,
		Metadata: make(map[string]string),
	}

	for k, v := range sm.Values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		switch {
		case k == fieldData:
			msg.Data = []byte(s)
		case k == fieldPublishedAt:
			if ns, err := strconv.ParseInt(s, 10, 64); err == nil {
				msg.PublishedAt = time.Unix(0, ns)
			}
		case strings.HasPrefix(k, metaPrefix):
			msg.Metadata[strings.TrimPrefix(k, metaPrefix)] = s
		}
	}
	return msg
}

func (q *Queue) Stop(timeout time.Duration) error {
	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.New("timeout waiting for queue to stop")
	}
}

func (q *Queue) GetStats(ctx context.Context) (*QueueStats, error) {
	total, err := q.adapter.XLen(ctx, q.config.Name)
	if err != nil {
		return nil, err
	}

	stats := &QueueStats{TotalMessages: total}

	pending, err := q.adapter.XPendingCount(ctx, q.config.Name, q.config.ConsumerGroup)
	if err != nil {
		logger.Warn("failed to read pending count", "queue", q.config.Name, "error", err)
	} else {
		stats.PendingMessages = pending
	}

	if q.config.EnableDLQ {
		if dead, err := q.adapter.XLen(ctx, q.config.DeadLetterName()); err == nil {
			stats.DeadLettered = dead
		}
	}
	return stats, nil
}
