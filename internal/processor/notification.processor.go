package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gateway "github.com/nimasrn/loyalty-engine/internal/gateways"
	"github.com/nimasrn/loyalty-engine/internal/model"
	"github.com/nimasrn/loyalty-engine/internal/queue"
	"github.com/nimasrn/loyalty-engine/pkg/logger"
	"github.com/nimasrn/loyalty-engine/pkg/prom"
)

const (
	NotificationSent      = "sent"
	NotificationRejected  = "rejected"
	NotificationRetry     = "retry"
	NotificationFailed    = "failed"
	NotificationDuplicate = "duplicate"
	NotificationMalformed = "malformed"
)

type SMSSender interface {
	SendSMS(ctx context.Context, req *gateway.SendRequest) (*gateway.SendResponse, error)
}

// NotificationProcessor delivers stream notifications as SMS.
type NotificationProcessor struct {
	sender      SMSSender
	idempotency *IdempotencyService
}

func NewNotificationProcessor(sender SMSSender, idempotency *IdempotencyService) *NotificationProcessor {
	return &NotificationProcessor{
		sender:      sender,
		idempotency: idempotency,
	}
}

func (p *NotificationProcessor) GetType() string {
	return "notification"
}

// Process returns nil when the entry should be acknowledged and an error when
// it should stay pending for another delivery.
func (p *NotificationProcessor) Process(ctx context.Context, msg *queue.Message) error {
	var n model.Notification
	if err := json.Unmarshal(msg.Data, &n); err != nil || n.ID == "" || n.Phone == "" {
		prom.IncNotification(NotificationMalformed)
		logger.Error("malformed notification", "stream_id", msg.ID, "error", err)
		// left pending until it reaches the dead letter stream
		return fmt.Errorf("malformed notification %s: %v", msg.ID, err)
	}

	pc, err := p.idempotency.AcquireProcessingLock(ctx, n.ID)
	switch {
	case err == nil:
	case errors.Is(err, ErrAlreadyProcessed):
		prom.IncNotification(NotificationDuplicate)
		logger.Info("notification already delivered", "notification_id", n.ID)
		return nil
	case errors.Is(err, ErrMaxRetriesExceeded):
		prom.IncNotification(NotificationFailed)
		logger.Error("giving up on notification", "notification_id", n.ID, "phone", n.Phone, "error", err)
		return nil
	default:
		// another consumer holds the lock, or redis is unreachable
		return err
	}
	defer p.idempotency.ReleaseLock(ctx, pc)

	res, err := p.sender.SendSMS(ctx, &gateway.SendRequest{
		NotificationID: n.ID,
		PhoneNumber:    n.Phone,
		Content:        n.Message,
	})
	if errors.Is(err, gateway.ErrRejected) {
		prom.IncNotification(NotificationRejected)
		logger.Warn("notification rejected by provider", "notification_id", n.ID, "phone", n.Phone, "error", err)
		// the provider's answer is final, do not send it again
		if markErr := p.idempotency.MarkSuccess(ctx, pc); markErr != nil {
			logger.Error("failed to mark notification", "notification_id", n.ID, "error", markErr)
		}
		return nil
	}
	if err != nil {
		prom.IncNotification(NotificationRetry)
		if markErr := p.idempotency.MarkFailure(ctx, pc, err); markErr != nil {
			logger.Error("failed to record notification failure", "notification_id", n.ID, "error", markErr)
		}
		return err
	}

	if err := p.idempotency.MarkSuccess(ctx, pc); err != nil {
		// the SMS went out; a redelivery would be caught by the provider's message id
		logger.Error("failed to mark notification delivered", "notification_id", n.ID, "error", err)
	}

	prom.IncNotification(NotificationSent)
	if !n.CreatedAt.IsZero() {
		prom.AddOperationDuration("notification_delivery", time.Since(n.CreatedAt).Seconds())
	}
	logger.Info("notification delivered",
		"notification_id", n.ID,
		"phone", n.Phone,
		"provider", res.Provider,
		"retry_count", pc.RetryCount)
	return nil
}
