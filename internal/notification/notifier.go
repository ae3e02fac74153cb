package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/nimasrn/loyalty-engine/internal/clock"
	"github.com/nimasrn/loyalty-engine/internal/model"
)

const KindRedemption = "redemption"

// Publisher is the write side of the notification stream.
type Publisher interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

// QueueNotifier hands customer messages to the notification stream. It
// returns once the entry is stored; delivery happens in the processor.
type QueueNotifier struct {
	publisher Publisher
	clock     clock.Clock
}

func NewQueueNotifier(publisher Publisher, clk clock.Clock) *QueueNotifier {
	return &QueueNotifier{publisher: publisher, clock: clk}
}

func (n *QueueNotifier) Notify(ctx context.Context, phone, message string) error {
	payload := model.Notification{
		ID:        uuid.NewString(),
		Phone:     phone,
		Message:   message,
		CreatedAt: n.clock.Now(),
	}

	if _, err := n.publisher.PublishJSON(ctx, payload, map[string]string{"kind": KindRedemption}); err != nil {
		return fmt.Errorf("enqueue notification for %s: %w", phone, err)
	}
	return nil
}
