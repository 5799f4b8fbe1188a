package events

import (
	"bidvault/internal/models"
	"bidvault/utils"
	"context"
	"fmt"
	"time"
)

// emitTimeout bounds how long a committed transition waits on its publisher
const emitTimeout = 3 * time.Second

// Publisher hands a committed auction event to whatever delivers notifications
type Publisher interface {
	Publish(ctx context.Context, event models.AuctionEvent) error
}

// PublisherFunc adapts a function to Publisher
type PublisherFunc func(ctx context.Context, event models.AuctionEvent) error

func (f PublisherFunc) Publish(ctx context.Context, event models.AuctionEvent) error {
	return f(ctx, event)
}

// Emit publishes event after its transaction committed. The caller's cancellation does not
// abort the publish, and failures are logged, never returned: the transition already happened.
func Emit(ctx context.Context, p Publisher, event models.AuctionEvent) {
	if p == nil {
		return
	}
	if event.ID == "" {
		event.ID = utils.GenerateID()
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), emitTimeout)
	defer cancel()

	if err := p.Publish(ctx, event); err != nil {
		utils.Warn("Failed to publish auction event", map[string]any{
			"event_id":   event.ID,
			"event_type": event.Type,
			"auction_id": event.AuctionID,
			"error":      err.Error(),
		})
		return
	}
	utils.Debug("Auction event published", map[string]any{
		"event_id":   event.ID,
		"event_type": event.Type,
		"auction_id": event.AuctionID,
	})
}

// NotificationStore is the part of the account store the notification path writes to
type NotificationStore interface {
	CreateNotifications(ctx context.Context, notifications []models.Notification) error
}

// InlinePublisher turns events into notifications and stores them in the same process
type InlinePublisher struct {
	store NotificationStore
}

// NewInlinePublisher creates a publisher that needs no broker
func NewInlinePublisher(store NotificationStore) *InlinePublisher {
	return &InlinePublisher{store: store}
}

// Publish stores the notifications derived from event
func (p *InlinePublisher) Publish(ctx context.Context, event models.AuctionEvent) error {
	notifications := NotificationsFor(event)
	if len(notifications) == 0 {
		return nil
	}
	if err := p.store.CreateNotifications(ctx, notifications); err != nil {
		return fmt.Errorf("inline publish %s for auction %s: %w", event.Type, event.AuctionID, err)
	}
	utils.Debug("Notifications stored", map[string]any{"event_id": event.ID, "type": event.Type, "count": len(notifications)})
	return nil
}
