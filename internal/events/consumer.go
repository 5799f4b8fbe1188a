package events

import (
	"bidvault/internal/biddingerrors"
	"bidvault/internal/models"
	"bidvault/utils"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
)

const storeAttempts = 3

// messageReader is the part of *kafka.Reader the consumer uses
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NotificationConsumer reads auction events from Kafka and stores the notifications they cause
type NotificationConsumer struct {
	reader  messageReader
	store   NotificationStore
	backoff time.Duration
}

// NewNotificationConsumer creates a consumer group member on topic
func NewNotificationConsumer(brokers []string, topic, groupID string, store NotificationStore) *NotificationConsumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	})
	return &NotificationConsumer{reader: r, store: store, backoff: 500 * time.Millisecond}
}

// Close releases the reader
func (c *NotificationConsumer) Close() error { return c.reader.Close() }

// Run consumes until ctx is cancelled. Offsets are committed after the notifications are stored.
func (c *NotificationConsumer) Run(ctx context.Context) error {
	utils.Info("Notification consumer started", nil)
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				utils.Info("Notification consumer stopped", nil)
				return nil
			}
			// a broker outage must not stop the process; the reader reconnects on the next fetch
			utils.Warn("Failed to fetch auction event", map[string]any{"error": err.Error()})
			select {
			case <-ctx.Done():
			case <-time.After(c.backoff):
			}
			continue
		}

		c.handle(ctx, m)

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			utils.Warn("Failed to commit event offset", map[string]any{"offset": m.Offset, "error": err.Error()})
		}
	}
}

// handle stores the notifications for one message. Malformed messages are logged and skipped.
func (c *NotificationConsumer) handle(ctx context.Context, m kafka.Message) {
	var event models.AuctionEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		utils.Warn("Skipping undecodable event", map[string]any{"offset": m.Offset, "error": err.Error()})
		return
	}
	if err := validateEvent(event); err != nil {
		utils.Warn("Skipping invalid event", map[string]any{"offset": m.Offset, "error": err.Error()})
		return
	}

	notifications := NotificationsFor(event)
	if len(notifications) == 0 {
		return
	}

	var err error
	for attempt := 1; attempt <= storeAttempts; attempt++ {
		err = c.store.CreateNotifications(ctx, notifications)
		if err == nil || errors.Is(err, biddingerrors.ErrConflict) {
			// a conflict means a redelivered event whose rows already exist
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.backoff):
		}
	}
	utils.Error("Failed to store notifications", map[string]any{
		"event_id":   event.ID,
		"auction_id": event.AuctionID,
		"error":      err.Error(),
	})
}
