package events

import (
	"bidvault/internal/models"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// streamMaxLen caps the outbox; the relay normally keeps it near empty
const streamMaxLen = 100000

// StreamPublisher appends events to a Redis Stream acting as the outbox in front of Kafka
type StreamPublisher struct {
	rdb    *redis.Client
	stream string
}

// NewStreamPublisher creates a publisher writing to stream
func NewStreamPublisher(rdb *redis.Client, stream string) *StreamPublisher {
	return &StreamPublisher{rdb: rdb, stream: stream}
}

// Publish appends event to the stream
func (p *StreamPublisher) Publish(ctx context.Context, event models.AuctionEvent) error {
	values, err := encodeStreamEvent(event)
	if err != nil {
		return err
	}
	err = p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: values,
	}).Err()
	if err != nil {
		return fmt.Errorf("stream publish %s: %w", event.ID, err)
	}
	return nil
}

func encodeStreamEvent(event models.AuctionEvent) (map[string]any, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", event.ID, err)
	}
	return map[string]any{
		"event_id":   event.ID,
		"type":       string(event.Type),
		"auction_id": event.AuctionID,
		"payload":    string(payload),
	}, nil
}

// parseStreamEvent rebuilds an event from stream values and rejects anything malformed
func parseStreamEvent(values map[string]any) (models.AuctionEvent, error) {
	payload, err := getStreamString(values, "payload")
	if err != nil {
		return models.AuctionEvent{}, err
	}
	var event models.AuctionEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return models.AuctionEvent{}, fmt.Errorf("invalid payload: %w", err)
	}
	if err := validateEvent(event); err != nil {
		return models.AuctionEvent{}, err
	}
	return event, nil
}

func validateEvent(event models.AuctionEvent) error {
	if event.ID == "" {
		return fmt.Errorf("event id is required")
	}
	if event.AuctionID == "" {
		return fmt.Errorf("auction_id is required")
	}
	switch event.Type {
	case models.EventBidPlaced, models.EventAuctionClosed:
		return nil
	}
	return fmt.Errorf("unknown event type %q", event.Type)
}

func getStreamString(values map[string]any, key string) (string, error) {
	v, ok := values[key]
	if !ok {
		return "", fmt.Errorf("missing field %s", key)
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	default:
		return "", fmt.Errorf("unsupported field type %s: %T", key, v)
	}
}
