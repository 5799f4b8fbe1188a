package events

import (
	"bidvault/internal/models"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer writes auction events to Kafka.
// Events are keyed by auction id so one auction's events stay on one partition, in order.
type Producer struct {
	w *kafka.Writer
}

// NewProducer creates a producer that waits for all in-sync replicas
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			MaxAttempts:  5,
			WriteTimeout: 5 * time.Second,
			ReadTimeout:  5 * time.Second,
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

// Close releases the writer
func (p *Producer) Close() error { return p.w.Close() }

// Publish synchronously writes one event
func (p *Producer) Publish(ctx context.Context, event models.AuctionEvent) error {
	msg, err := encodeKafkaEvent(event)
	if err != nil {
		return err
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish %s: %w", event.ID, err)
	}
	return nil
}

func encodeKafkaEvent(event models.AuctionEvent) (kafka.Message, error) {
	b, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode event %s: %w", event.ID, err)
	}
	return kafka.Message{
		Key:   []byte(event.AuctionID),
		Value: b,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}, nil
}
