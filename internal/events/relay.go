package events

import (
	"bidvault/utils"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	relayBatch     = 16
	relayBlock     = 2 * time.Second
	relayBackoff   = 300 * time.Millisecond
	publishTimeout = 5 * time.Second
)

// Relay forwards events from the Redis Stream outbox to a sink (Kafka in production).
// An entry is acked only after the sink accepted it, so a failed publish is retried.
// Entries that cannot be decoded are acked and dropped so they do not block the stream.
type Relay struct {
	rdb  *redis.Client
	sink Publisher

	stream   string
	group    string
	consumer string
}

// NewRelay creates a relay reading stream through a consumer group
func NewRelay(rdb *redis.Client, sink Publisher, stream, group, consumer string) *Relay {
	return &Relay{
		rdb:      rdb,
		sink:     sink,
		stream:   stream,
		group:    group,
		consumer: consumer,
	}
}

// Run relays events until ctx is cancelled
func (r *Relay) Run(ctx context.Context) error {
	if err := r.ensureGroup(ctx); err != nil {
		return fmt.Errorf("relay: ensure group: %w", err)
	}
	utils.Info("Event relay started", map[string]any{"stream": r.stream, "group": r.group, "consumer": r.consumer})

	for {
		if ctx.Err() != nil {
			utils.Info("Event relay stopped", nil)
			return nil
		}
		if _, err := r.step(ctx, relayBlock); err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				continue
			}
			utils.Warn("Event relay step failed", map[string]any{"error": err.Error()})
			select {
			case <-ctx.Done():
			case <-time.After(relayBackoff):
			}
		}
	}
}

// step drains this consumer's pending entries first, then waits up to block for new ones.
// It returns how many entries were forwarded or dropped.
func (r *Relay) step(ctx context.Context, block time.Duration) (int, error) {
	msgs, err := r.readGroup(ctx, "0", 0)
	if err != nil {
		return 0, fmt.Errorf("read pending: %w", err)
	}
	if len(msgs) == 0 {
		msgs, err = r.readGroup(ctx, ">", block)
		if err != nil {
			return 0, fmt.Errorf("read new: %w", err)
		}
	}

	done := 0
	for _, xm := range msgs {
		if err := r.processOne(ctx, xm); err != nil {
			// stop at the first failure so later entries are not delivered ahead of it
			return done, fmt.Errorf("process %s: %w", xm.ID, err)
		}
		done++
	}
	return done, nil
}

func (r *Relay) ensureGroup(ctx context.Context) error {
	err := r.rdb.XGroupCreateMkStream(ctx, r.stream, r.group, "0").Err()
	if err == nil || strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	return err
}

func (r *Relay) readGroup(ctx context.Context, streamID string, block time.Duration) ([]redis.XMessage, error) {
	args := &redis.XReadGroupArgs{
		Group:    r.group,
		Consumer: r.consumer,
		Streams:  []string{r.stream, streamID},
		Count:    relayBatch,
		Block:    block,
	}
	if block == 0 {
		// go-redis treats Block 0 as "block forever"; a negative value omits BLOCK
		args.Block = -1
	}

	streams, err := r.rdb.XReadGroup(ctx, args).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]redis.XMessage, 0, relayBatch)
	for _, s := range streams {
		out = append(out, s.Messages...)
	}
	return out, nil
}

func (r *Relay) processOne(ctx context.Context, xm redis.XMessage) error {
	event, err := parseStreamEvent(xm.Values)
	if err != nil {
		utils.Warn("Dropping malformed outbox entry", map[string]any{"entry_id": xm.ID, "error": err.Error()})
		if ackErr := r.ackAndDelete(ctx, xm.ID); ackErr != nil {
			return fmt.Errorf("parse failed: %v, ack failed: %w", err, ackErr)
		}
		return nil
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := r.sink.Publish(pubCtx, event); err != nil {
		return err
	}
	utils.Debug("Outbox entry forwarded", map[string]any{"entry_id": xm.ID, "event_id": event.ID, "type": event.Type})
	return r.ackAndDelete(ctx, xm.ID)
}

func (r *Relay) ackAndDelete(ctx context.Context, id string) error {
	pipe := r.rdb.TxPipeline()
	pipe.XAck(ctx, r.stream, r.group, id)
	pipe.XDel(ctx, r.stream, id)
	_, err := pipe.Exec(ctx)
	return err
}
