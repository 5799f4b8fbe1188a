package events

import (
	"bidvault/internal/models"
	"bidvault/internal/repository"
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestEmit(t *testing.T) {
	t.Parallel()

	t.Run("assigns_id_and_survives_cancellation", func(t *testing.T) {
		t.Parallel()

		var got []models.AuctionEvent
		p := PublisherFunc(func(ctx context.Context, event models.AuctionEvent) error {
			require.NoError(t, ctx.Err(), "the publish context must not inherit the caller's cancellation")
			got = append(got, event)
			return nil
		})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		Emit(ctx, p, models.AuctionEvent{Type: models.EventBidPlaced, AuctionID: "a1"})

		require.Len(t, got, 1)
		require.NotEmpty(t, got[0].ID)
	})

	t.Run("failure_is_swallowed", func(t *testing.T) {
		t.Parallel()

		calls := 0
		p := PublisherFunc(func(context.Context, models.AuctionEvent) error {
			calls++
			return errors.New("broker down")
		})
		require.NotPanics(t, func() {
			Emit(context.Background(), p, models.AuctionEvent{Type: models.EventBidPlaced, AuctionID: "a1"})
		})
		require.Equal(t, 1, calls)
	})

	t.Run("nil_publisher", func(t *testing.T) {
		t.Parallel()
		require.NotPanics(t, func() {
			Emit(context.Background(), nil, models.AuctionEvent{Type: models.EventBidPlaced})
		})
	})
}

func TestInlinePublisher(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := repository.NewMemoryRepo()
	p := NewInlinePublisher(repo)

	event := models.AuctionEvent{
		ID:               "ev1",
		Type:             models.EventBidPlaced,
		AuctionID:        "a1",
		AuctionTitle:     "Clock",
		BidderID:         "user2",
		PreviousBidderID: "user1",
		Amount:           decimal.NewFromInt(120),
		OccurredAt:       occurred,
	}
	require.NoError(t, p.Publish(ctx, event))

	page, total, err := repo.ListNotifications(ctx, "user1", 10, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, models.NotificationOutbid, page[0].Type)
	require.Equal(t, "a1", page[0].RelatedID)
	require.Contains(t, page[0].Message, "120.00")

	// the same event again collides with the stored rows
	err = p.Publish(ctx, event)
	require.Error(t, err)

	// an event that notifies nobody is a no-op
	require.NoError(t, p.Publish(ctx, models.AuctionEvent{ID: "ev2", Type: models.EventBidPlaced, AuctionID: "a1", BidderID: "user1"}))
}
