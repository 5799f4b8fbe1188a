package events

import (
	"bidvault/internal/models"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var occurred = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNotificationsFor(t *testing.T) {
	t.Parallel()

	base := models.AuctionEvent{
		ID:           "ev1",
		AuctionID:    "a1",
		AuctionTitle: "Vintage camera",
		SellerID:     "seller1",
		Amount:       decimal.NewFromInt(130),
		OccurredAt:   occurred,
	}
	with := func(mutate func(e *models.AuctionEvent)) models.AuctionEvent {
		e := base
		mutate(&e)
		return e
	}
	want := func(userID string, kind models.NotificationType) models.Notification {
		return models.Notification{UserID: userID, Type: kind, RelatedID: "a1", CreatedAt: occurred}
	}

	tests := []struct {
		name  string
		event models.AuctionEvent
		want  []models.Notification
	}{
		{
			name: "first_bid_notifies_nobody",
			event: with(func(e *models.AuctionEvent) {
				e.Type = models.EventBidPlaced
				e.BidderID = "user1"
			}),
			want: nil,
		},
		{
			name: "outbid_previous_bidder",
			event: with(func(e *models.AuctionEvent) {
				e.Type = models.EventBidPlaced
				e.BidderID = "user2"
				e.PreviousBidderID = "user1"
			}),
			want: []models.Notification{want("user1", models.NotificationOutbid)},
		},
		{
			name: "raising_own_bid_is_silent",
			event: with(func(e *models.AuctionEvent) {
				e.Type = models.EventBidPlaced
				e.BidderID = "user1"
				e.PreviousBidderID = "user1"
			}),
			want: nil,
		},
		{
			name: "sold",
			event: with(func(e *models.AuctionEvent) {
				e.Type = models.EventAuctionClosed
				e.BidderID = "user2"
				e.Sold = true
			}),
			want: []models.Notification{want("user2", models.NotificationWon), want("seller1", models.NotificationEnded)},
		},
		{
			name: "unsold_without_bids",
			event: with(func(e *models.AuctionEvent) {
				e.Type = models.EventAuctionClosed
			}),
			want: []models.Notification{want("seller1", models.NotificationEnded)},
		},
		{
			name: "reserve_not_met",
			event: with(func(e *models.AuctionEvent) {
				e.Type = models.EventAuctionClosed
				e.BidderID = "user2"
			}),
			want: []models.Notification{want("seller1", models.NotificationEnded), want("user2", models.NotificationEnded)},
		},
		{
			name:  "unknown_type",
			event: with(func(e *models.AuctionEvent) { e.Type = "auction_paused" }),
			want:  nil,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := NotificationsFor(tc.event)
			diff := cmp.Diff(tc.want, got, cmpopts.IgnoreFields(models.Notification{}, "ID", "Message"), cmpopts.EquateEmpty())
			require.Empty(t, diff)
			for _, n := range got {
				require.NotEmpty(t, n.Message)
			}
		})
	}
}

func TestNotificationsFor_StableIDs(t *testing.T) {
	t.Parallel()

	event := models.AuctionEvent{
		ID:               "ev1",
		Type:             models.EventBidPlaced,
		AuctionID:        "a1",
		BidderID:         "user2",
		PreviousBidderID: "user1",
		Amount:           decimal.NewFromInt(120),
	}

	first := NotificationsFor(event)
	second := NotificationsFor(event)
	require.Len(t, first, 1)
	require.Equal(t, first[0].ID, second[0].ID, "redelivery must map to the same notification")

	event.ID = "ev2"
	require.NotEqual(t, first[0].ID, NotificationsFor(event)[0].ID)
}
