package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType names a committed auction state transition
type EventType string

const (
	EventBidPlaced     EventType = "bid_placed"
	EventAuctionClosed EventType = "auction_closed"
)

// AuctionEvent is emitted once per committed transition, after the transaction succeeds.
// For bid_placed, BidderID is the new high bidder and PreviousBidderID the one displaced.
// For auction_closed, BidderID is the final high bidder (empty when nobody bid) and Sold
// reports whether a settlement was created.
type AuctionEvent struct {
	ID               string          `json:"id"`
	Type             EventType       `json:"type"`
	AuctionID        string          `json:"auction_id"`
	AuctionTitle     string          `json:"auction_title"`
	SellerID         string          `json:"seller_id"`
	BidderID         string          `json:"bidder_id,omitempty"`
	PreviousBidderID string          `json:"previous_bidder_id,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	Sold             bool            `json:"sold"`
	OccurredAt       time.Time       `json:"occurred_at"`
}
