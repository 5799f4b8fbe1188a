package helpers

import (
	auction "bidvault/internal/auctionService"
	"bidvault/internal/models"
	"time"

	"github.com/shopspring/decimal"
)

// Request/Response DTOs

// PlaceBidRequest is the body of a bid. The bidder is the authenticated caller.
type PlaceBidRequest struct {
	AuctionID string          `json:"auction_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
}

type BidResponse struct {
	BidID     string          `json:"bid_id"`
	AuctionID string          `json:"auction_id"`
	BidderID  string          `json:"bidder_id"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt string          `json:"created_at"`
}

// NewBidResponse formats a stored bid for the API
func NewBidResponse(bid models.Bid) BidResponse {
	return BidResponse{
		BidID:     bid.ID,
		AuctionID: bid.AuctionID,
		BidderID:  bid.BidderID,
		Amount:    bid.Amount,
		CreatedAt: bid.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type CreateAuctionRequest struct {
	Title         string              `json:"title" binding:"required"`
	Description   string              `json:"description"`
	Images        []string            `json:"images"`
	StartingPrice decimal.Decimal     `json:"starting_price"`
	MinIncrement  decimal.NullDecimal `json:"min_increment"`
	ReservePrice  decimal.NullDecimal `json:"reserve_price"`
	BuyNowPrice   decimal.NullDecimal `json:"buy_now_price"`
	StartTime     *time.Time          `json:"start_time"`
	EndTime       time.Time           `json:"end_time"`
}

// Input converts the request into service input
func (r CreateAuctionRequest) Input() auction.CreateAuctionInput {
	return auction.CreateAuctionInput{
		Title:         r.Title,
		Description:   r.Description,
		Images:        r.Images,
		StartingPrice: r.StartingPrice,
		MinIncrement:  r.MinIncrement,
		ReservePrice:  r.ReservePrice,
		BuyNowPrice:   r.BuyNowPrice,
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
	}
}

type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}
