package main

import (
	"context"
	"fmt"
	"time"

	auction "bidvault/internal/auctionService"
	"bidvault/utils"

	"github.com/shopspring/decimal"
)

// seedDemoData creates a few open auctions, one with a reserve, and a couple of bids on the first
func seedDemoData(ctx context.Context, a *app) error {
	now := time.Now().UTC()
	demo := []struct {
		seller string
		input  auction.CreateAuctionInput
	}{
		{"demo-seller-1", auction.CreateAuctionInput{
			Title:         "Vintage film camera",
			Description:   "35mm rangefinder, recently serviced",
			StartingPrice: decimal.NewFromInt(100),
			EndTime:       now.Add(2 * time.Hour),
		}},
		{"demo-seller-1", auction.CreateAuctionInput{
			Title:         "Mechanical wristwatch",
			Description:   "Automatic movement, original box",
			StartingPrice: decimal.NewFromInt(200),
			MinIncrement:  decimal.NewNullDecimal(decimal.NewFromInt(25)),
			ReservePrice:  decimal.NewNullDecimal(decimal.NewFromInt(400)),
			EndTime:       now.Add(24 * time.Hour),
		}},
		{"demo-seller-2", auction.CreateAuctionInput{
			Title:         "Oak writing desk",
			StartingPrice: decimal.NewFromInt(150),
			BuyNowPrice:   decimal.NewNullDecimal(decimal.NewFromInt(600)),
			EndTime:       now.Add(10 * time.Minute),
		}},
	}

	var firstID string
	for _, d := range demo {
		created, err := a.auctions.CreateAuction(ctx, d.seller, d.input)
		if err != nil {
			return fmt.Errorf("seed auction %q: %w", d.input.Title, err)
		}
		if firstID == "" {
			firstID = created.ID
		}
	}

	for _, b := range []struct {
		bidder string
		amount int64
	}{{"demo-bidder-1", 110}, {"demo-bidder-2", 125}} {
		if _, err := a.bidding.PlaceBid(ctx, firstID, b.bidder, decimal.NewFromInt(b.amount)); err != nil {
			return fmt.Errorf("seed bid: %w", err)
		}
	}

	utils.Info("Demo data seeded", map[string]any{"auctions": len(demo), "first_auction_id": firstID})
	return nil
}
