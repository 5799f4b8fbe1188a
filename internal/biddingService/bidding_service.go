package bidding

import (
	"bidvault/internal/biddingerrors"
	"bidvault/internal/events"
	"bidvault/internal/models"
	"bidvault/internal/repository"
	"bidvault/utils"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// maxAttempts bounds how often a bid is tried when the store reports a concurrent write
const maxAttempts = 2

// maxAmount is the largest value a numeric(14,2) column holds
var maxAmount = decimal.RequireFromString("999999999999.99")

// BiddingService defines the business logic for auction bidding
type BiddingService struct {
	repo      repository.AuctionDB
	publisher events.Publisher
	now       func() time.Time
}

// NewBiddingService creates a new BiddingService instance. publisher may be nil.
func NewBiddingService(repo repository.AuctionDB, publisher events.Publisher) *BiddingService {
	return &BiddingService{
		repo:      repo,
		publisher: publisher,
		now:       time.Now,
	}
}

// PlaceBid validates and records a user's bid for an auction. On success the auction's
// current price equals the returned bid's amount and its winner is the bidder.
func (s *BiddingService) PlaceBid(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal) (models.Bid, error) {
	if err := validateBid(auctionID, bidderID, amount); err != nil {
		return models.Bid{}, err
	}

	var (
		bid      models.Bid
		previous models.Auction
		err      error
	)
	for attempt := 1; ; attempt++ {
		candidate := models.Bid{
			ID:        utils.GenerateID(),
			AuctionID: auctionID,
			BidderID:  bidderID,
			Amount:    amount,
		}
		previous, err = s.repo.AcceptBid(ctx, candidate, func(current models.Auction, held *models.Bid) error {
			// stamped while the auction is held, so ledger time order follows acceptance order
			held.CreatedAt = s.now().UTC()
			bid = *held
			return CheckBid(current, held.BidderID, held.Amount, held.CreatedAt)
		})

		if err == nil || !errors.Is(err, biddingerrors.ErrConflict) || attempt == maxAttempts {
			break
		}
		utils.Warn("Bid hit a concurrent update, retrying", map[string]any{
			"auction_id": auctionID,
			"bidder_id":  bidderID,
			"attempt":    attempt,
		})
	}
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to record bid for auction %s by user %s: %w", auctionID, bidderID, err)
	}

	previousBidder := ""
	if previous.WinnerID != nil {
		previousBidder = *previous.WinnerID
	}
	events.Emit(ctx, s.publisher, models.AuctionEvent{
		Type:             models.EventBidPlaced,
		AuctionID:        auctionID,
		AuctionTitle:     previous.Title,
		SellerID:         previous.SellerID,
		BidderID:         bidderID,
		PreviousBidderID: previousBidder,
		Amount:           bid.Amount,
		OccurredAt:       bid.CreatedAt,
	})

	return bid, nil
}

// validateBid checks input validity before any storage access
func validateBid(auctionID, bidderID string, amount decimal.Decimal) error {
	if auctionID == "" || bidderID == "" {
		return fmt.Errorf("service: %w - missing auctionID or bidderID", biddingerrors.ErrInvalidBid)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("service: %w - non-positive bid amount", biddingerrors.ErrInvalidBid)
	}
	if !amount.Equal(amount.Round(2)) {
		return fmt.Errorf("service: %w - bid amount has more than two decimal places", biddingerrors.ErrInvalidBid)
	}
	if amount.GreaterThan(maxAmount) {
		return fmt.Errorf("service: %w - bid amount exceeds %s", biddingerrors.ErrInvalidBid, maxAmount)
	}
	return nil
}

// CheckBid applies the bidding rules to the latest committed state of an auction.
// It is the single place these rules live; the repository runs it while holding the auction.
func CheckBid(auction models.Auction, bidderID string, amount decimal.Decimal, now time.Time) error {
	switch {
	case auction.Status == models.AuctionEnded:
		return fmt.Errorf("service: %w", biddingerrors.ErrAuctionEnded)
	case auction.Status != models.AuctionActive:
		return fmt.Errorf("service: %w - auction is %s", biddingerrors.ErrAuctionNotActive, auction.Status)
	case now.Before(auction.StartTime):
		return fmt.Errorf("service: %w - auction starts at %s", biddingerrors.ErrAuctionNotActive, auction.StartTime.Format(time.RFC3339))
	case !now.Before(auction.EndTime):
		return fmt.Errorf("service: %w - auction ended at %s", biddingerrors.ErrAuctionEnded, auction.EndTime.Format(time.RFC3339))
	case bidderID == auction.SellerID:
		return fmt.Errorf("service: %w", biddingerrors.ErrSelfBid)
	case amount.LessThan(auction.MinimumBid()):
		return fmt.Errorf("service: %w - minimum bid is %s", biddingerrors.ErrBidTooLow, auction.MinimumBid().StringFixed(2))
	}
	return nil
}

// GetBidsForAuction returns all bids for a specific auction
func (s *BiddingService) GetBidsForAuction(ctx context.Context, auctionID string) ([]models.Bid, error) {
	if auctionID == "" {
		return nil, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}

	bids, err := s.repo.GetBidsByAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for auction %s: %w", auctionID, err)
	}

	return bids, nil
}

// GetWinningBid returns the highest bid for a specific auction
func (s *BiddingService) GetWinningBid(ctx context.Context, auctionID string) (models.Bid, error) {
	if auctionID == "" {
		return models.Bid{}, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}

	winningBid, err := s.repo.GetWinningBid(ctx, auctionID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to get winning bid for auction %s: %w", auctionID, err)
	}

	return winningBid, nil
}

// GetAuctionsByBidder returns all auctions a user has placed bids on
func (s *BiddingService) GetAuctionsByBidder(ctx context.Context, bidderID string) ([]models.Auction, error) {
	if bidderID == "" {
		return nil, fmt.Errorf("service: %w - empty user ID", biddingerrors.ErrInvalidBid)
	}

	auctions, err := s.repo.GetAuctionsByBidder(ctx, bidderID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get auctions for user %s: %w", bidderID, err)
	}

	return auctions, nil
}
