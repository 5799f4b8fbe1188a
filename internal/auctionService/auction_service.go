package auction

import (
	"bidvault/internal/biddingerrors"
	"bidvault/internal/models"
	"bidvault/internal/repository"
	"bidvault/utils"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// defaultMinIncrement applies when a seller does not choose one
var defaultMinIncrement = decimal.NewFromInt(10)

// Expirer closes an auction whose end time has passed
type Expirer interface {
	CloseIfExpired(ctx context.Context, auctionID string) (bool, error)
}

// CreateAuctionInput carries the seller-supplied fields of a new auction
type CreateAuctionInput struct {
	Title         string
	Description   string
	Images        []string
	StartingPrice decimal.Decimal
	MinIncrement  decimal.NullDecimal
	ReservePrice  decimal.NullDecimal
	BuyNowPrice   decimal.NullDecimal
	StartTime     *time.Time
	EndTime       time.Time
}

// AuctionSummary is an auction in a listing
type AuctionSummary struct {
	models.Auction
	BidCount int64 `json:"bid_count"`
}

// AuctionDetail is a single auction with its bid ledger
type AuctionDetail struct {
	models.Auction
	BidCount int64        `json:"bid_count"`
	Bids     []models.Bid `json:"bids"`
}

// AuctionService manages the auction catalogue
type AuctionService struct {
	repo    repository.AuctionDB
	expirer Expirer
	now     func() time.Time
}

// NewAuctionService creates a new AuctionService. expirer may be nil, which disables close-on-read.
func NewAuctionService(repo repository.AuctionDB, expirer Expirer) *AuctionService {
	return &AuctionService{
		repo:    repo,
		expirer: expirer,
		now:     time.Now,
	}
}

// CreateAuction validates input and stores a new active auction for sellerID
func (s *AuctionService) CreateAuction(ctx context.Context, sellerID string, in CreateAuctionInput) (models.Auction, error) {
	now := s.now().UTC()
	if sellerID == "" {
		return models.Auction{}, fmt.Errorf("service: %w - missing seller", biddingerrors.ErrInvalidAuction)
	}
	if err := validateAuction(in, now); err != nil {
		return models.Auction{}, err
	}

	increment := defaultMinIncrement
	if in.MinIncrement.Valid {
		increment = in.MinIncrement.Decimal
	}
	start := now
	if in.StartTime != nil {
		start = in.StartTime.UTC()
	}
	images := in.Images
	if images == nil {
		images = []string{}
	}

	a := models.Auction{
		ID:            utils.GenerateID(),
		SellerID:      sellerID,
		Title:         strings.TrimSpace(in.Title),
		Description:   in.Description,
		Images:        images,
		StartingPrice: in.StartingPrice,
		CurrentPrice:  in.StartingPrice,
		MinIncrement:  increment,
		ReservePrice:  in.ReservePrice,
		BuyNowPrice:   in.BuyNowPrice,
		StartTime:     start,
		EndTime:       in.EndTime.UTC(),
		Status:        models.AuctionActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.CreateAuction(ctx, a); err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to create auction for seller %s: %w", sellerID, err)
	}
	return a, nil
}

func validateAuction(in CreateAuctionInput, now time.Time) error {
	invalid := func(reason string) error {
		return fmt.Errorf("service: %w - %s", biddingerrors.ErrInvalidAuction, reason)
	}

	switch {
	case strings.TrimSpace(in.Title) == "":
		return invalid("title is required")
	case len(in.Title) > 255:
		return invalid("title is longer than 255 characters")
	case !in.StartingPrice.IsPositive():
		return invalid("starting price must be positive")
	case in.MinIncrement.Valid && !in.MinIncrement.Decimal.IsPositive():
		return invalid("min increment must be positive")
	case in.EndTime.IsZero() || !in.EndTime.After(now):
		return invalid("end time must be in the future")
	case in.StartTime != nil && !in.StartTime.Before(in.EndTime):
		return invalid("start time must precede end time")
	case in.ReservePrice.Valid && in.ReservePrice.Decimal.LessThan(in.StartingPrice):
		return invalid("reserve price must not be below the starting price")
	case in.BuyNowPrice.Valid && !in.BuyNowPrice.Decimal.GreaterThan(in.StartingPrice):
		return invalid("buy now price must exceed the starting price")
	}
	for _, v := range []decimal.NullDecimal{decimal.NewNullDecimal(in.StartingPrice), in.MinIncrement, in.ReservePrice, in.BuyNowPrice} {
		if v.Valid && !v.Decimal.Equal(v.Decimal.Round(2)) {
			return invalid("prices have at most two decimal places")
		}
	}
	return nil
}

// GetAuction returns an auction with its bids, closing it first when its end time has passed
func (s *AuctionService) GetAuction(ctx context.Context, auctionID string) (AuctionDetail, error) {
	if auctionID == "" {
		return AuctionDetail{}, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidRequest)
	}

	a, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return AuctionDetail{}, fmt.Errorf("service: failed to get auction %s: %w", auctionID, err)
	}

	if s.expirer != nil && a.Status == models.AuctionActive && !s.now().Before(a.EndTime) {
		closed, err := s.expirer.CloseIfExpired(ctx, auctionID)
		if err != nil {
			utils.Warn("Close on read failed", map[string]any{"auction_id": auctionID, "error": err.Error()})
		}
		if closed {
			if a, err = s.repo.GetAuction(ctx, auctionID); err != nil {
				return AuctionDetail{}, fmt.Errorf("service: failed to get auction %s: %w", auctionID, err)
			}
		}
	}

	bids, err := s.repo.GetBidsByAuction(ctx, auctionID)
	if err != nil && !errors.Is(err, biddingerrors.ErrNoBids) {
		return AuctionDetail{}, fmt.Errorf("service: failed to get bids for auction %s: %w", auctionID, err)
	}
	if bids == nil {
		bids = []models.Bid{}
	}

	return AuctionDetail{Auction: a, BidCount: int64(len(bids)), Bids: bids}, nil
}

// ListAuctions returns auctions with the given status (active by default), soonest ending first
func (s *AuctionService) ListAuctions(ctx context.Context, status string) ([]AuctionSummary, error) {
	st, err := parseStatus(status, models.AuctionActive)
	if err != nil {
		return nil, err
	}

	auctions, err := s.repo.ListAuctions(ctx, repository.AuctionFilter{Status: st})
	if err != nil {
		return nil, fmt.Errorf("service: failed to list auctions: %w", err)
	}
	return s.withBidCounts(ctx, auctions)
}

// ListSellerAuctions returns a seller's auctions, newest first, optionally filtered by status
func (s *AuctionService) ListSellerAuctions(ctx context.Context, sellerID, status string) ([]AuctionSummary, error) {
	if sellerID == "" {
		return nil, fmt.Errorf("service: %w - empty seller ID", biddingerrors.ErrInvalidRequest)
	}
	st, err := parseStatus(status, "")
	if err != nil {
		return nil, err
	}

	auctions, err := s.repo.ListAuctions(ctx, repository.AuctionFilter{Status: st, SellerID: sellerID})
	if err != nil {
		return nil, fmt.Errorf("service: failed to list auctions for seller %s: %w", sellerID, err)
	}
	return s.withBidCounts(ctx, auctions)
}

func (s *AuctionService) withBidCounts(ctx context.Context, auctions []models.Auction) ([]AuctionSummary, error) {
	ids := make([]string, 0, len(auctions))
	for _, a := range auctions {
		ids = append(ids, a.ID)
	}
	counts, err := s.repo.CountBids(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("service: failed to count bids: %w", err)
	}

	out := make([]AuctionSummary, 0, len(auctions))
	for _, a := range auctions {
		out = append(out, AuctionSummary{Auction: a, BidCount: counts[a.ID]})
	}
	return out, nil
}

func parseStatus(status string, fallback models.AuctionStatus) (models.AuctionStatus, error) {
	if status == "" {
		return fallback, nil
	}
	st := models.AuctionStatus(strings.ToLower(status))
	if !st.Valid() {
		return "", fmt.Errorf("service: %w - unknown status %q", biddingerrors.ErrInvalidRequest, status)
	}
	return st, nil
}

// CancelAuction withdraws an active auction that has not received any bid. Only its seller may cancel it.
func (s *AuctionService) CancelAuction(ctx context.Context, sellerID, auctionID string) (models.Auction, error) {
	if sellerID == "" || auctionID == "" {
		return models.Auction{}, fmt.Errorf("service: %w - missing seller or auction ID", biddingerrors.ErrInvalidRequest)
	}

	cancelled, err := s.repo.UpdateAuction(ctx, auctionID, func(a *models.Auction) error {
		switch {
		case a.SellerID != sellerID:
			return fmt.Errorf("service: %w - only the seller can cancel", biddingerrors.ErrForbidden)
		case a.Status != models.AuctionActive:
			return fmt.Errorf("service: %w - auction is %s", biddingerrors.ErrAuctionNotActive, a.Status)
		case a.HasBids():
			return fmt.Errorf("service: %w", biddingerrors.ErrAuctionHasBids)
		}
		a.Status = models.AuctionCancelled
		a.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to cancel auction %s: %w", auctionID, err)
	}

	utils.Info("Auction cancelled", map[string]any{"auction_id": auctionID, "seller_id": sellerID})
	return cancelled, nil
}
