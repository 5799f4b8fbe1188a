package closer

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
)

// Closer ends auctions whose end time has passed and writes their settlements
type Closer struct {
	repo      repository.AuctionDB
	publisher events.Publisher
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

// NewCloser creates a Closer. interval drives Run; batchSize bounds each CloseExpired pass.
func NewCloser(repo repository.AuctionDB, publisher events.Publisher, interval time.Duration, batchSize int) *Closer {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Closer{
		repo:      repo,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// Settle computes the closed state of an auction at now. It is pure: the repository calls it
// while holding the auction and persists the result.
//
// A reserve that the final price does not meet, or an auction nobody bid on, ends unsold
// without a winner. Otherwise the final high bidder wins and a pending settlement is created.
func Settle(a models.Auction, now time.Time) (models.Auction, *models.Settlement, error) {
	if a.Status != models.AuctionActive {
		return models.Auction{}, nil, fmt.Errorf("closer: %w - auction is %s", biddingerrors.ErrAuctionNotActive, a.Status)
	}
	if now.Before(a.EndTime) {
		return models.Auction{}, nil, fmt.Errorf("closer: %w", biddingerrors.ErrAuctionStillOpen)
	}

	closed := a
	closed.Status = models.AuctionEnded
	closed.UpdatedAt = now

	if !a.HasBids() {
		return closed, nil, nil
	}
	if !a.ReserveMet() {
		closed.WinnerID = nil
		return closed, nil, nil
	}

	settlement := &models.Settlement{
		ID:            utils.GenerateID(),
		AuctionID:     a.ID,
		WinnerID:      *a.WinnerID,
		SellerID:      a.SellerID,
		WinningBid:    a.CurrentPrice,
		PaymentStatus: models.PaymentPending,
		Shipped:       false,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return closed, settlement, nil
}

// CloseExpired closes one batch of expired auctions and reports how many it closed.
// An auction that another closer or a bid got to first is skipped, not reported.
func (c *Closer) CloseExpired(ctx context.Context) (int, error) {
	now := c.now().UTC()
	ids, err := c.repo.ListExpiredAuctions(ctx, now, c.batchSize)
	if err != nil {
		return 0, fmt.Errorf("closer: failed to list expired auctions: %w", err)
	}

	closed := 0
	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return closed, err
		}
		ok, err := c.close(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			closed++
		}
	}
	return closed, errors.Join(errs...)
}

// CloseIfExpired closes a single auction when its end time has passed.
// It reports whether this call performed the transition.
func (c *Closer) CloseIfExpired(ctx context.Context, auctionID string) (bool, error) {
	return c.close(ctx, auctionID)
}

func (c *Closer) close(ctx context.Context, auctionID string) (bool, error) {
	now := c.now().UTC()
	var finalBidder string

	closed, settlement, err := c.repo.CloseAuction(ctx, auctionID, func(current models.Auction) (models.Auction, *models.Settlement, error) {
		if current.WinnerID != nil {
			finalBidder = *current.WinnerID
		}
		return Settle(current, now)
	})
	switch {
	case errors.Is(err, biddingerrors.ErrAuctionNotActive), errors.Is(err, biddingerrors.ErrAuctionStillOpen):
		return false, nil
	case errors.Is(err, biddingerrors.ErrConflict):
		// someone else wrote the auction; the next pass sees its new state
		utils.Warn("Auction close conflicted", map[string]any{"auction_id": auctionID})
		return false, nil
	case err != nil:
		return false, fmt.Errorf("closer: failed to close auction %s: %w", auctionID, err)
	}

	utils.Info("Auction closed", map[string]any{
		"auction_id": auctionID,
		"sold":       settlement != nil,
		"price":      closed.CurrentPrice.StringFixed(2),
	})

	events.Emit(ctx, c.publisher, models.AuctionEvent{
		Type:         models.EventAuctionClosed,
		AuctionID:    auctionID,
		AuctionTitle: closed.Title,
		SellerID:     closed.SellerID,
		BidderID:     finalBidder,
		Amount:       closed.CurrentPrice,
		Sold:         settlement != nil,
		OccurredAt:   now,
	})
	return true, nil
}

// Run closes expired auctions every interval until ctx is cancelled
func (c *Closer) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	utils.Info("Auction closer started", map[string]any{"interval": c.interval.String(), "batch_size": c.batchSize})
	for {
		c.pass(ctx)

		select {
		case <-ctx.Done():
			utils.Info("Auction closer stopped", nil)
			return nil
		case <-ticker.C:
		}
	}
}

// CloseAll closes batches until one comes back short and reports the total closed
func (c *Closer) CloseAll(ctx context.Context) (int, error) {
	total := 0
	for {
		closed, err := c.CloseExpired(ctx)
		total += closed
		// a full batch means more may be waiting
		if err != nil || closed < c.batchSize {
			return total, err
		}
	}
}

func (c *Closer) pass(ctx context.Context) {
	closed, err := c.CloseAll(ctx)
	if err != nil && ctx.Err() == nil {
		utils.Error("Auction closer pass failed", map[string]any{"error": err.Error(), "closed": closed})
	}
}
