package repository

//go:generate mockgen -source=repository.go -destination=mock_repository.go -package=repository

import (
	"bidvault/internal/biddingerrors"
	model "bidvault/internal/models"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// BidCheck validates a proposed bid against the locked, latest committed auction state.
// It runs while the auction is held and may fill in bid fields that must reflect that moment,
// such as CreatedAt. Returning an error aborts the transaction without writing anything.
type BidCheck func(current model.Auction, bid *model.Bid) error

// AuctionMutation edits a locked auction in place
type AuctionMutation func(auction *model.Auction) error

// SettleFunc decides how a locked auction closes. It returns the auction to persist and,
// for a sale, the settlement to insert in the same transaction.
type SettleFunc func(current model.Auction) (model.Auction, *model.Settlement, error)

// SettlementMutation edits a locked settlement in place
type SettlementMutation func(settlement *model.Settlement) error

// AuctionFilter narrows ListAuctions. Results are ordered by end time, or by
// creation time (newest first) when SellerID is set.
type AuctionFilter struct {
	Status   model.AuctionStatus
	SellerID string
}

// AuctionDB defines the auction store and bid ledger
type AuctionDB interface {
	CreateAuction(ctx context.Context, auction model.Auction) error
	GetAuction(ctx context.Context, auctionID string) (model.Auction, error)
	ListAuctions(ctx context.Context, filter AuctionFilter) ([]model.Auction, error)
	CountBids(ctx context.Context, auctionIDs []string) (map[string]int64, error)
	// AcceptBid locks the auction row, runs check on the bid, then inserts the bid and moves the
	// auction's current price and winner to it. It returns the auction as it was before the bid.
	AcceptBid(ctx context.Context, bid model.Bid, check BidCheck) (model.Auction, error)
	GetBidsByAuction(ctx context.Context, auctionID string) ([]model.Bid, error)
	GetWinningBid(ctx context.Context, auctionID string) (model.Bid, error)
	GetAuctionsByBidder(ctx context.Context, bidderID string) ([]model.Auction, error)
	UpdateAuction(ctx context.Context, auctionID string, mutate AuctionMutation) (model.Auction, error)
	ListExpiredAuctions(ctx context.Context, now time.Time, limit int) ([]string, error)
	CloseAuction(ctx context.Context, auctionID string, settle SettleFunc) (model.Auction, *model.Settlement, error)
}

// AccountDB defines per-user storage: notifications, settlements and the dashboard summary
type AccountDB interface {
	CreateNotifications(ctx context.Context, notifications []model.Notification) error
	ListNotifications(ctx context.Context, userID string, limit, offset int) ([]model.Notification, int64, error)
	MarkNotificationRead(ctx context.Context, userID, notificationID string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error)
	ListSettlementsByWinner(ctx context.Context, winnerID string) ([]model.Settlement, error)
	UpdateSettlement(ctx context.Context, auctionID string, mutate SettlementMutation) (model.Settlement, error)
	Summary(ctx context.Context, userID string) (model.DashboardSummary, error)
	// ListActiveBids returns the active auctions userID has bid on, soonest ending first
	ListActiveBids(ctx context.Context, userID string) ([]model.ActiveBid, error)
}

// MemoryRepo is a concurrency-safe in-memory implementation of AuctionDB and AccountDB.
// mu guards the maps; each auction additionally owns a row lock that serializes its writers,
// so bids on different auctions never wait for each other.
type MemoryRepo struct {
	mu             sync.RWMutex
	auctions       map[string]model.Auction
	bids           map[string][]model.Bid          // key: auctionID -> value: accepted bids, oldest first
	bidderAuctions map[string][]string             // key: userID -> value: auctionIDs the user has bid on
	settlements    map[string]model.Settlement     // key: auctionID
	notifications  map[string][]model.Notification // key: userID -> value: notifications, oldest first
	rowLocks       map[string]*sync.Mutex          // key: auctionID
}

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		auctions:       make(map[string]model.Auction),
		bids:           make(map[string][]model.Bid),
		bidderAuctions: make(map[string][]string),
		settlements:    make(map[string]model.Settlement),
		notifications:  make(map[string][]model.Notification),
		rowLocks:       make(map[string]*sync.Mutex),
	}
}

// CreateAuction stores a new auction
func (r *MemoryRepo) CreateAuction(_ context.Context, auction model.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if auction.ID == "" {
		return fmt.Errorf("create auction: %w - empty id", biddingerrors.ErrInvalidAuction)
	}
	if _, exists := r.auctions[auction.ID]; exists {
		return fmt.Errorf("create auction %s: %w - duplicate id", auction.ID, biddingerrors.ErrInvalidAuction)
	}
	r.auctions[auction.ID] = auction
	r.rowLocks[auction.ID] = &sync.Mutex{}
	return nil
}

// GetAuction returns a single auction
func (r *MemoryRepo) GetAuction(_ context.Context, auctionID string) (model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	auction, ok := r.auctions[auctionID]
	if !ok {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	return auction, nil
}

// ListAuctions returns auctions matching the filter
func (r *MemoryRepo) ListAuctions(_ context.Context, filter AuctionFilter) ([]model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Auction, 0)
	for _, a := range r.auctions {
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.SellerID != "" && a.SellerID != filter.SellerID {
			continue
		}
		out = append(out, a)
	}

	if filter.SellerID != "" {
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	} else {
		sort.Slice(out, func(i, j int) bool { return out[i].EndTime.Before(out[j].EndTime) })
	}
	return out, nil
}

// CountBids returns the number of accepted bids per auction
func (r *MemoryRepo) CountBids(_ context.Context, auctionIDs []string) (map[string]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int64, len(auctionIDs))
	for _, id := range auctionIDs {
		if n := len(r.bids[id]); n > 0 {
			counts[id] = int64(n)
		}
	}
	return counts, nil
}

// lockAuction acquires the row lock of an existing auction
func (r *MemoryRepo) lockAuction(auctionID string) (func(), error) {
	r.mu.RLock()
	lock, ok := r.rowLocks[auctionID]
	r.mu.RUnlock()
	if !ok {
		return nil, biddingerrors.ErrAuctionNotFound
	}
	lock.Lock()
	return lock.Unlock, nil
}

// AcceptBid validates and records a bid and updates the auction in one step
func (r *MemoryRepo) AcceptBid(_ context.Context, bid model.Bid, check BidCheck) (model.Auction, error) {
	unlock, err := r.lockAuction(bid.AuctionID)
	if err != nil {
		return model.Auction{}, fmt.Errorf("record bid for auction %s: %w", bid.AuctionID, err)
	}
	defer unlock()

	r.mu.RLock()
	current := r.auctions[bid.AuctionID]
	r.mu.RUnlock()

	if err := check(current, &bid); err != nil {
		return model.Auction{}, err
	}

	updated := current
	winner := bid.BidderID
	updated.CurrentPrice = bid.Amount
	updated.WinnerID = &winner
	updated.Version++
	updated.UpdatedAt = bid.CreatedAt

	r.mu.Lock()
	defer r.mu.Unlock()

	r.auctions[bid.AuctionID] = updated
	r.bids[bid.AuctionID] = append(r.bids[bid.AuctionID], bid)

	for _, id := range r.bidderAuctions[bid.BidderID] {
		if id == bid.AuctionID {
			return current, nil
		}
	}
	r.bidderAuctions[bid.BidderID] = append(r.bidderAuctions[bid.BidderID], bid.AuctionID)

	return current, nil
}

// GetBidsByAuction returns all bids for an auction
func (r *MemoryRepo) GetBidsByAuction(_ context.Context, auctionID string) ([]model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.auctions[auctionID]; !ok {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	bids := r.bids[auctionID]
	if len(bids) == 0 {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, biddingerrors.ErrNoBids)
	}
	return append([]model.Bid(nil), bids...), nil
}

// GetWinningBid returns the highest bid for an auction
func (r *MemoryRepo) GetWinningBid(_ context.Context, auctionID string) (model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bids, ok := r.bids[auctionID]
	if !ok || len(bids) == 0 {
		return model.Bid{}, fmt.Errorf("get winning bid for auction %s: %w", auctionID, biddingerrors.ErrNoBids)
	}

	winning := bids[0]
	for _, b := range bids[1:] {
		if b.Amount.GreaterThan(winning.Amount) || (b.Amount.Equal(winning.Amount) && b.CreatedAt.Before(winning.CreatedAt)) {
			winning = b
		}
	}
	return winning, nil
}

// GetAuctionsByBidder returns all auctions a user has bid on
func (r *MemoryRepo) GetAuctionsByBidder(_ context.Context, bidderID string) ([]model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	auctionIDs, ok := r.bidderAuctions[bidderID]
	if !ok || len(auctionIDs) == 0 {
		return nil, fmt.Errorf("get auctions for user %s: %w", bidderID, biddingerrors.ErrUserNoBids)
	}

	auctions := make([]model.Auction, 0, len(auctionIDs))
	for _, id := range auctionIDs {
		if auction, exists := r.auctions[id]; exists {
			auctions = append(auctions, auction)
		}
	}
	return auctions, nil
}

// UpdateAuction applies mutate to the locked auction and stores the result
func (r *MemoryRepo) UpdateAuction(_ context.Context, auctionID string, mutate AuctionMutation) (model.Auction, error) {
	unlock, err := r.lockAuction(auctionID)
	if err != nil {
		return model.Auction{}, fmt.Errorf("update auction %s: %w", auctionID, err)
	}
	defer unlock()

	r.mu.RLock()
	updated := r.auctions[auctionID]
	r.mu.RUnlock()

	if err := mutate(&updated); err != nil {
		return model.Auction{}, err
	}
	updated.ID = auctionID
	updated.Version++

	r.mu.Lock()
	r.auctions[auctionID] = updated
	r.mu.Unlock()

	return updated, nil
}

// ListExpiredAuctions returns ids of active auctions whose end time has passed, oldest first
func (r *MemoryRepo) ListExpiredAuctions(_ context.Context, now time.Time, limit int) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	expired := make([]model.Auction, 0)
	for _, a := range r.auctions {
		if a.Status == model.AuctionActive && !now.Before(a.EndTime) {
			expired = append(expired, a)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].EndTime.Before(expired[j].EndTime) })

	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}
	ids := make([]string, 0, len(expired))
	for _, a := range expired {
		ids = append(ids, a.ID)
	}
	return ids, nil
}

// CloseAuction applies settle to the locked auction and stores the outcome
func (r *MemoryRepo) CloseAuction(_ context.Context, auctionID string, settle SettleFunc) (model.Auction, *model.Settlement, error) {
	unlock, err := r.lockAuction(auctionID)
	if err != nil {
		return model.Auction{}, nil, fmt.Errorf("close auction %s: %w", auctionID, err)
	}
	defer unlock()

	r.mu.RLock()
	current := r.auctions[auctionID]
	r.mu.RUnlock()

	closed, settlement, err := settle(current)
	if err != nil {
		return model.Auction{}, nil, err
	}
	closed.ID = auctionID
	closed.Version = current.Version + 1

	r.mu.Lock()
	defer r.mu.Unlock()

	if settlement != nil {
		if _, exists := r.settlements[auctionID]; exists {
			return model.Auction{}, nil, fmt.Errorf("close auction %s: settlement exists: %w", auctionID, biddingerrors.ErrConflict)
		}
		r.settlements[auctionID] = *settlement
	}
	r.auctions[auctionID] = closed

	return closed, settlement, nil
}

// CreateNotifications stores notifications for their recipients
func (r *MemoryRepo) CreateNotifications(_ context.Context, notifications []model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, n := range notifications {
		if n.UserID == "" {
			return fmt.Errorf("create notification %s: %w - empty user id", n.ID, biddingerrors.ErrInvalidRequest)
		}
		for _, existing := range r.notifications[n.UserID] {
			if existing.ID == n.ID {
				return fmt.Errorf("create notification %s: %w", n.ID, biddingerrors.ErrConflict)
			}
		}
	}
	for _, n := range notifications {
		r.notifications[n.UserID] = append(r.notifications[n.UserID], n)
	}
	return nil
}

// ListNotifications returns a page of a user's notifications, newest first, and the total count
func (r *MemoryRepo) ListNotifications(_ context.Context, userID string, limit, offset int) ([]model.Notification, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.notifications[userID]
	total := int64(len(all))

	page := make([]model.Notification, 0, limit)
	for i := len(all) - 1 - offset; i >= 0 && len(page) < limit; i-- {
		page = append(page, all[i])
	}
	return page, total, nil
}

// MarkNotificationRead flags one of the user's notifications as read
func (r *MemoryRepo) MarkNotificationRead(_ context.Context, userID, notificationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, n := range r.notifications[userID] {
		if n.ID == notificationID {
			r.notifications[userID][i].IsRead = true
			return nil
		}
	}
	return fmt.Errorf("mark notification %s read: %w", notificationID, biddingerrors.ErrNotificationNotFound)
}

// MarkAllNotificationsRead flags every unread notification of the user and returns how many changed
func (r *MemoryRepo) MarkAllNotificationsRead(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var changed int64
	for i, n := range r.notifications[userID] {
		if !n.IsRead {
			r.notifications[userID][i].IsRead = true
			changed++
		}
	}
	return changed, nil
}

// ListSettlementsByWinner returns the settlements won by a user, newest first
func (r *MemoryRepo) ListSettlementsByWinner(_ context.Context, winnerID string) ([]model.Settlement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Settlement, 0)
	for _, s := range r.settlements {
		if s.WinnerID == winnerID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// UpdateSettlement applies mutate to the settlement of an auction
func (r *MemoryRepo) UpdateSettlement(_ context.Context, auctionID string, mutate SettlementMutation) (model.Settlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	settlement, ok := r.settlements[auctionID]
	if !ok {
		return model.Settlement{}, fmt.Errorf("update settlement for auction %s: %w", auctionID, biddingerrors.ErrSettlementNotFound)
	}
	if err := mutate(&settlement); err != nil {
		return model.Settlement{}, err
	}
	settlement.AuctionID = auctionID
	r.settlements[auctionID] = settlement
	return settlement, nil
}

// Summary aggregates a user's activity
func (r *MemoryRepo) Summary(_ context.Context, userID string) (model.DashboardSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summary := model.DashboardSummary{TotalSpent: decimal.Zero, TotalEarned: decimal.Zero}

	for _, id := range r.bidderAuctions[userID] {
		if a, ok := r.auctions[id]; ok && a.Status == model.AuctionActive {
			summary.ActiveBids++
		}
	}
	for _, a := range r.auctions {
		if a.Status != model.AuctionActive {
			continue
		}
		if a.SellerID == userID {
			summary.MyAuctions++
		}
		if a.WinnerID != nil && *a.WinnerID == userID {
			summary.CurrentlyWinning++
		}
	}
	for _, s := range r.settlements {
		if s.WinnerID == userID {
			summary.AuctionsWon++
			summary.TotalSpent = summary.TotalSpent.Add(s.WinningBid)
		}
		if s.SellerID == userID {
			summary.TotalEarned = summary.TotalEarned.Add(s.WinningBid)
		}
	}
	for _, n := range r.notifications[userID] {
		if !n.IsRead {
			summary.UnreadNotifications++
		}
	}
	return summary, nil
}

// ListActiveBids returns the active auctions a user has bid on, soonest ending first
func (r *MemoryRepo) ListActiveBids(_ context.Context, userID string) ([]model.ActiveBid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []model.ActiveBid{}
	for _, id := range r.bidderAuctions[userID] {
		a, ok := r.auctions[id]
		if !ok || a.Status != model.AuctionActive {
			continue
		}
		var (
			highest decimal.Decimal
			count   int64
		)
		for _, b := range r.bids[id] {
			if b.BidderID != userID {
				continue
			}
			count++
			if b.Amount.GreaterThan(highest) {
				highest = b.Amount
			}
		}
		out = append(out, model.NewActiveBid(a, userID, highest, count))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EndTime.Before(out[j].EndTime) })
	return out, nil
}

// AddAuction adds an auction to the repository. This method is intended for tests and seeding only.
func (r *MemoryRepo) AddAuction(auction model.Auction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auctions[auction.ID] = auction
	if _, ok := r.rowLocks[auction.ID]; !ok {
		r.rowLocks[auction.ID] = &sync.Mutex{}
	}
}
