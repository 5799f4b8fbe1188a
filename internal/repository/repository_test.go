package repository

import (
	"bidvault/internal/biddingerrors"
	model "bidvault/internal/models"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// store is what both repository implementations provide
type store interface {
	AuctionDB
	AccountDB
}

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// Helper to create a new Auction ending one hour after baseTime
func newAuction(id, sellerID string, startingPrice int64) model.Auction {
	return model.Auction{
		ID:            id,
		SellerID:      sellerID,
		Title:         fmt.Sprintf("Auction %s", id),
		Description:   fmt.Sprintf("%s description", id),
		Images:        []string{"https://img.example/" + id + ".jpg"},
		StartingPrice: decimal.NewFromInt(startingPrice),
		CurrentPrice:  decimal.NewFromInt(startingPrice),
		MinIncrement:  decimal.NewFromInt(10),
		StartTime:     baseTime.Add(-time.Hour),
		EndTime:       baseTime.Add(time.Hour),
		Status:        model.AuctionActive,
		CreatedAt:     baseTime.Add(-time.Hour),
		UpdatedAt:     baseTime.Add(-time.Hour),
	}
}

// Helper to create a new Bid
func newBid(bidID, auctionID, bidderID string, amount int64, createdAt time.Time) model.Bid {
	return model.Bid{
		ID:        bidID,
		AuctionID: auctionID,
		BidderID:  bidderID,
		Amount:    decimal.NewFromInt(amount),
		CreatedAt: createdAt,
	}
}

// increasingOnly accepts a bid only when it raises the current price
func increasingOnly(amount decimal.Decimal) BidCheck {
	return func(current model.Auction, _ *model.Bid) error {
		if current.HasBids() && !amount.GreaterThan(current.CurrentPrice) {
			return biddingerrors.ErrBidTooLow
		}
		return nil
	}
}

func acceptAll(model.Auction, *model.Bid) error { return nil }

func newSQLiteRepo(t *testing.T) *GormRepo {
	t.Helper()

	db, err := OpenDatabase(DriverSQLite, filepath.Join(t.TempDir(), "bidvault.db"))
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewGormRepo(db)
}

// forEachStore runs fn against a fresh instance of every implementation
func forEachStore(t *testing.T, fn func(t *testing.T, repo store)) {
	t.Run("memory", func(t *testing.T) {
		t.Parallel()
		fn(t, NewMemoryRepo())
	})
	t.Run("sqlite", func(t *testing.T) {
		t.Parallel()
		fn(t, newSQLiteRepo(t))
	})
}

func TestStore_CreateAndGetAuction(t *testing.T) {
	t.Parallel()

	forEachStore(t, func(t *testing.T, repo store) {
		ctx := context.Background()
		a := newAuction("a1", "seller1", 100)
		a.ReservePrice = decimal.NewNullDecimal(decimal.NewFromInt(150))

		require.NoError(t, repo.CreateAuction(ctx, a))

		got, err := repo.GetAuction(ctx, "a1")
		require.NoError(t, err)
		require.Equal(t, "seller1", got.SellerID)
		require.Equal(t, a.Images, got.Images)
		require.True(t, got.CurrentPrice.Equal(decimal.NewFromInt(100)))
		require.True(t, got.ReservePrice.Valid)
		require.True(t, got.ReservePrice.Decimal.Equal(decimal.NewFromInt(150)))
		require.False(t, got.BuyNowPrice.Valid)
		require.Nil(t, got.WinnerID)

		err = repo.CreateAuction(ctx, a)
		require.ErrorIs(t, err, biddingerrors.ErrInvalidAuction)

		_, err = repo.GetAuction(ctx, "missing")
		require.ErrorIs(t, err, biddingerrors.ErrAuctionNotFound)
	})
}

func TestStore_ListAuctions(t *testing.T) {
	t.Parallel()

	forEachStore(t, func(t *testing.T, repo store) {
		ctx := context.Background()

		early := newAuction("early", "seller1", 10)
		early.EndTime = baseTime.Add(10 * time.Minute)
		early.CreatedAt = baseTime.Add(-3 * time.Hour)
		late := newAuction("late", "seller1", 10)
		late.EndTime = baseTime.Add(5 * time.Hour)
		late.CreatedAt = baseTime.Add(-2 * time.Hour)
		ended := newAuction("ended", "seller2", 10)
		ended.Status = model.AuctionEnded

		for _, a := range []model.Auction{late, ended, early} {
			require.NoError(t, repo.CreateAuction(ctx, a))
		}

		tests := []struct {
			name   string
			filter AuctionFilter
			want   []string
		}{
			{name: "active_by_end_time", filter: AuctionFilter{Status: model.AuctionActive}, want: []string{"early", "late"}},
			{name: "seller_newest_first", filter: AuctionFilter{SellerID: "seller1"}, want: []string{"late", "early"}},
			{name: "ended_only", filter: AuctionFilter{Status: model.AuctionEnded}, want: []string{"ended"}},
			{name: "no_match", filter: AuctionFilter{SellerID: "nobody"}, want: []string{}},
		}

		for _, tc := range tests {
			got, err := repo.ListAuctions(ctx, tc.filter)
			require.NoError(t, err, tc.name)
			ids := make([]string, 0, len(got))
			for _, a := range got {
				ids = append(ids, a.ID)
			}
			require.Equal(t, tc.want, ids, tc.name)
		}
	})
}

func TestStore_AcceptBid(t *testing.T) {
	t.Parallel()

	forEachStore(t, func(t *testing.T, repo store) {
		ctx := context.Background()
		require.NoError(t, repo.CreateAuction(ctx, newAuction("a1", "seller1", 100)))

		// first bid: previous state has no winner
		prev, err := repo.AcceptBid(ctx, newBid("b1", "a1", "user1", 110, baseTime), acceptAll)
		require.NoError(t, err)
		require.Nil(t, prev.WinnerID)
		require.True(t, prev.CurrentPrice.Equal(decimal.NewFromInt(100)))

		// second bid: previous state names the displaced bidder
		prev, err = repo.AcceptBid(ctx, newBid("b2", "a1", "user2", 120, baseTime.Add(time.Second)), acceptAll)
		require.NoError(t, err)
		require.NotNil(t, prev.WinnerID)
		require.Equal(t, "user1", *prev.WinnerID)

		got, err := repo.GetAuction(ctx, "a1")
		require.NoError(t, err)
		require.True(t, got.CurrentPrice.Equal(decimal.NewFromInt(120)))
		require.Equal(t, "user2", *got.WinnerID)
		require.Equal(t, prev.Version+1, got.Version)

		// a rejected check writes nothing
		rejected := errors.New("rejected")
		_, err = repo.AcceptBid(ctx, newBid("b3", "a1", "user3", 500, baseTime.Add(2*time.Second)), func(model.Auction, *model.Bid) error {
			return rejected
		})
		require.ErrorIs(t, err, rejected)

		bids, err := repo.GetBidsByAuction(ctx, "a1")
		require.NoError(t, err)
		require.Len(t, bids, 2)
		require.Equal(t, "b1", bids[0].ID)
		require.Equal(t, "b2", bids[1].ID)

		_, err = repo.AcceptBid(ctx, newBid("b4", "missing", "user1", 10, baseTime), acceptAll)
		require.ErrorIs(t, err, biddingerrors.ErrAuctionNotFound)
	})
}

func TestStore_BidQueries(t *testing.T) {
	t.Parallel()

	forEachStore(t, func(t *testing.T, repo store) {
		ctx := context.Background()
		require.NoError(t, repo.CreateAuction(ctx, newAuction("a1", "seller1", 100)))
		require.NoError(t, repo.CreateAuction(ctx, newAuction("a2", "seller1", 100)))

		_, err := repo.GetBidsByAuction(ctx, "a1")
		require.ErrorIs(t, err, biddingerrors.ErrNoBids)
		_, err = repo.GetBidsByAuction(ctx, "missing")
		require.ErrorIs(t, err, biddingerrors.ErrAuctionNotFound)
		_, err = repo.GetWinningBid(ctx, "a1")
		require.ErrorIs(t, err, biddingerrors.ErrNoBids)
		_, err = repo.GetAuctionsByBidder(ctx, "user1")
		require.ErrorIs(t, err, biddingerrors.ErrUserNoBids)

		_, err = repo.AcceptBid(ctx, newBid("b1", "a1", "user1", 110, baseTime), acceptAll)
		require.NoError(t, err)
		_, err = repo.AcceptBid(ctx, newBid("b2", "a1", "user2", 150, baseTime.Add(time.Second)), acceptAll)
		require.NoError(t, err)
		_, err = repo.AcceptBid(ctx, newBid("b3", "a1", "user1", 160, baseTime.Add(2*time.Second)), acceptAll)
		require.NoError(t, err)
		_, err = repo.AcceptBid(ctx, newBid("b4", "a2", "user1", 120, baseTime.Add(3*time.Second)), acceptAll)
		require.NoError(t, err)

		winning, err := repo.GetWinningBid(ctx, "a1")
		require.NoError(t, err)
		require.Equal(t, "b3", winning.ID)

		auctions, err := repo.GetAuctionsByBidder(ctx, "user1")
		require.NoError(t, err)
		require.Len(t, auctions, 2)

		counts, err := repo.CountBids(ctx, []string{"a1", "a2", "missing"})
		require.NoError(t, err)
		require.Equal(t, map[string]int64{"a1": 3, "a2": 1}, counts)
	})
}

func TestStore_ListActiveBids(t *testing.T) {
	t.Parallel()

	forEachStore(t, func(t *testing.T, repo store) {
		ctx := context.Background()
		soon := newAuction("a2", "seller1", 100)
		soon.EndTime = baseTime.Add(30 * time.Minute)
		require.NoError(t, repo.CreateAuction(ctx, newAuction("a1", "seller1", 100)))
		require.NoError(t, repo.CreateAuction(ctx, soon))
		require.NoError(t, repo.CreateAuction(ctx, newAuction("a3", "seller1", 100)))

		active, err := repo.ListActiveBids(ctx, "user1")
		require.NoError(t, err)
		require.Empty(t, active)

		for i, b := range []model.Bid{
			newBid("b1", "a1", "user1", 110, baseTime),
			newBid("b2", "a1", "user2", 150, baseTime.Add(time.Second)),
			newBid("b3", "a1", "user1", 160, baseTime.Add(2*time.Second)),
			newBid("b4", "a1", "user2", 170, baseTime.Add(3*time.Second)),
			newBid("b5", "a2", "user1", 120, baseTime.Add(4*time.Second)),
			newBid("b6", "a3", "user1", 130, baseTime.Add(5*time.Second)),
		} {
			_, err := repo.AcceptBid(ctx, b, acceptAll)
			require.NoError(t, err, "bid %d", i)
		}

		// ended auctions drop out of the view
		_, err = repo.UpdateAuction(ctx, "a3", func(a *model.Auction) error {
			a.Status = model.AuctionEnded
			return nil
		})
		require.NoError(t, err)

		active, err = repo.ListActiveBids(ctx, "user1")
		require.NoError(t, err)
		require.Len(t, active, 2)

		// soonest ending first
		require.Equal(t, "a2", active[0].AuctionID)
		require.True(t, active[0].IsWinning)
		require.True(t, active[0].MyHighestBid.Equal(decimal.NewFromInt(120)))
		require.Equal(t, int64(1), active[0].BidCount)

		require.Equal(t, "a1", active[1].AuctionID)
		require.Equal(t, "Auction a1", active[1].Title)
		require.False(t, active[1].IsWinning)
		require.True(t, active[1].MyHighestBid.Equal(decimal.NewFromInt(160)))
		require.True(t, active[1].CurrentPrice.Equal(decimal.NewFromInt(170)))
		require.Equal(t, int64(2), active[1].BidCount)
		require.NotNil(t, active[1].Image)
		require.Equal(t, "https://img.example/a1.jpg", *active[1].Image)
	})
}

func TestStore_UpdateAuction(t *testing.T) {
	t.Parallel()

	forEachStore(t, func(t *testing.T, repo store) {
		ctx := context.Background()
		require.NoError(t, repo.CreateAuction(ctx, newAuction("a1", "seller1", 100)))

		blocked := errors.New("blocked")
		_, err := repo.UpdateAuction(ctx, "a1", func(a *model.Auction) error {
			a.Status = model.AuctionCancelled
			return blocked
		})
		require.ErrorIs(t, err, blocked)

		got, err := repo.GetAuction(ctx, "a1")
		require.NoError(t, err)
		require.Equal(t, model.AuctionActive, got.Status)

		updated, err := repo.UpdateAuction(ctx, "a1", func(a *model.Auction) error {
			a.Status = model.AuctionCancelled
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, model.AuctionCancelled, updated.Status)
		require.Equal(t, got.Version+1, updated.Version)

		got, err = repo.GetAuction(ctx, "a1")
		require.NoError(t, err)
		require.Equal(t, model.AuctionCancelled, got.Status)

		_, err = repo.UpdateAuction(ctx, "missing", func(*model.Auction) error { return nil })
		require.ErrorIs(t, err, biddingerrors.ErrAuctionNotFound)
	})
}

func TestStore_CloseAndSettle(t *testing.T) {
	t.Parallel()

	forEachStore(t, func(t *testing.T, repo store) {
		ctx := context.Background()

		sold := newAuction("sold", "seller1", 100)
		sold.EndTime = baseTime.Add(-time.Minute)
		unsold := newAuction("unsold", "seller1", 100)
		unsold.EndTime = baseTime.Add(-2 * time.Minute)
		open := newAuction("open", "seller1", 100)
		for _, a := range []model.Auction{sold, unsold, open} {
			require.NoError(t, repo.CreateAuction(ctx, a))
		}
		_, err := repo.AcceptBid(ctx, newBid("b1", "sold", "buyer1", 250, baseTime.Add(-30*time.Minute)), acceptAll)
		require.NoError(t, err)

		ids, err := repo.ListExpiredAuctions(ctx, baseTime, 10)
		require.NoError(t, err)
		require.Equal(t, []string{"unsold", "sold"}, ids)

		ids, err = repo.ListExpiredAuctions(ctx, baseTime, 1)
		require.NoError(t, err)
		require.Equal(t, []string{"unsold"}, ids)

		closed, settlement, err := repo.CloseAuction(ctx, "sold", func(current model.Auction) (model.Auction, *model.Settlement, error) {
			current.Status = model.AuctionEnded
			return current, &model.Settlement{
				ID:            "s1",
				AuctionID:     current.ID,
				WinnerID:      *current.WinnerID,
				SellerID:      current.SellerID,
				WinningBid:    current.CurrentPrice,
				PaymentStatus: model.PaymentPending,
				CreatedAt:     baseTime,
				UpdatedAt:     baseTime,
			}, nil
		})
		require.NoError(t, err)
		require.Equal(t, model.AuctionEnded, closed.Status)
		require.NotNil(t, settlement)

		stillOpen := errors.New("still open")
		_, _, err = repo.CloseAuction(ctx, "open", func(model.Auction) (model.Auction, *model.Settlement, error) {
			return model.Auction{}, nil, stillOpen
		})
		require.ErrorIs(t, err, stillOpen)

		ids, err = repo.ListExpiredAuctions(ctx, baseTime, 10)
		require.NoError(t, err)
		require.Equal(t, []string{"unsold"}, ids)

		won, err := repo.ListSettlementsByWinner(ctx, "buyer1")
		require.NoError(t, err)
		require.Len(t, won, 1)
		require.True(t, won[0].WinningBid.Equal(decimal.NewFromInt(250)))

		paid, err := repo.UpdateSettlement(ctx, "sold", func(s *model.Settlement) error {
			s.PaymentStatus = model.PaymentPaid
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, model.PaymentPaid, paid.PaymentStatus)
		require.False(t, paid.Shipped)

		_, err = repo.UpdateSettlement(ctx, "unsold", func(*model.Settlement) error { return nil })
		require.ErrorIs(t, err, biddingerrors.ErrSettlementNotFound)

		summary, err := repo.Summary(ctx, "buyer1")
		require.NoError(t, err)
		require.Equal(t, int64(1), summary.AuctionsWon)
		require.True(t, summary.TotalSpent.Equal(decimal.NewFromInt(250)))
		require.Equal(t, int64(0), summary.ActiveBids)

		summary, err = repo.Summary(ctx, "seller1")
		require.NoError(t, err)
		require.Equal(t, int64(2), summary.MyAuctions)
		require.True(t, summary.TotalEarned.Equal(decimal.NewFromInt(250)))
		require.True(t, summary.TotalSpent.IsZero())
	})
}

func TestStore_Notifications(t *testing.T) {
	t.Parallel()

	forEachStore(t, func(t *testing.T, repo store) {
		ctx := context.Background()

		notes := make([]model.Notification, 0, 5)
		for i := 0; i < 5; i++ {
			notes = append(notes, model.Notification{
				ID:        fmt.Sprintf("n%d", i),
				UserID:    "user1",
				Type:      model.NotificationOutbid,
				Message:   fmt.Sprintf("message %d", i),
				RelatedID: "a1",
				CreatedAt: baseTime.Add(time.Duration(i) * time.Minute),
			})
		}
		notes = append(notes, model.Notification{ID: "other", UserID: "user2", Type: model.NotificationWon, Message: "won", CreatedAt: baseTime})
		require.NoError(t, repo.CreateNotifications(ctx, notes))

		page, total, err := repo.ListNotifications(ctx, "user1", 2, 1)
		require.NoError(t, err)
		require.Equal(t, int64(5), total)
		require.Len(t, page, 2)
		require.Equal(t, "n3", page[0].ID)
		require.Equal(t, "n2", page[1].ID)

		require.NoError(t, repo.MarkNotificationRead(ctx, "user1", "n4"))
		err = repo.MarkNotificationRead(ctx, "user2", "n3")
		require.ErrorIs(t, err, biddingerrors.ErrNotificationNotFound)

		summary, err := repo.Summary(ctx, "user1")
		require.NoError(t, err)
		require.Equal(t, int64(4), summary.UnreadNotifications)

		changed, err := repo.MarkAllNotificationsRead(ctx, "user1")
		require.NoError(t, err)
		require.Equal(t, int64(4), changed)

		page, _, err = repo.ListNotifications(ctx, "user1", 10, 0)
		require.NoError(t, err)
		for _, n := range page {
			require.True(t, n.IsRead, n.ID)
		}

		page, total, err = repo.ListNotifications(ctx, "nobody", 10, 0)
		require.NoError(t, err)
		require.Zero(t, total)
		require.Empty(t, page)
	})
}

// Concurrent bids on one auction: the ledger must stay strictly increasing and
// the final price must equal the last accepted bid.
func TestStore_ConcurrentAcceptBid(t *testing.T) {
	t.Parallel()

	forEachStore(t, func(t *testing.T, repo store) {
		ctx := context.Background()
		require.NoError(t, repo.CreateAuction(ctx, newAuction("hot", "seller1", 100)))

		const numBids = 40
		var wg sync.WaitGroup
		for i := 0; i < numBids; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				amount := decimal.NewFromInt(int64(110 + i*10))
				bid := model.Bid{
					ID:        fmt.Sprintf("bid%d", i),
					AuctionID: "hot",
					BidderID:  fmt.Sprintf("user%d", i),
					Amount:    amount,
					CreatedAt: baseTime.Add(time.Duration(i) * time.Millisecond),
				}
				_, err := repo.AcceptBid(ctx, bid, increasingOnly(amount))
				if err != nil {
					assert.ErrorIs(t, err, biddingerrors.ErrBidTooLow)
				}
			}(i)
		}
		wg.Wait()

		bids, err := repo.GetBidsByAuction(ctx, "hot")
		require.NoError(t, err)
		require.NotEmpty(t, bids)

		got, err := repo.GetAuction(ctx, "hot")
		require.NoError(t, err)
		// the highest offer can never be rejected by an increasing-only check
		require.True(t, got.CurrentPrice.Equal(decimal.NewFromInt(110+(numBids-1)*10)))
		require.Equal(t, int64(len(bids)), got.Version)

		winning, err := repo.GetWinningBid(ctx, "hot")
		require.NoError(t, err)
		require.Equal(t, *got.WinnerID, winning.BidderID)
	})
}

func TestMemoryRepo_LedgerOrder(t *testing.T) {
	t.Parallel()

	repo := NewMemoryRepo()
	repo.AddAuction(newAuction("a1", "seller1", 100))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			amount := decimal.NewFromInt(int64(101 + i))
			_, _ = repo.AcceptBid(context.Background(), model.Bid{
				ID:        fmt.Sprintf("b%d", i),
				AuctionID: "a1",
				BidderID:  fmt.Sprintf("u%d", i),
				Amount:    amount,
				CreatedAt: time.Now(),
			}, increasingOnly(amount))
		}(i)
	}
	wg.Wait()

	bids := repo.bids["a1"]
	for i := 1; i < len(bids); i++ {
		require.True(t, bids[i].Amount.GreaterThan(bids[i-1].Amount), "ledger must be strictly increasing")
	}
	require.Len(t, repo.bidderAuctions, len(bids))
}

func TestMemoryRepo_AddAuctionKeepsLock(t *testing.T) {
	t.Parallel()

	repo := NewMemoryRepo()
	a := newAuction("a1", "seller1", 100)
	repo.AddAuction(a)
	lock := repo.rowLocks["a1"]

	a.Title = "renamed"
	repo.AddAuction(a)

	require.Same(t, lock, repo.rowLocks["a1"])
	require.Equal(t, "renamed", repo.auctions["a1"].Title)
}
