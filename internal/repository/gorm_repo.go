package repository

import (
	"bidvault/internal/biddingerrors"
	model "bidvault/internal/models"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormRepo implements AuctionDB and AccountDB on a relational database.
// Every write to an auction row runs in a transaction that takes a row lock (SELECT ... FOR UPDATE)
// and guards the update with the row version, so a lost update surfaces as ErrConflict.
type GormRepo struct {
	db *gorm.DB
}

// NewGormRepo creates a repository on an opened and migrated database
func NewGormRepo(db *gorm.DB) *GormRepo {
	return &GormRepo{db: db}
}

// CreateAuction stores a new auction
func (r *GormRepo) CreateAuction(ctx context.Context, auction model.Auction) error {
	if err := r.db.WithContext(ctx).Create(&auction).Error; err != nil {
		if isConflict(err) {
			return fmt.Errorf("create auction %s: %w - duplicate id", auction.ID, biddingerrors.ErrInvalidAuction)
		}
		return fmt.Errorf("create auction %s: %w", auction.ID, err)
	}
	return nil
}

// GetAuction returns a single auction
func (r *GormRepo) GetAuction(ctx context.Context, auctionID string) (model.Auction, error) {
	var auction model.Auction
	err := r.db.WithContext(ctx).Where("id = ?", auctionID).Take(&auction).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	if err != nil {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, err)
	}
	return auction, nil
}

// ListAuctions returns auctions matching the filter
func (r *GormRepo) ListAuctions(ctx context.Context, filter AuctionFilter) ([]model.Auction, error) {
	q := r.db.WithContext(ctx).Model(&model.Auction{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.SellerID != "" {
		q = q.Where("seller_id = ?", filter.SellerID).Order("created_at DESC")
	} else {
		q = q.Order("end_time ASC")
	}

	auctions := make([]model.Auction, 0)
	if err := q.Find(&auctions).Error; err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}
	return auctions, nil
}

// CountBids returns the number of accepted bids per auction
func (r *GormRepo) CountBids(ctx context.Context, auctionIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(auctionIDs))
	if len(auctionIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		AuctionID string
		Total     int64
	}
	err := r.db.WithContext(ctx).Model(&model.Bid{}).
		Select("auction_id, COUNT(*) AS total").
		Where("auction_id IN ?", auctionIDs).
		Group("auction_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count bids: %w", err)
	}
	for _, row := range rows {
		counts[row.AuctionID] = row.Total
	}
	return counts, nil
}

// lockAuction reads an auction row under an exclusive row lock
func lockAuction(tx *gorm.DB, auctionID string) (model.Auction, error) {
	var auction model.Auction
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", auctionID).Take(&auction).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Auction{}, biddingerrors.ErrAuctionNotFound
	}
	return auction, err
}

// saveAuction writes every column of auction if its version still matches expected
func saveAuction(tx *gorm.DB, auction *model.Auction, expected int64) error {
	auction.Version = expected + 1
	res := tx.Model(auction).
		Where("version = ?", expected).
		Select("*").Omit("id", "created_at").
		Updates(auction)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return biddingerrors.ErrConflict
	}
	return nil
}

// AcceptBid validates and records a bid and updates the auction in one transaction
func (r *GormRepo) AcceptBid(ctx context.Context, bid model.Bid, check BidCheck) (model.Auction, error) {
	var previous model.Auction

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := lockAuction(tx, bid.AuctionID)
		if err != nil {
			return err
		}
		if err := check(current, &bid); err != nil {
			return err
		}

		if err := tx.Create(&bid).Error; err != nil {
			return err
		}
		res := tx.Model(&model.Auction{}).
			Where("id = ? AND version = ?", current.ID, current.Version).
			Updates(map[string]any{
				"current_price": bid.Amount,
				"winner_id":     bid.BidderID,
				"version":       current.Version + 1,
				"updated_at":    bid.CreatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return biddingerrors.ErrConflict
		}

		previous = current
		return nil
	})
	if err != nil {
		return model.Auction{}, wrapTxError(fmt.Sprintf("record bid for auction %s", bid.AuctionID), err)
	}
	return previous, nil
}

// GetBidsByAuction returns all bids for an auction, oldest first
func (r *GormRepo) GetBidsByAuction(ctx context.Context, auctionID string) ([]model.Bid, error) {
	if _, err := r.GetAuction(ctx, auctionID); err != nil {
		return nil, err
	}

	var bids []model.Bid
	err := r.db.WithContext(ctx).
		Where("auction_id = ?", auctionID).
		Order("created_at ASC, amount ASC").
		Find(&bids).Error
	if err != nil {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, err)
	}
	if len(bids) == 0 {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, biddingerrors.ErrNoBids)
	}
	return bids, nil
}

// GetWinningBid returns the highest bid for an auction
func (r *GormRepo) GetWinningBid(ctx context.Context, auctionID string) (model.Bid, error) {
	var bid model.Bid
	err := r.db.WithContext(ctx).
		Where("auction_id = ?", auctionID).
		Order("amount DESC, created_at ASC").
		Take(&bid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Bid{}, fmt.Errorf("get winning bid for auction %s: %w", auctionID, biddingerrors.ErrNoBids)
	}
	if err != nil {
		return model.Bid{}, fmt.Errorf("get winning bid for auction %s: %w", auctionID, err)
	}
	return bid, nil
}

// GetAuctionsByBidder returns all auctions a user has bid on
func (r *GormRepo) GetAuctionsByBidder(ctx context.Context, bidderID string) ([]model.Auction, error) {
	db := r.db.WithContext(ctx)
	bidOn := db.Model(&model.Bid{}).Select("auction_id").Where("bidder_id = ?", bidderID)

	var auctions []model.Auction
	if err := db.Where("id IN (?)", bidOn).Order("end_time ASC").Find(&auctions).Error; err != nil {
		return nil, fmt.Errorf("get auctions for user %s: %w", bidderID, err)
	}
	if len(auctions) == 0 {
		return nil, fmt.Errorf("get auctions for user %s: %w", bidderID, biddingerrors.ErrUserNoBids)
	}
	return auctions, nil
}

// UpdateAuction applies mutate to the locked auction and stores the result
func (r *GormRepo) UpdateAuction(ctx context.Context, auctionID string, mutate AuctionMutation) (model.Auction, error) {
	var updated model.Auction

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := lockAuction(tx, auctionID)
		if err != nil {
			return err
		}
		updated = current
		if err := mutate(&updated); err != nil {
			return err
		}
		updated.ID = auctionID
		return saveAuction(tx, &updated, current.Version)
	})
	if err != nil {
		return model.Auction{}, wrapTxError(fmt.Sprintf("update auction %s", auctionID), err)
	}
	return updated, nil
}

// ListExpiredAuctions returns ids of active auctions whose end time has passed, oldest first
func (r *GormRepo) ListExpiredAuctions(ctx context.Context, now time.Time, limit int) ([]string, error) {
	q := r.db.WithContext(ctx).Model(&model.Auction{}).
		Where("status = ? AND end_time <= ?", model.AuctionActive, now).
		Order("end_time ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var ids []string
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list expired auctions: %w", err)
	}
	return ids, nil
}

// CloseAuction applies settle to the locked auction and stores the outcome with its settlement
func (r *GormRepo) CloseAuction(ctx context.Context, auctionID string, settle SettleFunc) (model.Auction, *model.Settlement, error) {
	var (
		closed     model.Auction
		settlement *model.Settlement
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := lockAuction(tx, auctionID)
		if err != nil {
			return err
		}
		closed, settlement, err = settle(current)
		if err != nil {
			return err
		}
		closed.ID = auctionID
		if err := saveAuction(tx, &closed, current.Version); err != nil {
			return err
		}
		if settlement != nil {
			return tx.Create(settlement).Error
		}
		return nil
	})
	if err != nil {
		return model.Auction{}, nil, wrapTxError(fmt.Sprintf("close auction %s", auctionID), err)
	}
	return closed, settlement, nil
}

// CreateNotifications stores notifications for their recipients
func (r *GormRepo) CreateNotifications(ctx context.Context, notifications []model.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&notifications).Error; err != nil {
		return wrapTxError("create notifications", err)
	}
	return nil
}

// ListNotifications returns a page of a user's notifications, newest first, and the total count
func (r *GormRepo) ListNotifications(ctx context.Context, userID string, limit, offset int) ([]model.Notification, int64, error) {
	db := r.db.WithContext(ctx)

	var total int64
	if err := db.Model(&model.Notification{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count notifications for user %s: %w", userID, err)
	}

	notifications := make([]model.Notification, 0, limit)
	err := db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&notifications).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications for user %s: %w", userID, err)
	}
	return notifications, total, nil
}

// MarkNotificationRead flags one of the user's notifications as read
func (r *GormRepo) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	res := r.db.WithContext(ctx).Model(&model.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("is_read", true)
	if res.Error != nil {
		return fmt.Errorf("mark notification %s read: %w", notificationID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("mark notification %s read: %w", notificationID, biddingerrors.ErrNotificationNotFound)
	}
	return nil
}

// MarkAllNotificationsRead flags every unread notification of the user and returns how many changed
func (r *GormRepo) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, fmt.Errorf("mark notifications read for user %s: %w", userID, res.Error)
	}
	return res.RowsAffected, nil
}

// ListSettlementsByWinner returns the settlements won by a user, newest first
func (r *GormRepo) ListSettlementsByWinner(ctx context.Context, winnerID string) ([]model.Settlement, error) {
	settlements := make([]model.Settlement, 0)
	err := r.db.WithContext(ctx).
		Where("winner_id = ?", winnerID).
		Order("created_at DESC").
		Find(&settlements).Error
	if err != nil {
		return nil, fmt.Errorf("list settlements for user %s: %w", winnerID, err)
	}
	return settlements, nil
}

// UpdateSettlement applies mutate to the locked settlement of an auction
func (r *GormRepo) UpdateSettlement(ctx context.Context, auctionID string, mutate SettlementMutation) (model.Settlement, error) {
	var settlement model.Settlement

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("auction_id = ?", auctionID).
			Take(&settlement).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return biddingerrors.ErrSettlementNotFound
		}
		if err != nil {
			return err
		}
		if err := mutate(&settlement); err != nil {
			return err
		}
		settlement.AuctionID = auctionID
		return tx.Save(&settlement).Error
	})
	if err != nil {
		return model.Settlement{}, wrapTxError(fmt.Sprintf("update settlement for auction %s", auctionID), err)
	}
	return settlement, nil
}

// Summary aggregates a user's activity
func (r *GormRepo) Summary(ctx context.Context, userID string) (model.DashboardSummary, error) {
	db := r.db.WithContext(ctx)
	summary := model.DashboardSummary{}

	bidOn := db.Model(&model.Bid{}).Select("auction_id").Where("bidder_id = ?", userID)

	counts := []struct {
		dest  *int64
		query *gorm.DB
	}{
		{&summary.ActiveBids, db.Model(&model.Auction{}).Where("status = ? AND id IN (?)", model.AuctionActive, bidOn)},
		{&summary.MyAuctions, db.Model(&model.Auction{}).Where("status = ? AND seller_id = ?", model.AuctionActive, userID)},
		{&summary.CurrentlyWinning, db.Model(&model.Auction{}).Where("status = ? AND winner_id = ?", model.AuctionActive, userID)},
		{&summary.AuctionsWon, db.Model(&model.Settlement{}).Where("winner_id = ?", userID)},
		{&summary.UnreadNotifications, db.Model(&model.Notification{}).Where("user_id = ? AND is_read = ?", userID, false)},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dest).Error; err != nil {
			return model.DashboardSummary{}, fmt.Errorf("summary for user %s: %w", userID, err)
		}
	}

	spent, err := sumWinningBids(db, "winner_id = ?", userID)
	if err != nil {
		return model.DashboardSummary{}, fmt.Errorf("summary for user %s: %w", userID, err)
	}
	earned, err := sumWinningBids(db, "seller_id = ?", userID)
	if err != nil {
		return model.DashboardSummary{}, fmt.Errorf("summary for user %s: %w", userID, err)
	}
	summary.TotalSpent = spent
	summary.TotalEarned = earned

	return summary, nil
}

// ListActiveBids returns the active auctions a user has bid on, soonest ending first
func (r *GormRepo) ListActiveBids(ctx context.Context, userID string) ([]model.ActiveBid, error) {
	db := r.db.WithContext(ctx)

	var mine []struct {
		AuctionID    string
		MyHighestBid decimal.Decimal
		BidCount     int64
	}
	err := db.Model(&model.Bid{}).
		Select("auction_id, MAX(amount) AS my_highest_bid, COUNT(*) AS bid_count").
		Where("bidder_id = ?", userID).
		Group("auction_id").
		Scan(&mine).Error
	if err != nil {
		return nil, fmt.Errorf("active bids for user %s: %w", userID, err)
	}
	out := []model.ActiveBid{}
	if len(mine) == 0 {
		return out, nil
	}

	ids := make([]string, 0, len(mine))
	for _, m := range mine {
		ids = append(ids, m.AuctionID)
	}
	var auctions []model.Auction
	err = db.Where("id IN ? AND status = ?", ids, model.AuctionActive).
		Order("end_time ASC").
		Find(&auctions).Error
	if err != nil {
		return nil, fmt.Errorf("active bids for user %s: %w", userID, err)
	}

	for _, a := range auctions {
		for _, m := range mine {
			if m.AuctionID == a.ID {
				out = append(out, model.NewActiveBid(a, userID, m.MyHighestBid, m.BidCount))
				break
			}
		}
	}
	return out, nil
}

func sumWinningBids(db *gorm.DB, cond string, userID string) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	row := db.Model(&model.Settlement{}).Select("SUM(winning_bid)").Where(cond, userID).Row()
	if err := row.Scan(&total); err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// wrapTxError keeps caller-visible sentinels intact and turns lock or serialization failures into ErrConflict
func wrapTxError(op string, err error) error {
	if isConflict(err) {
		return fmt.Errorf("%s: %w", op, biddingerrors.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isConflict reports driver errors that mean another writer got there first. Only typed driver
// errors count, so rule violations raised inside a transaction are never mistaken for conflicts.
func isConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03", "23505": // serialization, deadlock, lock not available, unique
			return true
		}
		return false
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return true
		case sqlite3.ErrConstraint:
			return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique || liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
		}
	}
	return false
}
