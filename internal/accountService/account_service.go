package account

import (
	"bidvault/internal/biddingerrors"
	"bidvault/internal/models"
	"bidvault/internal/repository"
	"bidvault/utils"
	"context"
	"fmt"
	"time"
)

// Notification paging bounds
const (
	DefaultNotificationLimit = 20
	MaxNotificationLimit     = 100
)

// NotificationPage is one page of a user's notifications
type NotificationPage struct {
	Notifications []models.Notification `json:"notifications"`
	Total         int64                 `json:"total"`
	Limit         int                   `json:"limit"`
	Offset        int                   `json:"offset"`
}

// AccountService serves per-user views: notifications, wins, post-sale updates and the dashboard
type AccountService struct {
	repo repository.AccountDB
	now  func() time.Time
}

// NewAccountService creates a new AccountService instance
func NewAccountService(repo repository.AccountDB) *AccountService {
	return &AccountService{repo: repo, now: time.Now}
}

// ListNotifications returns a page of the user's notifications, newest first
func (s *AccountService) ListNotifications(ctx context.Context, userID string, limit, offset int) (NotificationPage, error) {
	if userID == "" {
		return NotificationPage{}, fmt.Errorf("service: %w - empty user ID", biddingerrors.ErrInvalidRequest)
	}
	if limit <= 0 {
		limit = DefaultNotificationLimit
	}
	if limit > MaxNotificationLimit {
		limit = MaxNotificationLimit
	}
	if offset < 0 {
		offset = 0
	}

	notifications, total, err := s.repo.ListNotifications(ctx, userID, limit, offset)
	if err != nil {
		return NotificationPage{}, fmt.Errorf("service: failed to list notifications for user %s: %w", userID, err)
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}

	return NotificationPage{Notifications: notifications, Total: total, Limit: limit, Offset: offset}, nil
}

// MarkNotificationRead flags one of the user's notifications as read
func (s *AccountService) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	if userID == "" || !utils.IsValidID(notificationID) {
		return fmt.Errorf("service: %w - invalid notification ID", biddingerrors.ErrInvalidRequest)
	}
	if err := s.repo.MarkNotificationRead(ctx, userID, notificationID); err != nil {
		return fmt.Errorf("service: failed to mark notification %s read: %w", notificationID, err)
	}
	return nil
}

// MarkAllNotificationsRead flags all of the user's notifications as read and reports how many changed
func (s *AccountService) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, fmt.Errorf("service: %w - empty user ID", biddingerrors.ErrInvalidRequest)
	}
	changed, err := s.repo.MarkAllNotificationsRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("service: failed to mark notifications read for user %s: %w", userID, err)
	}
	return changed, nil
}

// ListWins returns the settlements of auctions the user won
func (s *AccountService) ListWins(ctx context.Context, userID string) ([]models.Settlement, error) {
	if userID == "" {
		return nil, fmt.Errorf("service: %w - empty user ID", biddingerrors.ErrInvalidRequest)
	}
	wins, err := s.repo.ListSettlementsByWinner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list wins for user %s: %w", userID, err)
	}
	return wins, nil
}

// MarkPaid records the winner's payment for a won auction
func (s *AccountService) MarkPaid(ctx context.Context, userID, auctionID string) (models.Settlement, error) {
	return s.updateSettlement(ctx, userID, auctionID, func(st *models.Settlement) error {
		if st.WinnerID != userID {
			return fmt.Errorf("service: %w - only the winner can mark a settlement paid", biddingerrors.ErrForbidden)
		}
		if st.PaymentStatus == models.PaymentPaid {
			return fmt.Errorf("service: %w - already paid", biddingerrors.ErrAlreadySettled)
		}
		st.PaymentStatus = models.PaymentPaid
		return nil
	})
}

// MarkShipped records that the seller shipped a sold item
func (s *AccountService) MarkShipped(ctx context.Context, userID, auctionID string) (models.Settlement, error) {
	return s.updateSettlement(ctx, userID, auctionID, func(st *models.Settlement) error {
		if st.SellerID != userID {
			return fmt.Errorf("service: %w - only the seller can mark a settlement shipped", biddingerrors.ErrForbidden)
		}
		if st.Shipped {
			return fmt.Errorf("service: %w - already shipped", biddingerrors.ErrAlreadySettled)
		}
		st.Shipped = true
		return nil
	})
}

func (s *AccountService) updateSettlement(ctx context.Context, userID, auctionID string, mutate repository.SettlementMutation) (models.Settlement, error) {
	if userID == "" || auctionID == "" {
		return models.Settlement{}, fmt.Errorf("service: %w - missing user or auction ID", biddingerrors.ErrInvalidRequest)
	}

	updated, err := s.repo.UpdateSettlement(ctx, auctionID, func(st *models.Settlement) error {
		if err := mutate(st); err != nil {
			return err
		}
		st.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return models.Settlement{}, fmt.Errorf("service: failed to update settlement for auction %s: %w", auctionID, err)
	}

	utils.Info("Settlement updated", map[string]any{
		"auction_id":     auctionID,
		"user_id":        userID,
		"payment_status": updated.PaymentStatus,
		"shipped":        updated.Shipped,
	})
	return updated, nil
}

// Summary aggregates the user's buying and selling activity
func (s *AccountService) Summary(ctx context.Context, userID string) (models.DashboardSummary, error) {
	if userID == "" {
		return models.DashboardSummary{}, fmt.Errorf("service: %w - empty user ID", biddingerrors.ErrInvalidRequest)
	}
	summary, err := s.repo.Summary(ctx, userID)
	if err != nil {
		return models.DashboardSummary{}, fmt.Errorf("service: failed to build summary for user %s: %w", userID, err)
	}
	return summary, nil
}

// ActiveBids lists the active auctions the user has bid on, with the user's standing in each
func (s *AccountService) ActiveBids(ctx context.Context, userID string) ([]models.ActiveBid, error) {
	if userID == "" {
		return nil, fmt.Errorf("service: %w - empty user ID", biddingerrors.ErrInvalidRequest)
	}
	bids, err := s.repo.ListActiveBids(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list active bids for user %s: %w", userID, err)
	}
	if bids == nil {
		bids = []models.ActiveBid{}
	}
	return bids, nil
}
