package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// amounts travel as JSON numbers, matching the API's numeric price fields
	decimal.MarshalJSONWithoutQuotes = true
}

// AuctionStatus is the lifecycle state of an auction
type AuctionStatus string

const (
	AuctionActive    AuctionStatus = "active"
	AuctionEnded     AuctionStatus = "ended"
	AuctionCancelled AuctionStatus = "cancelled"
)

// Valid reports whether s is a known status
func (s AuctionStatus) Valid() bool {
	switch s {
	case AuctionActive, AuctionEnded, AuctionCancelled:
		return true
	}
	return false
}

// Auction represents an item put up for sale by a seller
type Auction struct {
	ID            string              `gorm:"primaryKey;size:36" json:"id"`
	SellerID      string              `gorm:"size:64;not null;index" json:"seller_id"`
	Title         string              `gorm:"size:255;not null" json:"title"`
	Description   string              `gorm:"type:text" json:"description"`
	Images        []string            `gorm:"serializer:json" json:"images"`
	StartingPrice decimal.Decimal     `gorm:"type:numeric(14,2);not null" json:"starting_price"`
	CurrentPrice  decimal.Decimal     `gorm:"type:numeric(14,2);not null" json:"current_price"`
	MinIncrement  decimal.Decimal     `gorm:"type:numeric(14,2);not null" json:"min_increment"`
	ReservePrice  decimal.NullDecimal `gorm:"type:numeric(14,2)" json:"reserve_price"`
	BuyNowPrice   decimal.NullDecimal `gorm:"type:numeric(14,2)" json:"buy_now_price"`
	StartTime     time.Time           `gorm:"not null" json:"start_time"`
	EndTime       time.Time           `gorm:"not null;index" json:"end_time"`
	Status        AuctionStatus       `gorm:"size:16;not null;index" json:"status"`
	WinnerID      *string             `gorm:"size:64;index" json:"winner_id"`
	Version       int64               `gorm:"not null;default:0" json:"-"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

func (Auction) TableName() string { return "auctions" }

// MinimumBid is the lowest amount the next bid may offer
func (a Auction) MinimumBid() decimal.Decimal {
	return a.CurrentPrice.Add(a.MinIncrement)
}

// HasBids reports whether any bid has been accepted; a winner only exists once someone has bid.
func (a Auction) HasBids() bool {
	return a.WinnerID != nil
}

// ReserveMet reports whether the current price satisfies the reserve, if one is set
func (a Auction) ReserveMet() bool {
	return !a.ReservePrice.Valid || a.CurrentPrice.GreaterThanOrEqual(a.ReservePrice.Decimal)
}

// Bid represents a user's accepted bid on an auction
type Bid struct {
	ID        string          `gorm:"primaryKey;size:36" json:"bid_id"`
	AuctionID string          `gorm:"size:36;not null;index" json:"auction_id"`
	BidderID  string          `gorm:"size:64;not null;index" json:"bidder_id"`
	Amount    decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	CreatedAt time.Time       `gorm:"not null" json:"created_at"`
}

func (Bid) TableName() string { return "bids" }

// Payment states of a settlement
const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"
)

// Settlement records the post-sale state of an auction that ended with a winner
type Settlement struct {
	ID            string          `gorm:"primaryKey;size:36" json:"id"`
	AuctionID     string          `gorm:"size:36;not null;uniqueIndex" json:"auction_id"`
	WinnerID      string          `gorm:"size:64;not null;index" json:"winner_id"`
	SellerID      string          `gorm:"size:64;not null;index" json:"seller_id"`
	WinningBid    decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"winning_bid"`
	PaymentStatus string          `gorm:"size:16;not null;default:pending" json:"payment_status"`
	Shipped       bool            `gorm:"not null;default:false" json:"shipped"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (Settlement) TableName() string { return "settlements" }

// NotificationType classifies a user notification
type NotificationType string

const (
	NotificationOutbid NotificationType = "outbid"
	NotificationWon    NotificationType = "won"
	NotificationEnded  NotificationType = "ended"
	NotificationSystem NotificationType = "system"
)

// Notification is a message delivered to a single user
type Notification struct {
	ID        string           `gorm:"primaryKey;size:36" json:"id"`
	UserID    string           `gorm:"size:64;not null;index" json:"user_id"`
	Type      NotificationType `gorm:"size:16;not null" json:"type"`
	Message   string           `gorm:"size:512;not null" json:"message"`
	RelatedID string           `gorm:"size:36" json:"related_id"`
	IsRead    bool             `gorm:"not null;default:false;index" json:"is_read"`
	CreatedAt time.Time        `gorm:"index" json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }

// ActiveBid is one active auction the user has bid on, seen from that bidder's side
type ActiveBid struct {
	AuctionID    string          `json:"auction_id"`
	Title        string          `json:"title"`
	Image        *string         `json:"image"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	MinIncrement decimal.Decimal `json:"min_increment"`
	MyHighestBid decimal.Decimal `json:"my_highest_bid"`
	BidCount     int64           `json:"bid_count"` // the user's own bids
	IsWinning    bool            `json:"is_winning"`
	Status       AuctionStatus   `json:"status"`
	EndTime      time.Time       `json:"end_time"`
}

// NewActiveBid combines an auction with the user's bidding on it
func NewActiveBid(a Auction, userID string, myHighest decimal.Decimal, count int64) ActiveBid {
	ab := ActiveBid{
		AuctionID:    a.ID,
		Title:        a.Title,
		CurrentPrice: a.CurrentPrice,
		MinIncrement: a.MinIncrement,
		MyHighestBid: myHighest,
		BidCount:     count,
		IsWinning:    a.WinnerID != nil && *a.WinnerID == userID,
		Status:       a.Status,
		EndTime:      a.EndTime,
	}
	if len(a.Images) > 0 {
		ab.Image = &a.Images[0]
	}
	return ab
}

// DashboardSummary aggregates a user's buying and selling activity
type DashboardSummary struct {
	ActiveBids          int64           `json:"active_bids"`
	MyAuctions          int64           `json:"my_auctions"`
	CurrentlyWinning    int64           `json:"currently_winning"`
	AuctionsWon         int64           `json:"auctions_won"`
	TotalSpent          decimal.Decimal `json:"total_spent"`
	TotalEarned         decimal.Decimal `json:"total_earned"`
	UnreadNotifications int64           `json:"unread_notifications"`
}
