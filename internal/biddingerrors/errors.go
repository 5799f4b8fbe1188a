package biddingerrors

import "errors"

// Repository-level errors
var (
	ErrAuctionNotFound      = errors.New("auction not found")
	ErrNoBids               = errors.New("no bids found for auction")
	ErrUserNoBids           = errors.New("user has not placed any bids")
	ErrSettlementNotFound   = errors.New("settlement not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrConflict             = errors.New("concurrent update conflict")
)

// validation errors
var (
	ErrInvalidBid     = errors.New("invalid bid")
	ErrInvalidAuction = errors.New("invalid auction")
	ErrInvalidRequest = errors.New("invalid request")
)

// auth errors
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// business logic errors
var (
	ErrAuctionNotActive = errors.New("auction is not active")
	ErrAuctionEnded     = errors.New("auction has ended")
	ErrSelfBid          = errors.New("cannot bid on own auction")
	ErrBidTooLow        = errors.New("bid amount too low")
	ErrAuctionHasBids   = errors.New("auction already has bids")
	ErrAuctionStillOpen = errors.New("auction has not reached its end time")
	ErrAlreadySettled   = errors.New("settlement already updated")
)

// reasons pairs each caller-visible sentinel with a stable reason code.
var reasons = []struct {
	err  error
	code string
}{
	{ErrAuctionNotFound, "AUCTION_NOT_FOUND"},
	{ErrSettlementNotFound, "SETTLEMENT_NOT_FOUND"},
	{ErrNotificationNotFound, "NOTIFICATION_NOT_FOUND"},
	{ErrAuctionNotActive, "AUCTION_NOT_ACTIVE"},
	{ErrAuctionEnded, "AUCTION_ENDED"},
	{ErrSelfBid, "SELF_BID"},
	{ErrBidTooLow, "BID_TOO_LOW"},
	{ErrAuctionHasBids, "AUCTION_HAS_BIDS"},
	{ErrAlreadySettled, "ALREADY_SETTLED"},
	{ErrInvalidBid, "VALIDATION_ERROR"},
	{ErrInvalidAuction, "VALIDATION_ERROR"},
	{ErrInvalidRequest, "VALIDATION_ERROR"},
	{ErrUnauthorized, "UNAUTHORIZED"},
	{ErrForbidden, "FORBIDDEN"},
	{ErrConflict, "CONFLICT"},
}

// Reason returns the reason code for err, or "" when err carries no known sentinel.
func Reason(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.code
		}
	}
	return ""
}
