package helpers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"bidvault/internal/biddingerrors"
	"bidvault/utils"

	"github.com/gin-gonic/gin"
)

// UserIDKey is the gin context key holding the authenticated caller
const UserIDKey = "user_id"

var errInternal = errors.New("internal server error")

// CurrentUser returns the id set by the auth middleware
func CurrentUser(c *gin.Context) (string, bool) {
	id := c.GetString(UserIDKey)
	return id, id != ""
}

// HandleBindError sends a standardized JSON error for binding failures
func HandleBindError(c *gin.Context, handlerName string, err error) {
	wrappedErr := fmt.Errorf("invalid request payload: %w", err)
	utils.JSONRejection(c, http.StatusBadRequest, wrappedErr, "invalid request payload", "VALIDATION_ERROR")
	utils.Warn(handlerName+": binding error", map[string]any{"error": err.Error()})
}

// MapErrorToHTTP maps domain/service errors to HTTP status code and message
func MapErrorToHTTP(err error) (int, string) {
	switch {
	case errors.Is(err, biddingerrors.ErrAuctionNotFound):
		return http.StatusNotFound, "auction not found"
	case errors.Is(err, biddingerrors.ErrSettlementNotFound):
		return http.StatusNotFound, "settlement not found"
	case errors.Is(err, biddingerrors.ErrNotificationNotFound):
		return http.StatusNotFound, "notification not found"
	case errors.Is(err, biddingerrors.ErrInvalidBid):
		return http.StatusBadRequest, "invalid bid details"
	case errors.Is(err, biddingerrors.ErrInvalidAuction):
		return http.StatusBadRequest, "invalid auction details"
	case errors.Is(err, biddingerrors.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, biddingerrors.ErrUnauthorized):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, biddingerrors.ErrForbidden):
		return http.StatusForbidden, "not allowed"
	case errors.Is(err, biddingerrors.ErrAuctionNotActive):
		return http.StatusBadRequest, "auction is not active"
	case errors.Is(err, biddingerrors.ErrAuctionEnded):
		return http.StatusBadRequest, "auction has ended"
	case errors.Is(err, biddingerrors.ErrSelfBid):
		return http.StatusBadRequest, "cannot bid on own auction"
	case errors.Is(err, biddingerrors.ErrBidTooLow):
		return http.StatusBadRequest, "bid amount too low"
	case errors.Is(err, biddingerrors.ErrAuctionHasBids):
		return http.StatusBadRequest, "auction already has bids"
	case errors.Is(err, biddingerrors.ErrAlreadySettled):
		return http.StatusBadRequest, "already updated"
	case errors.Is(err, biddingerrors.ErrConflict):
		return http.StatusConflict, "concurrent update, please retry"
	case errors.Is(err, biddingerrors.ErrNoBids):
		return http.StatusNotFound, "no bids found for auction"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// RespondError writes the error envelope for err and logs it. Unknown errors are logged
// in full but reach the client only as a generic message.
func RespondError(c *gin.Context, handlerName string, err error, fields map[string]any) {
	status, message := MapErrorToHTTP(err)

	logFields := map[string]any{"handler": handlerName, "status": status, "error": err.Error()}
	for k, v := range fields {
		logFields[k] = v
	}

	if status >= http.StatusInternalServerError {
		utils.JSONRejection(c, status, errInternal, message, "")
		utils.Error(handlerName+": request failed", logFields)
		return
	}
	utils.JSONRejection(c, status, fmt.Errorf("%s: %w", message, err), message, biddingerrors.Reason(err))
	utils.Warn(handlerName+": request rejected", logFields)
}

// ParsePage reads limit and offset query parameters; a missing limit is 0 and left to the service default
func ParsePage(c *gin.Context) (int, int, error) {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return 0, 0, err
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w - %s must be a non-negative integer", biddingerrors.ErrInvalidRequest, key)
	}
	return v, nil
}

// LogSuccess is a small helper to standardize logging of successful operations
func LogSuccess(handlerName, message string, ctx map[string]any) {
	utils.Info(handlerName+": "+message, ctx)
}
