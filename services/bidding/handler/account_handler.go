package handler

import (
	"context"
	"net/http"

	account "bidvault/internal/accountService"
	"bidvault/internal/biddingerrors"
	model "bidvault/internal/models"
	"bidvault/services/bidding/helpers"
	"bidvault/utils"

	"github.com/gin-gonic/gin"
)

type AccountServiceInterface interface {
	ListNotifications(ctx context.Context, userID string, limit, offset int) (account.NotificationPage, error)
	MarkNotificationRead(ctx context.Context, userID, notificationID string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error)
	ListWins(ctx context.Context, userID string) ([]model.Settlement, error)
	MarkPaid(ctx context.Context, userID, auctionID string) (model.Settlement, error)
	MarkShipped(ctx context.Context, userID, auctionID string) (model.Settlement, error)
	Summary(ctx context.Context, userID string) (model.DashboardSummary, error)
	ActiveBids(ctx context.Context, userID string) ([]model.ActiveBid, error)
}

// AccountHandler serves the authenticated caller's own views. Every route sits behind the auth middleware.
type AccountHandler struct {
	service AccountServiceInterface
}

func NewAccountHandler(service AccountServiceInterface) *AccountHandler {
	return &AccountHandler{service: service}
}

// caller returns the authenticated user or writes a 401
func caller(c *gin.Context, handlerName string) (string, bool) {
	userID, ok := helpers.CurrentUser(c)
	if !ok {
		helpers.RespondError(c, handlerName, biddingerrors.ErrUnauthorized, nil)
	}
	return userID, ok
}

// ListNotificationsHandler handles GET /api/notifications?limit=&offset=
func (h *AccountHandler) ListNotificationsHandler(c *gin.Context) {
	userID, ok := caller(c, "ListNotificationsHandler")
	if !ok {
		return
	}
	limit, offset, err := helpers.ParsePage(c)
	if err != nil {
		helpers.RespondError(c, "ListNotificationsHandler", err, nil)
		return
	}

	page, err := h.service.ListNotifications(c.Request.Context(), userID, limit, offset)
	if err != nil {
		helpers.RespondError(c, "ListNotificationsHandler", err, map[string]any{"user_id": userID})
		return
	}
	utils.JSONResponse(c, http.StatusOK, page, "notifications retrieved successfully")
}

// MarkNotificationReadHandler handles PUT /api/notifications/:notification_id/read
func (h *AccountHandler) MarkNotificationReadHandler(c *gin.Context) {
	userID, ok := caller(c, "MarkNotificationReadHandler")
	if !ok {
		return
	}

	notificationID := c.Param("notification_id")
	if err := h.service.MarkNotificationRead(c.Request.Context(), userID, notificationID); err != nil {
		helpers.RespondError(c, "MarkNotificationReadHandler", err, map[string]any{
			"user_id":         userID,
			"notification_id": notificationID,
		})
		return
	}
	utils.JSONResponse(c, http.StatusOK, nil, "notification marked as read")
}

// MarkAllNotificationsReadHandler handles PUT /api/notifications/read-all
func (h *AccountHandler) MarkAllNotificationsReadHandler(c *gin.Context) {
	userID, ok := caller(c, "MarkAllNotificationsReadHandler")
	if !ok {
		return
	}

	updated, err := h.service.MarkAllNotificationsRead(c.Request.Context(), userID)
	if err != nil {
		helpers.RespondError(c, "MarkAllNotificationsReadHandler", err, map[string]any{"user_id": userID})
		return
	}
	utils.JSONResponse(c, http.StatusOK, helpers.MarkAllReadResponse{Updated: updated}, "notifications marked as read")
}

// ListWinsHandler handles GET /api/me/wins
func (h *AccountHandler) ListWinsHandler(c *gin.Context) {
	userID, ok := caller(c, "ListWinsHandler")
	if !ok {
		return
	}

	wins, err := h.service.ListWins(c.Request.Context(), userID)
	if err != nil {
		helpers.RespondError(c, "ListWinsHandler", err, map[string]any{"user_id": userID})
		return
	}
	if wins == nil {
		wins = []model.Settlement{}
	}
	utils.JSONResponse(c, http.StatusOK, wins, "wins retrieved successfully")
}

// MarkPaidHandler handles POST /api/me/wins/:auction_id/pay
func (h *AccountHandler) MarkPaidHandler(c *gin.Context) {
	userID, ok := caller(c, "MarkPaidHandler")
	if !ok {
		return
	}

	auctionID := c.Param("auction_id")
	settlement, err := h.service.MarkPaid(c.Request.Context(), userID, auctionID)
	if err != nil {
		helpers.RespondError(c, "MarkPaidHandler", err, map[string]any{"user_id": userID, "auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, settlement, "payment recorded")
	helpers.LogSuccess("MarkPaidHandler", "payment recorded", map[string]any{"user_id": userID, "auction_id": auctionID})
}

// MarkShippedHandler handles POST /api/me/sales/:auction_id/ship
func (h *AccountHandler) MarkShippedHandler(c *gin.Context) {
	userID, ok := caller(c, "MarkShippedHandler")
	if !ok {
		return
	}

	auctionID := c.Param("auction_id")
	settlement, err := h.service.MarkShipped(c.Request.Context(), userID, auctionID)
	if err != nil {
		helpers.RespondError(c, "MarkShippedHandler", err, map[string]any{"user_id": userID, "auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, settlement, "shipment recorded")
	helpers.LogSuccess("MarkShippedHandler", "shipment recorded", map[string]any{"user_id": userID, "auction_id": auctionID})
}

// SummaryHandler handles GET /api/dashboard/summary
func (h *AccountHandler) SummaryHandler(c *gin.Context) {
	userID, ok := caller(c, "SummaryHandler")
	if !ok {
		return
	}

	summary, err := h.service.Summary(c.Request.Context(), userID)
	if err != nil {
		helpers.RespondError(c, "SummaryHandler", err, map[string]any{"user_id": userID})
		return
	}
	utils.JSONResponse(c, http.StatusOK, summary, "summary retrieved successfully")
}

// ActiveBidsHandler handles GET /api/dashboard/active-bids
func (h *AccountHandler) ActiveBidsHandler(c *gin.Context) {
	userID, ok := caller(c, "ActiveBidsHandler")
	if !ok {
		return
	}

	bids, err := h.service.ActiveBids(c.Request.Context(), userID)
	if err != nil {
		helpers.RespondError(c, "ActiveBidsHandler", err, map[string]any{"user_id": userID})
		return
	}
	utils.JSONResponse(c, http.StatusOK, bids, "active bids retrieved successfully")
}
