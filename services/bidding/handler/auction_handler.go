package handler

import (
	"context"
	"net/http"

	auction "bidvault/internal/auctionService"
	"bidvault/internal/biddingerrors"
	model "bidvault/internal/models"
	"bidvault/services/bidding/helpers"
	"bidvault/utils"

	"github.com/gin-gonic/gin"
)

type AuctionServiceInterface interface {
	CreateAuction(ctx context.Context, sellerID string, in auction.CreateAuctionInput) (model.Auction, error)
	GetAuction(ctx context.Context, auctionID string) (auction.AuctionDetail, error)
	ListAuctions(ctx context.Context, status string) ([]auction.AuctionSummary, error)
	ListSellerAuctions(ctx context.Context, sellerID, status string) ([]auction.AuctionSummary, error)
	CancelAuction(ctx context.Context, sellerID, auctionID string) (model.Auction, error)
}

type AuctionHandler struct {
	service AuctionServiceInterface
}

func NewAuctionHandler(service AuctionServiceInterface) *AuctionHandler {
	return &AuctionHandler{service: service}
}

// ListAuctionsHandler handles GET /api/auctions?status=
func (h *AuctionHandler) ListAuctionsHandler(c *gin.Context) {
	status := c.Query("status")
	auctions, err := h.service.ListAuctions(c.Request.Context(), status)
	if err != nil {
		helpers.RespondError(c, "ListAuctionsHandler", err, map[string]any{"status": status})
		return
	}

	utils.JSONResponse(c, http.StatusOK, auctions, "auctions retrieved successfully")
	helpers.LogSuccess("ListAuctionsHandler", "auctions retrieved successfully", map[string]any{
		"status": status,
		"count":  len(auctions),
	})
}

// CreateAuctionHandler handles POST /api/auctions
func (h *AuctionHandler) CreateAuctionHandler(c *gin.Context) {
	sellerID, ok := helpers.CurrentUser(c)
	if !ok {
		helpers.RespondError(c, "CreateAuctionHandler", biddingerrors.ErrUnauthorized, nil)
		return
	}

	var req helpers.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateAuctionHandler", err)
		return
	}

	created, err := h.service.CreateAuction(c.Request.Context(), sellerID, req.Input())
	if err != nil {
		helpers.RespondError(c, "CreateAuctionHandler", err, map[string]any{"seller_id": sellerID})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, created, "auction created successfully")
	helpers.LogSuccess("CreateAuctionHandler", "auction created successfully", map[string]any{
		"auction_id": created.ID,
		"seller_id":  sellerID,
	})
}

// GetAuctionHandler handles GET /api/auctions/:auction_id
func (h *AuctionHandler) GetAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	detail, err := h.service.GetAuction(c.Request.Context(), auctionID)
	if err != nil {
		helpers.RespondError(c, "GetAuctionHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, detail, "auction retrieved successfully")
}

// CancelAuctionHandler handles POST /api/auctions/:auction_id/cancel
func (h *AuctionHandler) CancelAuctionHandler(c *gin.Context) {
	sellerID, ok := helpers.CurrentUser(c)
	if !ok {
		helpers.RespondError(c, "CancelAuctionHandler", biddingerrors.ErrUnauthorized, nil)
		return
	}

	auctionID := c.Param("auction_id")
	cancelled, err := h.service.CancelAuction(c.Request.Context(), sellerID, auctionID)
	if err != nil {
		helpers.RespondError(c, "CancelAuctionHandler", err, map[string]any{"auction_id": auctionID, "seller_id": sellerID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, cancelled, "auction cancelled successfully")
	helpers.LogSuccess("CancelAuctionHandler", "auction cancelled successfully", map[string]any{
		"auction_id": auctionID,
		"seller_id":  sellerID,
	})
}

// ListMyAuctionsHandler handles GET /api/me/auctions?status=
func (h *AuctionHandler) ListMyAuctionsHandler(c *gin.Context) {
	sellerID, ok := helpers.CurrentUser(c)
	if !ok {
		helpers.RespondError(c, "ListMyAuctionsHandler", biddingerrors.ErrUnauthorized, nil)
		return
	}

	status := c.Query("status")
	auctions, err := h.service.ListSellerAuctions(c.Request.Context(), sellerID, status)
	if err != nil {
		helpers.RespondError(c, "ListMyAuctionsHandler", err, map[string]any{"seller_id": sellerID, "status": status})
		return
	}

	utils.JSONResponse(c, http.StatusOK, auctions, "auctions retrieved successfully")
}
