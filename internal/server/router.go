package server

import (
	"net/http"

	"bidvault/internal/auth"
	handler "bidvault/services/bidding/handler"
	"bidvault/utils"

	"github.com/gin-gonic/gin"
)

// RouterConfig carries the services the HTTP layer exposes
type RouterConfig struct {
	Bidding  handler.BiddingServiceInterface
	Auctions handler.AuctionServiceInterface
	Accounts handler.AccountServiceInterface
	Identity auth.Identity

	// BidLimiter runs after authentication on bid placement; nil disables it
	BidLimiter gin.HandlerFunc
}

// SetupRouter configures all Gin routes for the application
func SetupRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestLoggerMiddleware) // custom request logging

	biddingHandler := handler.NewBiddingHandler(cfg.Bidding)
	auctionHandler := handler.NewAuctionHandler(cfg.Auctions)
	accountHandler := handler.NewAccountHandler(cfg.Accounts)

	requireAuth := RequireAuth(cfg.Identity)
	placeBid := []gin.HandlerFunc{requireAuth}
	if cfg.BidLimiter != nil {
		placeBid = append(placeBid, cfg.BidLimiter)
	}
	placeBid = append(placeBid, biddingHandler.RecordBidHandler)

	router.GET("/health", func(c *gin.Context) {
		utils.JSONResponse(c, http.StatusOK, gin.H{"status": "ok"}, "healthy")
	})
	router.POST("/bids", placeBid...)

	api := router.Group("/api")

	api.POST("/bids/place", placeBid...)

	auctions := api.Group("/auctions")
	{
		auctions.GET("", auctionHandler.ListAuctionsHandler)
		auctions.POST("", requireAuth, auctionHandler.CreateAuctionHandler)
		auctions.GET("/:auction_id", auctionHandler.GetAuctionHandler)
		auctions.POST("/:auction_id/cancel", requireAuth, auctionHandler.CancelAuctionHandler)
		auctions.GET("/:auction_id/bids", biddingHandler.GetBidsByAuctionHandler)
		auctions.GET("/:auction_id/winning", biddingHandler.GetWinningBidHandler)
	}

	users := api.Group("/users")
	{
		users.GET("/:user_id/auctions", biddingHandler.GetAuctionsByUserHandler)
	}

	me := api.Group("/me", requireAuth)
	{
		me.GET("/auctions", auctionHandler.ListMyAuctionsHandler)
		me.GET("/wins", accountHandler.ListWinsHandler)
		me.POST("/wins/:auction_id/pay", accountHandler.MarkPaidHandler)
		me.POST("/sales/:auction_id/ship", accountHandler.MarkShippedHandler)
	}

	api.GET("/dashboard/summary", requireAuth, accountHandler.SummaryHandler)
	api.GET("/dashboard/active-bids", requireAuth, accountHandler.ActiveBidsHandler)

	notifications := api.Group("/notifications", requireAuth)
	{
		notifications.GET("", accountHandler.ListNotificationsHandler)
		notifications.PUT("/read-all", accountHandler.MarkAllNotificationsReadHandler)
		notifications.PUT("/:notification_id/read", accountHandler.MarkNotificationReadHandler)
	}

	return router
}
