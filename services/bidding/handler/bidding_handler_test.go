package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bidvault/internal/biddingerrors"
	model "bidvault/internal/models"
	"bidvault/services/bidding/helpers"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// testUserHeader stands in for the auth middleware in handler tests
const testUserHeader = "X-Test-User"

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if user := c.GetHeader(testUserHeader); user != "" {
			c.Set(helpers.UserIDKey, user)
		}
		c.Next()
	})
	return router
}

// doRequest sends body (a string is sent verbatim) and decodes the JSON envelope
func doRequest(t *testing.T, router http.Handler, method, path, user string, body any) (int, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(testUserHeader, user)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w.Code, resp
}

// decimalEq matches decimals by value, so 110.5 equals 110.50
type decimalEq struct{ want decimal.Decimal }

func (m decimalEq) Matches(x interface{}) bool {
	d, ok := x.(decimal.Decimal)
	return ok && d.Equal(m.want)
}

func (m decimalEq) String() string { return "is decimal " + m.want.String() }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// Test RecordBidHandler
func TestRecordBidHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockBiddingServiceInterface(ctrl)
	handler := NewBiddingHandler(mockService)

	router := newTestRouter()
	router.POST("/bids", handler.RecordBidHandler)

	now := time.Now().UTC()

	tests := []struct {
		name           string
		user           string
		requestBody    any
		mockSetup      func()
		expectedStatus int
		expectedMsg    string
		expectedReason string
		validateData   func(t *testing.T, data map[string]any)
	}{
		{
			name:        "success_valid_bid",
			user:        "user1",
			requestBody: `{"auction_id":"a1","amount":110.50}`,
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(gomock.Any(), "a1", "user1", decimalEq{dec("110.5")}).
					Return(model.Bid{
						ID:        uuid.NewString(),
						AuctionID: "a1",
						BidderID:  "user1",
						Amount:    dec("110.50"),
						CreatedAt: now,
					}, nil)
			},
			expectedStatus: http.StatusCreated,
			expectedMsg:    "bid recorded successfully",
			validateData: func(t *testing.T, data map[string]any) {
				_, parseErr := uuid.Parse(data["bid_id"].(string))
				require.NoError(t, parseErr, "BidID should be a valid UUID")
				require.Equal(t, "a1", data["auction_id"])
				require.Equal(t, "user1", data["bidder_id"])
				require.Equal(t, 110.5, data["amount"])
			},
		},
		{
			name:        "amount_as_string",
			user:        "user1",
			requestBody: `{"auction_id":"a1","amount":"120"}`,
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(gomock.Any(), "a1", "user1", decimalEq{dec("120")}).
					Return(model.Bid{ID: uuid.NewString(), AuctionID: "a1", BidderID: "user1", Amount: dec("120"), CreatedAt: now}, nil)
			},
			expectedStatus: http.StatusCreated,
			expectedMsg:    "bid recorded successfully",
		},
		{
			name:           "unauthenticated",
			requestBody:    `{"auction_id":"a1","amount":110}`,
			mockSetup:      func() {},
			expectedStatus: http.StatusUnauthorized,
			expectedMsg:    "authentication required",
			expectedReason: "UNAUTHORIZED",
		},
		{
			name:           "invalid_json",
			user:           "user1",
			requestBody:    `{invalid json}`,
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
			expectedReason: "VALIDATION_ERROR",
		},
		{
			name:           "missing_auction_id",
			user:           "user1",
			requestBody:    `{"amount":110}`,
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name:        "service_invalid_bid",
			user:        "user1",
			requestBody: `{"auction_id":"a2","amount":-5}`,
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(gomock.Any(), "a2", "user1", gomock.Any()).
					Return(model.Bid{}, fmt.Errorf("service: %w - non-positive bid amount", biddingerrors.ErrInvalidBid))
			},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid bid details",
			expectedReason: "VALIDATION_ERROR",
		},
		{
			name:        "service_bid_too_low",
			user:        "user1",
			requestBody: `{"auction_id":"a3","amount":105}`,
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(gomock.Any(), "a3", "user1", gomock.Any()).
					Return(model.Bid{}, fmt.Errorf("service: %w - minimum bid is 110.00", biddingerrors.ErrBidTooLow))
			},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "bid amount too low",
			expectedReason: "BID_TOO_LOW",
		},
		{
			name:        "service_self_bid",
			user:        "seller1",
			requestBody: `{"auction_id":"a4","amount":500}`,
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(gomock.Any(), "a4", "seller1", gomock.Any()).
					Return(model.Bid{}, biddingerrors.ErrSelfBid)
			},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "cannot bid on own auction",
			expectedReason: "SELF_BID",
		},
		{
			name:        "service_auction_ended",
			user:        "user1",
			requestBody: `{"auction_id":"a5","amount":500}`,
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(gomock.Any(), "a5", "user1", gomock.Any()).
					Return(model.Bid{}, biddingerrors.ErrAuctionEnded)
			},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "auction has ended",
			expectedReason: "AUCTION_ENDED",
		},
		{
			name:        "service_auction_not_found",
			user:        "user1",
			requestBody: `{"auction_id":"missing","amount":500}`,
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(gomock.Any(), "missing", "user1", gomock.Any()).
					Return(model.Bid{}, biddingerrors.ErrAuctionNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "auction not found",
			expectedReason: "AUCTION_NOT_FOUND",
		},
		{
			name:        "service_conflict",
			user:        "user1",
			requestBody: `{"auction_id":"a6","amount":500}`,
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(gomock.Any(), "a6", "user1", gomock.Any()).
					Return(model.Bid{}, biddingerrors.ErrConflict)
			},
			expectedStatus: http.StatusConflict,
			expectedReason: "CONFLICT",
		},
		{
			name:        "service_generic_error",
			user:        "user1",
			requestBody: `{"auction_id":"a7","amount":500}`,
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(gomock.Any(), "a7", "user1", gomock.Any()).
					Return(model.Bid{}, errors.New("database failure"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedMsg:    "internal server error",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tc.mockSetup()

			status, resp := doRequest(t, router, http.MethodPost, "/bids", tc.user, tc.requestBody)
			require.Equal(t, tc.expectedStatus, status)
			require.Contains(t, resp["message"], tc.expectedMsg)
			if tc.expectedReason != "" {
				require.Equal(t, tc.expectedReason, resp["reason"])
			}
			if status == http.StatusInternalServerError {
				require.NotContains(t, resp["error"], "database failure", "internal errors must not leak")
			}
			if tc.validateData != nil && status == http.StatusCreated {
				tc.validateData(t, resp["data"].(map[string]any))
			}
		})
	}
}

// Test GetBidsByAuctionHandler
func TestGetBidsByAuctionHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockBiddingServiceInterface(ctrl)
	handler := NewBiddingHandler(mockService)

	router := newTestRouter()
	router.GET("/api/auctions/:auction_id/bids", handler.GetBidsByAuctionHandler)

	now := time.Now().UTC()

	tests := []struct {
		name           string
		auctionID      string
		mockSetup      func()
		expectedStatus int
		expectedLen    int
	}{
		{
			name:      "success_multiple_bids",
			auctionID: "a1",
			mockSetup: func() {
				mockService.EXPECT().
					GetBidsForAuction(gomock.Any(), "a1").
					Return([]model.Bid{
						{ID: uuid.NewString(), AuctionID: "a1", BidderID: "user1", Amount: dec("110"), CreatedAt: now},
						{ID: uuid.NewString(), AuctionID: "a1", BidderID: "user2", Amount: dec("120"), CreatedAt: now},
					}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedLen:    2,
		},
		{
			name:      "service_no_bids_error",
			auctionID: "a2",
			mockSetup: func() {
				mockService.EXPECT().GetBidsForAuction(gomock.Any(), "a2").Return(nil, biddingerrors.ErrNoBids)
			},
			expectedStatus: http.StatusOK,
			expectedLen:    0,
		},
		{
			name:      "auction_not_found",
			auctionID: "a3",
			mockSetup: func() {
				mockService.EXPECT().GetBidsForAuction(gomock.Any(), "a3").Return(nil, biddingerrors.ErrAuctionNotFound)
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:      "service_generic_error",
			auctionID: "a4",
			mockSetup: func() {
				mockService.EXPECT().GetBidsForAuction(gomock.Any(), "a4").Return(nil, errors.New("database failure"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tc.mockSetup()

			status, resp := doRequest(t, router, http.MethodGet, fmt.Sprintf("/api/auctions/%s/bids", tc.auctionID), "", nil)
			require.Equal(t, tc.expectedStatus, status)
			if status == http.StatusOK {
				require.Len(t, resp["data"].([]any), tc.expectedLen)
			}
		})
	}
}

// Test GetWinningBidHandler
func TestGetWinningBidHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockBiddingServiceInterface(ctrl)
	handler := NewBiddingHandler(mockService)

	router := newTestRouter()
	router.GET("/api/auctions/:auction_id/winning", handler.GetWinningBidHandler)

	mockService.EXPECT().
		GetWinningBid(gomock.Any(), "a1").
		Return(model.Bid{ID: "b1", AuctionID: "a1", BidderID: "user2", Amount: dec("130"), CreatedAt: time.Now()}, nil)
	mockService.EXPECT().
		GetWinningBid(gomock.Any(), "a2").
		Return(model.Bid{}, fmt.Errorf("record: %w", biddingerrors.ErrNoBids))

	status, resp := doRequest(t, router, http.MethodGet, "/api/auctions/a1/winning", "", nil)
	require.Equal(t, http.StatusOK, status)
	data := resp["data"].(map[string]any)
	require.Equal(t, "user2", data["bidder_id"])
	require.Equal(t, 130.0, data["amount"])

	status, resp = doRequest(t, router, http.MethodGet, "/api/auctions/a2/winning", "", nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Contains(t, resp["message"], "no bids found")
}

// Test GetAuctionsByUserHandler
func TestGetAuctionsByUserHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockBiddingServiceInterface(ctrl)
	handler := NewBiddingHandler(mockService)

	router := newTestRouter()
	router.GET("/api/users/:user_id/auctions", handler.GetAuctionsByUserHandler)

	mockService.EXPECT().
		GetAuctionsByBidder(gomock.Any(), "user1").
		Return([]model.Auction{{ID: "a1", Title: "Clock"}, {ID: "a2", Title: "Lamp"}}, nil)
	mockService.EXPECT().
		GetAuctionsByBidder(gomock.Any(), "user2").
		Return(nil, biddingerrors.ErrUserNoBids)

	status, resp := doRequest(t, router, http.MethodGet, "/api/users/user1/auctions", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, resp["data"].([]any), 2)

	status, resp = doRequest(t, router, http.MethodGet, "/api/users/user2/auctions", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Empty(t, resp["data"].([]any))
}
