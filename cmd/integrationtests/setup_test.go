package integrationtests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	account "bidvault/internal/accountService"
	auction "bidvault/internal/auctionService"
	"bidvault/internal/auth"
	bidding "bidvault/internal/biddingService"
	"bidvault/internal/closer"
	"bidvault/internal/events"
	model "bidvault/internal/models"
	"bidvault/internal/repository"
	"bidvault/internal/server"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const testSecret = "integration-secret"

// store is the full persistence surface the application runs on
type store interface {
	repository.AuctionDB
	repository.AccountDB
}

// TestEnv is one application instance with its own store
type TestEnv struct {
	Router   *gin.Engine
	Store    store
	Closer   *closer.Closer
	verifier *auth.Verifier
}

// newStore opens the named backing store for a test
func newStore(t *testing.T, kind string) store {
	t.Helper()
	if kind == repository.DriverMemory {
		return repository.NewMemoryRepo()
	}

	db, err := repository.OpenDatabase(repository.DriverSQLite, filepath.Join(t.TempDir(), "bidvault.db"))
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return repository.NewGormRepo(db)
}

// SetupTestEnv wires the application the way serve does, with inline notifications
func SetupTestEnv(t *testing.T, kind string) *TestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := newStore(t, kind)
	publisher := events.NewInlinePublisher(st)
	auctionCloser := closer.NewCloser(st, publisher, time.Minute, 50)
	verifier := auth.NewVerifier(testSecret)

	router := server.SetupRouter(server.RouterConfig{
		Bidding:  bidding.NewBiddingService(st, publisher),
		Auctions: auction.NewAuctionService(st, auctionCloser),
		Accounts: account.NewAccountService(st),
		Identity: verifier,
	})
	return &TestEnv{Router: router, Store: st, Closer: auctionCloser, verifier: verifier}
}

// forEachStore runs fn against the in-memory and the SQLite store
func forEachStore(t *testing.T, fn func(t *testing.T, env *TestEnv)) {
	for _, kind := range []string{repository.DriverMemory, repository.DriverSQLite} {
		kind := kind
		t.Run(kind, func(t *testing.T) {
			fn(t, SetupTestEnv(t, kind))
		})
	}
}

// Token issues a bearer token for userID
func (e *TestEnv) Token(t *testing.T, userID string) string {
	t.Helper()
	token, err := e.verifier.Issue(userID, time.Hour)
	require.NoError(t, err)
	return token
}

// SeedAuction stores an active auction directly, bypassing creation rules so tests can pick any window
func (e *TestEnv) SeedAuction(t *testing.T, id, seller string, price int64, end time.Time, reserve *int64) {
	t.Helper()
	now := time.Now().UTC()
	a := model.Auction{
		ID:            id,
		SellerID:      seller,
		Title:         "Item " + id,
		Images:        []string{},
		StartingPrice: decimal.NewFromInt(price),
		CurrentPrice:  decimal.NewFromInt(price),
		MinIncrement:  decimal.NewFromInt(10),
		StartTime:     now.Add(-time.Hour),
		EndTime:       end.UTC(),
		Status:        model.AuctionActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if reserve != nil {
		a.ReservePrice = decimal.NewNullDecimal(decimal.NewFromInt(*reserve))
	}
	require.NoError(t, e.Store.CreateAuction(context.Background(), a))
}

// ExecuteRequestAndParse sends body (raw when []byte or string) as user, and decodes the envelope
func ExecuteRequestAndParse(t *testing.T, env *TestEnv, method, url, user string, body any) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()

	var reqBody []byte
	switch v := body.(type) {
	case nil:
	case []byte:
		reqBody = v
	case string:
		reqBody = []byte(v)
	default:
		var err error
		reqBody, err = json.Marshal(v)
		require.NoError(t, err, "failed to marshal body")
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+env.Token(t, user))
	}
	env.Router.ServeHTTP(w, req)

	var resp map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "failed to unmarshal response")
	}
	return resp, w
}

func int64Ptr(v int64) *int64 { return &v }
