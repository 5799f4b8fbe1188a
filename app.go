package main

import (
	"context"
	"errors"
	"fmt"

	account "bidvault/internal/accountService"
	auction "bidvault/internal/auctionService"
	"bidvault/internal/auth"
	bidding "bidvault/internal/biddingService"
	"bidvault/internal/closer"
	"bidvault/internal/config"
	"bidvault/internal/events"
	"bidvault/internal/repository"
	"bidvault/internal/server"
	"bidvault/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// store is what the services need from persistence; both repositories provide it
type store interface {
	repository.AuctionDB
	repository.AccountDB
}

// app holds the wired components of one process
type app struct {
	cfg   config.AppConfig
	store store

	publisher events.Publisher
	closer    *closer.Closer
	verifier  *auth.Verifier

	bidding  *bidding.BiddingService
	auctions *auction.AuctionService
	accounts *account.AccountService

	rdb      *redis.Client
	producer *events.Producer
	relay    *events.Relay
	consumer *events.NotificationConsumer

	closers []func() error
}

// openStore returns the configured repository, migrating SQL schemas on the way
func openStore(cfg config.AppConfig) (store, func() error, error) {
	if cfg.DBDriver == repository.DriverMemory {
		return repository.NewMemoryRepo(), func() error { return nil }, nil
	}

	db, err := repository.OpenDatabase(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("database handle: %w", err)
	}
	if err := repository.Migrate(db); err != nil {
		_ = sqlDB.Close()
		return nil, nil, err
	}
	return repository.NewGormRepo(db), sqlDB.Close, nil
}

// buildApp wires every component from cfg. Nothing is started.
func buildApp(ctx context.Context, cfg config.AppConfig) (*app, error) {
	st, closeStore, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, store: st, closers: []func() error{closeStore}}

	if cfg.UsesRedis() {
		a.rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		a.closers = append(a.closers, a.rdb.Close)
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			// the outbox cannot work without Redis; the rate limiter fails open
			if cfg.EventsMode == config.EventsRedis {
				_ = a.Close()
				return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
			}
			utils.Warn("Redis unreachable, bid rate limiting will fail open", map[string]any{"addr": cfg.RedisAddr, "error": err.Error()})
		}
	}

	switch cfg.EventsMode {
	case config.EventsRedis:
		a.producer = events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		a.consumer = events.NewNotificationConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, st)
		a.closers = append(a.closers, a.producer.Close, a.consumer.Close)
		a.publisher = events.NewStreamPublisher(a.rdb, cfg.EventStream)
		a.relay = events.NewRelay(a.rdb, a.producer, cfg.EventStream, cfg.EventGroup, cfg.EventConsumer)
	default:
		a.publisher = events.NewInlinePublisher(st)
	}

	a.verifier = auth.NewVerifier(cfg.JWTSecret)
	a.closer = closer.NewCloser(st, a.publisher, cfg.CloserInterval, cfg.CloserBatchSize)
	a.bidding = bidding.NewBiddingService(st, a.publisher)
	a.auctions = auction.NewAuctionService(st, a.closer)
	a.accounts = account.NewAccountService(st)

	utils.Info("Application wired", map[string]any{
		"db_driver":   cfg.DBDriver,
		"events_mode": cfg.EventsMode,
		"rate_limit":  cfg.BidRateLimit,
	})
	return a, nil
}

// router builds the HTTP handler
func (a *app) router() *gin.Engine {
	var limiter gin.HandlerFunc
	if a.cfg.BidRateLimit > 0 && a.rdb != nil {
		limiter = server.RedisRateLimit(a.rdb, a.cfg.BidRateLimit, a.cfg.BidRateWindow)
	}
	return server.SetupRouter(server.RouterConfig{
		Bidding:    a.bidding,
		Auctions:   a.auctions,
		Accounts:   a.accounts,
		Identity:   a.verifier,
		BidLimiter: limiter,
	})
}

// Close releases everything buildApp opened, last opened first
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
