// Package app wires the gateway dependency graph. Backends are chosen from
// configuration: with no database DSN or Redis address the gateway runs fully
// in memory, which is the development and test mode.
package app

import (
	"context"
	"database/sql"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	libdb "sambaza/libs/db"
	libredis "sambaza/libs/redis"

	"sambaza/internal/airtime"
	"sambaza/internal/config"
	"sambaza/internal/engine"
	"sambaza/internal/events"
	httpserver "sambaza/internal/http"
	"sambaza/internal/http/handlers"
	"sambaza/internal/http/middleware"
	"sambaza/internal/intent"
	"sambaza/internal/ledger"
	"sambaza/internal/lightning"
	"sambaza/internal/momo"
	"sambaza/internal/reconciler"
	"sambaza/internal/repository"
	"sambaza/internal/session"
)

// App owns the running gateway and its external connections.
type App struct {
	server      *httpserver.Server
	db          *sql.DB
	redisClient *redis.Client
	logger      *zap.Logger
}

// New constructs the application graph.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := &App{logger: logger}

	var (
		led     ledger.Ledger
		pending reconciler.PendingStore
	)
	if cfg.Database.DSN != "" {
		sqlDB, err := libdb.NewPostgresDB(cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		if err := repository.EnsureSchema(ctx, sqlDB); err != nil {
			sqlDB.Close()
			return nil, err
		}
		app.db = sqlDB
		led = repository.NewLedgerRepository(sqlDB)
		pending = repository.NewPendingRepository(sqlDB)
	} else {
		logger.Info("no database configured, using in-memory ledger")
		led = ledger.NewMemory()
		pending = reconciler.NewMemoryPendingStore()
	}

	var sessions session.Store
	if cfg.Redis.Addr != "" {
		redisClient, err := libredis.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.redisClient = redisClient
		sessions = session.NewRedisStore(redisClient, cfg.SessionTTL())
	} else {
		logger.Info("no redis configured, using in-memory session store")
		sessions = session.NewMemoryStore()
	}

	var node lightning.PaymentProvider
	if cfg.Lightning.Backend == "lnbits" {
		node = lightning.NewLNBitsProvider(cfg.Lightning.LNBitsURL, cfg.Lightning.LNBitsAPIKey, logger)
	} else {
		node = lightning.NewMockProvider(logger)
	}

	var gateway momo.Gateway
	if cfg.Momo.Backend == "intasend" {
		gateway = momo.NewIntaSendGateway(cfg.Momo.PublishableKey, cfg.Momo.SecretKey, cfg.Momo.Test, logger)
	} else {
		gateway = momo.NewMockGateway(logger)
	}

	var parser intent.Parser
	if cfg.Intent.Enabled {
		parser = intent.NewOpenAIParser(cfg.Intent.APIKey, cfg.Intent.Model, logger)
	}

	hub := events.NewHub(logger)
	feed := events.NewServer(hub, logger)
	rec := reconciler.New(pending, led, gateway, logger)

	eng := engine.New(engine.Config{
		Sessions: sessions,
		Ledger:   led,
		Node:     node,
		Gateway:  gateway,
		Airtime:  airtime.NewSimulatedPurchaser(logger),
		Pending:  pending,
		Parser:   parser,
		Events:   hub,
		Logger:   logger,
	})

	routes := httpserver.Routes{
		USSD:      handlers.NewUSSDHandler(eng, logger),
		Webhook:   handlers.NewWebhookHandler(rec, hub, logger),
		Reconcile: handlers.NewReconcileHandler(rec, logger),
		Pending:   handlers.NewPendingHandler(rec, logger),
		Reverse:   handlers.NewReverseHandler(led, logger),
		Feed:      feed.HandleWS,
		Health:    handlers.NewHealthHandler(),
		OpsAuth:   middleware.OpsAuth(cfg.Ops.JWTSecret),
	}

	app.server = httpserver.NewServer(cfg.HTTPAddress(), httpserver.NewRouter(routes), logger)
	return app, nil
}

// Run starts the HTTP server.
func (a *App) Run(ctx context.Context) error {
	return a.server.Run(ctx)
}

// Close releases external connections.
func (a *App) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
