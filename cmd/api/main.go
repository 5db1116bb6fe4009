package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rankpilot/delivery-engine/internal/config"
	"github.com/rankpilot/delivery-engine/internal/dispatch"
	"github.com/rankpilot/delivery-engine/internal/domain"
	"github.com/rankpilot/delivery-engine/internal/driver"
	"github.com/rankpilot/delivery-engine/internal/engine"
	"github.com/rankpilot/delivery-engine/internal/handler"
	"github.com/rankpilot/delivery-engine/internal/infra/postgresql"
	"github.com/rankpilot/delivery-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/rankpilot/delivery-engine/internal/infra/redis"
	"github.com/rankpilot/delivery-engine/internal/observability"
	"github.com/rankpilot/delivery-engine/internal/orchestrator"
	"github.com/rankpilot/delivery-engine/internal/policy"
	"github.com/rankpilot/delivery-engine/internal/repository"
	"github.com/rankpilot/delivery-engine/internal/stats"
	"github.com/rankpilot/delivery-engine/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	limiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec, map[string]int{
		"SMS": cfg.SMSLimitPerSec,
	})
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	reviewQueue, err := infraredis.NewReviewQueue(rdb)
	if err != nil {
		logger.Fatal("review queue initialization failed", zap.Error(err))
	}

	preferenceRepo := repository.NewGormPreferenceRepo(db)
	notificationRepo := repository.NewGormNotificationRepo(db)
	attemptRepo := repository.NewGormAttemptRepo(db)
	jobRepo := repository.NewGormJobRepo(db)
	statsRepo := repository.NewGormStatsRepo(db)

	registry, err := buildDriverRegistry(cfg)
	if err != nil {
		logger.Fatal("driver registry initialization failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()

	gate, err := policy.NewGate(notificationRepo, logger)
	if err != nil {
		logger.Fatal("policy gate initialization failed", zap.Error(err))
	}

	dispatcher, err := dispatch.NewDispatcher(registry, attemptRepo, limiter, logger)
	if err != nil {
		logger.Fatal("dispatcher initialization failed", zap.Error(err))
	}

	aggregator, err := stats.NewAggregator(statsRepo, logger)
	if err != nil {
		logger.Fatal("stats aggregator initialization failed", zap.Error(err))
	}

	orch, err := orchestrator.New(orchestrator.Params{
		Notifications: notificationRepo,
		Preferences:   preferenceRepo,
		Attempts:      attemptRepo,
		Gate:          gate,
		Dispatcher:    dispatcher,
		Reviewer:      reviewQueue,
		Stats:         aggregator,
		Logger:        logger,
	})
	if err != nil {
		logger.Fatal("orchestrator initialization failed", zap.Error(err))
	}
	orch.SetMetrics(metrics)

	eng, err := engine.New(engine.Params{
		Jobs:     jobRepo,
		Attempts: attemptRepo,
		Registry: registry,
		Limiter:  limiter,
		Stats:    aggregator,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal("delivery engine initialization failed", zap.Error(err))
	}
	eng.SetMetrics(metrics)

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	if err := handler.RegisterNotificationRoutes(app, orch, notificationRepo, attemptRepo); err != nil {
		logger.Fatal("notification routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterJobRoutes(app, eng, jobRepo); err != nil {
		logger.Fatal("job routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterPreferenceRoutes(app, preferenceRepo); err != nil {
		logger.Fatal("preference routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterStatsRoutes(app, aggregator); err != nil {
		logger.Fatal("stats routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterEventRoutes(app, aggregator); err != nil {
		logger.Fatal("event routes registration failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("delivery-engine api started", zap.Int("port", cfg.APIPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})

	if cfg.PollerEnabled {
		poller, err := engine.NewPoller(eng, cfg.PollInterval(), cfg.JobBatchSize, logger)
		if err != nil {
			logger.Fatal("poller initialization failed", zap.Error(err))
		}
		g.Go(func() error {
			logger.Info("job poller started",
				zap.Duration("interval", cfg.PollInterval()),
				zap.Int("batch_size", cfg.JobBatchSize),
			)
			return poller.Start(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(10 * time.Second)
	})

	if err := g.Wait(); err != nil {
		logger.Error("shutdown with error", zap.Error(err))
	}
}

func buildDriverRegistry(cfg *config.Config) (*driver.Registry, error) {
	registry := driver.NewRegistry()

	webhook := driver.NewWebhookDriver()
	if err := registry.Register(domain.ChannelWebhook, webhook); err != nil {
		return nil, err
	}
	// Social posts ride the generic webhook transport.
	if err := registry.Register(domain.ChannelSocial, webhook); err != nil {
		return nil, err
	}
	if err := registry.Register(domain.ChannelChat, driver.NewChatWebhookDriver()); err != nil {
		return nil, err
	}

	email, err := driver.NewEmailAPIDriver(cfg.EmailAPIURL, cfg.EmailAPIKey, cfg.EmailFrom)
	if err != nil {
		return nil, err
	}
	if err := registry.Register(domain.ChannelEmail, email); err != nil {
		return nil, err
	}

	if cfg.SMSGatewayURL != "" {
		sms, err := driver.NewSMSGatewayDriver(cfg.SMSGatewayURL, cfg.SMSGatewayKey)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(domain.ChannelSMS, sms); err != nil {
			return nil, err
		}
	}

	return registry, nil
}
