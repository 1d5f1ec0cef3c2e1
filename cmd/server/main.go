package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/bhmc/slot-reservation/internal/config"
	"github.com/bhmc/slot-reservation/internal/database"
	"github.com/bhmc/slot-reservation/internal/handler"
	"github.com/bhmc/slot-reservation/internal/logger"
	"github.com/bhmc/slot-reservation/internal/middleware"
	"github.com/bhmc/slot-reservation/internal/model"
	"github.com/bhmc/slot-reservation/internal/payment"
	"github.com/bhmc/slot-reservation/internal/queue"
	"github.com/bhmc/slot-reservation/internal/repository"
	"github.com/bhmc/slot-reservation/internal/reservation"
	"github.com/bhmc/slot-reservation/internal/router"
	"github.com/bhmc/slot-reservation/internal/worker"
)

func main() {
	_ = godotenv.Load() // .env is optional
	cfg := config.Load()

	if err := logger.Init(&logger.Config{
		Level:       cfg.LogLevel,
		ServiceName: "slot-reservation",
		Development: !cfg.IsProd(),
	}); err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	lg := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]handler.Check{}

	var store repository.Store
	switch cfg.Store {
	case "memory":
		lg.Warn("using in-memory store; data is lost on exit")
		store = repository.NewMemoryStore()
	default:
		db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBLockWait)
		if err != nil {
			lg.Fatal("database", zap.Error(err))
		}
		defer db.Close()
		store = repository.NewMySQLStore(db)
		checks["mysql"] = db.PingContext
	}

	engine := reservation.NewEngine(store, reservation.WithLogger(lg))

	var gateway payment.Gateway
	webhookSecret := cfg.StripeWebhookSecret
	if cfg.StripeSecretKey != "" {
		sg, err := payment.NewStripeGateway(payment.StripeConfig{
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
		})
		if err != nil {
			lg.Fatal("stripe", zap.Error(err))
		}
		gateway = sg
	} else {
		lg.Warn("STRIPE_SECRET_KEY not set; using mock gateway")
		gateway = payment.NewMockGateway()
	}

	opts := []payment.CoordinatorOption{
		payment.WithLogger(lg.Named("payment")),
		payment.WithMembershipSink(payment.NewStoreMembership(store)),
	}
	if cfg.RabbitMQURL != "" {
		opts = append(opts, payment.WithNotifier(queue.NewPublisher(cfg.RabbitMQURL, lg.Named("publisher"))))
		consumer := queue.NewConsumer(cfg.RabbitMQURL, envOr("CONFIRMATION_DIR", "."), lg.Named("consumer"))
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				lg.Error("confirmation consumer stopped", zap.Error(err))
			}
		}()
	} else {
		lg.Info("RABBITMQ_URL not set; confirmations are not published")
	}
	coord := payment.NewCoordinator(engine, gateway, opts...)

	rdb := config.NewRedisClient()
	var locker worker.Locker
	if rdb != nil {
		defer rdb.Close()
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		locker = worker.NewRedisLocker(rdb)
	} else {
		lg.Warn("redis unavailable; cache, rate limit and sweep lease disabled")
	}

	sweeper := worker.NewSweeper(engine, coord, locker, worker.SweeperConfig{
		Interval:       cfg.SweepInterval,
		AbandonedAfter: cfg.AbandonedPaymentAge,
	}, lg.Named("sweeper"))
	if err := sweeper.Start(ctx); err != nil {
		lg.Fatal("sweeper", zap.Error(err))
	}
	defer sweeper.Stop()

	cache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb, lg.Named("cache"))
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, lg.Named("ratelimit"))
	season := func() model.SeasonSettings { return cfg.Season }

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestID(), middleware.RequestLogger(lg.Named("http")))

	reg := handler.NewRegistrationHandler(engine, coord, cache)
	router.RegisterRoutes(e, checks, reg, handler.NewWebhookHandler(coord, webhookSecret, season, lg.Named("webhook")), cache)
	router.RegisterMember(e, reg, handler.NewPaymentHandler(engine, coord, season), cfg.JWTSecret, limiter)
	router.RegisterAdmin(e, handler.NewAdminHandler(engine, coord, cache, cfg.AbandonedPaymentAge), cfg.JWTSecret)

	addr := ":" + cfg.Port
	go func() {
		lg.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env),
			zap.String("store", cfg.Store), zap.String("gateway", gateway.Name()))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		lg.Error("shutdown", zap.Error(err))
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
