package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/media-rental/internal/config"
	"github.com/iliyamo/media-rental/internal/database"
	"github.com/iliyamo/media-rental/internal/handler"
	"github.com/iliyamo/media-rental/internal/membership"
	"github.com/iliyamo/media-rental/internal/middleware"
	"github.com/iliyamo/media-rental/internal/queue"
	"github.com/iliyamo/media-rental/internal/rental"
	"github.com/iliyamo/media-rental/internal/repository"
	"github.com/iliyamo/media-rental/internal/router"
	"github.com/iliyamo/media-rental/internal/service"
	"github.com/iliyamo/media-rental/internal/validation"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Error("open database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			logger.Error("migrate", "err", err)
			os.Exit(1)
		}
		logger.Info("schema applied")
	}

	fees, err := rental.NewFeeSchedule(cfg.Policy.LateFeePolicy, cfg.Policy.LateFeePerDay, cfg.Policy.LateFeeClassFactor)
	if err != nil {
		logger.Error("late fee policy", "err", err)
		os.Exit(1)
	}

	var pub service.Publisher = service.NopPublisher{}
	if cfg.RabbitURL != "" {
		pub = &service.AMQPPublisher{URL: cfg.RabbitURL, Logger: logger}
		if cfg.EventsConsumer {
			consumer := &queue.Consumer{URL: cfg.RabbitURL, Dir: cfg.EventsLogDir, Logger: logger}
			go func() {
				if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("event consumer stopped", "err", err)
				}
			}()
		}
	}

	store := service.NewSQLStore(db)
	rentals := service.NewRentalService(store, rental.NewLifecycle(fees), pub, logger, cfg.Policy.ReferenceTZ)
	members := service.NewMemberService(store, membership.Policy{ReactivationCap: cfg.Policy.ReactivationCap}, pub, logger)

	h := router.Handlers{
		Actors:     handler.NewActorHandler(repository.NewActorRepo(db), logger),
		Directors:  handler.NewDirectorHandler(repository.NewDirectorRepo(db), logger),
		Classes:    handler.NewClassHandler(repository.NewClassRepo(db), logger),
		Titles:     handler.NewTitleHandler(repository.NewTitleRepo(db), logger),
		Items:      handler.NewItemHandler(repository.NewItemRepo(db), logger),
		Members:    handler.NewMemberHandler(repository.NewMemberRepo(db), members, logger),
		Dependents: handler.NewDependentHandler(repository.NewDependentRepo(db), logger),
		Clients:    handler.NewClientHandler(repository.NewClientRepo(db), logger),
		Rentals:    handler.NewRentalHandler(repository.NewRentalRepo(db), rentals, logger),
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = validation.New()
	middleware.Register(e, logger)

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb == nil {
		logger.Warn("redis unavailable; cache and rate limit disabled")
	} else {
		defer rdb.Close()
	}

	router.RegisterRoutes(e, db)
	router.RegisterAPI(e, h, router.Auth{Enabled: cfg.AuthEnabled, Secret: cfg.JWTSecret},
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
		middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
	)

	addr := ":" + cfg.Port
	logger.Info("listening", "addr", addr, "env", cfg.Env, "auth", cfg.AuthEnabled)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "err", err)
	}
}
