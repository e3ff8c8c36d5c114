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

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/jwt-pizza/pizza-service/internal/app"
	"github.com/jwt-pizza/pizza-service/internal/auth"
	"github.com/jwt-pizza/pizza-service/internal/factory"
	"github.com/jwt-pizza/pizza-service/internal/franchise"
	"github.com/jwt-pizza/pizza-service/internal/observability"
	"github.com/jwt-pizza/pizza-service/internal/order"
	"github.com/jwt-pizza/pizza-service/internal/platform/cache"
	"github.com/jwt-pizza/pizza-service/internal/platform/db"
	"github.com/jwt-pizza/pizza-service/internal/shared"
	"github.com/jwt-pizza/pizza-service/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("pizza service", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	pgStore := auth.NewPGStore(pool)
	var sessions auth.SessionStore = pgStore
	if cfg.SessionStore == app.SessionStoreRedis {
		redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr})
		if err != nil {
			return err
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		sessions = auth.NewRedisSessionStore(redisClient)
	}

	metrics := observability.NewMetrics()

	codec, err := auth.NewTokenCodec(auth.TokenConfig{Secret: cfg.JWTSecret, TTL: cfg.TokenTTL, Issuer: cfg.TokenIssuer})
	if err != nil {
		return err
	}
	authService, err := auth.NewService(auth.ServiceConfig{
		Users:    pgStore,
		Sessions: sessions,
		Codec:    codec,
		Hasher:   auth.NewBcryptHasher(cfg.BcryptCost),
		Metrics:  metrics,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	authenticator := auth.Authenticator{Resolver: authService, Logger: logger}

	franchiseService := franchise.NewService(franchise.NewRepository(pool), shared.NewAuditLogger(pool), logger)

	factoryClient := factory.NewClient(factory.Config{
		BaseURL: cfg.FactoryURL,
		APIKey:  cfg.FactoryAPIKey,
		Timeout: cfg.FactoryTimeout,
		Logger:  logger,
	})
	orderService := order.NewService(order.Config{
		Repo:        order.NewRepository(pool),
		Factory:     factoryClient,
		Idempotency: shared.NewIdempotencyStore(pool),
		Metrics:     metrics,
		Logger:      logger,
	})

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		return err
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	if _, err := jobClient.EnqueueSessionsPrune(ctx); err != nil {
		logger.Warn("enqueue startup session prune", slog.Any("error", err))
	}

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		AuthHandler:      auth.NewHandler(logger, authService, authenticator),
		FranchiseHandler: franchise.NewHandler(logger, franchiseService, authenticator),
		OrderHandler:     order.NewHandler(logger, orderService, authenticator),
		JobHandler:       jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server",
			slog.String("addr", cfg.AppAddr),
			slog.String("session_store", cfg.SessionStore),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
