package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eloisazulbaran123-dev/tuboletapass/internal/config"
	"github.com/eloisazulbaran123-dev/tuboletapass/internal/postgres"
	"github.com/eloisazulbaran123-dev/tuboletapass/internal/redis"
	postgresrepo "github.com/eloisazulbaran123-dev/tuboletapass/internal/repository/postgres"
	redisrepo "github.com/eloisazulbaran123-dev/tuboletapass/internal/repository/redis"
	"github.com/eloisazulbaran123-dev/tuboletapass/internal/service"
	"github.com/eloisazulbaran123-dev/tuboletapass/internal/service/catalog"
	"github.com/eloisazulbaran123-dev/tuboletapass/internal/service/identity"
	"github.com/eloisazulbaran123-dev/tuboletapass/internal/service/orders"
	httpgin "github.com/eloisazulbaran123-dev/tuboletapass/internal/transport/http/gin"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	pubsub     *redisrepo.OrdersPubSub
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	// Initialize dependencies
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.Name,
		cfg.Postgres.SSLMode,
	)

	pgxPool, err := postgres.New(context.Background(), postgres.Config{DSN: dsn})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	rdb, err := redis.New(context.Background(), redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	// Initialize repositories
	store := postgresrepo.NewStore(pgxPool)
	cache := redisrepo.New(rdb)
	pubsub := redisrepo.NewOrdersPubSub(rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(rdb, "checkout", 10, 1*time.Minute)
	idempotencyStore := redisrepo.NewIdempotencyStore(rdb, 2*time.Hour)

	// Initialize services
	services := service.NewServices(store, cache, pubsub, service.Config{
		Catalog: catalog.Config{
			CascadeDelete: cfg.Checkout.CascadeDelete,
		},
		Orders: orders.Config{
			FeeRate: cfg.Checkout.FeeRate,
		},
		Identity: identity.Config{
			Secret: []byte(cfg.Auth.JWTSecret),
		},
	})

	// Initialize Gin router
	router := httpgin.NewRouter(services, idempotencyStore, limiter, logger)

	return &App{
		cfg:    cfg,
		logger: logger,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: router,
		},
		pubsub: pubsub,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Mirror order status changes into the log so operators can follow
	// confirmations without the admin dashboard.
	g.Go(func() error {
		err := a.pubsub.Subscribe(gCtx, func(ctx context.Context, orderID, status string) {
			a.logger.Info("order status changed", "order_id", orderID, "status", status)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("orders subscription: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}
