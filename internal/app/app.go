package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/clients"
	"github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/config"
	"github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/postgres"
	redisx "github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/redis"
	postgresrepo "github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/repository/postgres"
	redisrepo "github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/repository/redis"
	"github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/service"
	"github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/sweeper"
	httpgin "github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/transport/http/gin"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	sweeper    *sweeper.Sweeper
	pubsub     *redisx.ShowtimesPubSub
	cache      *redisrepo.Cache
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

	rdb, err := redisx.New(context.Background(), redisx.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	// Initialize repositories
	store := postgresrepo.NewStore(pgxPool)
	cache := redisrepo.New(rdb)
	pubsub := redisx.NewShowtimesPubSub(rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(rdb, "rl", 10, 1*time.Minute)
	idempotencyStore := redisrepo.NewIdempotencyStore(rdb, 2*time.Hour)

	// Initialize upstream clients
	theatre := clients.NewTheatreClient(cfg.Services.TheatreURL)
	users := clients.NewUserClient(cfg.Services.UserURL)

	// Initialize services
	services := service.NewServices(store, cache, pubsub, theatre, users, cfg.Booking, logger)

	// Initialize Gin router
	router := httpgin.NewRouter(services, idempotencyStore, limiter, logger)

	sw := sweeper.New(store.Ledger(), cache, pubsub, cfg.Booking.SweepInterval, logger)

	return &App{
		cfg:    cfg,
		logger: logger,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: router,
		},
		sweeper: sw,
		pubsub:  pubsub,
		cache:   cache,
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

	// Expire lapsed seat holds in the background
	g.Go(func() error {
		return a.sweeper.Run(gCtx)
	})

	// Drop cached seat views when another instance changes a showtime
	g.Go(func() error {
		err := a.pubsub.Subscribe(gCtx, func(ctx context.Context, showtimeID int64) {
			if err := a.cache.InvalidateShowtime(ctx, showtimeID); err != nil {
				a.logger.Warn("seat cache invalidation failed",
					"showtime_id", showtimeID, "error", err)
			}
		})
		if err != nil && gCtx.Err() == nil {
			return fmt.Errorf("showtime subscription failed: %w", err)
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
