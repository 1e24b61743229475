package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flightwatch/flightwatch/internal/api"
	"github.com/flightwatch/flightwatch/internal/config"
	"github.com/flightwatch/flightwatch/internal/domain"
	"github.com/flightwatch/flightwatch/internal/engine"
	"github.com/flightwatch/flightwatch/internal/fr24"
	"github.com/flightwatch/flightwatch/internal/maintenance"
	"github.com/flightwatch/flightwatch/internal/notify"
	"github.com/flightwatch/flightwatch/internal/poller"
	"github.com/flightwatch/flightwatch/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize PostgreSQL
	ctx := context.Background()
	pgStore, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()
	logger.Info("connected to PostgreSQL")

	// Run database migrations
	if err := pgStore.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations applied")

	// Initialize Redis
	redisStore, err := store.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisStore.Close()
	logger.Info("connected to Redis")

	// Key pool, restoring park state from the last run
	persisted, err := pgStore.LoadKeyStates(ctx)
	if err != nil {
		logger.Error("failed to load key states", "error", err)
		os.Exit(1)
	}
	keyPool, err := engine.NewKeyPool(cfg.FR24APIKeys, persisted, engine.KeyPoolConfig{
		MaxRequestsPerWindow: cfg.KeyRequestsPerMinute,
		Window:               time.Minute,
		ParkDuration:         cfg.KeyParkDuration,
	}, pgStore, logger)
	if err != nil {
		logger.Error("failed to build key pool", "error", err)
		os.Exit(1)
	}
	logger.Info("key pool ready", "keys", keyPool.Len())

	// Upstream client and query executor
	client := fr24.NewClient(cfg.FR24BaseURL, cfg.QueryTimeout, logger)
	executor := poller.NewExecutor(client, keyPool, pgStore,
		cfg.RequestDelay, cfg.MaxConcurrentBatches, cfg.QueryTimeout, logger)

	// Notification path: dedupe cache, channel pacer, webhook delivery
	deduper := engine.NewDeduper(redisStore.Client(), pgStore, cfg.NotificationRetention, logger)
	limiter := notify.NewChannelRateLimiter(redisStore.Client(), cfg.ChannelPostsPerSecond, time.Second, logger)
	notifier := notify.NewWebhookNotifier(limiter, cfg.FlightBaseURL, cfg.WebhookTimeout, logger)

	p := poller.New(pgStore, executor, deduper, notifier, keyPool, poller.Config{
		Interval: cfg.PollInterval,
		Jitter:   cfg.PollJitter,
		BatchSizes: map[domain.SubscriptionKind]int{
			domain.KindAircraft:     cfg.BatchSizeAircraft,
			domain.KindRegistration: cfg.BatchSizeRegistration,
			domain.KindAirport:      cfg.BatchSizeAirport,
		},
		MentionLimit: cfg.MentionLimit,
	}, logger)

	pollCtx, stopPolling := context.WithCancel(ctx)
	go p.Run(pollCtx)

	// Background housekeeping
	scheduler := maintenance.NewScheduler(pgStore, notifier, cfg.NotificationRetention, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	// Admin API
	router := api.NewRouter(pgStore, redisStore, keyPool, p)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")

	// Stop the loop first; the in-flight cycle finishes before Done.
	stopPolling()
	select {
	case <-p.Done():
	case <-time.After(60 * time.Second):
		logger.Warn("timed out waiting for poll cycle to finish")
	}

	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
