package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/sellava/storefront-cart-go/internal/cart"
	"github.com/sellava/storefront-cart-go/internal/config"
	"github.com/sellava/storefront-cart-go/internal/db"
	"github.com/sellava/storefront-cart-go/internal/events"
	httpapi "github.com/sellava/storefront-cart-go/internal/http"
	"github.com/sellava/storefront-cart-go/internal/kv"
	"github.com/sellava/storefront-cart-go/internal/logging"
	"github.com/sellava/storefront-cart-go/internal/pricing"
	"github.com/sellava/storefront-cart-go/internal/scope"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New("storefront-cart", cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- storage ---
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.Backend).Msg("open storage")
	}
	defer closeStore()

	// --- AMQP ---
	var publisher httpapi.CartEventsPublisher = events.LogPublisher{Producer: cfg.Producer, Logger: logger}
	if cfg.PublishEvents {
		conn, err := events.Dial(cfg.RabbitURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("dial rabbitmq")
		}
		defer conn.Close()

		p, err := events.NewPublisher(conn, cfg.Producer, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("create cart publisher")
		}
		defer func() {
			if err := p.Close(); err != nil {
				logger.Warn().Err(err).Msg("publisher close")
			}
		}()
		publisher = p
	}

	// --- cart ---
	sessions := kv.Namespaced(store)
	resolver := scope.NewResolver(sessions, logger)
	carts := cart.NewService(
		cart.NewStore(sessions, logger),
		pricing.NewValidator(pricing.DefaultCoupons, logger),
		logger,
	)

	// --- HTTP ---
	h := httpapi.NewHandler(carts, resolver.Resolve, publisher, httpapi.Options{
		Remember: resolver.Remember,
		Timeout:  cfg.RequestTimeout,
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(h, logger, cfg.CORSAllowOrigins),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Str("backend", cfg.Backend).Bool("publish_events", cfg.PublishEvents).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("graceful shutdown")
	}
	logger.Info().Msg("shutdown complete")
}

func openStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (kv.Store, func(), error) {
	switch cfg.Backend {
	case config.BackendRedis:
		client, err := kv.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return kv.NewRedisStore(client), closer(client, logger), nil

	case config.BackendPostgres:
		if cfg.RunMigrations {
			if err := db.RunMigrations(cfg.DatabaseDSN, logger); err != nil {
				return nil, nil, fmt.Errorf("db migrate: %w", err)
			}
		}
		pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("db connect: %w", err)
		}
		return kv.NewPostgresStore(pool), pool.Close, nil

	default:
		return kv.NewMemoryStore(), func() {}, nil
	}
}

func closer(c io.Closer, logger zerolog.Logger) func() {
	return func() {
		if err := c.Close(); err != nil {
			logger.Warn().Err(err).Msg("close storage")
		}
	}
}
