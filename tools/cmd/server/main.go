package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/patrickwarner/mediahub/internal/api"
	"github.com/patrickwarner/mediahub/internal/config"
	"github.com/patrickwarner/mediahub/internal/db"
	"github.com/patrickwarner/mediahub/internal/observability"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Load()

	logger, err := observability.InitLoggerWithService(cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	defer func() {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to sync logger: %v\n", err)
		}
	}()

	if err := run(logger, cfg); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

func run(logger *zap.Logger, cfg config.Config) error {

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, logger, cfg.TracingEnabled, cfg.ServiceName, cfg.TempoEndpoint, cfg.TracingSampleRate)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer shutdownTracing()

	mongoStore, err := db.InitMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection, cfg.MongoTimeout)
	if err != nil {
		return fmt.Errorf("failed to connect mongo: %w", err)
	}
	defer mongoStore.Close()

	// The review queue and the notifier are optional; their endpoints answer
	// 503 while the backend is missing.
	var reviews api.ReviewQueue
	if cfg.PostgresDSN != "" {
		pg, err := db.InitPostgres(cfg.PostgresDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)
		if err != nil {
			logger.Warn("review queue unavailable", zap.Error(err))
		} else {
			defer pg.Close()
			reviews = pg
		}
	}

	var notifier api.Notifier
	if cfg.RedisAddr != "" {
		store, err := db.InitRedis(cfg.RedisAddr)
		if err != nil {
			logger.Warn("redis unavailable, format updates will not be announced", zap.Error(err))
		} else {
			defer store.Close()
			store.LastRunTTL = cfg.LastRunTTL
			notifier = store
		}
	}

	metricsRegistry := observability.NewPrometheusRegistry()

	srvDeps := api.NewServer(logger, mongoStore, reviews, notifier, metricsRegistry, cfg)
	r := srvDeps.Router()

	r.Handle("/metrics", promhttp.Handler())

	addr := ":" + cfg.Port

	srv := &http.Server{
		Addr:         addr,
		Handler:      otelhttp.NewHandler(r, cfg.ServiceName),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	logger.Info("Media hub server running",
		zap.String("addr", addr),
		zap.Bool("review_queue", reviews != nil),
		zap.Bool("notifier", notifier != nil))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return nil
}
