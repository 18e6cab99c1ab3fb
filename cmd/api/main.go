package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/floroz/auction-core/internal/api"
	"github.com/floroz/auction-core/internal/auction"
	"github.com/floroz/auction-core/internal/bus"
	"github.com/floroz/auction-core/internal/cache"
	"github.com/floroz/auction-core/internal/config"
	"github.com/floroz/auction-core/internal/eventstore"
	"github.com/floroz/auction-core/internal/metrics"
	"github.com/floroz/auction-core/internal/projection"
	"github.com/floroz/auction-core/internal/query"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
		bootLogger.Error("config load failed", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down api")
		cancel()
	}()

	dbConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("unable to parse database config", "error", err)
		os.Exit(1)
	}
	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		logger.Error("unable to create connection pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("unable to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("postgres connected")

	amqpConn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()
	logger.Info("rabbitmq connected")

	publisher, err := bus.NewPublisher(amqpConn, cfg.Partitions)
	if err != nil {
		logger.Error("failed to create bus publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	var queryCache *cache.RedisCache
	if cfg.RedisURL != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		if pingErr := rdb.Ping(ctx).Err(); pingErr != nil {
			logger.Warn("redis connection failed, running uncached", "error", pingErr)
		} else {
			queryCache = cache.New(rdb, logger)
			logger.Info("redis connected")
		}
	}

	m := metrics.New("auction")

	store := eventstore.New(pool, publisher, logger)
	itemReader := projection.NewItemReader(pool)
	commandService := auction.NewService(itemReader, store,
		auction.WithRetryConfig(auction.RetryConfig{
			MaxRetries: cfg.CommandMaxRetries,
			Base:       cfg.CommandRetryBase,
			Cap:        cfg.CommandRetryCap,
		}),
		auction.WithMetrics(m),
	)

	queryRepo := query.NewPostgresRepository(pool)
	var queryService *query.Service
	if queryCache != nil {
		queryService = query.NewService(queryRepo, queryCache)
	} else {
		queryService = query.NewService(queryRepo, nil)
	}

	handler := api.NewHandler(commandService, queryService, logger)

	mux := http.NewServeMux()
	handler.Routes(mux)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      m.Middleware(mux),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}

	go func() {
		logger.Info("starting metrics server", "addr", cfg.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("starting auction api", "addr", cfg.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("api stopped")
}

// parseLogLevel maps config.Config.LogLevel to a slog.Level, defaulting to
// Info for an empty or unrecognized value.
func parseLogLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
