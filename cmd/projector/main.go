// Command projector runs the projection consumer (C4): one goroutine per
// RabbitMQ partition, applying events to the items/bids read model.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/floroz/auction-core/internal/bus"
	"github.com/floroz/auction-core/internal/cache"
	"github.com/floroz/auction-core/internal/config"
	"github.com/floroz/auction-core/internal/metrics"
	"github.com/floroz/auction-core/internal/projection"
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
		logger.Info("shutting down projector")
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

	var invalidator projection.Invalidator
	if cfg.RedisURL != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		if pingErr := rdb.Ping(ctx).Err(); pingErr != nil {
			logger.Warn("redis connection failed, projector will not invalidate cache", "error", pingErr)
		} else {
			invalidator = cache.New(rdb, logger)
			logger.Info("redis connected")
		}
	}

	m := metrics.New("auction")
	repo := projection.NewPostgresRepository(pool)
	consumer := projection.NewConsumer(repo, m, invalidator, logger)

	partitions := make([]int, cfg.Partitions)
	for i := range partitions {
		partitions[i] = i
	}
	group := bus.NewConsumerGroup(amqpConn, partitions, consumer.HandleEvent, logger)

	go func() {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", metrics.Handler())
		if err := http.ListenAndServe(cfg.MetricsAddr, metricsMux); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	logger.Info("starting projection consumer", "partitions", cfg.Partitions)
	if err := group.Run(ctx); err != nil {
		logger.Error("consumer group stopped", "error", err)
		if ctx.Err() == nil {
			os.Exit(1)
		}
	}
	logger.Info("projector stopped")
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
