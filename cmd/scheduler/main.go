// Command scheduler runs the status scheduler (C5): a periodic sweep that
// advances items between SCHEDULED, ACTIVE, and COMPLETED on wall-clock
// time, with no dependency on RabbitMQ.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/floroz/auction-core/internal/cache"
	"github.com/floroz/auction-core/internal/config"
	"github.com/floroz/auction-core/internal/metrics"
	"github.com/floroz/auction-core/internal/scheduler"
)

// noopInvalidator runs the scheduler uncached when REDIS_URL is unset.
type noopInvalidator struct{}

func (noopInvalidator) InvalidateItem(context.Context, uint64) {}

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
		logger.Info("shutting down scheduler")
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

	var invalidator scheduler.Invalidator = noopInvalidator{}
	if cfg.RedisURL != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		if pingErr := rdb.Ping(ctx).Err(); pingErr != nil {
			logger.Warn("redis connection failed, scheduler will not invalidate cache", "error", pingErr)
		} else {
			invalidator = cache.New(rdb, logger)
			logger.Info("redis connected")
		}
	}

	go func() {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", metrics.Handler())
		if err := http.ListenAndServe(cfg.MetricsAddr, metricsMux); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	s := scheduler.New(pool, cfg.SchedulerTick, invalidator, logger)

	logger.Info("starting status scheduler", "tick", cfg.SchedulerTick)
	if err := s.Run(ctx); err != nil {
		logger.Error("scheduler stopped", "error", err)
		if ctx.Err() == nil {
			os.Exit(1)
		}
	}
	logger.Info("scheduler stopped")
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
