// Package config loads process configuration from the environment, the
// same .env.local-then-.env idiom used across the retrieved pack's
// cmd/*/main.go entrypoints.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything a binary needs to wire its dependencies.
// SPEC_FULL.md §6 names each of these env vars explicitly.
type Config struct {
	DatabaseURL string
	RabbitMQURL string
	Partitions  int
	RedisURL    string // optional; empty disables the cache

	HTTPAddr    string
	MetricsAddr string

	SchedulerTick time.Duration

	CommandMaxRetries int
	CommandRetryBase  time.Duration
	CommandRetryCap   time.Duration

	LogLevel string
}

// Load reads .env.local then .env (both optional, later values lose to
// already-set environment variables), then parses the documented keys.
func Load() (*Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:   os.Getenv("AUCTION_DB_URL"),
		RabbitMQURL:   os.Getenv("RABBITMQ_URL"),
		Partitions:    envInt("RABBITMQ_PARTITIONS", 8),
		RedisURL:      os.Getenv("REDIS_URL"),
		HTTPAddr:      envString("HTTP_ADDR", ":8080"),
		MetricsAddr:   envString("METRICS_ADDR", ":9090"),
		SchedulerTick: envDuration("SCHEDULER_TICK", time.Second),

		CommandMaxRetries: envInt("COMMAND_MAX_RETRIES", 5),
		CommandRetryBase:  envDuration("COMMAND_RETRY_BASE", 10*time.Millisecond),
		CommandRetryCap:   envDuration("COMMAND_RETRY_MAX", 200*time.Millisecond),

		LogLevel: envString("LOG_LEVEL", "info"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("config: AUCTION_DB_URL is not set")
	}
	if cfg.RabbitMQURL == "" {
		return nil, fmt.Errorf("config: RABBITMQ_URL is not set")
	}
	if cfg.Partitions <= 0 {
		return nil, fmt.Errorf("config: RABBITMQ_PARTITIONS must be positive, got %d", cfg.Partitions)
	}

	return cfg, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
