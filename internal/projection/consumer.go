// Package projection implements C4: consuming published events and
// applying them to the items/bids read-model tables.
package projection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/floroz/auction-core/internal/auction"
)

// Invalidator evicts a cached item after its projection changes, so
// internal/cache does not serve stale data past the invalidation point.
type Invalidator interface {
	InvalidateItem(ctx context.Context, itemID uint64)
}

// Consumer adapts bus.Handler to the projection repository. It never
// surfaces errors to clients; it logs and returns an error to the bus layer
// so the delivery is retried (spec.md §7 propagation policy).
type Consumer struct {
	repo        Repository
	metrics     Metrics
	invalidator Invalidator
	logger      *slog.Logger
}

// NewConsumer builds a Consumer. invalidator may be nil, in which case the
// query service runs without a cache to invalidate (SPEC_FULL.md §6).
func NewConsumer(repo Repository, metrics Metrics, invalidator Invalidator, logger *slog.Logger) *Consumer {
	return &Consumer{repo: repo, metrics: metrics, invalidator: invalidator, logger: logger}
}

func (c *Consumer) invalidate(ctx context.Context, itemID uint64) {
	if c.invalidator != nil {
		c.invalidator.InvalidateItem(ctx, itemID)
	}
}

// HandleEvent is the bus.Handler entry point.
func (c *Consumer) HandleEvent(ctx context.Context, event *auction.Event) error {
	switch event.EventType {
	case auction.EventTypeBidPlaced:
		var payload auction.BidPlacedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			c.metrics.IncPoisonEvent(string(event.EventType))
			c.logger.Error("poison event: cannot decode BidPlaced payload",
				"aggregate_id", event.AggregateID, "version", event.Version, "error", err)
			return fmt.Errorf("decode BidPlaced: %w", err)
		}
		if err := c.repo.ApplyBidPlaced(ctx, event.Version, payload); err != nil {
			c.logger.Error("failed to apply BidPlaced",
				"aggregate_id", event.AggregateID, "version", event.Version, "error", err)
			return err
		}
		c.invalidate(ctx, payload.ItemID)
		return nil

	case auction.EventTypeBuyNowExecuted:
		var payload auction.BuyNowExecutedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			c.metrics.IncPoisonEvent(string(event.EventType))
			c.logger.Error("poison event: cannot decode BuyNowExecuted payload",
				"aggregate_id", event.AggregateID, "version", event.Version, "error", err)
			return fmt.Errorf("decode BuyNowExecuted: %w", err)
		}
		if err := c.repo.ApplyBuyNowExecuted(ctx, event.Version, payload); err != nil {
			c.logger.Error("failed to apply BuyNowExecuted",
				"aggregate_id", event.AggregateID, "version", event.Version, "error", err)
			return err
		}
		c.invalidate(ctx, payload.ItemID)
		return nil

	default:
		c.metrics.IncSkippedEvent(string(event.EventType))
		c.logger.Warn("skipping unknown event type", "event_type", event.EventType, "aggregate_id", event.AggregateID)
		return nil
	}
}
