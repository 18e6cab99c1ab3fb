package projection

import (
	"context"

	"github.com/floroz/auction-core/internal/auction"
)

// Repository applies projected events to the items/bids read-model tables.
// Both operations must be idempotent: re-applying the same event twice
// yields the same read model as applying it once (spec.md §4.4, §8). version
// is the source event's (aggregate_id, version) and is the dedup key a
// redelivered event is recognized by.
type Repository interface {
	ApplyBidPlaced(ctx context.Context, version int64, p auction.BidPlacedPayload) error
	ApplyBuyNowExecuted(ctx context.Context, version int64, p auction.BuyNowExecutedPayload) error
}

// Metrics exposes the poison/skipped event counters spec.md §4.4 explicitly
// requires visibility into.
type Metrics interface {
	IncPoisonEvent(eventType string)
	IncSkippedEvent(eventType string)
}
