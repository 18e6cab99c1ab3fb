package auction

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Default retry envelope for the command handler's OCC loop (spec.md §4.3),
// used unless overridden by WithRetryConfig (wired from config.Config in
// cmd/api/main.go, so COMMAND_MAX_RETRIES/COMMAND_RETRY_BASE/COMMAND_RETRY_MAX
// actually take effect).
const (
	MaxRetries       = 5
	RetryBackoffBase = 10 * time.Millisecond
	RetryBackoffCap  = 200 * time.Millisecond
)

// RetryConfig is the OCC retry envelope a Service runs with.
type RetryConfig struct {
	MaxRetries int
	Base       time.Duration
	Cap        time.Duration
}

func defaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: MaxRetries, Base: RetryBackoffBase, Cap: RetryBackoffCap}
}

// Metrics is the command handler's view of internal/metrics: retry-count
// distribution and outcome counts, exported as command_occ_retries and
// command_outcomes_total.
type Metrics interface {
	ObserveCommandRetries(command string, retries int)
	IncCommandOutcome(command, outcome string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveCommandRetries(string, int) {}
func (noopMetrics) IncCommandOutcome(string, string)  {}

// Option configures optional Service dependencies.
type Option func(*Service)

func WithRetryConfig(cfg RetryConfig) Option {
	return func(s *Service) { s.retryCfg = cfg }
}

func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// Service is the command handler (C3). It holds no in-memory aggregate
// cache: every attempt re-reads the item row fresh from itemReader.
type Service struct {
	items    ItemReader
	events   EventStore
	now      func() time.Time
	retryCfg RetryConfig
	metrics  Metrics
}

// NewService creates the command handler over the given item reader and
// event store. By default it uses the package's retry envelope and a no-op
// Metrics; pass WithRetryConfig/WithMetrics to override either.
func NewService(items ItemReader, events EventStore, opts ...Option) *Service {
	s := &Service{items: items, events: events, now: time.Now, retryCfg: defaultRetryConfig(), metrics: noopMetrics{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceBid validates and appends a BidPlaced event, retrying on OCC
// conflict up to MaxRetries with exponential backoff. A bid amount at or
// above buy_now_price transparently converts to BuyNow (spec.md §4.3.1.4).
func (s *Service) PlaceBid(ctx context.Context, cmd PlaceBidCommand) (*Event, error) {
	return s.retry(ctx, "PlaceBid", cmd.ItemID, func(item *Item) (EventType, any, error) {
		if err := validateAuctionOpen(item, s.now()); err != nil {
			return "", nil, err
		}
		if cmd.BidAmount <= item.CurrentPrice {
			return "", nil, ErrLowBid
		}
		if item.BuyNowPrice > 0 && cmd.BidAmount >= item.BuyNowPrice {
			return s.buyNowFromItem(item, cmd.BidderID)
		}

		payload := BidPlacedPayload{
			ItemID:    item.ID,
			BidderID:  cmd.BidderID,
			BidAmount: cmd.BidAmount,
			Timestamp: s.now(),
		}
		return EventTypeBidPlaced, payload, nil
	})
}

// BuyNow validates and appends a BuyNowExecuted event, with the same OCC
// retry envelope as PlaceBid.
func (s *Service) BuyNow(ctx context.Context, cmd BuyNowCommand) (*Event, error) {
	return s.retry(ctx, "BuyNow", cmd.ItemID, func(item *Item) (EventType, any, error) {
		if item.Status == ItemStatusCompleted {
			return "", nil, ErrAlreadyEnded
		}
		if err := validateAuctionOpen(item, s.now()); err != nil {
			return "", nil, err
		}
		return s.buyNowFromItem(item, cmd.BuyerID)
	})
}

func (s *Service) buyNowFromItem(item *Item, buyerID uuid.UUID) (EventType, any, error) {
	payload := BuyNowExecutedPayload{
		ItemID:      item.ID,
		BuyerID:     buyerID,
		BuyNowPrice: item.BuyNowPrice,
		Timestamp:   s.now(),
	}
	return EventTypeBuyNowExecuted, payload, nil
}

// validateAuctionOpen enforces precondition 2 shared by both commands:
// now() in [start_time, end_time) and status == ACTIVE.
func validateAuctionOpen(item *Item, now time.Time) error {
	if now.Before(item.StartTime) || item.Status == ItemStatusScheduled {
		return ErrNotStarted
	}
	if !now.Before(item.EndTime) || item.Status == ItemStatusCompleted {
		return ErrAlreadyEnded
	}
	return nil
}

// build decides which event a validated command produces, given the
// current item state. A non-nil error means the command failed a
// business-rule precondition (ErrNotStarted, ErrAlreadyEnded, ErrLowBid);
// retry returns it at once without another attempt.
type build func(item *Item) (EventType, any, error)

func (s *Service) retry(ctx context.Context, command string, itemID uint64, fn build) (*Event, error) {
	backoff := s.retryCfg.Base

	for attempt := 0; attempt < s.retryCfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			s.finish(command, attempt, ErrInternal)
			return nil, err
		}

		item, err := s.items.GetItem(ctx, itemID)
		if err != nil {
			return nil, s.finish(command, attempt, ErrNotFound)
		}

		eventType, payload, err := fn(item)
		if err != nil {
			return nil, s.finish(command, attempt, err)
		}

		version, err := s.events.NextVersion(ctx, itemID)
		if err != nil {
			return nil, s.finish(command, attempt, ErrInternal)
		}

		event, err := s.events.AppendAndPublish(ctx, itemID, eventType, payload, version)
		if err == nil {
			s.finish(command, attempt, nil)
			return event, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return nil, s.finish(command, attempt, ErrInternal)
		}

		select {
		case <-ctx.Done():
			s.finish(command, attempt, ErrInternal)
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > s.retryCfg.Cap {
			backoff = s.retryCfg.Cap
		}
	}

	return nil, s.finish(command, s.retryCfg.MaxRetries, ErrConflict)
}

// finish records the retry count and outcome for a completed attempt
// sequence and returns err unchanged, so call sites can do
// `return nil, s.finish(command, attempt, err)`.
func (s *Service) finish(command string, retries int, err error) error {
	s.metrics.ObserveCommandRetries(command, retries)
	s.metrics.IncCommandOutcome(command, outcomeCode(err))
	return err
}

func outcomeCode(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNotStarted):
		return "not_started"
	case errors.Is(err, ErrAlreadyEnded):
		return "already_ended"
	case errors.Is(err, ErrLowBid):
		return "low_bid"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "internal"
	}
}
