package auction

import "errors"

// Client-visible error taxonomy (spec.md §7). Each maps to a stable machine
// code at the HTTP boundary; see internal/api.
var (
	ErrNotFound     = errors.New("item not found")
	ErrNotStarted   = errors.New("auction has not started")
	ErrAlreadyEnded = errors.New("auction has already ended")
	ErrLowBid       = errors.New("bid amount must be greater than current price")
	ErrConflict     = errors.New("optimistic concurrency retry budget exhausted")
	ErrInternal     = errors.New("internal error")
)

// ErrVersionConflict is raised by the event store on a unique-index
// violation of (aggregate_id, version). It never escapes the command
// handler's retry loop; exhausting retries surfaces as ErrConflict instead.
var ErrVersionConflict = errors.New("event store: version conflict")
