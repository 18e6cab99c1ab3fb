package auction

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ItemStatus is the lifecycle state of an auctioned item. Transitions are
// forward-only: SCHEDULED -> ACTIVE -> COMPLETED.
type ItemStatus string

const (
	ItemStatusScheduled ItemStatus = "SCHEDULED"
	ItemStatusActive    ItemStatus = "ACTIVE"
	ItemStatusCompleted ItemStatus = "COMPLETED"
)

// Item is the aggregate root. Its current_price and status are derived: they
// are written only by the projection consumer (on events) and the status
// scheduler (on wall-clock time), never by the command path directly.
type Item struct {
	ID            uint64     `json:"id"`
	Seller        uuid.UUID  `json:"seller"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	StartingPrice int64      `json:"starting_price"`
	CurrentPrice  int64      `json:"current_price"`
	BuyNowPrice   int64      `json:"buy_now_price,omitempty"` // 0 means no buy-now price set
	StartTime     time.Time  `json:"start_time"`
	EndTime       time.Time  `json:"end_time"`
	Status        ItemStatus `json:"status"`
	Version       int64      `json:"version"` // not populated: the projection never writes items.version and the readers do not select it, so this is always 0
	CreatedAt     time.Time  `json:"created_at"`
}

// Bid is a read-model row, inserted only by the projection consumer.
type Bid struct {
	ID       uint64    `json:"id"`
	ItemID   uint64    `json:"item_id"`
	BidderID uuid.UUID `json:"bidder_id"`
	Amount   int64     `json:"amount"`
	BidTime  time.Time `json:"bid_time"`
}

// EventType enumerates the two events this core appends.
type EventType string

const (
	EventTypeBidPlaced      EventType = "BidPlaced"
	EventTypeBuyNowExecuted EventType = "BuyNowExecuted"
)

// Event is an append-only log row. (AggregateID, Version) is unique and is
// the sole concurrency arbitrator for the command handler.
type Event struct {
	ID          uint64
	AggregateID uint64
	EventType   EventType
	Data        json.RawMessage
	Version     int64
	CreatedAt   time.Time
}

// BidPlacedPayload is the typed Data of a BidPlaced event.
type BidPlacedPayload struct {
	ItemID    uint64    `json:"item_id"`
	BidderID  uuid.UUID `json:"bidder_id"`
	BidAmount int64     `json:"bid_amount"`
	Timestamp time.Time `json:"timestamp"`
}

// BuyNowExecutedPayload is the typed Data of a BuyNowExecuted event.
type BuyNowExecutedPayload struct {
	ItemID      uint64    `json:"item_id"`
	BuyerID     uuid.UUID `json:"buyer_id"`
	BuyNowPrice int64     `json:"buy_now_price"`
	Timestamp   time.Time `json:"timestamp"`
}
