package auction

import "github.com/google/uuid"

// PlaceBidCommand is the inbound command for POST /bid.
type PlaceBidCommand struct {
	ItemID    uint64
	BidderID  uuid.UUID
	BidAmount int64
}

// BuyNowCommand is the inbound command for POST /buy-now. It is also the
// target a PlaceBidCommand transparently converts to when bid_amount is at
// or above buy_now_price.
type BuyNowCommand struct {
	ItemID  uint64
	BuyerID uuid.UUID
}
