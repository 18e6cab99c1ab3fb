// Package cache implements the read-through Redis cache for C6, actively
// invalidated by the projection consumer and the status scheduler rather
// than relying on TTL alone (SPEC_FULL.md §4.6).
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/floroz/auction-core/internal/auction"
)

const ttl = 5 * time.Second

func itemKey(itemID uint64) string   { return fmt.Sprintf("item:%d", itemID) }
func topBidKey(itemID uint64) string { return fmt.Sprintf("item:%d:top-bid", itemID) }

// RedisCache is a plain GET/SET/DEL cache: no atomic scripting is needed
// since nothing here requires read-modify-write atomicity, unlike a token
// bucket rate limiter.
type RedisCache struct {
	client *redis.Client
	logger *slog.Logger
}

func New(client *redis.Client, logger *slog.Logger) *RedisCache {
	return &RedisCache{client: client, logger: logger}
}

func (c *RedisCache) GetItem(ctx context.Context, itemID uint64) (*auction.Item, bool) {
	body, err := c.client.Get(ctx, itemKey(itemID)).Bytes()
	if err != nil {
		return nil, false
	}
	var item auction.Item
	if err := json.Unmarshal(body, &item); err != nil {
		c.logger.Warn("cache: corrupt item entry, ignoring", "item_id", itemID, "error", err)
		return nil, false
	}
	return &item, true
}

func (c *RedisCache) SetItem(ctx context.Context, item *auction.Item) {
	body, err := json.Marshal(item)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, itemKey(item.ID), body, ttl).Err(); err != nil {
		c.logger.Warn("cache: set item failed", "item_id", item.ID, "error", err)
	}
}

func (c *RedisCache) GetTopBid(ctx context.Context, itemID uint64) (*auction.Bid, bool) {
	body, err := c.client.Get(ctx, topBidKey(itemID)).Bytes()
	if err != nil {
		return nil, false
	}
	var bid auction.Bid
	if err := json.Unmarshal(body, &bid); err != nil {
		c.logger.Warn("cache: corrupt top-bid entry, ignoring", "item_id", itemID, "error", err)
		return nil, false
	}
	return &bid, true
}

func (c *RedisCache) SetTopBid(ctx context.Context, itemID uint64, bid *auction.Bid) {
	body, err := json.Marshal(bid)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, topBidKey(itemID), body, ttl).Err(); err != nil {
		c.logger.Warn("cache: set top bid failed", "item_id", itemID, "error", err)
	}
}

// InvalidateItem implements scheduler.Invalidator and is also called by
// the projection consumer after applying an event for this item.
func (c *RedisCache) InvalidateItem(ctx context.Context, itemID uint64) {
	if err := c.client.Del(ctx, itemKey(itemID), topBidKey(itemID)).Err(); err != nil {
		c.logger.Warn("cache: invalidate failed", "item_id", itemID, "error", err)
	}
}
