package cache_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floroz/auction-core/internal/auction"
	"github.com/floroz/auction-core/internal/cache"
)

func newTestCache(t *testing.T) *cache.RedisCache {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return cache.New(client, logger)
}

func TestRedisCache_Item_MissThenSetThenHit(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	_, ok := c.GetItem(ctx, 1)
	assert.False(t, ok, "expected a miss before SetItem")

	item := &auction.Item{ID: 1, Title: "Lot 1", CurrentPrice: 10_000, Status: auction.ItemStatusActive}
	c.SetItem(ctx, item)

	got, ok := c.GetItem(ctx, 1)
	require.True(t, ok)
	assert.Equal(t, item.ID, got.ID)
	assert.Equal(t, item.CurrentPrice, got.CurrentPrice)
}

func TestRedisCache_TopBid_MissThenSetThenHit(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	_, ok := c.GetTopBid(ctx, 5)
	assert.False(t, ok)

	bid := &auction.Bid{ID: 1, ItemID: 5, BidderID: uuid.New(), Amount: 2_000, BidTime: time.Now()}
	c.SetTopBid(ctx, 5, bid)

	got, ok := c.GetTopBid(ctx, 5)
	require.True(t, ok)
	assert.Equal(t, bid.Amount, got.Amount)
}

func TestRedisCache_InvalidateItem_ClearsBothKeys(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	c.SetItem(ctx, &auction.Item{ID: 7, CurrentPrice: 1000})
	c.SetTopBid(ctx, 7, &auction.Bid{ID: 1, ItemID: 7, Amount: 1000})

	c.InvalidateItem(ctx, 7)

	_, itemOK := c.GetItem(ctx, 7)
	_, bidOK := c.GetTopBid(ctx, 7)
	assert.False(t, itemOK, "item should be evicted after invalidation")
	assert.False(t, bidOK, "top bid should be evicted after invalidation")
}
