// Package query implements C6: read-only projections served from the
// items/bids read model, with an optional read-through cache.
package query

import (
	"context"
	"fmt"

	"github.com/floroz/auction-core/internal/auction"
)

// Cache is the read-through layer (internal/cache, Redis-backed). A nil
// Cache is valid: every method on Service tolerates a no-op cache so the
// service runs uncached when REDIS_URL is unset (SPEC_FULL.md §6).
type Cache interface {
	GetItem(ctx context.Context, itemID uint64) (*auction.Item, bool)
	SetItem(ctx context.Context, item *auction.Item)
	GetTopBid(ctx context.Context, itemID uint64) (*auction.Bid, bool)
	SetTopBid(ctx context.Context, itemID uint64, bid *auction.Bid)
}

// Repository is the read-model store.
type Repository interface {
	GetItem(ctx context.Context, itemID uint64) (*auction.Item, error)
	ListItems(ctx context.Context) ([]*auction.Item, error)
	ListBids(ctx context.Context, itemID uint64) ([]*auction.Bid, error)
	TopBid(ctx context.Context, itemID uint64) (*auction.Bid, error)
}

type Service struct {
	repo  Repository
	cache Cache
}

func NewService(repo Repository, cache Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

func (s *Service) GetItem(ctx context.Context, itemID uint64) (*auction.Item, error) {
	if s.cache != nil {
		if item, ok := s.cache.GetItem(ctx, itemID); ok {
			return item, nil
		}
	}

	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", auction.ErrNotFound, err)
	}

	if s.cache != nil {
		s.cache.SetItem(ctx, item)
	}
	return item, nil
}

func (s *Service) ListItems(ctx context.Context) ([]*auction.Item, error) {
	return s.repo.ListItems(ctx)
}

// ListBids returns the bid history for an item, ordered by bid_time DESC.
func (s *Service) ListBids(ctx context.Context, itemID uint64) ([]*auction.Bid, error) {
	return s.repo.ListBids(ctx, itemID)
}

// TopBid returns the highest bid for an item, or nil if there are none.
func (s *Service) TopBid(ctx context.Context, itemID uint64) (*auction.Bid, error) {
	if s.cache != nil {
		if bid, ok := s.cache.GetTopBid(ctx, itemID); ok {
			return bid, nil
		}
	}

	bid, err := s.repo.TopBid(ctx, itemID)
	if err != nil {
		return nil, err
	}

	if bid != nil && s.cache != nil {
		s.cache.SetTopBid(ctx, itemID, bid)
	}
	return bid, nil
}

func (s *Service) Status(ctx context.Context, itemID uint64) (auction.ItemStatus, error) {
	item, err := s.GetItem(ctx, itemID)
	if err != nil {
		return "", err
	}
	return item.Status, nil
}
