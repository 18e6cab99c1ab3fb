package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/floroz/auction-core/internal/auction"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) GetItem(ctx context.Context, itemID uint64) (*auction.Item, error) {
	args := m.Called(ctx, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auction.Item), args.Error(1)
}

func (m *mockRepository) ListItems(ctx context.Context) ([]*auction.Item, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*auction.Item), args.Error(1)
}

func (m *mockRepository) ListBids(ctx context.Context, itemID uint64) ([]*auction.Bid, error) {
	args := m.Called(ctx, itemID)
	return args.Get(0).([]*auction.Bid), args.Error(1)
}

func (m *mockRepository) TopBid(ctx context.Context, itemID uint64) (*auction.Bid, error) {
	args := m.Called(ctx, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auction.Bid), args.Error(1)
}

func TestService_GetItem_Uncached(t *testing.T) {
	repo := new(mockRepository)
	svc := NewService(repo, nil)

	item := &auction.Item{ID: 1, Status: auction.ItemStatusActive}
	repo.On("GetItem", mock.Anything, uint64(1)).Return(item, nil).Once()

	got, err := svc.GetItem(context.Background(), 1)

	assert.NoError(t, err)
	assert.Equal(t, item, got)
}

func TestService_GetItem_NotFound(t *testing.T) {
	repo := new(mockRepository)
	svc := NewService(repo, nil)

	repo.On("GetItem", mock.Anything, uint64(1)).Return(nil, assert.AnError).Once()

	_, err := svc.GetItem(context.Background(), 1)

	assert.ErrorIs(t, err, auction.ErrNotFound)
}

func TestService_TopBid_NoBids(t *testing.T) {
	repo := new(mockRepository)
	svc := NewService(repo, nil)

	repo.On("TopBid", mock.Anything, uint64(1)).Return(nil, nil).Once()

	bid, err := svc.TopBid(context.Background(), 1)

	assert.NoError(t, err)
	assert.Nil(t, bid)
}

func TestService_Status_DelegatesToGetItem(t *testing.T) {
	repo := new(mockRepository)
	svc := NewService(repo, nil)

	item := &auction.Item{ID: 1, Status: auction.ItemStatusCompleted}
	repo.On("GetItem", mock.Anything, uint64(1)).Return(item, nil).Once()

	status, err := svc.Status(context.Background(), 1)

	assert.NoError(t, err)
	assert.Equal(t, auction.ItemStatusCompleted, status)
}
