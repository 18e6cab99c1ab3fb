package query

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/floroz/auction-core/internal/auction"
)

// PostgresRepository is the read-only adapter over the items/bids
// projection tables.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

var _ Repository = (*PostgresRepository)(nil)

func (r *PostgresRepository) GetItem(ctx context.Context, itemID uint64) (*auction.Item, error) {
	var item auction.Item
	err := r.pool.QueryRow(ctx, `
		SELECT id, seller, title, description, starting_price, current_price,
		       buy_now_price, start_time, end_time, status, created_at
		FROM items WHERE id = $1
	`, itemID).Scan(
		&item.ID, &item.Seller, &item.Title, &item.Description,
		&item.StartingPrice, &item.CurrentPrice, &item.BuyNowPrice,
		&item.StartTime, &item.EndTime, &item.Status, &item.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return &item, nil
}

func (r *PostgresRepository) ListItems(ctx context.Context) ([]*auction.Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, seller, title, description, starting_price, current_price,
		       buy_now_price, start_time, end_time, status, created_at
		FROM items ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []*auction.Item
	for rows.Next() {
		var item auction.Item
		if err := rows.Scan(
			&item.ID, &item.Seller, &item.Title, &item.Description,
			&item.StartingPrice, &item.CurrentPrice, &item.BuyNowPrice,
			&item.StartTime, &item.EndTime, &item.Status, &item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

func (r *PostgresRepository) ListBids(ctx context.Context, itemID uint64) ([]*auction.Bid, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, item_id, bidder_id, bid_amount, bid_time
		FROM bids WHERE item_id = $1 ORDER BY bid_time DESC
	`, itemID)
	if err != nil {
		return nil, fmt.Errorf("list bids: %w", err)
	}
	defer rows.Close()

	var bids []*auction.Bid
	for rows.Next() {
		var bid auction.Bid
		if err := rows.Scan(&bid.ID, &bid.ItemID, &bid.BidderID, &bid.Amount, &bid.BidTime); err != nil {
			return nil, fmt.Errorf("scan bid: %w", err)
		}
		bids = append(bids, &bid)
	}
	return bids, rows.Err()
}

// TopBid returns the highest bid, tie-broken by earlier bid_time (spec.md
// §4.6), or nil if the item has no bids.
func (r *PostgresRepository) TopBid(ctx context.Context, itemID uint64) (*auction.Bid, error) {
	var bid auction.Bid
	err := r.pool.QueryRow(ctx, `
		SELECT id, item_id, bidder_id, bid_amount, bid_time
		FROM bids WHERE item_id = $1
		ORDER BY bid_amount DESC, bid_time ASC
		LIMIT 1
	`, itemID).Scan(&bid.ID, &bid.ItemID, &bid.BidderID, &bid.Amount, &bid.BidTime)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("top bid: %w", err)
	}
	return &bid, nil
}
