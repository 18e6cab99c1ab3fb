package projection

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/floroz/auction-core/internal/auction"
)

// PostgresRepository implements Repository with a single transaction per
// event: insert the bid row, then conditionally update the item. Replay is
// idempotent because a redelivered event's bid insert hits the unique
// (item_id, version) index and the item update is skipped; the conditional
// update additionally never lowers current_price (spec.md §4.4).
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

var _ Repository = (*PostgresRepository)(nil)

// ApplyBidPlaced inserts the bid, keyed to the source event's (item_id,
// version), and raises items.current_price only if the bid is still higher
// than the current price at apply time. A redelivered BidPlaced hits the
// unique (item_id, version) index and is dropped by ON CONFLICT DO NOTHING
// before the price update runs, so re-processing never inserts a second bid
// row for the same event (spec.md §4.2, §4.4).
func (r *PostgresRepository) ApplyBidPlaced(ctx context.Context, version int64, p auction.BidPlacedPayload) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		INSERT INTO bids (item_id, version, bidder_id, bid_amount, bid_time)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (item_id, version) DO NOTHING
	`, p.ItemID, version, p.BidderID, p.BidAmount, p.Timestamp)
	if err != nil {
		return fmt.Errorf("insert bid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE items SET current_price = $2
		WHERE id = $1 AND current_price < $2
	`, p.ItemID, p.BidAmount); err != nil {
		return fmt.Errorf("update current price: %w", err)
	}

	return tx.Commit(ctx)
}

// ApplyBuyNowExecuted inserts the closing bid, keyed to the source event's
// (item_id, version), and sets the item to its terminal COMPLETED state.
// COMPLETED is sticky: the WHERE clause never reopens a completed item, so
// redelivery or a racing scheduler tick cannot un-complete it. The bid
// insert is deduped the same way ApplyBidPlaced's is.
func (r *PostgresRepository) ApplyBuyNowExecuted(ctx context.Context, version int64, p auction.BuyNowExecutedPayload) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		INSERT INTO bids (item_id, version, bidder_id, bid_amount, bid_time)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (item_id, version) DO NOTHING
	`, p.ItemID, version, p.BuyerID, p.BuyNowPrice, p.Timestamp)
	if err != nil {
		return fmt.Errorf("insert closing bid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE items
		SET status = 'COMPLETED', current_price = $2, end_time = LEAST(end_time, $3)
		WHERE id = $1 AND status <> 'COMPLETED'
	`, p.ItemID, p.BuyNowPrice, p.Timestamp); err != nil {
		return fmt.Errorf("complete item: %w", err)
	}

	return tx.Commit(ctx)
}

// itemReader implements auction.ItemReader over the items table for the
// command handler — the only read the write path performs, re-done fresh
// on every OCC retry attempt (spec.md §5).
type itemReader struct {
	pool *pgxpool.Pool
}

func NewItemReader(pool *pgxpool.Pool) auction.ItemReader {
	return &itemReader{pool: pool}
}

func (r *itemReader) GetItem(ctx context.Context, itemID uint64) (*auction.Item, error) {
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
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("item not found: %w", err)
		}
		return nil, fmt.Errorf("get item: %w", err)
	}
	return &item, nil
}
