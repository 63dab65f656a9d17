package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"auction-market/internal/domain"
)

// MySQLBidLedger stores bids append-only. seq preserves insertion order and
// breaks amount ties in favour of the earlier bid. Queries go to the pool it
// was built with, which must point at the primary.
type MySQLBidLedger struct {
	db *sql.DB
}

func NewMySQLBidLedger(db *sql.DB) *MySQLBidLedger {
	return &MySQLBidLedger{db: db}
}

const bidColumns = `id, item_id, bidder_id, amount, upper_limit, is_auto_bid, created_at`

func (r *MySQLBidLedger) Append(ctx context.Context, bid *domain.Bid) error {
	query := `
        INSERT INTO bids (` + bidColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		bid.ID, bid.ItemID, bid.BidderID, bid.Amount,
		bid.UpperLimit, bid.IsAutoBid, bid.CreatedAt)
	if isMySQLError(err, errNoReferencedRow, errNoReferencedRowV2) {
		return fmt.Errorf("record bid for item %s: %w", bid.ItemID, domain.ErrItemNotFound)
	}
	if isMySQLError(err, errDuplicateEntry) {
		return fmt.Errorf("record bid %s: duplicate id: %w", bid.ID, err)
	}
	if err != nil {
		return fmt.Errorf("record bid for item %s: %w", bid.ItemID, err)
	}
	return nil
}

func (r *MySQLBidLedger) TopNByAmount(ctx context.Context, itemID string, n int) ([]*domain.Bid, error) {
	query := `
        SELECT ` + bidColumns + `
        FROM bids
        WHERE item_id = ?
        ORDER BY amount DESC, seq ASC
        LIMIT ?
    `
	return r.query(ctx, query, itemID, n)
}

func (r *MySQLBidLedger) ListByItem(ctx context.Context, itemID string) ([]*domain.Bid, error) {
	query := `
        SELECT ` + bidColumns + `
        FROM bids
        WHERE item_id = ?
        ORDER BY seq ASC
    `
	return r.query(ctx, query, itemID)
}

func (r *MySQLBidLedger) query(ctx context.Context, query string, args ...interface{}) ([]*domain.Bid, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bids: %w", err)
	}
	defer rows.Close()

	bids := make([]*domain.Bid, 0)
	for rows.Next() {
		var bid domain.Bid
		err := rows.Scan(&bid.ID, &bid.ItemID, &bid.BidderID, &bid.Amount,
			&bid.UpperLimit, &bid.IsAutoBid, &bid.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan bid: %w", err)
		}
		bids = append(bids, &bid)
	}
	return bids, rows.Err()
}
