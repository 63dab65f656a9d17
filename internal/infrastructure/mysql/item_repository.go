package mysql

import (
	"auction-market/internal/domain"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type MySQLItemRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewMySQLItemRepository(db *sql.DB) *MySQLItemRepository {
	return &MySQLItemRepository{db: db, now: time.Now}
}

const itemColumns = `id, auction_id, name, description, starting_price, current_price, created_at, updated_at`

func (r *MySQLItemRepository) CreateItem(ctx context.Context, item *domain.Item) error {
	query := `
        INSERT INTO items (` + itemColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		item.ID, item.AuctionID, item.Name, item.Description,
		item.StartingPrice, item.CurrentPrice, item.CreatedAt, item.UpdatedAt)
	if isMySQLError(err, errNoReferencedRow, errNoReferencedRowV2) {
		return fmt.Errorf("insert item %s: %w", item.ID, domain.ErrAuctionNotFound)
	}
	if err != nil {
		return fmt.Errorf("insert item %s: %w", item.ID, err)
	}
	return nil
}

func (r *MySQLItemRepository) GetItem(ctx context.Context, itemID string) (*domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = ?`

	item, err := scanItem(r.db.QueryRowContext(ctx, query, itemID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get item %s: %w", itemID, domain.ErrItemNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", itemID, err)
	}
	return item, nil
}

func (r *MySQLItemRepository) SetCurrentPrice(ctx context.Context, itemID string, price decimal.Decimal) error {
	query := `UPDATE items SET current_price = ?, updated_at = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, price, r.now().UTC(), itemID); err != nil {
		return fmt.Errorf("set price for item %s: %w", itemID, err)
	}
	return nil
}

func (r *MySQLItemRepository) ListItemsByAuction(ctx context.Context, auctionID string) ([]*domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE auction_id = ? ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("list items of auction %s: %w", auctionID, err)
	}
	defer rows.Close()

	var items []*domain.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanItem(row rowScanner) (*domain.Item, error) {
	var item domain.Item
	err := row.Scan(&item.ID, &item.AuctionID, &item.Name, &item.Description,
		&item.StartingPrice, &item.CurrentPrice, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &item, nil
}
