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

type MySQLAuctionRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewMySQLAuctionRepository(db *sql.DB) *MySQLAuctionRepository {
	return &MySQLAuctionRepository{db: db, now: time.Now}
}

const auctionColumns = `id, seller_id, title, starting_price, current_price, min_price, bid_increment,
        is_active, start_time, end_time, created_at, updated_at`

func (r *MySQLAuctionRepository) CreateAuction(ctx context.Context, auction *domain.Auction) error {
	query := `
        INSERT INTO auctions (` + auctionColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	var endTime sql.NullTime
	if !auction.EndTime.IsZero() {
		endTime = sql.NullTime{Time: auction.EndTime, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		auction.ID, auction.SellerID, auction.Title,
		auction.StartingPrice, auction.CurrentPrice, auction.MinPrice, auction.Increment,
		auction.IsActive, auction.StartTime, endTime, auction.CreatedAt, auction.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert auction %s: %w", auction.ID, err)
	}
	return nil
}

func (r *MySQLAuctionRepository) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = ?`

	auction, err := scanAuction(r.db.QueryRowContext(ctx, query, auctionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get auction %s: %w", auctionID, domain.ErrAuctionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get auction %s: %w", auctionID, err)
	}
	return auction, nil
}

func (r *MySQLAuctionRepository) SetActive(ctx context.Context, auctionID string, active bool) error {
	query := `UPDATE auctions SET is_active = ?, updated_at = ? WHERE id = ?`
	return r.exec(ctx, query, auctionID, active, r.now().UTC(), auctionID)
}

func (r *MySQLAuctionRepository) SetCurrentPrice(ctx context.Context, auctionID string, price decimal.Decimal) error {
	query := `UPDATE auctions SET current_price = ?, updated_at = ? WHERE id = ?`
	return r.exec(ctx, query, auctionID, price, r.now().UTC(), auctionID)
}

// RaiseCurrentPrice is a single conditional UPDATE, so concurrent callers
// can only ever move the price up.
func (r *MySQLAuctionRepository) RaiseCurrentPrice(ctx context.Context, auctionID string, price decimal.Decimal) (bool, error) {
	query := `UPDATE auctions SET current_price = ?, updated_at = ? WHERE id = ? AND current_price < ?`
	res, err := r.db.ExecContext(ctx, query, price, r.now().UTC(), auctionID, price)
	if err != nil {
		return false, fmt.Errorf("raise price of auction %s: %w", auctionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("raise price of auction %s: %w", auctionID, err)
	}
	return n > 0, nil
}

func (r *MySQLAuctionRepository) GetActiveAuctions(ctx context.Context) ([]*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE is_active = 1 ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active auctions: %w", err)
	}
	defer rows.Close()

	var auctions []*domain.Auction
	for rows.Next() {
		auction, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan auction: %w", err)
		}
		auctions = append(auctions, auction)
	}
	return auctions, rows.Err()
}

func (r *MySQLAuctionRepository) exec(ctx context.Context, query, auctionID string, args ...interface{}) error {
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update auction %s: %w", auctionID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAuction(row rowScanner) (*domain.Auction, error) {
	var auction domain.Auction
	var endTime sql.NullTime

	err := row.Scan(&auction.ID, &auction.SellerID, &auction.Title,
		&auction.StartingPrice, &auction.CurrentPrice, &auction.MinPrice, &auction.Increment,
		&auction.IsActive, &auction.StartTime, &endTime, &auction.CreatedAt, &auction.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if endTime.Valid {
		auction.EndTime = endTime.Time
	}
	return &auction, nil
}
