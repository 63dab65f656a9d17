package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// Schema is applied statement by statement on startup when
// mysql.migrate_on_start is set.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS auctions (
        id             VARCHAR(64)    NOT NULL PRIMARY KEY,
        seller_id      VARCHAR(64)    NOT NULL,
        title          VARCHAR(255)   NOT NULL,
        starting_price DECIMAL(20,4)  NOT NULL,
        current_price  DECIMAL(20,4)  NOT NULL,
        min_price      DECIMAL(20,4)  NOT NULL DEFAULT 0,
        bid_increment  DECIMAL(20,4)  NOT NULL DEFAULT 0,
        is_active      TINYINT(1)     NOT NULL DEFAULT 0,
        start_time     DATETIME(6)    NOT NULL,
        end_time       DATETIME(6)    NULL,
        created_at     DATETIME(6)    NOT NULL,
        updated_at     DATETIME(6)    NOT NULL,
        INDEX idx_auctions_active (is_active)
    ) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS items (
        id             VARCHAR(64)    NOT NULL PRIMARY KEY,
        auction_id     VARCHAR(64)    NOT NULL,
        name           VARCHAR(255)   NOT NULL,
        description    TEXT           NOT NULL,
        starting_price DECIMAL(20,4)  NOT NULL,
        current_price  DECIMAL(20,4)  NOT NULL,
        created_at     DATETIME(6)    NOT NULL,
        updated_at     DATETIME(6)    NOT NULL,
        INDEX idx_items_auction (auction_id),
        CONSTRAINT fk_items_auction FOREIGN KEY (auction_id) REFERENCES auctions (id)
    ) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS bids (
        seq         BIGINT         NOT NULL AUTO_INCREMENT PRIMARY KEY,
        id          VARCHAR(64)    NOT NULL,
        item_id     VARCHAR(64)    NOT NULL,
        bidder_id   VARCHAR(64)    NOT NULL,
        amount      DECIMAL(20,4)  NOT NULL,
        upper_limit DECIMAL(20,4)  NULL,
        is_auto_bid TINYINT(1)     NOT NULL DEFAULT 0,
        created_at  DATETIME(6)    NOT NULL,
        UNIQUE KEY uq_bids_id (id),
        INDEX idx_bids_item_amount (item_id, amount),
        CONSTRAINT fk_bids_item FOREIGN KEY (item_id) REFERENCES items (id)
    ) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS scheduled_jobs (
        id         VARCHAR(64)  NOT NULL PRIMARY KEY,
        auction_id VARCHAR(64)  NOT NULL,
        job_type   VARCHAR(32)  NOT NULL,
        run_at     DATETIME(6)  NOT NULL,
        status     VARCHAR(16)  NOT NULL,
        created_at DATETIME(6)  NOT NULL,
        INDEX idx_jobs_due (status, run_at),
        INDEX idx_jobs_auction (auction_id)
    ) ENGINE=InnoDB`,
}

func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// MySQL server error numbers the repositories translate.
const (
	errDuplicateEntry    = 1062
	errNoReferencedRow   = 1452
	errNoReferencedRowV2 = 1216
)

func isMySQLError(err error, numbers ...uint16) bool {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return false
	}
	for _, n := range numbers {
		if myErr.Number == n {
			return true
		}
	}
	return false
}
