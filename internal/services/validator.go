package services

import (
	"auction-market/internal/domain"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BidRequest is a manual bid as submitted by a bidder.
type BidRequest struct {
	ItemID     string
	BidderID   string
	Amount     decimal.Decimal
	UpperLimit decimal.NullDecimal
}

// BidValidator decides whether a manual bid may be accepted. It reads nothing
// and writes nothing; callers hand it the state they loaded under the item lock.
type BidValidator struct {
	now func() time.Time
}

func NewBidValidator(now func() time.Time) *BidValidator {
	if now == nil {
		now = time.Now
	}
	return &BidValidator{now: now}
}

// CheckRequest rejects malformed input before any state is loaded.
func (v *BidValidator) CheckRequest(req BidRequest) error {
	if req.ItemID == "" || req.BidderID == "" {
		return fmt.Errorf("validator: %w - missing item or bidder", domain.ErrInvalidBid)
	}
	if !req.Amount.IsPositive() {
		return fmt.Errorf("validator: %w - amount must be positive", domain.ErrInvalidBid)
	}
	if req.UpperLimit.Valid && req.UpperLimit.Decimal.LessThan(req.Amount) {
		return fmt.Errorf("validator: %w - upper limit %s below amount %s",
			domain.ErrInvalidBid, req.UpperLimit.Decimal, req.Amount)
	}
	return nil
}

// Validate applies the auction rules in order: the auction must be open, and
// the amount must beat the highest bid, or meet the higher of the auction and
// item starting prices when the item has no bids. highest is nil when there
// are no bids.
//
// The auction increment is deliberately not applied here; it only governs
// generated auto-bids.
func (v *BidValidator) Validate(item *domain.Item, auction *domain.Auction, highest *domain.Bid, amount decimal.Decimal) error {
	if !auction.IsActive {
		return fmt.Errorf("validator: %w - auction %s is not active", domain.ErrAuctionClosed, auction.ID)
	}
	if auction.HasEnded(v.now()) {
		return fmt.Errorf("validator: %w - auction %s ended at %s",
			domain.ErrAuctionClosed, auction.ID, auction.EndTime.UTC().Format(time.RFC3339))
	}

	if highest != nil {
		if !amount.GreaterThan(highest.Amount) {
			return fmt.Errorf("validator: %w - current highest bid on item %s is %s",
				domain.ErrBidTooLow, item.ID, highest.Amount)
		}
		return nil
	}

	floor := decimal.Max(auction.StartingPrice, item.StartingPrice)
	if amount.LessThan(floor) {
		return fmt.Errorf("validator: %w - starting price of item %s is %s", domain.ErrBidTooLow, item.ID, floor)
	}
	return nil
}
