package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Lookup errors
var (
	ErrItemNotFound    = errors.New("item not found")
	ErrAuctionNotFound = errors.New("auction not found")
	ErrNoBids          = errors.New("no bids found for item")
)

// Bid validation errors
var (
	ErrInvalidBid    = errors.New("invalid bid")
	ErrAuctionClosed = errors.New("auction is closed")
	ErrBidTooLow     = errors.New("bid amount too low")
)

var ErrInvalidAuction = errors.New("invalid auction")

// Resolution and coordination errors
var (
	ErrResolutionLimit = errors.New("proxy resolution exceeded round limit")
	ErrLockTimeout     = errors.New("timed out waiting for item lock")
)

// ResolutionError reports a proxy resolution that stopped before reaching
// equilibrium. Auto-bids committed before the failure remain in the ledger and
// LastPrice is the item price they produced.
type ResolutionError struct {
	ItemID    string
	LastPrice decimal.Decimal
	Rounds    int
	Err       error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve proxy bids for item %s after %d rounds (last price %s): %v",
		e.ItemID, e.Rounds, e.LastPrice.String(), e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Machine-readable reasons surfaced to callers.
const (
	CodeItemNotFound    = "ITEM_NOT_FOUND"
	CodeAuctionNotFound = "AUCTION_NOT_FOUND"
	CodeAuctionClosed   = "AUCTION_CLOSED"
	CodeBidTooLow       = "BID_TOO_LOW"
	CodeInvalidBid      = "INVALID_BID"
	CodeInvalidAuction  = "INVALID_AUCTION"
	CodeNoBids          = "NO_BIDS"
	CodeInternal        = "INTERNAL_ERROR"
)

// ErrorCode maps an error chain to its machine-readable reason. Anything that
// is not a caller mistake is CodeInternal.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrItemNotFound):
		return CodeItemNotFound
	case errors.Is(err, ErrAuctionNotFound):
		return CodeAuctionNotFound
	case errors.Is(err, ErrAuctionClosed):
		return CodeAuctionClosed
	case errors.Is(err, ErrBidTooLow):
		return CodeBidTooLow
	case errors.Is(err, ErrInvalidBid):
		return CodeInvalidBid
	case errors.Is(err, ErrInvalidAuction):
		return CodeInvalidAuction
	case errors.Is(err, ErrNoBids):
		return CodeNoBids
	default:
		return CodeInternal
	}
}

// IsValidationError reports whether err is a caller-recoverable rejection
// that was raised before any mutation.
func IsValidationError(err error) bool {
	return ErrorCode(err) != CodeInternal
}
