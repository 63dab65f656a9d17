package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Auction struct {
	ID            string          `json:"id"`
	SellerID      string          `json:"seller_id"`
	Title         string          `json:"title"`
	StartingPrice decimal.Decimal `json:"starting_price"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	// MinPrice is the seller's confidential reserve. It is stored but not
	// checked against bids.
	MinPrice  decimal.Decimal `json:"-"`
	Increment decimal.Decimal `json:"increment"`
	IsActive  bool            `json:"is_active"`
	StartTime time.Time       `json:"start_time"`
	EndTime   time.Time       `json:"end_time"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Status derives the lifecycle state from the active flag and time window.
func (a *Auction) Status(now time.Time) AuctionStatus {
	switch {
	case a.IsActive && a.HasEnded(now):
		return AuctionEnded
	case a.IsActive:
		return AuctionActive
	case !a.StartTime.IsZero() && now.Before(a.StartTime):
		return AuctionPending
	default:
		return AuctionEnded
	}
}

// HasEnded reports whether the end of the time window has passed. A zero
// end time means the auction is open-ended.
func (a *Auction) HasEnded(now time.Time) bool {
	return !a.EndTime.IsZero() && !now.Before(a.EndTime)
}

type AuctionStatus int

const (
	AuctionPending AuctionStatus = iota
	AuctionActive
	AuctionEnded
)

func (s AuctionStatus) String() string {
	switch s {
	case AuctionPending:
		return "pending"
	case AuctionActive:
		return "active"
	case AuctionEnded:
		return "ended"
	default:
		return "unknown"
	}
}

type Item struct {
	ID            string          `json:"id"`
	AuctionID     string          `json:"auction_id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	StartingPrice decimal.Decimal `json:"starting_price"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Bid is an immutable ledger entry. Bids are only ever appended.
type Bid struct {
	ID         string              `json:"id"`
	ItemID     string              `json:"item_id"`
	BidderID   string              `json:"bidder_id"`
	Amount     decimal.Decimal     `json:"amount"`
	UpperLimit decimal.NullDecimal `json:"upper_limit"`
	IsAutoBid  bool                `json:"is_auto_bid"`
	CreatedAt  time.Time           `json:"created_at"`
}

// HasProxyHeadroomOver reports whether the bid carries an upper limit strictly
// above amount. Bids without a limit never have headroom.
func (b *Bid) HasProxyHeadroomOver(amount decimal.Decimal) bool {
	return b.UpperLimit.Valid && b.UpperLimit.Decimal.GreaterThan(amount)
}

type BidEvent struct {
	Type      BidEventType    `json:"type"`
	AuctionID string          `json:"auction_id"`
	ItemID    string          `json:"item_id,omitempty"`
	BidID     string          `json:"bid_id,omitempty"`
	UserID    string          `json:"user_id,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	IsAutoBid bool            `json:"is_auto_bid"`
	Timestamp time.Time       `json:"timestamp"`
}

type BidEventType string

const (
	BidAccepted    BidEventType = "bid_accepted"
	AuctionStarted BidEventType = "auction_started"
	AuctionClosed  BidEventType = "auction_ended"
)

// BidResult is what a caller gets back after placing a bid: the item's price
// once proxy bidding settled, and every bid written on its behalf.
type BidResult struct {
	ItemID     string          `json:"item_id"`
	AuctionID  string          `json:"auction_id"`
	FinalPrice decimal.Decimal `json:"current_price"`
	Bids       []*Bid          `json:"bids"`
}

type ScheduledJob struct {
	ID        string
	AuctionID string
	JobType   JobType
	RunAt     time.Time
	Status    JobStatus
	CreatedAt time.Time
}

type JobType string

const (
	JobStartAuction JobType = "start_auction"
	JobEndAuction   JobType = "end_auction"
)

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobExecuted  JobStatus = "executed"
	JobCancelled JobStatus = "cancelled"
)
