package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

//go:generate mockgen -destination=mocks/mock_interfaces.go -package=mocks auction-market/internal/domain AuctionRepository,ItemRepository,BidLedger,ItemLocker,EventPublisher,LeaderElection,SchedulerRepository

// Repository interfaces
type AuctionRepository interface {
	CreateAuction(ctx context.Context, auction *Auction) error
	GetAuction(ctx context.Context, auctionID string) (*Auction, error)
	SetActive(ctx context.Context, auctionID string, active bool) error
	SetCurrentPrice(ctx context.Context, auctionID string, price decimal.Decimal) error
	// RaiseCurrentPrice stores price only when it exceeds the stored value and
	// reports whether a write happened.
	RaiseCurrentPrice(ctx context.Context, auctionID string, price decimal.Decimal) (bool, error)
	GetActiveAuctions(ctx context.Context) ([]*Auction, error)
}

type ItemRepository interface {
	CreateItem(ctx context.Context, item *Item) error
	GetItem(ctx context.Context, itemID string) (*Item, error)
	SetCurrentPrice(ctx context.Context, itemID string, price decimal.Decimal) error
	ListItemsByAuction(ctx context.Context, auctionID string) ([]*Item, error)
}

// BidLedger is the append-only bid store. Reads must observe every prior
// append; implementations never serve them from replicas.
type BidLedger interface {
	Append(ctx context.Context, bid *Bid) error
	// TopNByAmount returns at most n bids for the item, highest amount first.
	TopNByAmount(ctx context.Context, itemID string, n int) ([]*Bid, error)
	// ListByItem returns every bid for the item in creation order.
	ListByItem(ctx context.Context, itemID string) ([]*Bid, error)
}

type SchedulerRepository interface {
	CreateJob(ctx context.Context, job *ScheduledJob) error
	GetPendingJobs(ctx context.Context, before time.Time) ([]*ScheduledJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus) error
	CancelJobsForAuction(ctx context.Context, auctionID string, jobType JobType) error
}

// ItemLocker provides the per-item critical section every read-then-write on
// an item's bid state runs in. The returned func releases the lock.
type ItemLocker interface {
	Lock(ctx context.Context, itemID string) (unlock func(), err error)
}

// Event interfaces
type EventPublisher interface {
	PublishBidEvent(ctx context.Context, event *BidEvent) error
}

type EventSubscriber interface {
	SubscribeToBidEvents(ctx context.Context, handler EventHandler) error
}

type EventHandler func(event *BidEvent) error

// Notification interfaces
type UserNotifier interface {
	NotifyUser(ctx context.Context, userID string, message interface{}) error
}

type AuctionBroadcaster interface {
	BroadcastToAuction(ctx context.Context, auctionID string, message interface{}) error
}

// Leader election interface
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}

// Scheduler interface
type AuctionScheduler interface {
	ScheduleAuctionStart(ctx context.Context, auctionID string, startTime time.Time) error
	ScheduleAuctionEnd(ctx context.Context, auctionID string, endTime time.Time) error
	RescheduleAuctionEnd(ctx context.Context, auctionID string, newEndTime time.Time) error
	CancelSchedule(ctx context.Context, auctionID string) error
	Start(ctx context.Context) error
	Stop() error
}

// WebSocket interfaces
type WebSocketConnection interface {
	Send(message interface{}) error
	Close() error
	UserID() string
	AuctionID() string
}

type ConnectionManager interface {
	RegisterConnection(userID, auctionID string, conn WebSocketConnection) error
	UnregisterConnection(userID, auctionID string) error
	GetConnectionsForAuction(auctionID string) []WebSocketConnection
	GetConnectionsForUser(userID string) []WebSocketConnection
	BroadcastToAuction(auctionID string, message interface{}) error
	NotifyUser(userID string, message interface{}) error
	CloseAndUnregisterConnections(auctionID string) error
}
