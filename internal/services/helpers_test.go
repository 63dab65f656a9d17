package services

import (
	"auction-market/internal/domain"
	"auction-market/internal/infrastructure/memory"
	"auction-market/pkg/logger"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// testEnv wires the services against the in-memory stores.
type testEnv struct {
	store    *memory.Store
	bus      *memory.EventBus
	locker   *memory.ItemLocker
	jobs     *memory.SchedulerRepository
	leader   *memory.LeaderElection
	engine   *ProxyEngine
	bids     *BidService
	auctions *AuctionManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.NewNop()

	store := memory.NewStore()
	bus := memory.NewEventBus(log)
	locker := memory.NewItemLocker()
	jobs := memory.NewSchedulerRepository()
	leader := memory.NewLeaderElection()
	_, err := leader.BecomeLeader(context.Background(), "test-node")
	require.NoError(t, err)

	engine := NewProxyEngine(store.Items(), store.Ledger(), DefaultMaxResolutionRounds, log)
	bids := NewBidService(store.Items(), store.Auctions(), store.Ledger(), locker, bus,
		NewBidValidator(nil), engine, nil, log)
	scheduler := NewCronAuctionScheduler(jobs, time.Minute, nil, log)
	auctions := NewAuctionManager(store.Auctions(), store.Items(), store.Ledger(), locker, bus,
		scheduler, leader, "test-node", decimal.NewFromInt(1), log)
	scheduler.SetAuctionManager(auctions)

	return &testEnv{
		store:    store,
		bus:      bus,
		locker:   locker,
		jobs:     jobs,
		leader:   leader,
		engine:   engine,
		bids:     bids,
		auctions: auctions,
	}
}

// seedItem creates an active auction with the given increment and one item.
func (e *testEnv) seedItem(t *testing.T, startingPrice, increment int64) *domain.Item {
	t.Helper()
	ctx := context.Background()

	auction := &domain.Auction{
		ID:            "auction-" + t.Name(),
		SellerID:      "seller1",
		StartingPrice: decimal.NewFromInt(startingPrice),
		CurrentPrice:  decimal.NewFromInt(startingPrice),
		Increment:     decimal.NewFromInt(increment),
		IsActive:      true,
		CreatedAt:     time.Now(),
	}
	require.NoError(t, e.store.Auctions().CreateAuction(ctx, auction))

	item := &domain.Item{
		ID:            "item-" + t.Name(),
		AuctionID:     auction.ID,
		Name:          "Vintage camera",
		StartingPrice: decimal.NewFromInt(startingPrice),
		CurrentPrice:  decimal.NewFromInt(startingPrice),
		CreatedAt:     time.Now(),
	}
	require.NoError(t, e.store.Items().CreateItem(ctx, item))
	return item
}

func (e *testEnv) itemPrice(t *testing.T, itemID string) decimal.Decimal {
	t.Helper()
	item, err := e.store.Items().GetItem(context.Background(), itemID)
	require.NoError(t, err)
	return item.CurrentPrice
}

func (e *testEnv) auctionPrice(t *testing.T, auctionID string) decimal.Decimal {
	t.Helper()
	a, err := e.store.Auctions().GetAuction(context.Background(), auctionID)
	require.NoError(t, err)
	return a.CurrentPrice
}

func (e *testEnv) ledger(t *testing.T, itemID string) []*domain.Bid {
	t.Helper()
	bids, err := e.store.Ledger().ListByItem(context.Background(), itemID)
	require.NoError(t, err)
	return bids
}

// requireLedgerInvariants checks that amounts strictly increase in creation
// order, that no auto-bid exceeds its own limit, and that the item price
// equals the highest amount.
func requireLedgerInvariants(t *testing.T, e *testEnv, item *domain.Item) {
	t.Helper()
	bids := e.ledger(t, item.ID)
	for i, b := range bids {
		if i > 0 {
			require.True(t, b.Amount.GreaterThan(bids[i-1].Amount),
				"bid %d amount %s not above previous %s", i, b.Amount, bids[i-1].Amount)
		}
		if b.IsAutoBid {
			require.True(t, b.UpperLimit.Valid, "auto-bid without limit")
			require.True(t, b.Amount.LessThanOrEqual(b.UpperLimit.Decimal), "auto-bid above own limit")
		}
	}

	want := item.StartingPrice
	if len(bids) > 0 {
		want = bids[len(bids)-1].Amount
	}
	require.True(t, e.itemPrice(t, item.ID).Equal(want), "item price %s, want %s", e.itemPrice(t, item.ID), want)
}

func appendBid(t *testing.T, e *testEnv, itemID, bidderID string, amount int64, upper decimal.NullDecimal) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.store.Ledger().Append(ctx, &domain.Bid{
		ID: "seed-" + bidderID, ItemID: itemID, BidderID: bidderID, Amount: decimal.NewFromInt(amount),
		UpperLimit: upper, CreatedAt: time.Now(),
	}))
	require.NoError(t, e.store.Items().SetCurrentPrice(ctx, itemID, decimal.NewFromInt(amount)))
}

func noLimit() decimal.NullDecimal {
	return decimal.NullDecimal{}
}
