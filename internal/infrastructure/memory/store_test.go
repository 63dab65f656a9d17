package memory

import (
	"auction-market/internal/domain"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func seedStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.Auctions().CreateAuction(ctx, &domain.Auction{
		ID: "auction1", StartingPrice: decimal.NewFromInt(100), CurrentPrice: decimal.NewFromInt(100), IsActive: true,
	}))
	require.NoError(t, s.Items().CreateItem(ctx, &domain.Item{
		ID: "item1", AuctionID: "auction1", StartingPrice: decimal.NewFromInt(100), CurrentPrice: decimal.NewFromInt(100),
	}))
	return s
}

func newBid(id, itemID, bidderID string, amount int64) *domain.Bid {
	return &domain.Bid{ID: id, ItemID: itemID, BidderID: bidderID, Amount: decimal.NewFromInt(amount), CreatedAt: time.Now()}
}

func TestBidLedger_Append(t *testing.T) {
	t.Parallel()
	s := seedStore(t)
	ledger := s.Ledger()

	tests := []struct {
		name    string
		bid     *domain.Bid
		wantErr error
	}{
		{name: "valid_bid", bid: newBid("bid1", "item1", "user1", 150)},
		{name: "item_not_found", bid: newBid("bid2", "itemX", "user1", 150), wantErr: domain.ErrItemNotFound},
		{name: "empty_item_id", bid: newBid("bid3", "", "user1", 150), wantErr: domain.ErrItemNotFound},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			err := ledger.Append(context.Background(), tc.bid)
			if tc.wantErr != nil {
				require.True(t, errors.Is(err, tc.wantErr), "expected %v, got %v", tc.wantErr, err)
				return
			}
			require.NoError(t, err)
			bids, err := ledger.ListByItem(context.Background(), tc.bid.ItemID)
			require.NoError(t, err)
			require.Equal(t, tc.bid.ID, bids[len(bids)-1].ID)
		})
	}
}

func TestBidLedger_TopNByAmount(t *testing.T) {
	t.Parallel()
	s := seedStore(t)
	ledger := s.Ledger()
	ctx := context.Background()

	empty, err := ledger.TopNByAmount(ctx, "item1", 2)
	require.NoError(t, err)
	require.Empty(t, empty)

	require.NoError(t, ledger.Append(ctx, newBid("bid1", "item1", "user1", 120)))
	require.NoError(t, ledger.Append(ctx, newBid("bid2", "item1", "user2", 200)))
	require.NoError(t, ledger.Append(ctx, newBid("bid3", "item1", "user3", 150)))
	require.NoError(t, ledger.Append(ctx, newBid("bid4", "item1", "user4", 200)))

	top, err := ledger.TopNByAmount(ctx, "item1", 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	require.Equal(t, "bid2", top[0].ID, "earlier bid wins an amount tie")
	require.Equal(t, "bid4", top[1].ID)

	one, err := ledger.TopNByAmount(ctx, "item1", 1)
	require.NoError(t, err)
	require.Len(t, one, 1)
	require.Equal(t, "bid2", one[0].ID)

	all, err := ledger.ListByItem(ctx, "item1")
	require.NoError(t, err)
	require.Equal(t, []string{"bid1", "bid2", "bid3", "bid4"}, bidIDs(all))
}

func TestBidLedger_ReturnsCopies(t *testing.T) {
	t.Parallel()
	s := seedStore(t)
	ctx := context.Background()
	require.NoError(t, s.Ledger().Append(ctx, newBid("bid1", "item1", "user1", 150)))

	bids, err := s.Ledger().ListByItem(ctx, "item1")
	require.NoError(t, err)
	bids[0].Amount = decimal.NewFromInt(1)

	again, err := s.Ledger().ListByItem(ctx, "item1")
	require.NoError(t, err)
	require.True(t, again[0].Amount.Equal(decimal.NewFromInt(150)))
}

func TestBidLedger_ConcurrentAppend(t *testing.T) {
	t.Parallel()
	s := seedStore(t)
	ledger := s.Ledger()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			require.NoError(t, ledger.Append(context.Background(),
				newBid(fmt.Sprintf("bid%d", i), "item1", fmt.Sprintf("user%d", i), int64(100+i))))
		}(i)
	}
	wg.Wait()

	all, err := ledger.ListByItem(context.Background(), "item1")
	require.NoError(t, err)
	require.Len(t, all, 50)

	top, err := ledger.TopNByAmount(context.Background(), "item1", 1)
	require.NoError(t, err)
	require.True(t, top[0].Amount.Equal(decimal.NewFromInt(149)))
}

func TestItemRepo(t *testing.T) {
	t.Parallel()
	s := seedStore(t)
	items := s.Items()
	ctx := context.Background()

	err := items.CreateItem(ctx, &domain.Item{ID: "item2", AuctionID: "missing"})
	require.True(t, errors.Is(err, domain.ErrAuctionNotFound))

	_, err = items.GetItem(ctx, "missing")
	require.True(t, errors.Is(err, domain.ErrItemNotFound))

	require.NoError(t, items.SetCurrentPrice(ctx, "item1", decimal.NewFromInt(180)))
	item, err := items.GetItem(ctx, "item1")
	require.NoError(t, err)
	require.True(t, item.CurrentPrice.Equal(decimal.NewFromInt(180)))

	err = items.SetCurrentPrice(ctx, "missing", decimal.NewFromInt(1))
	require.True(t, errors.Is(err, domain.ErrItemNotFound))

	list, err := items.ListItemsByAuction(ctx, "auction1")
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestAuctionRepo_RaiseCurrentPrice(t *testing.T) {
	t.Parallel()
	s := seedStore(t)
	auctions := s.Auctions()
	ctx := context.Background()

	tests := []struct {
		name       string
		price      int64
		wantRaised bool
		wantPrice  int64
	}{
		{name: "higher_price_raises", price: 150, wantRaised: true, wantPrice: 150},
		{name: "equal_price_is_noop", price: 150, wantRaised: false, wantPrice: 150},
		{name: "lower_price_is_noop", price: 120, wantRaised: false, wantPrice: 150},
	}

	for _, tc := range tests {
		raised, err := auctions.RaiseCurrentPrice(ctx, "auction1", decimal.NewFromInt(tc.price))
		require.NoError(t, err, tc.name)
		require.Equal(t, tc.wantRaised, raised, tc.name)

		a, err := auctions.GetAuction(ctx, "auction1")
		require.NoError(t, err)
		require.True(t, a.CurrentPrice.Equal(decimal.NewFromInt(tc.wantPrice)), tc.name)
	}

	_, err := auctions.RaiseCurrentPrice(ctx, "missing", decimal.NewFromInt(1))
	require.True(t, errors.Is(err, domain.ErrAuctionNotFound))
}

func TestAuctionRepo_Active(t *testing.T) {
	t.Parallel()
	s := seedStore(t)
	auctions := s.Auctions()
	ctx := context.Background()

	active, err := auctions.GetActiveAuctions(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)

	require.NoError(t, auctions.SetActive(ctx, "auction1", false))
	active, err = auctions.GetActiveAuctions(ctx)
	require.NoError(t, err)
	require.Empty(t, active)

	_, err = auctions.GetAuction(ctx, "missing")
	require.True(t, errors.Is(err, domain.ErrAuctionNotFound))
}

func bidIDs(bids []*domain.Bid) []string {
	ids := make([]string, 0, len(bids))
	for _, b := range bids {
		ids = append(ids, b.ID)
	}
	return ids
}
