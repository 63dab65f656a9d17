package services

import (
	"auction-market/internal/domain"
	"auction-market/internal/domain/mocks"
	"auction-market/pkg/logger"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func resolveItem(t *testing.T, e *testEnv, item *domain.Item) ([]*domain.Bid, decimal.Decimal, error) {
	t.Helper()
	ctx := context.Background()
	fresh, err := e.store.Items().GetItem(ctx, item.ID)
	require.NoError(t, err)
	auction, err := e.store.Auctions().GetAuction(ctx, item.AuctionID)
	require.NoError(t, err)
	return e.engine.Resolve(ctx, fresh, auction)
}

func TestProxyEngine_Resolve(t *testing.T) {
	type seed struct {
		bidder string
		amount int64
		limit  decimal.NullDecimal
	}

	tests := []struct {
		name          string
		increment     int64
		seeds         []seed
		wantAutoBids  int
		wantPrice     int64
		wantLastBuyer string
	}{
		{
			name:      "single_bid_never_resolves",
			increment: 10,
			seeds:     []seed{{"A", 150, limit(500)}},
			wantPrice: 150,
		},
		{
			name:          "challenger_without_limit_never_auto_bids",
			increment:     10,
			seeds:         []seed{{"A", 150, noLimit()}, {"B", 160, limit(300)}},
			wantPrice:     160,
			wantLastBuyer: "B",
		},
		{
			name:          "challenger_limit_equal_to_winner_amount",
			increment:     10,
			seeds:         []seed{{"A", 100, limit(150)}, {"B", 150, noLimit()}},
			wantPrice:     150,
			wantLastBuyer: "B",
		},
		{
			name:          "auto_bid_capped_at_challenger_limit",
			increment:     10,
			seeds:         []seed{{"A", 100, limit(155)}, {"B", 150, noLimit()}},
			wantAutoBids:  1,
			wantPrice:     155,
			wantLastBuyer: "A",
		},
		{
			name:          "duel_won_by_higher_limit",
			increment:     10,
			seeds:         []seed{{"A", 100, limit(500)}, {"B", 120, limit(200)}},
			wantAutoBids:  9,
			wantPrice:     210,
			wantLastBuyer: "A",
		},
		{
			name:          "equal_limits_stop_at_limit",
			increment:     10,
			seeds:         []seed{{"A", 100, limit(250)}, {"B", 120, limit(250)}},
			wantAutoBids:  13,
			wantPrice:     250,
			wantLastBuyer: "A",
		},
		{
			name:          "zero_increment_never_auto_bids",
			increment:     0,
			seeds:         []seed{{"A", 100, limit(500)}, {"B", 120, noLimit()}},
			wantPrice:     120,
			wantLastBuyer: "B",
		},
		{
			name:          "same_bidder_does_not_outbid_itself",
			increment:     10,
			seeds:         []seed{{"A", 100, limit(500)}, {"A", 120, noLimit()}},
			wantPrice:     120,
			wantLastBuyer: "A",
		},
		{
			name:          "third_ranked_bidder_is_inert",
			increment:     10,
			seeds:         []seed{{"C", 100, limit(1000)}, {"A", 110, noLimit()}, {"B", 120, noLimit()}},
			wantPrice:     120,
			wantLastBuyer: "B",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEnv(t)
			item := e.seedItem(t, 100, tc.increment)
			for _, s := range tc.seeds {
				appendBid(t, e, item.ID, s.bidder, s.amount, s.limit)
			}

			autoBids, price, err := resolveItem(t, e, item)
			require.NoError(t, err)
			require.Len(t, autoBids, tc.wantAutoBids)
			require.True(t, price.Equal(dec(tc.wantPrice)), "price %s, want %d", price, tc.wantPrice)
			require.True(t, e.itemPrice(t, item.ID).Equal(dec(tc.wantPrice)))

			if tc.wantLastBuyer != "" {
				bids := e.ledger(t, item.ID)
				require.Equal(t, tc.wantLastBuyer, bids[len(bids)-1].BidderID)
			}
			for _, b := range autoBids {
				require.True(t, b.IsAutoBid)
			}
			requireLedgerInvariants(t, e, item)
		})
	}
}

func TestProxyEngine_DuelTrace(t *testing.T) {
	e := newTestEnv(t)
	item := e.seedItem(t, 100, 10)
	appendBid(t, e, item.ID, "A", 100, limit(500))
	appendBid(t, e, item.ID, "B", 120, limit(200))

	autoBids, _, err := resolveItem(t, e, item)
	require.NoError(t, err)

	var trace []string
	for _, b := range autoBids {
		trace = append(trace, b.BidderID+":"+b.Amount.String())
	}
	require.Equal(t, []string{
		"A:130", "B:140", "A:150", "B:160", "A:170", "B:180", "A:190", "B:200", "A:210",
	}, trace)
}

func TestProxyEngine_TerminationBound(t *testing.T) {
	limits := []struct {
		start, limitA, limitB, increment int64
	}{
		{100, 1000, 999, 1},
		{100, 1000, 1000, 7},
		{50, 51, 5000, 3},
		{1, 10000, 9000, 25},
	}

	for i, l := range limits {
		l := l
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			e := newTestEnv(t)
			item := e.seedItem(t, l.start, l.increment)
			appendBid(t, e, item.ID, "A", l.start, limit(l.limitA))
			appendBid(t, e, item.ID, "B", l.start+1, limit(l.limitB))

			autoBids, _, err := resolveItem(t, e, item)
			require.NoError(t, err)

			maxLimit := l.limitA
			if l.limitB > maxLimit {
				maxLimit = l.limitB
			}
			bound := (maxLimit-l.start)/l.increment + 1
			require.LessOrEqual(t, int64(len(autoBids)), bound)
			requireLedgerInvariants(t, e, item)
		})
	}
}

func TestProxyEngine_RoundLimit(t *testing.T) {
	e := newTestEnv(t)
	e.engine = NewProxyEngine(e.store.Items(), e.store.Ledger(), 3, logger.NewNop())
	item := e.seedItem(t, 100, 10)
	appendBid(t, e, item.ID, "A", 100, limit(500))
	appendBid(t, e, item.ID, "B", 120, limit(400))

	autoBids, price, err := resolveItem(t, e, item)
	require.True(t, errors.Is(err, domain.ErrResolutionLimit))

	var resErr *domain.ResolutionError
	require.True(t, errors.As(err, &resErr))
	require.Equal(t, 3, resErr.Rounds)
	require.True(t, resErr.LastPrice.Equal(dec(150)))

	require.Len(t, autoBids, 3)
	require.True(t, price.Equal(dec(150)))
	require.True(t, e.itemPrice(t, item.ID).Equal(dec(150)))
	require.Len(t, e.ledger(t, item.ID), 5)
}

func TestProxyEngine_PersistenceFailureMidLoop(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	items := mocks.NewMockItemRepository(ctrl)
	ledger := mocks.NewMockBidLedger(ctrl)
	engine := NewProxyEngine(items, ledger, 100, logger.NewNop())

	item := &domain.Item{ID: "item1", AuctionID: "auction1", StartingPrice: dec(100), CurrentPrice: dec(120)}
	auction := &domain.Auction{ID: "auction1", Increment: dec(10), IsActive: true}

	a := &domain.Bid{ID: "b1", ItemID: "item1", BidderID: "A", Amount: dec(100), UpperLimit: limit(500)}
	b := &domain.Bid{ID: "b2", ItemID: "item1", BidderID: "B", Amount: dec(120), UpperLimit: limit(200)}
	a2 := &domain.Bid{ID: "b3", ItemID: "item1", BidderID: "A", Amount: dec(130), UpperLimit: limit(500), IsAutoBid: true}

	storeErr := errors.New("connection reset")
	gomock.InOrder(
		ledger.EXPECT().TopNByAmount(gomock.Any(), "item1", 2).Return([]*domain.Bid{b, a}, nil),
		ledger.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil),
		items.EXPECT().SetCurrentPrice(gomock.Any(), "item1", gomock.Any()).Return(nil),
		ledger.EXPECT().TopNByAmount(gomock.Any(), "item1", 2).Return([]*domain.Bid{a2, b}, nil),
		ledger.EXPECT().Append(gomock.Any(), gomock.Any()).Return(storeErr),
	)

	autoBids, price, err := engine.Resolve(context.Background(), item, auction)
	require.Error(t, err)
	require.True(t, errors.Is(err, storeErr))

	var resErr *domain.ResolutionError
	require.True(t, errors.As(err, &resErr))
	require.True(t, resErr.LastPrice.Equal(dec(130)))
	require.Equal(t, 1, resErr.Rounds)

	require.Len(t, autoBids, 1)
	require.Equal(t, "A", autoBids[0].BidderID)
	require.True(t, price.Equal(dec(130)))
}

func TestProxyEngine_ReadFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	items := mocks.NewMockItemRepository(ctrl)
	ledger := mocks.NewMockBidLedger(ctrl)
	engine := NewProxyEngine(items, ledger, 0, logger.NewNop())

	item := &domain.Item{ID: "item1", CurrentPrice: dec(120)}
	ledger.EXPECT().TopNByAmount(gomock.Any(), "item1", 2).Return(nil, errors.New("timeout"))

	autoBids, price, err := engine.Resolve(context.Background(), item, &domain.Auction{Increment: dec(10)})
	require.Error(t, err)
	require.Empty(t, autoBids)
	require.True(t, price.Equal(dec(120)))
}
