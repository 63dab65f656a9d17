package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"auction-market/internal/api/handlers/mocks"
	"auction-market/internal/domain"
	"auction-market/internal/services"
	"auction-market/pkg/logger"

	"github.com/golang/mock/gomock"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	e        *echo.Echo
	bids     *mocks.MockBidService
	auctions *mocks.MockAuctionService
}

func newFixture(t *testing.T) *fixture {
	ctrl := gomock.NewController(t)
	f := &fixture{
		e:        echo.New(),
		bids:     mocks.NewMockBidService(ctrl),
		auctions: mocks.NewMockAuctionService(ctrl),
	}
	api := f.e.Group("/api/v1")
	NewBidHandler(f.bids, logger.NewNop()).Register(api)
	NewAuctionHandler(f.auctions, logger.NewNop()).Register(api)
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestBidHandler_PlaceBid(t *testing.T) {
	f := newFixture(t)

	limit := decimal.NewNullDecimal(decimal.NewFromInt(300))
	f.bids.EXPECT().
		PlaceBid(gomock.Any(), "item1", "A", gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ interface{}, _, _ string, amount decimal.Decimal, upper decimal.NullDecimal) (*domain.BidResult, error) {
			require.True(t, amount.Equal(decimal.RequireFromString("150.5")))
			require.True(t, upper.Valid)
			require.True(t, upper.Decimal.Equal(limit.Decimal))
			return &domain.BidResult{
				ItemID:     "item1",
				AuctionID:  "auction1",
				FinalPrice: decimal.NewFromInt(210),
				Bids: []*domain.Bid{
					{ID: "bid1", ItemID: "item1", BidderID: "A", Amount: amount, UpperLimit: upper},
				},
			}, nil
		})

	rec := f.do(http.MethodPost, "/api/v1/items/item1/bids",
		`{"bidder_id":"A","amount":"150.50","upper_limit":300}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "210", body["current_price"])
	require.Len(t, body["bids"], 1)
}

func TestBidHandler_PlaceBidWithoutLimit(t *testing.T) {
	f := newFixture(t)

	f.bids.EXPECT().
		PlaceBid(gomock.Any(), "item1", "B", gomock.Any(), decimal.NullDecimal{}).
		Return(&domain.BidResult{ItemID: "item1", FinalPrice: decimal.NewFromInt(160)}, nil)

	rec := f.do(http.MethodPost, "/api/v1/items/item1/bids", `{"bidder_id":"B","amount":160}`)
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestBidHandler_PlaceBidErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "item_missing", err: fmt.Errorf("get item: %w", domain.ErrItemNotFound), wantStatus: http.StatusNotFound, wantCode: domain.CodeItemNotFound},
		{name: "auction_missing", err: domain.ErrAuctionNotFound, wantStatus: http.StatusNotFound, wantCode: domain.CodeAuctionNotFound},
		{name: "too_low", err: fmt.Errorf("validator: %w - below 150", domain.ErrBidTooLow), wantStatus: http.StatusBadRequest, wantCode: domain.CodeBidTooLow},
		{name: "closed", err: domain.ErrAuctionClosed, wantStatus: http.StatusBadRequest, wantCode: domain.CodeAuctionClosed},
		{name: "invalid", err: domain.ErrInvalidBid, wantStatus: http.StatusBadRequest, wantCode: domain.CodeInvalidBid},
		{name: "lock_timeout", err: domain.ErrLockTimeout, wantStatus: http.StatusInternalServerError, wantCode: domain.CodeInternal},
		{
			name:       "resolution_limit",
			err:        &domain.ResolutionError{ItemID: "item1", Rounds: 3, Err: domain.ErrResolutionLimit},
			wantStatus: http.StatusInternalServerError,
			wantCode:   domain.CodeInternal,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.bids.EXPECT().PlaceBid(gomock.Any(), "item1", "A", gomock.Any(), gomock.Any()).Return(nil, tc.err)

			rec := f.do(http.MethodPost, "/api/v1/items/item1/bids", `{"bidder_id":"A","amount":10}`)
			require.Equal(t, tc.wantStatus, rec.Code)

			body := decodeError(t, rec)
			require.Equal(t, tc.wantCode, body.Code)
			if tc.wantCode == domain.CodeInternal {
				require.Equal(t, internalMessage, body.Message)
			} else {
				require.Equal(t, tc.err.Error(), body.Message)
			}
		})
	}
}

func TestBidHandler_MalformedBody(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/v1/items/item1/bids", `{"amount":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, codeInvalidRequest, decodeError(t, rec).Code)
}

func TestBidHandler_Reads(t *testing.T) {
	f := newFixture(t)

	bids := []*domain.Bid{
		{ID: "bid1", ItemID: "item1", BidderID: "A", Amount: decimal.NewFromInt(100)},
		{ID: "bid2", ItemID: "item1", BidderID: "B", Amount: decimal.NewFromInt(110)},
	}
	f.bids.EXPECT().GetBidsByItem(gomock.Any(), "item1").Return(bids, nil)
	f.bids.EXPECT().GetWinningBid(gomock.Any(), "item1").Return(bids[1], nil)
	f.bids.EXPECT().GetWinningBid(gomock.Any(), "empty").Return(nil, fmt.Errorf("winning bid: %w", domain.ErrNoBids))

	rec := f.do(http.MethodGet, "/api/v1/items/item1/bids", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []domain.Bid
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 2)
	require.Equal(t, "bid1", listed[0].ID)

	rec = f.do(http.MethodGet, "/api/v1/items/item1/winning", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var winner domain.Bid
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &winner))
	require.Equal(t, "B", winner.BidderID)

	rec = f.do(http.MethodGet, "/api/v1/items/empty/winning", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, domain.CodeNoBids, decodeError(t, rec).Code)
}

func TestAuctionHandler_CreateAuction(t *testing.T) {
	f := newFixture(t)
	end := time.Date(2030, 1, 2, 15, 0, 0, 0, time.UTC)

	f.auctions.EXPECT().
		CreateAuction(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ interface{}, in services.NewAuction) (*domain.Auction, error) {
			require.Equal(t, "seller1", in.SellerID)
			require.True(t, in.StartingPrice.Equal(decimal.NewFromInt(100)))
			require.True(t, in.Increment.Valid)
			require.True(t, in.Increment.Decimal.Equal(decimal.NewFromInt(10)))
			require.True(t, in.EndTime.Equal(end))
			return &domain.Auction{
				ID: "auction1", SellerID: in.SellerID, Title: in.Title,
				StartingPrice: in.StartingPrice, CurrentPrice: in.StartingPrice,
				Increment: in.Increment.Decimal, IsActive: true, EndTime: in.EndTime,
			}, nil
		})

	rec := f.do(http.MethodPost, "/api/v1/auctions",
		`{"seller_id":"seller1","title":"Camera","starting_price":100,"increment":"10","end_time":"2030-01-02T15:00:00Z"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "auction1", body["id"])
	require.Equal(t, "active", body["status"])
	require.NotContains(t, body, "min_price")
}

func TestAuctionHandler_CreateAuctionInvalid(t *testing.T) {
	f := newFixture(t)
	f.auctions.EXPECT().CreateAuction(gomock.Any(), gomock.Any()).
		Return(nil, fmt.Errorf("auction: %w - starting price must be positive", domain.ErrInvalidAuction))

	rec := f.do(http.MethodPost, "/api/v1/auctions", `{"seller_id":"s","title":"t","starting_price":0}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, domain.CodeInvalidAuction, decodeError(t, rec).Code)
}

func TestAuctionHandler_GetAuction(t *testing.T) {
	f := newFixture(t)
	auction := &domain.Auction{ID: "auction1", IsActive: true}
	items := []*domain.Item{{ID: "item1", AuctionID: "auction1", CurrentPrice: decimal.NewFromInt(210)}}

	f.auctions.EXPECT().GetAuction(gomock.Any(), "auction1").Return(auction, nil)
	f.auctions.EXPECT().ListItems(gomock.Any(), "auction1").Return(items, nil)
	f.auctions.EXPECT().GetAuction(gomock.Any(), "nope").Return(nil, domain.ErrAuctionNotFound)

	rec := f.do(http.MethodGet, "/api/v1/auctions/auction1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		ID     string         `json:"id"`
		Status string         `json:"status"`
		Items  []*domain.Item `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "auction1", body.ID)
	require.Len(t, body.Items, 1)

	rec = f.do(http.MethodGet, "/api/v1/auctions/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuctionHandler_ItemsAndLifecycle(t *testing.T) {
	f := newFixture(t)

	f.auctions.EXPECT().
		AddItem(gomock.Any(), "auction1", services.NewItem{Name: "Lens"}).
		Return(&domain.Item{ID: "item1", AuctionID: "auction1", Name: "Lens"}, nil)
	f.auctions.EXPECT().GetItem(gomock.Any(), "item1").Return(&domain.Item{ID: "item1"}, nil)
	f.auctions.EXPECT().ReconcileItemPrice(gomock.Any(), "item1").Return(decimal.NewFromInt(210), nil)
	gomock.InOrder(
		f.auctions.EXPECT().CloseAuction(gomock.Any(), "auction1").Return(nil),
		f.auctions.EXPECT().GetAuction(gomock.Any(), "auction1").
			Return(&domain.Auction{ID: "auction1", CurrentPrice: decimal.NewFromInt(210)}, nil),
	)
	f.auctions.EXPECT().CloseAuction(gomock.Any(), "broken").Return(errors.New("deadlock"))

	rec := f.do(http.MethodPost, "/api/v1/auctions/auction1/items", `{"name":"Lens"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(http.MethodGet, "/api/v1/items/item1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodPost, "/api/v1/items/item1/reconcile", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var reconciled map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reconciled))
	require.Equal(t, "210", reconciled["current_price"])

	rec = f.do(http.MethodPost, "/api/v1/auctions/auction1/close", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var closed map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &closed))
	require.Equal(t, "ended", closed["status"])

	rec = f.do(http.MethodPost, "/api/v1/auctions/broken/close", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, internalMessage, decodeError(t, rec).Message)
}
