package handlers

import (
	"context"

	"auction-market/internal/domain"
	"auction-market/internal/services"

	"github.com/shopspring/decimal"
)

//go:generate mockgen -destination=mocks/mock_services.go -package=mocks auction-market/internal/api/handlers BidService,AuctionService

// BidService is implemented by *services.BidService.
type BidService interface {
	PlaceBid(ctx context.Context, itemID, bidderID string, amount decimal.Decimal, upperLimit decimal.NullDecimal) (*domain.BidResult, error)
	GetBidsByItem(ctx context.Context, itemID string) ([]*domain.Bid, error)
	GetWinningBid(ctx context.Context, itemID string) (*domain.Bid, error)
}

// AuctionService is implemented by *services.AuctionManager.
type AuctionService interface {
	CreateAuction(ctx context.Context, in services.NewAuction) (*domain.Auction, error)
	GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error)
	AddItem(ctx context.Context, auctionID string, in services.NewItem) (*domain.Item, error)
	GetItem(ctx context.Context, itemID string) (*domain.Item, error)
	ListItems(ctx context.Context, auctionID string) ([]*domain.Item, error)
	CloseAuction(ctx context.Context, auctionID string) error
	ReconcileItemPrice(ctx context.Context, itemID string) (decimal.Decimal, error)
}

var (
	_ BidService     = (*services.BidService)(nil)
	_ AuctionService = (*services.AuctionManager)(nil)
)
