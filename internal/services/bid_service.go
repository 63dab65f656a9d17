package services

import (
	"auction-market/internal/domain"
	"auction-market/pkg/logger"
	"auction-market/pkg/metrics"
	"auction-market/pkg/utils"
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type BidService struct {
	items     domain.ItemRepository
	auctions  domain.AuctionRepository
	ledger    domain.BidLedger
	locker    domain.ItemLocker
	publisher domain.EventPublisher
	validator *BidValidator
	engine    *ProxyEngine
	metrics   *metrics.BiddingMetrics
	now       func() time.Time
	log       logger.Logger
}

func NewBidService(
	items domain.ItemRepository,
	auctions domain.AuctionRepository,
	ledger domain.BidLedger,
	locker domain.ItemLocker,
	publisher domain.EventPublisher,
	validator *BidValidator,
	engine *ProxyEngine,
	m *metrics.BiddingMetrics,
	log logger.Logger,
) *BidService {
	return &BidService{
		items:     items,
		auctions:  auctions,
		ledger:    ledger,
		locker:    locker,
		publisher: publisher,
		validator: validator,
		engine:    engine,
		metrics:   m,
		now:       time.Now,
		log:       log,
	}
}

// PlaceBid records a manual bid and lets proxy bidding settle the item's
// price. Validation failures leave no trace. Any later failure leaves every
// bid written so far in place; the returned error then wraps the cause.
func (s *BidService) PlaceBid(ctx context.Context, itemID, bidderID string, amount decimal.Decimal, upperLimit decimal.NullDecimal) (*domain.BidResult, error) {
	req := BidRequest{ItemID: itemID, BidderID: bidderID, Amount: amount, UpperLimit: upperLimit}
	s.log.Info("Placing bid", "item_id", itemID, "bidder_id", bidderID, "amount", amount.String())

	if err := s.validator.CheckRequest(req); err != nil {
		s.metrics.IncRejected(domain.ErrorCode(err))
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("bid service: %w", err)
	}
	result, placeErr := s.placeLocked(ctx, req)
	unlock()

	if len(result.Bids) == 0 {
		if domain.IsValidationError(placeErr) {
			s.metrics.IncRejected(domain.ErrorCode(placeErr))
			s.log.Info("Bid rejected", "item_id", itemID, "bidder_id", bidderID, "reason", domain.ErrorCode(placeErr))
		} else {
			s.log.Error("Failed to place bid", "item_id", itemID, "bidder_id", bidderID, "error", placeErr)
		}
		return nil, placeErr
	}

	for _, bid := range result.Bids {
		s.metrics.IncPlaced(bid.IsAutoBid)
	}
	s.metrics.ObserveResolution(len(result.Bids) - 1)

	syncErr := s.syncAuctionPrice(ctx, result.AuctionID, itemID)
	s.publishAccepted(ctx, result)

	if placeErr != nil {
		s.log.Error("Bid resolution incomplete", "item_id", itemID, "bids_written", len(result.Bids), "error", placeErr)
		return nil, placeErr
	}
	if syncErr != nil {
		s.log.Error("Failed to sync auction price", "auction_id", result.AuctionID, "item_id", itemID, "error", syncErr)
		return nil, syncErr
	}

	s.log.Info("Bid placed", "item_id", itemID, "bidder_id", bidderID,
		"final_price", result.FinalPrice.String(), "auto_bids", len(result.Bids)-1)
	return result, nil
}

// placeLocked runs the read-validate-write sequence. The result is never nil
// and carries every bid committed, even when an error is returned.
func (s *BidService) placeLocked(ctx context.Context, req BidRequest) (*domain.BidResult, error) {
	result := &domain.BidResult{ItemID: req.ItemID}

	item, err := s.items.GetItem(ctx, req.ItemID)
	if err != nil {
		return result, fmt.Errorf("bid service: %w", err)
	}
	result.AuctionID = item.AuctionID
	result.FinalPrice = item.CurrentPrice

	auction, err := s.auctions.GetAuction(ctx, item.AuctionID)
	if err != nil {
		return result, fmt.Errorf("bid service: %w", err)
	}

	highest, err := s.highestBid(ctx, item.ID)
	if err != nil {
		return result, fmt.Errorf("bid service: %w", err)
	}
	if err := s.validator.Validate(item, auction, highest, req.Amount); err != nil {
		return result, err
	}

	bid := &domain.Bid{
		ID:         utils.GenerateID("bid"),
		ItemID:     item.ID,
		BidderID:   req.BidderID,
		Amount:     req.Amount,
		UpperLimit: req.UpperLimit,
		IsAutoBid:  false,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.ledger.Append(ctx, bid); err != nil {
		return result, fmt.Errorf("bid service: append bid: %w", err)
	}
	result.Bids = append(result.Bids, bid)

	if err := s.items.SetCurrentPrice(ctx, item.ID, bid.Amount); err != nil {
		return result, fmt.Errorf("bid service: set item price: %w", err)
	}
	item.CurrentPrice = bid.Amount
	result.FinalPrice = bid.Amount

	autoBids, price, err := s.engine.Resolve(ctx, item, auction)
	result.Bids = append(result.Bids, autoBids...)
	result.FinalPrice = price
	if err != nil {
		return result, fmt.Errorf("bid service: %w", err)
	}
	return result, nil
}

func (s *BidService) highestBid(ctx context.Context, itemID string) (*domain.Bid, error) {
	top, err := s.ledger.TopNByAmount(ctx, itemID, 1)
	if err != nil {
		return nil, fmt.Errorf("read highest bid: %w", err)
	}
	if len(top) == 0 {
		return nil, nil
	}
	return top[0], nil
}

// syncAuctionPrice mirrors the item's price onto its auction. It runs outside
// the item lock, so it re-reads the item instead of trusting the result.
func (s *BidService) syncAuctionPrice(ctx context.Context, auctionID, itemID string) error {
	item, err := s.items.GetItem(ctx, itemID)
	if err != nil {
		return fmt.Errorf("bid service: reload item: %w", err)
	}
	raised, err := s.auctions.RaiseCurrentPrice(ctx, auctionID, item.CurrentPrice)
	if err != nil {
		return fmt.Errorf("bid service: raise auction price: %w", err)
	}
	if raised {
		s.log.Debug("Auction price raised", "auction_id", auctionID, "price", item.CurrentPrice.String())
	}
	return nil
}

func (s *BidService) publishAccepted(ctx context.Context, result *domain.BidResult) {
	if s.publisher == nil {
		return
	}
	for _, bid := range result.Bids {
		event := &domain.BidEvent{
			Type:      domain.BidAccepted,
			AuctionID: result.AuctionID,
			ItemID:    bid.ItemID,
			BidID:     bid.ID,
			UserID:    bid.BidderID,
			Amount:    bid.Amount,
			IsAutoBid: bid.IsAutoBid,
			Timestamp: bid.CreatedAt,
		}
		if err := s.publisher.PublishBidEvent(ctx, event); err != nil {
			s.log.Warn("Failed to publish bid event", "bid_id", bid.ID, "error", err)
		}
	}
}

// GetBidsByItem returns the item's bids in the order they were placed.
func (s *BidService) GetBidsByItem(ctx context.Context, itemID string) ([]*domain.Bid, error) {
	if _, err := s.items.GetItem(ctx, itemID); err != nil {
		return nil, fmt.Errorf("bid service: %w", err)
	}
	bids, err := s.ledger.ListByItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("bid service: list bids: %w", err)
	}
	return bids, nil
}

// GetWinningBid returns the item's highest bid.
func (s *BidService) GetWinningBid(ctx context.Context, itemID string) (*domain.Bid, error) {
	if _, err := s.items.GetItem(ctx, itemID); err != nil {
		return nil, fmt.Errorf("bid service: %w", err)
	}
	top, err := s.highestBid(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("bid service: %w", err)
	}
	if top == nil {
		return nil, fmt.Errorf("bid service: %w - item %s", domain.ErrNoBids, itemID)
	}
	return top, nil
}
