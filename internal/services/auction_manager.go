package services

import (
	"auction-market/internal/domain"
	"auction-market/pkg/logger"
	"auction-market/pkg/utils"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// NewAuction holds the seller-supplied fields of an auction. A nil Increment
// falls back to the configured default; a zero StartTime starts the auction
// immediately.
type NewAuction struct {
	SellerID      string
	Title         string
	StartingPrice decimal.Decimal
	MinPrice      decimal.Decimal
	Increment     decimal.NullDecimal
	StartTime     time.Time
	EndTime       time.Time
}

// NewItem describes an item listed in an auction. A nil StartingPrice
// inherits the auction's.
type NewItem struct {
	Name          string
	Description   string
	StartingPrice decimal.NullDecimal
}

type AuctionManager struct {
	auctionRepo      domain.AuctionRepository
	itemRepo         domain.ItemRepository
	ledger           domain.BidLedger
	locker           domain.ItemLocker
	eventPub         domain.EventPublisher
	scheduler        domain.AuctionScheduler
	leaderElection   domain.LeaderElection
	instanceID       string
	defaultIncrement decimal.Decimal
	now              func() time.Time
	log              logger.Logger
}

func NewAuctionManager(
	auctionRepo domain.AuctionRepository,
	itemRepo domain.ItemRepository,
	ledger domain.BidLedger,
	locker domain.ItemLocker,
	eventPub domain.EventPublisher,
	scheduler domain.AuctionScheduler,
	leaderElection domain.LeaderElection,
	instanceID string,
	defaultIncrement decimal.Decimal,
	log logger.Logger,
) *AuctionManager {
	return &AuctionManager{
		auctionRepo:      auctionRepo,
		itemRepo:         itemRepo,
		ledger:           ledger,
		locker:           locker,
		eventPub:         eventPub,
		scheduler:        scheduler,
		leaderElection:   leaderElection,
		instanceID:       instanceID,
		defaultIncrement: defaultIncrement,
		now:              time.Now,
		log:              log,
	}
}

func (am *AuctionManager) CreateAuction(ctx context.Context, in NewAuction) (*domain.Auction, error) {
	if err := am.validateNewAuction(in); err != nil {
		return nil, err
	}

	now := am.now().UTC()
	increment := am.defaultIncrement
	if in.Increment.Valid {
		increment = in.Increment.Decimal
	}

	auction := &domain.Auction{
		ID:            utils.GenerateID("auction"),
		SellerID:      in.SellerID,
		Title:         strings.TrimSpace(in.Title),
		StartingPrice: in.StartingPrice,
		CurrentPrice:  in.StartingPrice,
		MinPrice:      in.MinPrice,
		Increment:     increment,
		IsActive:      in.StartTime.IsZero() || !in.StartTime.After(now),
		StartTime:     in.StartTime.UTC(),
		EndTime:       in.EndTime.UTC(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if in.StartTime.IsZero() {
		auction.StartTime = now
	}
	if in.EndTime.IsZero() {
		auction.EndTime = time.Time{}
	}

	if err := am.auctionRepo.CreateAuction(ctx, auction); err != nil {
		return nil, fmt.Errorf("auction manager: create auction: %w", err)
	}

	if am.scheduler != nil {
		if !auction.IsActive {
			if err := am.scheduler.ScheduleAuctionStart(ctx, auction.ID, auction.StartTime); err != nil {
				return nil, fmt.Errorf("auction manager: schedule start: %w", err)
			}
		}
		if !auction.EndTime.IsZero() {
			if err := am.scheduler.ScheduleAuctionEnd(ctx, auction.ID, auction.EndTime); err != nil {
				return nil, fmt.Errorf("auction manager: schedule end: %w", err)
			}
		}
	}

	am.log.Info("Auction created", "auction_id", auction.ID, "seller_id", auction.SellerID, "active", auction.IsActive)
	return auction, nil
}

func (am *AuctionManager) validateNewAuction(in NewAuction) error {
	switch {
	case in.SellerID == "":
		return fmt.Errorf("auction manager: %w - seller is required", domain.ErrInvalidAuction)
	case strings.TrimSpace(in.Title) == "":
		return fmt.Errorf("auction manager: %w - title is required", domain.ErrInvalidAuction)
	case !in.StartingPrice.IsPositive():
		return fmt.Errorf("auction manager: %w - starting price must be positive", domain.ErrInvalidAuction)
	case in.MinPrice.IsNegative():
		return fmt.Errorf("auction manager: %w - reserve price cannot be negative", domain.ErrInvalidAuction)
	case in.Increment.Valid && in.Increment.Decimal.IsNegative():
		return fmt.Errorf("auction manager: %w - increment cannot be negative", domain.ErrInvalidAuction)
	case !in.EndTime.IsZero() && !in.StartTime.IsZero() && !in.EndTime.After(in.StartTime):
		return fmt.Errorf("auction manager: %w - end time must be after start time", domain.ErrInvalidAuction)
	case !in.EndTime.IsZero() && !in.EndTime.After(am.now()):
		return fmt.Errorf("auction manager: %w - end time is in the past", domain.ErrInvalidAuction)
	}
	return nil
}

func (am *AuctionManager) AddItem(ctx context.Context, auctionID string, in NewItem) (*domain.Item, error) {
	auction, err := am.auctionRepo.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("auction manager: %w", err)
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("auction manager: %w - item name is required", domain.ErrInvalidAuction)
	}

	startingPrice := auction.StartingPrice
	if in.StartingPrice.Valid {
		startingPrice = in.StartingPrice.Decimal
	}
	if !startingPrice.IsPositive() {
		return nil, fmt.Errorf("auction manager: %w - starting price must be positive", domain.ErrInvalidAuction)
	}

	now := am.now().UTC()
	item := &domain.Item{
		ID:            utils.GenerateID("item"),
		AuctionID:     auction.ID,
		Name:          strings.TrimSpace(in.Name),
		Description:   in.Description,
		StartingPrice: startingPrice,
		CurrentPrice:  startingPrice,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := am.itemRepo.CreateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("auction manager: create item: %w", err)
	}

	am.log.Info("Item added", "auction_id", auction.ID, "item_id", item.ID)
	return item, nil
}

func (am *AuctionManager) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	auction, err := am.auctionRepo.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("auction manager: %w", err)
	}
	return auction, nil
}

func (am *AuctionManager) GetItem(ctx context.Context, itemID string) (*domain.Item, error) {
	item, err := am.itemRepo.GetItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("auction manager: %w", err)
	}
	return item, nil
}

func (am *AuctionManager) ListItems(ctx context.Context, auctionID string) ([]*domain.Item, error) {
	if _, err := am.auctionRepo.GetAuction(ctx, auctionID); err != nil {
		return nil, fmt.Errorf("auction manager: %w", err)
	}
	items, err := am.itemRepo.ListItemsByAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("auction manager: list items: %w", err)
	}
	return items, nil
}

// IsLeader reports whether this instance currently runs scheduled work.
func (am *AuctionManager) IsLeader(ctx context.Context) bool {
	if am.leaderElection == nil {
		return true
	}
	isLeader, err := am.leaderElection.IsLeader(ctx, am.instanceID)
	if err != nil {
		am.log.Warn("Leader check failed", "instance_id", am.instanceID, "error", err)
		return false
	}
	return isLeader
}

// StartAuction activates a pending auction. Only the leader acts; other
// instances return nil so the job stays with the leader.
func (am *AuctionManager) StartAuction(ctx context.Context, auctionID string) error {
	if !am.IsLeader(ctx) {
		return nil
	}

	auction, err := am.auctionRepo.GetAuction(ctx, auctionID)
	if err != nil {
		return fmt.Errorf("auction manager: %w", err)
	}
	if auction.IsActive || auction.HasEnded(am.now()) {
		return nil
	}

	am.log.Info("Starting auction", "auction_id", auctionID)
	if err := am.auctionRepo.SetActive(ctx, auctionID, true); err != nil {
		return fmt.Errorf("auction manager: activate auction: %w", err)
	}

	am.publish(ctx, &domain.BidEvent{
		Type:      domain.AuctionStarted,
		AuctionID: auctionID,
		Amount:    auction.CurrentPrice,
		Timestamp: am.now().UTC(),
	})
	return nil
}

// EndAuction is the scheduled close. Only the leader acts.
func (am *AuctionManager) EndAuction(ctx context.Context, auctionID string) error {
	if !am.IsLeader(ctx) {
		return nil
	}
	return am.CloseAuction(ctx, auctionID)
}

// CloseAuction deactivates an auction and cancels its pending jobs. Closing
// an inactive auction is a no-op.
func (am *AuctionManager) CloseAuction(ctx context.Context, auctionID string) error {
	auction, err := am.auctionRepo.GetAuction(ctx, auctionID)
	if err != nil {
		return fmt.Errorf("auction manager: %w", err)
	}
	if !auction.IsActive {
		return nil
	}

	am.log.Info("Ending auction", "auction_id", auctionID)
	if err := am.auctionRepo.SetActive(ctx, auctionID, false); err != nil {
		return fmt.Errorf("auction manager: deactivate auction: %w", err)
	}

	if am.scheduler != nil {
		if err := am.scheduler.CancelSchedule(ctx, auctionID); err != nil {
			am.log.Warn("Failed to cancel scheduled jobs", "auction_id", auctionID, "error", err)
		}
	}

	final := auction.CurrentPrice
	if fresh, err := am.auctionRepo.GetAuction(ctx, auctionID); err == nil {
		final = fresh.CurrentPrice
	}
	am.publish(ctx, &domain.BidEvent{
		Type:      domain.AuctionClosed,
		AuctionID: auctionID,
		Amount:    final,
		Timestamp: am.now().UTC(),
	})
	return nil
}

// CloseExpiredAuctions ends every active auction whose end time has passed
// and returns how many were closed.
func (am *AuctionManager) CloseExpiredAuctions(ctx context.Context) (int, error) {
	active, err := am.auctionRepo.GetActiveAuctions(ctx)
	if err != nil {
		return 0, fmt.Errorf("auction manager: list active auctions: %w", err)
	}

	closed := 0
	var errs []error
	now := am.now()
	for _, auction := range active {
		if !auction.HasEnded(now) {
			continue
		}
		if err := am.EndAuction(ctx, auction.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		closed++
	}
	return closed, errors.Join(errs...)
}

// ReconcileItemPrice re-derives the item's price from its ledger and then
// mirrors it onto the auction. Safe to repeat.
func (am *AuctionManager) ReconcileItemPrice(ctx context.Context, itemID string) (decimal.Decimal, error) {
	unlock, err := am.locker.Lock(ctx, itemID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("auction manager: %w", err)
	}
	item, price, err := am.reconcileLocked(ctx, itemID)
	unlock()
	if err != nil {
		return decimal.Zero, err
	}

	fresh, err := am.itemRepo.GetItem(ctx, itemID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("auction manager: reload item: %w", err)
	}
	if _, err := am.auctionRepo.RaiseCurrentPrice(ctx, item.AuctionID, fresh.CurrentPrice); err != nil {
		return decimal.Zero, fmt.Errorf("auction manager: raise auction price: %w", err)
	}
	return price, nil
}

func (am *AuctionManager) reconcileLocked(ctx context.Context, itemID string) (*domain.Item, decimal.Decimal, error) {
	item, err := am.itemRepo.GetItem(ctx, itemID)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("auction manager: %w", err)
	}

	top, err := am.ledger.TopNByAmount(ctx, itemID, 1)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("auction manager: read highest bid: %w", err)
	}

	price := item.StartingPrice
	if len(top) > 0 && top[0].Amount.GreaterThan(price) {
		price = top[0].Amount
	}
	if price.Equal(item.CurrentPrice) {
		return item, price, nil
	}

	if err := am.itemRepo.SetCurrentPrice(ctx, itemID, price); err != nil {
		return nil, decimal.Zero, fmt.Errorf("auction manager: set item price: %w", err)
	}
	am.log.Warn("Item price repaired from ledger", "item_id", itemID,
		"stored", item.CurrentPrice.String(), "ledger", price.String())
	return item, price, nil
}

// ReconcileAuction reconciles every item of the auction, continuing past
// individual failures.
func (am *AuctionManager) ReconcileAuction(ctx context.Context, auctionID string) error {
	items, err := am.ListItems(ctx, auctionID)
	if err != nil {
		return err
	}

	var errs []error
	for _, item := range items {
		if _, err := am.ReconcileItemPrice(ctx, item.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ReconcileActiveAuctions reconciles every item of every active auction.
func (am *AuctionManager) ReconcileActiveAuctions(ctx context.Context) error {
	active, err := am.auctionRepo.GetActiveAuctions(ctx)
	if err != nil {
		return fmt.Errorf("auction manager: list active auctions: %w", err)
	}

	var errs []error
	for _, auction := range active {
		if err := am.ReconcileAuction(ctx, auction.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (am *AuctionManager) publish(ctx context.Context, event *domain.BidEvent) {
	if am.eventPub == nil {
		return
	}
	if err := am.eventPub.PublishBidEvent(ctx, event); err != nil {
		am.log.Warn("Failed to publish auction event", "type", event.Type, "auction_id", event.AuctionID, "error", err)
	}
}

func (am *AuctionManager) SetScheduler(scheduler domain.AuctionScheduler) {
	am.scheduler = scheduler
}
