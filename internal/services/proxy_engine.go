package services

import (
	"auction-market/internal/domain"
	"auction-market/pkg/logger"
	"auction-market/pkg/utils"
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const DefaultMaxResolutionRounds = 10000

// ProxyEngine advances auto-bids on an item until neither of the two leading
// bidders can or will respond. It must run inside the item's lock.
type ProxyEngine struct {
	items     domain.ItemRepository
	ledger    domain.BidLedger
	maxRounds int
	now       func() time.Time
	log       logger.Logger
}

func NewProxyEngine(items domain.ItemRepository, ledger domain.BidLedger, maxRounds int, log logger.Logger) *ProxyEngine {
	if maxRounds <= 0 {
		maxRounds = DefaultMaxResolutionRounds
	}
	return &ProxyEngine{
		items:     items,
		ledger:    ledger,
		maxRounds: maxRounds,
		now:       time.Now,
		log:       log,
	}
}

// Resolve runs proxy bidding for item, whose current price must be the one
// just written by the caller. It returns the auto-bids it committed and the
// resulting item price.
//
// On failure the returned bids and price still reflect everything committed
// before the error, and the error is a *domain.ResolutionError.
func (e *ProxyEngine) Resolve(ctx context.Context, item *domain.Item, auction *domain.Auction) ([]*domain.Bid, decimal.Decimal, error) {
	var autoBids []*domain.Bid
	price := item.CurrentPrice

	fail := func(err error) ([]*domain.Bid, decimal.Decimal, error) {
		return autoBids, price, &domain.ResolutionError{
			ItemID:    item.ID,
			LastPrice: price,
			Rounds:    len(autoBids),
			Err:       err,
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		top, err := e.ledger.TopNByAmount(ctx, item.ID, 2)
		if err != nil {
			return fail(fmt.Errorf("read leading bids: %w", err))
		}

		next, challenger, ok := nextAutoBid(top, auction.Increment)
		if !ok {
			return autoBids, price, nil
		}
		if len(autoBids) >= e.maxRounds {
			return fail(domain.ErrResolutionLimit)
		}

		bid := &domain.Bid{
			ID:         utils.GenerateID("bid"),
			ItemID:     item.ID,
			BidderID:   challenger.BidderID,
			Amount:     next,
			UpperLimit: challenger.UpperLimit,
			IsAutoBid:  true,
			CreatedAt:  e.now().UTC(),
		}
		if err := e.ledger.Append(ctx, bid); err != nil {
			return fail(fmt.Errorf("append auto-bid: %w", err))
		}
		autoBids = append(autoBids, bid)

		if err := e.items.SetCurrentPrice(ctx, item.ID, next); err != nil {
			return fail(fmt.Errorf("set item price: %w", err))
		}
		price = next

		e.log.Debug("Auto-bid placed",
			"item_id", item.ID, "bidder_id", bid.BidderID, "amount", next.String(), "round", len(autoBids))
	}
}

// nextAutoBid decides whether the runner-up responds to the leader. It only
// ever looks at the two highest bids; ties on amount are never auto-broken.
func nextAutoBid(top []*domain.Bid, increment decimal.Decimal) (decimal.Decimal, *domain.Bid, bool) {
	if len(top) < 2 {
		return decimal.Zero, nil, false
	}
	winner, challenger := top[0], top[1]

	if challenger.BidderID == winner.BidderID {
		return decimal.Zero, nil, false
	}
	if !challenger.HasProxyHeadroomOver(winner.Amount) {
		return decimal.Zero, nil, false
	}

	next := decimal.Min(winner.Amount.Add(increment), challenger.UpperLimit.Decimal)
	if !next.GreaterThan(winner.Amount) {
		return decimal.Zero, nil, false
	}
	return next, challenger, true
}
