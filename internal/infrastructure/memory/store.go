package memory

import (
	"auction-market/internal/domain"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Store is a concurrency-safe in-memory backing for auctions, items and the
// bid ledger. The repositories it hands out share its state.
type Store struct {
	mu       sync.RWMutex
	auctions map[string]domain.Auction
	items    map[string]domain.Item
	bids     map[string][]domain.Bid // key: itemID -> bids in append order
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{
		auctions: make(map[string]domain.Auction),
		items:    make(map[string]domain.Item),
		bids:     make(map[string][]domain.Bid),
		now:      time.Now,
	}
}

func (s *Store) Auctions() *AuctionRepo { return &AuctionRepo{s: s} }
func (s *Store) Items() *ItemRepo       { return &ItemRepo{s: s} }
func (s *Store) Ledger() *BidLedger     { return &BidLedger{s: s} }

// AuctionRepo implements domain.AuctionRepository.
type AuctionRepo struct {
	s *Store
}

func (r *AuctionRepo) CreateAuction(_ context.Context, auction *domain.Auction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.auctions[auction.ID]; ok {
		return fmt.Errorf("create auction %s: already exists", auction.ID)
	}
	r.s.auctions[auction.ID] = *auction
	return nil
}

func (r *AuctionRepo) GetAuction(_ context.Context, auctionID string) (*domain.Auction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.auctions[auctionID]
	if !ok {
		return nil, fmt.Errorf("get auction %s: %w", auctionID, domain.ErrAuctionNotFound)
	}
	return &a, nil
}

func (r *AuctionRepo) SetActive(_ context.Context, auctionID string, active bool) error {
	return r.update(auctionID, func(a *domain.Auction) bool {
		a.IsActive = active
		return true
	})
}

func (r *AuctionRepo) SetCurrentPrice(_ context.Context, auctionID string, price decimal.Decimal) error {
	return r.update(auctionID, func(a *domain.Auction) bool {
		a.CurrentPrice = price
		return true
	})
}

func (r *AuctionRepo) RaiseCurrentPrice(_ context.Context, auctionID string, price decimal.Decimal) (bool, error) {
	raised := false
	err := r.update(auctionID, func(a *domain.Auction) bool {
		if !price.GreaterThan(a.CurrentPrice) {
			return false
		}
		a.CurrentPrice = price
		raised = true
		return true
	})
	return raised, err
}

func (r *AuctionRepo) GetActiveAuctions(_ context.Context) ([]*domain.Auction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*domain.Auction
	for _, a := range r.s.auctions {
		if a.IsActive {
			a := a
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *AuctionRepo) update(auctionID string, fn func(a *domain.Auction) bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.auctions[auctionID]
	if !ok {
		return fmt.Errorf("update auction %s: %w", auctionID, domain.ErrAuctionNotFound)
	}
	if fn(&a) {
		a.UpdatedAt = r.s.now().UTC()
		r.s.auctions[auctionID] = a
	}
	return nil
}

// ItemRepo implements domain.ItemRepository.
type ItemRepo struct {
	s *Store
}

func (r *ItemRepo) CreateItem(_ context.Context, item *domain.Item) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.auctions[item.AuctionID]; !ok {
		return fmt.Errorf("create item %s: %w", item.ID, domain.ErrAuctionNotFound)
	}
	if _, ok := r.s.items[item.ID]; ok {
		return fmt.Errorf("create item %s: already exists", item.ID)
	}
	r.s.items[item.ID] = *item
	return nil
}

func (r *ItemRepo) GetItem(_ context.Context, itemID string) (*domain.Item, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	item, ok := r.s.items[itemID]
	if !ok {
		return nil, fmt.Errorf("get item %s: %w", itemID, domain.ErrItemNotFound)
	}
	return &item, nil
}

func (r *ItemRepo) SetCurrentPrice(_ context.Context, itemID string, price decimal.Decimal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	item, ok := r.s.items[itemID]
	if !ok {
		return fmt.Errorf("set price for item %s: %w", itemID, domain.ErrItemNotFound)
	}
	item.CurrentPrice = price
	item.UpdatedAt = r.s.now().UTC()
	r.s.items[itemID] = item
	return nil
}

func (r *ItemRepo) ListItemsByAuction(_ context.Context, auctionID string) ([]*domain.Item, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*domain.Item
	for _, item := range r.s.items {
		if item.AuctionID == auctionID {
			item := item
			out = append(out, &item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// BidLedger implements domain.BidLedger. Bids are kept in append order; amount
// ties rank the earlier bid first.
type BidLedger struct {
	s *Store
}

func (l *BidLedger) Append(_ context.Context, bid *domain.Bid) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	if _, ok := l.s.items[bid.ItemID]; !ok {
		return fmt.Errorf("record bid for item %s: %w", bid.ItemID, domain.ErrItemNotFound)
	}
	l.s.bids[bid.ItemID] = append(l.s.bids[bid.ItemID], *bid)
	return nil
}

func (l *BidLedger) TopNByAmount(_ context.Context, itemID string, n int) ([]*domain.Bid, error) {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()

	bids := copyBids(l.s.bids[itemID])
	sort.SliceStable(bids, func(i, j int) bool { return bids[i].Amount.GreaterThan(bids[j].Amount) })
	if n >= 0 && len(bids) > n {
		bids = bids[:n]
	}
	return bids, nil
}

func (l *BidLedger) ListByItem(_ context.Context, itemID string) ([]*domain.Bid, error) {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()

	return copyBids(l.s.bids[itemID]), nil
}

func copyBids(src []domain.Bid) []*domain.Bid {
	out := make([]*domain.Bid, 0, len(src))
	for i := range src {
		b := src[i]
		out = append(out, &b)
	}
	return out
}
