package memory

import (
	"auction-market/internal/domain"
	"auction-market/pkg/logger"
	"context"
	"sync"
)

const subscriberBuffer = 256

// EventBus is an in-process stand-in for the Redis event channel, used when
// both services run against the memory driver.
type EventBus struct {
	mu     sync.RWMutex
	subs   map[int]chan *domain.BidEvent
	nextID int
	log    logger.Logger
}

func NewEventBus(log logger.Logger) *EventBus {
	return &EventBus{
		subs: make(map[int]chan *domain.BidEvent),
		log:  log,
	}
}

// PublishBidEvent never blocks; a subscriber whose buffer is full misses the event.
func (b *EventBus) PublishBidEvent(_ context.Context, event *domain.BidEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.log.Warn("Dropping event for slow subscriber", "subscriber", id, "type", event.Type)
		}
	}
	return nil
}

// SubscribeToBidEvents delivers events to handler until ctx is done.
func (b *EventBus) SubscribeToBidEvents(ctx context.Context, handler domain.EventHandler) error {
	ch := make(chan *domain.BidEvent, subscriberBuffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}()

	for {
		select {
		case event := <-ch:
			if err := handler(event); err != nil {
				b.log.Error("Failed to handle event", "type", event.Type, "auction_id", event.AuctionID, "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (b *EventBus) subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
