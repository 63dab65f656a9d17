package redis

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"auction-market/internal/domain"
	"auction-market/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestItemLock_AcquireAndRelease(t *testing.T) {
	mr, client := newClient(t)
	lock := NewItemLock(client, time.Second, 5*time.Millisecond, 200*time.Millisecond, logger.NewNop())

	unlock, err := lock.Lock(context.Background(), "item1")
	require.NoError(t, err)
	require.True(t, mr.Exists("item_lock:item1"))

	unlock()
	unlock()
	require.False(t, mr.Exists("item_lock:item1"))
}

func TestItemLock_Timeout(t *testing.T) {
	_, client := newClient(t)
	lock := NewItemLock(client, time.Second, 5*time.Millisecond, 30*time.Millisecond, logger.NewNop())

	unlock, err := lock.Lock(context.Background(), "item1")
	require.NoError(t, err)
	defer unlock()

	_, err = lock.Lock(context.Background(), "item1")
	require.True(t, errors.Is(err, domain.ErrLockTimeout))

	other, err := lock.Lock(context.Background(), "item2")
	require.NoError(t, err)
	other()
}

func TestItemLock_ContextCancelled(t *testing.T) {
	_, client := newClient(t)
	lock := NewItemLock(client, time.Second, 5*time.Millisecond, time.Minute, logger.NewNop())

	unlock, err := lock.Lock(context.Background(), "item1")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = lock.Lock(ctx, "item1")
	require.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestItemLock_StaleOwnerDoesNotRelease(t *testing.T) {
	mr, client := newClient(t)
	lock := NewItemLock(client, time.Second, 5*time.Millisecond, 200*time.Millisecond, logger.NewNop())

	unlock, err := lock.Lock(context.Background(), "item1")
	require.NoError(t, err)

	// Lock expires and another holder takes it.
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("item_lock:item1", "someone-else"))

	unlock()
	got, err := mr.Get("item_lock:item1")
	require.NoError(t, err)
	require.Equal(t, "someone-else", got)
}

func TestItemLock_LeaseRenewedWhileHeld(t *testing.T) {
	mr, client := newClient(t)
	ttl := 300 * time.Millisecond
	lock := NewItemLock(client, ttl, 5*time.Millisecond, 200*time.Millisecond, logger.NewNop())

	unlock, err := lock.Lock(context.Background(), "item1")
	require.NoError(t, err)

	// Without renewal the next fast-forward would expire the key.
	mr.FastForward(200 * time.Millisecond)
	require.Eventually(t, func() bool {
		return mr.TTL("item_lock:item1") > 200*time.Millisecond
	}, 2*time.Second, 10*time.Millisecond)

	mr.FastForward(200 * time.Millisecond)
	require.True(t, mr.Exists("item_lock:item1"))

	unlock()
	require.False(t, mr.Exists("item_lock:item1"))

	// Renewal stops once released.
	require.NoError(t, mr.Set("item_lock:item1", "someone-else"))
	mr.SetTTL("item_lock:item1", ttl)
	time.Sleep(ttl)
	require.Equal(t, ttl, mr.TTL("item_lock:item1"))
}

func TestItemLock_RenewalStopsWhenOwnershipLost(t *testing.T) {
	mr, client := newClient(t)
	ttl := 300 * time.Millisecond
	lock := NewItemLock(client, ttl, 5*time.Millisecond, 200*time.Millisecond, logger.NewNop())

	unlock, err := lock.Lock(context.Background(), "item1")
	require.NoError(t, err)
	defer unlock()

	mr.FastForward(time.Second)
	require.False(t, mr.Exists("item_lock:item1"))
	require.NoError(t, mr.Set("item_lock:item1", "someone-else"))
	mr.SetTTL("item_lock:item1", time.Minute)

	time.Sleep(ttl)
	require.Equal(t, time.Minute, mr.TTL("item_lock:item1"))
}

func TestItemLock_MutualExclusion(t *testing.T) {
	_, client := newClient(t)
	lock := NewItemLock(client, time.Second, time.Millisecond, 5*time.Second, logger.NewNop())

	var inside, violations int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := lock.Lock(context.Background(), "item1")
			if err != nil {
				atomic.AddInt32(&violations, 1)
				return
			}
			if atomic.AddInt32(&inside, 1) > 1 {
				atomic.AddInt32(&violations, 1)
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()
	require.Zero(t, violations)
}

func TestEventPubSub_RoundTrip(t *testing.T) {
	_, client := newClient(t)
	pub := NewEventPublisher(client, "test_events")
	sub := NewRedisEventSubscriber(client, "test_events", logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *domain.BidEvent, 4)
	done := make(chan error, 1)
	go func() {
		done <- sub.SubscribeToBidEvents(ctx, func(event *domain.BidEvent) error {
			select {
			case received <- event:
			default:
			}
			return nil
		})
	}()

	sent := &domain.BidEvent{
		Type:      domain.BidAccepted,
		AuctionID: "auction1",
		ItemID:    "item1",
		BidID:     "bid1",
		UserID:    "A",
		Amount:    decimal.RequireFromString("210.50"),
		IsAutoBid: true,
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	// Publish until the subscription is live.
	var got *domain.BidEvent
	require.Eventually(t, func() bool {
		if err := pub.PublishBidEvent(context.Background(), sent); err != nil {
			return false
		}
		select {
		case got = <-received:
			return true
		case <-time.After(10 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)

	require.Equal(t, sent.Type, got.Type)
	require.Equal(t, "item1", got.ItemID)
	require.True(t, got.Amount.Equal(sent.Amount))
	require.True(t, got.IsAutoBid)
	require.True(t, got.Timestamp.Equal(sent.Timestamp))

	cancel()
	select {
	case err := <-done:
		require.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop")
	}
}

func TestParseEvent(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{name: "valid", payload: `{"type":"auction_ended","auction_id":"a1","amount":"12.5","timestamp":"2026-03-01T12:00:00Z"}`},
		{name: "not_json", payload: `a1:bid_accepted:u1:10.00:1700000000`, wantErr: true},
		{name: "missing_type", payload: `{"auction_id":"a1"}`, wantErr: true},
		{name: "missing_auction", payload: `{"type":"bid_accepted"}`, wantErr: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			event, err := parseEvent(tc.payload)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, domain.AuctionClosed, event.Type)
			require.True(t, event.Amount.Equal(decimal.RequireFromString("12.5")))
		})
	}
}
