package redis

import (
	"auction-market/internal/domain"
	"auction-market/pkg/logger"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const releaseScript = `
    if redis.call("GET", KEYS[1]) == ARGV[1] then
        return redis.call("DEL", KEYS[1])
    else
        return 0
    end
`

const extendScript = `
    if redis.call("GET", KEYS[1]) == ARGV[1] then
        return redis.call("PEXPIRE", KEYS[1], ARGV[2])
    else
        return 0
    end
`

// ItemLock is a per-item lock shared by every instance using the same Redis.
// Each holder writes a random token so a lock that expired and was taken by
// someone else is never released by the previous owner. While held, the
// lease is extended every ttl/3 so a long resolution does not outlive it.
type ItemLock struct {
	client        *redis.Client
	ttl           time.Duration
	retryInterval time.Duration
	waitTimeout   time.Duration
	log           logger.Logger
}

func NewItemLock(client *redis.Client, ttl, retryInterval, waitTimeout time.Duration, log logger.Logger) *ItemLock {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if retryInterval <= 0 {
		retryInterval = 25 * time.Millisecond
	}
	if waitTimeout <= 0 {
		waitTimeout = 5 * time.Second
	}
	return &ItemLock{
		client:        client,
		ttl:           ttl,
		retryInterval: retryInterval,
		waitTimeout:   waitTimeout,
		log:           log,
	}
}

func lockKey(itemID string) string {
	return fmt.Sprintf("item_lock:%s", itemID)
}

// Lock polls until the lock is taken, ctx is done, or the wait timeout passes.
func (l *ItemLock) Lock(ctx context.Context, itemID string) (func(), error) {
	key := lockKey(itemID)
	token := uuid.NewString()
	deadline := time.Now().Add(l.waitTimeout)

	ticker := time.NewTicker(l.retryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("lock item %s: %w", itemID, ctx.Err())
			}
			return nil, fmt.Errorf("lock item %s: %w", itemID, err)
		}
		if ok {
			stop := l.watch(key, token)
			return l.unlocker(key, token, stop), nil
		}
		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("lock item %s: %w", itemID, domain.ErrLockTimeout)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, fmt.Errorf("lock item %s: %w", itemID, ctx.Err())
		}
	}
}

// watch extends the lease until the returned stop func is called or the
// token no longer owns the key. stop waits for the renewal goroutine to exit.
func (l *ItemLock) watch(key, token string) func() {
	interval := l.ttl / 3
	if interval <= 0 {
		interval = l.ttl
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			callCtx, callCancel := context.WithTimeout(ctx, interval)
			extended, err := l.client.Eval(callCtx, extendScript, []string{key}, token, l.ttl.Milliseconds()).Int64()
			callCancel()
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				l.log.Warn("Failed to extend item lock", "key", key, "error", err)
				continue
			}
			if extended == 0 {
				l.log.Warn("Item lock lost before release", "key", key)
				return
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (l *ItemLock) unlocker(key, token string, stop func()) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			stop()

			// The caller's context may already be cancelled; release anyway.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := l.client.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
				l.log.Error("Failed to release item lock", "key", key, "error", err)
			}
		})
	}
}
