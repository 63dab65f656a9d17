package leader

import (
	"auction-market/pkg/logger"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

const DefaultKey = "auction_leader"

const (
	releaseScript = `
        if redis.call("GET", KEYS[1]) == ARGV[1] then
            return redis.call("DEL", KEYS[1])
        else
            return 0
        end
    `
	extendScript = `
        if redis.call("GET", KEYS[1]) == ARGV[1] then
            return redis.call("PEXPIRE", KEYS[1], ARGV[2])
        else
            return 0
        end
    `
)

// RedisLeaderElection elects one scheduler instance across the fleet. The
// leader key carries a TTL that a background heartbeat keeps extending.
type RedisLeaderElection struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	log    logger.Logger

	mu        sync.Mutex
	heartbeat map[string]context.CancelFunc
}

func NewRedisLeaderElection(client *redis.Client, ttl time.Duration, log logger.Logger) *RedisLeaderElection {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLeaderElection{
		client:    client,
		key:       DefaultKey,
		ttl:       ttl,
		log:       log,
		heartbeat: make(map[string]context.CancelFunc),
	}
}

func (r *RedisLeaderElection) BecomeLeader(ctx context.Context, instanceID string) (bool, error) {
	acquired, err := r.client.SetNX(ctx, r.key, instanceID, r.ttl).Result()
	if err != nil {
		return false, err
	}

	if !acquired {
		// Already ours from an earlier call.
		return r.IsLeader(ctx, instanceID)
	}

	r.startHeartbeat(instanceID)
	r.log.Info("Acquired leadership", "instance_id", instanceID)
	return true, nil
}

func (r *RedisLeaderElection) IsLeader(ctx context.Context, instanceID string) (bool, error) {
	currentLeader, err := r.client.Get(ctx, r.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}

	return currentLeader == instanceID, nil
}

func (r *RedisLeaderElection) ReleaseLeadership(ctx context.Context, instanceID string) error {
	r.stopHeartbeat(instanceID)
	return r.client.Eval(ctx, releaseScript, []string{r.key}, instanceID).Err()
}

func (r *RedisLeaderElection) startHeartbeat(instanceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, running := r.heartbeat[instanceID]; running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.heartbeat[instanceID] = cancel
	go r.maintainLeadership(ctx, instanceID)
}

func (r *RedisLeaderElection) stopHeartbeat(instanceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cancel, ok := r.heartbeat[instanceID]; ok {
		cancel()
		delete(r.heartbeat, instanceID)
	}
}

func (r *RedisLeaderElection) maintainLeadership(ctx context.Context, instanceID string) {
	ticker := time.NewTicker(r.ttl / 3) // Refresh at 1/3 of TTL
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		extended, err := r.client.Eval(callCtx, extendScript, []string{r.key},
			instanceID, r.ttl.Milliseconds()).Int64()
		cancel()

		if err != nil || extended == 0 {
			r.log.Warn("Lost leadership", "instance_id", instanceID, "error", err)
			r.stopHeartbeat(instanceID)
			return
		}
	}
}
