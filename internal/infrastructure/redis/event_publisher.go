package redis

import (
	"auction-market/internal/domain"
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// DefaultChannel is used when no channel is configured.
const DefaultChannel = "auction_events"

type EventPublisherImpl struct {
	client  *redis.Client
	channel string
}

func NewEventPublisher(client *redis.Client, channel string) *EventPublisherImpl {
	if channel == "" {
		channel = DefaultChannel
	}
	return &EventPublisherImpl{client: client, channel: channel}
}

func (r *EventPublisherImpl) PublishBidEvent(ctx context.Context, event *domain.BidEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Type, err)
	}
	return r.client.Publish(ctx, r.channel, payload).Err()
}
