package services

import (
	"context"
	"fmt"

	"auction-market/internal/domain"
	"auction-market/pkg/logger"
)

// EventListener fans committed bid and auction events out to the websocket
// watchers of each auction.
type EventListener struct {
	broadcaster       domain.AuctionBroadcaster
	connectionManager domain.ConnectionManager
	log               logger.Logger
}

func NewEventListener(connectionManager domain.ConnectionManager,
	broadcaster domain.AuctionBroadcaster, log logger.Logger) *EventListener {
	return &EventListener{
		broadcaster:       broadcaster,
		connectionManager: connectionManager,
		log:               log,
	}
}

// Start blocks until ctx is done or the subscription fails.
func (el *EventListener) Start(ctx context.Context, subscriber domain.EventSubscriber) error {
	el.log.Info("Starting event listener")
	return subscriber.SubscribeToBidEvents(ctx, el.HandleEvent)
}

func (el *EventListener) HandleEvent(event *domain.BidEvent) error {
	el.log.Debug("Handling event", "type", event.Type, "auction_id", event.AuctionID, "item_id", event.ItemID)

	switch event.Type {
	case domain.BidAccepted:
		return el.handleBidAccepted(event)
	case domain.AuctionStarted:
		return el.handleAuctionStarted(event)
	case domain.AuctionClosed:
		return el.handleAuctionEnded(event)
	}

	return fmt.Errorf("unknown event type %q", event.Type)
}

func (el *EventListener) handleBidAccepted(event *domain.BidEvent) error {
	return el.broadcaster.BroadcastToAuction(context.Background(), event.AuctionID, map[string]interface{}{
		"type":          "bid_update",
		"item_id":       event.ItemID,
		"bid_id":        event.BidID,
		"bidder_id":     event.UserID,
		"current_price": event.Amount,
		"is_auto_bid":   event.IsAutoBid,
		"timestamp":     event.Timestamp,
	})
}

func (el *EventListener) handleAuctionStarted(event *domain.BidEvent) error {
	return el.broadcaster.BroadcastToAuction(context.Background(), event.AuctionID, map[string]interface{}{
		"type":      "auction_started",
		"timestamp": event.Timestamp,
	})
}

func (el *EventListener) handleAuctionEnded(event *domain.BidEvent) error {
	if err := el.broadcaster.BroadcastToAuction(context.Background(), event.AuctionID, map[string]interface{}{
		"type":          "auction_ended",
		"current_price": event.Amount,
		"timestamp":     event.Timestamp,
	}); err != nil {
		el.log.Error("Failed to broadcast auction ended event", "error", err)
		return err
	}

	if err := el.connectionManager.CloseAndUnregisterConnections(event.AuctionID); err != nil {
		el.log.Error("Failed to finalize connections for auction", "auction_id",
			event.AuctionID, "error", err)
		return err
	}
	return nil
}
