package websocket

import (
	"auction-market/internal/domain"
	"context"
)

// Notifier adapts a ConnectionManager to the context-aware notification
// interfaces the services depend on.
type Notifier struct {
	connManager domain.ConnectionManager
}

func NewNotifier(connManager domain.ConnectionManager) *Notifier {
	return &Notifier{connManager: connManager}
}

func (n *Notifier) NotifyUser(ctx context.Context, userID string, message interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return n.connManager.NotifyUser(userID, message)
}

func (n *Notifier) BroadcastToAuction(ctx context.Context, auctionID string, message interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return n.connManager.BroadcastToAuction(auctionID, message)
}
