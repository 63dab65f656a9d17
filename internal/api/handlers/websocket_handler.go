package handlers

import (
	"net/http"

	"auction-market/internal/domain"
	"auction-market/internal/infrastructure/websocket"
	"auction-market/pkg/logger"

	"github.com/gorilla/mux"
)

// WebSocketHandlers serves the live bidding socket of the bidding service.
type WebSocketHandlers struct {
	wsHandler *websocket.Handler
}

func NewWebSocketHandlers(bids websocket.BidPlacer, auctions websocket.AuctionReader,
	connManager domain.ConnectionManager, log logger.Logger) *WebSocketHandlers {
	return &WebSocketHandlers{
		wsHandler: websocket.NewHandler(bids, auctions, connManager, log),
	}
}

func (h *WebSocketHandlers) Register(router *mux.Router) {
	router.HandleFunc("/ws/auction/{auctionID}", h.HandleConnection).Methods(http.MethodGet)
}

func (h *WebSocketHandlers) HandleConnection(w http.ResponseWriter, r *http.Request) {
	h.wsHandler.HandleConnection(w, r)
}
