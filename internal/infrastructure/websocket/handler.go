package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"auction-market/internal/domain"
	"auction-market/pkg/logger"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	bidTimeout     = 10 * time.Second
	maxMessageSize = 4096
	internalErrMsg = "something went wrong, please try again"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// BidPlacer is the slice of the bid service the socket needs.
type BidPlacer interface {
	PlaceBid(ctx context.Context, itemID, bidderID string, amount decimal.Decimal, upperLimit decimal.NullDecimal) (*domain.BidResult, error)
}

// AuctionReader resolves the socket's auction and the items bid on through it.
type AuctionReader interface {
	GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error)
	GetItem(ctx context.Context, itemID string) (*domain.Item, error)
}

type clientMessage struct {
	Type       string `json:"type"`
	ItemID     string `json:"item_id"`
	Amount     string `json:"amount"`
	UpperLimit string `json:"upper_limit"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type bidResultMessage struct {
	Type         string          `json:"type"`
	ItemID       string          `json:"item_id"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	Bids         []*domain.Bid   `json:"bids"`
}

type Handler struct {
	bids        BidPlacer
	auctions    AuctionReader
	connManager domain.ConnectionManager
	now         func() time.Time
	log         logger.Logger
}

func NewHandler(bids BidPlacer, auctions AuctionReader,
	connManager domain.ConnectionManager, log logger.Logger) *Handler {
	return &Handler{
		bids:        bids,
		auctions:    auctions,
		connManager: connManager,
		now:         time.Now,
		log:         log,
	}
}

// HandleConnection upgrades GET /ws/auction/{auctionID}?user_id=... for an
// auction that has not ended.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	auctionID := mux.Vars(r)["auctionID"]

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id required", http.StatusBadRequest)
		return
	}

	auction, err := h.auctions.GetAuction(r.Context(), auctionID)
	if errors.Is(err, domain.ErrAuctionNotFound) {
		http.Error(w, "auction not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error("Failed to load auction", "auction_id", auctionID, "error", err)
		http.Error(w, internalErrMsg, http.StatusInternalServerError)
		return
	}
	if auction.Status(h.now()) == domain.AuctionEnded {
		h.log.Info("Rejected connection - auction has ended", "auction_id", auctionID)
		http.Error(w, "auction has already ended", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	wsConn := NewConnection(conn, userID, auctionID, h.log)
	if err := h.connManager.RegisterConnection(userID, auctionID, wsConn); err != nil {
		h.log.Error("Failed to register connection", "error", err)
		wsConn.Close()
		return
	}

	go h.handleMessages(wsConn)
}

func (h *Handler) handleMessages(conn *Connection) {
	defer func() {
		h.connManager.UnregisterConnection(conn.UserID(), conn.AuctionID())
		conn.Close()
	}()

	conn.conn.SetReadLimit(maxMessageSize)

	for {
		var msg clientMessage
		if err := conn.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Warn("Websocket read failed", "user_id", conn.UserID(), "error", err)
			}
			return
		}

		switch msg.Type {
		case "place_bid":
			h.handleBidMessage(conn, msg)
		case "ping":
			h.send(conn, map[string]string{"type": "pong"})
		default:
			h.send(conn, errorMessage{Type: "error", Code: domain.CodeInvalidBid, Message: "unknown message type"})
		}
	}
}

func (h *Handler) handleBidMessage(conn *Connection, msg clientMessage) {
	amount, err := decimal.NewFromString(msg.Amount)
	if err != nil {
		h.send(conn, errorMessage{Type: "error", Code: domain.CodeInvalidBid, Message: "invalid amount format"})
		return
	}

	var upperLimit decimal.NullDecimal
	if msg.UpperLimit != "" {
		limit, err := decimal.NewFromString(msg.UpperLimit)
		if err != nil {
			h.send(conn, errorMessage{Type: "error", Code: domain.CodeInvalidBid, Message: "invalid upper_limit format"})
			return
		}
		upperLimit = decimal.NewNullDecimal(limit)
	}

	ctx, cancel := context.WithTimeout(context.Background(), bidTimeout)
	defer cancel()

	item, err := h.auctions.GetItem(ctx, msg.ItemID)
	if err != nil {
		h.sendError(conn, msg.ItemID, err)
		return
	}
	// A socket only bids on items of the auction it joined.
	if item.AuctionID != conn.AuctionID() {
		h.send(conn, errorMessage{
			Type:    "error",
			Code:    domain.CodeItemNotFound,
			Message: fmt.Sprintf("item %s is not part of auction %s", msg.ItemID, conn.AuctionID()),
		})
		return
	}

	result, err := h.bids.PlaceBid(ctx, msg.ItemID, conn.UserID(), amount, upperLimit)
	if err != nil {
		h.sendError(conn, msg.ItemID, err)
		return
	}

	h.send(conn, bidResultMessage{
		Type:         "bid_result",
		ItemID:       result.ItemID,
		CurrentPrice: result.FinalPrice,
		Bids:         result.Bids,
	})
}

func (h *Handler) sendError(conn *Connection, itemID string, err error) {
	code := domain.ErrorCode(err)
	message := err.Error()
	if code == domain.CodeInternal {
		h.log.Error("Failed to place bid", "item_id", itemID, "user_id", conn.UserID(), "error", err)
		message = internalErrMsg
	}
	h.send(conn, errorMessage{Type: "error", Code: code, Message: message})
}

func (h *Handler) send(conn *Connection, message interface{}) {
	if err := conn.Send(message); err != nil {
		h.log.Error("Failed to send message", "user_id", conn.UserID(), "error", err)
	}
}
