package handlers

import (
	"net/http"

	"auction-market/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type BidHandler struct {
	bidService BidService
	log        logger.Logger
}

// PlaceBidRequest accepts amounts as JSON numbers or strings. Omitting
// upper_limit places a plain bid with no proxy.
type PlaceBidRequest struct {
	BidderID   string              `json:"bidder_id"`
	Amount     decimal.Decimal     `json:"amount"`
	UpperLimit decimal.NullDecimal `json:"upper_limit"`
}

func NewBidHandler(bidService BidService, log logger.Logger) *BidHandler {
	return &BidHandler{
		bidService: bidService,
		log:        log,
	}
}

func (h *BidHandler) Register(g *echo.Group) {
	g.POST("/items/:id/bids", h.PlaceBid)
	g.GET("/items/:id/bids", h.ListBids)
	g.GET("/items/:id/winning", h.GetWinningBid)
}

func (h *BidHandler) PlaceBid(c echo.Context) error {
	itemID := c.Param("id")

	var req PlaceBidRequest
	if err := c.Bind(&req); err != nil {
		h.log.Debug("Failed to bind bid request", "item_id", itemID, "error", err)
		return badRequest(c, "invalid request body")
	}

	result, err := h.bidService.PlaceBid(c.Request().Context(), itemID, req.BidderID, req.Amount, req.UpperLimit)
	if err != nil {
		return respondError(c, h.log, err)
	}

	h.log.Info("Bid placed",
		"item_id", itemID,
		"bidder_id", req.BidderID,
		"current_price", result.FinalPrice.String(),
		"bids_written", len(result.Bids))
	return c.JSON(http.StatusCreated, result)
}

func (h *BidHandler) ListBids(c echo.Context) error {
	bids, err := h.bidService.GetBidsByItem(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, bids)
}

func (h *BidHandler) GetWinningBid(c echo.Context) error {
	bid, err := h.bidService.GetWinningBid(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, bid)
}
