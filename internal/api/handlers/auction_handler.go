package handlers

import (
	"net/http"
	"time"

	"auction-market/internal/domain"
	"auction-market/internal/services"
	"auction-market/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type AuctionHandler struct {
	auctionService AuctionService
	now            func() time.Time
	log            logger.Logger
}

type CreateAuctionRequest struct {
	SellerID      string              `json:"seller_id"`
	Title         string              `json:"title"`
	StartingPrice decimal.Decimal     `json:"starting_price"`
	MinPrice      decimal.Decimal     `json:"min_price"`
	Increment     decimal.NullDecimal `json:"increment"`
	StartTime     time.Time           `json:"start_time"`
	EndTime       time.Time           `json:"end_time"`
}

type AddItemRequest struct {
	Name          string              `json:"name"`
	Description   string              `json:"description"`
	StartingPrice decimal.NullDecimal `json:"starting_price"`
}

type AuctionResponse struct {
	*domain.Auction
	Status string         `json:"status"`
	Items  []*domain.Item `json:"items,omitempty"`
}

type ReconcileResponse struct {
	ItemID       string          `json:"item_id"`
	CurrentPrice decimal.Decimal `json:"current_price"`
}

func NewAuctionHandler(auctionService AuctionService, log logger.Logger) *AuctionHandler {
	return &AuctionHandler{
		auctionService: auctionService,
		now:            time.Now,
		log:            log,
	}
}

func (h *AuctionHandler) Register(g *echo.Group) {
	g.POST("/auctions", h.CreateAuction)
	g.GET("/auctions/:id", h.GetAuction)
	g.POST("/auctions/:id/items", h.AddItem)
	g.POST("/auctions/:id/close", h.CloseAuction)
	g.GET("/items/:id", h.GetItem)
	g.POST("/items/:id/reconcile", h.ReconcileItem)
}

func (h *AuctionHandler) CreateAuction(c echo.Context) error {
	var req CreateAuctionRequest
	if err := c.Bind(&req); err != nil {
		h.log.Debug("Failed to bind auction request", "error", err)
		return badRequest(c, "invalid request body")
	}

	auction, err := h.auctionService.CreateAuction(c.Request().Context(), services.NewAuction{
		SellerID:      req.SellerID,
		Title:         req.Title,
		StartingPrice: req.StartingPrice,
		MinPrice:      req.MinPrice,
		Increment:     req.Increment,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}

	h.log.Info("Auction created", "auction_id", auction.ID, "seller_id", auction.SellerID)
	return c.JSON(http.StatusCreated, h.auctionResponse(auction, nil))
}

func (h *AuctionHandler) GetAuction(c echo.Context) error {
	ctx := c.Request().Context()
	auctionID := c.Param("id")

	auction, err := h.auctionService.GetAuction(ctx, auctionID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	items, err := h.auctionService.ListItems(ctx, auctionID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, h.auctionResponse(auction, items))
}

func (h *AuctionHandler) AddItem(c echo.Context) error {
	var req AddItemRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	item, err := h.auctionService.AddItem(c.Request().Context(), c.Param("id"), services.NewItem{
		Name:          req.Name,
		Description:   req.Description,
		StartingPrice: req.StartingPrice,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, item)
}

func (h *AuctionHandler) CloseAuction(c echo.Context) error {
	ctx := c.Request().Context()
	auctionID := c.Param("id")

	if err := h.auctionService.CloseAuction(ctx, auctionID); err != nil {
		return respondError(c, h.log, err)
	}
	auction, err := h.auctionService.GetAuction(ctx, auctionID)
	if err != nil {
		return respondError(c, h.log, err)
	}

	h.log.Info("Auction closed", "auction_id", auctionID, "current_price", auction.CurrentPrice.String())
	return c.JSON(http.StatusOK, h.auctionResponse(auction, nil))
}

func (h *AuctionHandler) GetItem(c echo.Context) error {
	item, err := h.auctionService.GetItem(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *AuctionHandler) ReconcileItem(c echo.Context) error {
	itemID := c.Param("id")
	price, err := h.auctionService.ReconcileItemPrice(c.Request().Context(), itemID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, ReconcileResponse{ItemID: itemID, CurrentPrice: price})
}

func (h *AuctionHandler) auctionResponse(auction *domain.Auction, items []*domain.Item) AuctionResponse {
	return AuctionResponse{
		Auction: auction,
		Status:  auction.Status(h.now()).String(),
		Items:   items,
	}
}
