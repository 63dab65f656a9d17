package handlers

import (
	"net/http"

	"auction-market/internal/domain"
	"auction-market/pkg/logger"

	"github.com/labstack/echo/v4"
)

const (
	codeInvalidRequest = "INVALID_REQUEST"
	internalMessage    = "something went wrong, please try again"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var statusByCode = map[string]int{
	domain.CodeItemNotFound:    http.StatusNotFound,
	domain.CodeAuctionNotFound: http.StatusNotFound,
	domain.CodeNoBids:          http.StatusNotFound,
	domain.CodeInvalidBid:      http.StatusBadRequest,
	domain.CodeInvalidAuction:  http.StatusBadRequest,
	domain.CodeBidTooLow:       http.StatusBadRequest,
	domain.CodeAuctionClosed:   http.StatusBadRequest,
}

// respondError writes err as an ErrorResponse. Internal failures are logged
// and their detail withheld from the caller.
func respondError(c echo.Context, log logger.Logger, err error) error {
	code := domain.ErrorCode(err)
	status, ok := statusByCode[code]
	if !ok {
		log.Error("Request failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Code: domain.CodeInternal, Message: internalMessage})
	}
	return c.JSON(status, ErrorResponse{Code: code, Message: err.Error()})
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Code: codeInvalidRequest, Message: message})
}
