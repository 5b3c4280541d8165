package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/domain"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/dto"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/gateway"
	"github.com/prohmpiriya/seat-rush/pkg/logger"
	"go.uber.org/zap"
)

// userID returns the caller set by middleware.UserID, answering 401 when absent
func userID(c *gin.Context) (string, bool) {
	id := c.GetString("user_id")
	if id == "" {
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error: "unauthorized",
			Code:  "UNAUTHORIZED",
		})
		return "", false
	}
	return id, true
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{
		Error:   "invalid request",
		Code:    "INVALID_REQUEST",
		Message: err.Error(),
	})
}

// rejectCode answers a business rejection from the cart validator
func rejectCode(c *gin.Context, code domain.ErrorCode) {
	c.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{
		Error: "selection rejected",
		Code:  strings.ToUpper(string(code)),
	})
}

// handleError converts domain errors to HTTP responses
func handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "EMPTY_CART",
		})
	case errors.Is(err, gateway.ErrChargeNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "CHARGE_NOT_FOUND",
		})
	case domain.IsNotFoundError(err):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "NOT_FOUND",
		})
	case errors.Is(err, domain.ErrChargeMismatch):
		c.JSON(http.StatusForbidden, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "CHARGE_MISMATCH",
		})
	case domain.IsForbiddenError(err):
		c.JSON(http.StatusForbidden, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "FORBIDDEN",
		})
	case errors.Is(err, domain.ErrHoldLost):
		c.JSON(http.StatusGone, dto.ErrorResponse{
			Error:   err.Error(),
			Code:    "HOLD_LOST",
			Message: "Seat hold expired. Please select your seats again.",
		})
	case domain.IsExpiredError(err):
		c.JSON(http.StatusGone, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "EXPIRED",
		})
	case errors.Is(err, gateway.ErrChargeDeclined):
		c.JSON(http.StatusPaymentRequired, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "PAYMENT_DECLINED",
		})
	case errors.Is(err, domain.ErrDuplicateCapture):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "DUPLICATE_CAPTURE",
		})
	case errors.Is(err, domain.ErrTicketReserved):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "TICKET_RESERVED",
		})
	case errors.Is(err, domain.ErrChargeNotStarted):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "PAYMENT_NOT_STARTED",
		})
	case domain.IsConflictError(err):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "CONFLICT",
		})
	default:
		logger.Get().ErrorContext(c.Request.Context(), "request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error: "internal server error",
			Code:  "INTERNAL_ERROR",
		})
	}
}
