package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/domain"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/dto"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/service"
	"github.com/prohmpiriya/seat-rush/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// CartHandler handles cart HTTP requests
type CartHandler struct {
	carts service.CartService
}

// NewCartHandler creates a new cart handler
func NewCartHandler(carts service.CartService) *CartHandler {
	return &CartHandler{carts: carts}
}

// GetCart handles GET /cart
func (h *CartHandler) GetCart(c *gin.Context) {
	user, ok := userID(c)
	if !ok {
		return
	}

	cart, err := h.carts.GetCart(c.Request.Context(), user)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.CartFromDomain(cart))
}

// ReplaceCart handles PUT /cart
// Claims every selected seat or none; the previous cart is released first
func (h *CartHandler) ReplaceCart(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.cart.replace")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	user, ok := userID(c)
	if !ok {
		span.SetStatus(codes.Error, "unauthorized")
		return
	}

	var req dto.ReplaceCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		badRequest(c, err)
		return
	}
	span.SetAttributes(
		attribute.String("user_id", user),
		attribute.Int("selections", len(req.Selections)),
	)

	code, err := h.carts.ReplaceTickets(ctx, user, req.ToInput())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}
	if code != domain.CodeNone {
		span.SetAttributes(attribute.String("error_code", string(code)))
		rejectCode(c, code)
		return
	}

	cart, err := h.carts.GetCart(ctx, user)
	if err != nil {
		handleError(c, err)
		return
	}
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, dto.CartFromDomain(cart))
}

// ClearCart handles DELETE /cart
func (h *CartHandler) ClearCart(c *gin.Context) {
	user, ok := userID(c)
	if !ok {
		return
	}

	if err := h.carts.ClearHoldTickets(c.Request.Context(), user); err != nil {
		handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetPurchaseOrder handles GET /cart/purchase-order
func (h *CartHandler) GetPurchaseOrder(c *gin.Context) {
	user, ok := userID(c)
	if !ok {
		return
	}

	po, err := h.carts.PurchaseOrder(c.Request.Context(), user)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, po)
}
