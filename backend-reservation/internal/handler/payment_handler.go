package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/dto"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/service"
	"github.com/prohmpiriya/seat-rush/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PaymentHandler handles checkout HTTP requests
type PaymentHandler struct {
	checkout service.CheckoutService
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(checkout service.CheckoutService) *PaymentHandler {
	return &PaymentHandler{checkout: checkout}
}

// StartPayment handles POST /payments
func (h *PaymentHandler) StartPayment(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.payment.start")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	user, ok := userID(c)
	if !ok {
		span.SetStatus(codes.Error, "unauthorized")
		return
	}
	span.SetAttributes(attribute.String("user_id", user))

	start, err := h.checkout.StartPayment(ctx, user)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(attribute.String("charge_id", start.Charge.ID))
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusCreated, dto.PaymentStartFromDomain(start))
}

// CapturePayment handles POST /payments/:charge_id/capture
// A repeated capture of the same charge answers 409
func (h *PaymentHandler) CapturePayment(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.payment.capture")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	user, ok := userID(c)
	if !ok {
		span.SetStatus(codes.Error, "unauthorized")
		return
	}
	chargeID := c.Param("charge_id")
	span.SetAttributes(
		attribute.String("user_id", user),
		attribute.String("charge_id", chargeID),
	)

	order, err := h.checkout.CapturePayment(ctx, user, chargeID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(attribute.String("order_id", order.ID))
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusCreated, dto.OrderFromDomain(order))
}

// AbortPayment handles DELETE /payments/:charge_id
func (h *PaymentHandler) AbortPayment(c *gin.Context) {
	user, ok := userID(c)
	if !ok {
		return
	}

	if err := h.checkout.AbortPayment(c.Request.Context(), user, c.Param("charge_id")); err != nil {
		handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
