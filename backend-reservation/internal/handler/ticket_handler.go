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

// TicketHandler handles ticket and transfer HTTP requests
type TicketHandler struct {
	tickets service.TicketService
}

// NewTicketHandler creates a new ticket handler
func NewTicketHandler(tickets service.TicketService) *TicketHandler {
	return &TicketHandler{tickets: tickets}
}

// GetTicket handles GET /tickets/:id
func (h *TicketHandler) GetTicket(c *gin.Context) {
	user, ok := userID(c)
	if !ok {
		return
	}

	t, err := h.tickets.GetTicket(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.TicketFromDomain(t, user))
}

// OfferTransfer handles POST /tickets/:id/transfer
func (h *TicketHandler) OfferTransfer(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.ticket.offer_transfer")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	user, ok := userID(c)
	if !ok {
		span.SetStatus(codes.Error, "unauthorized")
		return
	}
	ticketID := c.Param("id")
	span.SetAttributes(attribute.String("ticket_id", ticketID))

	token, err := h.tickets.OfferTransfer(ctx, user, ticketID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusCreated, dto.OfferTransferResponse{
		TicketID:      ticketID,
		TransferToken: token,
	})
}

// CancelTransfer handles DELETE /tickets/:id/transfer
func (h *TicketHandler) CancelTransfer(c *gin.Context) {
	user, ok := userID(c)
	if !ok {
		return
	}

	if err := h.tickets.CancelTransfer(c.Request.Context(), user, c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ReceiveTransfer handles POST /transfers/:token/receive
func (h *TicketHandler) ReceiveTransfer(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.ticket.receive_transfer")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	user, ok := userID(c)
	if !ok {
		span.SetStatus(codes.Error, "unauthorized")
		return
	}

	order, err := h.tickets.ReceiveTransfer(ctx, user, c.Param("token"))
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
