package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/dto"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/service"
	"github.com/prohmpiriya/seat-rush/pkg/logger"
	"go.uber.org/zap"
)

// AdminHandler handles operator HTTP requests. Every call acts on the
// whole unit of the addressed seat.
type AdminHandler struct {
	tickets service.TicketService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(tickets service.TicketService) *AdminHandler {
	return &AdminHandler{tickets: tickets}
}

// StopSelling handles POST /admin/tickets/:id/stop-selling
func (h *AdminHandler) StopSelling(c *gin.Context) {
	ticketID := c.Param("id")
	if err := h.tickets.StopSelling(c.Request.Context(), ticketID); err != nil {
		handleError(c, err)
		return
	}

	logger.Get().InfoContext(c.Request.Context(), "ticket withdrawn from sale", zap.String("ticket_id", ticketID))
	c.JSON(http.StatusOK, dto.StatusResponse{TicketID: ticketID, Status: "not_for_sale"})
}

// ResumeSelling handles POST /admin/tickets/:id/resume-selling
func (h *AdminHandler) ResumeSelling(c *gin.Context) {
	ticketID := c.Param("id")
	if err := h.tickets.ResumeSelling(c.Request.Context(), ticketID); err != nil {
		handleError(c, err)
		return
	}

	logger.Get().InfoContext(c.Request.Context(), "ticket back on sale", zap.String("ticket_id", ticketID))
	c.JSON(http.StatusOK, dto.StatusResponse{TicketID: ticketID, Status: "available"})
}

// AdminTransfer handles POST /admin/tickets/:id/transfer
func (h *AdminHandler) AdminTransfer(c *gin.Context) {
	var req dto.AdminTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ticketID := c.Param("id")
	order, err := h.tickets.AdminTransfer(c.Request.Context(), ticketID, req.UserID)
	if err != nil {
		handleError(c, err)
		return
	}

	logger.Get().InfoContext(c.Request.Context(), "ticket granted by operator",
		zap.String("ticket_id", ticketID),
		zap.String("user_id", req.UserID),
		zap.String("order_id", order.ID),
	)
	c.JSON(http.StatusCreated, dto.OrderFromDomain(order))
}
