package domain

import "time"

// TicketEventType is the kind of ticket event published after commit
type TicketEventType string

const (
	TicketEventSold             TicketEventType = "ticket.sold"
	TicketEventTransferred      TicketEventType = "ticket.transferred"
	TicketEventAdminTransferred TicketEventType = "ticket.admin_transferred"
)

// TicketEvent is the payload of ticket events
type TicketEvent struct {
	EventID    string          `json:"event_id"`
	EventType  TicketEventType `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	OrderID    string          `json:"order_id"`
	SeatSaleID string          `json:"seat_sale_id"`
	UserID     string          `json:"user_id"`
	FromUserID string          `json:"from_user_id,omitempty"`
	TicketIDs  []string        `json:"ticket_ids"`
	Total      int64           `json:"total"`
}

// NewTicketEvent builds an event for an order committed at now
func NewTicketEvent(eventType TicketEventType, eventID string, order *Order, ticketIDs []string, fromUserID string) *TicketEvent {
	return &TicketEvent{
		EventID:    eventID,
		EventType:  eventType,
		OccurredAt: order.OrderedAt,
		OrderID:    order.ID,
		SeatSaleID: order.SeatSaleID,
		UserID:     order.UserID,
		FromUserID: fromUserID,
		TicketIDs:  ticketIDs,
		Total:      order.Total,
	}
}

// Key partitions events by seat sale so one sale's events stay ordered
func (e *TicketEvent) Key() string {
	return e.SeatSaleID
}
