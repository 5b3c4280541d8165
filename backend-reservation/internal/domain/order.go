package domain

import "time"

// OrderKind tells how tickets changed hands
type OrderKind string

const (
	OrderPurchase      OrderKind = "purchase"
	OrderTransfer      OrderKind = "transfer"
	OrderAdminTransfer OrderKind = "admin_transfer"
)

// Order is the durable record of one purchase or transfer
type Order struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	Kind             OrderKind `json:"kind"`
	SeatSaleID       string    `json:"seat_sale_id"`
	Subtotal         int64     `json:"subtotal"`
	CouponDiscount   int64     `json:"coupon_discount"`
	CampaignDiscount int64     `json:"campaign_discount"`
	Total            int64     `json:"total"`
	ChargeID         string    `json:"charge_id,omitempty"`
	CouponID         string    `json:"coupon_id,omitempty"`
	CampaignID       string    `json:"campaign_id,omitempty"`
	OrderedAt        time.Time `json:"ordered_at"`
}

// TicketReserve links an order to a ticket. Reserves of one ticket form a
// chain through the transfer pointers; the current one has no forward pointer.
type TicketReserve struct {
	ID                    string     `json:"id"`
	OrderID               string     `json:"order_id"`
	TicketID              string     `json:"ticket_id"`
	SeatTypeOptionID      string     `json:"seat_type_option_id,omitempty"`
	TransferFromReserveID string     `json:"transfer_from_reserve_id,omitempty"`
	TransferToReserveID   string     `json:"transfer_to_reserve_id,omitempty"`
	TransferredAt         *time.Time `json:"transferred_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
}

// Current reports whether this reserve is the tail of its chain
func (r *TicketReserve) Current() bool {
	return r.TransferToReserveID == ""
}
