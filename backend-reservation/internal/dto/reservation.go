package dto

import (
	"time"

	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/domain"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/pricing"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/service"
)

// ErrorResponse represents an error in API response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// SelectionRequest is one requested seat
type SelectionRequest struct {
	TicketID string `json:"ticket_id" binding:"required"`
	OptionID string `json:"option_id,omitempty"`
}

// ReplaceCartRequest represents request to replace the cart contents
type ReplaceCartRequest struct {
	Selections   []SelectionRequest `json:"selections" binding:"dive"`
	CouponID     string             `json:"coupon_id,omitempty"`
	CampaignCode string             `json:"campaign_code,omitempty"`
}

// ToInput converts the request into a cart input
func (r *ReplaceCartRequest) ToInput() *service.CartInput {
	in := &service.CartInput{
		Selections:   make([]domain.Selection, len(r.Selections)),
		CouponID:     r.CouponID,
		CampaignCode: r.CampaignCode,
	}
	for i, s := range r.Selections {
		in.Selections[i] = domain.Selection{TicketID: s.TicketID, OptionID: s.OptionID}
	}
	return in
}

// CartResponse represents a cart in API response
type CartResponse struct {
	UserID       string             `json:"user_id"`
	Selections   []SelectionRequest `json:"selections"`
	CouponID     string             `json:"coupon_id,omitempty"`
	CampaignCode string             `json:"campaign_code,omitempty"`
	PaymentStart bool               `json:"payment_started"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// CartFromDomain converts a cart to CartResponse
func CartFromDomain(c *domain.Cart) *CartResponse {
	resp := &CartResponse{
		UserID:       c.UserID,
		Selections:   make([]SelectionRequest, len(c.Selections)),
		CouponID:     c.CouponID,
		CampaignCode: c.CampaignCode,
		PaymentStart: c.ChargeID != "",
		UpdatedAt:    c.UpdatedAt,
	}
	for i, s := range c.Selections {
		resp.Selections[i] = SelectionRequest{TicketID: s.TicketID, OptionID: s.OptionID}
	}
	return resp
}

// StartPaymentResponse represents response after starting payment
type StartPaymentResponse struct {
	ChargeID      string                 `json:"charge_id"`
	ClientSecret  string                 `json:"client_secret,omitempty"`
	Amount        int64                  `json:"amount"`
	Currency      string                 `json:"currency"`
	PurchaseOrder *pricing.PurchaseOrder `json:"purchase_order"`
}

// PaymentStartFromDomain converts a payment start to StartPaymentResponse
func PaymentStartFromDomain(p *service.PaymentStart) *StartPaymentResponse {
	return &StartPaymentResponse{
		ChargeID:      p.Charge.ID,
		ClientSecret:  p.Charge.ClientSecret,
		Amount:        p.Charge.Amount,
		Currency:      p.Charge.Currency,
		PurchaseOrder: p.PurchaseOrder,
	}
}

// OrderResponse represents an order in API response
type OrderResponse struct {
	ID               string    `json:"id"`
	Kind             string    `json:"kind"`
	SeatSaleID       string    `json:"seat_sale_id"`
	Subtotal         int64     `json:"subtotal"`
	CouponDiscount   int64     `json:"coupon_discount"`
	CampaignDiscount int64     `json:"campaign_discount"`
	Total            int64     `json:"total"`
	OrderedAt        time.Time `json:"ordered_at"`
}

// OrderFromDomain converts an order to OrderResponse
func OrderFromDomain(o *domain.Order) *OrderResponse {
	return &OrderResponse{
		ID:               o.ID,
		Kind:             string(o.Kind),
		SeatSaleID:       o.SeatSaleID,
		Subtotal:         o.Subtotal,
		CouponDiscount:   o.CouponDiscount,
		CampaignDiscount: o.CampaignDiscount,
		Total:            o.Total,
		OrderedAt:        o.OrderedAt,
	}
}

// TicketResponse represents a ticket in API response. Owner-only fields
// stay empty for other callers.
type TicketResponse struct {
	ID              string `json:"id"`
	SeatSaleID      string `json:"seat_sale_id"`
	SeatTypeID      string `json:"seat_type_id"`
	SeatAreaID      string `json:"seat_area_id"`
	SeatUnitID      string `json:"seat_unit_id,omitempty"`
	Row             string `json:"row"`
	SeatNumber      string `json:"seat_number"`
	Status          string `json:"status"`
	Owned           bool   `json:"owned"`
	TransferOffered bool   `json:"transfer_offered"`
	AdmissionCode   string `json:"admission_code,omitempty"`
}

// TicketFromDomain converts a ticket as seen by viewerID
func TicketFromDomain(t *domain.Ticket, viewerID string) *TicketResponse {
	resp := &TicketResponse{
		ID:         t.ID,
		SeatSaleID: t.SeatSaleID,
		SeatTypeID: t.SeatTypeID,
		SeatAreaID: t.SeatAreaID,
		SeatUnitID: t.SeatUnitID,
		Row:        t.Row,
		SeatNumber: t.SeatNumber,
		Status:     string(t.Status),
	}
	if t.HasOwner() && t.UserID == viewerID {
		resp.Owned = true
		resp.TransferOffered = t.TransferToken != ""
		resp.AdmissionCode = t.AdmissionCode
	}
	return resp
}

// OfferTransferResponse carries the token the owner hands to the receiver
type OfferTransferResponse struct {
	TicketID      string `json:"ticket_id"`
	TransferToken string `json:"transfer_token"`
}

// AdminTransferRequest represents request to grant a stopped ticket
type AdminTransferRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// StatusResponse acknowledges a state change without a payload
type StatusResponse struct {
	TicketID string `json:"ticket_id,omitempty"`
	Status   string `json:"status"`
}
