package repository

import (
	"context"

	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/domain"
)

// SaleParams describes tickets changing hands through an order:
// a purchase (sell) or an operator grant (admin_transfer).
type SaleParams struct {
	Transition domain.TicketTransition
	Order      *domain.Order
	Reserves   []*domain.TicketReserve
	// AdmissionCodes maps ticket id to its new entry handle
	AdmissionCodes map[string]string
}

// TransferParams moves one sold ticket from its owner to a receiver
type TransferParams struct {
	TicketID       string
	FromUserID     string
	TransferToken  string
	PriorReserveID string
	Order          *domain.Order
	Reserve        *domain.TicketReserve
	AdmissionCode  string
}

// TicketRepository is the durable ticket store. Every write is a single
// transaction whose UPDATEs are guarded by the expected prior values;
// a guard miss rolls back and returns domain.ErrTransferConflict.
type TicketRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)

	// GetByIDs returns the found tickets; missing ids are simply absent
	GetByIDs(ctx context.Context, ids []string) ([]*domain.Ticket, error)

	GetByTransferToken(ctx context.Context, token string) (*domain.Ticket, error)

	// GetByUnitID returns every seat sharing the seating unit
	GetByUnitID(ctx context.Context, unitID string) ([]*domain.Ticket, error)

	// GetCurrentReserve returns the reserve with no forward pointer
	GetCurrentReserve(ctx context.Context, ticketID string) (*domain.TicketReserve, error)

	GetOrderByChargeID(ctx context.Context, chargeID string) (*domain.Order, error)

	// UpdateStatus applies a status-only transition to unowned tickets
	UpdateStatus(ctx context.Context, ids []string, transition domain.TicketTransition) error

	// SellTickets inserts the order and reserves and assigns the tickets to the buyer
	SellTickets(ctx context.Context, params SaleParams) error

	IssueTransferToken(ctx context.Context, ticketID, ownerID, token string) error

	// CancelTransferToken clears the token and replaces the admission code
	CancelTransferToken(ctx context.Context, ticketID, ownerID, token, admissionCode string) error

	// ApplyTransfer performs a transfer receipt as one unit
	ApplyTransfer(ctx context.Context, params TransferParams) error
}

// CatalogRepository reads the sale catalog; the core never writes it
type CatalogRepository interface {
	GetSeatSale(ctx context.Context, id string) (*domain.SeatSale, error)
	GetSeatTypes(ctx context.Context, ids []string) (map[string]*domain.SeatType, error)
	GetSeatTypeOptions(ctx context.Context, ids []string) (map[string]*domain.SeatTypeOption, error)
	GetSeatAreas(ctx context.Context, ids []string) (map[string]*domain.SeatArea, error)
	GetCoupon(ctx context.Context, id string) (*domain.Coupon, error)
	// IsCouponUsableByUser reports whether the user holds an unused grant of the coupon
	IsCouponUsableByUser(ctx context.Context, couponID, userID string) (bool, error)
	GetCampaignByCode(ctx context.Context, code string) (*domain.Campaign, error)
}
