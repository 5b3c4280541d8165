package domain

import (
	"fmt"
	"time"
)

// TicketStatus is the durable lifecycle status of a seat
type TicketStatus string

const (
	TicketAvailable     TicketStatus = "available"
	TicketSold          TicketStatus = "sold"
	TicketNotForSale    TicketStatus = "not_for_sale"
	TicketTemporaryHold TicketStatus = "temporary_hold"
)

// Ticket is one sellable seat of a seat sale
type Ticket struct {
	ID         string       `json:"id"`
	SeatSaleID string       `json:"seat_sale_id"`
	SeatTypeID string       `json:"seat_type_id"`
	SeatAreaID string       `json:"seat_area_id"`
	SeatUnitID string       `json:"seat_unit_id,omitempty"`
	Row        string       `json:"row"`
	SeatNumber string       `json:"seat_number"`
	Status     TicketStatus `json:"status"`
	// UserID is the durable owner, set once sold
	UserID        string `json:"user_id,omitempty"`
	TransferToken string `json:"transfer_token,omitempty"`
	AdmissionCode string `json:"admission_code,omitempty"`
	// AdmissionStarted is true once an admission log exists
	AdmissionStarted bool      `json:"admission_started"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// InUnit reports whether the seat is sold together with its unit
func (t *Ticket) InUnit() bool {
	return t.SeatUnitID != ""
}

// HasOwner reports whether a durable owner exists
func (t *Ticket) HasOwner() bool {
	return t.UserID != ""
}

func (t *Ticket) transition(tr TicketTransition) error {
	if _, err := tr.Apply(t.Status); err != nil {
		return fmt.Errorf("ticket %s: %w", t.ID, err)
	}
	return nil
}

// CheckStopSelling guards available -> not_for_sale
func (t *Ticket) CheckStopSelling(sale *SeatSale, held bool, now time.Time) error {
	switch {
	case t.HasOwner():
		return ErrTicketHasOwner
	case held:
		return ErrTicketReserved
	case sale.SalesClosed(now):
		return ErrSalesClosed
	}
	return t.transition(TransitionStopSelling)
}

// CheckResumeSelling guards not_for_sale -> available
func (t *Ticket) CheckResumeSelling(sale *SeatSale, now time.Time) error {
	switch {
	case t.HasOwner():
		return ErrTicketHasOwner
	case t.Status != TicketNotForSale:
		return ErrTicketNotStopped
	case sale.SalesClosed(now):
		return ErrSalesClosed
	}
	return t.transition(TransitionResumeSelling)
}

// CheckOfferTransfer guards issuing a transfer token
func (t *Ticket) CheckOfferTransfer(userID string, sale *SeatSale, now time.Time) error {
	switch {
	case sale.Expired(now):
		return ErrTicketExpired
	case t.Status != TicketSold:
		return ErrTicketNotSold
	case t.UserID != userID:
		return ErrNotTicketOwner
	case t.TransferToken != "":
		return ErrTransferAlreadyOffered
	case t.AdmissionStarted:
		return ErrAdmissionStarted
	}
	return t.transition(TransitionOfferTransfer)
}

// CheckReceiveTransfer guards redeeming a transfer token
func (t *Ticket) CheckReceiveTransfer(receiverID string, sale *SeatSale, now time.Time) error {
	switch {
	case t.UserID == receiverID:
		return ErrSelfTransfer
	case t.Status != TicketSold:
		return ErrTicketNotSold
	case sale.Expired(now):
		return ErrTicketExpired
	case t.AdmissionStarted:
		return ErrAdmissionStarted
	case t.TransferToken == "":
		return ErrNoTransferOffered
	}
	return t.transition(TransitionReceiveTransfer)
}

// CheckCancelTransfer guards withdrawing an outstanding token
func (t *Ticket) CheckCancelTransfer(userID string) error {
	switch {
	case t.TransferToken == "":
		return ErrNoTransferOffered
	case t.UserID != userID:
		return ErrNotTicketOwner
	}
	return t.transition(TransitionCancelTransfer)
}

// CheckAdminTransfer guards not_for_sale -> sold by an operator
func (t *Ticket) CheckAdminTransfer(sale *SeatSale, now time.Time) error {
	switch {
	case t.Status != TicketNotForSale:
		return ErrTicketNotStopped
	case sale.Expired(now):
		return ErrTicketExpired
	case !sale.OnSale(now):
		return ErrNotOnSale
	}
	return t.transition(TransitionAdminTransfer)
}
