// Package pricing computes what a cart costs. Everything here is a pure
// function of the snapshot it is given.
package pricing

import (
	"fmt"

	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/domain"
)

// Snapshot is everything pricing needs, loaded by the caller
type Snapshot struct {
	Cart      *domain.Cart
	Sale      *domain.SeatSale
	Tickets   map[string]*domain.Ticket
	SeatTypes map[string]*domain.SeatType
	Options   map[string]*domain.SeatTypeOption
	Areas     map[string]*domain.SeatArea
	// Coupon wins over Campaign when both are set
	Coupon   *domain.Coupon
	Campaign *domain.Campaign
}

// Seat is the display position of one ticket
type Seat struct {
	TicketID   string `json:"ticket_id"`
	Row        string `json:"row"`
	SeatNumber string `json:"seat_number"`
}

// Line is one charged item: a single seat, or a whole seating unit
type Line struct {
	TicketIDs        []string `json:"ticket_ids"`
	Seats            []Seat   `json:"seats"`
	SeatUnitID       string   `json:"seat_unit_id,omitempty"`
	SeatTypeID       string   `json:"seat_type_id"`
	SeatTypeName     string   `json:"seat_type_name"`
	MasterSeatTypeID string   `json:"master_seat_type_id"`
	SeatAreaID       string   `json:"seat_area_id"`
	SeatAreaName     string   `json:"seat_area_name"`
	OptionID         string   `json:"option_id,omitempty"`
	OptionTitle      string   `json:"option_title,omitempty"`
	SeatTypePrice    int64    `json:"seat_type_price"`
	OptionPrice      int64    `json:"option_price"`
	Price            int64    `json:"price"`
	CouponDiscount   int64    `json:"coupon_discount"`
	CampaignDiscount int64    `json:"campaign_discount"`
}

// PurchaseOrder is the priced view of a cart
type PurchaseOrder struct {
	SeatSaleID       string `json:"seat_sale_id"`
	ScheduleID       string `json:"schedule_id"`
	Lines            []Line `json:"lines"`
	Subtotal         int64  `json:"subtotal"`
	CouponDiscount   int64  `json:"coupon_discount"`
	CampaignDiscount int64  `json:"campaign_discount"`
	Total            int64  `json:"total"`
	CouponID         string `json:"coupon_id,omitempty"`
	CampaignID       string `json:"campaign_id,omitempty"`
	CampaignCode     string `json:"campaign_code,omitempty"`
}

// Discount returns whichever discount applied
func (p *PurchaseOrder) Discount() int64 {
	return p.CouponDiscount + p.CampaignDiscount
}

// NewPurchaseOrder prices the snapshot. Lines follow the cart's selection
// order with seats of one unit folded into the line of its first seat.
func NewPurchaseOrder(s Snapshot) (*PurchaseOrder, error) {
	if s.Cart.Empty() {
		return nil, domain.ErrEmptyCart
	}

	po := &PurchaseOrder{}
	if s.Sale != nil {
		po.SeatSaleID = s.Sale.ID
		po.ScheduleID = s.Sale.ScheduleID
	}

	unitLine := make(map[string]int)
	for _, sel := range s.Cart.Selections {
		t, ok := s.Tickets[sel.TicketID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrTicketNotFound, sel.TicketID)
		}
		seat := Seat{TicketID: t.ID, Row: t.Row, SeatNumber: t.SeatNumber}

		if t.InUnit() {
			if i, ok := unitLine[t.SeatUnitID]; ok {
				l := &po.Lines[i]
				l.TicketIDs = append(l.TicketIDs, t.ID)
				l.Seats = append(l.Seats, seat)
				if l.OptionID == "" && sel.OptionID != "" {
					if err := applyOption(l, sel.OptionID, s.Options); err != nil {
						return nil, err
					}
				}
				continue
			}
		}

		st, ok := s.SeatTypes[t.SeatTypeID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrSeatTypeNotFound, t.SeatTypeID)
		}
		l := Line{
			TicketIDs:        []string{t.ID},
			Seats:            []Seat{seat},
			SeatUnitID:       t.SeatUnitID,
			SeatTypeID:       st.ID,
			SeatTypeName:     st.Name,
			MasterSeatTypeID: st.MasterSeatTypeID,
			SeatAreaID:       t.SeatAreaID,
			SeatTypePrice:    st.Price,
		}
		if a, ok := s.Areas[t.SeatAreaID]; ok {
			l.SeatAreaName = a.Name
		}
		if sel.OptionID != "" {
			if err := applyOption(&l, sel.OptionID, s.Options); err != nil {
				return nil, err
			}
		}
		if t.InUnit() {
			unitLine[t.SeatUnitID] = len(po.Lines)
		}
		po.Lines = append(po.Lines, l)
	}

	for i := range po.Lines {
		l := &po.Lines[i]
		l.Price = l.SeatTypePrice + l.OptionPrice
		po.Subtotal += l.Price
	}

	switch {
	case s.Coupon != nil:
		po.CouponID = s.Coupon.ID
		for i := range po.Lines {
			l := &po.Lines[i]
			if l.OptionID == "" && s.Coupon.Eligible(l.MasterSeatTypeID) {
				l.CouponDiscount = percentOf(l.Price, s.Coupon.Rate)
				po.CouponDiscount += l.CouponDiscount
			}
		}
	case s.Campaign != nil:
		po.CampaignID = s.Campaign.ID
		po.CampaignCode = s.Campaign.Code
		for i := range po.Lines {
			l := &po.Lines[i]
			if l.OptionID == "" {
				l.CampaignDiscount = percentOf(l.Price, s.Campaign.Rate)
				po.CampaignDiscount += l.CampaignDiscount
			}
		}
	}

	po.Total = po.Subtotal - po.Discount()
	if po.Total < 0 {
		po.Total = 0
	}
	return po, nil
}

func applyOption(l *Line, optionID string, options map[string]*domain.SeatTypeOption) error {
	o, ok := options[optionID]
	if !ok {
		return fmt.Errorf("seat type option %s: %w", optionID, domain.ErrSeatTypeNotFound)
	}
	l.OptionID = o.ID
	l.OptionTitle = o.Title
	l.OptionPrice = o.Price
	return nil
}

// percentOf floors price*rate/100 for non-negative operands
func percentOf(price, rate int64) int64 {
	if price <= 0 || rate <= 0 {
		return 0
	}
	return price * rate / 100
}
