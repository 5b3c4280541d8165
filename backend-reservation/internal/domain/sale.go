package domain

import "time"

// SeatSaleStatus is the lifecycle of a seat sale
type SeatSaleStatus string

const (
	SeatSaleBeforeSale   SeatSaleStatus = "before_sale"
	SeatSaleOnSale       SeatSaleStatus = "on_sale"
	SeatSaleDiscontinued SeatSaleStatus = "discontinued"
)

// SeatSale is the sales window of one race schedule
type SeatSale struct {
	ID               string         `json:"id"`
	ScheduleID       string         `json:"schedule_id"`
	Status           SeatSaleStatus `json:"status"`
	SalesStartAt     time.Time      `json:"sales_start_at"`
	SalesEndAt       time.Time      `json:"sales_end_at"`
	AdmissionCloseAt time.Time      `json:"admission_close_at"`
}

// Expired reports whether admission for the schedule has closed
func (s *SeatSale) Expired(now time.Time) bool {
	return !s.AdmissionCloseAt.IsZero() && !now.Before(s.AdmissionCloseAt)
}

// SalesClosed reports whether no more tickets may be sold or restocked
func (s *SeatSale) SalesClosed(now time.Time) bool {
	return s.Status == SeatSaleDiscontinued || !now.Before(s.SalesEndAt)
}

// OnSale reports whether buyers may purchase right now
func (s *SeatSale) OnSale(now time.Time) bool {
	return s.Status == SeatSaleOnSale &&
		!now.Before(s.SalesStartAt) &&
		now.Before(s.SalesEndAt)
}

// SeatType is a price category inside a seat sale
type SeatType struct {
	ID               string `json:"id"`
	SeatSaleID       string `json:"seat_sale_id"`
	MasterSeatTypeID string `json:"master_seat_type_id"`
	Name             string `json:"name"`
	Price            int64  `json:"price"`
}

// SeatTypeOption is a paid add-on that changes the line price
type SeatTypeOption struct {
	ID         string `json:"id"`
	SeatTypeID string `json:"seat_type_id"`
	Title      string `json:"title"`
	Price      int64  `json:"price"`
}

// SeatArea groups seats for display
type SeatArea struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Coupon is a percentage-off voucher
type Coupon struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	// Rate is a percentage in [0,100]
	Rate int64 `json:"rate"`
	// MasterSeatTypeIDs restricts eligible lines; empty means every seat type
	MasterSeatTypeIDs []string   `json:"master_seat_type_ids"`
	ApprovedAt        *time.Time `json:"approved_at,omitempty"`
	AvailableEndAt    time.Time  `json:"available_end_at"`
}

// Eligible reports whether a line of the given master seat type may be discounted
func (c *Coupon) Eligible(masterSeatTypeID string) bool {
	if len(c.MasterSeatTypeIDs) == 0 {
		return true
	}
	for _, id := range c.MasterSeatTypeIDs {
		if id == masterSeatTypeID {
			return true
		}
	}
	return false
}

// Campaign is a code-activated percentage discount
type Campaign struct {
	ID       string    `json:"id"`
	Code     string    `json:"code"`
	Rate     int64     `json:"rate"`
	StartAt  time.Time `json:"start_at"`
	EndAt    time.Time `json:"end_at"`
	Approved bool      `json:"approved"`
}

// Active reports whether the campaign applies at now
func (c *Campaign) Active(now time.Time) bool {
	return c.Approved && !now.Before(c.StartAt) && now.Before(c.EndAt)
}
