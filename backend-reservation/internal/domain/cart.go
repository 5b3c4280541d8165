package domain

import (
	"sort"
	"time"
)

const (
	// CartTTL bounds both the cart entry and every seat hold it owns
	CartTTL = 15 * time.Minute
	// ReserveLockTTL frees a seat lock whose holder crashed mid-claim
	ReserveLockTTL = 30 * time.Second
	// CaptureLockTTL covers the payment callback window
	CaptureLockTTL = 60 * time.Second
)

// Selection is one requested seat with its optional paid option
type Selection struct {
	TicketID string `json:"ticket_id" validate:"required"`
	OptionID string `json:"option_id,omitempty"`
}

// Cart is the per-user set of held seats plus pricing context
type Cart struct {
	UserID       string      `json:"user_id"`
	Selections   []Selection `json:"selections"`
	CouponID     string      `json:"coupon_id,omitempty"`
	CampaignCode string      `json:"campaign_code,omitempty"`
	ChargeID     string      `json:"charge_id,omitempty"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// TicketIDs returns the selected ticket ids in selection order
func (c *Cart) TicketIDs() []string {
	ids := make([]string, len(c.Selections))
	for i, s := range c.Selections {
		ids[i] = s.TicketID
	}
	return ids
}

// Empty reports whether no seat is selected
func (c *Cart) Empty() bool {
	return c == nil || len(c.Selections) == 0
}

// SortSelections orders selections by ticket id, the canonical claim order
func SortSelections(selections []Selection) []Selection {
	sorted := make([]Selection, len(selections))
	copy(sorted, selections)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TicketID < sorted[j].TicketID
	})
	return sorted
}
