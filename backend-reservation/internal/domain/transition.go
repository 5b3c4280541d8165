package domain

import "fmt"

// TicketTransition names a durable change of ticket status
type TicketTransition string

const (
	TransitionHold            TicketTransition = "hold"
	TransitionReleaseHold     TicketTransition = "release_hold"
	TransitionSell            TicketTransition = "sell"
	TransitionStopSelling     TicketTransition = "stop_selling"
	TransitionResumeSelling   TicketTransition = "resume_selling"
	TransitionOfferTransfer   TicketTransition = "offer_transfer"
	TransitionReceiveTransfer TicketTransition = "receive_transfer"
	TransitionCancelTransfer  TicketTransition = "cancel_transfer"
	TransitionAdminTransfer   TicketTransition = "admin_transfer"
)

type transitionRule struct {
	from []TicketStatus
	to   TicketStatus
}

var transitions = map[TicketTransition]transitionRule{
	TransitionHold:            {from: []TicketStatus{TicketAvailable}, to: TicketTemporaryHold},
	TransitionReleaseHold:     {from: []TicketStatus{TicketTemporaryHold}, to: TicketAvailable},
	TransitionSell:            {from: []TicketStatus{TicketAvailable, TicketTemporaryHold}, to: TicketSold},
	TransitionStopSelling:     {from: []TicketStatus{TicketAvailable}, to: TicketNotForSale},
	TransitionResumeSelling:   {from: []TicketStatus{TicketNotForSale}, to: TicketAvailable},
	TransitionOfferTransfer:   {from: []TicketStatus{TicketSold}, to: TicketSold},
	TransitionReceiveTransfer: {from: []TicketStatus{TicketSold}, to: TicketSold},
	TransitionCancelTransfer:  {from: []TicketStatus{TicketSold}, to: TicketSold},
	TransitionAdminTransfer:   {from: []TicketStatus{TicketNotForSale}, to: TicketSold},
}

// From lists the statuses the transition may start from
func (t TicketTransition) From() []TicketStatus {
	return transitions[t].from
}

// Target returns the status after the transition
func (t TicketTransition) Target() TicketStatus {
	return transitions[t].to
}

// Allows reports whether the transition may start from status
func (t TicketTransition) Allows(status TicketStatus) bool {
	for _, s := range transitions[t].from {
		if s == status {
			return true
		}
	}
	return false
}

// Apply returns the target status or ErrInvalidTransition
func (t TicketTransition) Apply(status TicketStatus) (TicketStatus, error) {
	if !t.Allows(status) {
		return status, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, t, status)
	}
	return t.Target(), nil
}
