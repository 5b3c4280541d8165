package service

import (
	"context"
	"fmt"

	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/domain"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/pricing"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/repository"
)

// snapshotLoader gathers the pricing inputs of a cart
type snapshotLoader struct {
	tickets repository.TicketRepository
	catalog repository.CatalogRepository
}

func (l *snapshotLoader) load(ctx context.Context, cart *domain.Cart) (*pricing.Snapshot, []*domain.Ticket, error) {
	if cart.Empty() {
		return nil, nil, domain.ErrEmptyCart
	}

	tickets, err := l.tickets.GetByIDs(ctx, cart.TicketIDs())
	if err != nil {
		return nil, nil, err
	}
	if len(tickets) != len(cart.Selections) {
		return nil, nil, fmt.Errorf("cart of %s: %w", cart.UserID, domain.ErrTicketNotFound)
	}

	s := &pricing.Snapshot{
		Cart:    cart,
		Tickets: make(map[string]*domain.Ticket, len(tickets)),
	}
	var typeIDs, areaIDs, optionIDs []string
	for _, t := range tickets {
		s.Tickets[t.ID] = t
		typeIDs = append(typeIDs, t.SeatTypeID)
		areaIDs = append(areaIDs, t.SeatAreaID)
	}
	for _, sel := range cart.Selections {
		if sel.OptionID != "" {
			optionIDs = append(optionIDs, sel.OptionID)
		}
	}

	if s.Sale, err = l.catalog.GetSeatSale(ctx, tickets[0].SeatSaleID); err != nil {
		return nil, nil, err
	}
	if s.SeatTypes, err = l.catalog.GetSeatTypes(ctx, typeIDs); err != nil {
		return nil, nil, err
	}
	if s.Options, err = l.catalog.GetSeatTypeOptions(ctx, optionIDs); err != nil {
		return nil, nil, err
	}
	if s.Areas, err = l.catalog.GetSeatAreas(ctx, areaIDs); err != nil {
		return nil, nil, err
	}
	if cart.CouponID != "" {
		if s.Coupon, err = l.catalog.GetCoupon(ctx, cart.CouponID); err != nil {
			return nil, nil, err
		}
	}
	if cart.CampaignCode != "" {
		if s.Campaign, err = l.catalog.GetCampaignByCode(ctx, cart.CampaignCode); err != nil {
			return nil, nil, err
		}
	}
	return s, tickets, nil
}

func (l *snapshotLoader) purchaseOrder(ctx context.Context, cart *domain.Cart) (*pricing.PurchaseOrder, []*domain.Ticket, error) {
	s, tickets, err := l.load(ctx, cart)
	if err != nil {
		return nil, nil, err
	}
	po, err := pricing.NewPurchaseOrder(*s)
	if err != nil {
		return nil, nil, err
	}
	return po, tickets, nil
}
