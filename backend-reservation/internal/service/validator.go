package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/domain"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/repository"
)

// CartInput is a buyer's requested cart contents
type CartInput struct {
	Selections   []domain.Selection `json:"selections" validate:"dive"`
	CouponID     string             `json:"coupon_id,omitempty" validate:"omitempty,max=64"`
	CampaignCode string             `json:"campaign_code,omitempty" validate:"omitempty,max=64"`
}

// SelectionValidator decides whether a cart input may be held. A non-empty
// code rejects the input; errors are infrastructure failures.
type SelectionValidator interface {
	Validate(ctx context.Context, userID string, input *CartInput) (domain.ErrorCode, error)
}

// RuleValidator checks a selection against the catalog and durable tickets
type RuleValidator struct {
	validate   *validator.Validate
	tickets    repository.TicketRepository
	catalog    repository.CatalogRepository
	maxTickets int
	now        func() time.Time
}

// NewRuleValidator creates a RuleValidator
func NewRuleValidator(tickets repository.TicketRepository, catalog repository.CatalogRepository, maxTickets int, now func() time.Time) *RuleValidator {
	if maxTickets <= 0 {
		maxTickets = 10
	}
	if now == nil {
		now = time.Now
	}
	return &RuleValidator{
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		tickets:    tickets,
		catalog:    catalog,
		maxTickets: maxTickets,
		now:        now,
	}
}

// Validate runs the rules cheapest first
func (v *RuleValidator) Validate(ctx context.Context, userID string, input *CartInput) (domain.ErrorCode, error) {
	if input == nil || len(input.Selections) == 0 {
		return domain.CodeNoTicketsSelected, nil
	}
	if err := v.validate.Struct(input); err != nil {
		return domain.CodeTicketNotAvailable, nil
	}
	if len(input.Selections) > v.maxTickets {
		return domain.CodeTooManyTickets, nil
	}

	ids := make([]string, 0, len(input.Selections))
	seen := make(map[string]bool, len(input.Selections))
	for _, sel := range input.Selections {
		if seen[sel.TicketID] {
			return domain.CodeDuplicateTicket, nil
		}
		seen[sel.TicketID] = true
		ids = append(ids, sel.TicketID)
	}

	tickets, err := v.tickets.GetByIDs(ctx, ids)
	if err != nil {
		return domain.CodeNone, err
	}
	if len(tickets) != len(ids) {
		return domain.CodeTicketNotAvailable, nil
	}

	byID := make(map[string]*domain.Ticket, len(tickets))
	saleID := tickets[0].SeatSaleID
	for _, t := range tickets {
		if t.SeatSaleID != saleID {
			return domain.CodeMixedSales, nil
		}
		if t.HasOwner() || !domain.TransitionSell.Allows(t.Status) {
			return domain.CodeTicketNotAvailable, nil
		}
		byID[t.ID] = t
	}

	now := v.now()
	sale, err := v.catalog.GetSeatSale(ctx, saleID)
	if errors.Is(err, domain.ErrSeatSaleNotFound) {
		return domain.CodeNotOnSale, nil
	}
	if err != nil {
		return domain.CodeNone, err
	}
	if !sale.OnSale(now) {
		return domain.CodeNotOnSale, nil
	}

	checkedUnits := make(map[string]bool)
	for _, t := range tickets {
		if !t.InUnit() || checkedUnits[t.SeatUnitID] {
			continue
		}
		checkedUnits[t.SeatUnitID] = true
		unit, err := v.tickets.GetByUnitID(ctx, t.SeatUnitID)
		if err != nil {
			return domain.CodeNone, err
		}
		for _, seat := range unit {
			if !seen[seat.ID] {
				return domain.CodeIncompleteUnit, nil
			}
		}
	}

	if code, err := v.checkOptions(ctx, input.Selections, byID); code != domain.CodeNone || err != nil {
		return code, err
	}

	if input.CouponID != "" {
		coupon, err := v.catalog.GetCoupon(ctx, input.CouponID)
		if errors.Is(err, domain.ErrCouponNotFound) {
			return domain.CodeCouponNotAvailable, nil
		}
		if err != nil {
			return domain.CodeNone, err
		}
		if coupon.ApprovedAt == nil || !now.Before(coupon.AvailableEndAt) {
			return domain.CodeCouponNotAvailable, nil
		}
		usable, err := v.catalog.IsCouponUsableByUser(ctx, coupon.ID, userID)
		if err != nil {
			return domain.CodeNone, err
		}
		if !usable {
			return domain.CodeCouponNotAvailable, nil
		}
	}

	if input.CampaignCode != "" {
		campaign, err := v.catalog.GetCampaignByCode(ctx, input.CampaignCode)
		if errors.Is(err, domain.ErrCampaignNotFound) {
			return domain.CodeCampaignNotAvailable, nil
		}
		if err != nil {
			return domain.CodeNone, err
		}
		if !campaign.Active(now) {
			return domain.CodeCampaignNotAvailable, nil
		}
	}

	return domain.CodeNone, nil
}

func (v *RuleValidator) checkOptions(ctx context.Context, selections []domain.Selection, tickets map[string]*domain.Ticket) (domain.ErrorCode, error) {
	var optionIDs []string
	for _, sel := range selections {
		if sel.OptionID != "" {
			optionIDs = append(optionIDs, sel.OptionID)
		}
	}
	if len(optionIDs) == 0 {
		return domain.CodeNone, nil
	}

	options, err := v.catalog.GetSeatTypeOptions(ctx, optionIDs)
	if err != nil {
		return domain.CodeNone, err
	}
	for _, sel := range selections {
		if sel.OptionID == "" {
			continue
		}
		o, ok := options[sel.OptionID]
		if !ok || o.SeatTypeID != tickets[sel.TicketID].SeatTypeID {
			return domain.CodeInvalidOption, nil
		}
	}
	return domain.CodeNone, nil
}

var _ SelectionValidator = (*RuleValidator)(nil)
