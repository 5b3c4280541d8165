package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/domain"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/gateway"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/pricing"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/repository"
	"github.com/prohmpiriya/seat-rush/pkg/logger"
	"github.com/prohmpiriya/seat-rush/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// CartService orchestrates a buyer's cart and the holds it owns
type CartService interface {
	// GetCart returns domain.ErrCartNotFound when the buyer has no cart
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)

	// ReplaceTickets swaps the cart contents for input. A non-empty code
	// is a business rejection; the previous holds are gone either way
	// once validation has passed.
	ReplaceTickets(ctx context.Context, userID string, input *CartInput) (domain.ErrorCode, error)

	// ClearHoldTickets releases every hold and drops the cart
	ClearHoldTickets(ctx context.Context, userID string) error

	// ReplaceCartChargeID stores the payment handle and re-extends every hold
	ReplaceCartChargeID(ctx context.Context, userID, chargeID string) error

	// PurchaseOrder prices the current cart
	PurchaseOrder(ctx context.Context, userID string) (*pricing.PurchaseOrder, error)
}

// CartServiceConfig contains configuration for the cart service
type CartServiceConfig struct {
	CartTTL time.Duration
	Now     func() time.Time
}

type cartService struct {
	cartRepo   repository.CartRepository
	ticketRepo repository.TicketRepository
	holds      TicketHoldService
	validator  SelectionValidator
	gateway    gateway.PaymentGateway
	snapshots  *snapshotLoader
	cartTTL    time.Duration
	now        func() time.Time
}

// NewCartService creates a new cart service
func NewCartService(
	cartRepo repository.CartRepository,
	ticketRepo repository.TicketRepository,
	catalogRepo repository.CatalogRepository,
	holds TicketHoldService,
	validator SelectionValidator,
	paymentGateway gateway.PaymentGateway,
	cfg *CartServiceConfig,
) CartService {
	ttl := domain.CartTTL
	now := time.Now
	if cfg != nil {
		if cfg.CartTTL > 0 {
			ttl = cfg.CartTTL
		}
		if cfg.Now != nil {
			now = cfg.Now
		}
	}
	return &cartService{
		cartRepo:   cartRepo,
		ticketRepo: ticketRepo,
		holds:      holds,
		validator:  validator,
		gateway:    paymentGateway,
		snapshots:  &snapshotLoader{tickets: ticketRepo, catalog: catalogRepo},
		cartTTL:    ttl,
		now:        now,
	}
}

func (s *cartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	return s.cartRepo.Get(ctx, userID)
}

func (s *cartService) ReplaceTickets(ctx context.Context, userID string, input *CartInput) (domain.ErrorCode, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.cart.replace_tickets")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", userID))

	code, err := s.validator.Validate(ctx, userID, input)
	if err != nil {
		telemetry.RecordError(span, err)
		return domain.CodeNone, err
	}
	if code != domain.CodeNone {
		span.SetAttributes(attribute.String("error_code", string(code)))
		return code, nil
	}

	previous, err := s.loadCart(ctx, userID)
	if err != nil {
		telemetry.RecordError(span, err)
		return domain.CodeNone, err
	}
	if err := s.releaseAll(ctx, userID, previous); err != nil {
		telemetry.RecordError(span, err)
		return domain.CodeNone, err
	}

	selections := domain.SortSelections(input.Selections)
	claimed := make([]string, 0, len(selections))
	for _, sel := range selections {
		ok, err := s.holds.TryReserve(ctx, sel.TicketID, userID)
		if err != nil || !ok {
			s.compensate(ctx, userID, claimed)
			if err != nil {
				telemetry.RecordError(span, err)
				return domain.CodeNone, err
			}
			span.SetAttributes(attribute.String("lost_ticket_id", sel.TicketID))
			return domain.CodeTicketNotAvailable, nil
		}
		claimed = append(claimed, sel.TicketID)
	}

	cart := &domain.Cart{
		UserID:       userID,
		Selections:   selections,
		CouponID:     input.CouponID,
		CampaignCode: input.CampaignCode,
		UpdatedAt:    s.now(),
	}
	if err := s.cartRepo.Save(ctx, cart, s.cartTTL); err != nil {
		s.compensate(ctx, userID, claimed)
		telemetry.RecordError(span, err)
		return domain.CodeNone, err
	}

	span.SetStatus(codes.Ok, "")
	return domain.CodeNone, nil
}

// compensate undoes a partial claim pass and drops the cart entry
func (s *cartService) compensate(ctx context.Context, userID string, claimed []string) {
	ctx = context.WithoutCancel(ctx)
	for _, id := range claimed {
		if err := s.holds.Release(ctx, id, userID); err != nil {
			logger.Get().WarnContext(ctx, "failed to release hold during compensation",
				zap.String("ticket_id", id),
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
	}
	if err := s.cartRepo.Delete(ctx, userID); err != nil {
		logger.Get().WarnContext(ctx, "failed to delete cart during compensation",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}

func (s *cartService) ClearHoldTickets(ctx context.Context, userID string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.cart.clear_hold_tickets")
	defer span.End()

	cart, err := s.loadCart(ctx, userID)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	if cart == nil {
		return nil
	}
	if err := s.releaseAll(ctx, userID, cart); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	return s.cartRepo.Delete(ctx, userID)
}

func (s *cartService) ReplaceCartChargeID(ctx context.Context, userID, chargeID string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.cart.replace_charge_id")
	defer span.End()
	span.SetAttributes(attribute.String("charge_id", chargeID))

	cart, err := s.cartRepo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.extendHolds(ctx, userID, cart); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	cart.ChargeID = chargeID
	cart.UpdatedAt = s.now()
	return s.cartRepo.Save(ctx, cart, s.cartTTL)
}

func (s *cartService) PurchaseOrder(ctx context.Context, userID string) (*pricing.PurchaseOrder, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.cart.purchase_order")
	defer span.End()

	cart, err := s.cartRepo.Get(ctx, userID)
	if errors.Is(err, domain.ErrCartNotFound) {
		return nil, domain.ErrEmptyCart
	}
	if err != nil {
		return nil, err
	}
	po, _, err := s.snapshots.purchaseOrder(ctx, cart)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return po, nil
}

// loadCart returns nil without error when the buyer has no cart
func (s *cartService) loadCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.cartRepo.Get(ctx, userID)
	if errors.Is(err, domain.ErrCartNotFound) {
		return nil, nil
	}
	return cart, err
}

// extendHolds slides every hold to the cart TTL, failing when one was lost
func (s *cartService) extendHolds(ctx context.Context, userID string, cart *domain.Cart) error {
	for _, id := range cart.TicketIDs() {
		ok, err := s.holds.IsTemporaryOwner(ctx, id, userID, s.cartTTL)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("ticket %s: %w", id, domain.ErrHoldLost)
		}
	}
	return nil
}

// releaseAll drops the holds of cart. A started payment also voids its
// authorization and sends the durably marked tickets back to available.
func (s *cartService) releaseAll(ctx context.Context, userID string, cart *domain.Cart) error {
	if cart == nil {
		return nil
	}
	if cart.ChargeID != "" {
		s.cancelCharge(ctx, cart.ChargeID)
		revertPaymentHolds(ctx, s.ticketRepo, cart.TicketIDs())
	}
	for _, id := range cart.TicketIDs() {
		if err := s.holds.Release(ctx, id, userID); err != nil {
			return err
		}
	}
	return nil
}

func (s *cartService) cancelCharge(ctx context.Context, chargeID string) {
	if s.gateway == nil {
		return
	}
	err := s.gateway.CancelCharge(context.WithoutCancel(ctx), chargeID)
	if err != nil && !errors.Is(err, gateway.ErrChargeNotFound) {
		logger.Get().WarnContext(ctx, "failed to cancel charge of released cart",
			zap.String("charge_id", chargeID),
			zap.Error(err),
		)
	}
}

// revertPaymentHolds moves temporary_hold tickets back to available one by
// one; a ticket that already moved on is skipped.
func revertPaymentHolds(ctx context.Context, tickets repository.TicketRepository, ids []string) {
	for _, id := range ids {
		err := tickets.UpdateStatus(ctx, []string{id}, domain.TransitionReleaseHold)
		if err != nil && !errors.Is(err, domain.ErrTransferConflict) {
			logger.Get().WarnContext(ctx, "failed to release durable hold",
				zap.String("ticket_id", id),
				zap.Error(err),
			)
		}
	}
}
