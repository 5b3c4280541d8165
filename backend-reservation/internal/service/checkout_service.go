package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/domain"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/gateway"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/metrics"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/pricing"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/repository"
	"github.com/prohmpiriya/seat-rush/pkg/logger"
	"github.com/prohmpiriya/seat-rush/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// PaymentStart is the result of starting payment for a cart
type PaymentStart struct {
	Charge        *gateway.Charge
	PurchaseOrder *pricing.PurchaseOrder
}

// CheckoutService turns held seats into sold tickets around the payment step
type CheckoutService interface {
	// StartPayment authorizes the cart total and pins the holds to the charge
	StartPayment(ctx context.Context, userID string) (*PaymentStart, error)

	// CapturePayment captures the charge and sells the held tickets once.
	// A repeated call for the same charge returns domain.ErrDuplicateCapture.
	CapturePayment(ctx context.Context, userID, chargeID string) (*domain.Order, error)

	// AbortPayment cancels the charge; the seats stay held in the cart
	AbortPayment(ctx context.Context, userID, chargeID string) error
}

// CheckoutServiceConfig contains configuration for the checkout service
type CheckoutServiceConfig struct {
	Currency string
	Now      func() time.Time
}

type checkoutService struct {
	carts      CartService
	cartRepo   repository.CartRepository
	holdRepo   repository.HoldRepository
	ticketRepo repository.TicketRepository
	holds      TicketHoldService
	gateway    gateway.PaymentGateway
	publisher  EventPublisher
	snapshots  *snapshotLoader
	currency   string
	now        func() time.Time
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	carts CartService,
	cartRepo repository.CartRepository,
	holdRepo repository.HoldRepository,
	ticketRepo repository.TicketRepository,
	catalogRepo repository.CatalogRepository,
	holds TicketHoldService,
	paymentGateway gateway.PaymentGateway,
	publisher EventPublisher,
	cfg *CheckoutServiceConfig,
) CheckoutService {
	currency := "jpy"
	now := time.Now
	if cfg != nil {
		if cfg.Currency != "" {
			currency = cfg.Currency
		}
		if cfg.Now != nil {
			now = cfg.Now
		}
	}
	if publisher == nil {
		publisher = NewNoOpEventPublisher()
	}
	return &checkoutService{
		carts:      carts,
		cartRepo:   cartRepo,
		holdRepo:   holdRepo,
		ticketRepo: ticketRepo,
		holds:      holds,
		gateway:    paymentGateway,
		publisher:  publisher,
		snapshots:  &snapshotLoader{tickets: ticketRepo, catalog: catalogRepo},
		currency:   currency,
		now:        now,
	}
}

func (s *checkoutService) StartPayment(ctx context.Context, userID string) (*PaymentStart, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.checkout.start_payment")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", userID))

	cart, err := s.cartRepo.Get(ctx, userID)
	if errors.Is(err, domain.ErrCartNotFound) {
		return nil, domain.ErrEmptyCart
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	po, tickets, err := s.snapshots.purchaseOrder(ctx, cart)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if cart.ChargeID != "" {
		if err := s.gateway.CancelCharge(ctx, cart.ChargeID); err != nil {
			logger.Get().WarnContext(ctx, "failed to cancel superseded charge",
				zap.String("charge_id", cart.ChargeID),
				zap.Error(err),
			)
		}
	}

	charge, err := s.gateway.CreateCharge(ctx, &gateway.ChargeRequest{
		Amount:      po.Total,
		Currency:    s.currency,
		UserID:      userID,
		Description: fmt.Sprintf("seat sale %s", po.SeatSaleID),
		Metadata:    map[string]string{"seat_sale_id": po.SeatSaleID},
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("charge_id", charge.ID))

	var toHold []string
	for _, t := range tickets {
		if t.Status == domain.TicketAvailable {
			toHold = append(toHold, t.ID)
		}
	}
	if len(toHold) > 0 {
		if err := s.ticketRepo.UpdateStatus(ctx, toHold, domain.TransitionHold); err != nil {
			s.cancelQuietly(ctx, charge.ID)
			telemetry.RecordError(span, err)
			return nil, err
		}
	}

	// re-extends every hold and fails with ErrHoldLost when one expired
	if err := s.carts.ReplaceCartChargeID(ctx, userID, charge.ID); err != nil {
		revertPaymentHolds(ctx, s.ticketRepo, toHold)
		s.cancelQuietly(ctx, charge.ID)
		telemetry.RecordError(span, err)
		return nil, err
	}

	metrics.RecordPaymentStarted(ctx, po.SeatSaleID)
	span.SetStatus(codes.Ok, "")
	return &PaymentStart{Charge: charge, PurchaseOrder: po}, nil
}

func (s *checkoutService) CapturePayment(ctx context.Context, userID, chargeID string) (*domain.Order, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.checkout.capture_payment")
	defer span.End()
	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("charge_id", chargeID),
	)
	started := s.now()

	cart, err := s.cartRepo.Get(ctx, userID)
	if errors.Is(err, domain.ErrCartNotFound) {
		// a purchase deletes the cart; a replay of its charge is a duplicate
		if order, oerr := s.ticketRepo.GetOrderByChargeID(ctx, chargeID); oerr == nil && order.UserID == userID {
			metrics.RecordDuplicateCapture(ctx)
			return nil, domain.ErrDuplicateCapture
		}
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	switch cart.ChargeID {
	case "":
		return nil, domain.ErrChargeNotStarted
	case chargeID:
	default:
		return nil, domain.ErrChargeMismatch
	}

	// only the cart owner reaches the guard
	locked, err := s.holdRepo.AcquireCaptureLock(ctx, chargeID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !locked {
		metrics.RecordDuplicateCapture(ctx)
		span.SetStatus(codes.Error, "duplicate capture")
		return nil, domain.ErrDuplicateCapture
	}
	keepGuard := false
	defer func() {
		if !keepGuard {
			s.releaseCaptureGuard(ctx, chargeID)
		}
	}()

	if _, err := s.ticketRepo.GetOrderByChargeID(ctx, chargeID); err == nil {
		keepGuard = true
		metrics.RecordDuplicateCapture(ctx)
		return nil, domain.ErrDuplicateCapture
	} else if !errors.Is(err, domain.ErrOrderNotFound) {
		telemetry.RecordError(span, err)
		return nil, err
	}

	for _, id := range cart.TicketIDs() {
		ok, err := s.holds.IsTemporaryOwner(ctx, id, userID, 0)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		if !ok {
			s.cancelQuietly(ctx, chargeID)
			return nil, fmt.Errorf("ticket %s: %w", id, domain.ErrHoldLost)
		}
	}

	po, _, err := s.snapshots.purchaseOrder(ctx, cart)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if _, err := s.gateway.CaptureCharge(ctx, chargeID); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to capture charge %s: %w", chargeID, err)
	}
	// the provider has taken the money; this charge id is spent from here on
	keepGuard = true

	order, params := s.buildSale(userID, chargeID, cart, po)
	if err := s.ticketRepo.SellTickets(ctx, params); err != nil {
		logger.Get().ErrorContext(ctx, "sale failed after charge capture",
			zap.String("charge_id", chargeID),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		s.refundFailedSale(ctx, userID, chargeID, cart)
		telemetry.RecordError(span, err)
		return nil, err
	}

	// the sale is committed; cleanup failures only delay TTL expiry
	cleanupCtx := context.WithoutCancel(ctx)
	for _, id := range cart.TicketIDs() {
		if err := s.holds.Release(cleanupCtx, id, userID); err != nil {
			logger.Get().WarnContext(ctx, "failed to release sold ticket hold",
				zap.String("ticket_id", id),
				zap.Error(err),
			)
		}
	}
	if err := s.cartRepo.Delete(cleanupCtx, userID); err != nil {
		logger.Get().WarnContext(ctx, "failed to delete purchased cart", zap.String("user_id", userID), zap.Error(err))
	}

	event := domain.NewTicketEvent(domain.TicketEventSold, uuid.NewString(), order, cart.TicketIDs(), "")
	if err := s.publisher.Publish(cleanupCtx, event); err != nil {
		logger.Get().ErrorContext(ctx, "failed to publish ticket sold event",
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
	}

	metrics.RecordCapture(ctx, order.SeatSaleID, len(params.Reserves), s.now().Sub(started).Seconds())
	span.SetAttributes(attribute.String("order_id", order.ID))
	span.SetStatus(codes.Ok, "")
	return order, nil
}

func (s *checkoutService) buildSale(userID, chargeID string, cart *domain.Cart, po *pricing.PurchaseOrder) (*domain.Order, repository.SaleParams) {
	now := s.now()
	order := &domain.Order{
		ID:               uuid.NewString(),
		UserID:           userID,
		Kind:             domain.OrderPurchase,
		SeatSaleID:       po.SeatSaleID,
		Subtotal:         po.Subtotal,
		CouponDiscount:   po.CouponDiscount,
		CampaignDiscount: po.CampaignDiscount,
		Total:            po.Total,
		ChargeID:         chargeID,
		CouponID:         po.CouponID,
		CampaignID:       po.CampaignID,
		OrderedAt:        now,
	}

	params := repository.SaleParams{
		Transition:     domain.TransitionSell,
		Order:          order,
		AdmissionCodes: make(map[string]string, len(cart.Selections)),
	}
	for _, sel := range cart.Selections {
		params.Reserves = append(params.Reserves, &domain.TicketReserve{
			ID:               uuid.NewString(),
			OrderID:          order.ID,
			TicketID:         sel.TicketID,
			SeatTypeOptionID: sel.OptionID,
			CreatedAt:        now,
		})
		params.AdmissionCodes[sel.TicketID] = uuid.NewString()
	}
	return order, params
}

func (s *checkoutService) AbortPayment(ctx context.Context, userID, chargeID string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.checkout.abort_payment")
	defer span.End()
	span.SetAttributes(attribute.String("charge_id", chargeID))

	cart, err := s.cartRepo.Get(ctx, userID)
	if err != nil {
		return err
	}
	switch cart.ChargeID {
	case "":
		return domain.ErrChargeNotStarted
	case chargeID:
	default:
		return domain.ErrChargeMismatch
	}

	if err := s.gateway.CancelCharge(ctx, chargeID); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	revertPaymentHolds(ctx, s.ticketRepo, cart.TicketIDs())

	// holds and cart keep sharing one TTL; a cart whose holds already
	// lapsed is dropped instead
	err = s.carts.ReplaceCartChargeID(ctx, userID, "")
	if errors.Is(err, domain.ErrHoldLost) {
		err = s.carts.ClearHoldTickets(ctx, userID)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	metrics.RecordAbort(ctx)
	return nil
}

// refundFailedSale returns the money of a sale that did not commit and
// detaches the spent charge so the buyer can start payment again
func (s *checkoutService) refundFailedSale(ctx context.Context, userID, chargeID string, cart *domain.Cart) {
	ctx = context.WithoutCancel(ctx)
	if err := s.gateway.RefundCharge(ctx, chargeID); err != nil {
		logger.Get().ErrorContext(ctx, "failed to refund charge of failed sale",
			zap.String("charge_id", chargeID),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return
	}
	metrics.RecordRefund(ctx)
	revertPaymentHolds(ctx, s.ticketRepo, cart.TicketIDs())

	err := s.carts.ReplaceCartChargeID(ctx, userID, "")
	if errors.Is(err, domain.ErrHoldLost) {
		err = s.carts.ClearHoldTickets(ctx, userID)
	}
	if err != nil {
		logger.Get().WarnContext(ctx, "failed to detach refunded charge", zap.String("charge_id", chargeID), zap.Error(err))
	}
}

func (s *checkoutService) releaseCaptureGuard(ctx context.Context, chargeID string) {
	if err := s.holdRepo.ReleaseCaptureLock(context.WithoutCancel(ctx), chargeID); err != nil {
		logger.Get().WarnContext(ctx, "failed to release capture guard", zap.String("charge_id", chargeID), zap.Error(err))
	}
}

func (s *checkoutService) cancelQuietly(ctx context.Context, chargeID string) {
	if err := s.gateway.CancelCharge(context.WithoutCancel(ctx), chargeID); err != nil {
		logger.Get().WarnContext(ctx, "failed to cancel charge", zap.String("charge_id", chargeID), zap.Error(err))
	}
}
