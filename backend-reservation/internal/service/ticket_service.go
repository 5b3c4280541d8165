package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/domain"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/metrics"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/repository"
	"github.com/prohmpiriya/seat-rush/pkg/logger"
	"github.com/prohmpiriya/seat-rush/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// TicketService runs the ownership and sale-status transitions of sold
// and stocked tickets
type TicketService interface {
	GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error)

	// OfferTransfer issues a single-use transfer token for an owned ticket
	OfferTransfer(ctx context.Context, userID, ticketID string) (string, error)

	// CancelTransfer withdraws the outstanding token and reissues the admission code
	CancelTransfer(ctx context.Context, userID, ticketID string) error

	// ReceiveTransfer redeems a token, making receiverID the owner
	ReceiveTransfer(ctx context.Context, receiverID, token string) (*domain.Order, error)

	// AdminTransfer grants a stopped ticket, with the rest of its unit, to userID
	AdminTransfer(ctx context.Context, ticketID, userID string) (*domain.Order, error)

	// StopSelling withdraws a ticket and the rest of its unit from sale
	StopSelling(ctx context.Context, ticketID string) error

	// ResumeSelling puts a withdrawn ticket and the rest of its unit back on sale
	ResumeSelling(ctx context.Context, ticketID string) error
}

// TicketServiceConfig contains configuration for the ticket service
type TicketServiceConfig struct {
	Now func() time.Time
}

type ticketService struct {
	ticketRepo  repository.TicketRepository
	catalogRepo repository.CatalogRepository
	holdRepo    repository.HoldRepository
	publisher   EventPublisher
	now         func() time.Time
}

// NewTicketService creates a new ticket service
func NewTicketService(
	ticketRepo repository.TicketRepository,
	catalogRepo repository.CatalogRepository,
	holdRepo repository.HoldRepository,
	publisher EventPublisher,
	cfg *TicketServiceConfig,
) TicketService {
	now := time.Now
	if cfg != nil && cfg.Now != nil {
		now = cfg.Now
	}
	if publisher == nil {
		publisher = NewNoOpEventPublisher()
	}
	return &ticketService{
		ticketRepo:  ticketRepo,
		catalogRepo: catalogRepo,
		holdRepo:    holdRepo,
		publisher:   publisher,
		now:         now,
	}
}

func (s *ticketService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return s.ticketRepo.GetByID(ctx, ticketID)
}

// load returns the ticket and its seat sale
func (s *ticketService) load(ctx context.Context, ticketID string) (*domain.Ticket, *domain.SeatSale, error) {
	t, err := s.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	sale, err := s.catalogRepo.GetSeatSale(ctx, t.SeatSaleID)
	if err != nil {
		return nil, nil, err
	}
	return t, sale, nil
}

// unitOf expands a ticket to every seat of its unit
func (s *ticketService) unitOf(ctx context.Context, t *domain.Ticket) ([]*domain.Ticket, error) {
	if !t.InUnit() {
		return []*domain.Ticket{t}, nil
	}
	return s.ticketRepo.GetByUnitID(ctx, t.SeatUnitID)
}

func (s *ticketService) OfferTransfer(ctx context.Context, userID, ticketID string) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.ticket.offer_transfer")
	defer span.End()
	span.SetAttributes(attribute.String("ticket_id", ticketID))

	t, sale, err := s.load(ctx, ticketID)
	if err != nil {
		telemetry.RecordError(span, err)
		return "", err
	}
	if err := t.CheckOfferTransfer(userID, sale, s.now()); err != nil {
		telemetry.RecordError(span, err)
		return "", err
	}

	token := uuid.NewString()
	if err := s.ticketRepo.IssueTransferToken(ctx, t.ID, userID, token); err != nil {
		telemetry.RecordError(span, err)
		return "", err
	}
	return token, nil
}

func (s *ticketService) CancelTransfer(ctx context.Context, userID, ticketID string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.ticket.cancel_transfer")
	defer span.End()
	span.SetAttributes(attribute.String("ticket_id", ticketID))

	t, err := s.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		return err
	}
	if err := t.CheckCancelTransfer(userID); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	// the old admission code may have been shared along with the token
	return s.ticketRepo.CancelTransferToken(ctx, t.ID, userID, t.TransferToken, uuid.NewString())
}

func (s *ticketService) ReceiveTransfer(ctx context.Context, receiverID, token string) (*domain.Order, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.ticket.receive_transfer")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", receiverID))

	t, err := s.ticketRepo.GetByTransferToken(ctx, token)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("ticket_id", t.ID))

	sale, err := s.catalogRepo.GetSeatSale(ctx, t.SeatSaleID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := t.CheckReceiveTransfer(receiverID, sale, now); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	prior, err := s.ticketRepo.GetCurrentReserve(ctx, t.ID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	order := &domain.Order{
		ID:         uuid.NewString(),
		UserID:     receiverID,
		Kind:       domain.OrderTransfer,
		SeatSaleID: t.SeatSaleID,
		OrderedAt:  now,
	}
	params := repository.TransferParams{
		TicketID:       t.ID,
		FromUserID:     t.UserID,
		TransferToken:  token,
		PriorReserveID: prior.ID,
		Order:          order,
		Reserve: &domain.TicketReserve{
			ID:                    uuid.NewString(),
			OrderID:               order.ID,
			TicketID:              t.ID,
			SeatTypeOptionID:      prior.SeatTypeOptionID,
			TransferFromReserveID: prior.ID,
			CreatedAt:             now,
		},
		AdmissionCode: uuid.NewString(),
	}
	if err := s.ticketRepo.ApplyTransfer(ctx, params); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publish(ctx, domain.NewTicketEvent(domain.TicketEventTransferred, uuid.NewString(), order, []string{t.ID}, t.UserID))
	metrics.RecordTransfer(ctx, string(domain.OrderTransfer), 1)
	span.SetStatus(codes.Ok, "")
	return order, nil
}

func (s *ticketService) AdminTransfer(ctx context.Context, ticketID, userID string) (*domain.Order, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.ticket.admin_transfer")
	defer span.End()
	span.SetAttributes(
		attribute.String("ticket_id", ticketID),
		attribute.String("user_id", userID),
	)

	t, sale, err := s.load(ctx, ticketID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	seats, err := s.unitOf(ctx, t)
	if err != nil {
		return nil, err
	}

	now := s.now()
	for _, seat := range seats {
		if err := seat.CheckAdminTransfer(sale, now); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
	}

	order := &domain.Order{
		ID:         uuid.NewString(),
		UserID:     userID,
		Kind:       domain.OrderAdminTransfer,
		SeatSaleID: sale.ID,
		OrderedAt:  now,
	}
	params := repository.SaleParams{
		Transition:     domain.TransitionAdminTransfer,
		Order:          order,
		AdmissionCodes: make(map[string]string, len(seats)),
	}
	ids := make([]string, 0, len(seats))
	for _, seat := range seats {
		params.Reserves = append(params.Reserves, &domain.TicketReserve{
			ID:        uuid.NewString(),
			OrderID:   order.ID,
			TicketID:  seat.ID,
			CreatedAt: now,
		})
		params.AdmissionCodes[seat.ID] = uuid.NewString()
		ids = append(ids, seat.ID)
	}
	if err := s.ticketRepo.SellTickets(ctx, params); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publish(ctx, domain.NewTicketEvent(domain.TicketEventAdminTransferred, uuid.NewString(), order, ids, ""))
	metrics.RecordTransfer(ctx, string(domain.OrderAdminTransfer), len(ids))
	span.SetStatus(codes.Ok, "")
	return order, nil
}

func (s *ticketService) StopSelling(ctx context.Context, ticketID string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.ticket.stop_selling")
	defer span.End()
	span.SetAttributes(attribute.String("ticket_id", ticketID))

	t, sale, err := s.load(ctx, ticketID)
	if err != nil {
		return err
	}
	seats, err := s.unitOf(ctx, t)
	if err != nil {
		return err
	}

	now := s.now()
	ids := make([]string, 0, len(seats))
	for _, seat := range seats {
		owner, err := s.holdRepo.TemporaryOwner(ctx, seat.ID)
		if err != nil {
			return err
		}
		if seat.Status == domain.TicketTemporaryHold && owner == "" {
			// the payment was abandoned and its hold expired
			if err := s.ticketRepo.UpdateStatus(ctx, []string{seat.ID}, domain.TransitionReleaseHold); err != nil {
				telemetry.RecordError(span, err)
				return err
			}
			seat.Status = domain.TicketAvailable
		}
		if err := seat.CheckStopSelling(sale, owner != "", now); err != nil {
			telemetry.RecordError(span, err)
			return err
		}
		ids = append(ids, seat.ID)
	}
	return s.ticketRepo.UpdateStatus(ctx, ids, domain.TransitionStopSelling)
}

func (s *ticketService) ResumeSelling(ctx context.Context, ticketID string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.ticket.resume_selling")
	defer span.End()
	span.SetAttributes(attribute.String("ticket_id", ticketID))

	t, sale, err := s.load(ctx, ticketID)
	if err != nil {
		return err
	}
	seats, err := s.unitOf(ctx, t)
	if err != nil {
		return err
	}

	now := s.now()
	ids := make([]string, 0, len(seats))
	for _, seat := range seats {
		if err := seat.CheckResumeSelling(sale, now); err != nil {
			telemetry.RecordError(span, err)
			return err
		}
		ids = append(ids, seat.ID)
	}
	return s.ticketRepo.UpdateStatus(ctx, ids, domain.TransitionResumeSelling)
}

// publish runs after commit; a lost event never undoes the transition
func (s *ticketService) publish(ctx context.Context, event *domain.TicketEvent) {
	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		logger.Get().ErrorContext(ctx, "failed to publish ticket event",
			zap.String("event_type", string(event.EventType)),
			zap.String("order_id", event.OrderID),
			zap.Error(err),
		)
	}
}
