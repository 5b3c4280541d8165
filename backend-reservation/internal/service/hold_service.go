package service

import (
	"context"
	"fmt"
	"time"

	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/domain"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/metrics"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/repository"
	"github.com/prohmpiriya/seat-rush/pkg/logger"
	"github.com/prohmpiriya/seat-rush/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// TicketHoldService owns the temporary-owner marker of each seat
type TicketHoldService interface {
	// TryReserve claims the seat for userID. false means another buyer
	// holds it or is claiming it right now; it never blocks.
	TryReserve(ctx context.Context, ticketID, userID string) (bool, error)

	// Release drops userID's hold. Absent or foreign holds are left alone.
	Release(ctx context.Context, ticketID, userID string) error

	// IsTemporaryOwner reports whether userID holds the seat, sliding the
	// hold to extendTTL when it is positive.
	IsTemporaryOwner(ctx context.Context, ticketID, userID string, extendTTL time.Duration) (bool, error)
}

type ticketHoldService struct {
	holdRepo repository.HoldRepository
	holdTTL  time.Duration
}

// NewTicketHoldService creates a new hold service
func NewTicketHoldService(holdRepo repository.HoldRepository, holdTTL time.Duration) TicketHoldService {
	if holdTTL <= 0 {
		holdTTL = domain.CartTTL
	}
	return &ticketHoldService{holdRepo: holdRepo, holdTTL: holdTTL}
}

func (s *ticketHoldService) TryReserve(ctx context.Context, ticketID, userID string) (bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.hold.try_reserve")
	defer span.End()
	span.SetAttributes(
		attribute.String("ticket_id", ticketID),
		attribute.String("user_id", userID),
	)

	owner, err := s.holdRepo.TemporaryOwner(ctx, ticketID)
	if err != nil {
		telemetry.RecordError(span, err)
		return false, err
	}
	if owner != "" && owner != userID {
		metrics.RecordClaim(ctx, false)
		return false, nil
	}

	locked, err := s.holdRepo.AcquireReserveLock(ctx, ticketID)
	if err != nil {
		telemetry.RecordError(span, err)
		return false, err
	}
	if !locked {
		metrics.RecordClaim(ctx, false)
		return false, nil
	}
	defer func() {
		// the lock TTL covers a failed delete
		if err := s.holdRepo.ReleaseReserveLock(context.WithoutCancel(ctx), ticketID); err != nil {
			logger.Get().WarnContext(ctx, "failed to release reserve lock",
				zap.String("ticket_id", ticketID),
				zap.Error(err),
			)
		}
	}()

	claimed, err := s.holdRepo.ClaimIfFree(ctx, ticketID, userID, s.holdTTL)
	if err != nil {
		telemetry.RecordError(span, err)
		return false, fmt.Errorf("failed to claim ticket %s: %w", ticketID, err)
	}
	metrics.RecordClaim(ctx, claimed)
	span.SetAttributes(attribute.Bool("claimed", claimed))
	return claimed, nil
}

func (s *ticketHoldService) Release(ctx context.Context, ticketID, userID string) error {
	released, err := s.holdRepo.ReleaseIfOwner(ctx, ticketID, userID)
	if err != nil {
		return err
	}
	if released {
		metrics.RecordRelease(ctx, 1)
	}
	return nil
}

func (s *ticketHoldService) IsTemporaryOwner(ctx context.Context, ticketID, userID string, extendTTL time.Duration) (bool, error) {
	return s.holdRepo.ExtendIfOwner(ctx, ticketID, userID, extendTTL)
}
