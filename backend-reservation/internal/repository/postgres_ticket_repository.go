package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/domain"
	"github.com/prohmpiriya/seat-rush/pkg/database"
	"github.com/prohmpiriya/seat-rush/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const uniqueViolation = "23505"

const ticketColumns = `
	t.id, t.seat_sale_id, t.seat_type_id, t.seat_area_id, t.seat_unit_id,
	t.seat_row, t.seat_number, t.status, t.user_id, t.transfer_token,
	t.admission_code,
	EXISTS (SELECT 1 FROM admission_logs a WHERE a.ticket_id = t.id),
	t.updated_at
`

// PostgresTicketRepository implements TicketRepository using PostgreSQL with pgxpool
type PostgresTicketRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresTicketRepository creates a new PostgresTicketRepository
func NewPostgresTicketRepository(pool *pgxpool.Pool) *PostgresTicketRepository {
	return &PostgresTicketRepository{pool: pool, now: time.Now}
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	t := &domain.Ticket{}
	var (
		status        string
		unitID        *string
		userID        *string
		transferToken *string
		admissionCode *string
	)
	err := row.Scan(
		&t.ID, &t.SeatSaleID, &t.SeatTypeID, &t.SeatAreaID, &unitID,
		&t.Row, &t.SeatNumber, &status, &userID, &transferToken,
		&admissionCode, &t.AdmissionStarted, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Status = domain.TicketStatus(status)
	t.SeatUnitID = deref(unitID)
	t.UserID = deref(userID)
	t.TransferToken = deref(transferToken)
	t.AdmissionCode = deref(admissionCode)
	return t, nil
}

func (r *PostgresTicketRepository) getOne(ctx context.Context, spanName, where string, arg string, notFound error) (*domain.Ticket, error) {
	ctx, span := telemetry.StartSpan(ctx, spanName)
	defer span.End()

	query := `SELECT ` + ticketColumns + ` FROM tickets t WHERE ` + where
	t, err := scanTicket(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, notFound
		}
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	span.SetAttributes(attribute.String("ticket_id", t.ID))
	return t, nil
}

// GetByID retrieves a ticket by id
func (r *PostgresTicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.getOne(ctx, "repo.postgres.ticket.get_by_id", "t.id = $1", id, domain.ErrTicketNotFound)
}

// GetByTransferToken retrieves the ticket an outstanding token points at
func (r *PostgresTicketRepository) GetByTransferToken(ctx context.Context, token string) (*domain.Ticket, error) {
	return r.getOne(ctx, "repo.postgres.ticket.get_by_transfer_token", "t.transfer_token = $1", token, domain.ErrTransferTokenNotFound)
}

func (r *PostgresTicketRepository) getMany(ctx context.Context, spanName, where string, arg any) ([]*domain.Ticket, error) {
	ctx, span := telemetry.StartSpan(ctx, spanName)
	defer span.End()

	query := `SELECT ` + ticketColumns + ` FROM tickets t WHERE ` + where + ` ORDER BY t.id`
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to query tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*domain.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to iterate tickets: %w", err)
	}
	span.SetAttributes(attribute.Int("count", len(tickets)))
	return tickets, nil
}

// GetByIDs retrieves tickets by id, ordered by id
func (r *PostgresTicketRepository) GetByIDs(ctx context.Context, ids []string) ([]*domain.Ticket, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.getMany(ctx, "repo.postgres.ticket.get_by_ids", "t.id = ANY($1)", ids)
}

// GetByUnitID retrieves every seat of a unit
func (r *PostgresTicketRepository) GetByUnitID(ctx context.Context, unitID string) ([]*domain.Ticket, error) {
	return r.getMany(ctx, "repo.postgres.ticket.get_by_unit_id", "t.seat_unit_id = $1", unitID)
}

// GetCurrentReserve retrieves the tail of the ticket's reserve chain
func (r *PostgresTicketRepository) GetCurrentReserve(ctx context.Context, ticketID string) (*domain.TicketReserve, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.get_current_reserve")
	defer span.End()
	span.SetAttributes(attribute.String("ticket_id", ticketID))

	query := `
		SELECT id, order_id, ticket_id, seat_type_option_id,
			transfer_from_reserve_id, transfer_to_reserve_id, transferred_at, created_at
		FROM ticket_reserves
		WHERE ticket_id = $1 AND transfer_to_reserve_id IS NULL
	`

	res := &domain.TicketReserve{}
	var optionID, fromID, toID *string
	err := r.pool.QueryRow(ctx, query, ticketID).Scan(
		&res.ID, &res.OrderID, &res.TicketID, &optionID,
		&fromID, &toID, &res.TransferredAt, &res.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrTicketNotSold
		}
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to get current reserve: %w", err)
	}
	res.SeatTypeOptionID = deref(optionID)
	res.TransferFromReserveID = deref(fromID)
	res.TransferToReserveID = deref(toID)
	return res, nil
}

// GetOrderByChargeID retrieves the order paid by a charge
func (r *PostgresTicketRepository) GetOrderByChargeID(ctx context.Context, chargeID string) (*domain.Order, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.order.get_by_charge_id")
	defer span.End()
	span.SetAttributes(attribute.String("charge_id", chargeID))

	query := `
		SELECT id, user_id, kind, seat_sale_id, subtotal, coupon_discount,
			campaign_discount, total, charge_id, coupon_id, campaign_id, ordered_at
		FROM orders
		WHERE charge_id = $1
	`

	o := &domain.Order{}
	var kind string
	var charge, coupon, campaign *string
	err := r.pool.QueryRow(ctx, query, chargeID).Scan(
		&o.ID, &o.UserID, &kind, &o.SeatSaleID, &o.Subtotal, &o.CouponDiscount,
		&o.CampaignDiscount, &o.Total, &charge, &coupon, &campaign, &o.OrderedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrOrderNotFound
		}
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	o.Kind = domain.OrderKind(kind)
	o.ChargeID = deref(charge)
	o.CouponID = deref(coupon)
	o.CampaignID = deref(campaign)
	return o, nil
}

// UpdateStatus moves unowned tickets along a status-only transition.
// Either every ticket moves or none does.
func (r *PostgresTicketRepository) UpdateStatus(ctx context.Context, ids []string, transition domain.TicketTransition) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.update_status")
	defer span.End()
	span.SetAttributes(
		attribute.String("transition", string(transition)),
		attribute.Int("count", len(ids)),
	)

	from := make([]string, 0, len(transition.From()))
	for _, s := range transition.From() {
		from = append(from, string(s))
	}

	query := `
		UPDATE tickets SET status = $3, updated_at = $4
		WHERE id = ANY($1) AND status = ANY($2) AND user_id IS NULL
	`

	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query, ids, from, string(transition.Target()), r.now())
		if err != nil {
			return fmt.Errorf("failed to update ticket status: %w", err)
		}
		if tag.RowsAffected() != int64(len(ids)) {
			return fmt.Errorf("%s on %d of %d tickets: %w", transition, tag.RowsAffected(), len(ids), domain.ErrTransferConflict)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	return nil
}

func insertOrder(ctx context.Context, tx pgx.Tx, o *domain.Order) error {
	query := `
		INSERT INTO orders (
			id, user_id, kind, seat_sale_id, subtotal, coupon_discount,
			campaign_discount, total, charge_id, coupon_id, campaign_id, ordered_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := tx.Exec(ctx, query,
		o.ID, o.UserID, string(o.Kind), o.SeatSaleID, o.Subtotal, o.CouponDiscount,
		o.CampaignDiscount, o.Total, nullString(o.ChargeID), nullString(o.CouponID),
		nullString(o.CampaignID), o.OrderedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == "orders_charge_id_key" {
			return domain.ErrDuplicateCapture
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func insertReserve(ctx context.Context, tx pgx.Tx, res *domain.TicketReserve) error {
	query := `
		INSERT INTO ticket_reserves (
			id, order_id, ticket_id, seat_type_option_id,
			transfer_from_reserve_id, transferred_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := tx.Exec(ctx, query,
		res.ID, res.OrderID, res.TicketID, nullString(res.SeatTypeOptionID),
		nullString(res.TransferFromReserveID), res.TransferredAt, res.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("ticket %s already reserved: %w", res.TicketID, domain.ErrTransferConflict)
		}
		return fmt.Errorf("failed to insert ticket reserve: %w", err)
	}
	return nil
}

// SellTickets records an order and hands its tickets to the order's user
func (r *PostgresTicketRepository) SellTickets(ctx context.Context, p SaleParams) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.sell")
	defer span.End()
	span.SetAttributes(
		attribute.String("order_id", p.Order.ID),
		attribute.String("transition", string(p.Transition)),
		attribute.Int("count", len(p.Reserves)),
	)

	from := make([]string, 0, len(p.Transition.From()))
	for _, s := range p.Transition.From() {
		from = append(from, string(s))
	}

	update := `
		UPDATE tickets SET
			status = $2,
			user_id = $3,
			admission_code = $4,
			transfer_token = NULL,
			updated_at = $5
		WHERE id = $1 AND status = ANY($6) AND user_id IS NULL
	`

	useCoupon := `
		UPDATE user_coupons SET used_at = $3
		WHERE coupon_id = $1 AND user_id = $2 AND used_at IS NULL
	`

	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := insertOrder(ctx, tx, p.Order); err != nil {
			return err
		}
		if p.Order.CouponID != "" {
			tag, err := tx.Exec(ctx, useCoupon, p.Order.CouponID, p.Order.UserID, p.Order.OrderedAt)
			if err != nil {
				return fmt.Errorf("failed to mark coupon used: %w", err)
			}
			if tag.RowsAffected() != 1 {
				return domain.ErrCouponUsed
			}
		}
		for _, res := range p.Reserves {
			if err := insertReserve(ctx, tx, res); err != nil {
				return err
			}
			tag, err := tx.Exec(ctx, update,
				res.TicketID, string(p.Transition.Target()), p.Order.UserID,
				p.AdmissionCodes[res.TicketID], p.Order.OrderedAt, from,
			)
			if err != nil {
				return fmt.Errorf("failed to assign ticket: %w", err)
			}
			if tag.RowsAffected() != 1 {
				return fmt.Errorf("ticket %s: %w", res.TicketID, domain.ErrTransferConflict)
			}
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// IssueTransferToken stores a token on a sold ticket that has none
func (r *PostgresTicketRepository) IssueTransferToken(ctx context.Context, ticketID, ownerID, token string) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.issue_transfer_token")
	defer span.End()
	span.SetAttributes(attribute.String("ticket_id", ticketID))

	query := `
		UPDATE tickets SET transfer_token = $3, updated_at = $4
		WHERE id = $1 AND user_id = $2 AND status = 'sold' AND transfer_token IS NULL
			AND NOT EXISTS (SELECT 1 FROM admission_logs a WHERE a.ticket_id = $1)
	`
	tag, err := r.pool.Exec(ctx, query, ticketID, ownerID, token, r.now())
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("failed to issue transfer token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "guard miss")
		return domain.ErrTransferConflict
	}
	return nil
}

// CancelTransferToken withdraws an outstanding token
func (r *PostgresTicketRepository) CancelTransferToken(ctx context.Context, ticketID, ownerID, token, admissionCode string) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.cancel_transfer_token")
	defer span.End()
	span.SetAttributes(attribute.String("ticket_id", ticketID))

	query := `
		UPDATE tickets SET transfer_token = NULL, admission_code = $4, updated_at = $5
		WHERE id = $1 AND user_id = $2 AND transfer_token = $3
	`
	tag, err := r.pool.Exec(ctx, query, ticketID, ownerID, token, admissionCode, r.now())
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("failed to cancel transfer token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "guard miss")
		return domain.ErrTransferConflict
	}
	return nil
}

// ApplyTransfer creates the transfer order and reserve, links the prior
// reserve forward and moves the ticket to the receiver.
func (r *PostgresTicketRepository) ApplyTransfer(ctx context.Context, p TransferParams) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.apply_transfer")
	defer span.End()
	span.SetAttributes(
		attribute.String("ticket_id", p.TicketID),
		attribute.String("order_id", p.Order.ID),
	)

	linkPrior := `
		UPDATE ticket_reserves SET transfer_to_reserve_id = $2, transferred_at = $3
		WHERE id = $1 AND ticket_id = $4 AND transfer_to_reserve_id IS NULL
	`
	moveTicket := `
		UPDATE tickets SET
			user_id = $2,
			transfer_token = NULL,
			admission_code = $3,
			updated_at = $4
		WHERE id = $1 AND user_id = $5 AND transfer_token = $6 AND status = 'sold'
			AND NOT EXISTS (SELECT 1 FROM admission_logs a WHERE a.ticket_id = $1)
	`

	at := p.Order.OrderedAt
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := insertOrder(ctx, tx, p.Order); err != nil {
			return err
		}

		// The prior reserve leaves the current-reserve index before the new one enters
		tag, err := tx.Exec(ctx, linkPrior, p.PriorReserveID, p.Reserve.ID, at, p.TicketID)
		if err != nil {
			return fmt.Errorf("failed to link prior reserve: %w", err)
		}
		if tag.RowsAffected() != 1 {
			return fmt.Errorf("prior reserve %s: %w", p.PriorReserveID, domain.ErrTransferConflict)
		}

		if err := insertReserve(ctx, tx, p.Reserve); err != nil {
			return err
		}

		tag, err = tx.Exec(ctx, moveTicket, p.TicketID, p.Order.UserID, p.AdmissionCode, at, p.FromUserID, p.TransferToken)
		if err != nil {
			return fmt.Errorf("failed to move ticket: %w", err)
		}
		if tag.RowsAffected() != 1 {
			return fmt.Errorf("ticket %s: %w", p.TicketID, domain.ErrTransferConflict)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ TicketRepository = (*PostgresTicketRepository)(nil)
