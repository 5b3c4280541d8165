package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/domain"
	"github.com/prohmpiriya/seat-rush/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// PostgresCatalogRepository implements CatalogRepository using PostgreSQL
type PostgresCatalogRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresCatalogRepository creates a new PostgresCatalogRepository
func NewPostgresCatalogRepository(pool *pgxpool.Pool) *PostgresCatalogRepository {
	return &PostgresCatalogRepository{pool: pool}
}

// GetSeatSale retrieves a seat sale by id
func (r *PostgresCatalogRepository) GetSeatSale(ctx context.Context, id string) (*domain.SeatSale, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.catalog.get_seat_sale")
	defer span.End()
	span.SetAttributes(attribute.String("seat_sale_id", id))

	query := `
		SELECT id, schedule_id, status, sales_start_at, sales_end_at, admission_close_at
		FROM seat_sales
		WHERE id = $1
	`

	s := &domain.SeatSale{}
	var status string
	var admissionClose *time.Time
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.ScheduleID, &status, &s.SalesStartAt, &s.SalesEndAt, &admissionClose,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSeatSaleNotFound
		}
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to get seat sale: %w", err)
	}
	s.Status = domain.SeatSaleStatus(status)
	if admissionClose != nil {
		s.AdmissionCloseAt = *admissionClose
	}
	return s, nil
}

// GetSeatTypes retrieves seat types keyed by id
func (r *PostgresCatalogRepository) GetSeatTypes(ctx context.Context, ids []string) (map[string]*domain.SeatType, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.catalog.get_seat_types")
	defer span.End()

	query := `
		SELECT id, seat_sale_id, master_seat_type_id, name, price
		FROM seat_types
		WHERE id = ANY($1)
	`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to query seat types: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*domain.SeatType, len(ids))
	for rows.Next() {
		st := &domain.SeatType{}
		if err := rows.Scan(&st.ID, &st.SeatSaleID, &st.MasterSeatTypeID, &st.Name, &st.Price); err != nil {
			return nil, fmt.Errorf("failed to scan seat type: %w", err)
		}
		out[st.ID] = st
	}
	return out, rows.Err()
}

// GetSeatTypeOptions retrieves seat type options keyed by id
func (r *PostgresCatalogRepository) GetSeatTypeOptions(ctx context.Context, ids []string) (map[string]*domain.SeatTypeOption, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.catalog.get_seat_type_options")
	defer span.End()

	out := make(map[string]*domain.SeatTypeOption, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query := `SELECT id, seat_type_id, title, price FROM seat_type_options WHERE id = ANY($1)`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to query seat type options: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		o := &domain.SeatTypeOption{}
		if err := rows.Scan(&o.ID, &o.SeatTypeID, &o.Title, &o.Price); err != nil {
			return nil, fmt.Errorf("failed to scan seat type option: %w", err)
		}
		out[o.ID] = o
	}
	return out, rows.Err()
}

// GetSeatAreas retrieves seat areas keyed by id
func (r *PostgresCatalogRepository) GetSeatAreas(ctx context.Context, ids []string) (map[string]*domain.SeatArea, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.catalog.get_seat_areas")
	defer span.End()

	rows, err := r.pool.Query(ctx, `SELECT id, name FROM seat_areas WHERE id = ANY($1)`, ids)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to query seat areas: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*domain.SeatArea, len(ids))
	for rows.Next() {
		a := &domain.SeatArea{}
		if err := rows.Scan(&a.ID, &a.Name); err != nil {
			return nil, fmt.Errorf("failed to scan seat area: %w", err)
		}
		out[a.ID] = a
	}
	return out, rows.Err()
}

// GetCoupon retrieves a coupon with its seat type conditions
func (r *PostgresCatalogRepository) GetCoupon(ctx context.Context, id string) (*domain.Coupon, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.catalog.get_coupon")
	defer span.End()
	span.SetAttributes(attribute.String("coupon_id", id))

	query := `
		SELECT c.id, c.title, c.rate, c.approved_at, c.available_end_at,
			COALESCE(array_agg(cond.master_seat_type_id) FILTER (WHERE cond.master_seat_type_id IS NOT NULL), '{}')
		FROM coupons c
		LEFT JOIN coupon_seat_type_conditions cond ON cond.coupon_id = c.id
		WHERE c.id = $1
		GROUP BY c.id
	`

	c := &domain.Coupon{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.Title, &c.Rate, &c.ApprovedAt, &c.AvailableEndAt, &c.MasterSeatTypeIDs,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCouponNotFound
		}
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}
	return c, nil
}

// IsCouponUsableByUser checks for an unused, approved, unexpired grant
func (r *PostgresCatalogRepository) IsCouponUsableByUser(ctx context.Context, couponID, userID string) (bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.catalog.is_coupon_usable")
	defer span.End()

	query := `
		SELECT EXISTS (
			SELECT 1 FROM user_coupons uc
			JOIN coupons c ON c.id = uc.coupon_id
			WHERE uc.coupon_id = $1 AND uc.user_id = $2 AND uc.used_at IS NULL
				AND c.approved_at IS NOT NULL AND c.available_end_at > now()
		)
	`
	var ok bool
	if err := r.pool.QueryRow(ctx, query, couponID, userID).Scan(&ok); err != nil {
		telemetry.RecordError(span, err)
		return false, fmt.Errorf("failed to check coupon: %w", err)
	}
	return ok, nil
}

// GetCampaignByCode retrieves a campaign by its public code
func (r *PostgresCatalogRepository) GetCampaignByCode(ctx context.Context, code string) (*domain.Campaign, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.catalog.get_campaign_by_code")
	defer span.End()
	span.SetAttributes(attribute.String("campaign_code", code))

	query := `SELECT id, code, rate, start_at, end_at, approved FROM campaigns WHERE code = $1`

	c := &domain.Campaign{}
	err := r.pool.QueryRow(ctx, query, code).Scan(&c.ID, &c.Code, &c.Rate, &c.StartAt, &c.EndAt, &c.Approved)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCampaignNotFound
		}
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return c, nil
}

var _ CatalogRepository = (*PostgresCatalogRepository)(nil)
