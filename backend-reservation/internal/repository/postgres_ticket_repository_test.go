package repository

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipIfNoIntegration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run.")
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getPostgresPool connects to the test database and applies the schema
func getPostgresPool(t *testing.T) *pgxpool.Pool {
	skipIfNoIntegration(t)

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		getenv("TEST_POSTGRES_USER", "postgres"),
		getenv("TEST_POSTGRES_PASSWORD", "postgres"),
		getenv("TEST_POSTGRES_HOST", "localhost"),
		getenv("TEST_POSTGRES_PORT", "5432"),
		getenv("TEST_POSTGRES_DB", "seat_rush_test"),
	)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	require.NoError(t, pool.Ping(ctx))
	t.Cleanup(pool.Close)

	schema, err := os.ReadFile("../../migrations/0001_reservation.sql")
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(schema))
	require.NoError(t, err)

	return pool
}

type fixture struct {
	saleID     string
	seatTypeID string
	ticketIDs  []string
}

// seedSale inserts an on-sale seat sale with n available seats
func seedSale(t *testing.T, pool *pgxpool.Pool, n int) fixture {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	f := fixture{saleID: "test-sale-" + uuid.NewString(), seatTypeID: "test-type-" + uuid.NewString()}
	areaID := "test-area-" + uuid.NewString()

	_, err := pool.Exec(ctx, `INSERT INTO seat_sales (id, schedule_id, status, sales_start_at, sales_end_at)
		VALUES ($1, 'schedule-1', 'on_sale', $2, $3)`, f.saleID, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO seat_areas (id, name) VALUES ($1, 'A')`, areaID)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO seat_types (id, seat_sale_id, master_seat_type_id, name, price)
		VALUES ($1, $2, 'master-1', 'S', 2000)`, f.seatTypeID, f.saleID)
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		id := fmt.Sprintf("test-ticket-%s-%d", uuid.NewString(), i)
		_, err = pool.Exec(ctx, `INSERT INTO tickets (id, seat_sale_id, seat_type_id, seat_area_id, status, seat_number)
			VALUES ($1, $2, $3, $4, 'available', $5)`, id, f.saleID, f.seatTypeID, areaID, fmt.Sprint(i+1))
		require.NoError(t, err)
		f.ticketIDs = append(f.ticketIDs, id)
	}
	return f
}

func purchase(f fixture, userID, chargeID string, ticketIDs ...string) SaleParams {
	now := time.Now()
	order := &domain.Order{
		ID:         uuid.NewString(),
		UserID:     userID,
		Kind:       domain.OrderPurchase,
		SeatSaleID: f.saleID,
		Subtotal:   2000,
		Total:      2000,
		ChargeID:   chargeID,
		OrderedAt:  now,
	}
	p := SaleParams{Transition: domain.TransitionSell, Order: order, AdmissionCodes: map[string]string{}}
	for _, id := range ticketIDs {
		p.Reserves = append(p.Reserves, &domain.TicketReserve{ID: uuid.NewString(), OrderID: order.ID, TicketID: id, CreatedAt: now})
		p.AdmissionCodes[id] = uuid.NewString()
	}
	return p
}

func TestPostgresTicketRepository_SellTickets(t *testing.T) {
	pool := getPostgresPool(t)
	repo := NewPostgresTicketRepository(pool)
	ctx := context.Background()
	f := seedSale(t, pool, 2)

	chargeID := "ch_" + uuid.NewString()
	require.NoError(t, repo.SellTickets(ctx, purchase(f, "alice", chargeID, f.ticketIDs...)))

	tickets, err := repo.GetByIDs(ctx, f.ticketIDs)
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	for _, tk := range tickets {
		assert.Equal(t, domain.TicketSold, tk.Status)
		assert.Equal(t, "alice", tk.UserID)
		assert.NotEmpty(t, tk.AdmissionCode)
	}

	order, err := repo.GetOrderByChargeID(ctx, chargeID)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), order.Total)

	// a replayed capture hits the unique charge id
	err = repo.SellTickets(ctx, purchase(f, "alice", chargeID, f.ticketIDs...))
	assert.ErrorIs(t, err, domain.ErrDuplicateCapture)
}

func TestPostgresTicketRepository_SellTicketsAllOrNothing(t *testing.T) {
	pool := getPostgresPool(t)
	repo := NewPostgresTicketRepository(pool)
	ctx := context.Background()
	f := seedSale(t, pool, 2)

	require.NoError(t, repo.SellTickets(ctx, purchase(f, "alice", "ch_"+uuid.NewString(), f.ticketIDs[1])))

	err := repo.SellTickets(ctx, purchase(f, "bob", "ch_"+uuid.NewString(), f.ticketIDs...))
	assert.ErrorIs(t, err, domain.ErrTransferConflict)

	tk, err := repo.GetByID(ctx, f.ticketIDs[0])
	require.NoError(t, err)
	assert.Equal(t, domain.TicketAvailable, tk.Status, "failed sale must roll back every seat")
}

func TestPostgresTicketRepository_UpdateStatus(t *testing.T) {
	pool := getPostgresPool(t)
	repo := NewPostgresTicketRepository(pool)
	ctx := context.Background()
	f := seedSale(t, pool, 1)

	require.NoError(t, repo.UpdateStatus(ctx, f.ticketIDs, domain.TransitionStopSelling))
	err := repo.UpdateStatus(ctx, f.ticketIDs, domain.TransitionStopSelling)
	assert.ErrorIs(t, err, domain.ErrTransferConflict)

	require.NoError(t, repo.UpdateStatus(ctx, f.ticketIDs, domain.TransitionResumeSelling))
	tk, err := repo.GetByID(ctx, f.ticketIDs[0])
	require.NoError(t, err)
	assert.Equal(t, domain.TicketAvailable, tk.Status)
}

func TestPostgresTicketRepository_TransferChain(t *testing.T) {
	pool := getPostgresPool(t)
	repo := NewPostgresTicketRepository(pool)
	ctx := context.Background()
	f := seedSale(t, pool, 1)
	ticketID := f.ticketIDs[0]

	require.NoError(t, repo.SellTickets(ctx, purchase(f, "alice", "ch_"+uuid.NewString(), ticketID)))

	token := uuid.NewString()
	require.NoError(t, repo.IssueTransferToken(ctx, ticketID, "alice", token))
	assert.ErrorIs(t, repo.IssueTransferToken(ctx, ticketID, "alice", uuid.NewString()), domain.ErrTransferConflict)

	tk, err := repo.GetByTransferToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, ticketID, tk.ID)

	prior, err := repo.GetCurrentReserve(ctx, ticketID)
	require.NoError(t, err)

	now := time.Now()
	order := &domain.Order{ID: uuid.NewString(), UserID: "bob", Kind: domain.OrderTransfer, SeatSaleID: f.saleID, OrderedAt: now}
	params := TransferParams{
		TicketID:       ticketID,
		FromUserID:     "alice",
		TransferToken:  token,
		PriorReserveID: prior.ID,
		Order:          order,
		Reserve: &domain.TicketReserve{
			ID: uuid.NewString(), OrderID: order.ID, TicketID: ticketID,
			TransferFromReserveID: prior.ID, CreatedAt: now,
		},
		AdmissionCode: uuid.NewString(),
	}
	require.NoError(t, repo.ApplyTransfer(ctx, params))

	tk, err = repo.GetByID(ctx, ticketID)
	require.NoError(t, err)
	assert.Equal(t, "bob", tk.UserID)
	assert.Empty(t, tk.TransferToken)
	assert.Equal(t, params.AdmissionCode, tk.AdmissionCode)

	current, err := repo.GetCurrentReserve(ctx, ticketID)
	require.NoError(t, err)
	assert.Equal(t, params.Reserve.ID, current.ID)
	assert.Equal(t, prior.ID, current.TransferFromReserveID)

	// the same token cannot be redeemed twice
	params.Order = &domain.Order{ID: uuid.NewString(), UserID: "carol", Kind: domain.OrderTransfer, SeatSaleID: f.saleID, OrderedAt: now}
	params.Reserve = &domain.TicketReserve{ID: uuid.NewString(), OrderID: params.Order.ID, TicketID: ticketID, TransferFromReserveID: prior.ID, CreatedAt: now}
	assert.ErrorIs(t, repo.ApplyTransfer(ctx, params), domain.ErrTransferConflict)
}

func TestPostgresTicketRepository_CancelTransferToken(t *testing.T) {
	pool := getPostgresPool(t)
	repo := NewPostgresTicketRepository(pool)
	ctx := context.Background()
	f := seedSale(t, pool, 1)
	ticketID := f.ticketIDs[0]

	require.NoError(t, repo.SellTickets(ctx, purchase(f, "alice", "ch_"+uuid.NewString(), ticketID)))
	token := uuid.NewString()
	require.NoError(t, repo.IssueTransferToken(ctx, ticketID, "alice", token))

	assert.ErrorIs(t, repo.CancelTransferToken(ctx, ticketID, "bob", token, "x"), domain.ErrTransferConflict)
	require.NoError(t, repo.CancelTransferToken(ctx, ticketID, "alice", token, "new-code"))

	_, err := repo.GetByTransferToken(ctx, token)
	assert.ErrorIs(t, err, domain.ErrTransferTokenNotFound)
}

func TestPostgresCatalogRepository_SeatSale(t *testing.T) {
	pool := getPostgresPool(t)
	repo := NewPostgresCatalogRepository(pool)
	ctx := context.Background()
	f := seedSale(t, pool, 0)

	sale, err := repo.GetSeatSale(ctx, f.saleID)
	require.NoError(t, err)
	assert.True(t, sale.OnSale(time.Now()))
	assert.True(t, sale.AdmissionCloseAt.IsZero())

	types, err := repo.GetSeatTypes(ctx, []string{f.seatTypeID})
	require.NoError(t, err)
	assert.Equal(t, int64(2000), types[f.seatTypeID].Price)

	_, err = repo.GetSeatSale(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSeatSaleNotFound)
}
