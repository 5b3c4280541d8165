package service

import (
	"context"
	"testing"
	"time"

	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/domain"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSelectionValidator is a mock implementation of SelectionValidator
type MockSelectionValidator struct {
	mock.Mock
}

func (m *MockSelectionValidator) Validate(ctx context.Context, userID string, input *CartInput) (domain.ErrorCode, error) {
	args := m.Called(ctx, userID, input)
	return args.Get(0).(domain.ErrorCode), args.Error(1)
}

func TestCartService_ReplaceTickets(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	code, err := e.carts.ReplaceTickets(ctx, "alice", &CartInput{Selections: selections("t3", "t1")})
	require.NoError(t, err)
	assert.Equal(t, domain.CodeNone, code)

	cart, err := e.carts.GetCart(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t3"}, cart.TicketIDs())
	assert.Equal(t, "alice", e.owner("t1"))
	assert.Equal(t, "alice", e.owner("t3"))
	assert.Equal(t, domain.CartTTL, e.mr.TTL("cart:alice"))
}

func TestCartService_ReplaceTickets_AllOrNothing(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	code, err := e.carts.ReplaceTickets(ctx, "bob", &CartInput{Selections: selections("t2")})
	require.NoError(t, err)
	require.Equal(t, domain.CodeNone, code)

	code, err = e.carts.ReplaceTickets(ctx, "alice", &CartInput{Selections: selections("t1", "t2", "t3")})
	require.NoError(t, err)
	assert.Equal(t, domain.CodeTicketNotAvailable, code)

	// t1 was claimed first and released again; t3 was never tried
	assert.Empty(t, e.owner("t1"))
	assert.Equal(t, "bob", e.owner("t2"))
	assert.Empty(t, e.owner("t3"))

	_, err = e.carts.GetCart(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrCartNotFound)
}

func TestCartService_ReplaceTickets_ReleasesPreviousSelection(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.carts.ReplaceTickets(ctx, "alice", &CartInput{Selections: selections("t1", "t2")})
	require.NoError(t, err)

	code, err := e.carts.ReplaceTickets(ctx, "alice", &CartInput{Selections: selections("t2", "t3")})
	require.NoError(t, err)
	assert.Equal(t, domain.CodeNone, code)

	assert.Empty(t, e.owner("t1"))
	assert.Equal(t, "alice", e.owner("t2"))
	assert.Equal(t, "alice", e.owner("t3"))
}

func TestCartService_ReplaceTickets_RejectionKeepsNothingClaimed(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	v := new(MockSelectionValidator)
	v.On("Validate", mock.Anything, "alice", mock.Anything).Return(domain.CodeTooManyTickets, nil)
	carts := NewCartService(e.cartRepo, e.tickets, e.catalog, e.holds, v, e.gateway, &CartServiceConfig{Now: clock})

	code, err := carts.ReplaceTickets(ctx, "alice", &CartInput{Selections: selections("t1")})
	require.NoError(t, err)
	assert.Equal(t, domain.CodeTooManyTickets, code)
	assert.Empty(t, e.owner("t1"))
	v.AssertExpectations(t)
}

func TestCartService_ReplaceTickets_RevertsDurableHolds(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.carts.ReplaceTickets(ctx, "alice", &CartInput{Selections: selections("t1")})
	require.NoError(t, err)
	require.NoError(t, e.tickets.UpdateStatus(ctx, []string{"t1"}, domain.TransitionHold))
	require.NoError(t, e.carts.ReplaceCartChargeID(ctx, "alice", "pi_1"))

	_, err = e.carts.ReplaceTickets(ctx, "alice", &CartInput{Selections: selections("t2")})
	require.NoError(t, err)

	assert.Equal(t, domain.TicketAvailable, e.tickets.get("t1").Status)
	assert.Empty(t, e.owner("t1"))
}

func TestCartService_ReleasingCartCancelsCharge(t *testing.T) {
	tests := []struct {
		name    string
		release func(ctx context.Context, e *env) error
	}{
		{"reselect", func(ctx context.Context, e *env) error {
			_, err := e.carts.ReplaceTickets(ctx, "alice", &CartInput{Selections: selections("t2")})
			return err
		}},
		{"clear", func(ctx context.Context, e *env) error {
			return e.carts.ClearHoldTickets(ctx, "alice")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			ctx := context.Background()

			_, err := e.carts.ReplaceTickets(ctx, "alice", &CartInput{Selections: selections("t1")})
			require.NoError(t, err)
			charge, err := e.gateway.CreateCharge(ctx, &gateway.ChargeRequest{Amount: 2000, Currency: "jpy", UserID: "alice"})
			require.NoError(t, err)
			require.NoError(t, e.tickets.UpdateStatus(ctx, []string{"t1"}, domain.TransitionHold))
			require.NoError(t, e.carts.ReplaceCartChargeID(ctx, "alice", charge.ID))

			require.NoError(t, tt.release(ctx, e))
			assert.Equal(t, "canceled", e.gateway.Status(charge.ID))
			assert.Equal(t, domain.TicketAvailable, e.tickets.get("t1").Status)
		})
	}
}

func TestCartService_ClearHoldTickets(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	// no cart is not an error
	require.NoError(t, e.carts.ClearHoldTickets(ctx, "alice"))

	_, err := e.carts.ReplaceTickets(ctx, "alice", &CartInput{Selections: selections("t1", "t2")})
	require.NoError(t, err)

	require.NoError(t, e.carts.ClearHoldTickets(ctx, "alice"))
	assert.Empty(t, e.owner("t1"))
	assert.Empty(t, e.owner("t2"))
	assert.False(t, e.mr.Exists("cart:alice"))
}

func TestCartService_ReplaceCartChargeID(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.carts.ReplaceTickets(ctx, "alice", &CartInput{Selections: selections("t1")})
	require.NoError(t, err)

	e.mr.FastForward(5 * time.Minute)
	require.NoError(t, e.carts.ReplaceCartChargeID(ctx, "alice", "pi_1"))

	cart, err := e.carts.GetCart(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "pi_1", cart.ChargeID)
	assert.Equal(t, domain.CartTTL, e.mr.TTL("ticket:temporary_owner:t1"))
	assert.Equal(t, domain.CartTTL, e.mr.TTL("cart:alice"))
}

func TestCartService_ReplaceCartChargeID_HoldLost(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.carts.ReplaceTickets(ctx, "alice", &CartInput{Selections: selections("t1")})
	require.NoError(t, err)
	e.mr.Del("ticket:temporary_owner:t1")

	err = e.carts.ReplaceCartChargeID(ctx, "alice", "pi_1")
	assert.ErrorIs(t, err, domain.ErrHoldLost)
}

func TestCartService_PurchaseOrder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.carts.PurchaseOrder(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrEmptyCart)

	code, err := e.carts.ReplaceTickets(ctx, "alice", &CartInput{
		Selections: []domain.Selection{{TicketID: "t1"}, {TicketID: "t2", OptionID: "opt-cushion"}},
		CouponID:   "coupon-10",
	})
	require.NoError(t, err)
	require.Equal(t, domain.CodeNone, code)

	po, err := e.carts.PurchaseOrder(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "sale-1", po.SeatSaleID)
	require.Len(t, po.Lines, 2)
	assert.Equal(t, int64(4300), po.Subtotal)
	// the option line is not discounted
	assert.Equal(t, int64(200), po.CouponDiscount)
	assert.Equal(t, int64(4100), po.Total)
	assert.Equal(t, "coupon-10", po.CouponID)
}
