package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockGateway_CaptureFlow(t *testing.T) {
	g := NewMockGateway(nil)
	ctx := context.Background()

	ch, err := g.CreateCharge(ctx, &ChargeRequest{Amount: 1800, Currency: "jpy", UserID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "requires_capture", ch.Status)
	assert.Contains(t, ch.ClientSecret, ch.ID)

	captured, err := g.CaptureCharge(ctx, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, "succeeded", captured.Status)
	assert.Equal(t, int64(1800), captured.Amount)

	// capturing again returns the same result
	_, err = g.CaptureCharge(ctx, ch.ID)
	assert.NoError(t, err)

	assert.Error(t, g.CancelCharge(ctx, ch.ID))
}

func TestMockGateway_Declined(t *testing.T) {
	g := NewMockGateway(&MockGatewayConfig{SuccessRate: 0})
	ctx := context.Background()

	ch, err := g.CreateCharge(ctx, &ChargeRequest{Amount: 100})
	require.NoError(t, err)

	_, err = g.CaptureCharge(ctx, ch.ID)
	assert.ErrorIs(t, err, ErrChargeDeclined)
}

func TestMockGateway_Cancel(t *testing.T) {
	g := NewMockGateway(nil)
	ctx := context.Background()

	ch, err := g.CreateCharge(ctx, &ChargeRequest{Amount: 100})
	require.NoError(t, err)
	require.NoError(t, g.CancelCharge(ctx, ch.ID))
	assert.Equal(t, "canceled", g.Status(ch.ID))

	_, err = g.CaptureCharge(ctx, ch.ID)
	assert.ErrorIs(t, err, ErrChargeDeclined)

	assert.ErrorIs(t, g.CancelCharge(ctx, "pi_unknown"), ErrChargeNotFound)
	_, err = g.CaptureCharge(ctx, "pi_unknown")
	assert.ErrorIs(t, err, ErrChargeNotFound)
}

func TestMockGateway_DelayHonoursContext(t *testing.T) {
	g := NewMockGateway(&MockGatewayConfig{SuccessRate: 1, Delay: time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := g.CreateCharge(ctx, &ChargeRequest{Amount: 100})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMockGateway_Refund(t *testing.T) {
	g := NewMockGateway(nil)
	ctx := context.Background()

	ch, err := g.CreateCharge(ctx, &ChargeRequest{Amount: 100})
	require.NoError(t, err)

	// only captured charges can be refunded
	assert.Error(t, g.RefundCharge(ctx, ch.ID))

	_, err = g.CaptureCharge(ctx, ch.ID)
	require.NoError(t, err)
	require.NoError(t, g.RefundCharge(ctx, ch.ID))
	assert.Equal(t, "refunded", g.Status(ch.ID))

	assert.Error(t, g.RefundCharge(ctx, ch.ID))
	assert.ErrorIs(t, g.RefundCharge(ctx, "pi_unknown"), ErrChargeNotFound)
}
