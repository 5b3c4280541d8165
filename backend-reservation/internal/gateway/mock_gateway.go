package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// alphanumericChars for generating Stripe-compatible IDs
const alphanumericChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomAlphanumeric(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = alphanumericChars[rand.Intn(len(alphanumericChars))]
	}
	return string(b)
}

// MockGateway implements PaymentGateway in memory for tests and local runs
type MockGateway struct {
	config  *MockGatewayConfig
	mu      sync.Mutex
	charges map[string]*Charge
}

// MockGatewayConfig holds configuration for the mock gateway
type MockGatewayConfig struct {
	// SuccessRate is the probability a capture succeeds (0.0 to 1.0)
	SuccessRate float64

	// Delay simulates provider latency
	Delay time.Duration
}

// DefaultMockGatewayConfig always captures, with no delay
func DefaultMockGatewayConfig() *MockGatewayConfig {
	return &MockGatewayConfig{SuccessRate: 1.0}
}

// NewMockGateway creates a new mock gateway
func NewMockGateway(config *MockGatewayConfig) *MockGateway {
	if config == nil {
		config = DefaultMockGatewayConfig()
	}
	if config.SuccessRate < 0 {
		config.SuccessRate = 0
	}
	if config.SuccessRate > 1 {
		config.SuccessRate = 1
	}
	return &MockGateway{config: config, charges: make(map[string]*Charge)}
}

func (g *MockGateway) wait(ctx context.Context) error {
	if g.config.Delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(g.config.Delay):
		return nil
	}
}

// CreateCharge records an authorized charge
func (g *MockGateway) CreateCharge(ctx context.Context, req *ChargeRequest) (*Charge, error) {
	if req == nil {
		return nil, fmt.Errorf("charge request is required")
	}
	if err := g.wait(ctx); err != nil {
		return nil, err
	}

	id := "pi_mock_" + randomAlphanumeric(24)
	ch := &Charge{
		ID:           id,
		ClientSecret: id + "_secret_" + randomAlphanumeric(24),
		Status:       "requires_capture",
		Amount:       req.Amount,
		Currency:     req.Currency,
	}

	g.mu.Lock()
	g.charges[id] = ch
	g.mu.Unlock()

	out := *ch
	return &out, nil
}

// CaptureCharge captures a recorded charge according to SuccessRate
func (g *MockGateway) CaptureCharge(ctx context.Context, chargeID string) (*Charge, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	ch, ok := g.charges[chargeID]
	if !ok {
		return nil, ErrChargeNotFound
	}
	switch ch.Status {
	case "succeeded":
		out := *ch
		return &out, nil
	case "canceled":
		return nil, fmt.Errorf("%w: charge canceled", ErrChargeDeclined)
	}
	if rand.Float64() >= g.config.SuccessRate {
		return nil, ErrChargeDeclined
	}
	ch.Status = "succeeded"
	out := *ch
	return &out, nil
}

// CancelCharge voids a recorded charge
func (g *MockGateway) CancelCharge(ctx context.Context, chargeID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	ch, ok := g.charges[chargeID]
	if !ok {
		return ErrChargeNotFound
	}
	if ch.Status == "succeeded" {
		return fmt.Errorf("charge %s already captured", chargeID)
	}
	ch.Status = "canceled"
	return nil
}

// RefundCharge marks a captured charge refunded
func (g *MockGateway) RefundCharge(ctx context.Context, chargeID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	ch, ok := g.charges[chargeID]
	if !ok {
		return ErrChargeNotFound
	}
	if ch.Status != "succeeded" {
		return fmt.Errorf("charge %s is %s, not captured", chargeID, ch.Status)
	}
	ch.Status = "refunded"
	return nil
}

// Status returns the stored status of a charge, for tests
func (g *MockGateway) Status(chargeID string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if ch, ok := g.charges[chargeID]; ok {
		return ch.Status
	}
	return ""
}

// SetSuccessRate updates the success rate (for testing)
func (g *MockGateway) SetSuccessRate(rate float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.config.SuccessRate = rate
}

// Name returns the gateway name
func (g *MockGateway) Name() string {
	return "mock"
}

var _ PaymentGateway = (*MockGateway)(nil)
