package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/refund"
)

// StripeGateway implements PaymentGateway with manual-capture PaymentIntents
type StripeGateway struct {
	config *StripeGatewayConfig
}

// StripeGatewayConfig holds configuration for Stripe gateway
type StripeGatewayConfig struct {
	SecretKey string
}

// NewStripeGateway creates a new Stripe gateway
func NewStripeGateway(config *StripeGatewayConfig) (*StripeGateway, error) {
	if config == nil {
		return nil, fmt.Errorf("stripe config is required")
	}
	if config.SecretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}

	// Set Stripe API key globally
	stripe.Key = config.SecretKey

	return &StripeGateway{config: config}, nil
}

// CreateCharge creates a PaymentIntent that authorizes but does not capture
func (g *StripeGateway) CreateCharge(ctx context.Context, req *ChargeRequest) (*Charge, error) {
	if req == nil {
		return nil, fmt.Errorf("charge request is required")
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.Amount),
		Currency:      stripe.String(req.Currency),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: map[string]string{"user_id": req.UserID},
	}
	for k, v := range req.Metadata {
		params.Metadata[k] = v
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}
	return toCharge(pi), nil
}

// CaptureCharge captures an authorized PaymentIntent
func (g *StripeGateway) CaptureCharge(ctx context.Context, chargeID string) (*Charge, error) {
	if chargeID == "" {
		return nil, fmt.Errorf("charge ID is required")
	}

	pi, err := paymentintent.Capture(chargeID, &stripe.PaymentIntentCaptureParams{})
	if err != nil {
		return nil, mapStripeError("capture", err)
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return nil, fmt.Errorf("%w: status %s", ErrChargeDeclined, pi.Status)
	}
	return toCharge(pi), nil
}

// CancelCharge voids an uncaptured PaymentIntent
func (g *StripeGateway) CancelCharge(ctx context.Context, chargeID string) error {
	if chargeID == "" {
		return fmt.Errorf("charge ID is required")
	}

	if _, err := paymentintent.Cancel(chargeID, &stripe.PaymentIntentCancelParams{}); err != nil {
		return mapStripeError("cancel", err)
	}
	return nil
}

// RefundCharge refunds a captured PaymentIntent in full
func (g *StripeGateway) RefundCharge(ctx context.Context, chargeID string) error {
	if chargeID == "" {
		return fmt.Errorf("charge ID is required")
	}

	if _, err := refund.New(&stripe.RefundParams{PaymentIntent: stripe.String(chargeID)}); err != nil {
		return mapStripeError("refund", err)
	}
	return nil
}

// Name returns the gateway name
func (g *StripeGateway) Name() string {
	return "stripe"
}

func toCharge(pi *stripe.PaymentIntent) *Charge {
	return &Charge{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
	}
}

func mapStripeError(op string, err error) error {
	var serr *stripe.Error
	if errors.As(err, &serr) {
		switch {
		case serr.HTTPStatusCode == 404:
			return fmt.Errorf("failed to %s payment intent: %w", op, ErrChargeNotFound)
		case serr.Type == stripe.ErrorTypeCard:
			return fmt.Errorf("failed to %s payment intent: %w", op, ErrChargeDeclined)
		}
	}
	return fmt.Errorf("failed to %s payment intent: %w", op, err)
}

var _ PaymentGateway = (*StripeGateway)(nil)
