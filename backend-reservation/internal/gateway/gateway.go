// Package gateway talks to the payment provider. Charges are authorized
// when created and captured only once the seats are durably sold.
package gateway

import (
	"context"
	"errors"
)

var (
	ErrChargeNotFound = errors.New("charge not found")
	ErrChargeDeclined = errors.New("charge declined")
)

// ChargeRequest describes an authorization for a cart total
type ChargeRequest struct {
	// Amount in the currency's smallest unit
	Amount      int64
	Currency    string
	UserID      string
	Description string
	Metadata    map[string]string
}

// Charge is the provider's view of an authorization
type Charge struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret,omitempty"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

// PaymentGateway is the payment collaborator of the checkout flow
type PaymentGateway interface {
	CreateCharge(ctx context.Context, req *ChargeRequest) (*Charge, error)
	CaptureCharge(ctx context.Context, chargeID string) (*Charge, error)
	CancelCharge(ctx context.Context, chargeID string) error
	// RefundCharge returns the full amount of a captured charge
	RefundCharge(ctx context.Context, chargeID string) error
	Name() string
}
