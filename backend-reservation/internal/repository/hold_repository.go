package repository

import (
	"context"
	"time"

	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/domain"
)

// HoldRepository is the narrow expiring-store surface used to claim seats.
// Every method is a single atomic command or script on the store.
type HoldRepository interface {
	// AcquireReserveLock creates the short seat lock if absent
	AcquireReserveLock(ctx context.Context, ticketID string) (bool, error)

	// ReleaseReserveLock deletes the seat lock unconditionally
	ReleaseReserveLock(ctx context.Context, ticketID string) error

	// TemporaryOwner returns the user holding the seat, "" when none
	TemporaryOwner(ctx context.Context, ticketID string) (string, error)

	// ClaimIfFree sets userID as temporary owner unless another user holds the seat
	ClaimIfFree(ctx context.Context, ticketID, userID string, ttl time.Duration) (bool, error)

	// ReleaseIfOwner deletes the owner marker only when userID holds it
	ReleaseIfOwner(ctx context.Context, ticketID, userID string) (bool, error)

	// ExtendIfOwner reports ownership, refreshing the TTL when ttl > 0
	ExtendIfOwner(ctx context.Context, ticketID, userID string, ttl time.Duration) (bool, error)

	// AcquireCaptureLock creates the payment capture guard if absent
	AcquireCaptureLock(ctx context.Context, chargeID string) (bool, error)

	// ReleaseCaptureLock deletes the guard of a capture that never reached the provider
	ReleaseCaptureLock(ctx context.Context, chargeID string) error
}

// CartRepository persists one cart per user in the expiring store
type CartRepository interface {
	// Get returns domain.ErrCartNotFound when no entry exists
	Get(ctx context.Context, userID string) (*domain.Cart, error)

	// Save replaces the entry wholesale with the given TTL
	Save(ctx context.Context, cart *domain.Cart, ttl time.Duration) error

	// Delete removes the entry; absent entries are not an error
	Delete(ctx context.Context, userID string) error
}
