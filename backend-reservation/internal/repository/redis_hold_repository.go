package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/domain"
	pkgredis "github.com/prohmpiriya/seat-rush/pkg/redis"
	"github.com/prohmpiriya/seat-rush/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

//go:embed scripts/claim_if_free.lua
var claimIfFreeScript string

//go:embed scripts/release_if_owner.lua
var releaseIfOwnerScript string

//go:embed scripts/extend_if_owner.lua
var extendIfOwnerScript string

var (
	scriptClaimIfFree    = pkgredis.NewScript("claim_if_free", claimIfFreeScript)
	scriptReleaseIfOwner = pkgredis.NewScript("release_if_owner", releaseIfOwnerScript)
	scriptExtendIfOwner  = pkgredis.NewScript("extend_if_owner", extendIfOwnerScript)
)

// Key layout in the expiring store
const (
	keyTemporaryOwner = "ticket:temporary_owner:%s"
	keyReserveLock    = "ticket:reserve_lock:%s"
	keyCaptureLock    = "payment:capture_lock:%s"
)

func temporaryOwnerKey(ticketID string) string { return fmt.Sprintf(keyTemporaryOwner, ticketID) }
func reserveLockKey(ticketID string) string    { return fmt.Sprintf(keyReserveLock, ticketID) }
func captureLockKey(chargeID string) string    { return fmt.Sprintf(keyCaptureLock, chargeID) }

// RedisHoldRepository implements HoldRepository using Redis
type RedisHoldRepository struct {
	client *pkgredis.Client
}

// NewRedisHoldRepository creates a new RedisHoldRepository
func NewRedisHoldRepository(client *pkgredis.Client) *RedisHoldRepository {
	return &RedisHoldRepository{client: client}
}

// LoadScripts preloads the compare-and-act scripts
func (r *RedisHoldRepository) LoadScripts(ctx context.Context) error {
	return r.client.LoadScripts(ctx, scriptClaimIfFree, scriptReleaseIfOwner, scriptExtendIfOwner)
}

// AcquireReserveLock creates ticket:reserve_lock:{id} for ReserveLockTTL
func (r *RedisHoldRepository) AcquireReserveLock(ctx context.Context, ticketID string) (bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.hold.acquire_reserve_lock")
	defer span.End()
	span.SetAttributes(attribute.String("ticket_id", ticketID))

	ok, err := r.client.SetNX(ctx, reserveLockKey(ticketID), "1", domain.ReserveLockTTL).Result()
	if err != nil {
		telemetry.RecordError(span, err)
		return false, fmt.Errorf("failed to acquire reserve lock: %w", err)
	}
	span.SetAttributes(attribute.Bool("acquired", ok))
	return ok, nil
}

// ReleaseReserveLock deletes the seat lock
func (r *RedisHoldRepository) ReleaseReserveLock(ctx context.Context, ticketID string) error {
	if err := r.client.Del(ctx, reserveLockKey(ticketID)).Err(); err != nil {
		return fmt.Errorf("failed to release reserve lock: %w", err)
	}
	return nil
}

// TemporaryOwner reads ticket:temporary_owner:{id}
func (r *RedisHoldRepository) TemporaryOwner(ctx context.Context, ticketID string) (string, error) {
	owner, err := r.client.Get(ctx, temporaryOwnerKey(ticketID)).Result()
	if errors.Is(err, pkgredis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read temporary owner: %w", err)
	}
	return owner, nil
}

// ClaimIfFree sets the owner marker unless a different user holds it
func (r *RedisHoldRepository) ClaimIfFree(ctx context.Context, ticketID, userID string, ttl time.Duration) (bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.hold.claim")
	defer span.End()
	span.SetAttributes(
		attribute.String("ticket_id", ticketID),
		attribute.String("user_id", userID),
	)

	n, err := r.client.Run(ctx, scriptClaimIfFree,
		[]string{temporaryOwnerKey(ticketID)}, userID, ttl.Milliseconds()).Int64()
	if err != nil {
		telemetry.RecordError(span, err)
		return false, fmt.Errorf("failed to execute claim_if_free script: %w", err)
	}
	return n == 1, nil
}

// ReleaseIfOwner deletes the owner marker when userID holds it
func (r *RedisHoldRepository) ReleaseIfOwner(ctx context.Context, ticketID, userID string) (bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.hold.release")
	defer span.End()
	span.SetAttributes(attribute.String("ticket_id", ticketID))

	n, err := r.client.Run(ctx, scriptReleaseIfOwner,
		[]string{temporaryOwnerKey(ticketID)}, userID).Int64()
	if err != nil {
		telemetry.RecordError(span, err)
		return false, fmt.Errorf("failed to execute release_if_owner script: %w", err)
	}
	return n == 1, nil
}

// ExtendIfOwner checks ownership and slides the TTL when ttl > 0
func (r *RedisHoldRepository) ExtendIfOwner(ctx context.Context, ticketID, userID string, ttl time.Duration) (bool, error) {
	n, err := r.client.Run(ctx, scriptExtendIfOwner,
		[]string{temporaryOwnerKey(ticketID)}, userID, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to execute extend_if_owner script: %w", err)
	}
	return n == 1, nil
}

// AcquireCaptureLock creates payment:capture_lock:{charge_id}. Once the
// provider has captured, the guard is kept until CaptureLockTTL.
func (r *RedisHoldRepository) AcquireCaptureLock(ctx context.Context, chargeID string) (bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.hold.acquire_capture_lock")
	defer span.End()
	span.SetAttributes(attribute.String("charge_id", chargeID))

	ok, err := r.client.SetNX(ctx, captureLockKey(chargeID), "1", domain.CaptureLockTTL).Result()
	if err != nil {
		telemetry.RecordError(span, err)
		return false, fmt.Errorf("failed to acquire capture lock: %w", err)
	}
	return ok, nil
}

// ReleaseCaptureLock deletes payment:capture_lock:{charge_id}
func (r *RedisHoldRepository) ReleaseCaptureLock(ctx context.Context, chargeID string) error {
	if err := r.client.Del(ctx, captureLockKey(chargeID)).Err(); err != nil {
		return fmt.Errorf("failed to release capture lock: %w", err)
	}
	return nil
}

var _ HoldRepository = (*RedisHoldRepository)(nil)
