package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/domain"
	pkgredis "github.com/prohmpiriya/seat-rush/pkg/redis"
	"github.com/prohmpiriya/seat-rush/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

func cartKey(userID string) string { return "cart:" + userID }

// RedisCartRepository implements CartRepository, one JSON value per user
type RedisCartRepository struct {
	client *pkgredis.Client
}

// NewRedisCartRepository creates a new RedisCartRepository
func NewRedisCartRepository(client *pkgredis.Client) *RedisCartRepository {
	return &RedisCartRepository{client: client}
}

// Get loads the cart of userID
func (r *RedisCartRepository) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.cart.get")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", userID))

	raw, err := r.client.Get(ctx, cartKey(userID)).Bytes()
	if errors.Is(err, pkgredis.Nil) {
		return nil, domain.ErrCartNotFound
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(raw, &cart); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to decode cart: %w", err)
	}
	return &cart, nil
}

// Save writes the whole cart, replacing any previous entry
func (r *RedisCartRepository) Save(ctx context.Context, cart *domain.Cart, ttl time.Duration) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.cart.save")
	defer span.End()
	span.SetAttributes(
		attribute.String("user_id", cart.UserID),
		attribute.Int("tickets", len(cart.Selections)),
	)

	raw, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}
	if err := r.client.Set(ctx, cartKey(cart.UserID), raw, ttl).Err(); err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

// Delete removes the cart entry
func (r *RedisCartRepository) Delete(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, cartKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}

var _ CartRepository = (*RedisCartRepository)(nil)
