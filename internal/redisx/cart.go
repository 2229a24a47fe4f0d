package redisx

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/printkart/storefront/internal/domain/cart"
)

// cartKey formats the per-shopper cart hash key: cart:{user_id} -> entry_id
// -> entry JSON.
const cartKey = "cart:%s"

// cartTTL bounds how long an abandoned cart survives. Refreshed on every Add.
var cartTTL = 30 * 24 * time.Hour

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository on a redis hash per shopper.
// Clear removes the whole hash with one DEL, which is the atomic
// delete-all-for-shopper the checkout saga needs.
type CartRepository struct {
	client *redis.Client
}

// NewCartRepository returns a CartRepository that uses the given client.
func NewCartRepository(client *redis.Client) *CartRepository {
	return &CartRepository{client: client}
}

// List returns all cart entries for a shopper.
func (r *CartRepository) List(ctx context.Context, userID string) ([]cart.Entry, error) {
	fields, err := r.client.HGetAll(ctx, fmt.Sprintf(cartKey, userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing cart for user %q: %w", userID, err)
	}

	entries := make([]cart.Entry, 0, len(fields))
	for id, raw := range fields {
		var e cart.Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("decoding cart entry %q for user %q: %w", id, userID, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Add stores a cart entry, assigning an ID when the caller did not.
func (r *CartRepository) Add(ctx context.Context, e cart.Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}

	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding cart entry: %w", err)
	}

	key := fmt.Sprintf(cartKey, e.UserID)
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, e.ID, raw)
	pipe.Expire(ctx, key, cartTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("storing cart entry for user %q: %w", e.UserID, err)
	}
	return nil
}

// Clear removes all of a shopper's entries as a set.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, fmt.Sprintf(cartKey, userID)).Err(); err != nil {
		return fmt.Errorf("clearing cart for user %q: %w", userID, err)
	}
	return nil
}
