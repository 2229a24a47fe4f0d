// Package redisx holds the redis client setup and the redis-backed cart
// store. The cart is shopper-scoped ephemeral state, so it lives in redis
// rather than alongside the durable order data.
package redisx

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// New creates a redis client and verifies connectivity.
func New(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", addr, err)
	}
	return client, nil
}
