package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options configures the Redis client.
type Options struct {
	Addr        string
	PoolSize    int
	PingTimeout time.Duration
}

// New creates a Redis client and verifies it answers. Sessions stored in
// Redis are only as durable as this instance.
func New(ctx context.Context, opts Options) (*redis.Client, error) {
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		PoolSize: opts.PoolSize,
	})

	ctx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("platform/cache: ping: %w", err)
	}

	return client, nil
}
