package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RateCounter is a fixed-window counter shared by every replica.
type RateCounter struct {
	client *goredis.Client
}

func NewRateCounter(client *goredis.Client) *RateCounter {
	return &RateCounter{client: client}
}

func (c *RateCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	var incr *goredis.IntCmd
	_, err := c.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		// only the first hit of a window sets the expiry
		p.ExpireNX(ctx, key, window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("rate counter: %w", err)
	}
	return incr.Val(), nil
}
