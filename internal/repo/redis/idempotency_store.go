package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diagnosis/tour-bookings/pkg/config"
	goredis "github.com/redis/go-redis/v9"
)

// IdempotencyStore keeps replayable HTTP responses in Redis with a TTL.
type IdempotencyStore struct {
	client *goredis.Client
}

func NewClient(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	opts.DB = cfg.DB

	client := goredis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func NewIdempotencyStore(client *goredis.Client) *IdempotencyStore {
	return &IdempotencyStore{client: client}
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Set keeps the first stored value; a concurrent duplicate does not overwrite it.
func (s *IdempotencyStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.SetNX(ctx, key, value, ttl).Err()
}
