// Package repo selects the storage backend a service runs on.
package repo

import (
	"context"
	"fmt"

	"github.com/diagnosis/tour-bookings/internal/http/middleware"
	"github.com/diagnosis/tour-bookings/internal/repo/memory"
	"github.com/diagnosis/tour-bookings/internal/repo/postgres"
	"github.com/diagnosis/tour-bookings/internal/repo/redis"
	"github.com/diagnosis/tour-bookings/internal/service"
	"github.com/diagnosis/tour-bookings/pkg/config"
	"github.com/diagnosis/tour-bookings/pkg/database"
	"github.com/diagnosis/tour-bookings/pkg/logger"
	mw "github.com/diagnosis/tour-bookings/pkg/middleware"
)

type Stores struct {
	Users    service.UserStore
	Tours    service.TourStore
	Bookings service.BookingStore
	close    func()
}

func (s *Stores) Close() {
	if s.close != nil {
		s.close()
	}
}

// Open connects to Postgres and applies migrations, or builds process-local
// stores when the driver is "memory". Memory stores are not shared between
// services.
func Open(ctx context.Context, cfg *config.Config) (*Stores, error) {
	switch cfg.App.StoreDriver {
	case "memory":
		logger.WarnContext(ctx, "Using in-memory stores; data is lost on exit")
		users := memory.NewUsersRepo()
		tours := memory.NewToursRepo()
		return &Stores{Users: users, Tours: tours, Bookings: memory.NewBookingsRepo(tours, users)}, nil

	case "postgres", "":
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return &Stores{
			Users:    postgres.NewUsersRepo(pool),
			Tours:    postgres.NewToursRepo(pool),
			Bookings: postgres.NewBookingsRepo(pool),
			close:    pool.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.App.StoreDriver)
	}
}

// Cache holds the Redis-backed helpers. Without REDIS_URL it falls back to
// process-local implementations.
type Cache struct {
	Idempotency mw.IdempotencyStore
	RateCounter middleware.RateCounter
	close       func()
}

func (c *Cache) Close() {
	if c.close != nil {
		c.close()
	}
}

func OpenCache(ctx context.Context, cfg config.RedisConfig) (*Cache, error) {
	if cfg.URL == "" {
		logger.WarnContext(ctx, "REDIS_URL is empty, using process-local idempotency and rate limiting")
		return &Cache{Idempotency: memory.NewIdempotencyStore(), RateCounter: memory.NewRateCounter()}, nil
	}
	client, err := redis.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Cache{
		Idempotency: redis.NewIdempotencyStore(client),
		RateCounter: redis.NewRateCounter(client),
		close:       func() { _ = client.Close() },
	}, nil
}
