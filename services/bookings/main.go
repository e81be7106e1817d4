package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/diagnosis/tour-bookings/internal/http/handlers"
	"github.com/diagnosis/tour-bookings/internal/http/middleware"
	"github.com/diagnosis/tour-bookings/internal/platform/payments"
	"github.com/diagnosis/tour-bookings/internal/repo"
	"github.com/diagnosis/tour-bookings/internal/service"
	"github.com/diagnosis/tour-bookings/pkg/auth"
	"github.com/diagnosis/tour-bookings/pkg/config"
	"github.com/diagnosis/tour-bookings/pkg/events"
	"github.com/diagnosis/tour-bookings/pkg/logger"
	mw "github.com/diagnosis/tour-bookings/pkg/middleware"
	"github.com/diagnosis/tour-bookings/pkg/server"
	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Auth.Validate(); err != nil {
		logger.Error("Invalid auth configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Stripe.Validate(); err != nil {
		logger.Error("Invalid Stripe configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := repo.Open(ctx, cfg)
	if err != nil {
		logger.Error("Failed to open stores", "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL, "bookings")
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	cache, err := repo.OpenCache(ctx, cfg.Redis)
	if err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer cache.Close()

	issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		logger.Error("Failed to create token issuer", "error", err)
		os.Exit(1)
	}

	gateway := payments.NewStripe(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)
	fulfillment := service.NewFulfillmentService(stores.Tours, stores.Users, stores.Bookings, gateway, eventBus)
	queue := service.NewFulfillmentQueue(cfg.Fulfillment.QueueSize, fulfillment, cfg.Fulfillment.TaskTimeout)

	dev := cfg.App.IsDevelopment()
	guard := middleware.NewGuard(issuer, stores.Users, cfg.Auth.CookieName, dev)
	h := handlers.NewBookingsHandler(
		service.NewCheckoutService(stores.Tours, gateway, cfg.Stripe),
		service.NewBookingService(stores.Bookings),
		queue,
		gateway,
		guard,
		cache.Idempotency,
		dev,
	)

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("bookings"))
	r.Use(mw.Logging)
	r.Use(mw.Recover)
	r.Use(mw.Health)
	r.Post("/webhook-checkout", h.Webhook)
	r.Group(func(r chi.Router) {
		if cfg.RateLimit.Requests > 0 {
			limiter := middleware.NewRateLimiter(cache.RateCounter, middleware.RateLimitConfig{
				Requests:       cfg.RateLimit.Requests,
				Window:         cfg.RateLimit.Window,
				TrustedProxies: cfg.RateLimit.TrustedProxies,
			})
			r.Use(limiter.Middleware)
		}
		r.Mount("/api/v1/bookings", h.Routes())
	})

	// the queue outlives the server so tasks enqueued by in-flight
	// webhooks during shutdown are still drained
	queueCtx, stopQueue := context.WithCancel(context.Background())
	g := new(errgroup.Group)
	g.Go(func() error { return queue.Run(queueCtx) })
	g.Go(func() error {
		defer stopQueue()
		return server.Serve(ctx, server.New(cfg.Server, "8082", r), "bookings")
	})

	if err := g.Wait(); err != nil {
		logger.Error("Bookings service error", "error", err)
		os.Exit(1)
	}
	logger.Info("Bookings service stopped", "pending_fulfillments", queue.Len())
}
