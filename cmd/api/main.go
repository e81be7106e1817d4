// Command api runs users, bookings and notifications in one process. Events
// travel over an in-process bus, so no NATS is needed; with STORE_DRIVER=memory
// neither is Postgres.
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/diagnosis/tour-bookings/internal/http/handlers"
	"github.com/diagnosis/tour-bookings/internal/http/middleware"
	"github.com/diagnosis/tour-bookings/internal/platform/mailer"
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
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"
)

const sendTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	for _, validate := range []func() error{cfg.Auth.Validate, cfg.Stripe.Validate} {
		if err := validate(); err != nil {
			logger.Error("Invalid configuration", "error", err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := repo.Open(ctx, cfg)
	if err != nil {
		logger.Error("Failed to open stores", "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	cache, err := repo.OpenCache(ctx, cfg.Redis)
	if err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer cache.Close()

	sender := mailer.FromConfig(cfg.Email)
	publicURL := strings.TrimRight(cfg.Server.PublicURL, "/")
	myTours := cfg.Stripe.SuccessURL
	if i := strings.Index(myTours, "?"); i >= 0 {
		myTours = myTours[:i]
	}

	bus := events.NewLocalBus()
	defer bus.Close()
	notifier := service.NewNotifier(sender, myTours)
	for subject, handle := range map[string]func(context.Context, *events.Message) error{
		events.NotifySend:     notifier.HandleNotification,
		events.BookingCreated: notifier.HandleBookingCreated,
	} {
		err := bus.QueueSubscribe(subject, "notify", func(msg *events.Message) {
			hctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			defer cancel()
			if err := handle(hctx, msg); err != nil {
				logger.ErrorContext(hctx, "Notification failed", "subject", msg.Subject, "error", err)
			}
		})
		if err != nil {
			logger.Error("Failed to subscribe", "subject", subject, "error", err)
			os.Exit(1)
		}
	}

	issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		logger.Error("Failed to create token issuer", "error", err)
		os.Exit(1)
	}
	hasher := auth.NewHasher(cfg.Auth.Argon2, cfg.Auth.MaxConcurrentHashes)
	gateway := payments.NewStripe(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)

	accounts := service.NewAuthService(stores.Users, hasher, issuer, bus, publicURL+"/me")
	resets := service.NewResetService(stores.Users, hasher, issuer, sender, cfg.Auth.PasswordResetTTL,
		func(token string) string { return publicURL + "/api/v1/users/resetPassword/" + token })
	fulfillment := service.NewFulfillmentService(stores.Tours, stores.Users, stores.Bookings, gateway, bus)
	queue := service.NewFulfillmentQueue(cfg.Fulfillment.QueueSize, fulfillment, cfg.Fulfillment.TaskTimeout)

	dev := cfg.App.IsDevelopment()
	guard := middleware.NewGuard(issuer, stores.Users, cfg.Auth.CookieName, dev)
	users := handlers.NewAuthHandler(accounts, resets, guard, cfg.Auth, dev)
	bookings := handlers.NewBookingsHandler(
		service.NewCheckoutService(stores.Tours, gateway, cfg.Stripe),
		service.NewBookingService(stores.Bookings),
		queue, gateway, guard, cache.Idempotency, dev,
	)

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("api"))
	r.Use(mw.Logging)
	r.Use(mw.Recover)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Services.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(mw.Health)

	r.Post("/webhook-checkout", bookings.Webhook)
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RateLimit.Requests > 0 {
			limiter := middleware.NewRateLimiter(cache.RateCounter, middleware.RateLimitConfig{
				Requests:       cfg.RateLimit.Requests,
				Window:         cfg.RateLimit.Window,
				TrustedProxies: cfg.RateLimit.TrustedProxies,
			})
			r.Use(limiter.Middleware)
		}
		r.Mount("/users", users.Routes())
		r.Mount("/bookings", bookings.Routes())
	})

	queueCtx, stopQueue := context.WithCancel(context.Background())
	g := new(errgroup.Group)
	g.Go(func() error { return queue.Run(queueCtx) })
	g.Go(func() error {
		defer stopQueue()
		return server.Serve(ctx, server.New(cfg.Server, "8080", r), "api")
	})
	if err := g.Wait(); err != nil {
		logger.Error("API error", "error", err)
		os.Exit(1)
	}
}
