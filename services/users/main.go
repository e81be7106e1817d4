package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/diagnosis/tour-bookings/internal/http/handlers"
	"github.com/diagnosis/tour-bookings/internal/http/middleware"
	"github.com/diagnosis/tour-bookings/internal/platform/mailer"
	"github.com/diagnosis/tour-bookings/internal/repo"
	"github.com/diagnosis/tour-bookings/internal/service"
	"github.com/diagnosis/tour-bookings/pkg/auth"
	"github.com/diagnosis/tour-bookings/pkg/config"
	"github.com/diagnosis/tour-bookings/pkg/events"
	"github.com/diagnosis/tour-bookings/pkg/logger"
	mw "github.com/diagnosis/tour-bookings/pkg/middleware"
	"github.com/diagnosis/tour-bookings/pkg/server"
	"github.com/go-chi/chi/v5"
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

	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL, "users")
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		logger.Error("Failed to create token issuer", "error", err)
		os.Exit(1)
	}
	hasher := auth.NewHasher(cfg.Auth.Argon2, cfg.Auth.MaxConcurrentHashes)

	publicURL := strings.TrimRight(cfg.Server.PublicURL, "/")
	resetURL := func(token string) string { return publicURL + "/api/v1/users/resetPassword/" + token }

	// reset mail goes out synchronously so a failed send can be rolled back
	accounts := service.NewAuthService(stores.Users, hasher, issuer, eventBus, publicURL+"/me")
	resets := service.NewResetService(stores.Users, hasher, issuer, mailer.FromConfig(cfg.Email), cfg.Auth.PasswordResetTTL, resetURL)

	dev := cfg.App.IsDevelopment()
	guard := middleware.NewGuard(issuer, stores.Users, cfg.Auth.CookieName, dev)
	h := handlers.NewAuthHandler(accounts, resets, guard, cfg.Auth, dev)

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("users"))
	r.Use(mw.Logging)
	r.Use(mw.Recover)
	r.Use(mw.Health)
	r.Group(func(r chi.Router) {
		if cfg.RateLimit.Requests > 0 {
			limiter := middleware.NewRateLimiter(cache.RateCounter, middleware.RateLimitConfig{
				Requests:       cfg.RateLimit.Requests,
				Window:         cfg.RateLimit.Window,
				TrustedProxies: cfg.RateLimit.TrustedProxies,
			})
			r.Use(limiter.Middleware)
		}
		r.Mount("/api/v1/users", h.Routes())
	})

	if err := server.Serve(ctx, server.New(cfg.Server, "8081", r), "users"); err != nil {
		logger.Error("Users service error", "error", err)
		os.Exit(1)
	}
}
