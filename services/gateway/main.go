package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/diagnosis/tour-bookings/pkg/config"
	"github.com/diagnosis/tour-bookings/pkg/logger"
	mw "github.com/diagnosis/tour-bookings/pkg/middleware"
	"github.com/diagnosis/tour-bookings/pkg/server"
	"github.com/diagnosis/tour-bookings/services/gateway/internal/handlers"
	"github.com/diagnosis/tour-bookings/services/gateway/internal/proxy"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	h := handlers.New(
		proxy.NewServiceProxy(cfg.Services.UsersURL),
		proxy.NewServiceProxy(cfg.Services.BookingsURL),
	)

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("gateway"))
	r.Use(mw.Logging)
	r.Use(mw.Recover)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Services.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Idempotent-Replayed"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(mw.Health)

	// no body parsing anywhere on this path; the webhook must arrive intact
	r.Post("/webhook-checkout", h.Bookings)
	r.HandleFunc("/api/v1/users", h.Users)
	r.HandleFunc("/api/v1/users/*", h.Users)
	r.HandleFunc("/api/v1/bookings", h.Bookings)
	r.HandleFunc("/api/v1/bookings/*", h.Bookings)

	if err := server.Serve(ctx, server.New(cfg.Server, "8080", r), "gateway"); err != nil {
		logger.Error("Gateway server error", "error", err)
		os.Exit(1)
	}
}
