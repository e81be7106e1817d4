package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/diagnosis/tour-bookings/internal/platform/mailer"
	"github.com/diagnosis/tour-bookings/internal/service"
	"github.com/diagnosis/tour-bookings/pkg/config"
	"github.com/diagnosis/tour-bookings/pkg/events"
	"github.com/diagnosis/tour-bookings/pkg/logger"
	mw "github.com/diagnosis/tour-bookings/pkg/middleware"
	"github.com/diagnosis/tour-bookings/pkg/server"
	"github.com/go-chi/chi/v5"
)

const (
	queueGroup  = "notify"
	sendTimeout = 30 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL, "notify")
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	myTours := strings.TrimRight(cfg.Stripe.SuccessURL, "/")
	if i := strings.Index(myTours, "?"); i >= 0 {
		myTours = myTours[:i]
	}
	notifier := service.NewNotifier(mailer.FromConfig(cfg.Email), myTours)

	subscribe := func(subject string, handle func(context.Context, *events.Message) error) {
		err := eventBus.QueueSubscribe(subject, queueGroup, func(msg *events.Message) {
			hctx, cancel := context.WithTimeout(context.WithValue(context.Background(), logger.ServiceKey, "notify"), sendTimeout)
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
	subscribe(events.NotifySend, notifier.HandleNotification)
	subscribe(events.BookingCreated, notifier.HandleBookingCreated)

	// health only; the work arrives over NATS
	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("notify"))
	r.Use(mw.Health)

	if err := server.Serve(ctx, server.New(cfg.Server, "8086", r), "notify"); err != nil {
		logger.Error("Notify service error", "error", err)
		os.Exit(1)
	}
}
