package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/diagnosis/tour-bookings/internal/domain"
	"github.com/diagnosis/tour-bookings/internal/platform/payments"
	"github.com/diagnosis/tour-bookings/pkg/events"
	"github.com/diagnosis/tour-bookings/pkg/logger"
)

// ErrIncompleteSession marks a paid session that cannot be tied to a tour,
// a user and an amount. Such sessions are dropped, not retried.
var ErrIncompleteSession = errors.New("fulfillment: session lacks tour, user or amount")

// FulfillmentService turns paid checkout sessions into bookings. Running it
// twice for the same session creates one booking.
type FulfillmentService struct {
	tours    TourStore
	users    UserStore
	bookings BookingStore
	gateway  payments.Gateway
	events   events.Publisher
}

func NewFulfillmentService(tours TourStore, users UserStore, bookings BookingStore, gateway payments.Gateway, pub events.Publisher) *FulfillmentService {
	return &FulfillmentService{tours: tours, users: users, bookings: bookings, gateway: gateway, events: pub}
}

func (s *FulfillmentService) Fulfill(ctx context.Context, sess *payments.CheckoutSession) error {
	if sess == nil || sess.ID == "" {
		return ErrIncompleteSession
	}
	if sess.Mode != "payment" || sess.PaymentStatus != "paid" {
		logger.InfoContext(ctx, "Skipping checkout session", "session_id", sess.ID, "mode", sess.Mode, "payment_status", sess.PaymentStatus)
		return nil
	}

	if sess.ReferenceID == "" || sess.AmountTotal <= 0 {
		full, err := s.gateway.RetrieveSession(ctx, sess.ID)
		if err != nil {
			return fmt.Errorf("retrieve session %s: %w", sess.ID, err)
		}
		sess = merge(sess, full)
	}

	tour, user, err := s.resolve(ctx, sess)
	if err != nil {
		return err
	}

	exists, err := s.bookings.ExistsBySessionID(ctx, sess.ID)
	if err != nil {
		return err
	}
	if exists {
		logger.InfoContext(ctx, "Booking already exists for session", "session_id", sess.ID)
		return nil
	}

	booking, created, err := s.bookings.Create(ctx, domain.CreateBookingParams{
		TourID:          tour.ID,
		UserID:          user.ID,
		Price:           domain.MajorUnits(sess.AmountTotal),
		Paid:            true,
		StripeSessionID: sess.ID,
	})
	if err != nil {
		return err
	}
	if !created {
		logger.InfoContext(ctx, "Concurrent delivery already booked session", "session_id", sess.ID)
		return nil
	}

	logger.InfoContext(ctx, "Booking created", "booking_id", booking.ID, "session_id", sess.ID, "tour_id", tour.ID, "user_id", user.ID)
	s.publishCreated(ctx, booking, tour, user, sess.ID)
	return nil
}

// resolve finds the tour from the client reference (metadata as fallback) and
// the user from metadata (purchaser email as fallback).
func (s *FulfillmentService) resolve(ctx context.Context, sess *payments.CheckoutSession) (*domain.Tour, *domain.User, error) {
	if sess.AmountTotal <= 0 {
		return nil, nil, fmt.Errorf("%w: amount missing on %s", ErrIncompleteSession, sess.ID)
	}

	tourID := parseID(sess.ReferenceID)
	if tourID == 0 {
		tourID = parseID(sess.Metadata["tour_id"])
	}
	if tourID == 0 {
		return nil, nil, fmt.Errorf("%w: tour missing on %s", ErrIncompleteSession, sess.ID)
	}
	tour, err := s.tours.FindByID(ctx, tourID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: tour %d does not exist", ErrIncompleteSession, tourID)
	}
	if err != nil {
		return nil, nil, err
	}

	var user *domain.User
	if userID := parseID(sess.Metadata["user_id"]); userID != 0 {
		user, err = s.users.FindByID(ctx, userID)
	} else if sess.CustomerEmail != "" {
		user, err = s.users.FindByEmail(ctx, sess.CustomerEmail, false)
	} else {
		err = domain.ErrNotFound
	}
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: user missing on %s", ErrIncompleteSession, sess.ID)
	}
	if err != nil {
		return nil, nil, err
	}
	return tour, user, nil
}

func (s *FulfillmentService) publishCreated(ctx context.Context, b *domain.Booking, tour *domain.Tour, user *domain.User, sessionID string) {
	ev := events.BookingCreatedEvent{
		BookingID: b.ID,
		TourID:    tour.ID,
		TourName:  tour.Name,
		UserID:    user.ID,
		UserEmail: user.Email,
		UserName:  user.Name,
		Price:     b.Price,
		SessionID: sessionID,
		CreatedAt: b.CreatedAt,
	}
	if err := s.events.Publish(ctx, events.BookingCreated, ev); err != nil {
		logger.WarnContext(ctx, "Failed to publish booking.created", "booking_id", b.ID, "error", err)
	}
}

func merge(partial, full *payments.CheckoutSession) *payments.CheckoutSession {
	out := *partial
	if out.ReferenceID == "" {
		out.ReferenceID = full.ReferenceID
	}
	if out.AmountTotal <= 0 {
		out.AmountTotal = full.AmountTotal
	}
	if out.CustomerEmail == "" {
		out.CustomerEmail = full.CustomerEmail
	}
	if len(out.Metadata) == 0 {
		out.Metadata = full.Metadata
	}
	return &out
}

func parseID(s string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}
