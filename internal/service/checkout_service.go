package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/diagnosis/tour-bookings/internal/domain"
	"github.com/diagnosis/tour-bookings/internal/platform/payments"
	"github.com/diagnosis/tour-bookings/pkg/config"
	"github.com/diagnosis/tour-bookings/pkg/logger"
)

// CheckoutService opens hosted checkout sessions. Nothing is stored locally;
// the booking is created by the webhook once the session is paid.
type CheckoutService struct {
	tours   TourStore
	gateway payments.Gateway
	cfg     config.StripeConfig
}

func NewCheckoutService(tours TourStore, gateway payments.Gateway, cfg config.StripeConfig) *CheckoutService {
	return &CheckoutService{tours: tours, gateway: gateway, cfg: cfg}
}

func (s *CheckoutService) CreateSession(ctx context.Context, user *domain.User, tourID int64) (*payments.CheckoutSession, error) {
	tour, err := s.tours.FindByID(ctx, tourID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NotFound("No tour found with that ID")
	}
	if err != nil {
		return nil, err
	}

	ref := strconv.FormatInt(tour.ID, 10)
	req := payments.CheckoutRequest{
		ReferenceID:   ref,
		CustomerEmail: user.Email,
		ProductName:   tour.Name + " Tour",
		Description:   tour.Summary,
		UnitAmount:    domain.MinorUnits(tour.Price),
		Currency:      s.cfg.Currency,
		SuccessURL:    s.cfg.SuccessURL,
		CancelURL:     s.cfg.CancelURL + tour.Slug,
		Metadata: map[string]string{
			"tour_id": ref,
			"user_id": strconv.FormatInt(user.ID, 10),
		},
	}
	if tour.ImageCover != "" {
		req.ImageURL = strings.TrimRight(s.cfg.ImageBaseURL, "/") + "/" + tour.ImageCover
	}

	sess, err := s.gateway.CreateCheckoutSession(ctx, req)
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "Checkout session created", "session_id", sess.ID, "tour_id", tour.ID)
	return sess, nil
}
