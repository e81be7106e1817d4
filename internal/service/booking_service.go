package service

import (
	"context"
	"errors"

	"github.com/diagnosis/tour-bookings/internal/domain"
)

// BookingService serves the read and admin-delete side of bookings.
type BookingService struct {
	bookings BookingStore
}

func NewBookingService(bookings BookingStore) *BookingService {
	return &BookingService{bookings: bookings}
}

func (s *BookingService) List(ctx context.Context, limit, offset int) ([]domain.BookingDetails, error) {
	return s.bookings.List(ctx, limit, offset)
}

func (s *BookingService) ListMine(ctx context.Context, userID int64) ([]domain.BookingDetails, error) {
	return s.bookings.ListByUser(ctx, userID)
}

// Get returns a booking to its owner or to staff. Others get NotFound so
// booking ids cannot be probed.
func (s *BookingService) Get(ctx context.Context, requester *domain.User, id int64) (*domain.BookingDetails, error) {
	b, err := s.bookings.FindByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NotFound("No booking found with that ID")
	}
	if err != nil {
		return nil, err
	}
	if b.UserID != requester.ID && !domain.IsStaff(requester.Role) {
		return nil, domain.NotFound("No booking found with that ID")
	}
	return b, nil
}

func (s *BookingService) Delete(ctx context.Context, id int64) error {
	err := s.bookings.Delete(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NotFound("No booking found with that ID")
	}
	return err
}
