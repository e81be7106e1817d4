package service

import (
	"context"
	"time"

	"github.com/diagnosis/tour-bookings/internal/domain"
)

// UserStore is the credential store. Finders only see active users and return
// domain.ErrNotFound when nothing matches.
type UserStore interface {
	Create(ctx context.Context, p domain.CreateUserParams) (*domain.User, error)
	FindByEmail(ctx context.Context, email string, includeSecret bool) (*domain.User, error)
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*domain.User, error)
	UpdateProfile(ctx context.Context, u *domain.User) error
	Deactivate(ctx context.Context, userID int64) error
	SetResetToken(ctx context.Context, userID int64, tokenHash string, expires time.Time) error
	UpdatePasswordHash(ctx context.Context, userID int64, oldHash, newHash string, changedAt *time.Time) (bool, error)
	ConsumeResetToken(ctx context.Context, userID int64, tokenHash, newHash string, changedAt time.Time) (bool, error)
	ClearResetToken(ctx context.Context, userID int64, tokenHash string) error
	List(ctx context.Context) ([]domain.User, error)
}

type TourStore interface {
	FindByID(ctx context.Context, id int64) (*domain.Tour, error)
}

type BookingStore interface {
	ExistsBySessionID(ctx context.Context, sessionID string) (bool, error)
	Create(ctx context.Context, p domain.CreateBookingParams) (*domain.Booking, bool, error)
	FindByID(ctx context.Context, id int64) (*domain.BookingDetails, error)
	List(ctx context.Context, limit, offset int) ([]domain.BookingDetails, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.BookingDetails, error)
	Delete(ctx context.Context, id int64) error
}

type PasswordHasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Verify(ctx context.Context, plaintext, digest string) (bool, error)
	NeedsRehash(digest string) bool
}

type TokenIssuer interface {
	Issue(subjectID int64) (string, error)
}
