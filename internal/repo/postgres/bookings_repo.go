package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/diagnosis/tour-bookings/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BookingsRepo struct{ pool *pgxpool.Pool }

func NewBookingsRepo(pool *pgxpool.Pool) *BookingsRepo { return &BookingsRepo{pool: pool} }

const bookingDetailsSelect = `SELECT b.id, b.tour_id, b.user_id, b.price, b.paid, b.stripe_session_id, b.created_at,
t.name, t.slug, u.name, u.email
FROM bookings b
JOIN tours t ON t.id = b.tour_id
JOIN users u ON u.id = b.user_id`

func scanDetails(row pgx.Row) (*domain.BookingDetails, error) {
	var d domain.BookingDetails
	err := row.Scan(
		&d.ID, &d.TourID, &d.UserID, &d.Price, &d.Paid, &d.StripeSessionID, &d.CreatedAt,
		&d.TourName, &d.TourSlug, &d.UserName, &d.UserEmail,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *BookingsRepo) ExistsBySessionID(ctx context.Context, sessionID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM bookings WHERE stripe_session_id=$1)`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var exists bool
	if err := r.pool.QueryRow(ctx, q, sessionID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Create inserts a booking. When another booking already holds the same
// session id nothing is written and created is false.
func (r *BookingsRepo) Create(ctx context.Context, p domain.CreateBookingParams) (*domain.Booking, bool, error) {
	const q = `
INSERT INTO bookings (tour_id, user_id, price, paid, stripe_session_id)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (stripe_session_id) WHERE stripe_session_id IS NOT NULL DO NOTHING
RETURNING id, tour_id, user_id, price, paid, stripe_session_id, created_at`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var session *string
	if p.StripeSessionID != "" {
		session = &p.StripeSessionID
	}

	var b domain.Booking
	err := r.pool.QueryRow(ctx, q, p.TourID, p.UserID, p.Price, p.Paid, session).Scan(
		&b.ID, &b.TourID, &b.UserID, &b.Price, &b.Paid, &b.StripeSessionID, &b.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("insert booking: %w", err)
	}
	return &b, true, nil
}

func (r *BookingsRepo) FindByID(ctx context.Context, id int64) (*domain.BookingDetails, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return scanDetails(r.pool.QueryRow(ctx, bookingDetailsSelect+` WHERE b.id=$1`, id))
}

func (r *BookingsRepo) List(ctx context.Context, limit, offset int) ([]domain.BookingDetails, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return r.query(ctx, bookingDetailsSelect+` ORDER BY b.created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
}

func (r *BookingsRepo) ListByUser(ctx context.Context, userID int64) ([]domain.BookingDetails, error) {
	return r.query(ctx, bookingDetailsSelect+` WHERE b.user_id=$1 ORDER BY b.created_at DESC`, userID)
}

func (r *BookingsRepo) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	ct, err := r.pool.Exec(ctx, `DELETE FROM bookings WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *BookingsRepo) query(ctx context.Context, q string, args ...any) ([]domain.BookingDetails, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.BookingDetails{}
	for rows.Next() {
		d, err := scanDetails(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}
