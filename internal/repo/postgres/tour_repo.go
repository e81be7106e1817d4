package postgres

import (
	"context"
	"errors"

	"github.com/diagnosis/tour-bookings/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ToursRepo struct{ pool *pgxpool.Pool }

func NewToursRepo(pool *pgxpool.Pool) *ToursRepo { return &ToursRepo{pool: pool} }

func (r *ToursRepo) FindByID(ctx context.Context, id int64) (*domain.Tour, error) {
	const q = `SELECT id, name, slug, summary, price, image_cover FROM tours WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var t domain.Tour
	err := r.pool.QueryRow(ctx, q, id).Scan(&t.ID, &t.Name, &t.Slug, &t.Summary, &t.Price, &t.ImageCover)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
