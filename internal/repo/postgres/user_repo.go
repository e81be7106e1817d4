package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diagnosis/tour-bookings/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const queryTimeout = 3 * time.Second

type UsersRepo struct{ pool *pgxpool.Pool }

func NewUsersRepo(pool *pgxpool.Pool) *UsersRepo { return &UsersRepo{pool: pool} }

const userCols = `id, name, email, photo, role, password_hash, password_changed_at,
password_reset_token_hash, password_reset_expires, active, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var role string
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.Photo, &role, &u.PasswordHash, &u.PasswordChangedAt,
		&u.PasswordResetTokenHash, &u.PasswordResetExpires, &u.Active, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Role = domain.Role(role)
	return &u, nil
}

func (r *UsersRepo) Create(ctx context.Context, p domain.CreateUserParams) (*domain.User, error) {
	if p.Role == "" {
		p.Role = domain.RoleUser
	}
	const q = `
INSERT INTO users (name, email, password_hash, role, password_changed_at)
VALUES ($1,$2,$3,$4,$5)
RETURNING ` + userCols
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	u, err := scanUser(r.pool.QueryRow(ctx, q, p.Name, domain.NormalizeEmail(p.Email), p.PasswordHash, string(p.Role), p.ChangedAt))
	if err != nil {
		return nil, mapWriteErr(err)
	}
	return u, nil
}

// FindByEmail only sees active users. The password hash is blanked unless
// includeSecret is set.
func (r *UsersRepo) FindByEmail(ctx context.Context, email string, includeSecret bool) (*domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE lower(email)=$1 AND active`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	u, err := scanUser(r.pool.QueryRow(ctx, q, domain.NormalizeEmail(email)))
	if err != nil {
		return nil, err
	}
	if !includeSecret {
		u.PasswordHash = ""
	}
	return u, nil
}

func (r *UsersRepo) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE id=$1 AND active`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return scanUser(r.pool.QueryRow(ctx, q, id))
}

func (r *UsersRepo) FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users
WHERE password_reset_token_hash=$1 AND password_reset_expires > $2 AND active`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return scanUser(r.pool.QueryRow(ctx, q, tokenHash, now))
}

// SetResetToken replaces the pending reset token and its expiry. No other
// column is written.
func (r *UsersRepo) SetResetToken(ctx context.Context, userID int64, tokenHash string, expires time.Time) error {
	const q = `
UPDATE users SET password_reset_token_hash=$2, password_reset_expires=$3, updated_at=now()
WHERE id=$1 AND active`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	ct, err := r.pool.Exec(ctx, q, userID, tokenHash, expires.UTC())
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdatePasswordHash swaps oldHash for newHash and reports false when the
// stored digest is no longer oldHash. A nil changedAt is a rehash: the change
// time and any pending reset token are kept.
func (r *UsersRepo) UpdatePasswordHash(ctx context.Context, userID int64, oldHash, newHash string, changedAt *time.Time) (bool, error) {
	const q = `
UPDATE users SET
  password_hash=$3,
  password_changed_at=COALESCE($4::timestamptz, password_changed_at),
  password_reset_token_hash=CASE WHEN $4::timestamptz IS NULL THEN password_reset_token_hash END,
  password_reset_expires=CASE WHEN $4::timestamptz IS NULL THEN password_reset_expires END,
  updated_at=now()
WHERE id=$1 AND password_hash=$2 AND active`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	ct, err := r.pool.Exec(ctx, q, userID, oldHash, newHash, changedAt)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

// UpdateProfile writes name, email and photo only.
func (r *UsersRepo) UpdateProfile(ctx context.Context, u *domain.User) error {
	const q = `
UPDATE users SET name=$2, email=$3, photo=$4, updated_at=now()
WHERE id=$1 AND active
RETURNING updated_at`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	err := r.pool.QueryRow(ctx, q, u.ID, u.Name, domain.NormalizeEmail(u.Email), u.Photo).Scan(&u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return mapWriteErr(err)
	}
	return nil
}

func (r *UsersRepo) Deactivate(ctx context.Context, userID int64) error {
	const q = `UPDATE users SET active=false, updated_at=now() WHERE id=$1 AND active`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	ct, err := r.pool.Exec(ctx, q, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ConsumeResetToken swaps in newHash only while tokenHash is still the pending,
// unexpired token. Of two concurrent consumers at most one gets true.
func (r *UsersRepo) ConsumeResetToken(ctx context.Context, userID int64, tokenHash, newHash string, changedAt time.Time) (bool, error) {
	const q = `
UPDATE users SET
  password_hash=$3, password_changed_at=$4,
  password_reset_token_hash=NULL, password_reset_expires=NULL, updated_at=now()
WHERE id=$1 AND password_reset_token_hash=$2 AND password_reset_expires > $4 AND active`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	ct, err := r.pool.Exec(ctx, q, userID, tokenHash, newHash, changedAt)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

// ClearResetToken removes the pending token only if it is still tokenHash; a
// newer request that replaced it is left alone.
func (r *UsersRepo) ClearResetToken(ctx context.Context, userID int64, tokenHash string) error {
	const q = `
UPDATE users SET password_reset_token_hash=NULL, password_reset_expires=NULL, updated_at=now()
WHERE id=$1 AND password_reset_token_hash=$2`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	_, err := r.pool.Exec(ctx, q, userID, tokenHash)
	return err
}

func (r *UsersRepo) List(ctx context.Context) ([]domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE active ORDER BY id`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = ""
		out = append(out, *u)
	}
	return out, rows.Err()
}

func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if pgErr.ConstraintName == "users_email_key" {
			return domain.Conflict("Duplicate field value: email. Please use another value!")
		}
		return &domain.Error{Kind: domain.KindConflict, Message: "Duplicate field value. Please use another value!", Err: err}
	}
	return fmt.Errorf("postgres: %w", err)
}
