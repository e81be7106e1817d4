// Package memory holds in-process stores with the same uniqueness rules as
// the Postgres schema. They back tests and STORE_DRIVER=memory runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/diagnosis/tour-bookings/internal/domain"
)

type UsersRepo struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*domain.User
	now    func() time.Time
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{byID: make(map[int64]*domain.User), now: time.Now}
}

func (r *UsersRepo) Create(_ context.Context, p domain.CreateUserParams) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := domain.NormalizeEmail(p.Email)
	for _, u := range r.byID {
		if u.Email == email {
			return nil, domain.Conflict("Duplicate field value: email. Please use another value!")
		}
	}
	if p.Role == "" {
		p.Role = domain.RoleUser
	}

	r.nextID++
	now := r.now().UTC()
	u := &domain.User{
		ID:                r.nextID,
		Name:              p.Name,
		Email:             email,
		Photo:             "default.jpg",
		Role:              p.Role,
		PasswordHash:      p.PasswordHash,
		PasswordChangedAt: p.ChangedAt,
		Active:            true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	r.byID[u.ID] = u
	return clone(u), nil
}

func (r *UsersRepo) FindByEmail(_ context.Context, email string, includeSecret bool) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	email = domain.NormalizeEmail(email)
	for _, u := range r.byID {
		if u.Email == email && u.Active {
			out := clone(u)
			if !includeSecret {
				out.PasswordHash = ""
			}
			return out, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *UsersRepo) FindByID(_ context.Context, id int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok || !u.Active {
		return nil, domain.ErrNotFound
	}
	return clone(u), nil
}

func (r *UsersRepo) FindByResetToken(_ context.Context, tokenHash string, now time.Time) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.byID {
		if u.Active && resetMatches(u, tokenHash, now) {
			return clone(u), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *UsersRepo) SetResetToken(_ context.Context, userID int64, tokenHash string, expires time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[userID]
	if !ok || !u.Active {
		return domain.ErrNotFound
	}
	u.SetResetToken(tokenHash, expires)
	u.UpdatedAt = r.now().UTC()
	return nil
}

func (r *UsersRepo) UpdatePasswordHash(_ context.Context, userID int64, oldHash, newHash string, changedAt *time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[userID]
	if !ok || !u.Active || u.PasswordHash != oldHash {
		return false, nil
	}
	if changedAt != nil {
		u.SetPassword(newHash, *changedAt)
	} else {
		u.PasswordHash = newHash
	}
	u.UpdatedAt = r.now().UTC()
	return true, nil
}

func (r *UsersRepo) UpdateProfile(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[u.ID]
	if !ok || !current.Active {
		return domain.ErrNotFound
	}
	email := domain.NormalizeEmail(u.Email)
	for id, other := range r.byID {
		if id != u.ID && other.Email == email {
			return domain.Conflict("Duplicate field value: email. Please use another value!")
		}
	}
	current.Name = u.Name
	current.Email = email
	current.Photo = u.Photo
	current.UpdatedAt = r.now().UTC()
	u.UpdatedAt = current.UpdatedAt
	return nil
}

func (r *UsersRepo) Deactivate(_ context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[userID]
	if !ok || !u.Active {
		return domain.ErrNotFound
	}
	u.Active = false
	u.UpdatedAt = r.now().UTC()
	return nil
}

func (r *UsersRepo) ConsumeResetToken(_ context.Context, userID int64, tokenHash, newHash string, changedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[userID]
	if !ok || !u.Active || !resetMatches(u, tokenHash, changedAt) {
		return false, nil
	}
	u.SetPassword(newHash, changedAt)
	u.UpdatedAt = r.now().UTC()
	return true, nil
}

func (r *UsersRepo) ClearResetToken(_ context.Context, userID int64, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[userID]
	if !ok {
		return nil
	}
	if u.PasswordResetTokenHash != nil && *u.PasswordResetTokenHash == tokenHash {
		u.ClearResetToken()
	}
	return nil
}

func (r *UsersRepo) List(_ context.Context) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.User, 0, len(r.byID))
	for _, u := range r.byID {
		if !u.Active {
			continue
		}
		c := clone(u)
		c.PasswordHash = ""
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func resetMatches(u *domain.User, tokenHash string, now time.Time) bool {
	return u.PasswordResetTokenHash != nil &&
		*u.PasswordResetTokenHash == tokenHash &&
		u.PasswordResetExpires != nil &&
		u.PasswordResetExpires.After(now)
}

func clone(u *domain.User) *domain.User {
	c := *u
	if u.PasswordChangedAt != nil {
		t := *u.PasswordChangedAt
		c.PasswordChangedAt = &t
	}
	if u.PasswordResetTokenHash != nil {
		h := *u.PasswordResetTokenHash
		c.PasswordResetTokenHash = &h
	}
	if u.PasswordResetExpires != nil {
		t := *u.PasswordResetExpires
		c.PasswordResetExpires = &t
	}
	return &c
}
