package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/diagnosis/tour-bookings/internal/domain"
)

type ToursRepo struct {
	mu    sync.RWMutex
	tours map[int64]domain.Tour
}

func NewToursRepo(tours ...domain.Tour) *ToursRepo {
	r := &ToursRepo{tours: make(map[int64]domain.Tour)}
	for _, t := range tours {
		r.tours[t.ID] = t
	}
	return r
}

func (r *ToursRepo) Add(t domain.Tour) {
	r.mu.Lock()
	r.tours[t.ID] = t
	r.mu.Unlock()
}

func (r *ToursRepo) FindByID(_ context.Context, id int64) (*domain.Tour, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tours[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &t, nil
}

// BookingsRepo joins tour and user details through the sibling stores, like
// the SQL view does.
type BookingsRepo struct {
	mu       sync.Mutex
	nextID   int64
	bookings map[int64]domain.Booking
	sessions map[string]int64
	tours    *ToursRepo
	users    *UsersRepo
}

func NewBookingsRepo(tours *ToursRepo, users *UsersRepo) *BookingsRepo {
	return &BookingsRepo{
		bookings: make(map[int64]domain.Booking),
		sessions: make(map[string]int64),
		tours:    tours,
		users:    users,
	}
}

func (r *BookingsRepo) ExistsBySessionID(_ context.Context, sessionID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[sessionID]
	return ok, nil
}

func (r *BookingsRepo) Create(_ context.Context, p domain.CreateBookingParams) (*domain.Booking, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.StripeSessionID != "" {
		if _, dup := r.sessions[p.StripeSessionID]; dup {
			return nil, false, nil
		}
	}

	r.nextID++
	b := domain.Booking{
		ID:        r.nextID,
		TourID:    p.TourID,
		UserID:    p.UserID,
		Price:     p.Price,
		Paid:      p.Paid,
		CreatedAt: time.Now().UTC(),
	}
	if p.StripeSessionID != "" {
		sid := p.StripeSessionID
		b.StripeSessionID = &sid
		r.sessions[sid] = b.ID
	}
	r.bookings[b.ID] = b
	return &b, true, nil
}

func (r *BookingsRepo) FindByID(ctx context.Context, id int64) (*domain.BookingDetails, error) {
	r.mu.Lock()
	b, ok := r.bookings[id]
	r.mu.Unlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	d := r.details(ctx, b)
	return &d, nil
}

func (r *BookingsRepo) List(ctx context.Context, limit, offset int) ([]domain.BookingDetails, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	all := r.snapshot(func(domain.Booking) bool { return true })
	if offset >= len(all) {
		return []domain.BookingDetails{}, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return r.withDetails(ctx, all), nil
}

func (r *BookingsRepo) ListByUser(ctx context.Context, userID int64) ([]domain.BookingDetails, error) {
	return r.withDetails(ctx, r.snapshot(func(b domain.Booking) bool { return b.UserID == userID })), nil
}

func (r *BookingsRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return domain.ErrNotFound
	}
	if b.StripeSessionID != nil {
		delete(r.sessions, *b.StripeSessionID)
	}
	delete(r.bookings, id)
	return nil
}

// Count is used by tests.
func (r *BookingsRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bookings)
}

func (r *BookingsRepo) snapshot(keep func(domain.Booking) bool) []domain.Booking {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Booking, 0, len(r.bookings))
	for _, b := range r.bookings {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (r *BookingsRepo) withDetails(ctx context.Context, bs []domain.Booking) []domain.BookingDetails {
	out := make([]domain.BookingDetails, 0, len(bs))
	for _, b := range bs {
		out = append(out, r.details(ctx, b))
	}
	return out
}

func (r *BookingsRepo) details(ctx context.Context, b domain.Booking) domain.BookingDetails {
	d := domain.BookingDetails{Booking: b}
	if r.tours != nil {
		if t, err := r.tours.FindByID(ctx, b.TourID); err == nil {
			d.TourName, d.TourSlug = t.Name, t.Slug
		}
	}
	if r.users != nil {
		if u, err := r.users.FindByID(ctx, b.UserID); err == nil {
			d.UserName, d.UserEmail = u.Name, u.Email
		}
	}
	return d
}
