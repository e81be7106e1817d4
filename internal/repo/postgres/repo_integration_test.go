//go:build integration

package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/diagnosis/tour-bookings/internal/domain"
	"github.com/diagnosis/tour-bookings/pkg/database"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("tours"),
		tcpostgres.WithUsername("tours"),
		tcpostgres.WithPassword("tours"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	testcontainers.CleanupContainer(t, container)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := database.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

func seedTour(t *testing.T, pool *pgxpool.Pool) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(),
		`INSERT INTO tours (name, slug, summary, price, image_cover) VALUES ('The Forest Hiker','the-forest-hiker','Breathtaking hike',397,'tour-1-cover.jpg') RETURNING id`,
	).Scan(&id)
	if err != nil {
		t.Fatalf("seed tour: %v", err)
	}
	return id
}

func TestUsersRepo_Integration(t *testing.T) {
	pool := newTestPool(t)
	repo := NewUsersRepo(pool)
	ctx := context.Background()

	u, err := repo.Create(ctx, domain.CreateUserParams{Name: "Ann", Email: "Ann@X.com", PasswordHash: "digest"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.Email != "ann@x.com" || u.Role != domain.RoleUser || !u.Active {
		t.Fatalf("unexpected user %+v", u)
	}

	_, err = repo.Create(ctx, domain.CreateUserParams{Name: "Dup", Email: "ann@x.com", PasswordHash: "digest"})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict on duplicate email, got %v", err)
	}

	noSecret, err := repo.FindByEmail(ctx, "ANN@x.com", false)
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if noSecret.PasswordHash != "" {
		t.Fatal("hash returned without includeSecret")
	}

	// reset lifecycle
	if err := repo.SetResetToken(ctx, u.ID, "hash-1", time.Now().Add(10*time.Minute)); err != nil {
		t.Fatalf("set reset token: %v", err)
	}
	found, err := repo.FindByResetToken(ctx, "hash-1", time.Now())
	if err != nil || found.ID != u.ID {
		t.Fatalf("find by reset token: %v", err)
	}
	if _, err := repo.FindByResetToken(ctx, "hash-1", time.Now().Add(time.Hour)); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expired token should not match, got %v", err)
	}

	var wg sync.WaitGroup
	results := make(chan bool, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.ConsumeResetToken(ctx, u.ID, "hash-1", "new-digest", time.Now())
			if err != nil {
				t.Errorf("consume: %v", err)
			}
			results <- ok
		}()
	}
	wg.Wait()
	close(results)
	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one successful consume, got %d", wins)
	}

	// rehash keeps the change time; a stale digest loses
	before, _ := repo.FindByID(ctx, u.ID)
	if ok, err := repo.UpdatePasswordHash(ctx, u.ID, "digest", "other", nil); err != nil || ok {
		t.Fatalf("swap on stale digest: ok=%v err=%v", ok, err)
	}
	if ok, err := repo.UpdatePasswordHash(ctx, u.ID, "new-digest", "rehashed", nil); err != nil || !ok {
		t.Fatalf("rehash: ok=%v err=%v", ok, err)
	}
	after, _ := repo.FindByID(ctx, u.ID)
	if after.PasswordHash != "rehashed" || after.PasswordChangedAt == nil || !after.PasswordChangedAt.Equal(*before.PasswordChangedAt) {
		t.Fatalf("rehash changed more than the digest: %+v", after)
	}

	after.Name = "Ann B"
	if err := repo.UpdateProfile(ctx, after); err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if got, _ := repo.FindByID(ctx, u.ID); got.Name != "Ann B" || got.PasswordHash != "rehashed" {
		t.Fatalf("profile update: %+v", got)
	}

	// soft delete hides the user
	if err := repo.Deactivate(ctx, u.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if err := repo.SetResetToken(ctx, u.ID, "hash-2", time.Now().Add(time.Minute)); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("reset token set on inactive user: %v", err)
	}
	if _, err := repo.FindByID(ctx, u.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("inactive user still visible: %v", err)
	}
}

func TestBookingsRepo_Integration_SessionIsUnique(t *testing.T) {
	pool := newTestPool(t)
	users := NewUsersRepo(pool)
	bookings := NewBookingsRepo(pool)
	ctx := context.Background()

	tourID := seedTour(t, pool)
	u, err := users.Create(ctx, domain.CreateUserParams{Name: "Bob", Email: "bob@x.com", PasswordHash: "digest"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	params := domain.CreateBookingParams{TourID: tourID, UserID: u.ID, Price: 397, Paid: true, StripeSessionID: "cs_test_1"}

	var wg sync.WaitGroup
	created := make(chan bool, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := bookings.Create(ctx, params)
			if err != nil {
				t.Errorf("create booking: %v", err)
			}
			created <- ok
		}()
	}
	wg.Wait()
	close(created)

	n := 0
	for ok := range created {
		if ok {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("expected one booking created, got %d", n)
	}

	exists, err := bookings.ExistsBySessionID(ctx, "cs_test_1")
	if err != nil || !exists {
		t.Fatalf("exists by session: %v %v", exists, err)
	}

	mine, err := bookings.ListByUser(ctx, u.ID)
	if err != nil || len(mine) != 1 {
		t.Fatalf("list by user: %v (%d)", err, len(mine))
	}
	if mine[0].TourName != "The Forest Hiker" || mine[0].UserEmail != "bob@x.com" {
		t.Fatalf("details not joined: %+v", mine[0])
	}

	if err := bookings.Delete(ctx, mine[0].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := bookings.Delete(ctx, mine[0].ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}
