package service

import (
	"context"
	"testing"
	"time"

	"github.com/diagnosis/tour-bookings/internal/domain"
	"github.com/diagnosis/tour-bookings/internal/repo/memory"
	"golang.org/x/crypto/bcrypt"
)

// racingUsers runs between once, right after the first FindByEmail read, so
// the caller works on a row that has already changed underneath it.
type racingUsers struct {
	*memory.UsersRepo
	between func()
}

func (r *racingUsers) FindByEmail(ctx context.Context, email string, includeSecret bool) (*domain.User, error) {
	u, err := r.UsersRepo.FindByEmail(ctx, email, includeSecret)
	if fn := r.between; fn != nil {
		r.between = nil
		fn()
	}
	return u, err
}

func changePassword(t *testing.T, svc *AuthService, id int64, from, to string) {
	t.Helper()
	_, err := svc.UpdatePassword(context.Background(), id, &domain.UpdatePasswordRequest{PasswordCurrent: from, Password: to, PasswordConfirm: to})
	if err != nil {
		t.Fatalf("update password: %v", err)
	}
}

func TestRequestReset_KeepsConcurrentPasswordChange(t *testing.T) {
	ctx := context.Background()
	base := memory.NewUsersRepo()
	users := &racingUsers{UsersRepo: base}
	h := newHasher()
	iss := newIssuer(t)
	sender := &fakeSender{}
	authSvc := NewAuthService(base, h, iss, &fakePublisher{}, "http://localhost/me")
	reset := NewResetService(users, h, iss, sender, 10*time.Minute, func(tok string) string { return "http://localhost/reset/" + tok })

	u := createUser(t, base, h, "a@x.com", "secret123", domain.RoleUser)
	users.between = func() { changePassword(t, authSvc, u.ID, "secret123", "newpass12") }

	if err := reset.RequestReset(ctx, "a@x.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}

	if _, err := authSvc.Login(ctx, &domain.LoginRequest{Email: "a@x.com", Password: "newpass12"}); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}
	if _, err := authSvc.Login(ctx, &domain.LoginRequest{Email: "a@x.com", Password: "secret123"}); err == nil {
		t.Fatal("old password accepted again")
	}
	stored, _ := base.FindByID(ctx, u.ID)
	if stored.PasswordChangedAt == nil {
		t.Fatal("password change time rolled back")
	}
	if stored.PasswordResetTokenHash == nil {
		t.Fatal("reset token not stored")
	}
}

func TestRequestReset_DeactivatedMeanwhile(t *testing.T) {
	ctx := context.Background()
	base := memory.NewUsersRepo()
	users := &racingUsers{UsersRepo: base}
	h := newHasher()
	sender := &fakeSender{}
	reset := NewResetService(users, h, newIssuer(t), sender, 10*time.Minute, func(tok string) string { return tok })

	u := createUser(t, base, h, "a@x.com", "secret123", domain.RoleUser)
	users.between = func() { _ = base.Deactivate(ctx, u.ID) }

	if err := reset.RequestReset(ctx, "a@x.com"); err == nil {
		t.Fatal("reset issued for a deactivated account")
	}
	if len(sender.sent) != 0 {
		t.Fatal("mail sent for a deactivated account")
	}
	if _, err := base.FindByID(ctx, u.ID); err == nil {
		t.Fatal("account reactivated")
	}
}

func TestLoginRehash_KeepsConcurrentPasswordChange(t *testing.T) {
	ctx := context.Background()
	base := memory.NewUsersRepo()
	users := &racingUsers{UsersRepo: base}
	h := newHasher()
	iss := newIssuer(t)
	racing := NewAuthService(users, h, iss, &fakePublisher{}, "http://localhost/me")
	plain := NewAuthService(base, h, iss, &fakePublisher{}, "http://localhost/me")

	legacy, _ := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	u, err := base.Create(ctx, domain.CreateUserParams{Name: "Old", Email: "old@x.com", PasswordHash: string(legacy)})
	if err != nil {
		t.Fatal(err)
	}
	users.between = func() { changePassword(t, plain, u.ID, "secret123", "newpass12") }

	// verified against the row it read; the rehash must not land
	if _, err := racing.Login(ctx, &domain.LoginRequest{Email: "old@x.com", Password: "secret123"}); err != nil {
		t.Fatalf("login: %v", err)
	}

	if _, err := plain.Login(ctx, &domain.LoginRequest{Email: "old@x.com", Password: "secret123"}); err == nil {
		t.Fatal("old password accepted again")
	}
	if _, err := plain.Login(ctx, &domain.LoginRequest{Email: "old@x.com", Password: "newpass12"}); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}
	stored, _ := base.FindByID(ctx, u.ID)
	if stored.PasswordChangedAt == nil {
		t.Fatal("password change time rolled back")
	}
}

func TestUpdatePassword_LosesToConcurrentChange(t *testing.T) {
	ctx := context.Background()
	svc, users, _ := newAuthFixture(t)
	u := createUser(t, users, newHasher(), "a@x.com", "secret123", domain.RoleUser)

	stale, _ := users.FindByID(ctx, u.ID)
	changePassword(t, svc, u.ID, "secret123", "first123")

	h := newHasher()
	next, _ := h.Hash(ctx, "second123")
	now := time.Now()
	ok, err := users.UpdatePasswordHash(ctx, u.ID, stale.PasswordHash, next, &now)
	if err != nil || ok {
		t.Fatalf("swap on a stale digest: ok=%v err=%v", ok, err)
	}
	if _, err := svc.Login(ctx, &domain.LoginRequest{Email: "a@x.com", Password: "first123"}); err != nil {
		t.Fatalf("winning password rejected: %v", err)
	}
}
