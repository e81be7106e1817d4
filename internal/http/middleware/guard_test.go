package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/diagnosis/tour-bookings/internal/domain"
	"github.com/diagnosis/tour-bookings/internal/repo/memory"
	"github.com/diagnosis/tour-bookings/pkg/auth"
	"github.com/diagnosis/tour-bookings/pkg/logger"
)

func setup(t *testing.T) (*Guard, *auth.Issuer, *memory.UsersRepo, *domain.User) {
	t.Helper()
	logger.SetOutput(io.Discard)
	iss, err := auth.NewIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	users := memory.NewUsersRepo()
	u, err := users.Create(context.Background(), domain.CreateUserParams{Name: "Ann", Email: "ann@x.com", PasswordHash: "digest", Role: domain.RoleUser})
	if err != nil {
		t.Fatal(err)
	}
	return NewGuard(iss, users, "jwt", false), iss, users, u
}

func protected(g *Guard, seen **domain.User) http.Handler {
	return g.Protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*seen = Identity(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
}

func TestGuard_TokenSources(t *testing.T) {
	g, iss, _, u := setup(t)
	tok, _ := iss.Issue(u.ID)

	tests := []struct {
		name string
		prep func(r *http.Request)
		want int
	}{
		{"bearer header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }, http.StatusOK},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "jwt", Value: tok}) }, http.StatusOK},
		{"none", func(r *http.Request) {}, http.StatusUnauthorized},
		{"logged out cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "jwt", Value: "loggedout"}) }, http.StatusUnauthorized},
		{"garbage", func(r *http.Request) { r.Header.Set("Authorization", "Bearer abc.def.ghi") }, http.StatusUnauthorized},
		{"wrong scheme", func(r *http.Request) { r.Header.Set("Authorization", "Basic "+tok) }, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen *domain.User
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			tt.prep(req)
			rec := httptest.NewRecorder()
			protected(g, &seen).ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
			if tt.want == http.StatusOK && (seen == nil || seen.ID != u.ID) {
				t.Fatal("identity not attached")
			}
		})
	}
}

func TestGuard_StaleAfterPasswordChange(t *testing.T) {
	g, base, users, u := setup(t)
	ctx := context.Background()
	issuedAt := time.Now().Add(-time.Minute).Truncate(time.Second)

	old, _ := base.WithClock(func() time.Time { return issuedAt }).Issue(u.ID)

	changed := issuedAt.Add(10 * time.Second)
	stored, _ := users.FindByID(ctx, u.ID)
	if ok, err := users.UpdatePasswordHash(ctx, u.ID, stored.PasswordHash, "new-digest", &changed); err != nil || !ok {
		t.Fatalf("change password: ok=%v err=%v", ok, err)
	}

	var seen *domain.User
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+old)
	rec := httptest.NewRecorder()
	protected(g, &seen).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("stale token accepted: %d", rec.Code)
	}

	// issued in the same second as the change: still valid
	fresh, _ := base.WithClock(func() time.Time { return changed }).Issue(u.ID)
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+fresh)
	rec = httptest.NewRecorder()
	protected(g, &seen).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("fresh token rejected: %d", rec.Code)
	}
}

func TestGuard_UserGone(t *testing.T) {
	g, iss, users, u := setup(t)
	tok, _ := iss.Issue(u.ID)

	if err := users.Deactivate(context.Background(), u.ID); err != nil {
		t.Fatal(err)
	}

	var seen *domain.User
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	protected(g, &seen).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("deactivated user passed the guard: %d", rec.Code)
	}
}

func TestRestrictTo(t *testing.T) {
	g, iss, users, u := setup(t)
	admin, _ := users.Create(context.Background(), domain.CreateUserParams{Name: "Root", Email: "root@x.com", PasswordHash: "digest", Role: domain.RoleAdmin})

	h := g.Protect(RestrictTo(domain.NewRoleSet(domain.RoleAdmin, domain.RoleLeadGuide))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }),
	))

	for _, tc := range []struct {
		id   int64
		want int
	}{{u.ID, http.StatusForbidden}, {admin.ID, http.StatusOK}} {
		tok, _ := iss.Issue(tc.id)
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("user %d: status %d, want %d", tc.id, rec.Code, tc.want)
		}
	}

	// without Protect there is no identity
	rec := httptest.NewRecorder()
	RestrictTo(domain.NewRoleSet(domain.RoleAdmin))(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing identity: %d", rec.Code)
	}
}
