package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/diagnosis/tour-bookings/internal/domain"
	"github.com/diagnosis/tour-bookings/internal/http/response"
	"github.com/diagnosis/tour-bookings/pkg/auth"
	"github.com/diagnosis/tour-bookings/pkg/logger"
)

type ctxKey string

const ctxIdentity ctxKey = "identity"

type TokenVerifier interface {
	Verify(raw string) (*auth.Claims, error)
}

type UserFinder interface {
	FindByID(ctx context.Context, id int64) (*domain.User, error)
}

// Guard authenticates requests and attaches the current user.
type Guard struct {
	verifier   TokenVerifier
	users      UserFinder
	cookieName string
	dev        bool
}

func NewGuard(verifier TokenVerifier, users UserFinder, cookieName string, dev bool) *Guard {
	return &Guard{verifier: verifier, users: users, cookieName: cookieName, dev: dev}
}

// Protect runs the checks in order and stops at the first failure: token
// present, token valid, user still exists, password unchanged since issue.
func (g *Guard) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := g.authenticate(r)
		if err != nil {
			response.Error(w, r, err, g.dev)
			return
		}
		ctx := context.WithValue(r.Context(), ctxIdentity, user)
		ctx = context.WithValue(ctx, logger.UserIDKey, user.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (g *Guard) authenticate(r *http.Request) (*domain.User, error) {
	raw := g.tokenFrom(r)
	if raw == "" {
		return nil, domain.Unauthenticated("You are not logged in! Please log in to get access.")
	}

	claims, err := g.verifier.Verify(raw)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			return nil, domain.Unauthenticated("Your token has expired! Please log in again.")
		}
		return nil, domain.Unauthenticated("Invalid token. Please log in again!")
	}

	user, err := g.users.FindByID(r.Context(), claims.SubjectID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.Unauthenticated("The user belonging to this token does no longer exist.")
	}
	if err != nil {
		return nil, err
	}

	if user.ChangedPasswordAfter(claims.IssuedAt) {
		return nil, domain.Unauthenticated("User recently changed password! Please log in again.")
	}
	return user, nil
}

func (g *Guard) tokenFrom(r *http.Request) string {
	if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	}
	if c, err := r.Cookie(g.cookieName); err == nil && c.Value != "loggedout" {
		return c.Value
	}
	return ""
}

// Identity returns the user attached by Protect, or nil.
func Identity(ctx context.Context) *domain.User {
	u, _ := ctx.Value(ctxIdentity).(*domain.User)
	return u
}
