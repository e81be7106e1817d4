package middleware

import (
	"net/http"

	"github.com/diagnosis/tour-bookings/internal/domain"
	"github.com/diagnosis/tour-bookings/internal/http/response"
)

// RestrictTo only lets users whose role is in allowed through. It must run
// after Guard.Protect.
func RestrictTo(allowed domain.RoleSet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := Identity(r.Context())
			if user == nil {
				response.Error(w, r, domain.Unauthenticated("You are not logged in! Please log in to get access."), false)
				return
			}
			if !allowed.Contains(user.Role) {
				response.Error(w, r, domain.Forbidden("You do not have permission to perform this action"), false)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
