package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/diagnosis/tour-bookings/internal/domain"
	"github.com/diagnosis/tour-bookings/internal/http/middleware"
	"github.com/diagnosis/tour-bookings/internal/http/response"
	"github.com/diagnosis/tour-bookings/internal/service"
	"github.com/diagnosis/tour-bookings/pkg/config"
	"github.com/go-chi/chi/v5"
)

type Accounts interface {
	Signup(ctx context.Context, req *domain.SignupRequest) (*service.Session, error)
	Login(ctx context.Context, req *domain.LoginRequest) (*service.Session, error)
	UpdatePassword(ctx context.Context, userID int64, req *domain.UpdatePasswordRequest) (*service.Session, error)
	UpdateMe(ctx context.Context, userID int64, req *domain.UpdateMeRequest) (*domain.User, error)
	DeleteMe(ctx context.Context, userID int64) error
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
}

type PasswordResets interface {
	RequestReset(ctx context.Context, email string) error
	ConsumeReset(ctx context.Context, rawToken string, req *domain.ResetPasswordRequest) (*service.Session, error)
}

type AuthHandler struct {
	accounts Accounts
	resets   PasswordResets
	guard    *middleware.Guard
	cookie   config.AuthConfig
	dev      bool
}

func NewAuthHandler(accounts Accounts, resets PasswordResets, guard *middleware.Guard, cookie config.AuthConfig, dev bool) *AuthHandler {
	return &AuthHandler{accounts: accounts, resets: resets, guard: guard, cookie: cookie, dev: dev}
}

// Routes is mounted at /api/v1/users.
func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/signup", h.signup)
	r.Post("/login", h.login)
	r.Get("/logout", h.logout)
	r.Post("/forgotPassword", h.forgotPassword)
	r.Patch("/resetPassword/{token}", h.resetPassword)

	r.Group(func(r chi.Router) {
		r.Use(h.guard.Protect)
		r.Patch("/updateMyPassword", h.updateMyPassword)
		r.Get("/me", h.me)
		r.Patch("/updateMe", h.updateMe)
		r.Delete("/deleteMe", h.deleteMe)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RestrictTo(domain.NewRoleSet(domain.RoleAdmin)))
			r.Get("/", h.listUsers)
			r.Get("/{id}", h.getUser)
		})
	})
	return r
}

func (h *AuthHandler) signup(w http.ResponseWriter, r *http.Request) {
	var in domain.SignupRequest
	if err := decodeJSON(w, r, &in); err != nil {
		response.Error(w, r, err, h.dev)
		return
	}
	sess, err := h.accounts.Signup(r.Context(), &in)
	if err != nil {
		response.Error(w, r, err, h.dev)
		return
	}
	h.sendToken(w, r, http.StatusCreated, sess)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var in domain.LoginRequest
	if err := decodeJSON(w, r, &in); err != nil {
		response.Error(w, r, err, h.dev)
		return
	}
	sess, err := h.accounts.Login(r.Context(), &in)
	if err != nil {
		response.Error(w, r, err, h.dev)
		return
	}
	h.sendToken(w, r, http.StatusOK, sess)
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.CookieName,
		Value:    "loggedout",
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Second),
		HttpOnly: true,
	})
	response.JSON(w, http.StatusOK, response.Envelope{Status: "success"})
}

func (h *AuthHandler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var in domain.ForgotPasswordRequest
	if err := decodeJSON(w, r, &in); err != nil {
		response.Error(w, r, err, h.dev)
		return
	}
	if err := h.resets.RequestReset(r.Context(), in.Email); err != nil {
		response.Error(w, r, err, h.dev)
		return
	}
	response.Message(w, "Token sent to email!")
}

func (h *AuthHandler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var in domain.ResetPasswordRequest
	if err := decodeJSON(w, r, &in); err != nil {
		response.Error(w, r, err, h.dev)
		return
	}
	sess, err := h.resets.ConsumeReset(r.Context(), chi.URLParam(r, "token"), &in)
	if err != nil {
		response.Error(w, r, err, h.dev)
		return
	}
	h.sendToken(w, r, http.StatusOK, sess)
}

func (h *AuthHandler) updateMyPassword(w http.ResponseWriter, r *http.Request) {
	var in domain.UpdatePasswordRequest
	if err := decodeJSON(w, r, &in); err != nil {
		response.Error(w, r, err, h.dev)
		return
	}
	user := middleware.Identity(r.Context())
	sess, err := h.accounts.UpdatePassword(r.Context(), user.ID, &in)
	if err != nil {
		response.Error(w, r, err, h.dev)
		return
	}
	h.sendToken(w, r, http.StatusOK, sess)
}

func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	user := middleware.Identity(r.Context())
	response.OK(w, map[string]any{"user": user.Public()})
}

func (h *AuthHandler) updateMe(w http.ResponseWriter, r *http.Request) {
	var in domain.UpdateMeRequest
	if err := decodeJSON(w, r, &in); err != nil {
		response.Error(w, r, err, h.dev)
		return
	}
	user, err := h.accounts.UpdateMe(r.Context(), middleware.Identity(r.Context()).ID, &in)
	if err != nil {
		response.Error(w, r, err, h.dev)
		return
	}
	response.OK(w, map[string]any{"user": user.Public()})
}

func (h *AuthHandler) deleteMe(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.DeleteMe(r.Context(), middleware.Identity(r.Context()).ID); err != nil {
		response.Error(w, r, err, h.dev)
		return
	}
	response.NoContent(w)
}

func (h *AuthHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.accounts.ListUsers(r.Context())
	if err != nil {
		response.Error(w, r, err, h.dev)
		return
	}
	out := make([]*domain.PublicUser, 0, len(users))
	for i := range users {
		out = append(out, users[i].Public())
	}
	response.List(w, "users", out, len(out))
}

func (h *AuthHandler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, r, err, h.dev)
		return
	}
	user, err := h.accounts.GetUser(r.Context(), id)
	if err != nil {
		response.Error(w, r, err, h.dev)
		return
	}
	response.OK(w, map[string]any{"user": user.Public()})
}

// sendToken answers with the token in the body and in an HttpOnly cookie.
func (h *AuthHandler) sendToken(w http.ResponseWriter, r *http.Request, status int, sess *service.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.CookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  time.Now().Add(h.cookie.CookieTTL),
		HttpOnly: true,
		Secure:   h.cookie.CookieSecure || r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
	})
	response.JSON(w, status, response.Envelope{
		Status: "success",
		Token:  sess.Token,
		Data:   map[string]any{"user": sess.User.Public()},
	})
}
