package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/diagnosis/tour-bookings/internal/domain"
	"github.com/diagnosis/tour-bookings/internal/http/middleware"
	"github.com/diagnosis/tour-bookings/internal/http/response"
	"github.com/diagnosis/tour-bookings/internal/platform/payments"
	"github.com/diagnosis/tour-bookings/internal/service"
	"github.com/diagnosis/tour-bookings/pkg/logger"
	mw "github.com/diagnosis/tour-bookings/pkg/middleware"
	"github.com/go-chi/chi/v5"
)

const maxWebhookBody = 64 << 10

type Checkouts interface {
	CreateSession(ctx context.Context, user *domain.User, tourID int64) (*payments.CheckoutSession, error)
}

type Bookings interface {
	List(ctx context.Context, limit, offset int) ([]domain.BookingDetails, error)
	ListMine(ctx context.Context, userID int64) ([]domain.BookingDetails, error)
	Get(ctx context.Context, requester *domain.User, id int64) (*domain.BookingDetails, error)
	Delete(ctx context.Context, id int64) error
}

// Enqueuer hands a paid session to the background fulfillment worker.
type Enqueuer interface {
	Enqueue(ctx context.Context, eventID string, sess *payments.CheckoutSession) error
}

// WebhookVerifier checks the gateway signature over the raw body.
type WebhookVerifier interface {
	ConstructEvent(payload []byte, signature string) (*payments.Event, error)
}

type BookingsHandler struct {
	checkouts Checkouts
	bookings  Bookings
	queue     Enqueuer
	verifier  WebhookVerifier
	guard     *middleware.Guard
	idem      mw.IdempotencyStore
	dev       bool
}

// NewBookingsHandler wires the booking routes. idem may be nil, in which case
// Idempotency-Key headers are ignored.
func NewBookingsHandler(checkouts Checkouts, bookings Bookings, queue Enqueuer, verifier WebhookVerifier, guard *middleware.Guard, idem mw.IdempotencyStore, dev bool) *BookingsHandler {
	return &BookingsHandler{
		checkouts: checkouts,
		bookings:  bookings,
		queue:     queue,
		verifier:  verifier,
		guard:     guard,
		idem:      idem,
		dev:       dev,
	}
}

// Routes is mounted at /api/v1/bookings. The webhook is mounted separately.
func (h *BookingsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.guard.Protect)

	checkout := r.With()
	if h.idem != nil {
		checkout = r.With(mw.IdempotencyMiddleware(h.idem, identityScope))
	}
	checkout.Post("/checkout-session/{tourId}", h.checkoutSession)

	r.Get("/me", h.listMine)
	r.Get("/{id}", h.get)
	r.With(middleware.RestrictTo(domain.NewRoleSet(domain.RoleAdmin, domain.RoleLeadGuide, domain.RoleGuide))).
		Get("/", h.list)
	r.With(middleware.RestrictTo(domain.NewRoleSet(domain.RoleAdmin, domain.RoleLeadGuide))).
		Delete("/{id}", h.delete)
	return r
}

func identityScope(r *http.Request) string {
	if u := middleware.Identity(r.Context()); u != nil {
		return "user:" + strconv.FormatInt(u.ID, 10)
	}
	return "anonymous"
}

func (h *BookingsHandler) checkoutSession(w http.ResponseWriter, r *http.Request) {
	tourID, err := idParam(r, "tourId")
	if err != nil {
		response.Error(w, r, err, h.dev)
		return
	}
	sess, err := h.checkouts.CreateSession(r.Context(), middleware.Identity(r.Context()), tourID)
	if err != nil {
		response.Error(w, r, err, h.dev)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"session": map[string]string{"id": sess.ID, "url": sess.URL},
	})
}

// Webhook acknowledges a verified gateway event and queues fulfillment. It
// must see the body exactly as sent, so nothing upstream may decode it.
func (h *BookingsHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		response.Error(w, r, domain.Validation("Could not read webhook body."), h.dev)
		return
	}

	ev, err := h.verifier.ConstructEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		logger.WarnContext(r.Context(), "Webhook rejected", "error", err)
		response.Error(w, r, err, h.dev)
		return
	}

	if ev.DecodeErr != nil {
		logger.ErrorContext(r.Context(), "Signed webhook event could not be decoded", "event_id", ev.ID, "type", ev.Type, "error", ev.DecodeErr)
	}
	if ev.Type == payments.EventCheckoutCompleted && ev.Session != nil {
		err := h.queue.Enqueue(r.Context(), ev.ID, ev.Session)
		if errors.Is(err, service.ErrQueueFull) {
			logger.WarnContext(r.Context(), "Fulfillment queue full, asking for redelivery", "event_id", ev.ID)
			response.JSON(w, http.StatusServiceUnavailable, response.Envelope{Status: "error", Message: "Busy, retry later."})
			return
		}
		if err != nil {
			response.Error(w, r, err, h.dev)
			return
		}
		logger.InfoContext(r.Context(), "Checkout completion queued", "event_id", ev.ID, "session_id", ev.Session.ID)
	}

	response.JSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *BookingsHandler) list(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	bookings, err := h.bookings.List(r.Context(), limit, offset)
	if err != nil {
		response.Error(w, r, err, h.dev)
		return
	}
	response.List(w, "bookings", bookings, len(bookings))
}

func (h *BookingsHandler) listMine(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.bookings.ListMine(r.Context(), middleware.Identity(r.Context()).ID)
	if err != nil {
		response.Error(w, r, err, h.dev)
		return
	}
	response.List(w, "bookings", bookings, len(bookings))
}

func (h *BookingsHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, r, err, h.dev)
		return
	}
	b, err := h.bookings.Get(r.Context(), middleware.Identity(r.Context()), id)
	if err != nil {
		response.Error(w, r, err, h.dev)
		return
	}
	response.OK(w, map[string]any{"booking": b})
}

func (h *BookingsHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, r, err, h.dev)
		return
	}
	if err := h.bookings.Delete(r.Context(), id); err != nil {
		response.Error(w, r, err, h.dev)
		return
	}
	response.NoContent(w)
}
