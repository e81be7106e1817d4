package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/diagnosis/tour-bookings/internal/domain"
	"github.com/diagnosis/tour-bookings/pkg/logger"
)

const genericMessage = "Something went very wrong!"

// Envelope is the body of every JSON response.
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Token   string `json:"token,omitempty"`
	Results *int   `json:"results,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func JSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, Envelope{Status: "success", Data: data})
}

func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, Envelope{Status: "success", Data: data})
}

func Message(w http.ResponseWriter, msg string) {
	JSON(w, http.StatusOK, Envelope{Status: "success", Message: msg})
}

// List adds the results count the client pages with.
func List(w http.ResponseWriter, key string, items any, n int) {
	JSON(w, http.StatusOK, Envelope{Status: "success", Results: &n, Data: map[string]any{key: items}})
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindUnauthenticated:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInvalidOrExpiredToken, domain.KindInvalidSignature, domain.KindValidation, domain.KindConflict:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error writes err in the envelope. Internal errors are logged and replaced
// by a generic message; dev adds the underlying text.
func Error(w http.ResponseWriter, r *http.Request, err error, dev bool) {
	status := StatusFor(err)
	env := Envelope{Status: "fail"}
	if status >= 500 {
		env.Status = "error"
	}

	kind := domain.KindOf(err)
	switch {
	case kind == domain.KindInternal:
		logger.ErrorContext(r.Context(), "Unhandled error", "error", err, "path", r.URL.Path)
		env.Message = genericMessage
		if dev {
			env.Error = err.Error()
		}
	case status >= 500:
		logger.ErrorContext(r.Context(), "Operational error", "kind", kind.String(), "error", err)
		env.Message = domain.PublicMessage(err)
	default:
		env.Message = domain.PublicMessage(err)
		if dev {
			var de *domain.Error
			if errors.As(err, &de) && de.Err != nil {
				env.Error = de.Err.Error()
			}
		}
	}
	JSON(w, status, env)
}
