package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/diagnosis/tour-bookings/internal/domain"
	"github.com/go-chi/chi/v5"
)

const maxJSONBody = 10 << 10

// decodeJSON reads a small JSON body into dst. Unknown fields are ignored,
// which is how updateMe filters what a user may change.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Validation("Request body is empty.")
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.Validation("Request body is too large.")
		}
		return &domain.Error{Kind: domain.KindValidation, Message: "Invalid JSON body.", Err: err}
	}
	return nil
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Validation("Invalid " + name + ".")
	}
	return id, nil
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit = 100
	offset = 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 1 {
			offset = (n - 1) * limit
		}
	}
	return limit, offset
}
