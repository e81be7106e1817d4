package handlers

import (
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/diagnosis/tour-bookings/internal/http/response"
	"github.com/diagnosis/tour-bookings/pkg/logger"
	"github.com/diagnosis/tour-bookings/services/gateway/internal/proxy"
)

const maxProxyBody = 1 << 20

type Handlers struct {
	usersProxy    *proxy.ServiceProxy
	bookingsProxy *proxy.ServiceProxy
}

func New(usersProxy, bookingsProxy *proxy.ServiceProxy) *Handlers {
	return &Handlers{usersProxy: usersProxy, bookingsProxy: bookingsProxy}
}

func (h *Handlers) Users(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.usersProxy)
}

func (h *Handlers) Bookings(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.bookingsProxy)
}

// proxyRequest forwards the request path, query and raw body to upstream and
// copies the answer back, Set-Cookie included.
func (h *Handlers) proxyRequest(w http.ResponseWriter, r *http.Request, upstream *proxy.ServiceProxy) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxProxyBody))
	if err != nil {
		response.JSON(w, http.StatusRequestEntityTooLarge, response.Envelope{Status: "fail", Message: "Request body is too large."})
		return
	}
	defer r.Body.Close()

	headers := make(http.Header)
	for key, values := range r.Header {
		if shouldCopyHeader(key) {
			headers[key] = values
		}
	}
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		if prior := headers.Get("X-Forwarded-For"); prior != "" {
			ip = prior + ", " + ip
		}
		headers.Set("X-Forwarded-For", ip)
	}
	if r.TLS != nil {
		headers.Set("X-Forwarded-Proto", "https")
	}

	resp, err := upstream.ProxyRequest(r.Context(), r.Method, r.URL.RequestURI(), body, headers)
	if err != nil {
		logger.ErrorContext(r.Context(), "Service proxy error", "error", err, "path", r.URL.Path)
		response.JSON(w, http.StatusBadGateway, response.Envelope{Status: "error", Message: "Service unavailable"})
		return
	}
	defer resp.Body.Close()

	for key, values := range resp.Header {
		if !shouldCopyHeader(key) {
			continue
		}
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		logger.ErrorContext(r.Context(), "Failed to copy response body", "error", err)
	}
}

func shouldCopyHeader(key string) bool {
	switch strings.ToLower(key) {
	case "host", "connection", "upgrade", "proxy-connection", "proxy-authenticate",
		"proxy-authorization", "te", "trailers", "transfer-encoding", "content-length", "keep-alive":
		return false
	}
	return true
}
