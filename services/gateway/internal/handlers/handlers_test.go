package handlers

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/diagnosis/tour-bookings/pkg/logger"
	"github.com/diagnosis/tour-bookings/services/gateway/internal/proxy"
	"github.com/go-chi/chi/v5"
)

func TestProxy_PassesBodyAndHeadersThrough(t *testing.T) {
	logger.SetOutput(io.Discard)

	var gotBody []byte
	var gotSig, gotPath string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get("Stripe-Signature")
		gotPath = r.URL.RequestURI()
		http.SetCookie(w, &http.Cookie{Name: "jwt", Value: "a"})
		http.SetCookie(w, &http.Cookie{Name: "other", Value: "b"})
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"received":true}`))
	}))
	defer upstream.Close()

	h := New(proxy.NewServiceProxy(upstream.URL), proxy.NewServiceProxy(upstream.URL))
	r := chi.NewRouter()
	r.Post("/webhook-checkout", h.Bookings)

	// whitespace and key order must survive; the signature covers them
	payload := []byte("{\"id\": \"evt_1\",\n  \"type\":\"checkout.session.completed\"}")
	req := httptest.NewRequest(http.MethodPost, "/webhook-checkout?x=1", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if !bytes.Equal(gotBody, payload) {
		t.Fatalf("body altered: %q", gotBody)
	}
	if gotSig != "t=1,v1=abc" || gotPath != "/webhook-checkout?x=1" {
		t.Fatalf("sig %q path %q", gotSig, gotPath)
	}
	if rec.Code != http.StatusAccepted || rec.Body.String() != `{"received":true}` {
		t.Fatalf("response %d %q", rec.Code, rec.Body.String())
	}
	if n := len(rec.Result().Cookies()); n != 2 {
		t.Fatalf("cookies = %d, want 2", n)
	}
}

func TestProxy_UpstreamDown(t *testing.T) {
	logger.SetOutput(io.Discard)
	h := New(proxy.NewServiceProxy("http://127.0.0.1:1"), nil)

	rec := httptest.NewRecorder()
	h.Users(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status %d", rec.Code)
	}
}
