package payments_test

import (
	"errors"
	"testing"

	"github.com/diagnosis/tour-bookings/internal/domain"
	"github.com/diagnosis/tour-bookings/internal/platform/payments"
	"github.com/diagnosis/tour-bookings/internal/platform/payments/paymentstest"
)

func TestParseWebhook_CheckoutCompleted(t *testing.T) {
	payload := paymentstest.CompletedEvent("evt_1", paymentstest.SessionObject{
		ID:                "cs_test_1",
		Mode:              "payment",
		PaymentStatus:     "paid",
		ClientReferenceID: "5",
		CustomerEmail:     "ann@x.com",
		AmountTotal:       49700,
		Metadata:          map[string]string{"tour_id": "5", "user_id": "9"},
	})

	ev, err := payments.ParseWebhook(payload, paymentstest.Sign(payload), paymentstest.WebhookSecret)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ev.Type != payments.EventCheckoutCompleted || ev.Session == nil {
		t.Fatalf("unexpected event %+v", ev)
	}
	s := ev.Session
	if s.ID != "cs_test_1" || s.ReferenceID != "5" || s.AmountTotal != 49700 || s.Metadata["user_id"] != "9" {
		t.Fatalf("session not decoded: %+v", s)
	}
}

func TestParseWebhook_RejectsBadSignature(t *testing.T) {
	payload := paymentstest.CompletedEvent("evt_1", paymentstest.SessionObject{ID: "cs_test_1"})
	sig := paymentstest.Sign(payload)

	tests := []struct {
		name    string
		payload []byte
		sig     string
	}{
		{"missing header", payload, ""},
		{"garbage header", payload, "t=1,v1=deadbeef"},
		{"body changed after signing", append(append([]byte{}, payload...), ' '), sig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := payments.ParseWebhook(tt.payload, tt.sig, paymentstest.WebhookSecret)
			if !errors.Is(err, domain.ErrInvalidSignature) {
				t.Fatalf("expected invalid signature, got %v", err)
			}
		})
	}

	if _, err := payments.ParseWebhook(payload, sig, "whsec_other"); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("wrong secret accepted: %v", err)
	}
}

func TestParseWebhook_UndecodableSessionIsNotAnError(t *testing.T) {
	payload := []byte(`{"id":"evt_bad","object":"event","type":"checkout.session.completed","api_version":"2023-10-16",` +
		`"created":1700000000,"data":{"object":{"id":"cs_bad","object":"checkout.session","amount_total":"lots"}}}`)

	ev, err := payments.ParseWebhook(payload, paymentstest.Sign(payload), paymentstest.WebhookSecret)
	if err != nil {
		t.Fatalf("signed event rejected: %v", err)
	}
	if ev.Session != nil || ev.DecodeErr == nil || ev.ID != "evt_bad" {
		t.Fatalf("unexpected event %+v", ev)
	}
}
