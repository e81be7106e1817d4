// Package paymentstest provides an in-process payment gateway for tests.
// Webhook signatures are real Stripe signatures over the test secret.
package paymentstest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/diagnosis/tour-bookings/internal/domain"
	"github.com/diagnosis/tour-bookings/internal/platform/payments"
	"github.com/stripe/stripe-go/v76/webhook"
)

const WebhookSecret = "whsec_test_secret"

type Gateway struct {
	mu        sync.Mutex
	n         int
	Created   []payments.CheckoutRequest
	Sessions  map[string]*payments.CheckoutSession
	Retrieved []string
	CreateErr error
}

func New() *Gateway {
	return &Gateway{Sessions: make(map[string]*payments.CheckoutSession)}
}

func (g *Gateway) CreateCheckoutSession(_ context.Context, req payments.CheckoutRequest) (*payments.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.CreateErr != nil {
		return nil, g.CreateErr
	}
	g.n++
	id := fmt.Sprintf("cs_test_%d", g.n)
	s := &payments.CheckoutSession{
		ID:            id,
		URL:           "https://checkout.stripe.test/pay/" + id,
		Mode:          "payment",
		PaymentStatus: "unpaid",
		ReferenceID:   req.ReferenceID,
		CustomerEmail: req.CustomerEmail,
		AmountTotal:   req.UnitAmount,
		Metadata:      req.Metadata,
	}
	g.Created = append(g.Created, req)
	g.Sessions[id] = s
	return s, nil
}

func (g *Gateway) ConstructEvent(payload []byte, signature string) (*payments.Event, error) {
	return payments.ParseWebhook(payload, signature, WebhookSecret)
}

func (g *Gateway) RetrieveSession(_ context.Context, id string) (*payments.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Retrieved = append(g.Retrieved, id)
	s, ok := g.Sessions[id]
	if !ok {
		return nil, domain.NotFound("no such checkout session")
	}
	cp := *s
	return &cp, nil
}

// SessionObject is the JSON shape of a checkout session inside an event.
type SessionObject struct {
	ID                string            `json:"id"`
	Object            string            `json:"object"`
	Mode              string            `json:"mode"`
	PaymentStatus     string            `json:"payment_status"`
	ClientReferenceID string            `json:"client_reference_id,omitempty"`
	CustomerEmail     string            `json:"customer_email,omitempty"`
	AmountTotal       int64             `json:"amount_total"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// CompletedEvent builds a checkout.session.completed payload.
func CompletedEvent(eventID string, s SessionObject) []byte {
	s.Object = "checkout.session"
	body, _ := json.Marshal(map[string]any{
		"id":          eventID,
		"object":      "event",
		"type":        payments.EventCheckoutCompleted,
		"api_version": "2023-10-16",
		"created":     time.Now().Unix(),
		"data":        map[string]any{"object": s},
	})
	return body
}

// Sign returns a Stripe-Signature header for payload.
func Sign(payload []byte) string {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    WebhookSecret,
		Timestamp: time.Now(),
	})
	return signed.Header
}
