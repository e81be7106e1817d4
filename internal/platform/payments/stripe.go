package payments

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/diagnosis/tour-bookings/internal/domain"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

type Stripe struct {
	api           *client.API
	webhookSecret string
}

func NewStripe(secretKey, webhookSecret string) *Stripe {
	return &Stripe{api: client.New(secretKey, nil), webhookSecret: webhookSecret}
}

// NewStripeWithBackends points the client at custom backends (stripe-mock in tests).
func NewStripeWithBackends(secretKey, webhookSecret string, backends *stripe.Backends) *Stripe {
	return &Stripe{api: client.New(secretKey, backends), webhookSecret: webhookSecret}
}

func (s *Stripe) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
		Name: stripe.String(req.ProductName),
	}
	if req.Description != "" {
		product.Description = stripe.String(req.Description)
	}
	if req.ImageURL != "" {
		product.Images = stripe.StringSlice([]string{req.ImageURL})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(req.SuccessURL),
		CancelURL:          stripe.String(req.CancelURL),
		CustomerEmail:      stripe.String(req.CustomerEmail),
		ClientReferenceID:  stripe.String(req.ReferenceID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(req.Currency),
				UnitAmount:  stripe.Int64(req.UnitAmount),
				ProductData: product,
			},
		}},
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: create checkout session: %w", err)
	}
	return fromStripeSession(sess), nil
}

func (s *Stripe) ConstructEvent(payload []byte, signature string) (*Event, error) {
	return ParseWebhook(payload, signature, s.webhookSecret)
}

// RetrieveSession loads a session with its line items expanded.
func (s *Stripe) RetrieveSession(ctx context.Context, id string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("line_items")

	sess, err := s.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("stripe: retrieve session %s: %w", id, err)
	}
	return fromStripeSession(sess), nil
}

// ParseWebhook verifies a Stripe-Signature header against the raw payload and
// decodes the event. The body must be the exact bytes Stripe sent.
func ParseWebhook(payload []byte, signature, secret string) (*Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, domain.InvalidSignature(err)
	}

	out := &Event{ID: ev.ID, Type: string(ev.Type)}
	if out.Type == EventCheckoutCompleted && ev.Data != nil {
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &sess); err != nil {
			// signed, so redelivery would not help
			out.DecodeErr = fmt.Errorf("stripe: decode checkout session: %w", err)
			return out, nil
		}
		out.Session = fromStripeSession(&sess)
	}
	return out, nil
}

func fromStripeSession(s *stripe.CheckoutSession) *CheckoutSession {
	out := &CheckoutSession{
		ID:            s.ID,
		URL:           s.URL,
		Mode:          string(s.Mode),
		PaymentStatus: string(s.PaymentStatus),
		ReferenceID:   s.ClientReferenceID,
		CustomerEmail: s.CustomerEmail,
		AmountTotal:   s.AmountTotal,
		Metadata:      s.Metadata,
	}
	if out.CustomerEmail == "" && s.CustomerDetails != nil {
		out.CustomerEmail = s.CustomerDetails.Email
	}
	if out.AmountTotal == 0 && s.LineItems != nil {
		for _, li := range s.LineItems.Data {
			out.AmountTotal += li.AmountTotal
		}
	}
	return out
}
