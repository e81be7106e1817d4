package payments

import "context"

const EventCheckoutCompleted = "checkout.session.completed"

type CheckoutRequest struct {
	ReferenceID   string
	CustomerEmail string
	ProductName   string
	Description   string
	ImageURL      string
	UnitAmount    int64 // minor units
	Currency      string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

// CheckoutSession is the part of a gateway session fulfillment reads.
type CheckoutSession struct {
	ID            string
	URL           string
	Mode          string
	PaymentStatus string
	ReferenceID   string
	CustomerEmail string
	AmountTotal   int64
	Metadata      map[string]string
}

// Event is a verified webhook event. Session is set only for checkout events;
// DecodeErr is set instead when a checkout event's object could not be read.
type Event struct {
	ID        string
	Type      string
	Session   *CheckoutSession
	DecodeErr error
}

type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	// ConstructEvent verifies the signature over the raw body before decoding.
	ConstructEvent(payload []byte, signature string) (*Event, error)
	RetrieveSession(ctx context.Context, id string) (*CheckoutSession, error)
}
