package mailer

import "context"

// Sender delivers a named transactional template to one address.
type Sender interface {
	Send(ctx context.Context, to, template string, vars map[string]string) error
}

// Message is a rendered email ready for a transport.
type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

// Transport moves a rendered message over the wire.
type Transport interface {
	Deliver(ctx context.Context, msg Message) error
}
