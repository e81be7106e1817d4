package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/diagnosis/tour-bookings/pkg/logger"
	"github.com/nats-io/nats.go"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data any) error
	Close() error
}

type Subscriber interface {
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
}

// Decode unmarshals the message payload into v.
func (m *Message) Decode(v any) error {
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.Subject, err)
	}
	return nil
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url, name string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "bytes", len(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
		})
	})
	return err
}

// Close drains subscriptions so in-flight handlers finish before the
// connection goes away.
func (n *NATSEventBus) Close() error {
	return n.conn.Drain()
}

// Subjects
const (
	BookingCreated = "booking.created"
	NotifySend     = "notify.send"
)

// Notification templates understood by the notify service.
const (
	TemplateWelcome          = "welcome"
	TemplatePasswordReset    = "passwordReset"
	TemplateBookingConfirmed = "bookingConfirmed"
)

type NotificationEvent struct {
	Template  string            `json:"template"`
	Recipient string            `json:"recipient"`
	Name      string            `json:"name"`
	Data      map[string]string `json:"data,omitempty"`
}

type BookingCreatedEvent struct {
	BookingID int64     `json:"booking_id"`
	TourID    int64     `json:"tour_id"`
	TourName  string    `json:"tour_name"`
	UserID    int64     `json:"user_id"`
	UserEmail string    `json:"user_email"`
	UserName  string    `json:"user_name"`
	Price     float64   `json:"price"`
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

// NopPublisher drops every event. Used when NATS is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, subject string, _ any) error {
	logger.DebugContext(ctx, "Event dropped, no bus configured", "subject", subject)
	return nil
}

func (NopPublisher) Close() error { return nil }
