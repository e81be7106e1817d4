package mailer

import (
	"context"
	"fmt"
	"strings"

	"github.com/diagnosis/tour-bookings/pkg/config"
	"gopkg.in/gomail.v2"
)

// SMTPTransport sends through a plain SMTP relay (Mailpit locally).
type SMTPTransport struct {
	dialer *gomail.Dialer
	from   string
	name   string
}

func NewSMTPTransport(cfg config.EmailConfig) *SMTPTransport {
	return &SMTPTransport{
		dialer: gomail.NewDialer(strings.TrimSpace(cfg.SMTPHost), cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass),
		from:   strings.TrimSpace(cfg.FromEmail),
		name:   cfg.FromName,
	}
}

// Deliver dials per message. gomail has no context support, so ctx is only
// checked before dialing.
func (s *SMTPTransport) Deliver(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("empty recipient email")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.from, s.name)
	m.SetAddressHeader("To", msg.To, msg.ToName)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)
	if msg.HTML != "" {
		m.AddAlternative("text/html", msg.HTML)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
