package mailer

import (
	"context"
	"strings"

	"github.com/diagnosis/tour-bookings/pkg/config"
	"github.com/diagnosis/tour-bookings/pkg/logger"
)

// Mailer renders templates and hands them to a transport.
type Mailer struct {
	transport Transport
}

func New(transport Transport) *Mailer {
	return &Mailer{transport: transport}
}

// FromConfig picks the transport: the log-only dev transport when DevMode is
// set, MailerSend when an API key is present, SMTP otherwise.
func FromConfig(cfg config.EmailConfig) *Mailer {
	switch {
	case cfg.DevMode:
		logger.Info("Mailer using dev transport")
		return New(NewDevTransport())
	case strings.TrimSpace(cfg.MailerSendKey) != "":
		logger.Info("Mailer using MailerSend transport")
		return New(NewMailerSend(cfg.MailerSendKey, cfg.FromName, cfg.FromEmail))
	default:
		logger.Info("Mailer using SMTP transport", "host", cfg.SMTPHost, "port", cfg.SMTPPort)
		return New(NewSMTPTransport(cfg))
	}
}

func (m *Mailer) Send(ctx context.Context, to, template string, vars map[string]string) error {
	msg, err := Render(template, to, vars)
	if err != nil {
		return err
	}
	if err := m.transport.Deliver(ctx, msg); err != nil {
		logger.ErrorContext(ctx, "Email delivery failed", "template", template, "error", err)
		return err
	}
	logger.InfoContext(ctx, "Email sent", "template", template)
	return nil
}
