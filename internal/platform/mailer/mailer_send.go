package mailer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mailersend/mailersend-go"
)

type MailerSendTransport struct {
	client  *mailersend.Mailersend
	from    mailersend.From
	enabled bool
}

func NewMailerSend(apiKey, fromName, fromEmail string) *MailerSendTransport {
	m := &MailerSendTransport{
		enabled: apiKey != "" && fromEmail != "",
		from: mailersend.From{
			Name:  fromName,
			Email: fromEmail,
		},
	}
	if m.enabled {
		m.client = mailersend.NewMailersend(apiKey)
	}
	return m
}

func (m *MailerSendTransport) Deliver(ctx context.Context, msg Message) error {
	if !m.enabled {
		return errors.New("mailer disabled (missing MAILERSEND_API_KEY or EMAIL_FROM)")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	email := m.client.Email.NewMessage()
	email.SetFrom(m.from)
	email.SetRecipients([]mailersend.Recipient{{Name: msg.ToName, Email: msg.To}})
	email.SetSubject(msg.Subject)
	if strings.TrimSpace(msg.Text) != "" {
		email.SetText(msg.Text)
	}
	if strings.TrimSpace(msg.HTML) != "" {
		email.SetHTML(msg.HTML)
	}

	res, err := m.client.Email.Send(ctx, email)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("mailersend error: status=%d body=%s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
