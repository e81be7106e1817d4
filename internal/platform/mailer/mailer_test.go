package mailer

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type captureTransport struct {
	msgs []Message
	err  error
}

func (c *captureTransport) Deliver(_ context.Context, msg Message) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, msg)
	return nil
}

func TestRender_PasswordReset(t *testing.T) {
	msg, err := Render("passwordReset", "ann@x.com", map[string]string{
		"name": "Ann Lee",
		"url":  "http://localhost:8080/api/v1/users/resetPassword/abc",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if msg.To != "ann@x.com" || !strings.Contains(msg.Subject, "10 minutes") {
		t.Fatalf("unexpected header fields %+v", msg)
	}
	if !strings.Contains(msg.Text, "Hi Ann,") || !strings.Contains(msg.Text, "/resetPassword/abc") {
		t.Fatalf("text body missing fields: %q", msg.Text)
	}
	if !strings.Contains(msg.HTML, `href="http://localhost:8080/api/v1/users/resetPassword/abc"`) {
		t.Fatalf("html body missing link: %q", msg.HTML)
	}
}

func TestRender_EscapesHTML(t *testing.T) {
	msg, err := Render("welcome", "x@x.com", map[string]string{"name": "<script>", "url": "http://x"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(msg.HTML, "<script>") {
		t.Fatal("name was not escaped in html body")
	}
}

func TestRender_UnknownTemplate(t *testing.T) {
	if _, err := Render("nope", "x@x.com", nil); err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestMailer_Send(t *testing.T) {
	tr := &captureTransport{}
	m := New(tr)
	if err := m.Send(context.Background(), "b@x.com", "bookingConfirmed", map[string]string{"name": "Bob", "tourName": "The Sea Explorer", "price": "497.00"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(tr.msgs) != 1 || !strings.Contains(tr.msgs[0].Text, "The Sea Explorer") {
		t.Fatalf("unexpected messages %+v", tr.msgs)
	}

	tr.err = errors.New("smtp down")
	if err := m.Send(context.Background(), "b@x.com", "welcome", nil); err == nil {
		t.Fatal("expected transport error to surface")
	}
}
