package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/diagnosis/tour-bookings/pkg/events"
)

func message(t *testing.T, subject string, v any) *events.Message {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return &events.Message{Subject: subject, Data: data}
}

func TestNotifier_Notification(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(sender, "http://test/my-tours")

	msg := message(t, events.NotifySend, events.NotificationEvent{
		Template:  events.TemplateWelcome,
		Recipient: "ann@x.com",
		Name:      "Ann Smith",
		Data:      map[string]string{"url": "http://test/me"},
	})
	if err := n.HandleNotification(context.Background(), msg); err != nil {
		t.Fatal(err)
	}

	got := sender.last(t)
	if got.to != "ann@x.com" || got.template != events.TemplateWelcome || got.vars["name"] != "Ann Smith" || got.vars["url"] != "http://test/me" {
		t.Fatalf("unexpected mail %+v", got)
	}
}

func TestNotifier_BookingCreated(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(sender, "http://test/my-tours")

	msg := message(t, events.BookingCreated, events.BookingCreatedEvent{
		BookingID: 7, TourName: "The Sea Explorer", UserEmail: "ann@x.com", UserName: "Ann", Price: 497,
	})
	if err := n.HandleBookingCreated(context.Background(), msg); err != nil {
		t.Fatal(err)
	}

	got := sender.last(t)
	if got.template != events.TemplateBookingConfirmed || got.vars["price"] != "497.00" || got.vars["tourName"] != "The Sea Explorer" {
		t.Fatalf("unexpected mail %+v", got)
	}
}

func TestNotifier_Errors(t *testing.T) {
	sender := &fakeSender{err: errors.New("smtp down")}
	n := NewNotifier(sender, "")

	if err := n.HandleNotification(context.Background(), &events.Message{Subject: events.NotifySend, Data: []byte("{")}); err == nil {
		t.Fatal("expected decode error")
	}
	msg := message(t, events.BookingCreated, events.BookingCreatedEvent{UserEmail: "ann@x.com"})
	if err := n.HandleBookingCreated(context.Background(), msg); err == nil {
		t.Fatal("expected send error")
	}
}
